package main

import (
	"context"
	"flag"
	"fmt"
	"path/filepath"
	"strings"

	"videomass/command"
	"videomass/concatenator"
	"videomass/config"
	"videomass/display"
	"videomass/ffmpeg"
	vmerrors "videomass/internal/errors"
	"videomass/internal/id"
	"videomass/orchestrator"
	"videomass/params"
)

func (a *app) volume(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("volume", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	modeFlag := fs.String("mode", "peak", "Level the gain is computed from: peak or rms; ebu measures EBU R128 loudness")
	target := fs.Float64("target", 0, "Target level in dBFS (default: from configuration)")
	fs.Usage = func() {
		fmt.Fprintln(a.stderr, "usage: videomass volume [-mode peak|rms|ebu] [-target dB] files...")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errUsage
	}
	if strings.EqualFold(*modeFlag, "ebu") {
		return a.loudness(ctx, fs.Args())
	}

	mode, err := ffmpeg.ParseLevelMode(*modeFlag)
	if err != nil {
		return err
	}
	targetSet := false
	fs.Visit(func(f *flag.Flag) { targetSet = targetSet || f.Name == "target" })
	if !targetSet {
		*target = a.cfg.Normalization.Target(mode)
	}
	if *target > 0 {
		return vmerrors.Validation("target level must not exceed 0 dBFS, got %g", *target)
	}

	files := fs.Args()
	for _, f := range files {
		if err := checkInput(f); err != nil {
			return err
		}
	}
	if a.cfg.DryRun {
		for _, f := range files {
			line, err := command.DryRunLine(a.ffmpeg, ffmpeg.VolumedetectArgs(f))
			if err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, line)
		}
		return nil
	}

	volumes, err := a.ffmpeg.DetectVolumes(ctx, files, a.cfg.Workers)
	if err != nil {
		return err
	}
	rows := make([]display.VolumeRow, len(volumes))
	for i, v := range volumes {
		rows[i] = display.VolumeRow{Volume: v, Gain: ffmpeg.ComputeGain(v, mode, *target)}
	}
	fmt.Fprintln(a.stdout, display.VolumesTable(rows))
	return nil
}

// loudness runs the loudnorm analysis on files against the configured
// EBU R128 target.
func (a *app) loudness(ctx context.Context, files []string) error {
	for _, f := range files {
		if err := checkInput(f); err != nil {
			return err
		}
	}
	target := a.cfg.Normalization.LoudnormTarget()
	if a.cfg.DryRun {
		for _, f := range files {
			line, err := command.DryRunLine(a.ffmpeg, ffmpeg.LoudnormArgs(f, target))
			if err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, line)
		}
		return nil
	}

	measured, err := a.ffmpeg.MeasureLoudnesses(ctx, files, target, a.cfg.Workers)
	if err != nil {
		return err
	}
	rows := make([]display.LoudnessRow, len(measured))
	for i, l := range measured {
		rows[i] = display.LoudnessRow{Path: files[i], Loudness: l, Target: target}
	}
	fmt.Fprintln(a.stdout, display.LoudnessTable(rows))
	return nil
}

const infoUsage = `usage: videomass info formats|codecs|buildconf
       videomass info encoders|decoders [video|audio|subtitle]
       videomass info params [CODEC]`

func (a *app) info(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprintln(a.stderr, infoUsage)
		return errUsage
	}

	var out string
	switch args[0] {
	case "formats":
		formats, err := a.ffmpeg.Formats(ctx)
		if err != nil {
			return err
		}
		out = display.FormatsTable(formats)
	case "codecs":
		codecs, err := a.ffmpeg.Codecs(ctx)
		if err != nil {
			return err
		}
		out = display.CodecsTable(codecs)
	case "encoders", "decoders":
		list := a.ffmpeg.Encoders
		if args[0] == "decoders" {
			list = a.ffmpeg.Decoders
		}
		coders, err := list(ctx)
		if err != nil {
			return err
		}
		if len(args) > 1 {
			coders = ffmpeg.FilterCoders(coders, args[1])
		}
		out = display.CodersTable(coders)
	case "buildconf":
		conf, err := a.ffmpeg.BuildConf(ctx)
		if err != nil {
			return err
		}
		out = display.BuildConfTable(conf)
	case "params":
		var err error
		if out, err = paramsInfo(args[1:]); err != nil {
			return err
		}
	default:
		fmt.Fprintf(a.stderr, "unknown info topic %q\n%s\n", args[0], infoUsage)
		return errUsage
	}
	fmt.Fprintln(a.stdout, out)
	return nil
}

// paramsInfo lists the codec families, or the tables of one family.
// Audio families are looked up first.
func paramsInfo(args []string) (string, error) {
	if len(args) == 0 {
		return "audio: " + strings.Join(params.AudioCodecs(), ", ") + "\n" +
			"video: " + strings.Join(params.VideoCodecs(), ", "), nil
	}

	var tables []*params.Table
	var title string
	if aset, err := params.AudioTables(args[0]); err == nil {
		title = "audio " + aset.Codec
		tables = []*params.Table{aset.Bitrate, aset.Channels, aset.SampleRate, aset.BitDepth}
	} else {
		vset, verr := params.VideoTables(args[0])
		if verr != nil {
			return "", vmerrors.Validation("unknown codec %q (see 'videomass info params')", args[0])
		}
		title = "video " + vset.Codec
		tables = []*params.Table{
			vset.Preset, vset.Tune, vset.Profile, vset.Level, vset.CRF,
			vset.PixelFormat, vset.FrameRate, vset.Aspect, vset.Deinterlace, vset.Denoise,
		}
	}

	parts := []string{display.Banner(title)}
	for _, t := range tables {
		parts = append(parts, display.OptionsTable(t))
	}
	return strings.Join(parts, "\n"), nil
}

func (a *app) probe(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprintln(a.stderr, "usage: videomass probe files...")
		return errUsage
	}
	for i, path := range args {
		if err := checkInput(path); err != nil {
			return err
		}
		res, err := a.prober.Probe(ctx, path)
		if err != nil {
			return err
		}
		if i > 0 {
			fmt.Fprintln(a.stdout)
		}
		fmt.Fprintln(a.stdout, display.Banner(filepath.Base(path)))
		fmt.Fprintln(a.stdout, display.ProbeTable(res))
	}
	return nil
}

func (a *app) play(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("play", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	start := fs.String("start", "", "Start position (SS, MM:SS or HH:MM:SS)")
	duration := fs.String("duration", "", "Length to play")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(a.stderr, "usage: videomass play [-start T] [-duration T] file")
		return errUsage
	}
	path := fs.Arg(0)
	if err := checkInput(path); err != nil {
		return err
	}

	tr, err := parseTimeRange(*start, *duration)
	if err != nil {
		return err
	}
	if a.cfg.DryRun {
		argv := append([]string{"-hide_banner", "-autoexit"}, tr.Args()...)
		line, err := command.DryRunLine(a.ffplay, append(argv, path))
		if err != nil {
			return err
		}
		fmt.Fprintln(a.stdout, line)
		return nil
	}
	return a.ffplay.Play(ctx, path, tr.Args())
}

func (a *app) concat(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("concat", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	out := fs.String("o", "", "Output file")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if *out == "" || fs.NArg() < 2 {
		fmt.Fprintln(a.stderr, "usage: videomass concat -o OUT file1 file2 [files...]")
		return errUsage
	}
	if err := a.checkOutput(*out); err != nil {
		return err
	}

	c := concatenator.NewConcatenator(a.ffmpeg, a.cfg.StrictMode)
	if a.cfg.TempDir != "" {
		c.SetTempDir(a.cfg.TempDir)
	}
	cmd := concatenator.NewCommand(c, fs.Args(), *out)
	if a.cfg.DryRun {
		line, err := cmd.DryRun()
		if err != nil {
			return err
		}
		fmt.Fprintln(a.stdout, line)
		return nil
	}

	taskID := id.Task("concat")
	a.progress.Label(taskID, "concat "+filepath.Base(*out))
	return a.execute(ctx, []*orchestrator.Task{{ID: taskID, Command: cmd, Resource: orchestrator.ResourceIO}})
}

func (a *app) configCmd(args []string) error {
	if len(args) == 0 || args[0] == "show" {
		a.cfg.PrintConfig(a.stdout)
		return nil
	}
	if args[0] != "save" || len(args) != 2 {
		fmt.Fprintln(a.stderr, "usage: videomass config show | config save PATH")
		return errUsage
	}
	path := args[1]
	if err := a.checkOutput(path); err != nil {
		return err
	}
	if err := config.SaveConfigFile(a.cfg, path); err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, display.Success("saved configuration to %s", path))
	return nil
}
