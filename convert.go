package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"videomass/command"
	"videomass/command/audio"
	"videomass/command/conversion"
	"videomass/command/filters"
	"videomass/command/video"
	"videomass/display"
	"videomass/events"
	"videomass/ffmpeg"
	vmerrors "videomass/internal/errors"
	"videomass/internal/id"
	"videomass/internal/timeutil"
	"videomass/models"
	"videomass/orchestrator"
	"videomass/params"
)

// convertFlags are the flags of the convert command. Profile mode uses
// preset/profile; ad-hoc mode uses the codec table indexes.
type convertFlags struct {
	preset    string
	profile   string
	normalize string
	target    float64
	targetSet bool
	stabilize bool
	start     string
	duration  string
	outDir    string

	audioCodec string
	audioIdx   [4]int // bitrate, channels, sample rate, bit depth
	videoCodec string
	videoIdx   params.VideoIndexes
	deint      int
	denoise    int
	width      int
	height     int
	rotate     string
	crop       string
	dar        string
	sar        string
	interlace  string
	eq         string
	tonemap    string
	colorspace string
	colorIn    string
	cpuFilter  string
	gpuFilter  string
	hwaccel    string
	hwDevice   string
	hwEncoder  string
	ext        string
}

func (a *app) parseConvertFlags(args []string) (*convertFlags, []string, error) {
	f := &convertFlags{}
	fs := flag.NewFlagSet("convert", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	fs.Usage = func() {
		fmt.Fprintln(a.stderr, "usage: videomass convert -preset NAME -profile NAME [flags] files...")
		fmt.Fprintln(a.stderr, "       videomass convert -audio-codec C | -video-codec C [index flags] files...")
		fs.PrintDefaults()
	}

	fs.StringVar(&f.preset, "preset", "default", "Preset file holding the profile")
	fs.StringVar(&f.profile, "profile", "", "Profile name inside the preset")
	fs.StringVar(&f.normalize, "normalize", "none", "Audio normalization: none, peak, rms or ebu")
	fs.Float64Var(&f.target, "target", 0, "Target level in dBFS for peak/rms (default: from configuration)")
	fs.BoolVar(&f.stabilize, "stabilize", false, "Stabilize the video with vid.stab (adds an analysis pass)")
	fs.StringVar(&f.start, "start", "", "Start position (SS, MM:SS or HH:MM:SS)")
	fs.StringVar(&f.duration, "duration", "", "Length to convert (SS, MM:SS or HH:MM:SS)")
	fs.StringVar(&f.outDir, "o", a.cfg.OutputDir, "Output directory (default: next to each input)")

	fs.StringVar(&f.audioCodec, "audio-codec", "", "Ad-hoc audio codec family (see 'info params')")
	fs.IntVar(&f.audioIdx[0], "audio-bitrate-index", 0, "Audio bitrate/quality table index")
	fs.IntVar(&f.audioIdx[1], "audio-channels-index", 0, "Audio channels table index")
	fs.IntVar(&f.audioIdx[2], "audio-rate-index", 0, "Audio sample rate table index")
	fs.IntVar(&f.audioIdx[3], "audio-depth-index", 0, "Audio bit depth table index")

	fs.StringVar(&f.videoCodec, "video-codec", "", "Ad-hoc video codec family (see 'info params')")
	fs.IntVar(&f.videoIdx.Preset, "preset-index", 0, "Video preset table index")
	fs.IntVar(&f.videoIdx.Tune, "tune-index", 0, "Video tune table index")
	fs.IntVar(&f.videoIdx.Profile, "profile-index", 0, "Video profile table index")
	fs.IntVar(&f.videoIdx.Level, "level-index", 0, "Video level table index")
	fs.IntVar(&f.videoIdx.CRF, "crf-index", 0, "Video CRF table index")
	fs.IntVar(&f.videoIdx.PixelFormat, "pixfmt-index", 0, "Pixel format table index")
	fs.IntVar(&f.videoIdx.FrameRate, "fps-index", 0, "Frame rate table index")
	fs.IntVar(&f.videoIdx.Aspect, "aspect-index", 0, "Aspect ratio table index")
	fs.IntVar(&f.deint, "deinterlace-index", 0, "Deinterlace filter table index")
	fs.IntVar(&f.denoise, "denoise-index", 0, "Denoise filter table index")
	fs.IntVar(&f.width, "width", 0, "Scale to width (0 keeps the aspect ratio)")
	fs.IntVar(&f.height, "height", 0, "Scale to height (0 keeps the aspect ratio)")
	fs.StringVar(&f.rotate, "rotate", "", "Orientation: cw90, ccw90, 180, hflip or vflip")
	fs.StringVar(&f.crop, "crop", "", "Crop to W:H (centered) or W:H:X:Y")
	fs.StringVar(&f.dar, "dar", "", "Display aspect ratio, e.g. 16:9")
	fs.StringVar(&f.sar, "sar", "", "Sample aspect ratio, e.g. 1:1")
	fs.StringVar(&f.interlace, "interlace", "", "Interlace the output: tff or bff")
	fs.StringVar(&f.eq, "eq", "", "Color adjustment, e.g. contrast=1.1:brightness=0.05:saturation=1.2:gamma=0.9")
	fs.StringVar(&f.tonemap, "tonemap", "", "HDR to SDR tone mapping algorithm: hable, reinhard, mobius, ...")
	fs.StringVar(&f.colorspace, "colorspace", "", "Convert to colorspace, e.g. bt709")
	fs.StringVar(&f.colorIn, "colorspace-in", "", "Colorspace of the input when its tags are missing or wrong")
	fs.StringVar(&f.cpuFilter, "vfilter", "", "Extra CPU filters run ahead of the built-in chain")
	fs.StringVar(&f.gpuFilter, "gpu-filter", "", "Extra filters run on the accelerator")
	fs.StringVar(&f.hwaccel, "hwaccel", "", "Hardware decoding: vaapi, cuda, qsv, ...")
	fs.StringVar(&f.hwDevice, "hwaccel-device", "", "Accelerator device, e.g. /dev/dri/renderD128")
	fs.StringVar(&f.hwEncoder, "hw-encoder", "", "Hardware encoder, e.g. h264_vaapi or hevc_nvenc (implies its -hwaccel)")
	fs.StringVar(&f.ext, "ext", "", "Output extension for ad-hoc mode")

	if err := fs.Parse(args); err != nil {
		return nil, nil, errUsage
	}
	fs.Visit(func(fl *flag.Flag) {
		if fl.Name == "target" {
			f.targetSet = true
		}
	})
	if fs.NArg() == 0 {
		fs.Usage()
		return nil, nil, errUsage
	}
	return f, fs.Args(), nil
}

func (f *convertFlags) timeRange() (command.TimeRange, error) {
	return parseTimeRange(f.start, f.duration)
}

// parseTimeRange reads the -start and -duration flag values; empty values
// leave the range open.
func parseTimeRange(start, duration string) (command.TimeRange, error) {
	var r command.TimeRange
	var err error
	if start != "" {
		if r.Start, err = timeutil.ParseTimestamp(start); err != nil {
			return r, vmerrors.Validation("-start: %v", err)
		}
	}
	if duration != "" {
		if r.Duration, err = timeutil.ParseTimestamp(duration); err != nil {
			return r, vmerrors.Validation("-duration: %v", err)
		}
	}
	return r, nil
}

func (f *convertFlags) adHoc() bool {
	return f.profile == "" && (f.audioCodec != "" || f.videoCodec != "")
}

func (a *app) convert(ctx context.Context, args []string) error {
	f, files, err := a.parseConvertFlags(args)
	if err != nil {
		return err
	}
	if f.adHoc() {
		return a.convertAdHoc(ctx, f, files)
	}
	if f.profile == "" {
		return vmerrors.Validation("convert: -profile or an ad-hoc -audio-codec/-video-codec is required")
	}
	return a.convertProfile(ctx, f, files)
}

// normalization resolves -normalize and -target against the configuration.
func (a *app) normalization(f *convertFlags) (conversion.Normalization, float64, error) {
	norm, err := conversion.ParseNormalization(f.normalize)
	if err != nil {
		return "", 0, err
	}
	if f.targetSet {
		return norm, f.target, nil
	}
	mode := ffmpeg.LevelPeak
	if norm == conversion.NormalizeRMS {
		mode = ffmpeg.LevelRMS
	}
	return norm, a.cfg.Normalization.Target(mode), nil
}

func (a *app) convertProfile(ctx context.Context, f *convertFlags, files []string) error {
	if err := a.ensurePresets(); err != nil {
		return err
	}
	profile, err := a.store.Profile(f.preset, f.profile)
	if err != nil {
		return err
	}
	norm, target, err := a.normalization(f)
	if err != nil {
		return err
	}
	tr, err := f.timeRange()
	if err != nil {
		return err
	}

	opts := conversion.Options{
		TimeRange: tr,
		Normalize: norm,
		Target:    target,
		Loudnorm:  a.cfg.Normalization.LoudnormTarget(),
		Stabilize: f.stabilize,
		Threads:   a.cfg.Threads,
		TempDir:   a.cfg.TempDir,
		Runner:    a.ffmpeg,
		Progress:  events.ProgressPublisher(a.bus),
	}

	batch := conversion.NewBatch()
	var jobs []*conversion.Job
	for _, in := range files {
		job, err := a.planJob(ctx, batch, *profile, in, f.outDir, opts)
		if err != nil {
			if a.cfg.StrictMode {
				return err
			}
			a.log.Warn("skipping input", "input", in, "error", err)
			continue
		}
		jobs = append(jobs, job)
	}
	if len(jobs) == 0 {
		return vmerrors.Validation("nothing to convert")
	}
	defer func() {
		for _, job := range jobs {
			if err := job.Cleanup(); err != nil {
				a.log.Warn("cleanup failed", "job", job.ID, "error", err)
			}
		}
	}()

	if a.cfg.DryRun {
		for _, job := range jobs {
			lines, err := job.DryRun()
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "# %s -> %s (%s)\n", job.Input, job.Output, job.Profile.Name)
			for _, line := range lines {
				fmt.Fprintln(a.stdout, line)
			}
		}
		return nil
	}

	var tasks []*orchestrator.Task
	for _, job := range jobs {
		for _, t := range job.Tasks(orchestrator.ResourceFFmpeg) {
			a.progress.Label(t.ID, fmt.Sprintf("%s [%s]", filepath.Base(job.Input), t.Command.GetTaskType()))
			tasks = append(tasks, t)
		}
	}
	return a.execute(ctx, tasks)
}

// planJob checks the input and output of one file and plans its passes.
// The output is claimed in batch so no two inputs write the same file.
func (a *app) planJob(ctx context.Context, batch *conversion.Batch, p models.Profile, input, outDir string, opts conversion.Options) (*conversion.Job, error) {
	if err := checkInput(input); err != nil {
		return nil, err
	}
	if !a.cfg.DryRun {
		opts.Duration = a.duration(ctx, input)
	}
	job, err := conversion.Plan(p, input, outDir, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", input, err)
	}
	if err := a.checkOutput(job.Output); err != nil {
		return nil, err
	}
	if err := batch.Claim(input, job.Output); err != nil {
		return nil, err
	}
	return job, nil
}

// duration probes input for progress percentages. Unknown durations only
// cost the percentage, so failures are logged and ignored.
func (a *app) duration(ctx context.Context, input string) float64 {
	d, err := a.prober.Duration(ctx, input)
	if err != nil {
		a.log.Debug("no duration, progress will not show percentages", "input", input, "error", err)
		return 0
	}
	return d
}

func checkInput(path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return vmerrors.NotFound("input %s does not exist", path)
		}
		return vmerrors.Unavailable("input %s: %v", path, err).WithCause(err)
	}
	if fi.IsDir() {
		return vmerrors.Validation("input %s is a directory", path)
	}
	return nil
}

// checkOutput refuses to replace an existing file unless overwrite is set.
func (a *app) checkOutput(path string) error {
	if a.cfg.Overwrite {
		return nil
	}
	if _, err := os.Stat(path); err == nil {
		return vmerrors.AlreadyExists("output %s already exists (use -overwrite to replace it)", path)
	}
	return nil
}

// execute runs tasks through the orchestrator and prints the results.
func (a *app) execute(ctx context.Context, tasks []*orchestrator.Task) error {
	o := a.scheduler()
	if err := o.AddTasks(tasks...); err != nil {
		return err
	}
	results, runErr := o.Execute(ctx)
	a.progress.Close()
	a.log.Debug("run finished", "stats", o.GetStats())
	if len(results) > 0 {
		fmt.Fprintln(a.stdout, display.ResultsTable(results))
	}
	if runErr != nil {
		return runErr
	}
	ok, failed, skipped := models.Summarize(results)
	if failed > 0 || skipped > 0 {
		return vmerrors.Exec("%d task(s) failed, %d skipped, %d done", failed, skipped, ok)
	}
	fmt.Fprintln(a.stderr, display.Success("%d task(s) done", ok))
	return nil
}

// adHocOutput names the output of an ad-hoc conversion.
func adHocOutput(input, outDir, ext string) string {
	if outDir == "" {
		outDir = filepath.Dir(input)
	}
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	return filepath.Join(outDir, base+"."+strings.TrimPrefix(ext, "."))
}

func (a *app) convertAdHoc(ctx context.Context, f *convertFlags, files []string) error {
	tr, err := f.timeRange()
	if err != nil {
		return err
	}
	norm, target, err := a.normalization(f)
	if err != nil {
		return err
	}
	if norm == conversion.NormalizeEBU {
		return vmerrors.Validation("ebu normalization needs a profile conversion")
	}
	if f.stabilize {
		return vmerrors.Validation("-stabilize needs a profile conversion (it adds an analysis pass)")
	}

	var aset *params.AudioSet
	var asel params.Selection
	if f.audioCodec != "" {
		if aset, err = params.AudioTables(f.audioCodec); err != nil {
			return err
		}
		if asel, err = aset.Select(f.audioIdx[0], f.audioIdx[1], f.audioIdx[2], f.audioIdx[3]); err != nil {
			return err
		}
	}

	batch := conversion.NewBatch()
	var tasks []*orchestrator.Task
	var lines []string
	for _, in := range files {
		if err := checkInput(in); err != nil {
			if a.cfg.StrictMode {
				return err
			}
			a.log.Warn("skipping input", "input", in, "error", err)
			continue
		}
		gain, err := a.adHocGain(ctx, in, norm, target)
		if err != nil {
			return err
		}

		var cmd command.Command
		var taskID string
		if f.videoCodec != "" {
			taskID = id.Task("video")
			vb, err := a.videoCommand(f, in, tr, aset, asel, gain)
			if err != nil {
				return err
			}
			cmd = vb.SetTaskID(taskID).SetDuration(a.durationUnlessDryRun(ctx, in))
		} else {
			taskID = id.Task("audio")
			ext := f.ext
			if ext == "" {
				ext = aset.Extension
			}
			ab := audio.NewAudioBuilder(in, adHocOutput(in, f.outDir, ext))
			ab.SetParams(aset, asel).
				SetTimeRange(tr).
				SetRunner(a.ffmpeg).
				SetProgressCallback(events.ProgressPublisher(a.bus))
			if gain != nil {
				ab.SetGain(*gain)
			}
			cmd = ab.SetTaskID(taskID).SetDuration(a.durationUnlessDryRun(ctx, in))
		}

		err = a.checkOutput(cmd.GetOutputPath())
		if err == nil {
			err = batch.Claim(in, cmd.GetOutputPath())
		}
		if err != nil {
			if a.cfg.StrictMode {
				return err
			}
			a.log.Warn("skipping input", "input", in, "error", err)
			continue
		}
		if a.cfg.DryRun {
			line, err := cmd.DryRun()
			if err != nil {
				return err
			}
			lines = append(lines, line)
			continue
		}
		a.progress.Label(taskID, fmt.Sprintf("%s [%s]", filepath.Base(in), cmd.GetTaskType()))
		tasks = append(tasks, &orchestrator.Task{ID: taskID, Command: cmd, Resource: orchestrator.ResourceFFmpeg})
	}

	if a.cfg.DryRun {
		for _, l := range lines {
			fmt.Fprintln(a.stdout, l)
		}
		return nil
	}
	if len(tasks) == 0 {
		return vmerrors.Validation("nothing to convert")
	}
	return a.execute(ctx, tasks)
}

func (a *app) durationUnlessDryRun(ctx context.Context, input string) float64 {
	if a.cfg.DryRun {
		return 0
	}
	return a.duration(ctx, input)
}

// adHocGain measures input with volumedetect for peak/rms normalization.
// A dry run cannot measure, so the gain is left out of the preview.
func (a *app) adHocGain(ctx context.Context, input string, norm conversion.Normalization, target float64) (*ffmpeg.Gain, error) {
	if norm != conversion.NormalizePeak && norm != conversion.NormalizeRMS {
		return nil, nil
	}
	if a.cfg.DryRun {
		a.log.Info("dry run: volume gain is computed when the conversion runs", "input", input)
		return nil, nil
	}
	v, err := a.ffmpeg.DetectVolume(ctx, input)
	if err != nil {
		return nil, err
	}
	mode := ffmpeg.LevelPeak
	if norm == conversion.NormalizeRMS {
		mode = ffmpeg.LevelRMS
	}
	g := ffmpeg.ComputeGain(v, mode, target)
	if g.Clipping {
		a.log.Warn("gain will clip", "input", input, "gain_db", g.Offset, "predicted_peak", g.PredictedPeak)
	}
	return &g, nil
}

func (a *app) videoCommand(f *convertFlags, in string, tr command.TimeRange, aset *params.AudioSet, asel params.Selection, gain *ffmpeg.Gain) (*video.VideoBuilder, error) {
	vset, err := params.VideoTables(f.videoCodec)
	if err != nil {
		return nil, err
	}
	vsel, err := vset.Select(f.videoIdx)
	if err != nil {
		return nil, err
	}
	vf, err := videoFilters(f, vset)
	if err != nil {
		return nil, err
	}
	accel, err := video.ParseHardwareAccel(f.hwaccel)
	if err != nil {
		return nil, err
	}

	ext := f.ext
	if ext == "" {
		ext = "mkv"
	}
	vb := video.NewVideoBuilder(in, adHocOutput(in, f.outDir, ext)).
		SetParams(vset, vsel).
		SetTimeRange(tr).
		SetRunner(a.ffmpeg).
		SetProgressCallback(events.ProgressPublisher(a.bus))

	if f.hwEncoder != "" {
		if vset.IsCopy() {
			return nil, vmerrors.Validation("-hw-encoder cannot be combined with a stream copy")
		}
		encAccel, err := video.HardwareEncoderAccel(f.hwEncoder)
		if err != nil {
			return nil, err
		}
		if accel != video.HWAccelNone && accel != encAccel {
			return nil, vmerrors.Validation("-hw-encoder %s runs on %s, not -hwaccel %s", f.hwEncoder, encAccel, accel)
		}
		accel = encAccel
		vb.SetHardwareEncoder(f.hwEncoder, accel)
	}
	if accel != video.HWAccelNone {
		vb.SetHardwareAccel(accel, f.hwDevice)
	} else if f.gpuFilter != "" {
		return nil, vmerrors.Validation("-gpu-filter needs -hwaccel or -hw-encoder")
	}

	// A hardware encoder scales on the device; everything else uses the
	// CPU chain.
	if f.hwEncoder != "" {
		vb.AddGPUScale(f.width, f.height)
	} else {
		vf.Scale = filters.Scale(f.width, f.height)
	}
	if f.gpuFilter != "" {
		vb.AddGPUFilter(f.gpuFilter)
	}
	if f.cpuFilter != "" {
		vb.AddCPUFilter(f.cpuFilter)
	}
	if f.tonemap != "" {
		vb.AddToneMapping(f.tonemap)
	}
	if f.colorspace != "" {
		vb.AddColorspaceConversion(f.colorIn, f.colorspace)
	} else if f.colorIn != "" {
		return nil, vmerrors.Validation("-colorspace-in needs -colorspace")
	}
	vb.SetVideoFilters(vf)

	if aset != nil {
		codec := aset.Encoder
		args := asel.Args()
		if codec == "" && len(args) >= 2 && args[0] == "-c:a" {
			codec, args = args[1], args[2:]
		}
		vb.SetAudioCodec(codec, args...)
	}
	if gain != nil {
		var af filters.AudioFilters
		af.Gain = gain.Filter()
		vb.SetAudioFilters(af)
	}
	if a.cfg.Threads > 0 {
		vb.AddExtraArgs("-threads", fmt.Sprint(a.cfg.Threads))
	}
	return vb, nil
}

// videoFilters builds the fixed-order chain from the filter flags, except
// Scale, which depends on where the frames are processed.
func videoFilters(f *convertFlags, vset *params.VideoSet) (filters.VideoFilters, error) {
	var vf filters.VideoFilters
	deint, err := vset.Deinterlace.Select(f.deint)
	if err != nil {
		return vf, err
	}
	denoise, err := vset.Denoise.Select(f.denoise)
	if err != nil {
		return vf, err
	}
	orientation, err := filters.ParseOrientation(f.rotate)
	if err != nil {
		return vf, vmerrors.Validation("-rotate: %v", err)
	}
	vf.Deinterlace = deint.Flag
	vf.Denoise = denoise.Flag
	vf.Orientation = filters.Rotate(orientation)

	if vf.Interlace, err = filters.ParseInterlace(f.interlace); err != nil {
		return vf, vmerrors.Validation("-interlace: %v", err)
	}
	if vf.Crop, err = filters.ParseCrop(f.crop); err != nil {
		return vf, vmerrors.Validation("-crop: %v", err)
	}
	if f.dar != "" {
		num, den, err := filters.ParseRatio(f.dar)
		if err != nil {
			return vf, vmerrors.Validation("-dar: %v", err)
		}
		vf.SetDAR = filters.SetDAR(num, den)
	}
	if f.sar != "" {
		num, den, err := filters.ParseRatio(f.sar)
		if err != nil {
			return vf, vmerrors.Validation("-sar: %v", err)
		}
		vf.SetSAR = filters.SetSAR(num, den)
	}
	eq, err := filters.ParseEq(f.eq)
	if err != nil {
		return vf, vmerrors.Validation("-eq: %v", err)
	}
	vf.Color = eq.Fragment()
	return vf, nil
}
