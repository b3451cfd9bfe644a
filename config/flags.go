package config

import (
	"flag"
	"fmt"
	"io"
	"os"
)

// MergeFromFlags parses the global flags at the start of args and
// overrides config values with the ones given. Parsing stops at the first
// non-flag argument (the command); the rest of args is returned.
func (c *Config) MergeFromFlags(args []string) ([]string, error) {
	fs := flag.NewFlagSet("videomass", flag.ContinueOnError)
	fs.Usage = func() { PrintUsage(fs.Output()) }

	// Config file override (handled by Load before this function is called)
	_ = fs.String("config", "", "Path to config file (default: search standard locations)")

	// Binaries
	fs.StringVar(&c.Binaries.FFmpeg, "ffmpeg", c.Binaries.FFmpeg, "ffmpeg executable")
	fs.StringVar(&c.Binaries.FFprobe, "ffprobe", c.Binaries.FFprobe, "ffprobe executable")
	fs.StringVar(&c.Binaries.FFplay, "ffplay", c.Binaries.FFplay, "ffplay executable")

	// Locations
	fs.StringVar(&c.PresetsDir, "presets-dir", c.PresetsDir, "Directory holding *.prst preset files")
	fs.StringVar(&c.OutputDir, "output-dir", c.OutputDir, "Output directory (empty = next to each input)")
	fs.StringVar(&c.TempDir, "temp-dir", c.TempDir, "Directory for passlog and transform files")

	// Execution settings
	fs.IntVar(&c.Workers, "workers", c.Workers, "Concurrent ffmpeg processes")
	fs.IntVar(&c.Threads, "threads", c.Threads, "ffmpeg -threads value (0 = ffmpeg default)")
	fs.BoolVar(&c.Overwrite, "overwrite", c.Overwrite, "Replace existing output files")

	// Normalization targets
	fs.Float64Var(&c.Normalization.PeakTarget, "peak-target", c.Normalization.PeakTarget, "PEAK normalization target in dBFS")
	fs.Float64Var(&c.Normalization.RMSTarget, "rms-target", c.Normalization.RMSTarget, "RMS normalization target in dBFS")
	fs.Float64Var(&c.Normalization.LoudnormI, "loudnorm-i", c.Normalization.LoudnormI, "EBU R128 integrated loudness target in LUFS")
	fs.Float64Var(&c.Normalization.LoudnormTP, "loudnorm-tp", c.Normalization.LoudnormTP, "EBU R128 true peak target in dBTP")
	fs.Float64Var(&c.Normalization.LoudnormLRA, "loudnorm-lra", c.Normalization.LoudnormLRA, "EBU R128 loudness range target in LU")

	// Logging
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level: debug, info, warn, error")
	fs.StringVar(&c.LogFormat, "log-format", c.LogFormat, "Log format: pretty, json")

	// Behavioral flags
	fs.BoolVar(&c.StrictMode, "strict", c.StrictMode, "convert and concat: stop at the first bad input")
	noStrict := fs.Bool("no-strict", false, "convert and concat: skip bad inputs with a warning")
	fs.BoolVar(&c.Verbose, "verbose", c.Verbose, "Enable verbose logging")
	fs.BoolVar(&c.DryRun, "dry-run", c.DryRun, "Print command lines instead of running them")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// Note: Config file loading is handled by Load() before this function
	// is called. The -config flag is only used to specify which file to load.

	if *noStrict {
		c.StrictMode = false
	}

	logLevelSet := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "log-level" {
			logLevelSet = true
		}
	})
	if c.Verbose && !logLevelSet {
		c.LogLevel = "debug"
	}

	return fs.Args(), nil
}

// PrintUsage prints help text
func PrintUsage(w io.Writer) {
	if w == nil {
		w = os.Stderr
	}
	fmt.Fprintf(w, `videomass - command line front-end for ffmpeg presets and conversions

USAGE:
  videomass [GLOBAL FLAGS] COMMAND [FLAGS] [ARGS]

COMMANDS:
  convert   Convert files with a preset profile or ad-hoc codec parameters
  presets   Manage preset files and their profiles
  volume    Measure peak/mean volume and the gain to a target, or EBU R128 loudness
  info      List ffmpeg formats, codecs, encoders, decoders, build options, parameter tables
  probe     Show container, streams and chapters of a media file
  play      Play a file with ffplay
  concat    Join files with the same codecs without re-encoding
  config    Show or save the effective configuration

GLOBAL FLAGS:
  -config string
        Path to config file (default: search ./videomass.yaml, <user config dir>/videomass/config.yaml, /etc/videomass/config.yaml)
  -ffmpeg, -ffprobe, -ffplay string
        Executables to run (default: looked up in PATH)
  -presets-dir string
        Directory holding *.prst preset files
  -output-dir string
        Output directory (default: next to each input)
  -temp-dir string
        Directory for passlog and transform files (default: output directory)
  -workers int
        Concurrent ffmpeg processes (default: 1)
  -threads int
        ffmpeg -threads value, 0 = ffmpeg default
  -overwrite
        Replace existing output files
  -peak-target, -rms-target float
        Normalization targets in dBFS (default: -1, -20)
  -loudnorm-i, -loudnorm-tp, -loudnorm-lra float
        EBU R128 targets (default: -23, -1, 11)
  -log-level string
        debug, info, warn, error (default: info)
  -log-format string
        pretty, json (default: pretty)
  -strict / -no-strict
        convert and concat: stop at the first missing, unsupported or
        conflicting input, or skip it with a warning (default: strict)
  -verbose
        Debug logging
  -dry-run
        Print the ffmpeg command lines instead of running them

EXAMPLES:
  # Convert with a stored profile, normalizing to EBU R128
  videomass convert -preset default -profile "H.264 CRF 23 + AAC" -normalize ebu movie.mkv

  # Ad-hoc audio conversion using parameter table indexes
  videomass info params mp3
  videomass convert -audio-codec mp3 -audio-bitrate-index 1 song.flac

  # Peak levels of a few files
  videomass volume -mode peak *.flac

  # Show the command lines only
  videomass -dry-run convert -preset webm -profile "VP8 + Vorbis" clip.mov

CONFIGURATION FILES:
  Config files are searched in order:
    1. ./videomass.yaml
    2. <user config dir>/videomass/config.yaml
    3. /etc/videomass/config.yaml

  Priority: CLI flags > Config file > Defaults

`)
}

// PrintConfig prints the effective configuration
func (c *Config) PrintConfig(w io.Writer) {
	fmt.Fprintln(w, "═══════════════════════════════════════════════════════════")
	fmt.Fprintln(w, "                 Effective Configuration                  ")
	fmt.Fprintln(w, "═══════════════════════════════════════════════════════════")
	fmt.Fprintf(w, "ffmpeg:         %s\n", c.Binaries.FFmpeg)
	fmt.Fprintf(w, "ffprobe:        %s\n", c.Binaries.FFprobe)
	fmt.Fprintf(w, "ffplay:         %s\n", c.Binaries.FFplay)
	fmt.Fprintf(w, "Presets Dir:    %s\n", c.PresetsDir)
	outputDir := c.OutputDir
	if outputDir == "" {
		outputDir = "(next to input)"
	}
	fmt.Fprintf(w, "Output Dir:     %s\n", outputDir)
	if c.TempDir != "" {
		fmt.Fprintf(w, "Temp Dir:       %s\n", c.TempDir)
	}
	fmt.Fprintf(w, "Workers:        %d\n", c.Workers)
	fmt.Fprintf(w, "Threads:        %d\n", c.Threads)

	fmt.Fprintln(w, "\nNormalization:")
	fmt.Fprintf(w, "  Peak Target:  %.1f dBFS\n", c.Normalization.PeakTarget)
	fmt.Fprintf(w, "  RMS Target:   %.1f dBFS\n", c.Normalization.RMSTarget)
	fmt.Fprintf(w, "  Loudnorm:     I=%g TP=%g LRA=%g\n",
		c.Normalization.LoudnormI, c.Normalization.LoudnormTP, c.Normalization.LoudnormLRA)

	fmt.Fprintln(w, "\nBehavioral Flags:")
	fmt.Fprintf(w, "  Overwrite:     %v\n", c.Overwrite)
	fmt.Fprintf(w, "  Strict Mode:   %v\n", c.StrictMode)
	fmt.Fprintf(w, "  Verbose:       %v\n", c.Verbose)
	fmt.Fprintf(w, "  Dry Run:       %v\n", c.DryRun)
	fmt.Fprintf(w, "  Log:           %s (%s)\n", c.LogLevel, c.LogFormat)
	fmt.Fprintln(w, "═══════════════════════════════════════════════════════════")
}
