package config

import (
	"os"
	"path/filepath"

	"videomass/ffmpeg"
)

// Config holds all videomass configuration options
type Config struct {
	// External tools
	Binaries BinariesConfig `yaml:"binaries"`

	// Locations
	PresetsDir string `yaml:"presets_dir"` // *.prst files
	OutputDir  string `yaml:"output_dir"`  // empty = next to each input
	TempDir    string `yaml:"temp_dir"`    // passlog and transform files, empty = output dir

	// Execution settings
	Workers   int  `yaml:"workers"`   // concurrent ffmpeg processes, 1 = one in-flight operation
	Threads   int  `yaml:"threads"`   // -threads passed to ffmpeg, 0 = ffmpeg decides
	Overwrite bool `yaml:"overwrite"` // replace existing outputs

	// Audio normalization defaults
	Normalization NormalizationConfig `yaml:"normalization"`

	// Logging
	LogLevel  string `yaml:"log_level"`  // debug, info, warn, error
	LogFormat string `yaml:"log_format"` // pretty, json

	// Behavioral flags
	StrictMode bool `yaml:"strict_mode"` // concat fails on missing inputs instead of skipping them
	Verbose    bool `yaml:"verbose"`     // debug logging and ffmpeg command lines
	DryRun     bool `yaml:"dry_run"`     // print command lines instead of running them
}

// BinariesConfig holds the executables videomass drives
type BinariesConfig struct {
	FFmpeg  string `yaml:"ffmpeg"`
	FFprobe string `yaml:"ffprobe"`
	FFplay  string `yaml:"ffplay"`
}

// NormalizationConfig holds the targets used when a conversion or the
// volume command normalizes audio
type NormalizationConfig struct {
	PeakTarget  float64 `yaml:"peak_target"`  // dBFS for max_volume
	RMSTarget   float64 `yaml:"rms_target"`   // dBFS for mean_volume
	LoudnormI   float64 `yaml:"loudnorm_i"`   // LUFS
	LoudnormTP  float64 `yaml:"loudnorm_tp"`  // dBTP
	LoudnormLRA float64 `yaml:"loudnorm_lra"` // LU
}

// LoudnormTarget returns the EBU R128 targets as the ffmpeg package expects them.
func (n NormalizationConfig) LoudnormTarget() ffmpeg.LoudnormTarget {
	return ffmpeg.LoudnormTarget{I: n.LoudnormI, TP: n.LoudnormTP, LRA: n.LoudnormLRA}
}

// Target returns the dBFS target for a volumedetect level mode.
func (n NormalizationConfig) Target(mode ffmpeg.LevelMode) float64 {
	if mode == ffmpeg.LevelRMS {
		return n.RMSTarget
	}
	return n.PeakTarget
}

// DefaultConfig returns configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Binaries: BinariesConfig{
			FFmpeg:  "ffmpeg",
			FFprobe: "ffprobe",
			FFplay:  "ffplay",
		},

		PresetsDir: DefaultPresetsDir(),
		OutputDir:  "", // Next to the input
		TempDir:    "",

		Workers:   1, // One ffmpeg at a time
		Threads:   0, // ffmpeg default
		Overwrite: false,

		Normalization: NormalizationConfig{
			PeakTarget:  -1.0,
			RMSTarget:   -20.0,
			LoudnormI:   ffmpeg.DefaultLoudnormTarget.I,
			LoudnormTP:  ffmpeg.DefaultLoudnormTarget.TP,
			LoudnormLRA: ffmpeg.DefaultLoudnormTarget.LRA,
		},

		LogLevel:  "info",
		LogFormat: "pretty",

		StrictMode: true,
		Verbose:    false,
		DryRun:     false,
	}
}

// DefaultPresetsDir is $XDG_CONFIG_HOME/videomass/presets (or the
// platform equivalent), falling back to ./presets.
func DefaultPresetsDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "presets"
	}
	return filepath.Join(dir, "videomass", "presets")
}

// Copy creates a deep copy of the config
func (c *Config) Copy() *Config {
	copy := *c
	copy.Binaries = c.Binaries
	copy.Normalization = c.Normalization
	return &copy
}

// LogFormatValues returns valid log formats
func LogFormatValues() []string {
	return []string{"pretty", "json"}
}

// LogLevelValues returns valid log levels
func LogLevelValues() []string {
	return []string{"debug", "info", "warn", "error"}
}

func isOneOf(v string, valid []string) bool {
	for _, s := range valid {
		if v == s {
			return true
		}
	}
	return false
}
