package conversion

import (
	"strings"

	"videomass/command"
	"videomass/command/filters"
	"videomass/ffmpeg"
	vmerrors "videomass/internal/errors"
	"videomass/models"
)

// Normalization selects how the audio level of the output is adjusted.
type Normalization string

const (
	NormalizeNone Normalization = "none"
	NormalizePeak Normalization = "peak" // volumedetect max_volume
	NormalizeRMS  Normalization = "rms"  // volumedetect mean_volume
	NormalizeEBU  Normalization = "ebu"  // two-pass loudnorm
)

// ParseNormalization accepts the Normalization names; "" means none.
func ParseNormalization(s string) (Normalization, error) {
	switch n := Normalization(strings.ToLower(strings.TrimSpace(s))); n {
	case "", NormalizeNone:
		return NormalizeNone, nil
	case NormalizePeak, NormalizeRMS, NormalizeEBU:
		return n, nil
	default:
		return "", vmerrors.Validation("unknown normalization %q (want none, peak, rms or ebu)", s)
	}
}

// levelMode maps PEAK/RMS to the volumedetect field the gain is based on.
func (n Normalization) levelMode() ffmpeg.LevelMode {
	if n == NormalizeRMS {
		return ffmpeg.LevelRMS
	}
	return ffmpeg.LevelPeak
}

func (n Normalization) usesVolumedetect() bool {
	return n == NormalizePeak || n == NormalizeRMS
}

// Options tunes how Plan turns a profile into passes.
type Options struct {
	TimeRange command.TimeRange

	Normalize Normalization
	Target    float64               // dBFS target for peak and rms
	Loudnorm  ffmpeg.LoudnormTarget // zero value means DefaultLoudnormTarget

	// Pre-measured levels skip the measurement pass.
	Volume   *ffmpeg.Volume
	Loudness *ffmpeg.Loudness

	Stabilize bool
	Vidstab   filters.Vidstab // zero value means DefaultVidstab; TRF is set by Plan

	Threads  int    // -threads, 0 leaves the ffmpeg default
	TempDir  string // passlog and transform files, defaults to the output directory
	Duration float64

	Runner   *ffmpeg.Runner
	Progress models.ProgressCallback
}

func (o *Options) applyDefaults() {
	if o.Normalize == "" {
		o.Normalize = NormalizeNone
	}
	if o.Loudnorm == (ffmpeg.LoudnormTarget{}) {
		o.Loudnorm = ffmpeg.DefaultLoudnormTarget
	}
	if o.Stabilize && o.Vidstab.Shakiness == 0 {
		o.Vidstab = filters.DefaultVidstab(o.Vidstab.TRF)
	}
}

// Validate checks the options after defaults are applied.
func (o *Options) Validate() error {
	if err := o.TimeRange.Validate(); err != nil {
		return err
	}
	if _, err := ParseNormalization(string(o.Normalize)); err != nil {
		return err
	}
	if o.Normalize.usesVolumedetect() && o.Target > 0 {
		return vmerrors.Validation("target level must not exceed 0 dBFS, got %g", o.Target)
	}
	if o.Normalize == NormalizeEBU {
		if err := o.Loudnorm.Validate(); err != nil {
			return err
		}
	}
	if o.Threads < 0 {
		return vmerrors.Validation("threads must not be negative, got %d", o.Threads)
	}
	if o.Stabilize {
		if err := o.Vidstab.Validate(); err != nil {
			return vmerrors.Validation("%s", err.Error())
		}
	}
	return nil
}
