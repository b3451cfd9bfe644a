package ffmpeg

import (
	"bufio"
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	vmerrors "videomass/internal/errors"
)

// LevelMode selects which volumedetect figure drives a gain decision.
type LevelMode string

const (
	LevelPeak LevelMode = "peak" // max_volume
	LevelRMS  LevelMode = "rms"  // mean_volume
)

// ParseLevelMode accepts "peak" or "rms" in any case.
func ParseLevelMode(s string) (LevelMode, error) {
	switch LevelMode(strings.ToLower(strings.TrimSpace(s))) {
	case LevelPeak:
		return LevelPeak, nil
	case LevelRMS:
		return LevelRMS, nil
	default:
		return "", vmerrors.Validation("unknown level mode %q (want peak or rms)", s)
	}
}

// Volume is the volumedetect result for one file, in dBFS.
type Volume struct {
	Path       string  `json:"path"`
	MaxVolume  float64 `json:"max_volume"`
	MeanVolume float64 `json:"mean_volume"`
}

// ParseVolumedetect reads the max_volume and mean_volume lines printed by
// the volumedetect filter. Both must be present.
func ParseVolumedetect(text string) (Volume, error) {
	var v Volume
	var haveMax, haveMean bool

	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		line := scanner.Text()
		if val, ok := volumeField(line, "max_volume:"); ok {
			v.MaxVolume, haveMax = val, true
		} else if val, ok := volumeField(line, "mean_volume:"); ok {
			v.MeanVolume, haveMean = val, true
		}
	}

	if !haveMax || !haveMean {
		return v, vmerrors.Validation("volumedetect output has no max_volume/mean_volume")
	}
	return v, nil
}

// volumeField parses "... key: -12.3 dB".
func volumeField(line, key string) (float64, bool) {
	i := strings.Index(line, key)
	if i < 0 {
		return 0, false
	}
	fields := strings.Fields(line[i+len(key):])
	if len(fields) == 0 {
		return 0, false
	}
	val, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, false
	}
	return val, true
}

// VolumedetectArgs returns the measurement command for path.
func VolumedetectArgs(path string) []string {
	return []string{
		"-hide_banner", "-nostdin",
		"-i", path,
		"-af", "volumedetect",
		"-vn", "-sn", "-dn",
		"-f", "null", NullDevice(),
	}
}

// DetectVolume measures one file.
func (r *Runner) DetectVolume(ctx context.Context, path string) (Volume, error) {
	out, err := r.Output(ctx, VolumedetectArgs(path))
	if err != nil {
		return Volume{Path: path}, err
	}
	v, err := ParseVolumedetect(out)
	v.Path = path
	if err != nil {
		return v, fmt.Errorf("%s: %w", path, err)
	}
	return v, nil
}

// DetectVolumes measures several files with at most workers concurrent
// processes. Results follow the order of paths; the first failure cancels
// the rest.
func (r *Runner) DetectVolumes(ctx context.Context, paths []string, workers int) ([]Volume, error) {
	if workers < 1 {
		workers = 1
	}
	results := make([]Volume, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, p := range paths {
		g.Go(func() error {
			v, err := r.DetectVolume(gctx, p)
			if err != nil {
				return err
			}
			results[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Gain is the decision derived from a measurement and a target level.
type Gain struct {
	Mode          LevelMode `json:"mode"`
	Target        float64   `json:"target"`
	Measured      float64   `json:"measured"`
	Offset        float64   `json:"offset"`
	PredictedPeak float64   `json:"predicted_peak"`
	Clipping      bool      `json:"clipping"`
}

// ComputeGain returns offset = target - measured, where measured is the
// peak (max_volume) or the RMS (mean_volume) level. The predicted peak is
// max_volume + offset; anything above 0 dBFS clips. Values are rounded to
// one decimal as volumedetect prints them.
func ComputeGain(v Volume, mode LevelMode, target float64) Gain {
	measured := v.MaxVolume
	if mode == LevelRMS {
		measured = v.MeanVolume
	}
	offset := round1(target - measured)
	peak := round1(v.MaxVolume + offset)
	return Gain{
		Mode:          mode,
		Target:        target,
		Measured:      measured,
		Offset:        offset,
		PredictedPeak: peak,
		Clipping:      peak > 0,
	}
}

// Filter returns the volume filter fragment, or "" when no gain applies.
func (g Gain) Filter() string {
	if g.Offset == 0 {
		return ""
	}
	return "volume=" + strconv.FormatFloat(g.Offset, 'f', 1, 64) + "dB"
}

func round1(v float64) float64 {
	r := math.Round(v*10) / 10
	if r == 0 {
		return 0 // drop negative zero
	}
	return r
}
