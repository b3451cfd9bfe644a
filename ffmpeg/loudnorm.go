package ffmpeg

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"

	vmerrors "videomass/internal/errors"
)

// LoudnormTarget holds the EBU R128 targets passed to the loudnorm filter.
type LoudnormTarget struct {
	I   float64 `json:"i"`   // integrated loudness, LUFS
	TP  float64 `json:"tp"`  // true peak, dBTP
	LRA float64 `json:"lra"` // loudness range, LU
}

// DefaultLoudnormTarget is the EBU R128 broadcast target.
var DefaultLoudnormTarget = LoudnormTarget{I: -23, TP: -1, LRA: 11}

// Validate checks the ranges loudnorm accepts.
func (t LoudnormTarget) Validate() error {
	switch {
	case t.I < -70 || t.I > -5:
		return vmerrors.Validation("loudnorm I must be within [-70, -5], got %g", t.I)
	case t.TP < -9 || t.TP > 0:
		return vmerrors.Validation("loudnorm TP must be within [-9, 0], got %g", t.TP)
	case t.LRA < 1 || t.LRA > 50:
		return vmerrors.Validation("loudnorm LRA must be within [1, 50], got %g", t.LRA)
	}
	return nil
}

// MeasureFilter is the filter for the first (analysis) pass.
func (t LoudnormTarget) MeasureFilter() string {
	return fmt.Sprintf("loudnorm=I=%s:TP=%s:LRA=%s:print_format=json", ff(t.I), ff(t.TP), ff(t.LRA))
}

// ApplyFilter is the filter for the second pass, fed with the measurement.
func (t LoudnormTarget) ApplyFilter(m Loudness) string {
	return fmt.Sprintf(
		"loudnorm=I=%s:TP=%s:LRA=%s:measured_I=%s:measured_TP=%s:measured_LRA=%s:measured_thresh=%s:offset=%s:linear=true:print_format=summary",
		ff(t.I), ff(t.TP), ff(t.LRA),
		ff(m.InputI), ff(m.InputTP), ff(m.InputLRA), ff(m.InputThresh), ff(m.TargetOffset),
	)
}

// Loudness is the JSON block printed by loudnorm=print_format=json.
type Loudness struct {
	InputI            float64 `json:"input_i"`
	InputTP           float64 `json:"input_tp"`
	InputLRA          float64 `json:"input_lra"`
	InputThresh       float64 `json:"input_thresh"`
	OutputI           float64 `json:"output_i"`
	OutputTP          float64 `json:"output_tp"`
	OutputLRA         float64 `json:"output_lra"`
	OutputThresh      float64 `json:"output_thresh"`
	NormalizationType string  `json:"normalization_type"`
	TargetOffset      float64 `json:"target_offset"`
}

var requiredLoudnormKeys = []string{"input_i", "input_tp", "input_lra", "input_thresh"}

// ParseLoudnorm extracts the last JSON object in text and reads the
// loudnorm measurement from it. loudnorm prints every value as a string.
func ParseLoudnorm(text string) (Loudness, error) {
	var l Loudness

	start := strings.LastIndex(text, "{")
	if start < 0 {
		return l, vmerrors.Validation("loudnorm output has no JSON block")
	}
	end := strings.Index(text[start:], "}")
	if end < 0 {
		return l, vmerrors.Validation("loudnorm JSON block is not terminated")
	}
	block := text[start : start+end+1]
	if !gjson.Valid(block) {
		return l, vmerrors.Validation("loudnorm JSON block is malformed")
	}

	res := gjson.Parse(block)
	var missing []string
	for _, key := range requiredLoudnormKeys {
		if !res.Get(key).Exists() {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return l, vmerrors.Validation("loudnorm JSON lacks %s", strings.Join(missing, ", "))
	}

	l.InputI = number(res, "input_i")
	l.InputTP = number(res, "input_tp")
	l.InputLRA = number(res, "input_lra")
	l.InputThresh = number(res, "input_thresh")
	l.OutputI = number(res, "output_i")
	l.OutputTP = number(res, "output_tp")
	l.OutputLRA = number(res, "output_lra")
	l.OutputThresh = number(res, "output_thresh")
	l.TargetOffset = number(res, "target_offset")
	l.NormalizationType = res.Get("normalization_type").String()
	return l, nil
}

// number reads a value loudnorm may print as a quoted number or "-inf".
func number(res gjson.Result, key string) float64 {
	v := res.Get(key)
	if v.Type == gjson.Number {
		return v.Float()
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v.String()), 64)
	if err != nil {
		return 0
	}
	return f
}

// LoudnormArgs returns the analysis command for path.
func LoudnormArgs(path string, target LoudnormTarget) []string {
	return []string{
		"-hide_banner", "-nostdin",
		"-i", path,
		"-af", target.MeasureFilter(),
		"-vn", "-sn", "-dn",
		"-f", "null", NullDevice(),
	}
}

// MeasureLoudness runs the loudnorm analysis pass on path.
func (r *Runner) MeasureLoudness(ctx context.Context, path string, target LoudnormTarget) (Loudness, error) {
	out, err := r.Output(ctx, LoudnormArgs(path, target))
	if err != nil {
		return Loudness{}, err
	}
	l, err := ParseLoudnorm(out)
	if err != nil {
		return l, fmt.Errorf("%s: %w", path, err)
	}
	return l, nil
}

// MeasureLoudnesses measures paths with at most workers analyses in
// flight. Results keep the order of paths.
func (r *Runner) MeasureLoudnesses(ctx context.Context, paths []string, target LoudnormTarget, workers int) ([]Loudness, error) {
	if workers < 1 {
		workers = 1
	}
	results := make([]Loudness, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, p := range paths {
		g.Go(func() error {
			l, err := r.MeasureLoudness(gctx, p, target)
			if err != nil {
				return err
			}
			results[i] = l
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// ff formats a float the shortest way ffmpeg will parse back.
func ff(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
