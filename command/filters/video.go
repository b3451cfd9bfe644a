// Package filters assembles ffmpeg filter chains: a fixed-order video chain
// for -vf and an audio chain for -af.
package filters

import (
	"fmt"
	"strconv"
	"strings"
)

// VideoFilters holds up to ten optional fragments. Chain always emits them
// in field order, whatever order they were set in.
type VideoFilters struct {
	Deinterlace   string
	Interlace     string
	Denoise       string
	Crop          string
	Scale         string
	SetDAR        string
	SetSAR        string
	Orientation   string
	Color         string
	Stabilization string
}

// Fragments returns the non-empty fragments in chain order.
func (f VideoFilters) Fragments() []string {
	all := []string{
		f.Deinterlace,
		f.Interlace,
		f.Denoise,
		f.Crop,
		f.Scale,
		f.SetDAR,
		f.SetSAR,
		f.Orientation,
		f.Color,
		f.Stabilization,
	}
	out := make([]string, 0, len(all))
	for _, frag := range all {
		if frag = strings.TrimSpace(frag); frag != "" {
			out = append(out, frag)
		}
	}
	return out
}

// IsEmpty reports whether no fragment is set.
func (f VideoFilters) IsEmpty() bool {
	return len(f.Fragments()) == 0
}

// Chain joins the fragments with commas; "" when none is set.
func (f VideoFilters) Chain() string {
	return strings.Join(f.Fragments(), ",")
}

// Args returns ["-vf", chain], or nil when the chain is empty.
func (f VideoFilters) Args() []string {
	if c := f.Chain(); c != "" {
		return []string{"-vf", c}
	}
	return nil
}

// Scale resizes to width x height. -1 keeps the aspect ratio, -2 also keeps
// the result divisible by two.
func Scale(width, height int) string {
	if width == 0 && height == 0 {
		return ""
	}
	if width == 0 {
		width = -2
	}
	if height == 0 {
		height = -2
	}
	return fmt.Sprintf("scale=%d:%d", width, height)
}

// Crop cuts a width x height rectangle at x,y. A negative x or y centers
// the rectangle on that axis.
func Crop(width, height, x, y int) string {
	if width <= 0 || height <= 0 {
		return ""
	}
	xs, ys := strconv.Itoa(x), strconv.Itoa(y)
	if x < 0 {
		xs = "(in_w-out_w)/2"
	}
	if y < 0 {
		ys = "(in_h-out_h)/2"
	}
	return fmt.Sprintf("crop=%d:%d:%s:%s", width, height, xs, ys)
}

// SetDAR sets the display aspect ratio, e.g. SetDAR(16, 9).
func SetDAR(num, den int) string {
	if num <= 0 || den <= 0 {
		return ""
	}
	return fmt.Sprintf("setdar=%d/%d", num, den)
}

// SetSAR sets the sample aspect ratio, e.g. SetSAR(1, 1) for square pixels.
func SetSAR(num, den int) string {
	if num <= 0 || den <= 0 {
		return ""
	}
	return fmt.Sprintf("setsar=%d/%d", num, den)
}

// Orientation is a rotation or flip of the frame.
type Orientation string

const (
	OrientationNone      Orientation = ""
	OrientationCW90      Orientation = "cw90"
	OrientationCCW90     Orientation = "ccw90"
	Orientation180       Orientation = "180"
	OrientationFlipHoriz Orientation = "hflip"
	OrientationFlipVert  Orientation = "vflip"
)

// ParseOrientation accepts the Orientation names.
func ParseOrientation(s string) (Orientation, error) {
	switch o := Orientation(strings.ToLower(strings.TrimSpace(s))); o {
	case OrientationNone, OrientationCW90, OrientationCCW90, Orientation180, OrientationFlipHoriz, OrientationFlipVert:
		return o, nil
	default:
		return "", fmt.Errorf("unknown orientation %q", s)
	}
}

// Rotate returns the transpose/flip fragment for o.
func Rotate(o Orientation) string {
	switch o {
	case OrientationCW90:
		return "transpose=1"
	case OrientationCCW90:
		return "transpose=2"
	case Orientation180:
		return "transpose=2,transpose=2"
	case OrientationFlipHoriz:
		return "hflip"
	case OrientationFlipVert:
		return "vflip"
	default:
		return ""
	}
}

// YadifMode selects how yadif emits frames.
type YadifMode int

const (
	YadifSendFrame YadifMode = 0 // one frame per frame
	YadifSendField YadifMode = 1 // one frame per field (doubles the rate)
)

// Yadif deinterlaces. With interlacedOnly only frames flagged as
// interlaced are processed.
func Yadif(mode YadifMode, interlacedOnly bool) string {
	deint := 0
	if interlacedOnly {
		deint = 1
	}
	return fmt.Sprintf("yadif=mode=%d:parity=-1:deint=%d", mode, deint)
}

// Interlace merges progressive frames into interlaced ones.
func Interlace(topFieldFirst bool) string {
	scan := "bff"
	if topFieldFirst {
		scan = "tff"
	}
	return "interlace=scan=" + scan + ":lowpass=linear"
}

// Hqdn3d returns a denoise fragment for level 1 (light) to 3 (strong);
// anything else yields "".
func Hqdn3d(level int) string {
	switch level {
	case 1:
		return "hqdn3d=2:1:2:3"
	case 2:
		return "hqdn3d=4:3:6:4.5"
	case 3:
		return "hqdn3d=8:6:12:9"
	default:
		return ""
	}
}

// Nlmeans returns the non-local means denoiser at strength s.
func Nlmeans(s float64) string {
	if s <= 0 {
		return ""
	}
	return "nlmeans=s=" + strconv.FormatFloat(s, 'f', -1, 64)
}

// Eq adjusts colors. Zero values leave the filter default in place.
type Eq struct {
	Contrast   float64 // default 1
	Brightness float64 // default 0
	Saturation float64 // default 1
	Gamma      float64 // default 1
}

// Fragment returns the eq filter, or "" when nothing changes.
func (e Eq) Fragment() string {
	var opts []string
	add := func(name string, v, def float64) {
		if v != 0 && v != def {
			opts = append(opts, name+"="+strconv.FormatFloat(v, 'f', -1, 64))
		}
	}
	add("contrast", e.Contrast, 1)
	add("brightness", e.Brightness, 0)
	add("saturation", e.Saturation, 1)
	add("gamma", e.Gamma, 1)
	if len(opts) == 0 {
		return ""
	}
	return "eq=" + strings.Join(opts, ":")
}

// EscapeValue escapes a filter option value such as a file path so that
// ':' and quotes do not end the option.
func EscapeValue(v string) string {
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`, `:`, `\:`)
	return r.Replace(v)
}

// EscapeGraph escapes a filter description for the filtergraph parser,
// which strips one level of escaping before the filter sees its options.
func EscapeGraph(v string) string {
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`, `[`, `\[`, `]`, `\]`, `,`, `\,`, `;`, `\;`)
	return r.Replace(v)
}

// GraphValue escapes an option value used inside a -vf/-af chain. Both
// levels are needed for paths such as C:\clips\a.trf.
func GraphValue(v string) string {
	return EscapeGraph(EscapeValue(v))
}

// ParseCrop reads "W:H" (centered) or "W:H:X:Y" into a crop fragment.
func ParseCrop(s string) (string, error) {
	if s = strings.TrimSpace(s); s == "" {
		return "", nil
	}
	parts := strings.Split(s, ":")
	if len(parts) != 2 && len(parts) != 4 {
		return "", fmt.Errorf("crop %q: want W:H or W:H:X:Y", s)
	}
	n := make([]int, 4)
	n[2], n[3] = -1, -1
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return "", fmt.Errorf("crop %q: %q is not a number", s, p)
		}
		n[i] = v
	}
	if n[0] <= 0 || n[1] <= 0 {
		return "", fmt.Errorf("crop %q: width and height must be positive", s)
	}
	return Crop(n[0], n[1], n[2], n[3]), nil
}

// ParseRatio reads "16:9" or "16/9".
func ParseRatio(s string) (num, den int, err error) {
	a, b, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		a, b, ok = strings.Cut(strings.TrimSpace(s), "/")
	}
	if !ok {
		return 0, 0, fmt.Errorf("ratio %q: want N:D or N/D", s)
	}
	if num, err = strconv.Atoi(a); err == nil {
		den, err = strconv.Atoi(b)
	}
	if err != nil || num <= 0 || den <= 0 {
		return 0, 0, fmt.Errorf("ratio %q: want two positive integers", s)
	}
	return num, den, nil
}

// ParseInterlace accepts "tff" or "bff"; "" leaves the frames progressive.
func ParseInterlace(s string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return "", nil
	case "tff":
		return Interlace(true), nil
	case "bff":
		return Interlace(false), nil
	default:
		return "", fmt.Errorf("unknown field order %q (want tff or bff)", s)
	}
}

// ParseEq reads "contrast=1.1:brightness=0.05" style settings.
func ParseEq(s string) (Eq, error) {
	var e Eq
	if s = strings.TrimSpace(s); s == "" {
		return e, nil
	}
	for _, kv := range strings.Split(s, ":") {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return e, fmt.Errorf("eq %q: want key=value", kv)
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return e, fmt.Errorf("eq %s: %q is not a number", k, v)
		}
		switch k {
		case "contrast":
			e.Contrast = f
		case "brightness":
			e.Brightness = f
		case "saturation":
			e.Saturation = f
		case "gamma":
			e.Gamma = f
		default:
			return e, fmt.Errorf("eq: unknown setting %q (want contrast, brightness, saturation or gamma)", k)
		}
	}
	return e, nil
}
