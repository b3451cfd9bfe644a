package filters

import (
	"fmt"
	"strconv"
)

// Vidstab configures the two-pass libvidstab stabilization: vidstabdetect
// writes motion vectors to TRF, vidstabtransform reads them back.
type Vidstab struct {
	TRF         string
	Shakiness   int     // 1-10
	Accuracy    int     // 1-15
	StepSize    int     // pixels
	MinContrast float64 // 0-1
	Smoothing   int     // frames
	Zoom        int     // percent, negative zooms out
	Tripod      bool
	Unsharp     bool
}

// DefaultVidstab returns the libvidstab defaults with unsharp enabled.
func DefaultVidstab(trf string) Vidstab {
	return Vidstab{
		TRF:         trf,
		Shakiness:   5,
		Accuracy:    15,
		StepSize:    6,
		MinContrast: 0.3,
		Smoothing:   10,
		Unsharp:     true,
	}
}

// Validate checks the option ranges libvidstab accepts.
func (v Vidstab) Validate() error {
	switch {
	case v.TRF == "":
		return fmt.Errorf("vidstab: transforms file is required")
	case v.Shakiness < 1 || v.Shakiness > 10:
		return fmt.Errorf("vidstab: shakiness must be within [1, 10], got %d", v.Shakiness)
	case v.Accuracy < 1 || v.Accuracy > 15:
		return fmt.Errorf("vidstab: accuracy must be within [1, 15], got %d", v.Accuracy)
	case v.StepSize < 1 || v.StepSize > 32:
		return fmt.Errorf("vidstab: stepsize must be within [1, 32], got %d", v.StepSize)
	case v.MinContrast < 0 || v.MinContrast > 1:
		return fmt.Errorf("vidstab: mincontrast must be within [0, 1], got %g", v.MinContrast)
	case v.Smoothing < 0:
		return fmt.Errorf("vidstab: smoothing must not be negative")
	}
	return nil
}

// DetectFragment is the analysis pass filter.
func (v Vidstab) DetectFragment() string {
	tripod := 0
	if v.Tripod {
		tripod = 1
	}
	return fmt.Sprintf("vidstabdetect=shakiness=%d:accuracy=%d:stepsize=%d:mincontrast=%s:tripod=%d:result=%s",
		v.Shakiness, v.Accuracy, v.StepSize, strconv.FormatFloat(v.MinContrast, 'f', -1, 64), tripod, GraphValue(v.TRF))
}

// TransformFragment is the stabilization fragment of the video chain.
func (v Vidstab) TransformFragment() string {
	tripod := 0
	if v.Tripod {
		tripod = 1
	}
	frag := fmt.Sprintf("vidstabtransform=input=%s:smoothing=%d:zoom=%d:optzoom=1:tripod=%d",
		GraphValue(v.TRF), v.Smoothing, v.Zoom, tripod)
	if v.Unsharp {
		frag += ",unsharp=5:5:0.8:3:3:0.4"
	}
	return frag
}
