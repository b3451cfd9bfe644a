// Package timeutil provides time formatting utilities for FFmpeg commands.
package timeutil

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FormatSeconds converts seconds to HH:MM:SS.MS format for FFmpeg.
//
// This format is used for FFmpeg time parameters like -ss (seek start)
// and -t (duration). The value is rounded to hundredths before it is split,
// so 59.999 becomes "00:01:00.00" rather than "00:00:60.00".
//
// Example:
//
//	FormatSeconds(0)      // "00:00:00.00"
//	FormatSeconds(90)     // "00:01:30.00"
//	FormatSeconds(3661)   // "01:01:01.00"
//	FormatSeconds(30.53)  // "00:00:30.53"
func FormatSeconds(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	centis := int64(math.Round(seconds * 100))
	hours := centis / 360000
	centis %= 360000
	minutes := centis / 6000
	centis %= 6000
	return fmt.Sprintf("%02d:%02d:%02d.%02d", hours, minutes, centis/100, centis%100)
}

// ParseTimestamp converts an FFmpeg duration string to seconds.
//
// Accepted forms are "HH:MM:SS[.frac]", "MM:SS[.frac]" and "SS[.frac]".
// Minutes and seconds fields must be below 60 when a larger unit is present.
func ParseTimestamp(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty timestamp")
	}

	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("invalid timestamp %q", s)
	}

	total := 0.0
	for i, part := range parts {
		v, err := strconv.ParseFloat(part, 64)
		if err != nil || v < 0 || math.IsInf(v, 0) || math.IsNaN(v) {
			return 0, fmt.Errorf("invalid timestamp %q", s)
		}
		// Only the leading field may exceed 59.
		if i > 0 && v >= 60 {
			return 0, fmt.Errorf("invalid timestamp %q: field %q out of range", s, part)
		}
		// Only the trailing field may carry a fraction.
		if i < len(parts)-1 && v != math.Trunc(v) {
			return 0, fmt.Errorf("invalid timestamp %q", s)
		}
		total = total*60 + v
	}
	return total, nil
}
