package ffmpeg

import "strings"

// Hints returned by Classify.
const (
	HintUnknownEncoder  = "unknown encoder"
	HintInvalidArgument = "invalid argument"
	HintNoSuchFile      = "no such file or directory"
)

// IsUnknownEncoder reports whether stderr names an encoder this ffmpeg
// build lacks.
func IsUnknownEncoder(stderr string) bool {
	return strings.Contains(stderr, "Unknown encoder") ||
		strings.Contains(stderr, "Encoder not found") ||
		strings.Contains(stderr, "Unrecognized option")
}

// IsInvalidArgument reports whether ffmpeg rejected an option value.
func IsInvalidArgument(stderr string) bool {
	return strings.Contains(stderr, "Invalid argument") ||
		strings.Contains(stderr, "Error parsing options") ||
		strings.Contains(stderr, "Error initializing filter")
}

// IsNoSuchFile reports whether an input could not be opened.
func IsNoSuchFile(stderr string) bool {
	return strings.Contains(stderr, "No such file or directory")
}

// Classify returns a short hint for a failed run, or "".
func Classify(stderr string) string {
	switch {
	case IsUnknownEncoder(stderr):
		return HintUnknownEncoder
	case IsNoSuchFile(stderr):
		return HintNoSuchFile
	case IsInvalidArgument(stderr):
		return HintInvalidArgument
	default:
		return ""
	}
}
