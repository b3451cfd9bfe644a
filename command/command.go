// Package command provides the core Command interface and priority support
// for building and executing ffmpeg commands.
//
// All specialized builders (audio, video and the conversion passes)
// implement the Command interface, so the orchestrator can run any of them
// without knowing what it encodes.
package command

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"videomass/ffmpeg"
	vmerrors "videomass/internal/errors"
	"videomass/internal/timeutil"
	"videomass/models"
)

// Priority levels for task execution.
// Higher priority tasks are scheduled first among ready tasks.
const (
	PriorityLow    = 0  // Low priority tasks (e.g., optional post-processing)
	PriorityNormal = 5  // Normal priority tasks (e.g., standard encoding)
	PriorityHigh   = 10 // High priority tasks (e.g., measurements other passes wait on)
)

// TaskType represents the type of encoding task.
type TaskType string

const (
	TaskTypeAudio        TaskType = "audio"        // Audio-only encoding
	TaskTypeVideo        TaskType = "video"        // Video encoding with optional audio
	TaskTypeConvert      TaskType = "convert"      // One-pass profile conversion
	TaskTypePass1        TaskType = "pass1"        // First pass of a two-pass conversion
	TaskTypePass2        TaskType = "pass2"        // Second pass of a two-pass conversion
	TaskTypeVolumedetect TaskType = "volumedetect" // PEAK/RMS measurement
	TaskTypeLoudnorm     TaskType = "loudnorm"     // EBU R128 measurement
	TaskTypeStabilize    TaskType = "stabilize"    // vidstabdetect analysis pass
	TaskTypeConcat       TaskType = "concat"       // Concat demuxer join
)

// Command represents an ffmpeg command that can be built, executed, or previewed.
//
// Example usage:
//
//	cmd := audio.NewAudioBuilder("in.wav", "out.opus").
//		SetCodec("libopus").
//		SetBitrate("128k")
//
//	line, _ := cmd.DryRun() // "ffmpeg -hide_banner ... out.opus"
//	err := cmd.Run(ctx)
type Command interface {
	// BuildArgs constructs the ffmpeg arguments, without the binary.
	BuildArgs() []string

	// Run executes the command and blocks until it exits or ctx is done.
	Run(ctx context.Context) error

	// DryRun returns the full command line as it would be executed.
	// Returns an error if the command cannot be built.
	DryRun() (string, error)

	// GetPriority returns the priority level for task scheduling.
	GetPriority() int

	// SetPriority sets the priority level and returns the Command for chaining.
	SetPriority(priority int) Command

	// GetTaskType returns the type of task.
	GetTaskType() TaskType

	// GetInputPath returns the primary input file path for this command.
	GetInputPath() string

	// GetOutputPath returns the output file path for this command.
	GetOutputPath() string
}

// TimeRange limits processing to part of the input. Zero values mean
// "from the beginning" and "until the end".
type TimeRange struct {
	Start    float64 // seconds
	Duration float64 // seconds
}

// Args returns the -ss/-t input options.
func (r TimeRange) Args() []string {
	var args []string
	if r.Start > 0 {
		args = append(args, "-ss", timeutil.FormatSeconds(r.Start))
	}
	if r.Duration > 0 {
		args = append(args, "-t", timeutil.FormatSeconds(r.Duration))
	}
	return args
}

// Validate rejects negative values.
func (r TimeRange) Validate() error {
	if r.Start < 0 || r.Duration < 0 {
		return vmerrors.Validation("time range must not be negative (start %g, duration %g)", r.Start, r.Duration)
	}
	return nil
}

// Span returns the media duration a pass will cover given the input
// duration, used for progress percentages.
func (r TimeRange) Span(inputDuration float64) float64 {
	if r.Duration > 0 {
		return r.Duration
	}
	if r.Start > 0 && inputDuration > r.Start {
		return inputDuration - r.Start
	}
	return inputDuration
}

// Execution carries what every runnable builder needs to run ffmpeg.
type Execution struct {
	Runner   *ffmpeg.Runner
	TaskID   string
	Pass     int
	Duration float64 // media seconds covered, 0 when unknown
	Progress models.ProgressCallback
	Tap      ffmpeg.LineFunc // sees every stderr line after progress parsing
}

// Execute runs args through the runner and reports progress. The callback
// sees the starting, encoding and terminal states.
func (e Execution) Execute(ctx context.Context, args []string) error {
	if e.Runner == nil {
		return vmerrors.Internal("no ffmpeg runner configured")
	}

	progress := models.NewEncodingProgress(e.Duration)
	progress.TaskID = e.TaskID
	progress.Pass = e.Pass
	progress.State = models.ProgressStateStarting
	notify := func(p *models.EncodingProgress) {
		if e.Progress != nil {
			e.Progress(p)
		}
	}
	notify(progress)

	track := ffmpeg.NewProgressParser().Track(progress, notify)
	onLine := track
	if e.Tap != nil {
		onLine = func(line string) {
			track(line)
			e.Tap(line)
		}
	}
	err := e.Runner.Run(ctx, args, onLine)
	switch {
	case err == nil:
		progress.State = models.ProgressStateCompleted
		progress.Progress = 100
	case vmerrors.Is(err, vmerrors.ErrCanceled):
		progress.State = models.ProgressStateCancelled
	default:
		progress.State = models.ProgressStateFailed
	}
	notify(progress)
	return err
}

// SamePath reports whether a and b name the same file once made absolute,
// so "./a.flac" and "a.flac" match.
func SamePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}

// FormatCommandLine renders binary and args as a shell-pasteable line.
func FormatCommandLine(binary string, args []string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, quote(binary))
	for _, a := range args {
		parts = append(parts, quote(a))
	}
	return strings.Join(parts, " ")
}

func quote(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsAny(s, " \t\n'\"\\$`;&|<>()*?[]#~!{}") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// BinaryOf returns the runner's binary for dry runs, defaulting to ffmpeg.
func BinaryOf(r *ffmpeg.Runner) string {
	if r == nil || r.Binary == "" {
		return "ffmpeg"
	}
	return r.Binary
}

// DryRunLine is the shared DryRun implementation.
func DryRunLine(r *ffmpeg.Runner, args []string) (string, error) {
	if len(args) == 0 {
		return "", fmt.Errorf("cannot build command: no arguments")
	}
	return FormatCommandLine(BinaryOf(r), args), nil
}
