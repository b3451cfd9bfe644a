package audio

import (
	"context"
	"fmt"
	"strconv"

	"videomass/command"
	"videomass/command/filters"
	"videomass/ffmpeg"
	vmerrors "videomass/internal/errors"
	"videomass/models"
	"videomass/params"
)

// AudioBuilder implements AudioCommand for building ffmpeg audio conversions.
//
// Codec settings come either from explicit setters or from a params
// selection; a selection's fragments follow the explicit ones so the
// table choice wins when both name the same option.
type AudioBuilder struct {
	inputPath        string
	outputPath       string
	codec            string
	bitrate          string
	sampleRate       int
	channels         int
	filters          filters.AudioFilters
	timeRange        command.TimeRange
	selection        params.Selection
	priority         int
	taskID           string
	duration         float64
	runner           *ffmpeg.Runner
	progressCallback models.ProgressCallback
}

// NewAudioBuilder creates a new AudioBuilder for the given input and output path.
func NewAudioBuilder(inputPath, outputPath string) *AudioBuilder {
	return &AudioBuilder{
		inputPath:  inputPath,
		outputPath: outputPath,
		codec:      "libopus",
		bitrate:    "128k",
		priority:   command.PriorityNormal,
	}
}

// SetCodec sets the audio encoder (e.g., "libopus", "aac", "libmp3lame").
func (a *AudioBuilder) SetCodec(codec string) AudioCommand {
	a.codec = codec
	return a
}

// SetBitrate sets the audio bitrate (e.g., "128k", "192k"). Empty leaves
// the encoder default.
func (a *AudioBuilder) SetBitrate(bitrate string) AudioCommand {
	a.bitrate = bitrate
	return a
}

// SetSampleRate sets the audio sample rate in Hz (e.g., 48000, 44100).
func (a *AudioBuilder) SetSampleRate(rate int) AudioCommand {
	a.sampleRate = rate
	return a
}

// SetChannels sets the number of audio channels (e.g., 1 for mono, 2 for stereo).
func (a *AudioBuilder) SetChannels(channels int) AudioCommand {
	a.channels = channels
	return a
}

// SetFilters appends an audio filter (e.g., "highpass=f=80").
func (a *AudioBuilder) SetFilters(filter string) AudioCommand {
	a.filters.Add(filter)
	return a
}

// SetGain applies a volume normalization decision.
func (a *AudioBuilder) SetGain(gain ffmpeg.Gain) AudioCommand {
	a.filters.Gain = gain.Filter()
	return a
}

// SetTimeRange limits the conversion to part of the input.
func (a *AudioBuilder) SetTimeRange(r command.TimeRange) AudioCommand {
	a.timeRange = r
	return a
}

// SetParams takes the encoder and options from a codec table selection.
// The explicit bitrate is dropped since the table carries its own.
func (a *AudioBuilder) SetParams(set *params.AudioSet, sel params.Selection) AudioCommand {
	a.codec = set.Encoder
	a.bitrate = ""
	a.selection = sel
	return a
}

// SetRunner sets the ffmpeg runner used by Run.
func (a *AudioBuilder) SetRunner(r *ffmpeg.Runner) AudioCommand {
	a.runner = r
	return a
}

// SetProgressCallback sets the callback function for progress updates
func (a *AudioBuilder) SetProgressCallback(callback models.ProgressCallback) AudioCommand {
	a.progressCallback = callback
	return a
}

// SetTaskID tags progress updates.
func (a *AudioBuilder) SetTaskID(id string) *AudioBuilder {
	a.taskID = id
	return a
}

// SetDuration sets the input duration in seconds for progress percentages.
func (a *AudioBuilder) SetDuration(seconds float64) *AudioBuilder {
	a.duration = seconds
	return a
}

// Validate checks the builder can produce a usable command.
func (a *AudioBuilder) Validate() error {
	if a.inputPath == "" {
		return vmerrors.Validation("audio: input path is required")
	}
	if a.outputPath == "" {
		return vmerrors.Validation("audio: output path is required")
	}
	if command.SamePath(a.inputPath, a.outputPath) {
		return vmerrors.Validation("audio: output %q would overwrite the input", a.outputPath)
	}
	return a.timeRange.Validate()
}

// BuildArgs constructs the ffmpeg command arguments.
func (a *AudioBuilder) BuildArgs() []string {
	if a.inputPath == "" {
		return []string{}
	}

	args := []string{"-hide_banner", "-nostdin"}
	args = append(args, a.timeRange.Args()...)
	args = append(args, "-i", a.inputPath, "-vn")

	if a.codec != "" {
		args = append(args, "-c:a", a.codec)
	}
	if a.bitrate != "" {
		args = append(args, "-b:a", a.bitrate)
	}
	if a.sampleRate > 0 {
		args = append(args, "-ar", strconv.Itoa(a.sampleRate))
	}
	if a.channels > 0 {
		args = append(args, "-ac", strconv.Itoa(a.channels))
	}
	args = append(args, a.selection.Args()...)
	args = append(args, a.filters.Args()...)

	args = append(args, "-y", a.outputPath)
	return args
}

// Run executes the ffmpeg command.
func (a *AudioBuilder) Run(ctx context.Context) error {
	if err := a.Validate(); err != nil {
		return fmt.Errorf("cannot run command: %w", err)
	}
	exec := command.Execution{
		Runner:   a.runner,
		TaskID:   a.taskID,
		Duration: a.timeRange.Span(a.duration),
		Progress: a.progressCallback,
	}
	return exec.Execute(ctx, a.BuildArgs())
}

// DryRun returns the ffmpeg command without executing it.
func (a *AudioBuilder) DryRun() (string, error) {
	if err := a.Validate(); err != nil {
		return "", fmt.Errorf("cannot build command: %w", err)
	}
	return command.DryRunLine(a.runner, a.BuildArgs())
}

// GetPriority returns the priority level for task scheduling.
func (a *AudioBuilder) GetPriority() int {
	return a.priority
}

// SetPriority sets the priority level for task scheduling.
func (a *AudioBuilder) SetPriority(priority int) command.Command {
	a.priority = priority
	return a
}

// GetTaskType returns the task type (audio).
func (a *AudioBuilder) GetTaskType() command.TaskType {
	return command.TaskTypeAudio
}

// GetInputPath returns the input file path.
func (a *AudioBuilder) GetInputPath() string {
	return a.inputPath
}

// GetOutputPath returns the output file path.
func (a *AudioBuilder) GetOutputPath() string {
	return a.outputPath
}
