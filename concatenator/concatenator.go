// Package concatenator joins media files that share codecs through ffmpeg's
// concat demuxer, without re-encoding.
package concatenator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"videomass/command"
	"videomass/ffmpeg"
	vmerrors "videomass/internal/errors"
	"videomass/logger"
)

// Concatenator handles merging media files into a final output file
type Concatenator struct {
	strictMode bool // If true, fail if any input is missing. If false, skip missing inputs.
	runner     *ffmpeg.Runner
	logger     *logger.Logger
	tempDir    string
}

// NewConcatenator creates a new concatenator running ffmpeg through runner.
func NewConcatenator(runner *ffmpeg.Runner, strictMode bool) *Concatenator {
	log := logger.Discard()
	if runner != nil && runner.Logger != nil {
		log = runner.Logger
	}
	return &Concatenator{
		strictMode: strictMode,
		runner:     runner,
		logger:     log,
	}
}

// SetTempDir sets where the list file is written (default os.TempDir).
func (c *Concatenator) SetTempDir(dir string) *Concatenator {
	c.tempDir = dir
	return c
}

// Concatenate joins inputs, in order, into outputPath.
func (c *Concatenator) Concatenate(ctx context.Context, inputs []string, outputPath string) error {
	existing, err := c.validateInputs(inputs, outputPath)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	// Create concat file for ffmpeg
	concatFilePath, err := c.createConcatFile(existing)
	if err != nil {
		return fmt.Errorf("failed to create concat file: %w", err)
	}
	defer os.Remove(concatFilePath) // Clean up concat file after use

	if err := c.runConcat(ctx, concatFilePath, outputPath); err != nil {
		return fmt.Errorf("ffmpeg concat failed: %w", err)
	}
	return nil
}

// validateInputs returns the inputs that exist. Missing inputs and mixed
// extensions fail in strict mode and are logged otherwise.
func (c *Concatenator) validateInputs(inputs []string, outputPath string) ([]string, error) {
	if len(inputs) == 0 {
		return nil, vmerrors.Validation("no inputs provided")
	}
	if outputPath == "" {
		return nil, vmerrors.Validation("output path is required")
	}

	var existing, missing []string
	for _, in := range inputs {
		if command.SamePath(in, outputPath) {
			return nil, vmerrors.Validation("output %q is also an input", outputPath)
		}
		if fi, err := os.Stat(in); err != nil || fi.IsDir() {
			missing = append(missing, in)
			continue
		}
		existing = append(existing, in)
	}

	if len(missing) > 0 {
		if c.strictMode {
			return nil, vmerrors.NotFound("strict mode: missing inputs: %s", strings.Join(missing, ", "))
		}
		c.logger.Warn("skipping missing inputs", "missing", strings.Join(missing, ", "))
	}
	if len(existing) == 0 {
		return nil, vmerrors.NotFound("none of the inputs exist")
	}

	if exts := extensions(existing); len(exts) > 1 {
		if c.strictMode {
			return nil, vmerrors.Validation("strict mode: inputs mix extensions %s", strings.Join(exts, ", "))
		}
		c.logger.Warn("inputs mix extensions; the concat demuxer needs identical codecs", "extensions", strings.Join(exts, ", "))
	}
	return existing, nil
}

func extensions(paths []string) []string {
	seen := map[string]bool{}
	var exts []string
	for _, p := range paths {
		ext := strings.ToLower(filepath.Ext(p))
		if !seen[ext] {
			seen[ext] = true
			exts = append(exts, ext)
		}
	}
	return exts
}

// ListLine returns the concat demuxer line for path. Inside the single
// quotes a quote is written as '\''.
func ListLine(path string) string {
	return fmt.Sprintf("file '%s'\n", strings.ReplaceAll(path, "'", `'\''`))
}

// createConcatFile creates a text file listing all input paths for ffmpeg concat demuxer
// Format: file '/path/to/part1.mp4'
//
//	file '/path/to/part2.mp4'
func (c *Concatenator) createConcatFile(inputs []string) (string, error) {
	tmpFile, err := os.CreateTemp(c.tempDir, "concat-*.txt")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer tmpFile.Close()

	for _, in := range inputs {
		absPath, err := filepath.Abs(in)
		if err != nil {
			os.Remove(tmpFile.Name())
			return "", fmt.Errorf("failed to get absolute path for %s: %w", in, err)
		}
		if _, err := tmpFile.WriteString(ListLine(absPath)); err != nil {
			os.Remove(tmpFile.Name())
			return "", fmt.Errorf("failed to write to concat file: %w", err)
		}
	}

	return tmpFile.Name(), nil
}

// Args returns the ffmpeg arguments joining the list file into outputPath.
func Args(concatFilePath, outputPath string) []string {
	return []string{
		"-hide_banner", "-nostdin",
		"-f", "concat",
		"-safe", "0",
		"-i", concatFilePath,
		"-map", "0",
		"-c", "copy", // Copy without re-encoding
		"-y", // Overwrite output file
		outputPath,
	}
}

// runConcat executes ffmpeg concat operation
func (c *Concatenator) runConcat(ctx context.Context, concatFilePath, outputPath string) error {
	exec := command.Execution{Runner: c.runner}
	if err := exec.Execute(ctx, Args(concatFilePath, outputPath)); err != nil {
		return err
	}

	// Verify output file was created
	if _, err := os.Stat(outputPath); err != nil {
		return vmerrors.Exec("output file not created").WithCause(err)
	}
	return nil
}

// Command wraps a concatenation as a command.Command for the orchestrator.
type Command struct {
	concat   *Concatenator
	inputs   []string
	output   string
	priority int
}

// NewCommand returns a concat task joining inputs into output.
func NewCommand(c *Concatenator, inputs []string, output string) *Command {
	return &Command{concat: c, inputs: inputs, output: output, priority: command.PriorityLow}
}

// BuildArgs returns the arguments with a placeholder for the list file,
// which only exists while the command runs.
func (cc *Command) BuildArgs() []string {
	return Args("<list>", cc.output)
}

func (cc *Command) Run(ctx context.Context) error {
	return cc.concat.Concatenate(ctx, cc.inputs, cc.output)
}

// DryRun returns the list file contents followed by the command line.
func (cc *Command) DryRun() (string, error) {
	if len(cc.inputs) == 0 || cc.output == "" {
		return "", vmerrors.Validation("cannot build command: inputs and output are required")
	}
	var b strings.Builder
	for _, in := range cc.inputs {
		b.WriteString("# ")
		b.WriteString(ListLine(in))
	}
	line, err := command.DryRunLine(cc.concat.runner, cc.BuildArgs())
	if err != nil {
		return "", err
	}
	b.WriteString(line)
	return b.String(), nil
}

func (cc *Command) GetPriority() int { return cc.priority }

func (cc *Command) SetPriority(priority int) command.Command {
	cc.priority = priority
	return cc
}

func (cc *Command) GetTaskType() command.TaskType { return command.TaskTypeConcat }

// GetInputPath returns the first input.
func (cc *Command) GetInputPath() string {
	if len(cc.inputs) == 0 {
		return ""
	}
	return cc.inputs[0]
}

func (cc *Command) GetOutputPath() string { return cc.output }
