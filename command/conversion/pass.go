package conversion

import (
	"context"
	"fmt"
	"strings"

	"videomass/command"
)

// argsFunc builds a pass's arguments. With preview set, values that only a
// measurement can provide are replaced by placeholders instead of failing.
type argsFunc func(preview bool) ([]string, error)

// Pass is one ffmpeg invocation of a Job. It implements command.Command.
type Pass struct {
	ID        string
	DependsOn []string

	taskType   command.TaskType
	inputPath  string
	outputPath string
	priority   int
	args       argsFunc
	parse      func(output string) error
	exec       command.Execution
}

// Args returns the arguments, failing when a measurement is still missing.
func (p *Pass) Args() ([]string, error) {
	return p.args(false)
}

// BuildArgs constructs the ffmpeg arguments, or none when they depend on a
// measurement that has not been taken yet.
func (p *Pass) BuildArgs() []string {
	args, err := p.args(false)
	if err != nil {
		return []string{}
	}
	return args
}

// Run executes the pass. Measuring passes parse the captured stderr into
// the job's Measurement.
func (p *Pass) Run(ctx context.Context) error {
	args, err := p.args(false)
	if err != nil {
		return fmt.Errorf("%s: %w", p.ID, err)
	}
	if p.parse == nil {
		return p.exec.Execute(ctx, args)
	}

	var out strings.Builder
	exec := p.exec
	exec.Tap = func(line string) {
		out.WriteString(line)
		out.WriteByte('\n')
	}
	if err := exec.Execute(ctx, args); err != nil {
		return err
	}
	if err := p.parse(out.String()); err != nil {
		return fmt.Errorf("%s: %w", p.inputPath, err)
	}
	return nil
}

// DryRun returns the command line, with placeholders such as <gain> for
// values a preceding measurement pass would supply.
func (p *Pass) DryRun() (string, error) {
	args, err := p.args(true)
	if err != nil {
		return "", fmt.Errorf("cannot build command: %w", err)
	}
	return command.DryRunLine(p.exec.Runner, args)
}

func (p *Pass) GetPriority() int {
	return p.priority
}

func (p *Pass) SetPriority(priority int) command.Command {
	p.priority = priority
	return p
}

func (p *Pass) GetTaskType() command.TaskType {
	return p.taskType
}

func (p *Pass) GetInputPath() string {
	return p.inputPath
}

// GetOutputPath returns the file the pass writes, or the null device for
// analysis passes.
func (p *Pass) GetOutputPath() string {
	return p.outputPath
}
