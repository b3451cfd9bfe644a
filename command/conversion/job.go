package conversion

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"videomass/ffmpeg"
	"videomass/models"
	"videomass/orchestrator"
)

// Job is the ordered list of passes converting one input file.
type Job struct {
	ID          string
	Profile     models.Profile
	Input       string
	Output      string
	Passes      []*Pass
	Measurement *Measurement

	opts      Options
	tempFiles []string // paths or glob patterns removed by Cleanup
}

func (j *Job) add(p *Pass) {
	p.ID = fmt.Sprintf("%s/%d-%s", j.ID, len(j.Passes)+1, p.taskType)
	p.exec.TaskID = p.ID
	if n := len(j.Passes); n > 0 {
		p.DependsOn = []string{j.Passes[n-1].ID}
	}
	j.Passes = append(j.Passes, p)
}

// Gain returns the PEAK/RMS decision once the volume is known.
func (j *Job) Gain() (ffmpeg.Gain, bool) {
	if !j.opts.Normalize.usesVolumedetect() {
		return ffmpeg.Gain{}, false
	}
	v, ok := j.Measurement.Volume()
	if !ok {
		return ffmpeg.Gain{}, false
	}
	return ffmpeg.ComputeGain(v, j.opts.Normalize.levelMode(), j.opts.Target), true
}

// Run executes the passes in order and removes temporary files afterwards.
func (j *Job) Run(ctx context.Context) (err error) {
	defer func() {
		if cerr := j.Cleanup(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	for _, p := range j.Passes {
		if err := p.Run(ctx); err != nil {
			return err
		}
	}
	return nil
}

// DryRun returns one command line per pass.
func (j *Job) DryRun() ([]string, error) {
	lines := make([]string, 0, len(j.Passes))
	for _, p := range j.Passes {
		line, err := p.DryRun()
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// Tasks returns the passes as orchestrator tasks chained by dependency.
func (j *Job) Tasks(resource orchestrator.ResourceType) []*orchestrator.Task {
	tasks := make([]*orchestrator.Task, 0, len(j.Passes))
	for _, p := range j.Passes {
		tasks = append(tasks, &orchestrator.Task{
			ID:           p.ID,
			Command:      p,
			Dependencies: p.DependsOn,
			Resource:     resource,
		})
	}
	return tasks
}

// Cleanup removes passlog and transform files. Missing files are not an
// error.
func (j *Job) Cleanup() error {
	var errs []error
	for _, pattern := range j.tempFiles {
		paths := []string{pattern}
		if strings.ContainsAny(pattern, "*?[") {
			matches, err := filepath.Glob(pattern)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			paths = matches
		}
		for _, p := range paths {
			if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
