package models

import (
	"fmt"
	"strings"
	"time"
)

// JobResult is the outcome of one executed task (a pass, a measurement or a
// concat). Measurement tasks succeed without an output path.
type JobResult struct {
	TaskID     string        `json:"task_id"`
	InputPath  string        `json:"input_path"`
	OutputPath string        `json:"output_path,omitempty"`
	Success    bool          `json:"success"`
	Skipped    bool          `json:"skipped,omitempty"` // a dependency failed, the task never ran
	Error      error         `json:"-"`
	Elapsed    time.Duration `json:"elapsed"`
}

// NewJobSuccess creates a successful result.
func NewJobSuccess(taskID, input, output string, elapsed time.Duration) *JobResult {
	return &JobResult{TaskID: taskID, InputPath: input, OutputPath: output, Success: true, Elapsed: elapsed}
}

// NewJobFailure creates a failed result. err must not be nil.
func NewJobFailure(taskID, input, output string, err error) (*JobResult, error) {
	if err == nil {
		return nil, fmt.Errorf("invalid job result: error cannot be nil for failed result")
	}
	return &JobResult{TaskID: taskID, InputPath: input, OutputPath: output, Error: err}, nil
}

// Validate checks that Success and Error agree and that the task is named.
func (r *JobResult) Validate() error {
	if strings.TrimSpace(r.TaskID) == "" {
		return fmt.Errorf("task_id cannot be empty")
	}
	if r.Success && r.Error != nil {
		return fmt.Errorf("inconsistent state: Success is true but Error is not nil")
	}
	if !r.Success && r.Error == nil {
		return fmt.Errorf("failed result must have an error")
	}
	if r.Skipped && r.Success {
		return fmt.Errorf("inconsistent state: skipped result cannot be successful")
	}
	return nil
}

// Status returns a short label for reports.
func (r *JobResult) Status() string {
	switch {
	case r.Success:
		return "done"
	case r.Skipped:
		return "skipped"
	default:
		return "failed"
	}
}

// Summarize counts successes, failures and skips.
func Summarize(results []*JobResult) (ok, failed, skipped int) {
	for _, r := range results {
		switch {
		case r.Success:
			ok++
		case r.Skipped:
			skipped++
		default:
			failed++
		}
	}
	return ok, failed, skipped
}
