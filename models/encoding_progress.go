package models

import (
	"fmt"
	"time"
)

// EncodingProgress holds the metrics scraped from one running ffmpeg pass.
type EncodingProgress struct {
	TaskID string `json:"task_id,omitempty"`
	Pass   int    `json:"pass,omitempty"` // 1 or 2 for two-pass jobs, 0 otherwise

	Frame       int64   `json:"frame"`
	FPS         float64 `json:"fps"`
	CurrentTime string  `json:"current_time"` // HH:MM:SS.MS as printed by ffmpeg
	Seconds     float64 `json:"seconds"`      // CurrentTime in seconds

	Bitrate string  `json:"bitrate"` // e.g. "128.0kbits/s"
	Speed   float64 `json:"speed"`   // 2.34 means 2.34x realtime
	Size    string  `json:"size"`    // e.g. "1024kB"

	TotalDuration float64 `json:"total_duration"` // seconds, 0 when unknown
	Progress      float64 `json:"progress"`       // 0-100

	State     ProgressState `json:"state"`
	StartTime time.Time     `json:"start_time"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// ProgressState represents the current state of a pass.
type ProgressState string

const (
	ProgressStateQueued    ProgressState = "queued"
	ProgressStateStarting  ProgressState = "starting"
	ProgressStateEncoding  ProgressState = "encoding"
	ProgressStateCompleted ProgressState = "completed"
	ProgressStateFailed    ProgressState = "failed"
	ProgressStateCancelled ProgressState = "cancelled"
)

// IsFinished reports whether the state is terminal.
func (s ProgressState) IsFinished() bool {
	return s == ProgressStateCompleted || s == ProgressStateFailed || s == ProgressStateCancelled
}

// ProgressCallback receives progress updates during encoding.
type ProgressCallback func(progress *EncodingProgress)

// NewEncodingProgress creates a new progress tracker.
func NewEncodingProgress(totalDuration float64) *EncodingProgress {
	now := time.Now()
	return &EncodingProgress{
		TotalDuration: totalDuration,
		State:         ProgressStateQueued,
		StartTime:     now,
		UpdatedAt:     now,
	}
}

// CalculateProgress updates the percentage from the current media position.
func (ep *EncodingProgress) CalculateProgress(currentSeconds float64) {
	ep.Seconds = currentSeconds
	if ep.TotalDuration > 0 {
		ep.Progress = (currentSeconds / ep.TotalDuration) * 100
		if ep.Progress > 100 {
			ep.Progress = 100
		}
	}
	ep.UpdatedAt = time.Now()
}

// EstimatedTimeRemaining returns the ETA. When ffmpeg reports a speed the
// remaining media time is divided by it; otherwise the elapsed wall time is
// extrapolated from the percentage. Zero means unknown.
func (ep *EncodingProgress) EstimatedTimeRemaining() time.Duration {
	if ep.Progress <= 0 {
		return 0
	}
	if ep.Speed > 0 && ep.TotalDuration > 0 {
		remaining := (ep.TotalDuration - ep.Seconds) / ep.Speed
		if remaining <= 0 {
			return 0
		}
		return time.Duration(remaining * float64(time.Second))
	}

	elapsed := time.Since(ep.StartTime)
	totalEstimated := time.Duration(float64(elapsed) / (ep.Progress / 100))
	if remaining := totalEstimated - elapsed; remaining > 0 {
		return remaining
	}
	return 0
}

// FormatSummary returns a one-line human-readable summary.
func (ep *EncodingProgress) FormatSummary() string {
	s := fmt.Sprintf("%5.1f%% time=%s speed=%.2fx", ep.Progress, ep.CurrentTime, ep.Speed)
	if ep.Bitrate != "" {
		s += " bitrate=" + ep.Bitrate
	}
	if ep.Size != "" {
		s += " size=" + ep.Size
	}
	return s + " eta=" + formatDuration(ep.EstimatedTimeRemaining())
}

func formatDuration(d time.Duration) string {
	if d == 0 {
		return "--"
	}

	seconds := int(d.Round(time.Second).Seconds())
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	seconds %= 60

	switch {
	case hours > 0:
		return fmt.Sprintf("%dh%02dm%02ds", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%dm%02ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}
