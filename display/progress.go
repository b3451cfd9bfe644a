package display

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"videomass/events"
	"videomass/models"
)

// barMax is the bar resolution: tenths of a percent.
const barMax = 1000

// Progress draws one progress bar per running task from bus events. Bars
// share the terminal line, so output is clean with a single worker.
type Progress struct {
	w       io.Writer
	mu      sync.Mutex
	bars    map[string]*progressbar.ProgressBar
	labels  map[string]string
	visible bool
}

// NewProgress writes bars to w. When visible is false only the completion
// lines are printed, which suits logs and pipes.
func NewProgress(w io.Writer, visible bool) *Progress {
	return &Progress{
		w:       w,
		bars:    map[string]*progressbar.ProgressBar{},
		labels:  map[string]string{},
		visible: visible,
	}
}

// Label sets the description shown for taskID, typically the input file.
func (p *Progress) Label(taskID, label string) {
	p.mu.Lock()
	p.labels[taskID] = label
	p.mu.Unlock()
}

// Attach subscribes p to bus and returns the unsubscribe function.
func (p *Progress) Attach(bus *events.Bus) func() {
	return bus.Subscribe(p.Handle)
}

// Handle consumes one event.
func (p *Progress) Handle(ev events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch ev.Type {
	case events.TaskStarted:
		p.bar(ev.TaskID)
	case events.TaskProgress:
		if ev.Progress == nil {
			return
		}
		bar := p.bar(ev.TaskID)
		_ = bar.Set(int(ev.Progress.Progress * barMax / 100))
		if ev.Progress.Speed > 0 {
			bar.Describe(fmt.Sprintf("%s %.2fx", p.label(ev.TaskID), ev.Progress.Speed))
		}
	case events.TaskFinished:
		if bar, ok := p.bars[ev.TaskID]; ok {
			_ = bar.Finish()
			delete(p.bars, ev.TaskID)
		}
		fmt.Fprintln(p.w, Success("%s %s", p.label(ev.TaskID), elapsed(ev.Result)))
	case events.TaskFailed:
		if bar, ok := p.bars[ev.TaskID]; ok {
			_ = bar.Exit()
			delete(p.bars, ev.TaskID)
		}
		msg := "failed"
		if ev.Err != nil {
			msg = ev.Err.Error()
		}
		fmt.Fprintln(p.w, Error("%s: %s", p.label(ev.TaskID), msg))
	}
}

func (p *Progress) label(taskID string) string {
	if l, ok := p.labels[taskID]; ok {
		return l
	}
	return taskID
}

// bar returns the bar of taskID, creating it on first use.
func (p *Progress) bar(taskID string) *progressbar.ProgressBar {
	if bar, ok := p.bars[taskID]; ok {
		return bar
	}
	bar := progressbar.NewOptions(barMax,
		progressbar.OptionSetWriter(p.w),
		progressbar.OptionSetVisibility(p.visible),
		progressbar.OptionSetDescription(p.label(taskID)),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "▐",
			BarEnd:        "▌",
		}),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
	p.bars[taskID] = bar
	return bar
}

func elapsed(r *models.JobResult) string {
	if r == nil || r.Elapsed <= 0 {
		return ""
	}
	return Dim("(" + r.Elapsed.Round(10*time.Millisecond).String() + ")")
}

// Close drops the bars of tasks that never reported completion.
func (p *Progress) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, bar := range p.bars {
		_ = bar.Exit()
		delete(p.bars, id)
	}
}
