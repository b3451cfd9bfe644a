// Package events is a process-wide publish/subscribe bus for task and
// preset notifications.
package events

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"videomass/models"
)

// Type identifies what happened.
type Type string

const (
	// TaskStarted is published when a task begins running.
	TaskStarted Type = "task.started"
	// TaskProgress carries an encoding progress update.
	TaskProgress Type = "task.progress"
	// TaskFinished is the single completion event of a successful task.
	TaskFinished Type = "task.finished"
	// TaskFailed is the single completion event of a failed or canceled task.
	TaskFailed Type = "task.failed"
	// PresetsChanged is published when a preset file is written or removed.
	PresetsChanged Type = "presets.changed"
)

// Event is one notification.
type Event struct {
	Type      Type
	TaskID    string
	Path      string // preset file for PresetsChanged, output for task events
	Progress  *models.EncodingProgress
	Result    *models.JobResult
	Err       error
	Timestamp time.Time
}

// Handler receives events.
type Handler func(Event)

type subscriber struct {
	id uint64
	fn Handler
}

// Bus delivers every published event to all current subscribers.
// Delivery is synchronous and in publish order; a subscriber that panics is
// logged and skipped, the others still receive the event.
type Bus struct {
	mu     sync.RWMutex
	subs   []subscriber
	nextID uint64
	pubMu  sync.Mutex
	logger *slog.Logger
}

// NewBus creates a bus. A nil logger discards panic reports.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Bus{logger: logger}
}

// Subscribe registers fn and returns a function that removes it.
func (b *Bus) Subscribe(fn Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscriber{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, s := range b.subs {
				if s.id == id {
					b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Publish delivers e to the subscribers registered at call time.
func (b *Bus) Publish(e Event) {
	if b == nil {
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	b.mu.RLock()
	subs := make([]subscriber, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	// Serialize publishers so every subscriber sees the same order.
	b.pubMu.Lock()
	defer b.pubMu.Unlock()
	for _, s := range subs {
		b.deliver(s, e)
	}
}

func (b *Bus) deliver(s subscriber, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event subscriber panicked",
				slog.String("event", string(e.Type)),
				slog.String("panic", fmt.Sprint(r)))
		}
	}()
	s.fn(e)
}

// Len returns the number of subscribers.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// ProgressPublisher returns a progress callback that publishes each update
// as a TaskProgress event. The progress value is copied before publishing.
func ProgressPublisher(b *Bus) models.ProgressCallback {
	return func(p *models.EncodingProgress) {
		if p == nil {
			return
		}
		snapshot := *p
		b.Publish(Event{Type: TaskProgress, TaskID: p.TaskID, Progress: &snapshot})
	}
}
