package presets

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"videomass/events"
)

// SettleDelay is how long a preset file must stay quiet before a change is
// reported. Editors and atomic writes produce bursts of events.
var SettleDelay = 150 * time.Millisecond

// Watch reports changes to preset files until ctx is done. Each settled
// change is published on bus as events.PresetsChanged (when bus is not
// nil) and passed to fn (when fn is not nil).
func (s *Store) Watch(ctx context.Context, bus *events.Bus, fn func(path string)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(s.Dir); err != nil {
		return fmt.Errorf("watch %s: %w", s.Dir, err)
	}
	s.Logger.Debug("watching presets", "dir", s.Dir)

	d := newDebouncer(SettleDelay, func(path string) {
		if ctx.Err() != nil {
			return
		}
		s.Logger.Debug("preset changed", "path", path)
		bus.Publish(events.Event{Type: events.PresetsChanged, Path: path})
		if fn != nil {
			fn(path)
		}
	})
	defer d.stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !isPresetEvent(ev) {
				continue
			}
			d.schedule(ev.Name)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.Logger.Warn("preset watcher error", "error", err)
		}
	}
}

// debouncer fires once per key after delay has passed without another
// schedule call for that key.
type debouncer struct {
	delay time.Duration
	fire  func(key string)

	mu      sync.Mutex
	pending map[string]*debounceEntry
	wg      sync.WaitGroup
}

type debounceEntry struct {
	timer *time.Timer
}

func newDebouncer(delay time.Duration, fire func(key string)) *debouncer {
	return &debouncer{delay: delay, fire: fire, pending: map[string]*debounceEntry{}}
}

func (d *debouncer) schedule(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if old, ok := d.pending[key]; ok && old.timer.Stop() {
		d.wg.Done()
	}
	e := &debounceEntry{}
	d.wg.Add(1)
	e.timer = time.AfterFunc(d.delay, func() {
		defer d.wg.Done()
		d.expire(key, e)
	})
	d.pending[key] = e
}

// expire fires key only when e is still its pending entry. A timer that
// was already running when schedule replaced it finds a newer entry and
// leaves it alone.
func (d *debouncer) expire(key string, e *debounceEntry) {
	d.mu.Lock()
	if d.pending[key] != e {
		d.mu.Unlock()
		return
	}
	delete(d.pending, key)
	d.mu.Unlock()
	d.fire(key)
}

// stop cancels pending timers and waits for running callbacks.
func (d *debouncer) stop() {
	d.mu.Lock()
	for key, e := range d.pending {
		if e.timer.Stop() {
			d.wg.Done()
		}
		delete(d.pending, key)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

// isPresetEvent filters out temp files and chmod-only notifications.
func isPresetEvent(ev fsnotify.Event) bool {
	if ev.Op == fsnotify.Chmod {
		return false
	}
	base := filepath.Base(ev.Name)
	return !strings.HasPrefix(base, ".") && strings.EqualFold(filepath.Ext(base), Ext)
}
