package presets

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fireRecorder struct {
	mu    sync.Mutex
	fired []string
}

func (r *fireRecorder) fire(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fired = append(r.fired, key)
}

func (r *fireRecorder) keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.fired...)
}

func TestDebouncer_StaleTimerKeepsNewerEntry(t *testing.T) {
	var rec fireRecorder
	d := newDebouncer(time.Hour, rec.fire)

	d.schedule("a.prst")
	stale := d.pending["a.prst"]
	d.schedule("a.prst")
	current := d.pending["a.prst"]
	require.NotSame(t, stale, current)

	// A timer that fired while being replaced must not drop the new entry.
	d.expire("a.prst", stale)
	assert.Empty(t, rec.keys())
	assert.Same(t, current, d.pending["a.prst"])

	d.expire("a.prst", current)
	assert.Equal(t, []string{"a.prst"}, rec.keys())
	assert.NotContains(t, d.pending, "a.prst")

	current.timer.Stop()
}

func TestDebouncer_BurstFiresOnce(t *testing.T) {
	var rec fireRecorder
	d := newDebouncer(50*time.Millisecond, rec.fire)

	d.schedule("a.prst")
	d.schedule("a.prst")
	d.schedule("b.prst")

	assert.Eventually(t, func() bool { return len(rec.keys()) == 2 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	d.stop()
	assert.ElementsMatch(t, []string{"a.prst", "b.prst"}, rec.keys())
}

func TestDebouncer_StopCancelsPending(t *testing.T) {
	var rec fireRecorder
	d := newDebouncer(time.Hour, rec.fire)
	d.schedule("a.prst")
	d.stop()
	assert.Empty(t, rec.keys())
	assert.Empty(t, d.pending)
}
