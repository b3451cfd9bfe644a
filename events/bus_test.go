package events

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"videomass/models"
)

func TestBus_PublishOrder(t *testing.T) {
	bus := NewBus(nil)

	var got []string
	bus.Subscribe(func(e Event) { got = append(got, "a:"+e.TaskID) })
	bus.Subscribe(func(e Event) { got = append(got, "b:"+e.TaskID) })

	bus.Publish(Event{Type: TaskStarted, TaskID: "1"})
	bus.Publish(Event{Type: TaskFinished, TaskID: "2"})

	assert.Equal(t, []string{"a:1", "b:1", "a:2", "b:2"}, got)
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus(nil)

	count := 0
	unsubscribe := bus.Subscribe(func(Event) { count++ })
	require.Equal(t, 1, bus.Len())

	bus.Publish(Event{Type: TaskProgress})
	unsubscribe()
	unsubscribe() // second call is a no-op
	bus.Publish(Event{Type: TaskProgress})

	assert.Equal(t, 1, count)
	assert.Equal(t, 0, bus.Len())
}

func TestBus_PanickingSubscriber(t *testing.T) {
	bus := NewBus(nil)

	var received []Type
	bus.Subscribe(func(Event) { panic("boom") })
	bus.Subscribe(func(e Event) { received = append(received, e.Type) })

	assert.NotPanics(t, func() {
		bus.Publish(Event{Type: TaskFailed, Err: errors.New("exit status 1")})
	})
	assert.Equal(t, []Type{TaskFailed}, received)
}

func TestBus_SetsTimestamp(t *testing.T) {
	bus := NewBus(nil)

	var e Event
	bus.Subscribe(func(got Event) { e = got })
	bus.Publish(Event{Type: PresetsChanged, Path: "/presets/audio.prst"})

	assert.False(t, e.Timestamp.IsZero())
	assert.Equal(t, "/presets/audio.prst", e.Path)
}

func TestBus_NilBusIgnoresPublish(t *testing.T) {
	var bus *Bus
	assert.NotPanics(t, func() { bus.Publish(Event{Type: TaskStarted}) })
}

func TestBus_ConcurrentPublish(t *testing.T) {
	bus := NewBus(nil)

	var mu sync.Mutex
	count := 0
	bus.Subscribe(func(Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.Publish(Event{Type: TaskProgress})
		}()
	}
	wg.Wait()

	assert.Equal(t, 20, count)
}

func TestBus_SubscribeDuringPublish(t *testing.T) {
	bus := NewBus(nil)

	late := 0
	bus.Subscribe(func(Event) {
		bus.Subscribe(func(Event) { late++ })
	})

	bus.Publish(Event{Type: TaskStarted})
	assert.Equal(t, 0, late, "subscribers added during delivery wait for the next event")
	assert.Equal(t, 2, bus.Len())
}

func TestProgressPublisher(t *testing.T) {
	bus := NewBus(nil)
	var got []Event
	bus.Subscribe(func(e Event) { got = append(got, e) })

	p := models.NewEncodingProgress(10)
	p.TaskID = "job/1-convert"
	p.Progress = 40

	cb := ProgressPublisher(bus)
	cb(p)
	cb(nil)
	p.Progress = 80

	require.Len(t, got, 1)
	assert.Equal(t, TaskProgress, got[0].Type)
	assert.Equal(t, "job/1-convert", got[0].TaskID)
	assert.Equal(t, 40.0, got[0].Progress.Progress)
}
