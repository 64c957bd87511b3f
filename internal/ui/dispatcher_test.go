package ui

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"handheld_rfid_go/internal/driver"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Handle(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func TestDispatcherDeliversEveryEventInOrder(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	d := NewDispatcher(rec)
	d.Start(context.Background())

	for i := 0; i < 200; i++ {
		d.Post(Toast{Text: "n"})
	}
	d.Post(ReaderStatus{Text: "Disconnected"})
	d.Close()

	events := rec.all()
	require.Len(t, events, 201)
	assert.Equal(t, ReaderStatus{Text: "Disconnected"}, events[200])
}

func TestDispatcherFromManyGoroutines(t *testing.T) {
	t.Parallel()

	var (
		mu      sync.Mutex
		inside  bool
		overlap bool
		count   int
	)
	d := NewDispatcher(SinkFunc(func(Event) {
		mu.Lock()
		if inside {
			overlap = true
		}
		inside = true
		mu.Unlock()

		mu.Lock()
		inside = false
		count++
		mu.Unlock()
	}))
	d.Start(context.Background())

	var wg sync.WaitGroup
	for g := 0; g < 10; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 30; i++ {
				d.Post(Trigger{Pressed: i%2 == 0})
			}
		}()
	}
	wg.Wait()
	d.Close()

	assert.False(t, overlap)
	assert.Equal(t, 300, count)
}

func TestDispatcherPostAfterCloseIsDropped(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	d := NewDispatcher(rec)
	d.Start(context.Background())
	d.Close()
	d.Post(Toast{Text: "late"})

	assert.Empty(t, rec.all())
	assert.Equal(t, 0, d.Pending())
}

func TestTeeFansOut(t *testing.T) {
	t.Parallel()

	a, b := &recorder{}, &recorder{}
	Tee{a, nil, b}.Handle(Barcode{Text: "123"})

	assert.Len(t, a.all(), 1)
	assert.Len(t, b.all(), 1)
}

func TestDispatcherCloseAfterCancelDeliversQueued(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	d := NewDispatcher(rec)
	ctx, cancel := context.WithCancel(context.Background())
	d.Start(ctx)
	cancel()
	require.Eventually(t, func() bool {
		select {
		case <-d.done:
			return true
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)

	d.Post(ReaderStatus{Text: "Disconnected"})
	d.Close()

	assert.Equal(t, []Event{ReaderStatus{Text: "Disconnected"}}, rec.all())
}

func TestScreenCommandsRunInPostOrder(t *testing.T) {
	t.Parallel()

	ctl := &fakeController{}
	s := NewScreen(ctl)
	d := NewDispatcher(s)
	s.SetPoster(d)

	s.Handle(TagBatch{Tags: []driver.TagRecord{{TagID: "OLD"}}})
	s.StartInventory()
	assert.Equal(t, 1, s.Snapshot().UniqueTags, "command waits for the dispatcher")
	assert.Equal(t, 1, d.Pending())

	d.Post(TagBatch{Tags: []driver.TagRecord{{TagID: "A"}, {TagID: "B"}}})
	s.ClearTags()
	d.Post(TagBatch{Tags: []driver.TagRecord{{TagID: "A"}}})

	d.Start(context.Background())
	d.Close()

	snap := s.Snapshot()
	assert.True(t, snap.InventoryRunning)
	assert.Equal(t, 1, snap.UniqueTags)
	require.Len(t, snap.Tags, 1)
	assert.Equal(t, "A", snap.Tags[0].TagID)
	assert.Equal(t, []bool{true}, ctl.calls)
}
