package ui

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"handheld_rfid_go/internal/queue"
)

// Dispatcher owns the UI goroutine: events posted from any goroutine are handed
// to the sink one at a time, in post order, exactly once.
type Dispatcher struct {
	sink Sink
	box  *queue.Mailbox[Event]

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

func NewDispatcher(sink Sink) *Dispatcher {
	return &Dispatcher{
		sink: sink,
		box:  queue.NewMailbox[Event](),
	}
}

// Start launches the consumer goroutine. Calling it twice is a no-op.
func (d *Dispatcher) Start(parent context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return
	}
	ctx, cancel := context.WithCancel(parent)
	d.cancel = cancel
	d.done = make(chan struct{})
	d.started = true

	go func(done chan struct{}) {
		defer close(done)
		d.box.Run(ctx, d.sink.Handle)
	}(d.done)
}

// Post queues ev without blocking the caller.
func (d *Dispatcher) Post(ev Event) {
	if ev == nil {
		return
	}
	if err := d.box.Push(ev); err != nil {
		log.Debug().Str("component", "ui").Str("kind", ev.Kind()).Msg("event dropped after close")
	}
}

// Pending reports events not yet handed to the sink.
func (d *Dispatcher) Pending() int {
	return d.box.Len()
}

// Close stops accepting events, delivers what is queued and waits for the consumer.
// Events left behind by a cancelled context are delivered on the caller once the
// consumer goroutine is gone.
func (d *Dispatcher) Close() {
	d.box.Close()

	d.mu.Lock()
	done := d.done
	cancel := d.cancel
	d.mu.Unlock()

	if done == nil {
		return
	}
	<-done
	cancel()
	for _, ev := range d.box.Drain() {
		d.sink.Handle(ev)
	}
}
