package session

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"handheld_rfid_go/internal/queue"
)

// worker runs hardware tasks one at a time in submission order.
type worker struct {
	box *queue.Mailbox[func()]

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func newWorker() *worker {
	return &worker{box: queue.NewMailbox[func()]()}
}

func (w *worker) start(parent context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done != nil {
		return
	}
	ctx, cancel := context.WithCancel(parent)
	w.cancel = cancel
	w.done = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		w.box.Run(ctx, runTask)
	}(w.done)
}

func runTask(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("component", "session").Interface("panic", r).Msg("worker task panicked")
		}
	}()
	fn()
}

// submit queues fn. It reports false once the worker is stopped.
func (w *worker) submit(fn func()) bool {
	return w.box.Push(fn) == nil
}

// stop rejects new tasks, finishes queued ones and waits. Tasks left behind
// by a cancelled context run on the caller once the worker goroutine is gone.
func (w *worker) stop() {
	w.box.Close()

	w.mu.Lock()
	done, cancel := w.done, w.cancel
	w.mu.Unlock()

	if done != nil {
		<-done
	}
	if cancel != nil {
		cancel()
	}
	for _, fn := range w.box.Drain() {
		runTask(fn)
	}
}
