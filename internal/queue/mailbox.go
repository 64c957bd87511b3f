// Package queue provides the unbounded FIFO used for every goroutine hop:
// the hardware worker and the UI dispatcher both drain one.
package queue

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Push after Close.
var ErrClosed = errors.New("mailbox closed")

// Mailbox is an unbounded FIFO with a single consumer. Push never blocks.
type Mailbox[T any] struct {
	mu     sync.Mutex
	items  []T
	closed bool
	signal chan struct{}
}

func NewMailbox[T any]() *Mailbox[T] {
	return &Mailbox[T]{signal: make(chan struct{}, 1)}
}

// Push appends item and wakes the consumer.
func (m *Mailbox[T]) Push(item T) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.items = append(m.items, item)
	m.mu.Unlock()

	select {
	case m.signal <- struct{}{}:
	default:
	}
	return nil
}

// Len reports the number of queued items.
func (m *Mailbox[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// Close stops accepting items. Items already queued are still delivered by Run.
func (m *Mailbox[T]) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.mu.Unlock()

	select {
	case m.signal <- struct{}{}:
	default:
	}
}

// Drain removes and returns everything queued. It is for the consumer side
// after Run has returned.
func (m *Mailbox[T]) Drain() []T {
	batch, _ := m.drain()
	return batch
}

func (m *Mailbox[T]) drain() ([]T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	batch := m.items
	m.items = nil
	return batch, m.closed
}

// Run delivers items to fn in order, one at a time, until the mailbox is closed
// and empty or ctx is cancelled.
func (m *Mailbox[T]) Run(ctx context.Context, fn func(T)) {
	for {
		batch, closed := m.drain()
		for _, item := range batch {
			fn(item)
		}
		if closed && len(batch) == 0 {
			return
		}
		if len(batch) > 0 {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-m.signal:
		}
	}
}
