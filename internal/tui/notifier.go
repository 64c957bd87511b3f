package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"handheld_rfid_go/internal/ui"
)

// Notifier is the ui.Sink that wakes the terminal program. Bursts of events
// collapse into one redraw, and Handle never waits on the program.
type Notifier struct {
	snapshot func() ui.Snapshot
	dirty    chan struct{}
}

func NewNotifier(screen Screen) *Notifier {
	return &Notifier{
		snapshot: screen.Snapshot,
		dirty:    make(chan struct{}, 1),
	}
}

func (n *Notifier) Handle(ui.Event) {
	select {
	case n.dirty <- struct{}{}:
	default:
	}
}

// Pump forwards a snapshot to send after every burst until ctx ends.
func (n *Notifier) Pump(ctx context.Context, send func(tea.Msg)) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-n.dirty:
			send(screenMsg{Snapshot: n.snapshot()})
		}
	}
}

var _ ui.Sink = (*Notifier)(nil)
