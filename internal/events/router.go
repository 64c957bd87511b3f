// Package events turns reader notifications into UI events.
package events

import (
	"sync"

	"github.com/rs/zerolog/log"

	"handheld_rfid_go/internal/driver"
	"handheld_rfid_go/internal/ui"
)

// DefaultBatchSize is the most tags pulled per read notification.
const DefaultBatchSize = 100

// Router forwards hardware events from the attached reader. It never does
// blocking work on the driver's goroutine: UI events go to the Poster and
// teardown is handed to schedule.
type Router struct {
	ui       ui.Poster
	schedule func(func())
	teardown func()
	batch    int

	mu     sync.RWMutex
	reader driver.Reader
}

// NewRouter wires the router. schedule must queue fn on the hardware worker;
// teardown is what runs there after a hardware disconnect.
func NewRouter(poster ui.Poster, schedule func(func()), teardown func(), batch int) *Router {
	if batch <= 0 {
		batch = DefaultBatchSize
	}
	return &Router{
		ui:       poster,
		schedule: schedule,
		teardown: teardown,
		batch:    batch,
	}
}

// Attach subscribes to r's events.
func (rt *Router) Attach(r driver.Reader) error {
	rt.mu.Lock()
	rt.reader = r
	rt.mu.Unlock()

	if err := r.Subscribe(rt.Dispatch); err != nil {
		rt.mu.Lock()
		if rt.reader == r {
			rt.reader = nil
		}
		rt.mu.Unlock()
		return driver.Fail("subscribe events", err)
	}
	return nil
}

// Detach unsubscribes from the attached reader, if any.
func (rt *Router) Detach() error {
	rt.mu.Lock()
	r := rt.reader
	rt.reader = nil
	rt.mu.Unlock()

	if r == nil {
		return nil
	}
	return r.Unsubscribe()
}

// Dispatch handles one reader event.
func (rt *Router) Dispatch(ev driver.Event) {
	switch e := ev.(type) {
	case driver.ReadEvent:
		rt.mu.RLock()
		r := rt.reader
		rt.mu.RUnlock()
		if r == nil {
			return
		}
		if batch := r.PullReadTags(rt.batch); len(batch) > 0 {
			rt.ui.Post(ui.TagBatch{Tags: batch})
		}
	case driver.TriggerEvent:
		log.Debug().Str("component", "events").Bool("pressed", e.Pressed).Msg("trigger")
		rt.ui.Post(ui.Trigger{Pressed: e.Pressed})
	case driver.DisconnectionEvent:
		log.Warn().Str("component", "events").Str("reason", e.Reason).Msg("reader disconnected")
		if rt.teardown != nil {
			rt.schedule(rt.teardown)
		}
	default:
		log.Warn().Str("component", "events").Msgf("unhandled reader event %T", ev)
	}
}
