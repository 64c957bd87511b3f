package ui

import (
	"fmt"
	"sync"
	"time"

	"handheld_rfid_go/internal/driver"
	"handheld_rfid_go/internal/tags"
)

const (
	maxTagLines   = 500
	maxBarcodes   = 50
	maxToasts     = 5
	defaultStatus = "Disconnected"
)

// Controller is what the screen drives when the trigger or the operator asks
// for inventory. Implementations must not block.
type Controller interface {
	SetInventory(running bool)
}

// Snapshot is a copy of everything the operator sees.
type Snapshot struct {
	Status           string             `json:"status"`
	Connected        bool               `json:"connected"`
	ScanEnabled      bool               `json:"scan_enabled"`
	InventoryRunning bool               `json:"inventory_running"`
	TriggerPressed   bool               `json:"trigger_pressed"`
	UniqueTags       int                `json:"unique_tags"`
	Tags             []driver.TagRecord `json:"tags"`
	LastBarcode      string             `json:"last_barcode"`
	Barcodes         []string           `json:"barcodes"`
	Toasts           []string           `json:"toasts"`
	Updated          time.Time          `json:"updated"`
}

// StatusLine is the status label with the unique tag counter appended.
func (s Snapshot) StatusLine() string {
	if s.UniqueTags == 0 {
		return s.Status
	}
	return fmt.Sprintf("%s | Unique Tags: %d", s.Status, s.UniqueTags)
}

// FormatTag renders one row of the tag list.
func FormatTag(rec driver.TagRecord) string {
	return fmt.Sprintf("%s (RSSI: %d)", rec.TagID, rec.PeakRSSI)
}

// Screen is the presentation state shared by the terminal UI and the HTTP surface.
// It de-duplicates tags against the set seen since the last inventory restart.
//
// Operator commands (StartInventory, StopInventory, ClearTags) are posted
// through the Poster set with SetPoster and applied by Handle, so every state
// change happens on the dispatcher goroutine. Without a poster they apply at once.
type Screen struct {
	mu     sync.RWMutex
	ctl    Controller
	poster Poster

	seen  *tags.Store
	state Snapshot
}

func NewScreen(ctl Controller) *Screen {
	return &Screen{
		ctl:   ctl,
		seen:  tags.New(),
		state: Snapshot{Status: defaultStatus},
	}
}

func (s *Screen) SetController(ctl Controller) {
	s.mu.Lock()
	s.ctl = ctl
	s.mu.Unlock()
}

// SetPoster routes operator commands through p, normally the Dispatcher
// that feeds this screen.
func (s *Screen) SetPoster(p Poster) {
	s.mu.Lock()
	s.poster = p
	s.mu.Unlock()
}

// Handle applies ev. It runs on the dispatcher goroutine.
func (s *Screen) Handle(ev Event) {
	switch e := ev.(type) {
	case ReaderStatus:
		s.update(func(st *Snapshot) {
			st.Status = e.Text
			st.Connected = e.Connected
			if !e.Connected {
				st.InventoryRunning = false
				st.TriggerPressed = false
			}
		})
	case ScanButtonState:
		s.update(func(st *Snapshot) { st.ScanEnabled = e.Enabled })
	case TagBatch:
		fresh := s.seen.Observe(e.Tags)
		s.update(func(st *Snapshot) {
			st.UniqueTags = s.seen.Size()
			if len(fresh) == 0 {
				return
			}
			lines := make([]driver.TagRecord, 0, len(fresh)+len(st.Tags))
			for i := len(fresh) - 1; i >= 0; i-- {
				lines = append(lines, fresh[i])
			}
			lines = append(lines, st.Tags...)
			if len(lines) > maxTagLines {
				lines = lines[:maxTagLines]
			}
			st.Tags = lines
		})
	case Trigger:
		s.update(func(st *Snapshot) { st.TriggerPressed = e.Pressed })
		s.setInventory(e.Pressed)
	case Barcode:
		s.update(func(st *Snapshot) {
			st.LastBarcode = e.Text
			st.Barcodes = prepend(st.Barcodes, e.Text, maxBarcodes)
		})
	case Toast:
		s.update(func(st *Snapshot) {
			st.Toasts = append(st.Toasts, e.Text)
			if len(st.Toasts) > maxToasts {
				st.Toasts = st.Toasts[len(st.Toasts)-maxToasts:]
			}
		})
	case InventoryRequest:
		s.setInventory(e.Running)
	case ClearRequest:
		s.clearTags()
	}
}

// StartInventory asks for a fresh inventory: the list is cleared and the
// controller starts reading.
func (s *Screen) StartInventory() { s.request(InventoryRequest{Running: true}) }

func (s *Screen) StopInventory() { s.request(InventoryRequest{Running: false}) }

// ClearTags empties the list without touching inventory.
func (s *Screen) ClearTags() { s.request(ClearRequest{}) }

func (s *Screen) request(ev Event) {
	s.mu.RLock()
	p := s.poster
	s.mu.RUnlock()
	if p != nil {
		p.Post(ev)
		return
	}
	s.Handle(ev)
}

func (s *Screen) setInventory(running bool) {
	if running {
		s.seen.Reset()
	}
	s.update(func(st *Snapshot) {
		if running {
			st.Tags = nil
			st.UniqueTags = 0
		}
		st.InventoryRunning = running
	})
	if ctl := s.controller(); ctl != nil {
		ctl.SetInventory(running)
	}
}

func (s *Screen) clearTags() {
	s.seen.Reset()
	s.update(func(st *Snapshot) {
		st.Tags = nil
		st.UniqueTags = 0
	})
}

// Snapshot returns a deep copy of the current state.
func (s *Screen) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := s.state
	out.Tags = append([]driver.TagRecord(nil), s.state.Tags...)
	out.Barcodes = append([]string(nil), s.state.Barcodes...)
	out.Toasts = append([]string(nil), s.state.Toasts...)
	return out
}

func (s *Screen) controller() Controller {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ctl
}

func (s *Screen) update(fn func(*Snapshot)) {
	s.mu.Lock()
	fn(&s.state)
	s.state.Updated = time.Now()
	s.mu.Unlock()
}

func prepend(list []string, v string, limit int) []string {
	out := make([]string, 0, len(list)+1)
	out = append(out, v)
	out = append(out, list...)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
