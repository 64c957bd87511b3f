package session

import (
	"github.com/rs/zerolog/log"

	"handheld_rfid_go/internal/driver"
	"handheld_rfid_go/internal/ui"
)

// PerformInventory starts reading tags. Without a connected reader it does nothing.
func (s *Session) PerformInventory() {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.connectedReaderLocked()
	if r == nil {
		return
	}
	if err := r.StartInventory(); err != nil {
		log.Error().Str("component", "session").Err(err).Msg("error performing inventory")
	}
}

// StopInventory stops reading tags. Without a connected reader it does nothing.
func (s *Session) StopInventory() {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.connectedReaderLocked()
	if r == nil {
		return
	}
	if err := r.StopInventory(); err != nil {
		log.Error().Str("component", "session").Err(err).Msg("error stopping inventory")
	}
}

// SetInventory queues a start or stop on the worker. It is what the UI calls.
func (s *Session) SetInventory(running bool) {
	if running {
		s.schedule(s.PerformInventory)
		return
	}
	s.schedule(s.StopInventory)
}

// Defaults writes the factory antenna and singulation settings to antenna 1.
func (s *Session) Defaults() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handle == nil {
		return StatusDisconnected
	}
	r := s.connectedReaderLocked()
	if r == nil {
		return StatusNotConnected
	}
	if err := r.SetAntennaConfig(s.opts.Defaults); err != nil {
		log.Error().Str("component", "session").Err(err).Msg("error in defaults")
		return "Failed to apply defaults: " + driver.Describe(err)
	}
	return StatusDefaultsApplied
}

// DefaultsAsync runs Defaults on the worker and reports the result as a toast.
func (s *Session) DefaultsAsync() {
	s.schedule(func() {
		s.ui.Post(ui.Toast{Text: s.Defaults()})
	})
}

// PullTrigger asks the paired scanner to scan.
func (s *Session) PullTrigger() {
	s.scanner.PullTrigger()
}

func (s *Session) connectedReaderLocked() driver.Reader {
	if s.handle == nil {
		return nil
	}
	r := s.handle.Reader
	if !r.IsConnected() {
		return nil
	}
	return r
}
