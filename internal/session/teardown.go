package session

import (
	"github.com/rs/zerolog/log"

	"handheld_rfid_go/internal/driver"
	"handheld_rfid_go/internal/ui"
)

// Disconnect tears the held reader down. Each step runs even if an earlier one
// failed. Without a handle it does nothing.
func (s *Session) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disconnectLocked()
}

func (s *Session) disconnectLocked() {
	h := s.handle
	if h == nil {
		s.setState(Disconnected)
		return
	}
	r := h.Reader

	if err := r.StopInventory(); err != nil {
		log.Debug().Str("component", "session").Err(err).Msg("stop inventory during disconnect (expected if already stopped)")
	}
	if err := s.router.Detach(); err != nil {
		log.Warn().Str("component", "session").Err(err).Msg("unsubscribe failed")
	}
	if err := s.scanner.Terminate(); err != nil {
		log.Warn().Str("component", "session").Err(err).Msg("scanner terminate failed")
	}
	if err := r.Disconnect(); err != nil {
		log.Warn().Str("component", "session").Err(err).Msg("error during disconnect")
	}
	if err := r.Dispose(); err != nil {
		log.Warn().Str("component", "session").Err(err).Msg("error during dispose")
	}

	s.setHandle(nil)
	s.setState(Disconnected)
	log.Info().Str("component", "session").Str("host", h.Device.Name).Str("handle", h.ID).Msg("disconnected")
	s.postStatus(StatusDisconnected, false)
}

// Dispose disconnects and releases the enumerator. A later connect creates a new one.
func (s *Session) Dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.disconnectLocked()
	if s.enum == nil {
		return
	}
	if err := s.enum.Dispose(); err != nil {
		log.Warn().Str("component", "session").Err(err).Msg("enumerator dispose failed")
	}
	s.enum = nil
}

// teardown runs on the worker after the reader reported a dropped link.
func (s *Session) teardown() {
	s.Dispose()
}

// DeviceAppeared queues a connect attempt. A reader that is already connected
// is left alone.
func (s *Session) DeviceAppeared(desc driver.DeviceDescriptor) {
	log.Info().Str("component", "session").Str("device", desc.Name).Msg("reader appeared")
	s.schedule(func() {
		if s.IsConnected() {
			log.Debug().Str("component", "session").Str("device", desc.Name).Msg("already connected, appearance ignored")
			return
		}
		s.connectTask()
	})
}

// DeviceDisappeared notifies the operator and disconnects only if the device is
// the one currently held.
func (s *Session) DeviceDisappeared(desc driver.DeviceDescriptor) {
	log.Info().Str("component", "session").Str("device", desc.Name).Msg("reader disappeared")
	s.ui.Post(ui.Toast{Text: "Reader disappeared: " + desc.Name})
	s.schedule(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.handle == nil || desc.Name == "" || s.handle.Reader.HostName() != desc.Name {
			return
		}
		s.disconnectLocked()
	})
}
