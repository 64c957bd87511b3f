package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"handheld_rfid_go/internal/discovery"
	"handheld_rfid_go/internal/driver"
	"handheld_rfid_go/internal/ui"
)

// Toggle disconnects when connected and connects otherwise. The work is queued
// on the worker, so overlapping calls never race each other.
func (s *Session) Toggle() {
	if s.IsConnected() {
		s.schedule(s.Disconnect)
		return
	}
	s.schedule(s.connectTask)
}

// ConnectAsync queues a discover and connect.
func (s *Session) ConnectAsync() {
	s.schedule(s.connectTask)
}

func (s *Session) connectTask() {
	if !s.IsConnected() {
		s.postStatus(StatusConnecting, false)
	}
	result := s.Connect()
	s.postStatus(result, s.IsConnected())
}

// Connect discovers a reader if none is held, connects it and configures it.
// The returned text is meant for the operator; failures are never returned as errors.
func (s *Session) Connect() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handle == nil {
		h, err := s.discoverLocked()
		if err != nil {
			if errors.Is(err, driver.ErrNotFound) {
				log.Info().Str("component", "session").Err(err).Msg("no reader available")
				return StatusNotFound
			}
			log.Error().Str("component", "session").Err(err).Msg("discovery failed")
			return failedPrefix + driver.Describe(err)
		}
		s.setHandle(h)
	}
	return s.connectHandleLocked()
}

func (s *Session) discoverLocked() (*ReaderHandle, error) {
	if s.enum == nil {
		if s.newEnum == nil {
			return nil, &driver.UsageError{Op: "discover", Info: "no reader driver configured"}
		}
		enum, err := s.newEnum()
		if err != nil {
			return nil, driver.Fail("init reader driver", err)
		}
		s.enum = enum
	}
	s.enum.Watch(s)

	desc, err := discovery.Find(s.ctx, s.enum, s.opts.Discovery)
	if err != nil {
		return nil, err
	}
	r, err := s.enum.Open(desc)
	if err != nil {
		return nil, driver.Fail("open reader", err)
	}
	return &ReaderHandle{
		ID:     uuid.NewString(),
		Device: desc,
		Reader: r,
		Opened: time.Now(),
	}, nil
}

// connectHandleLocked connects the held handle. s.mu must be held.
func (s *Session) connectHandleLocked() string {
	if s.handle == nil {
		return StatusDisconnected
	}
	r := s.handle.Reader
	host := r.HostName()
	if r.IsConnected() {
		s.setState(Connected)
		return connectedPrefix + host
	}

	s.setState(Connecting)
	stop := s.startTicker()
	started := time.Now()
	err := r.Connect()
	stop()
	elapsed := time.Since(started)

	if err != nil {
		s.setState(Disconnected)
		log.Error().Str("component", "session").Str("host", host).Err(err).Msg("connect failed")
		return failedPrefix + driver.Describe(err)
	}
	s.setState(Connected)
	log.Info().Str("component", "session").Str("host", host).Str("handle", s.handle.ID).Dur("elapsed", elapsed).Msg("connected")

	s.configureLocked(r, host)

	if !r.IsConnected() {
		s.setState(Disconnected)
		return StatusDisconnected
	}
	return fmt.Sprintf("%s%s (%d ms)", connectedPrefix, host, elapsed.Milliseconds())
}

// configureLocked subscribes events and pairs the scanner. Failures here are
// logged and reported as a toast; the session stays Connected.
func (s *Session) configureLocked(r driver.Reader, host string) {
	if err := s.router.Attach(r); err != nil {
		log.Error().Str("component", "session").Err(err).Msg("configuration failed")
		s.ui.Post(ui.Toast{Text: "Reader configuration failed: " + driver.Describe(err)})
	}
	if err := s.scanner.Setup(host); err != nil {
		log.Error().Str("component", "session").Err(err).Msg("scanner setup failed")
	}
}

// startTicker posts an elapsed-seconds status until the returned stop is called.
// stop waits for the ticker goroutine, so no tick is posted after it returns.
func (s *Session) startTicker() func() {
	quit := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		n := 0
		s.postStatus(fmt.Sprintf("%s %ds", StatusConnecting, n), false)
		t := time.NewTicker(s.opts.TickInterval)
		defer t.Stop()
		for {
			select {
			case <-quit:
				return
			case <-t.C:
				n++
				s.postStatus(fmt.Sprintf("%s %ds", StatusConnecting, n), false)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(quit)
			wg.Wait()
		})
	}
}

// Resume follows the configured ResumePolicy.
func (s *Session) Resume() {
	if s.opts.Resume == ResumeCached {
		s.schedule(func() {
			s.mu.Lock()
			result := s.connectHandleLocked()
			s.mu.Unlock()
			s.postStatus(result, s.IsConnected())
		})
		return
	}
	s.schedule(s.connectTask)
}

// Pause releases the reader while the operator is away.
func (s *Session) Pause() {
	s.schedule(s.Disconnect)
}
