// Package session owns the lifecycle of the single reader connection: discovery,
// connect, configuration, inventory control and teardown. All hardware calls run
// on one worker goroutine; results reach the UI only through the ui.Poster.
package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"handheld_rfid_go/internal/discovery"
	"handheld_rfid_go/internal/driver"
	"handheld_rfid_go/internal/events"
	"handheld_rfid_go/internal/scanner"
	"handheld_rfid_go/internal/syncutil"
	"handheld_rfid_go/internal/ui"
)

const (
	StatusConnecting      = "Connecting..."
	StatusNotFound        = "Failed to find reader"
	StatusDisconnected    = "Disconnected"
	StatusNotConnected    = "Not connected"
	StatusDefaultsApplied = "Default settings applied"

	connectedPrefix = "Connected: "
	failedPrefix    = "Connection failed: "
)

// State is the connection state of the held reader.
type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// ResumePolicy decides what Resume does.
type ResumePolicy string

const (
	// ResumeRediscover runs the full discover and connect path.
	ResumeRediscover ResumePolicy = "rediscover"
	// ResumeCached only reconnects a handle that is still held.
	ResumeCached ResumePolicy = "cached"
)

type Options struct {
	Discovery    discovery.Options
	TickInterval time.Duration
	BatchSize    int
	Resume       ResumePolicy
	Defaults     driver.AntennaConfig
}

func DefaultOptions() Options {
	return Options{
		Discovery:    discovery.DefaultOptions(),
		TickInterval: time.Second,
		BatchSize:    events.DefaultBatchSize,
		Resume:       ResumeRediscover,
		Defaults:     driver.DefaultAntennaConfig(),
	}
}

// ReaderHandle is the one live reader the session holds.
type ReaderHandle struct {
	ID     string
	Device driver.DeviceDescriptor
	Reader driver.Reader
	Opened time.Time
}

// Status is a lock-free view of the session for status surfaces.
type Status struct {
	State       string         `json:"state"`
	HandleID    string         `json:"handle_id,omitempty"`
	Host        string         `json:"host,omitempty"`
	Transport   string         `json:"transport,omitempty"`
	Address     string         `json:"address,omitempty"`
	ConnectedAt time.Time      `json:"connected_at,omitempty"`
	LastStatus  string         `json:"last_status"`
	Scanner     scanner.Status `json:"scanner"`
}

func (st Status) Connected() bool { return st.State == Connected.String() }

type Session struct {
	opts    Options
	newEnum driver.EnumeratorFactory
	ui      ui.Poster
	router  *events.Router
	scanner *scanner.Bridge
	worker  *worker
	ctx     context.Context

	mu     syncutil.Mutex
	enum   driver.Enumerator
	handle *ReaderHandle

	state atomic.Int32

	infoMu      sync.RWMutex
	view        *ReaderHandle
	connectedAt time.Time
	lastStatus  string

	closeOnce sync.Once
}

// New builds a session. scannerSDK may be nil when no scanner is paired.
func New(newEnum driver.EnumeratorFactory, scannerSDK driver.ScannerSDK, poster ui.Poster, opts Options) *Session {
	def := DefaultOptions()
	if opts.TickInterval <= 0 {
		opts.TickInterval = def.TickInterval
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = def.BatchSize
	}
	if opts.Resume == "" {
		opts.Resume = def.Resume
	}
	if len(opts.Discovery.Transports) == 0 {
		opts.Discovery.Transports = def.Discovery.Transports
	}
	if opts.Defaults == (driver.AntennaConfig{}) {
		opts.Defaults = def.Defaults
	}

	s := &Session{
		opts:       opts,
		newEnum:    newEnum,
		ui:         poster,
		worker:     newWorker(),
		ctx:        context.Background(),
		lastStatus: StatusDisconnected,
	}
	s.router = events.NewRouter(poster, s.schedule, s.teardown, opts.BatchSize)
	s.scanner = scanner.NewBridge(scannerSDK, poster, s.schedule)
	return s
}

// Start launches the hardware worker. ctx bounds discovery.
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()
	s.worker.start(ctx)
}

// Close disposes the session on the worker and stops it.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.schedule(s.Dispose)
		s.worker.stop()
	})
}

// Flush blocks until every task queued before the call has run.
// It must only be used after Start.
func (s *Session) Flush() {
	done := make(chan struct{})
	if !s.worker.submit(func() { close(done) }) {
		return
	}
	<-done
}

func (s *Session) schedule(fn func()) {
	if !s.worker.submit(fn) {
		log.Warn().Str("component", "session").Msg("worker stopped, task dropped")
	}
}

func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) IsConnected() bool {
	return s.State() == Connected
}

func (s *Session) setState(st State) {
	prev := State(s.state.Swap(int32(st)))
	if prev != st {
		log.Debug().Str("component", "session").Stringer("from", prev).Stringer("to", st).Msg("state")
	}
	if st == Connected {
		s.infoMu.Lock()
		s.connectedAt = time.Now()
		s.infoMu.Unlock()
	}
}

// setHandle must be called with s.mu held.
func (s *Session) setHandle(h *ReaderHandle) {
	s.handle = h
	s.infoMu.Lock()
	s.view = h
	if h == nil {
		s.connectedAt = time.Time{}
	}
	s.infoMu.Unlock()
}

func (s *Session) postStatus(text string, connected bool) {
	s.infoMu.Lock()
	s.lastStatus = text
	s.infoMu.Unlock()
	s.ui.Post(ui.ReaderStatus{Text: text, Connected: connected})
}

// Status never waits on a hardware call.
func (s *Session) Status() Status {
	s.infoMu.RLock()
	defer s.infoMu.RUnlock()

	st := Status{
		State:      s.State().String(),
		LastStatus: s.lastStatus,
		Scanner:    s.scanner.Status(),
	}
	if h := s.view; h != nil {
		st.HandleID = h.ID
		st.Host = h.Device.Name
		st.Transport = string(h.Device.Transport)
		st.Address = h.Device.Address
		st.ConnectedAt = s.connectedAt
	}
	return st
}
