// Package serialscan is a ScannerSDK for RS232 and USB-CDC barcode scanners:
// each configured serial device is one scanner, each open port one session.
package serialscan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.bug.st/serial"

	"handheld_rfid_go/internal/driver"
	"handheld_rfid_go/internal/queue"
)

const maxLineSize = 8192

// Port is the part of serial.Port the scanner uses.
type Port interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
}

type PortFactory func(path string, mode *serial.Mode) (Port, error)

func DefaultPortFactory(path string, mode *serial.Mode) (Port, error) {
	return serial.Open(path, mode)
}

// Device is one configured scanner port.
type Device struct {
	Path string `yaml:"path"`
	Name string `yaml:"name"`
}

type Config struct {
	Devices []Device
	Baud    int
	// TriggerCommand and ReleaseCommand are written raw; Go escapes like \x16 are accepted.
	TriggerCommand string
	ReleaseCommand string
}

type session struct {
	port Port
	stop chan struct{}
	done chan struct{}
}

type SDK struct {
	cfg    Config
	open   PortFactory
	exists func(path string) bool

	// events keeps notifications ordered and off the caller's goroutine.
	events    *queue.Mailbox[driver.ScannerEvent]
	startOnce sync.Once

	mu       sync.Mutex
	modes    []driver.OpMode
	mask     driver.EventMask
	handler  driver.ScannerEventHandler
	sessions map[int]*session
}

func New(cfg Config) *SDK {
	if cfg.Baud <= 0 {
		cfg.Baud = 9600
	}
	return &SDK{
		cfg:      cfg,
		open:     DefaultPortFactory,
		exists:   pathExists,
		events:   queue.NewMailbox[driver.ScannerEvent](),
		sessions: make(map[int]*session),
	}
}

func pathExists(path string) bool {
	if runtime.GOOS == "windows" {
		return true
	}
	_, err := os.Stat(path)
	return err == nil
}

// SetOperationalMode records the mode. Serial scanners are always CDC; the
// bluetooth mode is accepted for rfcomm-bound ports.
func (s *SDK) SetOperationalMode(mode driver.OpMode) error {
	switch mode {
	case driver.OpModeUSBCDC, driver.OpModeBTNormal:
	default:
		return &driver.UsageError{Op: "set operational mode", Info: "unsupported mode " + string(mode)}
	}
	s.mu.Lock()
	s.modes = append(s.modes, mode)
	s.mu.Unlock()
	return nil
}

func (s *SDK) Subscribe(mask driver.EventMask, h driver.ScannerEventHandler) error {
	s.mu.Lock()
	s.mask = mask
	s.handler = h
	s.mu.Unlock()
	s.startOnce.Do(func() {
		go s.events.Run(context.Background(), s.deliver)
	})
	return nil
}

// Close closes every open port and stops event delivery.
func (s *SDK) Close() error {
	s.mu.Lock()
	ids := make([]int, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	var errs []error
	for _, id := range ids {
		if err := s.TerminateSession(id); err != nil {
			errs = append(errs, err)
		}
	}
	s.events.Close()
	return errors.Join(errs...)
}

func (s *SDK) AvailableScanners() ([]driver.ScannerInfo, error) {
	var out []driver.ScannerInfo
	for i, d := range s.cfg.Devices {
		if d.Path == "" || !s.exists(d.Path) {
			continue
		}
		out = append(out, driver.ScannerInfo{ID: i + 1, Name: deviceName(d)})
	}
	return out, nil
}

func deviceName(d Device) string {
	if d.Name != "" {
		return d.Name
	}
	return filepath.Base(d.Path)
}

func (s *SDK) device(id int) (Device, bool) {
	if id <= 0 || id > len(s.cfg.Devices) {
		return Device{}, false
	}
	return s.cfg.Devices[id-1], true
}

func (s *SDK) EstablishSession(id int) error {
	d, ok := s.device(id)
	if !ok {
		return &driver.OperationFailure{Op: "establish session", Description: fmt.Sprintf("no scanner %d", id)}
	}

	s.mu.Lock()
	if _, open := s.sessions[id]; open {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	port, err := s.open(d.Path, &serial.Mode{
		BaudRate: s.cfg.Baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return driver.Fail("open scanner", err)
	}
	if err := port.SetReadTimeout(100 * time.Millisecond); err != nil {
		_ = port.Close()
		return driver.Fail("set read timeout", err)
	}

	sess := &session{port: port, stop: make(chan struct{}), done: make(chan struct{})}
	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()

	log.Info().Str("component", "serialscan").Str("path", d.Path).Msg("opened barcode scanner")
	go s.readLoop(id, d, sess)
	s.notify(driver.EventSessionEstablishment, driver.SessionEstablished{Info: driver.ScannerInfo{ID: id, Name: deviceName(d)}})
	return nil
}

func (s *SDK) TerminateSession(id int) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		return &driver.OperationFailure{Op: "terminate session", Description: fmt.Sprintf("no session %d", id)}
	}

	close(sess.stop)
	err := sess.port.Close()
	<-sess.done
	s.notify(driver.EventSessionTermination, driver.SessionTerminated{ID: id})
	if err != nil {
		return driver.Fail("close scanner", err)
	}
	return nil
}

func (s *SDK) ExecuteCommand(op driver.Opcode, inXML string, id int) (string, error) {
	var raw string
	switch op {
	case driver.OpcodePullTrigger:
		raw = s.cfg.TriggerCommand
	case driver.OpcodeReleaseTrigger:
		raw = s.cfg.ReleaseCommand
	default:
		return "", &driver.UsageError{Op: "execute command", Info: "unknown opcode " + op.String()}
	}
	if raw == "" {
		return "", &driver.OperationFailure{Op: op.String(), Description: "not supported by this scanner"}
	}
	payload, err := unescape(raw)
	if err != nil {
		return "", &driver.UsageError{Op: op.String(), Info: err.Error()}
	}

	s.mu.Lock()
	sess, ok := s.sessions[id]
	s.mu.Unlock()
	if !ok {
		return "", &driver.OperationFailure{Op: op.String(), Description: "no active session"}
	}
	log.Debug().Str("component", "serialscan").Str("op", op.String()).Str("in", inXML).Msg("command")
	if _, err := sess.port.Write(payload); err != nil {
		return "", driver.Fail(op.String(), err)
	}
	return "<outArgs/>", nil
}

func unescape(raw string) ([]byte, error) {
	if !strings.Contains(raw, `\`) {
		return []byte(raw), nil
	}
	out, err := strconv.Unquote(`"` + strings.ReplaceAll(raw, `"`, `\"`) + `"`)
	if err != nil {
		return nil, fmt.Errorf("bad command escape %q: %w", raw, err)
	}
	return []byte(out), nil
}

// cleanLine strips whitespace and STX/ETX framing.
func cleanLine(line string) string {
	line = strings.TrimSpace(line)
	line = strings.TrimPrefix(line, "\x02")
	line = strings.TrimSuffix(line, "\x03")
	return strings.TrimSpace(line)
}

func (s *SDK) readLoop(id int, d Device, sess *session) {
	defer close(sess.done)

	buf := make([]byte, 1024)
	var line []byte
	overflowed := false

	for {
		select {
		case <-sess.stop:
			return
		default:
		}

		n, err := sess.port.Read(buf)
		for _, b := range buf[:n] {
			if b == '\n' || b == '\r' {
				if overflowed {
					overflowed = false
					line = line[:0]
					continue
				}
				if text := cleanLine(string(line)); text != "" {
					s.notify(driver.EventBarcode, driver.BarcodeEvent{Data: []byte(text), ScannerID: id})
				}
				line = line[:0]
				continue
			}
			if overflowed {
				continue
			}
			if len(line) >= maxLineSize {
				log.Warn().Str("component", "serialscan").Str("path", d.Path).Msg("buffer overflow, discarding data until next delimiter")
				line = line[:0]
				overflowed = true
				continue
			}
			line = append(line, b)
		}

		if err != nil {
			select {
			case <-sess.stop:
				return
			default:
			}
			if !errors.Is(err, io.EOF) {
				log.Error().Str("component", "serialscan").Str("path", d.Path).Err(err).Msg("scanner read failed")
			}
			s.dropSession(id, sess)
			return
		}
	}
}

// dropSession handles a port that failed underneath an open session.
func (s *SDK) dropSession(id int, sess *session) {
	s.mu.Lock()
	if s.sessions[id] == sess {
		delete(s.sessions, id)
	}
	s.mu.Unlock()
	_ = sess.port.Close()
	s.notify(driver.EventSessionTermination, driver.SessionTerminated{ID: id})
	s.notify(driver.EventScannerDisappearance, driver.ScannerDisappeared{ID: id})
}

func (s *SDK) notify(bit driver.EventMask, ev driver.ScannerEvent) {
	s.mu.Lock()
	h, mask := s.handler, s.mask
	s.mu.Unlock()
	if h == nil || !mask.Has(bit) {
		return
	}
	_ = s.events.Push(ev)
}

func (s *SDK) deliver(ev driver.ScannerEvent) {
	s.mu.Lock()
	h := s.handler
	s.mu.Unlock()
	if h != nil {
		h(ev)
	}
}

var _ driver.ScannerSDK = (*SDK)(nil)
