package sim

import (
	"fmt"
	"math/rand"
	"sync"

	"handheld_rfid_go/internal/driver"
)

// Command is one ExecuteCommand call.
type Command struct {
	Op    driver.Opcode
	InXML string
	ID    int
}

// Scanner is a simulated scanner SDK. Notifications are delivered on their
// own goroutine, as a vendor SDK would.
type Scanner struct {
	mu       sync.Mutex
	modes    []driver.OpMode
	mask     driver.EventMask
	handler  driver.ScannerEventHandler
	scanners []driver.ScannerInfo
	sessions map[int]bool
	commands []Command
	subs     int
	demo     bool

	EstablishErr error
	ExecErr      error
}

func NewScanner(scanners ...driver.ScannerInfo) *Scanner {
	return &Scanner{
		scanners: append([]driver.ScannerInfo(nil), scanners...),
		sessions: make(map[int]bool),
	}
}

// SetDemo makes a pull trigger produce a random barcode.
func (s *Scanner) SetDemo(on bool) {
	s.mu.Lock()
	s.demo = on
	s.mu.Unlock()
}

func (s *Scanner) SetOperationalMode(mode driver.OpMode) error {
	s.mu.Lock()
	s.modes = append(s.modes, mode)
	s.mu.Unlock()
	return nil
}

func (s *Scanner) Subscribe(mask driver.EventMask, h driver.ScannerEventHandler) error {
	s.mu.Lock()
	s.mask = mask
	s.handler = h
	s.subs++
	s.mu.Unlock()
	return nil
}

func (s *Scanner) AvailableScanners() ([]driver.ScannerInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]driver.ScannerInfo(nil), s.scanners...), nil
}

func (s *Scanner) EstablishSession(id int) error {
	s.mu.Lock()
	if s.EstablishErr != nil {
		err := s.EstablishErr
		s.mu.Unlock()
		return err
	}
	info, ok := s.lookup(id)
	if !ok {
		s.mu.Unlock()
		return &driver.OperationFailure{Op: "establish session", Description: fmt.Sprintf("no scanner %d", id)}
	}
	s.sessions[id] = true
	s.mu.Unlock()

	s.notify(driver.EventSessionEstablishment, driver.SessionEstablished{Info: info})
	return nil
}

func (s *Scanner) TerminateSession(id int) error {
	s.mu.Lock()
	if !s.sessions[id] {
		s.mu.Unlock()
		return &driver.OperationFailure{Op: "terminate session", Description: fmt.Sprintf("no session %d", id)}
	}
	delete(s.sessions, id)
	s.mu.Unlock()

	s.notify(driver.EventSessionTermination, driver.SessionTerminated{ID: id})
	return nil
}

func (s *Scanner) ExecuteCommand(op driver.Opcode, inXML string, id int) (string, error) {
	s.mu.Lock()
	s.commands = append(s.commands, Command{Op: op, InXML: inXML, ID: id})
	err := s.ExecErr
	open := s.sessions[id]
	demo := s.demo
	s.mu.Unlock()

	if err != nil {
		return "", err
	}
	if !open {
		return "", &driver.OperationFailure{Op: op.String(), Description: "no active session"}
	}
	if demo && op == driver.OpcodePullTrigger {
		s.Scan(id, fmt.Sprintf("%012d", rand.Int63n(1_000_000_000_000)))
	}
	return "<outArgs/>", nil
}

// Scan delivers a decoded barcode.
func (s *Scanner) Scan(id int, data string) {
	s.notify(driver.EventBarcode, driver.BarcodeEvent{Data: []byte(data), ScannerID: id})
}

// Appear adds a scanner to the available list and announces it.
func (s *Scanner) Appear(info driver.ScannerInfo) {
	s.mu.Lock()
	s.scanners = append(s.scanners, info)
	s.mu.Unlock()
	s.notify(driver.EventScannerAppearance, driver.ScannerAppeared{Info: info})
}

// Disappear removes a scanner and announces it.
func (s *Scanner) Disappear(id int) {
	s.mu.Lock()
	kept := s.scanners[:0]
	for _, sc := range s.scanners {
		if sc.ID != id {
			kept = append(kept, sc)
		}
	}
	s.scanners = kept
	delete(s.sessions, id)
	s.mu.Unlock()
	s.notify(driver.EventScannerDisappearance, driver.ScannerDisappeared{ID: id})
}

func (s *Scanner) Modes() []driver.OpMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]driver.OpMode(nil), s.modes...)
}

func (s *Scanner) Mask() driver.EventMask {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mask
}

func (s *Scanner) Subscriptions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subs
}

func (s *Scanner) Commands() []Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Command(nil), s.commands...)
}

func (s *Scanner) HasSession(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[id]
}

func (s *Scanner) lookup(id int) (driver.ScannerInfo, bool) {
	for _, sc := range s.scanners {
		if sc.ID == id {
			return sc, true
		}
	}
	return driver.ScannerInfo{}, false
}

func (s *Scanner) notify(bit driver.EventMask, ev driver.ScannerEvent) {
	s.mu.Lock()
	h := s.handler
	mask := s.mask
	s.mu.Unlock()
	if h == nil || !mask.Has(bit) {
		return
	}
	go h(ev)
}
