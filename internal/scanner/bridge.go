// Package scanner manages the barcode scanner session paired with the reader.
package scanner

import (
	"encoding/xml"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"handheld_rfid_go/internal/driver"
	"handheld_rfid_go/internal/syncutil"
	"handheld_rfid_go/internal/ui"
)

type inArgs struct {
	XMLName   xml.Name `xml:"inArgs"`
	ScannerID int      `xml:"scannerID"`
}

// TriggerPayload is the command body for a pull or release trigger.
func TriggerPayload(id int) string {
	out, err := xml.Marshal(inArgs{ScannerID: id})
	if err != nil {
		return fmt.Sprintf("<inArgs><scannerID>%d</scannerID></inArgs>", id)
	}
	return string(out)
}

// Status is a point-in-time view of the bridge.
type Status struct {
	Configured  bool                 `json:"configured"`
	HasSession  bool                 `json:"has_session"`
	SessionID   int                  `json:"session_id"`
	SessionName string               `json:"session_name"`
	Scanners    []driver.ScannerInfo `json:"scanners"`
}

type Bridge struct {
	sdk      driver.ScannerSDK
	ui       ui.Poster
	schedule func(func())

	mu          syncutil.Mutex
	configured  bool
	scanners    []driver.ScannerInfo
	hasSession  bool
	sessionID   int
	sessionName string
}

// NewBridge builds a bridge. A nil sdk makes every call a no-op.
func NewBridge(sdk driver.ScannerSDK, poster ui.Poster, schedule func(func())) *Bridge {
	return &Bridge{sdk: sdk, ui: poster, schedule: schedule}
}

// Setup configures the SDK on first use, refreshes the scanner list and opens a
// session with the first scanner whose name contains host.
func (b *Bridge) Setup(host string) error {
	if b.sdk == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.configured {
		var errs []error
		for _, mode := range []driver.OpMode{driver.OpModeUSBCDC, driver.OpModeBTNormal} {
			if err := b.sdk.SetOperationalMode(mode); err != nil {
				errs = append(errs, fmt.Errorf("mode %s: %w", mode, err))
			}
		}
		if err := b.sdk.Subscribe(driver.DefaultScannerMask, b.handle); err != nil {
			errs = append(errs, fmt.Errorf("subscribe: %w", err))
		}
		if len(errs) > 0 {
			return driver.Fail("scanner setup", errors.Join(errs...))
		}
		b.configured = true
	}

	list, err := b.sdk.AvailableScanners()
	if err != nil {
		return driver.Fail("list scanners", err)
	}
	b.scanners = list

	if b.hasSession {
		return nil
	}
	for _, sc := range list {
		if host == "" || !strings.Contains(sc.Name, host) {
			continue
		}
		if err := b.sdk.EstablishSession(sc.ID); err != nil {
			return driver.Fail("establish session", err)
		}
		b.hasSession = true
		b.sessionID = sc.ID
		b.sessionName = sc.Name
		log.Info().Str("component", "scanner").Int("id", sc.ID).Str("name", sc.Name).Msg("session requested")
		return nil
	}
	log.Info().Str("component", "scanner").Str("host", host).Int("available", len(list)).Msg("no scanner paired with reader")
	return nil
}

// Terminate closes the held session, if any.
func (b *Bridge) Terminate() error {
	if b.sdk == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.hasSession {
		return nil
	}
	id := b.sessionID
	b.hasSession = false
	b.sessionID = 0
	b.sessionName = ""
	if err := b.sdk.TerminateSession(id); err != nil {
		return driver.Fail("terminate session", err)
	}
	return nil
}

// PullTrigger submits a pull-trigger command on the worker. The outcome is logged.
func (b *Bridge) PullTrigger() {
	if b.sdk == nil {
		log.Warn().Str("component", "scanner").Msg("pull trigger without scanner driver")
		return
	}
	b.mu.Lock()
	id, ok := b.sessionID, b.hasSession
	b.mu.Unlock()
	if !ok {
		log.Warn().Str("component", "scanner").Msg("pull trigger without session")
		return
	}

	b.schedule(func() {
		ok := b.execute(driver.OpcodePullTrigger, id)
		log.Info().Str("component", "scanner").Int("id", id).Bool("ok", ok).Msg("pull trigger")
	})
}

func (b *Bridge) execute(op driver.Opcode, id int) bool {
	out, err := b.sdk.ExecuteCommand(op, TriggerPayload(id), id)
	if err != nil {
		log.Warn().Str("component", "scanner").Str("op", op.String()).Err(err).Msg("command failed")
		return false
	}
	log.Debug().Str("component", "scanner").Str("op", op.String()).Str("out", out).Msg("command ok")
	return true
}

func (b *Bridge) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Status{
		Configured:  b.configured,
		HasSession:  b.hasSession,
		SessionID:   b.sessionID,
		SessionName: b.sessionName,
		Scanners:    append([]driver.ScannerInfo(nil), b.scanners...),
	}
}

func (b *Bridge) handle(ev driver.ScannerEvent) {
	switch e := ev.(type) {
	case driver.ScannerAppeared:
		log.Info().Str("component", "scanner").Int("id", e.Info.ID).Str("name", e.Info.Name).Msg("scanner appeared")
		b.mu.Lock()
		if !containsScanner(b.scanners, e.Info.ID) {
			b.scanners = append(b.scanners, e.Info)
		}
		b.mu.Unlock()
	case driver.ScannerDisappeared:
		log.Info().Str("component", "scanner").Int("id", e.ID).Msg("scanner disappeared")
		b.mu.Lock()
		b.scanners = removeScanner(b.scanners, e.ID)
		if b.hasSession && b.sessionID == e.ID {
			b.hasSession = false
		}
		b.mu.Unlock()
		b.ui.Post(ui.ScanButtonState{Enabled: false})
	case driver.SessionEstablished:
		b.ui.Post(ui.Toast{Text: "Scanner established: " + e.Info.Name})
		b.ui.Post(ui.ScanButtonState{Enabled: true})
	case driver.SessionTerminated:
		b.mu.Lock()
		if b.hasSession && b.sessionID == e.ID {
			b.hasSession = false
		}
		b.mu.Unlock()
		b.ui.Post(ui.ScanButtonState{Enabled: false})
	case driver.BarcodeEvent:
		text := strings.TrimRight(string(e.Data), "\r\n")
		if text == "" {
			return
		}
		b.ui.Post(ui.Barcode{Text: text})
	default:
		log.Warn().Str("component", "scanner").Msgf("unhandled scanner event %T", ev)
	}
}

func containsScanner(list []driver.ScannerInfo, id int) bool {
	for _, sc := range list {
		if sc.ID == id {
			return true
		}
	}
	return false
}

func removeScanner(list []driver.ScannerInfo, id int) []driver.ScannerInfo {
	out := list[:0]
	for _, sc := range list {
		if sc.ID != id {
			out = append(out, sc)
		}
	}
	return out
}
