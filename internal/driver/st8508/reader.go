// Package st8508 drives ST-8508 class UHF readers over TCP or serial links
// using the reader18 frame protocol.
package st8508

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"handheld_rfid_go/internal/driver"
	"handheld_rfid_go/internal/protocol/reader18"
	"handheld_rfid_go/internal/reader"
)

const maxBufferedTags = 4096

// Options tune a reader handle.
type Options struct {
	Address        byte
	Baud           int
	DialTimeout    time.Duration
	WriteTimeout   time.Duration
	CommandTimeout time.Duration
	PollInterval   time.Duration
	// InventoryRSSI selects the G2 response layout with antenna and RSSI bytes.
	InventoryRSSI  bool
}

func DefaultOptions() Options {
	return Options{
		Address:        reader18.DefaultReaderAddress,
		Baud:           reader.DefaultBaudRate,
		DialTimeout:    2 * time.Second,
		WriteTimeout:   time.Second,
		CommandTimeout: 1500 * time.Millisecond,
		PollInterval:   120 * time.Millisecond,
	}
}

// Reader is one ST-8508 handle.
type Reader struct {
	desc driver.DeviceDescriptor
	opts Options
	link *reader.Client

	mu       sync.Mutex
	handler  driver.EventHandler
	buffer   []driver.TagRecord
	info     reader18.ReaderInfo
	closing  bool
	consumed chan struct{}
	pollStop chan struct{}
	pollDone chan struct{}
	acks     chan reader18.Frame
}

// NewReader builds a handle. dial may be nil for the default TCP/serial dialer.
func NewReader(desc driver.DeviceDescriptor, opts Options, dial reader.Dialer) *Reader {
	return &Reader{
		desc: desc,
		opts: opts,
		link: reader.NewClientWithDialer(dial),
	}
}

func (r *Reader) HostName() string { return r.desc.Name }

func (r *Reader) endpoint() (reader.Endpoint, error) {
	kind := reader.KindSerial
	if r.desc.Transport == driver.TransportTCP {
		kind = reader.KindTCP
	}
	return reader.ParseEndpoint(kind, r.desc.Address, r.opts.Baud)
}

func (r *Reader) Connect() error {
	ep, err := r.endpoint()
	if err != nil {
		return &driver.UsageError{Op: "connect", Info: err.Error()}
	}
	if err := r.link.Connect(context.Background(), ep, r.opts.DialTimeout); err != nil {
		return driver.Fail("connect", err)
	}

	packets, errs := r.link.Packets(), r.link.Errors()
	if packets == nil {
		return driver.Fail("connect", fmt.Errorf("link closed during connect"))
	}

	r.mu.Lock()
	r.closing = false
	r.consumed = make(chan struct{})
	r.acks = make(chan reader18.Frame, 8)
	consumed, acks := r.consumed, r.acks
	r.mu.Unlock()

	go r.consume(packets, errs, consumed, acks)

	frame, err := r.command(reader18.GetReaderInfoCommand(r.opts.Address), reader18.CmdGetReaderInfo)
	if err != nil {
		_ = r.Disconnect()
		return driver.Fail("read reader info", err)
	}
	info, err := reader18.ParseReaderInfo(frame)
	if err != nil {
		_ = r.Disconnect()
		return driver.Fail("read reader info", err)
	}
	r.mu.Lock()
	r.info = info
	r.mu.Unlock()
	log.Info().Str("component", "st8508").Str("host", r.desc.Name).Str("version", info.Version).Uint8("power", info.Power).Msg("reader online")
	return nil
}

// Info is what the reader reported on connect.
func (r *Reader) Info() reader18.ReaderInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.info
}

func (r *Reader) consume(packets <-chan reader.Packet, errs <-chan error, consumed chan struct{}, acks chan reader18.Frame) {
	defer close(consumed)

	var dec reader18.Decoder
	for pkt := range packets {
		for _, f := range dec.Feed(pkt.Data) {
			r.handleFrame(f, acks)
		}
	}

	reason := "link closed"
	select {
	case err, ok := <-errs:
		if ok && err != nil {
			reason = err.Error()
		}
	default:
	}

	r.mu.Lock()
	intentional := r.closing
	h := r.handler
	r.mu.Unlock()
	if intentional {
		return
	}
	log.Warn().Str("component", "st8508").Str("host", r.desc.Name).Str("reason", reason).Msg("link lost")
	r.stopPoll()
	if h != nil {
		h(driver.DisconnectionEvent{Reason: reason})
	}
}

func (r *Reader) handleFrame(f reader18.Frame, acks chan reader18.Frame) {
	if f.Command != reader18.CmdInventory {
		select {
		case acks <- f:
		default:
			log.Debug().Str("component", "st8508").Uint8("cmd", f.Command).Msg("unclaimed response dropped")
		}
		return
	}

	recs, err := r.parseTags(f)
	if err != nil {
		log.Debug().Str("component", "st8508").Err(err).Msg("inventory frame")
	}
	if len(recs) == 0 {
		return
	}

	r.mu.Lock()
	r.buffer = append(r.buffer, recs...)
	if over := len(r.buffer) - maxBufferedTags; over > 0 {
		r.buffer = r.buffer[over:]
	}
	h := r.handler
	r.mu.Unlock()

	if h != nil {
		h(driver.ReadEvent{})
	}
}

// parseTags decodes an inventory frame. Plain frames carry no signal strength,
// so their tags report PeakRSSI 0.
func (r *Reader) parseTags(f reader18.Frame) ([]driver.TagRecord, error) {
	if !r.opts.InventoryRSSI {
		epcs, err := reader18.ParseInventory(f)
		recs := make([]driver.TagRecord, 0, len(epcs))
		for _, epc := range epcs {
			recs = append(recs, driver.TagRecord{TagID: strings.ToUpper(hex.EncodeToString(epc))})
		}
		return recs, err
	}
	tags, err := reader18.ParseInventoryRSSI(f)
	recs := make([]driver.TagRecord, 0, len(tags))
	for _, tag := range tags {
		recs = append(recs, driver.TagRecord{TagID: strings.ToUpper(hex.EncodeToString(tag.EPC)), PeakRSSI: tag.RSSI})
	}
	return recs, err
}

// command sends pkt and waits for the response to cmd.
func (r *Reader) command(pkt []byte, cmd byte) (reader18.Frame, error) {
	r.mu.Lock()
	acks := r.acks
	r.mu.Unlock()
	if acks == nil {
		return reader18.Frame{}, driver.ErrNotConnected
	}

	if err := r.link.SendRaw(pkt, r.opts.WriteTimeout); err != nil {
		return reader18.Frame{}, err
	}
	deadline := time.NewTimer(r.opts.CommandTimeout)
	defer deadline.Stop()
	for {
		select {
		case f := <-acks:
			if f.Command == cmd {
				return f, nil
			}
		case <-deadline.C:
			return reader18.Frame{}, fmt.Errorf("command 0x%02X: %w", cmd, driver.ErrTimeout)
		}
	}
}

func (r *Reader) Disconnect() error {
	r.stopPoll()

	r.mu.Lock()
	r.closing = true
	consumed := r.consumed
	r.mu.Unlock()

	if !r.link.IsConnected() && consumed == nil {
		return driver.ErrNotConnected
	}
	err := r.link.Disconnect()
	if consumed != nil {
		select {
		case <-consumed:
		case <-time.After(1200 * time.Millisecond):
		}
	}

	r.mu.Lock()
	r.consumed = nil
	r.acks = nil
	r.mu.Unlock()
	if err != nil {
		return driver.Fail("disconnect", err)
	}
	return nil
}

func (r *Reader) Dispose() error {
	r.mu.Lock()
	r.handler = nil
	r.buffer = nil
	r.mu.Unlock()
	return nil
}

func (r *Reader) IsConnected() bool {
	return r.link.IsConnected()
}

func (r *Reader) Subscribe(h driver.EventHandler) error {
	if h == nil {
		return &driver.UsageError{Op: "subscribe", Info: "nil handler"}
	}
	r.mu.Lock()
	r.handler = h
	r.mu.Unlock()
	return nil
}

func (r *Reader) Unsubscribe() error {
	r.mu.Lock()
	r.handler = nil
	r.mu.Unlock()
	return nil
}

func (r *Reader) StartInventory() error {
	if !r.link.IsConnected() {
		return driver.ErrNotConnected
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pollStop != nil {
		return nil
	}
	r.pollStop = make(chan struct{})
	r.pollDone = make(chan struct{})
	go r.poll(r.pollStop, r.pollDone)
	return nil
}

func (r *Reader) poll(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	pkt := reader18.InventoryCommand(r.opts.Address)
	t := time.NewTicker(r.opts.PollInterval)
	defer t.Stop()
	for {
		if err := r.link.SendRaw(pkt, r.opts.WriteTimeout); err != nil {
			log.Warn().Str("component", "st8508").Err(err).Msg("inventory poll")
		}
		select {
		case <-stop:
			return
		case <-t.C:
		}
	}
}

func (r *Reader) StopInventory() error {
	if !r.stopPoll() {
		return &driver.OperationFailure{Op: "stop inventory", Description: "inventory not running"}
	}
	return nil
}

func (r *Reader) stopPoll() bool {
	r.mu.Lock()
	stop, done := r.pollStop, r.pollDone
	r.pollStop, r.pollDone = nil, nil
	r.mu.Unlock()
	if stop == nil {
		return false
	}
	close(stop)
	<-done
	return true
}

// SetAntennaConfig applies the transmit power. The reader18 protocol has no
// per-antenna singulation settings, so only power is written.
func (r *Reader) SetAntennaConfig(cfg driver.AntennaConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if !r.link.IsConnected() {
		return driver.ErrNotConnected
	}
	dbm := byte(cfg.TransmitPowerIndex / 10)
	frame, err := r.command(reader18.SetOutputPowerCommand(r.opts.Address, dbm), reader18.CmdSetOutputPower)
	if err != nil {
		return driver.Fail("set output power", err)
	}
	if frame.Status != reader18.StatusSuccess {
		return &driver.OperationFailure{Op: "set output power", Description: reader18.StatusText(frame.Status)}
	}
	return nil
}

func (r *Reader) PullReadTags(max int) []driver.TagRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	if max <= 0 || len(r.buffer) == 0 {
		return nil
	}
	if max > len(r.buffer) {
		max = len(r.buffer)
	}
	out := append([]driver.TagRecord(nil), r.buffer[:max]...)
	r.buffer = r.buffer[max:]
	return out
}

var _ driver.Reader = (*Reader)(nil)
