package st8508

import (
	"context"
	"fmt"
	"net"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.bug.st/serial"

	"handheld_rfid_go/internal/driver"
	"handheld_rfid_go/internal/reader"
)

// Config selects where readers are looked for.
type Config struct {
	NamePrefix string
	// Endpoints are host:port pairs probed for the tcp transport.
	Endpoints []string
	// USBPorts and SerialPorts are device path prefixes matched against the port list.
	USBPorts      []string
	SerialPorts   []string
	ProbeTimeout  time.Duration
	WatchInterval time.Duration
	Reader        Options
}

func DefaultConfig() Config {
	return Config{
		NamePrefix:    "ST8508",
		USBPorts:      []string{"/dev/ttyUSB", "/dev/ttyACM"},
		ProbeTimeout:  700 * time.Millisecond,
		WatchInterval: 2 * time.Second,
		Reader:        DefaultOptions(),
	}
}

type Enumerator struct {
	cfg       Config
	listPorts func() ([]string, error)
	probe     func(ctx context.Context, address string, timeout time.Duration) error
	dial      reader.Dialer

	mu        sync.Mutex
	watcher   driver.DeviceWatcher
	watchStop chan struct{}
	watchDone chan struct{}
}

func NewEnumerator(cfg Config) *Enumerator {
	return &Enumerator{
		cfg:       cfg,
		listPorts: serial.GetPortsList,
		probe:     probeTCP,
	}
}

// Factory returns a constructor for the session.
func Factory(cfg Config) driver.EnumeratorFactory {
	return func() (driver.Enumerator, error) { return NewEnumerator(cfg), nil }
}

func probeTCP(ctx context.Context, address string, timeout time.Duration) error {
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return err
	}
	return conn.Close()
}

func (e *Enumerator) Available(ctx context.Context, t driver.Transport) ([]driver.DeviceDescriptor, error) {
	switch t {
	case driver.TransportTCP:
		return e.tcpDevices(ctx), nil
	case driver.TransportUSB:
		return e.portDevices(driver.TransportUSB, e.cfg.USBPorts)
	case driver.TransportSerial:
		return e.portDevices(driver.TransportSerial, e.cfg.SerialPorts)
	case driver.TransportAll:
		var all []driver.DeviceDescriptor
		for _, sub := range []driver.Transport{driver.TransportUSB, driver.TransportSerial, driver.TransportTCP} {
			list, err := e.Available(ctx, sub)
			if err != nil {
				return nil, err
			}
			all = append(all, list...)
		}
		return all, nil
	default:
		return nil, nil
	}
}

func (e *Enumerator) tcpDevices(ctx context.Context) []driver.DeviceDescriptor {
	var out []driver.DeviceDescriptor
	for _, addr := range e.cfg.Endpoints {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		if err := e.probe(ctx, addr, e.cfg.ProbeTimeout); err != nil {
			log.Debug().Str("component", "st8508").Str("endpoint", addr).Err(err).Msg("probe failed")
			continue
		}
		out = append(out, driver.DeviceDescriptor{
			Name:      e.name(addr),
			Address:   addr,
			Transport: driver.TransportTCP,
		})
	}
	return out
}

func (e *Enumerator) portDevices(t driver.Transport, prefixes []string) ([]driver.DeviceDescriptor, error) {
	if len(prefixes) == 0 {
		return nil, nil
	}
	ports, err := e.listPorts()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}
	sort.Strings(ports)

	var out []driver.DeviceDescriptor
	for _, p := range ports {
		if !hasAnyPrefix(p, prefixes) {
			continue
		}
		out = append(out, driver.DeviceDescriptor{
			Name:      e.name(filepath.Base(p)),
			Address:   p,
			Transport: t,
		})
	}
	return out, nil
}

func (e *Enumerator) name(suffix string) string {
	if e.cfg.NamePrefix == "" {
		return suffix
	}
	return e.cfg.NamePrefix + "-" + suffix
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func (e *Enumerator) Open(desc driver.DeviceDescriptor) (driver.Reader, error) {
	if desc.Address == "" {
		return nil, &driver.UsageError{Op: "open", Info: "device has no address"}
	}
	return NewReader(desc, e.cfg.Reader, e.dial), nil
}

// Watch polls the port list and reports USB and serial readers coming and going.
func (e *Enumerator) Watch(w driver.DeviceWatcher) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.watcher = w
	if e.watchStop != nil || e.cfg.WatchInterval <= 0 || w == nil {
		return
	}
	e.watchStop = make(chan struct{})
	e.watchDone = make(chan struct{})
	go e.watchLoop(e.watchStop, e.watchDone)
}

func (e *Enumerator) snapshot() map[string]driver.DeviceDescriptor {
	out := make(map[string]driver.DeviceDescriptor)
	for _, t := range []driver.Transport{driver.TransportUSB, driver.TransportSerial} {
		list, err := e.Available(context.Background(), t)
		if err != nil {
			log.Debug().Str("component", "st8508").Err(err).Msg("watch scan")
			continue
		}
		for _, d := range list {
			out[d.Address] = d
		}
	}
	return out
}

func (e *Enumerator) watchLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	known := e.snapshot()
	t := time.NewTicker(e.cfg.WatchInterval)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
		}

		current := e.snapshot()
		e.mu.Lock()
		w := e.watcher
		e.mu.Unlock()
		if w == nil {
			known = current
			continue
		}
		for addr, d := range current {
			if _, ok := known[addr]; !ok {
				w.DeviceAppeared(d)
			}
		}
		for addr, d := range known {
			if _, ok := current[addr]; !ok {
				w.DeviceDisappeared(d)
			}
		}
		known = current
	}
}

func (e *Enumerator) Dispose() error {
	e.mu.Lock()
	stop, done := e.watchStop, e.watchDone
	e.watchStop, e.watchDone = nil, nil
	e.watcher = nil
	e.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
	return nil
}

var _ driver.Enumerator = (*Enumerator)(nil)
