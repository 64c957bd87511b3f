package sim

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"handheld_rfid_go/internal/driver"
)

// Calls counts how often each Reader method ran.
type Calls struct {
	Connect        int
	Disconnect     int
	Dispose        int
	Subscribe      int
	Unsubscribe    int
	StartInventory int
	StopInventory  int
	SetAntenna     int
}

type Reader struct {
	mu   sync.Mutex
	desc driver.DeviceDescriptor
	dev  Device
	demo bool

	connected bool
	disposed  bool
	running   bool
	handler   driver.EventHandler
	buffer    []driver.TagRecord
	antenna   driver.AntennaConfig
	calls     Calls

	stopDemo chan struct{}
}

func newReader(desc driver.DeviceDescriptor, dev Device, demo bool) *Reader {
	return &Reader{desc: desc, dev: dev, demo: demo}
}

func (r *Reader) HostName() string { return r.desc.Name }

func (r *Reader) Connect() error {
	r.mu.Lock()
	r.calls.Connect++
	gate := r.dev.ConnectGate
	err := r.dev.ConnectErr
	r.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.connected = true
	r.mu.Unlock()
	return nil
}

func (r *Reader) Disconnect() error {
	r.mu.Lock()
	r.calls.Disconnect++
	was := r.connected
	r.connected = false
	r.mu.Unlock()

	r.haltDemo()
	if !was {
		return driver.ErrNotConnected
	}
	return nil
}

func (r *Reader) Dispose() error {
	r.mu.Lock()
	r.calls.Dispose++
	r.disposed = true
	r.handler = nil
	r.buffer = nil
	r.mu.Unlock()
	return nil
}

func (r *Reader) IsConnected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connected
}

func (r *Reader) Subscribe(h driver.EventHandler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls.Subscribe++
	if r.dev.SubscribeErr != nil {
		return r.dev.SubscribeErr
	}
	r.handler = h
	return nil
}

func (r *Reader) Unsubscribe() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls.Unsubscribe++
	r.handler = nil
	return nil
}

func (r *Reader) StartInventory() error {
	r.mu.Lock()
	r.calls.StartInventory++
	if !r.connected {
		r.mu.Unlock()
		return driver.ErrNotConnected
	}
	if r.dev.StartErr != nil {
		r.mu.Unlock()
		return r.dev.StartErr
	}
	r.running = true
	demo := r.demo && r.stopDemo == nil
	if demo {
		r.stopDemo = make(chan struct{})
	}
	stop := r.stopDemo
	r.mu.Unlock()

	if demo {
		go r.generate(stop)
	}
	return nil
}

func (r *Reader) StopInventory() error {
	r.mu.Lock()
	r.calls.StopInventory++
	wasRunning := r.running
	r.running = false
	stopErr := r.dev.StopErr
	r.mu.Unlock()

	r.haltDemo()
	if stopErr != nil {
		return stopErr
	}
	if !wasRunning {
		return &driver.OperationFailure{Op: "stop inventory", Description: "inventory not running"}
	}
	return nil
}

func (r *Reader) SetAntennaConfig(cfg driver.AntennaConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls.SetAntenna++
	if !r.connected {
		return driver.ErrNotConnected
	}
	r.antenna = cfg
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

// PushTags buffers recs and fires a ReadEvent.
func (r *Reader) PushTags(recs ...driver.TagRecord) {
	r.mu.Lock()
	r.buffer = append(r.buffer, recs...)
	h := r.handler
	r.mu.Unlock()

	if h != nil {
		h(driver.ReadEvent{})
	}
}

// PressTrigger fires a TriggerEvent.
func (r *Reader) PressTrigger(pressed bool) {
	if h := r.currentHandler(); h != nil {
		h(driver.TriggerEvent{Pressed: pressed})
	}
}

// DropLink simulates the reader going away without a Disconnect call.
func (r *Reader) DropLink(reason string) {
	r.mu.Lock()
	r.connected = false
	h := r.handler
	r.mu.Unlock()

	if h != nil {
		h(driver.DisconnectionEvent{Reason: reason})
	}
}

func (r *Reader) Calls() Calls {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func (r *Reader) Antenna() driver.AntennaConfig {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.antenna
}

func (r *Reader) InventoryRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

func (r *Reader) Disposed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.disposed
}

func (r *Reader) currentHandler() driver.EventHandler {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.handler
}

func (r *Reader) haltDemo() {
	r.mu.Lock()
	stop := r.stopDemo
	r.stopDemo = nil
	r.mu.Unlock()
	if stop != nil {
		close(stop)
	}
}

func (r *Reader) generate(stop <-chan struct{}) {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			n := 1 + rand.Intn(3)
			recs := make([]driver.TagRecord, 0, n)
			for i := 0; i < n; i++ {
				recs = append(recs, driver.TagRecord{
					TagID:    fmt.Sprintf("E28011700000020F%08X", rand.Intn(24)),
					PeakRSSI: -35 - rand.Intn(40),
				})
			}
			r.PushTags(recs...)
		}
	}
}
