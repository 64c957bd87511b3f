// Package sim is an in-memory reader and scanner used by tests and by --driver sim.
package sim

import (
	"context"
	"sync"

	"handheld_rfid_go/internal/driver"
)

// Device is a simulated reader and the behaviour its handle will have.
type Device struct {
	Name    string
	Address string

	ConnectErr   error
	SubscribeErr error
	StartErr     error
	StopErr      error
	// ConnectGate, when set, makes Connect block until the channel is closed.
	ConnectGate <-chan struct{}
}

type Enumerator struct {
	mu        sync.Mutex
	devices   map[driver.Transport][]Device
	failures  map[driver.Transport]error
	queried   []driver.Transport
	readers   map[string]*Reader
	opened    int
	watcher   driver.DeviceWatcher
	disposals int
	demo      bool
}

func NewEnumerator() *Enumerator {
	return &Enumerator{
		devices:  make(map[driver.Transport][]Device),
		failures: make(map[driver.Transport]error),
		readers:  make(map[string]*Reader),
	}
}

// Factory returns an EnumeratorFactory that always hands out e.
func (e *Enumerator) Factory() driver.EnumeratorFactory {
	return func() (driver.Enumerator, error) { return e, nil }
}

// SetDemo makes opened readers generate tags while inventory runs.
func (e *Enumerator) SetDemo(on bool) {
	e.mu.Lock()
	e.demo = on
	e.mu.Unlock()
}

func (e *Enumerator) SetDevices(t driver.Transport, devices ...Device) {
	e.mu.Lock()
	e.devices[t] = append([]Device(nil), devices...)
	e.mu.Unlock()
}

func (e *Enumerator) FailTransport(t driver.Transport, err error) {
	e.mu.Lock()
	e.failures[t] = err
	e.mu.Unlock()
}

// Queried lists the transports Available was called with, in order.
func (e *Enumerator) Queried() []driver.Transport {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]driver.Transport(nil), e.queried...)
}

// Reader returns the most recent handle opened for name.
func (e *Enumerator) Reader(name string) *Reader {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.readers[name]
}

// Opened counts Open calls.
func (e *Enumerator) Opened() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.opened
}

func (e *Enumerator) Disposals() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.disposals
}

func (e *Enumerator) Available(ctx context.Context, t driver.Transport) ([]driver.DeviceDescriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	e.queried = append(e.queried, t)
	if err := e.failures[t]; err != nil {
		return nil, err
	}
	out := make([]driver.DeviceDescriptor, 0, len(e.devices[t]))
	for _, d := range e.devices[t] {
		out = append(out, driver.DeviceDescriptor{Name: d.Name, Address: d.Address, Transport: t})
	}
	return out, nil
}

func (e *Enumerator) Open(desc driver.DeviceDescriptor) (driver.Reader, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, list := range e.devices {
		for _, d := range list {
			if d.Name != desc.Name {
				continue
			}
			r := newReader(desc, d, e.demo)
			e.readers[d.Name] = r
			e.opened++
			return r, nil
		}
	}
	return nil, &driver.OperationFailure{Op: "open", Description: "no such device " + desc.Name}
}

func (e *Enumerator) Watch(w driver.DeviceWatcher) {
	e.mu.Lock()
	e.watcher = w
	e.mu.Unlock()
}

func (e *Enumerator) Dispose() error {
	e.mu.Lock()
	e.disposals++
	e.watcher = nil
	e.mu.Unlock()
	return nil
}

// Appear registers d on transport t and notifies the watcher.
func (e *Enumerator) Appear(t driver.Transport, d Device) {
	e.mu.Lock()
	e.devices[t] = append(e.devices[t], d)
	w := e.watcher
	e.mu.Unlock()

	if w != nil {
		w.DeviceAppeared(driver.DeviceDescriptor{Name: d.Name, Address: d.Address, Transport: t})
	}
}

// Disappear removes the named device and notifies the watcher.
func (e *Enumerator) Disappear(name string) {
	e.mu.Lock()
	var gone *driver.DeviceDescriptor
	for t, list := range e.devices {
		kept := list[:0]
		for _, d := range list {
			if d.Name == name {
				gone = &driver.DeviceDescriptor{Name: d.Name, Address: d.Address, Transport: t}
				continue
			}
			kept = append(kept, d)
		}
		e.devices[t] = kept
	}
	w := e.watcher
	e.mu.Unlock()

	if w == nil {
		return
	}
	if gone == nil {
		gone = &driver.DeviceDescriptor{Name: name}
	}
	w.DeviceDisappeared(*gone)
}
