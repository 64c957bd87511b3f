// Package ui carries notifications from the session core to whatever presents them.
package ui

import "handheld_rfid_go/internal/driver"

// Event is one notification for the presentation layer. The variant set is closed.
type Event interface {
	Kind() string
	isUIEvent()
}

type ReaderStatus struct {
	Text      string `json:"text"`
	Connected bool   `json:"connected"`
}

type ScanButtonState struct {
	Enabled bool `json:"enabled"`
}

type TagBatch struct {
	Tags []driver.TagRecord `json:"tags"`
}

type Trigger struct {
	Pressed bool `json:"pressed"`
}

type Barcode struct {
	Text string `json:"text"`
}

type Toast struct {
	Text string `json:"text"`
}

// InventoryRequest is an operator asking to start or stop reading. It is posted
// like any other event so the Screen applies it on the dispatcher goroutine.
type InventoryRequest struct {
	Running bool `json:"running"`
}

// ClearRequest is an operator clearing the tag list.
type ClearRequest struct{}

func (ReaderStatus) Kind() string    { return "reader_status" }
func (ScanButtonState) Kind() string { return "scan_button" }
func (TagBatch) Kind() string        { return "tag_batch" }
func (Trigger) Kind() string         { return "trigger" }
func (Barcode) Kind() string         { return "barcode" }
func (Toast) Kind() string           { return "toast" }
func (InventoryRequest) Kind() string { return "inventory_request" }
func (ClearRequest) Kind() string     { return "clear_request" }

func (ReaderStatus) isUIEvent()    {}
func (ScanButtonState) isUIEvent() {}
func (TagBatch) isUIEvent()        {}
func (Trigger) isUIEvent()         {}
func (Barcode) isUIEvent()         {}
func (Toast) isUIEvent()           {}
func (InventoryRequest) isUIEvent() {}
func (ClearRequest) isUIEvent()     {}

// Sink consumes events. The Dispatcher guarantees calls never overlap.
type Sink interface {
	Handle(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

func (f SinkFunc) Handle(ev Event) { f(ev) }

// Tee fans one event out to several sinks in order.
type Tee []Sink

func (t Tee) Handle(ev Event) {
	for _, s := range t {
		if s != nil {
			s.Handle(ev)
		}
	}
}

// Poster is the producer side handed to the session core.
type Poster interface {
	Post(Event)
}
