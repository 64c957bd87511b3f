// Package driver describes the hardware surface the session core talks to.
// Concrete drivers live in subpackages (st8508, serialscan, sim).
package driver

import (
	"context"
	"strings"
)

// Transport is a reader enumeration channel.
type Transport string

const (
	TransportServiceUSB Transport = "service_usb"
	TransportSerial     Transport = "serial"
	TransportUSB        Transport = "usb"
	TransportBluetooth  Transport = "bluetooth"
	TransportTCP        Transport = "tcp"
	TransportAll        Transport = "all"
)

// DefaultTransportOrder is the order discovery walks when nothing is configured.
var DefaultTransportOrder = []Transport{
	TransportServiceUSB,
	TransportSerial,
	TransportUSB,
	TransportBluetooth,
	TransportTCP,
	TransportAll,
}

// ParseTransport maps config spellings (including the RE_SERIAL style names) to a Transport.
func ParseTransport(raw string) (Transport, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "service_usb", "serviceusb":
		return TransportServiceUSB, true
	case "serial", "re_serial":
		return TransportSerial, true
	case "usb", "re_usb":
		return TransportUSB, true
	case "bluetooth", "bt":
		return TransportBluetooth, true
	case "tcp", "net", "network":
		return TransportTCP, true
	case "all":
		return TransportAll, true
	default:
		return "", false
	}
}

// DeviceDescriptor is one enumerated reader.
type DeviceDescriptor struct {
	Name      string
	Address   string
	Transport Transport
}

// DeviceWatcher receives hot-plug notifications. Calls arrive on driver goroutines
// and must return quickly.
type DeviceWatcher interface {
	DeviceAppeared(DeviceDescriptor)
	DeviceDisappeared(DeviceDescriptor)
}

// Enumerator lists readers and opens handles for them.
type Enumerator interface {
	Available(ctx context.Context, transport Transport) ([]DeviceDescriptor, error)
	Open(desc DeviceDescriptor) (Reader, error)
	Watch(w DeviceWatcher)
	Dispose() error
}

// EnumeratorFactory creates a fresh Enumerator. The session calls it lazily,
// so a disposed enumerator is replaced on the next connect.
type EnumeratorFactory func() (Enumerator, error)

// Reader is a single reader handle.
type Reader interface {
	HostName() string
	Connect() error
	Disconnect() error
	Dispose() error
	IsConnected() bool
	Subscribe(h EventHandler) error
	Unsubscribe() error
	StartInventory() error
	StopInventory() error
	SetAntennaConfig(cfg AntennaConfig) error
	PullReadTags(max int) []TagRecord
}

// TagRecord is one tag observation.
type TagRecord struct {
	TagID    string `json:"tag_id"`
	PeakRSSI int    `json:"peak_rssi"`
}

type Session string

const (
	SessionS0 Session = "S0"
	SessionS1 Session = "S1"
	SessionS2 Session = "S2"
	SessionS3 Session = "S3"
)

type InventoryState string

const (
	InventoryStateA InventoryState = "A"
	InventoryStateB InventoryState = "B"
)

type SLFlag string

const (
	SLAll        SLFlag = "ALL"
	SLDeasserted SLFlag = "DEASSERTED"
	SLAsserted   SLFlag = "ASSERTED"
)

// MaxPowerIndex is the top of the transmit power table (tenths of dBm).
const MaxPowerIndex = 270

// AntennaConfig is the RF and singulation setup for one antenna.
type AntennaConfig struct {
	Antenna            int
	TransmitPowerIndex int
	RFModeTableIndex   int
	Tari               int
	Session            Session
	InventoryState     InventoryState
	SLFlag             SLFlag
}

// DefaultAntennaConfig is full power on antenna 1, session S0, state A, all tags.
func DefaultAntennaConfig() AntennaConfig {
	return AntennaConfig{
		Antenna:            1,
		TransmitPowerIndex: MaxPowerIndex,
		RFModeTableIndex:   0,
		Tari:               0,
		Session:            SessionS0,
		InventoryState:     InventoryStateA,
		SLFlag:             SLAll,
	}
}

// Validate reports a UsageError for values no reader accepts.
func (c AntennaConfig) Validate() error {
	if c.Antenna <= 0 {
		return &UsageError{Op: "set antenna config", Info: "antenna must be 1 or higher"}
	}
	if c.TransmitPowerIndex < 0 || c.TransmitPowerIndex > MaxPowerIndex {
		return &UsageError{Op: "set antenna config", Info: "transmit power index out of range"}
	}
	if c.RFModeTableIndex < 0 || c.Tari < 0 {
		return &UsageError{Op: "set antenna config", Info: "negative rf mode or tari"}
	}
	switch c.Session {
	case SessionS0, SessionS1, SessionS2, SessionS3:
	default:
		return &UsageError{Op: "set antenna config", Info: "unknown session " + string(c.Session)}
	}
	switch c.InventoryState {
	case InventoryStateA, InventoryStateB:
	default:
		return &UsageError{Op: "set antenna config", Info: "unknown inventory state " + string(c.InventoryState)}
	}
	switch c.SLFlag {
	case SLAll, SLDeasserted, SLAsserted:
	default:
		return &UsageError{Op: "set antenna config", Info: "unknown sl flag " + string(c.SLFlag)}
	}
	return nil
}
