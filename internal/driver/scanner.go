package driver

// OpMode is a scanner operational mode. Several may be enabled at once.
type OpMode string

const (
	OpModeUSBCDC   OpMode = "USB_CDC"
	OpModeBTNormal OpMode = "BT_NORMAL"
)

// EventMask selects which scanner notifications are delivered.
type EventMask uint32

const (
	EventScannerAppearance EventMask = 1 << iota
	EventScannerDisappearance
	EventBarcode
	EventSessionEstablishment
	EventSessionTermination
)

// DefaultScannerMask is everything the bridge consumes.
const DefaultScannerMask = EventScannerAppearance |
	EventScannerDisappearance |
	EventBarcode |
	EventSessionEstablishment |
	EventSessionTermination

func (m EventMask) Has(bit EventMask) bool { return m&bit != 0 }

// Opcode is a scanner command.
type Opcode int

const (
	OpcodePullTrigger Opcode = iota + 1
	OpcodeReleaseTrigger
)

func (o Opcode) String() string {
	switch o {
	case OpcodePullTrigger:
		return "DEVICE_PULL_TRIGGER"
	case OpcodeReleaseTrigger:
		return "DEVICE_RELEASE_TRIGGER"
	default:
		return "UNKNOWN"
	}
}

// ScannerInfo is one scanner known to the SDK.
type ScannerInfo struct {
	ID   int
	Name string
}

// ScannerEvent is a scanner SDK notification. Variants: ScannerAppeared,
// ScannerDisappeared, SessionEstablished, SessionTerminated, BarcodeEvent.
type ScannerEvent interface {
	isScannerEvent()
}

type ScannerAppeared struct {
	Info ScannerInfo
}

type ScannerDisappeared struct {
	ID int
}

type SessionEstablished struct {
	Info ScannerInfo
}

type SessionTerminated struct {
	ID int
}

type BarcodeEvent struct {
	Data      []byte
	Type      int
	ScannerID int
}

func (ScannerAppeared) isScannerEvent()    {}
func (ScannerDisappeared) isScannerEvent() {}
func (SessionEstablished) isScannerEvent() {}
func (SessionTerminated) isScannerEvent()  {}
func (BarcodeEvent) isScannerEvent()       {}

// ScannerEventHandler receives scanner notifications on SDK goroutines.
type ScannerEventHandler func(ScannerEvent)

// ScannerSDK is the barcode scanner capability surface.
type ScannerSDK interface {
	SetOperationalMode(mode OpMode) error
	Subscribe(mask EventMask, h ScannerEventHandler) error
	AvailableScanners() ([]ScannerInfo, error)
	EstablishSession(id int) error
	TerminateSession(id int) error
	// ExecuteCommand returns the response payload, or an error when the scanner rejected it.
	ExecuteCommand(op Opcode, inXML string, id int) (string, error)
}
