package driver

// Event is a hardware notification from a Reader. The set of variants is closed:
// ReadEvent, TriggerEvent and DisconnectionEvent.
type Event interface {
	isReaderEvent()
}

// ReadEvent signals that tags are waiting in the reader's buffer.
type ReadEvent struct{}

// TriggerEvent is a handheld trigger press or release.
type TriggerEvent struct {
	Pressed bool
}

// DisconnectionEvent is raised when the link drops without a Disconnect call.
type DisconnectionEvent struct {
	Reason string
}

func (ReadEvent) isReaderEvent()          {}
func (TriggerEvent) isReaderEvent()       {}
func (DisconnectionEvent) isReaderEvent() {}

// EventHandler receives reader events on driver goroutines.
type EventHandler func(Event)
