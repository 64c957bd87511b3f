package tui

import (
	"github.com/charmbracelet/bubbles/help"

	"handheld_rfid_go/internal/session"
	"handheld_rfid_go/internal/ui"
)

type page int

const (
	pageTags page = iota
	pageBarcodes
	pageSession
)

var pages = []struct {
	name string
	page page
}{
	{name: "Tags", page: pageTags},
	{name: "Barcodes", page: pageBarcodes},
	{name: "Session", page: pageSession},
}

// Actions is the session surface the terminal drives. None of it blocks.
type Actions interface {
	Toggle()
	PullTrigger()
	DefaultsAsync()
	Pause()
	Resume()
	Status() session.Status
}

// Screen is the shared presentation state.
type Screen interface {
	StartInventory()
	StopInventory()
	ClearTags()
	Snapshot() ui.Snapshot
}

// screenMsg carries a fresh snapshot after the dispatcher handled an event.
type screenMsg struct {
	Snapshot ui.Snapshot
}

// Model is the app state.
type Model struct {
	actions Actions
	screen  Screen

	keys keyMap
	help help.Model

	activePage page
	scroll     int
	notice     string

	snap    ui.Snapshot
	session session.Status

	width  int
	height int
}

func NewModel(actions Actions, screen Screen) Model {
	return Model{
		actions: actions,
		screen:  screen,
		keys:    defaultKeys(),
		help:    help.New(),
		snap:    screen.Snapshot(),
		session: actions.Status(),
	}
}
