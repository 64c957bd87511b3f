package tui

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

func (m Model) Init() tea.Cmd {
	screen := m.screen
	return func() tea.Msg { return screenMsg{Snapshot: screen.Snapshot()} }
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case screenMsg:
		m.snap = msg.Snapshot
		m.session = m.actions.Status()
		m.scroll = clampInt(m.scroll, 0, m.maxScroll())
		return m, nil

	case tea.ResumeMsg:
		m.actions.Resume()
		m.notice = "Resumed"
		return m, nil

	case tea.KeyMsg:
		return m.updateKey(msg)
	}
	return m, nil
}

func (m Model) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Suspend):
		m.actions.Pause()
		return m, tea.Suspend

	case key.Matches(msg, m.keys.Connect):
		m.actions.Toggle()
		if m.snap.Connected {
			m.notice = "Disconnecting..."
		} else {
			m.notice = "Connecting..."
		}

	case key.Matches(msg, m.keys.Inventory):
		if !m.snap.Connected {
			m.notice = "Not connected"
			return m, nil
		}
		// The screen applies the request on the dispatcher goroutine; the local
		// copy is updated now so a second press toggles back.
		if m.snap.InventoryRunning {
			m.screen.StopInventory()
			m.snap.InventoryRunning = false
			m.notice = "Inventory stopped"
		} else {
			m.screen.StartInventory()
			m.snap.InventoryRunning = true
			m.snap.Tags = nil
			m.snap.UniqueTags = 0
			m.scroll = 0
			m.notice = "Inventory started"
		}

	case key.Matches(msg, m.keys.Scan):
		if !m.snap.ScanEnabled {
			m.notice = "No scanner session"
			return m, nil
		}
		m.actions.PullTrigger()
		m.notice = "Scan requested"

	case key.Matches(msg, m.keys.Defaults):
		m.actions.DefaultsAsync()
		m.notice = "Applying defaults..."

	case key.Matches(msg, m.keys.Clear):
		m.screen.ClearTags()
		m.snap.Tags = nil
		m.snap.UniqueTags = 0
		m.scroll = 0
		m.notice = "Tags cleared"

	case key.Matches(msg, m.keys.NextPage):
		m.activePage = (m.activePage + 1) % page(len(pages))
		m.scroll = 0

	case key.Matches(msg, m.keys.Up):
		m.scroll = clampInt(m.scroll-1, 0, m.maxScroll())

	case key.Matches(msg, m.keys.Down):
		m.scroll = clampInt(m.scroll+1, 0, m.maxScroll())

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	}
	return m, nil
}

func (m Model) maxScroll() int {
	n := len(m.listLines()) - m.listViewSize()
	if n < 0 {
		return 0
	}
	return n
}

func clampInt(value, minValue, maxValue int) int {
	if value < minValue {
		return minValue
	}
	if value > maxValue {
		return maxValue
	}
	return value
}
