package tui

import (
	"fmt"
	"strings"

	"handheld_rfid_go/internal/ui"
)

func (m Model) tabsLine() string {
	parts := make([]string, 0, len(pages))
	for _, tab := range pages {
		if tab.page == m.activePage {
			parts = append(parts, "▣ "+strings.ToUpper(tab.name))
		} else {
			parts = append(parts, "□ "+strings.ToUpper(tab.name))
		}
	}
	return strings.Join(parts, "   ")
}

func (m Model) metaLine() string {
	connection := "OFFLINE"
	if m.snap.Connected {
		connection = "ONLINE"
	}
	scanner := "NONE"
	if m.snap.ScanEnabled {
		scanner = "READY"
	}
	trigger := ""
	if m.snap.TriggerPressed {
		trigger = " | Trigger HELD"
	}
	return fmt.Sprintf("Reader %s | Inventory %s | Scanner %s%s",
		connection, runState(m.snap.InventoryRunning), scanner, trigger)
}

func (m Model) statusLine() string {
	line := m.snap.StatusLine()
	if m.notice != "" && m.notice != m.snap.Status {
		line += "  (" + m.notice + ")"
	}
	return statusTag(m.snap.Status) + " " + line
}

func (m Model) listLines() []string {
	switch m.activePage {
	case pageTags:
		lines := make([]string, 0, len(m.snap.Tags))
		for _, rec := range m.snap.Tags {
			lines = append(lines, ui.FormatTag(rec))
		}
		return lines
	case pageBarcodes:
		return m.snap.Barcodes
	default:
		return nil
	}
}

func (m Model) sessionLines() []string {
	st := m.session
	lines := []string{
		"State:      " + st.State,
		"Last:       " + st.LastStatus,
	}
	if st.Host != "" {
		lines = append(lines,
			"Reader:     "+st.Host,
			"Transport:  "+st.Transport+" "+st.Address,
			"Handle:     "+st.HandleID,
			"Since:      "+formatShortTime(st.ConnectedAt),
		)
	}
	lines = append(lines, "", "Scanner session: "+onOff(st.Scanner.HasSession))
	if st.Scanner.HasSession {
		lines = append(lines, fmt.Sprintf("  #%d %s", st.Scanner.SessionID, st.Scanner.SessionName))
	}
	for _, sc := range st.Scanner.Scanners {
		lines = append(lines, fmt.Sprintf("  available #%d %s", sc.ID, sc.Name))
	}
	if m.snap.LastBarcode != "" {
		lines = append(lines, "Last barcode: "+m.snap.LastBarcode)
	}
	return lines
}

func (m Model) toastLines() []string {
	if len(m.snap.Toasts) == 0 {
		return nil
	}
	out := make([]string, 0, len(m.snap.Toasts))
	for i := len(m.snap.Toasts) - 1; i >= 0; i-- {
		out = append(out, "• "+m.snap.Toasts[i])
	}
	return out
}
