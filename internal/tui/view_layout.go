package tui

import (
	"fmt"
	"strings"
)

const appTitle = "Handheld RFID"

func (m Model) View() string {
	contentWidth := m.panelContentWidth()

	headerPanel := renderPanel(
		"",
		[]string{
			appTitle,
			m.tabsLine(),
			m.metaLine(),
			m.statusLine(),
		},
		contentWidth,
	)

	title, body := m.pageLines()
	pagePanel := renderPanel(title, body, contentWidth)

	layout := []string{headerPanel, pagePanel}
	if toasts := m.toastLines(); len(toasts) > 0 {
		layout = append(layout, renderPanel("Notices", toasts, contentWidth))
	}

	return paintLayout(strings.Join(layout, "\n")) + "\n" + m.help.View(m.keys)
}

func (m Model) pageLines() (string, []string) {
	switch m.activePage {
	case pageTags:
		title := fmt.Sprintf("Tags (%d unique)", m.snap.UniqueTags)
		return title, m.window(m.listLines(), "No tags yet. Press i or pull the trigger.")
	case pageBarcodes:
		return "Barcodes", m.window(m.listLines(), "No barcodes yet.")
	case pageSession:
		return "Session", m.sessionLines()
	default:
		return "Page", []string{"Unknown page"}
	}
}

// window cuts the visible slice of lines at the current scroll offset.
func (m Model) window(lines []string, empty string) []string {
	if len(lines) == 0 {
		return []string{empty}
	}
	size := m.listViewSize()
	start := clampInt(m.scroll, 0, len(lines))
	end := start + size
	if end > len(lines) {
		end = len(lines)
	}
	out := append([]string(nil), lines[start:end]...)
	if hidden := len(lines) - end; hidden > 0 {
		out = append(out, fmt.Sprintf("... %d more line(s)", hidden))
	}
	return out
}

func (m Model) listViewSize() int {
	if m.height <= 0 {
		return 12
	}
	headerLines := panelLineCount("", 4)
	footerLines := 2
	if m.help.ShowAll {
		footerLines = 5
	}
	size := m.height - headerLines - panelLineCount("page", 0) - footerLines - 1
	if len(m.snap.Toasts) > 0 {
		size -= panelLineCount("notices", len(m.snap.Toasts))
	}
	if size < 3 {
		size = 3
	}
	return size
}

func panelLineCount(title string, bodyLines int) int {
	if strings.TrimSpace(title) == "" {
		return bodyLines + 2
	}
	return bodyLines + 4
}

func renderPanel(title string, lines []string, contentWidth int) string {
	if contentWidth < 24 {
		contentWidth = 24
	}

	var b strings.Builder
	horizontal := strings.Repeat("─", contentWidth+2)
	top := "┌" + horizontal + "┐"
	mid := "├" + horizontal + "┤"
	bottom := "└" + horizontal + "┘"

	b.WriteString(top)
	if strings.TrimSpace(title) != "" {
		b.WriteString("\n")
		titleText := "[" + strings.ToUpper(strings.TrimSpace(title)) + "]"
		b.WriteString("│ ")
		b.WriteString(padRight(trimText(titleText, contentWidth), contentWidth))
		b.WriteString(" │\n")
		b.WriteString(mid)
	}

	if len(lines) == 0 {
		lines = []string{""}
	}

	for _, line := range lines {
		b.WriteString("\n│ ")
		b.WriteString(padRight(trimText(line, contentWidth), contentWidth))
		b.WriteString(" │")
	}
	b.WriteString("\n")
	b.WriteString(bottom)
	return b.String()
}

func (m Model) panelContentWidth() int {
	if m.width <= 0 {
		return 78
	}
	width := m.width - 4
	if width < 36 {
		width = 36
	}
	if width > 120 {
		width = 120
	}
	return width
}
