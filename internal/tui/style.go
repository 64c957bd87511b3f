package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

func fg(color string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color))
}

var (
	frameStyle   = fg("240")
	titleStyle   = fg("255").Background(lipgloss.Color("0")).Bold(true)
	onlineStyle  = fg("42")
	offlineStyle = fg("245")
	triggerStyle = fg("214").Bold(true)
	okStyle      = fg("42").Bold(true)
	warnStyle    = fg("214").Bold(true)
	errStyle     = fg("203").Bold(true)
	infoStyle    = fg("255").Bold(true)
	noticeStyle  = fg("229")
	tagStyle     = fg("117")
	bodyStyle    = fg("252")
)

// lineRule paints a whole rendered line when match accepts it. Rules are
// tried in order and the first match wins.
type lineRule struct {
	match func(string) bool
	style lipgloss.Style
}

func contains(sub string) func(string) bool {
	return func(line string) bool { return strings.Contains(line, sub) }
}

var lineRules = []lineRule{
	{match: isFrameLine, style: frameStyle},
	{match: contains(appTitle), style: titleStyle},
	{match: contains("▣ "), style: titleStyle},
	{match: contains("Trigger HELD"), style: triggerStyle},
	{match: contains("Reader ONLINE"), style: onlineStyle},
	{match: contains("Reader OFFLINE"), style: offlineStyle},
	{match: contains("[OK]"), style: okStyle},
	{match: contains("[WARN]"), style: warnStyle},
	{match: contains("[ERR]"), style: errStyle},
	{match: contains("[INFO ]"), style: infoStyle},
	{match: contains("│ • "), style: noticeStyle},
	{match: isPanelTitleLine, style: titleStyle},
	{match: contains("(RSSI: "), style: tagStyle},
	{match: func(line string) bool { return strings.HasPrefix(line, "│ ") }, style: bodyStyle},
}

func paintLayout(layout string) string {
	if layout == "" {
		return layout
	}
	lines := strings.Split(layout, "\n")
	for i, line := range lines {
		for _, rule := range lineRules {
			if rule.match(line) {
				lines[i] = rule.style.Render(line)
				break
			}
		}
	}
	return strings.Join(lines, "\n")
}

func isFrameLine(line string) bool {
	return strings.HasPrefix(line, "┌") || strings.HasPrefix(line, "├") || strings.HasPrefix(line, "└")
}

// isPanelTitleLine matches the "[TITLE]" row renderPanel writes under a panel's top border.
func isPanelTitleLine(line string) bool {
	content := strings.TrimSpace(line)
	content = strings.TrimSuffix(strings.TrimPrefix(content, "│ "), " │")
	content = strings.TrimSpace(content)
	if len(content) < 2 || content[0] != '[' || content[len(content)-1] != ']' {
		return false
	}
	return !strings.ContainsAny(content[1:len(content)-1], "[]")
}
