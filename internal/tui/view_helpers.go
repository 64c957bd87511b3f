package tui

import (
	"strings"
	"time"
)

func statusTag(status string) string {
	text := strings.ToLower(status)
	switch {
	case strings.Contains(text, "failed"),
		strings.Contains(text, "timed out"),
		strings.Contains(text, "disconnected"),
		strings.Contains(text, "not connected"):
		return "[ERR]"
	case strings.Contains(text, "connecting"):
		return "[WARN]"
	case strings.Contains(text, "connected"),
		strings.Contains(text, "applied"):
		return "[OK]"
	default:
		return "[INFO ]"
	}
}

func runState(running bool) string {
	if running {
		return "RUNNING"
	}
	return "IDLE"
}

func onOff(value bool) string {
	if value {
		return "ON"
	}
	return "OFF"
}

func formatShortTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Format("15:04:05")
}

func runeLen(s string) int {
	return len([]rune(s))
}

func padRight(s string, width int) string {
	n := runeLen(s)
	if n >= width {
		return s
	}
	return s + strings.Repeat(" ", width-n)
}

func trimText(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	if width <= 1 {
		return string(r[:width])
	}
	return string(r[:width-1]) + "…"
}
