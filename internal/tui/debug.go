package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// DebugPanel shows a rolling log of notebook events next to the cells
type DebugPanel struct {
	enabled bool
	lines   []string
	buffer  int // max lines kept
}

// NewDebugPanel creates a debug panel; a disabled panel ignores every event
func NewDebugPanel(enabled bool) DebugPanel {
	return DebugPanel{
		enabled: enabled,
		buffer:  100,
	}
}

// IsEnabled returns whether the panel is shown
func (d *DebugPanel) IsEnabled() bool {
	return d.enabled
}

// AddEvent records an event such as "run" or "complete" with its details
func (d *DebugPanel) AddEvent(eventType string, format string, args ...any) {
	if !d.enabled {
		return
	}
	line := time.Now().Format("15:04:05.000") + " [" + eventType + "]"
	if format != "" {
		line += " " + fmt.Sprintf(format, args...)
	}
	d.lines = append(d.lines, line)
	if len(d.lines) > d.buffer {
		d.lines = d.lines[len(d.lines)-d.buffer:]
	}
}

// Lines returns the buffered lines
func (d *DebugPanel) Lines() []string {
	return d.lines
}

// Render draws the newest lines that fit in width x height
func (d *DebugPanel) Render(width, height int) string {
	if !d.enabled {
		return ""
	}

	title := lipgloss.NewStyle().
		Foreground(ColorYellow).
		Bold(true).
		Render("DEBUG")

	contentHeight := height - 4
	if contentHeight < 1 {
		contentHeight = 1
	}

	start := 0
	if len(d.lines) > contentHeight {
		start = len(d.lines) - contentHeight
	}
	maxLen := width - 4
	if maxLen < 10 {
		maxLen = 10
	}

	var lines []string
	for _, line := range d.lines[start:] {
		lines = append(lines, truncate(line, maxLen))
	}
	for len(lines) < contentHeight {
		lines = append(lines, "")
	}

	return lipgloss.NewStyle().
		Width(width).
		Height(height).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorYellow).
		Padding(0, 1).
		Render(title + "\n" + strings.Join(lines, "\n"))
}

// truncate shortens s to max runes, marking the cut with "..."
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}
