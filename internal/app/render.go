package app

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"
)

const (
	minPanelCols = 12
	minPanelRows = 4
)

var (
	colorSelected = lipgloss.Color("#7C3AED")
	colorTracked  = lipgloss.Color("#10B981")
	colorIdle     = lipgloss.Color("#6B7280")

	titleStyle  = lipgloss.NewStyle().Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(colorIdle)
	statusStyle = lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("#E5E7EB")).Background(lipgloss.Color("#374151"))
	logStyle    = lipgloss.NewStyle().Foreground(colorIdle)
)

// panelView is everything needed to draw one panel.
type panelView struct {
	Name     string
	Lines    []string
	Cols     int
	Rows     int
	Scale    float64
	Factor   float64
	TextMin  float64
	TextMax  float64
	Tracked  bool
	Selected bool
}

// cacheKey identifies a rendering; equal keys render identically.
func (v panelView) cacheKey() string {
	return fmt.Sprintf("%s|%dx%d|%.4f|%.2f|%.2f-%.2f|%t|%t|%s",
		v.Name, v.Cols, v.Rows, v.Scale, v.Factor, v.TextMin, v.TextMax, v.Tracked, v.Selected,
		strings.Join(v.Lines, "\x00"))
}

// renderPanel draws a bordered box of exactly v.Cols x v.Rows cells.
func renderPanel(v panelView) string {
	border := colorIdle
	switch {
	case v.Selected:
		border = colorSelected
	case v.Tracked:
		border = colorTracked
	}

	// Border takes one cell on each side.
	inner := max(v.Cols-2, 1)
	height := max(v.Rows-2, 1)

	lines := make([]string, 0, height)
	lines = append(lines, titleStyle.Render(fit(v.Name, inner)))
	for _, l := range v.Lines {
		lines = append(lines, fit(l, inner))
	}
	state := "untracked"
	if v.Tracked {
		state = fmt.Sprintf("x%.2f", v.Scale)
	}
	footer := fmt.Sprintf("%s f%.2f text %.1f-%.1f", state, v.Factor, v.TextMin, v.TextMax)
	if len(lines) >= height {
		lines = lines[:height-1]
	}
	for len(lines) < height-1 {
		lines = append(lines, "")
	}
	lines = append(lines, mutedStyle.Render(fit(footer, inner)))

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border).
		Width(inner).
		Height(height).
		Render(strings.Join(lines, "\n"))
}

// fit truncates s to width cells, marking the cut with an ellipsis.
func fit(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if lipgloss.Width(s) <= width {
		return s
	}
	return truncate.StringWithTail(s, uint(width), "…")
}

// renderStatus draws the one-line status bar.
func renderStatus(width int, parts ...string) string {
	line := fit(strings.Join(parts, "  "), max(width-2, 0))
	return statusStyle.Width(max(width, 0)).Render(line)
}

// renderLog draws the last lines of the log tail.
func renderLog(lines []string, width int) string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		out = append(out, logStyle.Render(fit(l, width)))
	}
	return strings.Join(out, "\n")
}
