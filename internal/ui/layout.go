// Package ui holds the frame shared by every view: a one-line header,
// the active view and a one-line status bar.
package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/draftmail/internal/theme"
)

// chromeHeight is the header plus the status bar.
const chromeHeight = 2

// Layout holds the terminal size.
type Layout struct {
	Width  int
	Height int
}

// NewLayout returns a layout for a terminal of the given size.
func NewLayout(width, height int) Layout {
	return Layout{Width: width, Height: height}
}

// ContentWidth is the width given to views.
func (l Layout) ContentWidth() int {
	return l.Width
}

// ContentHeight is the height left between header and status bar.
func (l Layout) ContentHeight() int {
	return max(l.Height-chromeHeight, 0)
}

// Header renders the title on the left and status on the right.
func (l Layout) Header(title, status string) string {
	left := theme.HeaderStyle.Render(title)
	right := theme.HeaderStyle.Render(status)
	return lipgloss.JoinHorizontal(lipgloss.Top, left, l.fill(theme.HeaderStyle, left, right), right)
}

// StatusBar renders text across the bottom line.
func (l Layout) StatusBar(text string) string {
	rendered := theme.StatusBarStyle.Render(text)
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered, l.fill(theme.StatusBarStyle, rendered))
}

// Frame stacks header, content and status bar. Content is clipped to
// ContentHeight so the status bar stays on the last line.
func (l Layout) Frame(header, content, status string) string {
	body := lipgloss.NewStyle().
		Height(l.ContentHeight()).
		MaxHeight(l.ContentHeight()).
		Render(content)
	return lipgloss.JoinVertical(lipgloss.Left, header, body, status)
}

// fill pads the rest of the line with style's background.
func (l Layout) fill(style lipgloss.Style, parts ...string) string {
	used := 0
	for _, p := range parts {
		used += lipgloss.Width(p)
	}
	gap := max(l.Width-used, 0)
	return lipgloss.NewStyle().
		Width(gap).
		Background(style.GetBackground()).
		Render("")
}
