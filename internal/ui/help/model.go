// Package help renders the key binding and draft syntax reference.
package help

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/draftmail/internal/draft"
	"github.com/nhle/draftmail/internal/keys"
	"github.com/nhle/draftmail/internal/theme"
	"github.com/nhle/draftmail/internal/ui/command"
)

// fieldHelp describes the control fields a draft header may carry.
var fieldHelp = [][2]string{
	{draft.FieldAttachedFile, "path of a file to attach"},
	{draft.FieldAttachedMessage, "mailbox/uid of a stored message to attach"},
	{draft.FieldPGPSign, "sign with your PGP key"},
	{draft.FieldPGPEncrypt, "encrypt to all recipients"},
}

// Model is the help view.
type Model struct {
	keys   *keys.KeyMap
	help   help.Model
	width  int
	height int
}

// New creates a help view.
func New(k *keys.KeyMap, width, height int) Model {
	h := help.New()
	h.ShowAll = true
	m := Model{keys: k, help: h}
	m.SetSize(width, height)
	return m
}

// Update is a no-op; the root model closes the view.
func (m Model) Update(tea.Msg) (Model, tea.Cmd) {
	return m, nil
}

// View renders key bindings, palette commands and draft control fields.
func (m Model) View() string {
	section := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)

	var fields strings.Builder
	for _, f := range fieldHelp {
		fmt.Fprintf(&fields, "%-18s %s\n", f[0]+":", theme.HelpStyle.Render(f[1]))
	}
	fmt.Fprintf(&fields, "%s\n", theme.HelpStyle.Render("Header and body are separated by "+draft.Marker))

	palette := theme.DimmedStyle.Render(strings.Join(command.Names(), "  "))

	content := lipgloss.JoinVertical(lipgloss.Left,
		section.Render("Keys"),
		m.help.View(m.keys),
		"",
		section.Render("Commands"),
		palette,
		"",
		section.Render("Draft fields"),
		fields.String(),
	)

	return theme.DetailPanelStyle.
		Width(m.width - 4).
		Height(m.height - 4).
		Render(content)
}

// SetSize updates the help view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.help.Width = width - 4
}
