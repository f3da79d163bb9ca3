// Package prompt shows a single yes/no question or a one-line input in
// a huh form and reports the answer as a ResultMsg.
package prompt

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/draftmail/internal/theme"
)

// ResultMsg is dispatched when the prompt is answered or dismissed.
type ResultMsg struct {
	// Tag identifies which question was asked.
	Tag string

	// Confirmed is true when the user answered yes or submitted input.
	Confirmed bool

	// Value is the entered text for input prompts.
	Value string
}

// bindings holds form values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type bindings struct {
	confirm bool
	value   string
}

// Model is an active prompt.
type Model struct {
	form   *huh.Form
	fb     *bindings
	tag    string
	width  int
	height int
}

// New creates an idle prompt.
func New(width, height int) Model {
	return Model{fb: &bindings{}, width: width, height: height}
}

// Active reports whether a question is waiting for an answer.
func (m Model) Active() bool {
	return m.form != nil
}

// Tag returns the tag of the current question.
func (m Model) Tag() string {
	return m.tag
}

// Confirm asks a yes/no question. The default answer is no.
func (m *Model) Confirm(tag, question string) tea.Cmd {
	m.tag = tag
	m.fb.confirm = false
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(question).
				Affirmative("Yes").
				Negative("No").
				Value(&m.fb.confirm),
		),
	).WithWidth(m.formWidth()).WithShowHelp(false).WithKeyMap(keyMap())
	return m.form.Init()
}

// Input asks for one line of text. Submitting blank text is rejected.
func (m *Model) Input(tag, title, placeholder string) tea.Cmd {
	m.tag = tag
	m.fb.value = ""
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title(title).
				Placeholder(placeholder).
				Value(&m.fb.value).
				Validate(validateRequired(title)),
		),
	).WithWidth(m.formWidth()).WithShowHelp(false).WithKeyMap(keyMap())
	return m.form.Init()
}

// Update forwards messages to the active form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		res := ResultMsg{Tag: m.tag, Value: strings.TrimSpace(m.fb.value)}
		res.Confirmed = m.fb.confirm || res.Value != ""
		m.form = nil
		return m, func() tea.Msg { return res }
	case huh.StateAborted:
		res := ResultMsg{Tag: m.tag}
		m.form = nil
		return m, func() tea.Msg { return res }
	}
	return m, cmd
}

// View renders the prompt.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}
	return theme.DetailPanelStyle.
		Width(m.formWidth()).
		Render(lipgloss.NewStyle().Padding(0, 1).Render(m.form.View()))
}

// SetSize updates the prompt dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m Model) formWidth() int {
	w := m.width - 4
	if w < 40 {
		w = 40
	}
	if w > 80 {
		w = 80
	}
	return w
}

// keyMap lets esc dismiss the prompt as well as ctrl+c.
func keyMap() *huh.KeyMap {
	km := huh.NewDefaultKeyMap()
	km.Quit = key.NewBinding(key.WithKeys("esc", "ctrl+c"))
	return km
}

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}
