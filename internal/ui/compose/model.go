// Package compose is the draft editor view.
package compose

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/draftmail/internal/buffer"
	"github.com/nhle/draftmail/internal/draft"
	"github.com/nhle/draftmail/internal/keys"
	"github.com/nhle/draftmail/internal/theme"
)

// BackMsg asks the app to save the draft and show the summary.
type BackMsg struct {
	BufferID string
	Text     string
}

// SendMsg asks the app to confirm and send the draft.
type SendMsg struct {
	BufferID string
	Text     string
}

// KillMsg asks the app to confirm and kill the draft.
type KillMsg struct {
	BufferID string
}

// AttachMsg asks the app for a file path to attach.
type AttachMsg struct {
	BufferID string
}

// Model is the draft editor.
type Model struct {
	editor   textarea.Model
	keys     *keys.KeyMap
	bufferID string
	name     string
	method   string
	errText  string
	width    int
	height   int
}

// New creates an editor with no draft loaded.
func New(k *keys.KeyMap, width, height int) Model {
	ta := textarea.New()
	ta.ShowLineNumbers = false
	ta.Prompt = ""
	ta.CharLimit = 0
	ta.MaxHeight = 0
	ta.SetWidth(width)
	ta.SetHeight(editorHeight(height))

	return Model{
		editor: ta,
		keys:   k,
		width:  width,
		height: height,
	}
}

// Open loads a buffer into the editor and focuses it.
func (m *Model) Open(b *buffer.Buffer) tea.Cmd {
	m.bufferID = b.ID
	m.name = b.Name
	m.method = b.Settings.DeliveryMethod
	m.errText = ""
	m.editor.SetValue(b.Text)
	return m.editor.Focus()
}

// BufferID returns the ID of the loaded draft.
func (m Model) BufferID() string {
	return m.bufferID
}

// Value returns the editor text.
func (m Model) Value() string {
	return m.editor.Value()
}

// SetError shows err under the editor until the next edit. A nil err
// clears it.
func (m *Model) SetError(err error) {
	if err == nil {
		m.errText = ""
		return
	}
	m.errText = err.Error()
}

// SetMethod updates the delivery method shown in the title.
func (m *Model) SetMethod(method string) {
	m.method = method
}

// Apply runs a draft editing command on the editor text. On error the
// text is left unchanged and the error is shown.
func (m *Model) Apply(edit func(string) (string, error)) error {
	text, err := edit(m.editor.Value())
	if err != nil {
		m.SetError(err)
		return err
	}
	m.editor.SetValue(text)
	m.errText = ""
	return nil
}

// Update handles messages for the editor.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		id := m.bufferID
		switch {
		case key.Matches(msg, m.keys.Back):
			text := m.editor.Value()
			return m, func() tea.Msg { return BackMsg{BufferID: id, Text: text} }

		case key.Matches(msg, m.keys.Send):
			text := m.editor.Value()
			return m, func() tea.Msg { return SendMsg{BufferID: id, Text: text} }

		case key.Matches(msg, m.keys.Kill):
			return m, func() tea.Msg { return KillMsg{BufferID: id} }

		case key.Matches(msg, m.keys.Attach):
			return m, func() tea.Msg { return AttachMsg{BufferID: id} }

		case key.Matches(msg, m.keys.Sign):
			_ = m.Apply(draft.RequestSign)
			return m, nil

		case key.Matches(msg, m.keys.Encrypt):
			_ = m.Apply(draft.RequestEncrypt)
			return m, nil
		}
		m.errText = ""
	}

	var cmd tea.Cmd
	m.editor, cmd = m.editor.Update(msg)
	return m, cmd
}

// View renders the editor.
func (m Model) View() string {
	title := m.name
	if m.method != "" {
		title += " via " + m.method
	}
	parts := []string{theme.HeaderStyle.Render(title), m.editor.View()}
	if m.errText != "" {
		parts = append(parts, theme.ErrorStyle.Render(m.errText))
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// SetSize updates the editor dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.editor.SetWidth(width)
	m.editor.SetHeight(editorHeight(height))
}

func editorHeight(height int) int {
	return max(height-2, 3)
}
