package command

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/draftmail/internal/theme"
)

// Command names accepted by the palette.
const (
	Send          = "send"
	Kill          = "kill"
	Attach        = "attach"
	AttachMessage = "attach-message"
	Sign          = "sign"
	Encrypt       = "encrypt"
	New           = "new"
	Transport     = "transport"
	Quit          = "quit"
)

// arity is the number of arguments each command takes.
var arity = map[string]int{
	Send:          0,
	Kill:          0,
	Attach:        1,
	AttachMessage: 1,
	Sign:          0,
	Encrypt:       0,
	New:           0,
	Transport:     1,
	Quit:          0,
}

// Command is a parsed palette command.
type Command struct {
	Name string
	Arg  string
}

// Names returns the accepted command names in sorted order.
func Names() []string {
	names := make([]string, 0, len(arity))
	for n := range arity {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Parse splits a palette line into a command and its argument. The
// argument is the rest of the line, so paths may contain spaces.
func Parse(line string) (Command, error) {
	line = strings.TrimSpace(line)
	name, arg, _ := strings.Cut(line, " ")
	name = strings.ToLower(name)
	arg = strings.TrimSpace(arg)

	n, ok := arity[name]
	if !ok {
		return Command{}, fmt.Errorf("unknown command %q", name)
	}
	if n == 0 && arg != "" {
		return Command{}, fmt.Errorf("%s takes no argument", name)
	}
	if n == 1 && arg == "" {
		return Command{}, fmt.Errorf("%s needs an argument", name)
	}
	return Command{Name: name, Arg: arg}, nil
}

// CommandMsg is emitted when the user executes a valid command.
type CommandMsg struct {
	Command
}

// ErrorMsg is emitted when the entered line is not a valid command.
type ErrorMsg struct {
	Err error
}

// Model is the command palette view.
type Model struct {
	input  textinput.Model
	width  int
	height int
}

// NewModel creates a new command palette model.
func NewModel(width, height int) Model {
	ti := textinput.New()
	ti.Placeholder = strings.Join(Names(), ", ")
	ti.Prompt = ": "
	ti.ShowSuggestions = true
	ti.SetSuggestions(Names())
	ti.Focus()
	ti.Width = width - 6

	return Model{
		input:  ti,
		width:  width,
		height: height,
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages for the command palette.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "enter":
			line := strings.TrimSpace(m.input.Value())
			m.input.Reset()
			if line == "" {
				return m, nil
			}
			c, err := Parse(line)
			if err != nil {
				return m, func() tea.Msg { return ErrorMsg{Err: err} }
			}
			return m, func() tea.Msg { return CommandMsg{Command: c} }
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the command palette.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	title := titleStyle.Render("Command Palette")
	input := m.input.View()

	content := lipgloss.JoinVertical(lipgloss.Left, title, input)

	return theme.DetailPanelStyle.
		Width(m.width - 4).
		Render(content)
}

// SetSize updates the command palette dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.input.Width = width - 6
}

// Focus gives keyboard focus to the text input.
func (m *Model) Focus() tea.Cmd {
	return m.input.Focus()
}
