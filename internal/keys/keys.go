package keys

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the global keybindings for the application.
type KeyMap struct {
	// Navigation
	Down key.Binding
	Up   key.Binding

	// Selection
	Select key.Binding

	// Back / Quit
	Back key.Binding
	Quit key.Binding

	// Command palette; Execute opens it from the editor
	Command key.Binding
	Execute key.Binding

	// Help toggle
	Help key.Binding

	// Summary actions
	New    key.Binding
	Delete key.Binding

	// Draft actions
	Send    key.Binding
	Kill    key.Binding
	Attach  key.Binding
	Sign    key.Binding
	Encrypt key.Binding
}

// DefaultKeyMap returns the default set of keybindings.
func DefaultKeyMap() *KeyMap {
	return &KeyMap{
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "down"),
		),
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "up"),
		),
		Select: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "open draft"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q"),
			key.WithHelp("q", "quit"),
		),
		Command: key.NewBinding(
			key.WithKeys(":"),
			key.WithHelp(":", "command palette"),
		),
		Execute: key.NewBinding(
			key.WithKeys("alt+x"),
			key.WithHelp("alt+x", "command palette"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "toggle help"),
		),
		New: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "new draft"),
		),
		Delete: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "kill draft"),
		),
		Send: key.NewBinding(
			key.WithKeys("alt+s"),
			key.WithHelp("alt+s", "send"),
		),
		Kill: key.NewBinding(
			key.WithKeys("alt+k"),
			key.WithHelp("alt+k", "kill draft"),
		),
		Attach: key.NewBinding(
			key.WithKeys("alt+a"),
			key.WithHelp("alt+a", "attach file"),
		),
		Sign: key.NewBinding(
			key.WithKeys("alt+p"),
			key.WithHelp("alt+p", "PGP sign"),
		),
		Encrypt: key.NewBinding(
			key.WithKeys("alt+e"),
			key.WithHelp("alt+e", "PGP encrypt"),
		),
	}
}

// ShortHelp returns the most essential keybindings for the compact help view.
func (k *KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		k.Up, k.Down, k.Select, k.New,
		k.Send, k.Quit, k.Help,
	}
}

// FullHelp returns all keybindings grouped by category for the expanded
// help view.
func (k *KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Select, k.Back, k.Quit},
		{k.New, k.Delete, k.Command, k.Help},
		{k.Send, k.Kill, k.Attach, k.Sign, k.Encrypt, k.Execute},
	}
}
