// Package summary is the start view: open drafts on top, recent send
// history below.
package summary

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/draftmail/internal/buffer"
	"github.com/nhle/draftmail/internal/keys"
	"github.com/nhle/draftmail/internal/model"
	"github.com/nhle/draftmail/internal/store"
	"github.com/nhle/draftmail/internal/theme"
)

// historyLimit is how many send records the summary shows.
const historyLimit = 20

// HistoryLoadedMsg is sent when send history has been loaded.
type HistoryLoadedMsg struct {
	Sends []model.SendRecord
	Err   error
}

// OpenDraftMsg asks the app to open a draft for editing.
type OpenDraftMsg struct {
	BufferID string
}

// NewDraftMsg asks the app to create a draft.
type NewDraftMsg struct{}

// KillDraftMsg asks the app to kill a draft after confirmation.
type KillDraftMsg struct {
	BufferID string
}

// Model is the summary view.
type Model struct {
	list    list.Model
	history viewport.Model
	sends   []model.SendRecord
	keys    *keys.KeyMap
	width   int
	height  int
}

// New creates a summary view.
func New(k *keys.KeyMap, width, height int) Model {
	l := list.New([]list.Item{}, ItemDelegate{}, width, listHeight(height))
	l.Title = "Drafts"
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	// The app owns quitting.
	l.KeyMap.Quit.SetEnabled(false)
	l.KeyMap.ForceQuit.SetEnabled(false)
	l.Styles.Title = theme.HeaderStyle

	return Model{
		list:    l,
		history: viewport.New(width, historyHeight(height)),
		keys:    k,
		width:   width,
		height:  height,
	}
}

// SetDrafts replaces the listed drafts.
func (m *Model) SetDrafts(bufs []*buffer.Buffer) tea.Cmd {
	items := make([]list.Item, len(bufs))
	for i, b := range bufs {
		items[i] = NewDraftItem(b)
	}
	return m.list.SetItems(items)
}

// Selected returns the highlighted draft, if any.
func (m Model) Selected() (DraftItem, bool) {
	item, ok := m.list.SelectedItem().(DraftItem)
	return item, ok
}

// Update handles messages for the summary view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case HistoryLoadedMsg:
		if msg.Err == nil {
			m.sends = msg.Sends
			m.history.SetContent(m.renderHistory())
		}
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Select):
			item, ok := m.Selected()
			if !ok || item.Pending {
				return m, nil
			}
			return m, func() tea.Msg { return OpenDraftMsg{BufferID: item.ID} }

		case key.Matches(msg, m.keys.New):
			return m, func() tea.Msg { return NewDraftMsg{} }

		case key.Matches(msg, m.keys.Delete):
			item, ok := m.Selected()
			if !ok || item.Pending {
				return m, nil
			}
			return m, func() tea.Msg { return KillDraftMsg{BufferID: item.ID} }
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View renders the summary view.
func (m Model) View() string {
	var top string
	if len(m.list.Items()) == 0 {
		top = lipgloss.NewStyle().
			Width(m.width).
			Height(listHeight(m.height)).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray).
			Render("No drafts.\n\nPress n to write a new mail.")
	} else {
		top = m.list.View()
	}

	title := theme.HeaderStyle.Render("Sent")
	return lipgloss.JoinVertical(lipgloss.Left, top, title, m.history.View())
}

func (m Model) renderHistory() string {
	if len(m.sends) == 0 {
		return theme.DimmedStyle.Render("  Nothing sent yet.")
	}
	lines := make([]string, len(m.sends))
	for i, r := range m.sends {
		lines[i] = "  " + renderSend(r)
	}
	return strings.Join(lines, "\n")
}

// LoadHistory returns a tea.Cmd that reads recent send history.
func LoadHistory(s store.Store) tea.Cmd {
	return func() tea.Msg {
		sends, err := s.GetSends(context.Background(), store.SendFilter{Limit: historyLimit})
		return HistoryLoadedMsg{Sends: sends, Err: err}
	}
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, listHeight(height))
	m.history.Width = width
	m.history.Height = historyHeight(height)
	m.history.SetContent(m.renderHistory())
}

func listHeight(height int) int {
	return max(height-historyHeight(height)-1, 3)
}

func historyHeight(height int) int {
	return max(height/3, 3)
}
