package app

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/draftmail/internal/buffer"
	"github.com/nhle/draftmail/internal/keys"
	"github.com/nhle/draftmail/internal/send"
	"github.com/nhle/draftmail/internal/store"
	appsync "github.com/nhle/draftmail/internal/sync"
	"github.com/nhle/draftmail/internal/theme"
	"github.com/nhle/draftmail/internal/ui"
	"github.com/nhle/draftmail/internal/ui/command"
	composeview "github.com/nhle/draftmail/internal/ui/compose"
	helpview "github.com/nhle/draftmail/internal/ui/help"
	"github.com/nhle/draftmail/internal/ui/prompt"
	"github.com/nhle/draftmail/internal/ui/summary"
)

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewSummary ViewState = iota
	ViewCompose
	ViewHelp
	ViewCommand
	ViewPrompt
)

// defaultNoticeTTL is how long "Mail sent." stays in the status bar.
const defaultNoticeTTL = 3 * time.Second

// Deps are the collaborators of the root model.
type Deps struct {
	Store     store.Store
	Pipeline  *send.Pipeline
	KeepAlive *appsync.KeepAlive

	// Methods lists the delivery methods accepted by the transport command.
	Methods []string

	Account string
	From    string

	// Drafts are texts opened as new drafts at startup.
	Drafts []string

	Logger    *slog.Logger
	NoticeTTL time.Duration
}

// Model is the root Bubble Tea model that manages view routing, the
// draft buffers and the send flow.
type Model struct {
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	deps         Deps
	logger       *slog.Logger
	keys         *keys.KeyMap
	bufs         *buffer.Manager

	summary     summary.Model
	compose     composeview.Model
	helpView    helpview.Model
	commandView command.Model
	prompt      prompt.Model
	spinner     spinner.Model

	// awaiting holds prepared drafts waiting for the empty-body answer.
	awaiting map[string]*send.Prepared

	// inFlight maps buffer IDs being delivered to their method.
	inFlight map[string]string

	conn      appsync.Status
	notice    string
	noticeSeq int
	warning   string
	errMsg    string
	ready     bool
}

// New creates the root application model.
func New(d Deps) Model {
	k := keys.DefaultKeyMap()
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.NoticeTTL <= 0 {
		d.NoticeTTL = defaultNoticeTTL
	}

	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = theme.SendStatusStyle("sending")

	return Model{
		currentView: ViewSummary,
		layout:      ui.NewLayout(80, 24),
		deps:        d,
		logger:      d.Logger,
		keys:        k,
		bufs:        buffer.NewManager(),
		summary:     summary.New(k, 80, 22),
		compose:     composeview.New(k, 80, 22),
		helpView:    helpview.New(k, 80, 22),
		commandView: command.NewModel(80, 22),
		prompt:      prompt.New(80, 22),
		spinner:     sp,
		awaiting:    make(map[string]*send.Prepared),
		inFlight:    make(map[string]string),
	}
}

// Init restores saved drafts, loads send history and starts the store
// keep-alive.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.loadDrafts(), summary.LoadHistory(m.deps.Store)}
	if m.deps.KeepAlive != nil {
		cmds = append(cmds, m.deps.KeepAlive.Start())
	}
	return tea.Batch(cmds...)
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		w, h := m.layout.ContentWidth(), m.layout.ContentHeight()
		m.summary.SetSize(w, h)
		m.compose.SetSize(w, h)
		m.helpView.SetSize(w, h)
		m.commandView.SetSize(w, h)
		m.prompt.SetSize(w, h)
		return m.updateActiveView(msg)

	case draftsLoadedMsg:
		cmd := m.restoreDrafts(msg)
		return m, cmd

	case draftSavedMsg:
		if msg.err != nil {
			m.logger.Error("saving draft", "draft", msg.id, "error", msg.err)
		}
		return m, nil

	case draftDeletedMsg:
		if msg.err != nil {
			m.logger.Error("deleting draft", "draft", msg.id, "error", msg.err)
		}
		return m, nil

	case sendRecordedMsg:
		if msg.err != nil {
			m.logger.Error("recording send", "draft", msg.id, "error", msg.err)
		}
		return m, summary.LoadHistory(m.deps.Store)

	case summary.HistoryLoadedMsg:
		if msg.Err != nil {
			m.logger.Error("loading send history", "error", msg.Err)
		}
		var cmd tea.Cmd
		m.summary, cmd = m.summary.Update(msg)
		return m, cmd

	case appsync.StatusMsg:
		m.conn = msg.Status
		return m, m.deps.KeepAlive.WaitForNextStatus()

	case clearNoticeMsg:
		if msg.seq == m.noticeSeq {
			m.notice = ""
			m.warning = ""
		}
		return m, nil

	case spinner.TickMsg:
		if len(m.inFlight) == 0 {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case summary.OpenDraftMsg:
		cmd := m.openDraft(msg.BufferID)
		return m, cmd

	case summary.NewDraftMsg:
		cmd := m.newDraft("")
		return m, cmd

	case summary.KillDraftMsg:
		cmd := m.confirm(tagKill, msg.BufferID, "Kill current draft?")
		return m, cmd

	case composeview.BackMsg:
		save := m.syncDraft(msg.BufferID, msg.Text)
		m.currentView = ViewSummary
		refresh := m.summary.SetDrafts(m.bufs.List())
		return m, tea.Batch(save, refresh)

	case composeview.SendMsg:
		save := m.syncDraft(msg.BufferID, msg.Text)
		cmd := m.confirm(tagSend, msg.BufferID, "Send this mail?")
		return m, tea.Batch(save, cmd)

	case composeview.KillMsg:
		cmd := m.confirm(tagKill, msg.BufferID, "Kill current draft?")
		return m, cmd

	case composeview.AttachMsg:
		cmd := m.input(tagAttach, msg.BufferID, "Attach file", "/path/to/file")
		return m, cmd

	case prompt.ResultMsg:
		return m.handlePrompt(msg)

	case send.DeliveredMsg:
		return m.handleDelivered(msg)

	case command.CommandMsg:
		m.currentView = m.previousView
		cmd := m.executeCommand(msg.Command)
		return m, cmd

	case command.ErrorMsg:
		m.currentView = m.previousView
		m.errMsg = msg.Err.Error()
		return m, nil

	case tea.KeyMsg:
		// In a prompt ctrl+c cancels the question.
		if msg.String() == "ctrl+c" && m.currentView != ViewPrompt {
			return m, m.quit()
		}
		m.errMsg = ""

		switch m.currentView {
		case ViewSummary:
			switch {
			case key.Matches(msg, m.keys.Quit):
				return m, m.quit()
			case key.Matches(msg, m.keys.Help):
				m.previousView = m.currentView
				m.currentView = ViewHelp
				return m, nil
			case key.Matches(msg, m.keys.Command):
				m.previousView = m.currentView
				m.currentView = ViewCommand
				cmd := m.commandView.Focus()
				return m, cmd
			}

		case ViewCompose:
			if key.Matches(msg, m.keys.Execute) {
				m.previousView = m.currentView
				m.currentView = ViewCommand
				cmd := m.commandView.Focus()
				return m, cmd
			}

		case ViewHelp:
			if key.Matches(msg, m.keys.Help) || key.Matches(msg, m.keys.Back) {
				m.currentView = m.previousView
				return m, nil
			}

		case ViewCommand:
			if key.Matches(msg, m.keys.Back) {
				m.currentView = m.previousView
				return m, nil
			}
		}
	}

	return m.updateActiveView(msg)
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewSummary:
		m.summary, cmd = m.summary.Update(msg)
	case ViewCompose:
		m.compose, cmd = m.compose.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	case ViewCommand:
		m.commandView, cmd = m.commandView.Update(msg)
	case ViewPrompt:
		m.prompt, cmd = m.prompt.Update(msg)
	}

	return m, cmd
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	title := "draftmail"
	if m.deps.Account != "" {
		title += " · " + m.deps.Account
	}
	header := m.layout.Header(title, m.connStatus())
	statusBar := m.layout.StatusBar(m.statusLine())

	return m.layout.Frame(header, m.renderContent(), statusBar)
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewSummary:
		return m.summary.View()
	case ViewCompose:
		return m.compose.View()
	case ViewHelp:
		return m.helpView.View()
	case ViewCommand:
		return m.commandView.View()
	case ViewPrompt:
		return m.prompt.View()
	default:
		return ""
	}
}

// connStatus describes in-flight sends and the store connection.
func (m Model) connStatus() string {
	var parts []string
	if n := len(m.inFlight); n > 0 {
		parts = append(parts, fmt.Sprintf("%s sending (%d)", m.spinner.View(), n))
	}
	if m.deps.KeepAlive != nil {
		state := m.conn.State.String()
		parts = append(parts, theme.ConnectionStyle(state).Render(state))
	}
	if len(parts) == 0 {
		return "offline"
	}
	return strings.Join(parts, " | ")
}

// statusLine shows the latest notice, error or warning, else key hints.
func (m Model) statusLine() string {
	switch {
	case m.errMsg != "":
		return theme.ErrorStyle.Render(m.errMsg)
	case m.warning != "":
		return theme.WarningStyle.Render(m.warning)
	case m.notice != "":
		return theme.NoticeStyle.Render(m.notice)
	}
	return m.keyHints()
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	switch m.currentView {
	case ViewHelp:
		return "? close help | esc back"
	case ViewCommand:
		return "enter execute | esc back"
	case ViewPrompt:
		return "enter answer | esc cancel"
	case ViewCompose:
		return "alt+s send | alt+k kill | alt+a attach | alt+p sign | alt+e encrypt | alt+x command | esc back"
	default:
		return "q quit | ? help | n new | enter open | d kill | : command"
	}
}

func (m Model) quit() tea.Cmd {
	if m.deps.KeepAlive != nil {
		m.deps.KeepAlive.Stop()
	}
	return tea.Quit
}
