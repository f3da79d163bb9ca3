package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/draftmail/internal/buffer"
	"github.com/nhle/draftmail/internal/deliver"
	"github.com/nhle/draftmail/internal/draft"
	"github.com/nhle/draftmail/internal/model"
	"github.com/nhle/draftmail/internal/send"
	"github.com/nhle/draftmail/internal/ui/command"
	"github.com/nhle/draftmail/internal/ui/prompt"
)

// Prompt tags. The buffer ID follows the colon.
const (
	tagSend      = "send"
	tagSendEmpty = "send-empty"
	tagKill      = "kill"
	tagAttach    = "attach"
)

var errNoDraft = errors.New("no draft open")

// sendRecordedMsg is sent after a delivery attempt is written to history.
type sendRecordedMsg struct {
	id  string
	err error
}

// confirm asks a yes/no question about a draft.
func (m *Model) confirm(kind, id, question string) tea.Cmd {
	if m.currentView != ViewPrompt {
		m.previousView = m.currentView
	}
	m.currentView = ViewPrompt
	return m.prompt.Confirm(kind+":"+id, question)
}

// input asks for a line of text about a draft.
func (m *Model) input(kind, id, title, placeholder string) tea.Cmd {
	if m.currentView != ViewPrompt {
		m.previousView = m.currentView
	}
	m.currentView = ViewPrompt
	return m.prompt.Input(kind+":"+id, title, placeholder)
}

// handlePrompt acts on the answer to a question.
func (m Model) handlePrompt(msg prompt.ResultMsg) (tea.Model, tea.Cmd) {
	m.currentView = m.previousView
	kind, id, _ := strings.Cut(msg.Tag, ":")

	var cmd tea.Cmd
	switch kind {
	case tagSend:
		if msg.Confirmed {
			cmd = m.prepare(id)
		}

	case tagSendEmpty:
		prep, ok := m.awaiting[id]
		delete(m.awaiting, id)
		if ok && msg.Confirmed {
			cmd = m.dispatch(prep)
		}

	case tagKill:
		if msg.Confirmed {
			cmd = m.killDraft(id)
		}

	case tagAttach:
		if msg.Confirmed {
			cmd = m.editDraft(id, func(text string) (string, error) {
				return draft.AttachFile(text, msg.Value)
			})
		}
	}
	return m, cmd
}

// prepare runs the pre-send hooks and parses the draft. A blank body
// needs a second confirmation before dispatch.
func (m *Model) prepare(id string) tea.Cmd {
	b, err := m.bufs.Get(id)
	if err != nil {
		m.errMsg = err.Error()
		return nil
	}

	prep, err := m.deps.Pipeline.Prepare(b)
	if buffer.IsTransitionError(err) {
		m.errMsg = "draft is already being sent"
		return nil
	}
	if err != nil {
		m.logger.Warn("send aborted", "draft", id, "error", err)
		return m.showError(b, err)
	}

	var reload tea.Cmd
	if m.compose.BufferID() == id && m.compose.Value() != b.Text {
		reload = m.compose.Open(b)
	}

	if prep.BodyEmpty() {
		m.awaiting[id] = prep
		ask := m.confirm(tagSendEmpty, id, "Body is empty.  Really send?")
		return tea.Batch(reload, ask)
	}
	return tea.Batch(reload, m.dispatch(prep))
}

// dispatch assembles the message and hands it to the executor. The user
// is returned to the summary while delivery runs.
func (m *Model) dispatch(prep *send.Prepared) tea.Cmd {
	b, err := m.bufs.Get(prep.BufferID)
	if err != nil {
		m.errMsg = err.Error()
		return nil
	}

	job, err := m.deps.Pipeline.Assemble(prep)
	if err != nil {
		m.logger.Warn("assembling message", "draft", prep.BufferID, "error", err)
		return m.showError(b, err)
	}

	run, err := m.deps.Pipeline.Dispatch(m.bufs, job)
	if err != nil {
		m.errMsg = err.Error()
		return nil
	}

	m.logger.Info("sending draft", "draft", prep.BufferID, "method", prep.Method)
	m.inFlight[prep.BufferID] = prep.Method
	m.currentView = ViewSummary
	refresh := m.summary.SetDrafts(m.bufs.List())
	return tea.Batch(run, refresh, m.spinner.Tick)
}

// handleDelivered reconciles a finished delivery with the buffers and
// records it in the send history.
func (m Model) handleDelivered(msg send.DeliveredMsg) (tea.Model, tea.Cmd) {
	out := msg.Outcome
	method := m.inFlight[out.DraftID]
	delete(m.inFlight, out.DraftID)

	r := send.Reconcile(m.bufs, out)
	cmds := []tea.Cmd{m.recordSend(out, method)}

	switch r.Status {
	case deliver.Sent:
		m.logger.Debug("draft delivered", "draft", out.DraftID)
		cmds = append(cmds, m.deleteDraft(out.DraftID))

		m.noticeSeq++
		m.notice = r.Notice
		m.warning = ""
		if r.Warning != nil {
			m.logger.Warn("sent with warning", "draft", out.DraftID, "warning", r.Warning)
			m.warning = r.Warning.Error()
		}
		seq := m.noticeSeq
		cmds = append(cmds, tea.Tick(m.deps.NoticeTTL, func(time.Time) tea.Msg {
			return clearNoticeMsg{seq: seq}
		}))

		editingOther := m.currentView == ViewCompose && m.compose.BufferID() != out.DraftID
		if r.ReturnToSummary && !editingOther && m.currentView != ViewPrompt {
			m.currentView = ViewSummary
		}

	default:
		m.logger.Debug("draft restored after failed send", "draft", out.DraftID)
		b, err := m.bufs.Get(out.DraftID)
		if err != nil {
			m.errMsg = fmt.Sprintf("sending failed: %v", r.Err)
			break
		}
		if m.currentView == ViewPrompt {
			m.previousView = ViewCompose
		} else {
			m.currentView = ViewCompose
		}
		cmds = append(cmds, m.compose.Open(b))
		m.compose.SetError(r.Err)
	}

	cmds = append(cmds, m.summary.SetDrafts(m.bufs.List()))
	return m, tea.Batch(cmds...)
}

// recordSend writes a delivery attempt to the send history.
func (m *Model) recordSend(out deliver.Outcome, method string) tea.Cmd {
	s := m.deps.Store
	rec := model.SendRecord{
		DraftID:   out.DraftID,
		MessageID: out.MessageID,
		Subject:   out.Subject,
		Method:    method,
		Status:    model.SendStatusSent,
	}
	if out.Status != deliver.Sent {
		rec.Status = model.SendStatusFailed
		if out.Err != nil {
			rec.Error = out.Err.Error()
		}
	}
	if out.Warning != nil {
		rec.Warning = out.Warning.Error()
	}
	return func() tea.Msg {
		return sendRecordedMsg{id: rec.DraftID, err: s.RecordSend(context.Background(), rec)}
	}
}

// showError opens b in the editor with err under it.
func (m *Model) showError(b *buffer.Buffer, err error) tea.Cmd {
	var cmd tea.Cmd
	if m.compose.BufferID() != b.ID {
		cmd = m.compose.Open(b)
	}
	m.compose.SetError(err)
	m.currentView = ViewCompose
	return cmd
}

// editDraft applies a draft editing command to the open draft and
// persists the result.
func (m *Model) editDraft(id string, edit func(string) (string, error)) tea.Cmd {
	if m.compose.BufferID() != id {
		m.errMsg = errNoDraft.Error()
		return nil
	}
	if err := m.compose.Apply(edit); err != nil {
		return nil
	}
	return m.syncDraft(id, m.compose.Value())
}

// executeCommand runs a palette command. Draft commands act on the
// draft open in the editor.
func (m *Model) executeCommand(c command.Command) tea.Cmd {
	switch c.Name {
	case command.New:
		return m.newDraft("")
	case command.Quit:
		return m.quit()
	}

	if m.previousView != ViewCompose || m.compose.BufferID() == "" {
		m.errMsg = errNoDraft.Error()
		return nil
	}
	id := m.compose.BufferID()

	switch c.Name {
	case command.Send:
		save := m.syncDraft(id, m.compose.Value())
		ask := m.confirm(tagSend, id, "Send this mail?")
		return tea.Batch(save, ask)

	case command.Kill:
		return m.confirm(tagKill, id, "Kill current draft?")

	case command.Attach:
		return m.editDraft(id, func(text string) (string, error) {
			return draft.AttachFile(text, c.Arg)
		})

	case command.AttachMessage:
		mailbox, uid, err := draft.MessageAttachment{Ref: c.Arg}.Locate()
		if err != nil {
			m.compose.SetError(err)
			return nil
		}
		return m.editDraft(id, func(text string) (string, error) {
			return draft.AttachMessage(text, mailbox, uid)
		})

	case command.Sign:
		return m.editDraft(id, draft.RequestSign)

	case command.Encrypt:
		return m.editDraft(id, draft.RequestEncrypt)

	case command.Transport:
		return m.setTransport(id, c.Arg)
	}
	return nil
}

// setTransport overrides the delivery method of one draft.
func (m *Model) setTransport(id, method string) tea.Cmd {
	method = strings.ToLower(method)
	if len(m.deps.Methods) > 0 && !slices.Contains(m.deps.Methods, method) {
		m.compose.SetError(fmt.Errorf("unknown delivery method %q (have %s)",
			method, strings.Join(m.deps.Methods, ", ")))
		return nil
	}

	b, err := m.bufs.Get(id)
	if err != nil {
		m.errMsg = err.Error()
		return nil
	}
	settings := b.Settings
	settings.DeliveryMethod = method
	if err := m.bufs.SetSettings(id, settings); err != nil {
		m.errMsg = err.Error()
		return nil
	}
	m.compose.SetMethod(method)
	return m.syncDraft(id, m.compose.Value())
}
