package app

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/draftmail/internal/buffer"
	"github.com/nhle/draftmail/internal/draft"
	"github.com/nhle/draftmail/internal/model"
	"github.com/nhle/draftmail/internal/store"
	"github.com/nhle/draftmail/internal/transport"
)

// draftsLoadedMsg carries the drafts saved by a previous session.
type draftsLoadedMsg struct {
	records []model.DraftRecord
	err     error
}

// draftSavedMsg is sent after a draft is persisted.
type draftSavedMsg struct {
	id  string
	err error
}

// draftDeletedMsg is sent after a draft row is removed.
type draftDeletedMsg struct {
	id  string
	err error
}

// clearNoticeMsg clears the status notice if no newer one replaced it.
type clearNoticeMsg struct{ seq int }

// loadDrafts fetches the saved drafts of the current account.
func (m *Model) loadDrafts() tea.Cmd {
	s := m.deps.Store
	account := m.deps.Account
	return func() tea.Msg {
		records, err := s.GetDrafts(context.Background(), account)
		return draftsLoadedMsg{records: records, err: err}
	}
}

// restoreDrafts turns saved drafts into buffers, then opens the drafts
// passed on the command line.
func (m *Model) restoreDrafts(msg draftsLoadedMsg) tea.Cmd {
	if msg.err != nil {
		m.logger.Error("loading drafts", "error", msg.err)
		m.errMsg = "could not load saved drafts"
	}

	for _, rec := range msg.records {
		m.bufs.Add(&buffer.Buffer{
			ID:   rec.ID,
			Text: rec.Text,
			Settings: buffer.Settings{
				DeliveryMethod:  rec.DeliveryMethod,
				DeliveryOptions: transport.Options(rec.DeliveryOptions),
			},
			CreatedAt: rec.CreatedAt,
			UpdatedAt: rec.UpdatedAt,
		})
	}

	var cmds []tea.Cmd
	var first *buffer.Buffer
	for _, text := range m.deps.Drafts {
		b := m.bufs.Create(text, buffer.Settings{})
		if first == nil {
			first = b
		}
		cmds = append(cmds, m.saveDraft(b))
	}
	m.deps.Drafts = nil

	cmds = append(cmds, m.summary.SetDrafts(m.bufs.List()))
	if first != nil {
		cmds = append(cmds, m.openDraft(first.ID))
	}
	return tea.Batch(cmds...)
}

// newDraft creates a buffer, persists it and opens it in the editor.
// An empty text starts from the account's template.
func (m *Model) newDraft(text string) tea.Cmd {
	if text == "" {
		text = draft.New(m.deps.From)
	}
	b := m.bufs.Create(text, buffer.Settings{})
	save := m.saveDraft(b)
	open := m.openDraft(b.ID)
	return tea.Batch(save, open)
}

// openDraft shows a visible buffer in the editor.
func (m *Model) openDraft(id string) tea.Cmd {
	b, err := m.bufs.Get(id)
	if err != nil {
		m.errMsg = err.Error()
		return nil
	}
	if b.State != buffer.Visible {
		m.errMsg = "draft is being sent"
		return nil
	}
	m.currentView = ViewCompose
	return m.compose.Open(b)
}

// syncDraft copies editor text into the buffer and persists it.
func (m *Model) syncDraft(id, text string) tea.Cmd {
	if err := m.bufs.SetText(id, text); err != nil {
		m.logger.Warn("updating draft text", "draft", id, "error", err)
		return nil
	}
	b, err := m.bufs.Get(id)
	if err != nil {
		return nil
	}
	return m.saveDraft(b)
}

// saveDraft persists a snapshot of the buffer.
func (m *Model) saveDraft(b *buffer.Buffer) tea.Cmd {
	s := m.deps.Store
	rec := model.DraftRecord{
		ID:              b.ID,
		Name:            b.Name,
		Account:         m.deps.Account,
		Text:            b.Text,
		DeliveryMethod:  b.Settings.DeliveryMethod,
		DeliveryOptions: b.Settings.DeliveryOptions,
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.UpdatedAt,
	}
	return func() tea.Msg {
		return draftSavedMsg{id: rec.ID, err: s.SaveDraft(context.Background(), rec)}
	}
}

// deleteDraft removes the saved copy of a draft. A row that is already
// gone is not an error.
func (m *Model) deleteDraft(id string) tea.Cmd {
	s := m.deps.Store
	return func() tea.Msg {
		err := s.DeleteDraft(context.Background(), id)
		if errors.Is(err, store.ErrNotFound) {
			err = nil
		}
		return draftDeletedMsg{id: id, err: err}
	}
}

// killDraft discards a visible draft without sending it.
func (m *Model) killDraft(id string) tea.Cmd {
	if err := m.bufs.Kill(id); err != nil {
		m.errMsg = err.Error()
		return nil
	}
	m.currentView = ViewSummary
	del := m.deleteDraft(id)
	refresh := m.summary.SetDrafts(m.bufs.List())
	return tea.Batch(del, refresh)
}
