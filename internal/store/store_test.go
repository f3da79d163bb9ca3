package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/draftmail/internal/model"
	"github.com/nhle/draftmail/internal/store"
	"github.com/nhle/draftmail/tests/testutil"
)

func TestSaveDraft_InsertAndReplace(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	created := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	d := model.DraftRecord{
		ID:              "d1",
		Name:            "*draft*",
		Account:         "work",
		Text:            "To: a@b.com\n--text follows this line--\nhi",
		DeliveryMethod:  "file",
		DeliveryOptions: map[string]any{"location": "/tmp/out.mbox"},
		CreatedAt:       created,
		UpdatedAt:       created,
	}
	require.NoError(t, s.SaveDraft(ctx, d))

	d.Text = "To: a@b.com\n--text follows this line--\nedited"
	d.UpdatedAt = created.Add(time.Minute)
	require.NoError(t, s.SaveDraft(ctx, d))

	got, err := s.GetDraftByID(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, d.Text, got.Text)
	assert.Equal(t, "file", got.DeliveryMethod)
	assert.Equal(t, "/tmp/out.mbox", got.DeliveryOptions["location"])
	assert.True(t, created.Equal(got.CreatedAt))
	assert.True(t, created.Add(time.Minute).Equal(got.UpdatedAt))

	all, err := s.GetDrafts(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestSaveDraft_GeneratesID(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveDraft(ctx, model.DraftRecord{Name: "*draft*", Text: "x"}))

	drafts, err := s.GetDrafts(ctx, "")
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.NotEmpty(t, drafts[0].ID)
	assert.Nil(t, drafts[0].DeliveryOptions)
}

func TestGetDrafts_FiltersByAccountInCreationOrder(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.SaveDraft(ctx, model.DraftRecord{ID: "late", Account: "work", Text: "b", CreatedAt: base.Add(time.Hour)}))
	require.NoError(t, s.SaveDraft(ctx, model.DraftRecord{ID: "early", Account: "work", Text: "a", CreatedAt: base}))
	require.NoError(t, s.SaveDraft(ctx, model.DraftRecord{ID: "other", Account: "home", Text: "c", CreatedAt: base}))

	drafts, err := s.GetDrafts(ctx, "work")
	require.NoError(t, err)
	require.Len(t, drafts, 2)
	assert.Equal(t, "early", drafts[0].ID)
	assert.Equal(t, "late", drafts[1].ID)
}

func TestDeleteDraft(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveDraft(ctx, model.DraftRecord{ID: "d1", Text: "x"}))

	require.NoError(t, s.DeleteDraft(ctx, "d1"))

	_, err := s.GetDraftByID(ctx, "d1")
	assert.True(t, errors.Is(err, store.ErrNotFound))
	assert.True(t, errors.Is(s.DeleteDraft(ctx, "d1"), store.ErrNotFound))
}

func TestRecordSend_NewestFirstWithFilters(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.RecordSend(ctx, model.SendRecord{
		DraftID: "d1", Subject: "first", Method: "smtp",
		Status: model.SendStatusFailed, Error: "connection refused", SentAt: base,
	}))
	require.NoError(t, s.RecordSend(ctx, model.SendRecord{
		DraftID: "d1", Subject: "first", Method: "smtp", MessageID: "<1@x.org>",
		Status: model.SendStatusSent, Warning: "outbox: quota", SentAt: base.Add(time.Minute),
	}))
	require.NoError(t, s.RecordSend(ctx, model.SendRecord{
		DraftID: "d2", Subject: "second", Method: "file",
		Status: model.SendStatusSent, SentAt: base.Add(2 * time.Minute),
	}))

	all, err := s.GetSends(ctx, store.SendFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "second", all[0].Subject)
	assert.True(t, all[2].Failed())
	assert.Equal(t, "connection refused", all[2].Error)

	sent := model.SendStatusSent
	d1 := "d1"
	got, err := s.GetSends(ctx, store.SendFilter{Status: &sent, DraftID: &d1})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "<1@x.org>", got[0].MessageID)
	assert.Equal(t, "outbox: quota", got[0].Warning)

	page, err := s.GetSends(ctx, store.SendFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "first", page[0].Subject)
	assert.False(t, page[0].Failed())
}

func TestRecordSend_RejectsUnknownStatus(t *testing.T) {
	s := testutil.NewTestStore(t)

	err := s.RecordSend(context.Background(), model.SendRecord{DraftID: "d", Status: "maybe"})
	assert.Error(t, err)
}

func TestNewSQLiteStore_ReopenKeepsData(t *testing.T) {
	path := t.TempDir() + "/draftmail.db"
	ctx := context.Background()

	s, err := store.NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.SaveDraft(ctx, model.DraftRecord{ID: "keep", Text: "x"}))
	require.NoError(t, s.Close())

	s, err = store.NewSQLiteStore(path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.GetDraftByID(ctx, "keep")
	require.NoError(t, err)
	assert.Equal(t, "x", got.Text)

	v, err := s.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}
