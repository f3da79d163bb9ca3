package store

import (
	"context"
	"errors"

	"github.com/nhle/draftmail/internal/model"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// SendFilter controls filtering and pagination for send history queries.
type SendFilter struct {
	Status  *string // model.SendStatusSent, model.SendStatusFailed, or nil (all)
	DraftID *string
	Limit   int
	Offset  int
}

// Store defines the persistence interface for drafts and send history.
type Store interface {
	// === Drafts ===

	SaveDraft(ctx context.Context, d model.DraftRecord) error
	GetDrafts(ctx context.Context, account string) ([]model.DraftRecord, error)
	GetDraftByID(ctx context.Context, id string) (*model.DraftRecord, error)
	DeleteDraft(ctx context.Context, id string) error

	// === Send history ===

	RecordSend(ctx context.Context, r model.SendRecord) error
	GetSends(ctx context.Context, filter SendFilter) ([]model.SendRecord, error)

	Close() error
}
