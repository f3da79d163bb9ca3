package testutil

import (
	"context"
	"testing"

	"github.com/nhle/draftmail/internal/model"
	"github.com/nhle/draftmail/internal/store"
)

// NewTestStore opens a migrated in-memory store holding the given drafts.
// The store is closed when the test ends.
func NewTestStore(t *testing.T, drafts ...model.DraftRecord) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("opening test store: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	for _, d := range drafts {
		if err := s.SaveDraft(context.Background(), d); err != nil {
			t.Fatalf("seeding draft %q: %v", d.ID, err)
		}
	}
	return s
}
