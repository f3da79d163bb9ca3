package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/nhle/draftmail/internal/model"
)

// SaveDraft inserts or replaces a draft. If the draft has no ID, a new
// UUID is generated.
func (s *SQLiteStore) SaveDraft(ctx context.Context, d model.DraftRecord) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	if d.UpdatedAt.IsZero() {
		d.UpdatedAt = now
	}

	opts := d.DeliveryOptions
	if opts == nil {
		opts = map[string]any{}
	}
	optsJSON, err := json.Marshal(opts)
	if err != nil {
		return fmt.Errorf("marshaling delivery options for draft %s: %w", d.ID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO drafts (
			id, name, account, text, delivery_method, delivery_options,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Name, d.Account, d.Text, d.DeliveryMethod, string(optsJSON),
		d.CreatedAt.UTC(), d.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving draft %s: %w", d.ID, err)
	}
	return nil
}

// GetDrafts returns the drafts of an account, oldest first. An empty
// account returns all drafts.
func (s *SQLiteStore) GetDrafts(ctx context.Context, account string) ([]model.DraftRecord, error) {
	query := "SELECT * FROM drafts"
	var args []interface{}
	if account != "" {
		query += " WHERE account = ?"
		args = append(args, account)
	}
	query += " ORDER BY created_at ASC, id ASC"

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying drafts: %w", err)
	}
	defer rows.Close()

	var drafts []model.DraftRecord
	for rows.Next() {
		d, err := scanDraft(rows)
		if err != nil {
			return nil, err
		}
		drafts = append(drafts, d)
	}
	return drafts, rows.Err()
}

// GetDraftByID retrieves a single draft.
func (s *SQLiteStore) GetDraftByID(ctx context.Context, id string) (*model.DraftRecord, error) {
	rows, err := s.db.QueryxContext(ctx, "SELECT * FROM drafts WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("getting draft %s: %w", id, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("getting draft %s: %w", id, err)
		}
		return nil, fmt.Errorf("draft %s: %w", id, ErrNotFound)
	}
	d, err := scanDraft(rows)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// DeleteDraft removes a draft.
func (s *SQLiteStore) DeleteDraft(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM drafts WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting draft %s: %w", id, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("draft %s: %w", id, ErrNotFound)
	}
	return nil
}

func scanDraft(rows *sqlx.Rows) (model.DraftRecord, error) {
	var (
		d       model.DraftRecord
		optsRaw string
	)

	err := rows.Scan(
		&d.ID, &d.Name, &d.Account, &d.Text, &d.DeliveryMethod, &optsRaw,
		&d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return model.DraftRecord{}, fmt.Errorf("scanning draft row: %w", err)
	}

	if optsRaw != "" && optsRaw != "{}" {
		if err := json.Unmarshal([]byte(optsRaw), &d.DeliveryOptions); err != nil {
			return model.DraftRecord{}, fmt.Errorf("unmarshaling delivery options: %w", err)
		}
	}

	return d, nil
}
