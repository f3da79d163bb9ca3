package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/draftmail/internal/model"
)

// RecordSend appends an entry to the send history.
func (s *SQLiteStore) RecordSend(ctx context.Context, r model.SendRecord) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.SentAt.IsZero() {
		r.SentAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sends (
			id, draft_id, message_id, subject, method,
			status, error, warning, sent_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.DraftID, r.MessageID, r.Subject, r.Method,
		r.Status, r.Error, r.Warning, r.SentAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("recording send %s: %w", r.ID, err)
	}
	return nil
}

// GetSends returns send history entries, newest first.
func (s *SQLiteStore) GetSends(ctx context.Context, filter SendFilter) ([]model.SendRecord, error) {
	var conditions []string
	var args []interface{}

	if filter.Status != nil {
		conditions = append(conditions, "status = ?")
		args = append(args, *filter.Status)
	}
	if filter.DraftID != nil {
		conditions = append(conditions, "draft_id = ?")
		args = append(args, *filter.DraftID)
	}

	query := `SELECT id, draft_id, message_id, subject, method,
		status, error, warning, sent_at FROM sends`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY sent_at DESC, rowid DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		if filter.Limit <= 0 {
			query += " LIMIT -1"
		}
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	var sends []model.SendRecord
	if err := s.db.SelectContext(ctx, &sends, query, args...); err != nil {
		return nil, fmt.Errorf("querying sends: %w", err)
	}
	return sends, nil
}
