package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/KevinTran99/MovieContest/internal/domain"
)

func (s *Store) insertOutbox(ctx context.Context, tx *sql.Tx, events []domain.Event) error {
	for _, e := range events {
		payload, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal %s event: %w", e.Kind, err)
		}
		_, err = tx.ExecContext(ctx, s.rebind(`
INSERT INTO outbox(id, kind, payload, created_at, published_at)
VALUES (?, ?, ?, ?, NULL)
`), e.ID, string(e.Kind), string(payload), toMillis(e.OccurredAt))
		if err != nil {
			return err
		}
	}
	return nil
}

// ListPendingEvents returns unpublished events, oldest first.
func (s *Store) ListPendingEvents(ctx context.Context, limit int) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(`
SELECT payload
FROM outbox
WHERE published_at IS NULL
ORDER BY created_at, id
LIMIT ?
`), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.Event
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var e domain.Event
		if err := json.Unmarshal([]byte(payload), &e); err != nil {
			return nil, fmt.Errorf("decode outbox payload: %w", err)
		}
		items = append(items, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) MarkEventPublished(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`
UPDATE outbox SET published_at = ? WHERE id = ? AND published_at IS NULL
`), toMillis(at), id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
