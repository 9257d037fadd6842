package store

import (
	"context"
	"fmt"

	"github.com/roach88/flowdoc/internal/errs"
)

const dbIDCounter = "db_id"

// NextDBIDs reserves n consecutive db_ids and returns them in order.
// db_ids start at 1 and are never reused.
func (s *Store) NextDBIDs(ctx context.Context, n int) ([]int64, error) {
	if n < 1 {
		return nil, errs.Validation("store.next_db_ids", "cannot reserve %d ids", n)
	}
	ids, err := nextDBIDs(ctx, s.db, n)
	if err != nil {
		return nil, err
	}
	s.metrics.allocated(n)
	return ids, nil
}

func nextDBIDs(ctx context.Context, q queryer, n int) ([]int64, error) {
	if _, err := q.ExecContext(ctx, `
		INSERT INTO counters (name, value) VALUES (?, 0)
		ON CONFLICT(name) DO NOTHING
	`, dbIDCounter); err != nil {
		return nil, fmt.Errorf("next db ids: init counter: %w", err)
	}

	var last int64
	if err := q.QueryRowContext(ctx, `
		UPDATE counters SET value = value + ? WHERE name = ?
		RETURNING value
	`, n, dbIDCounter).Scan(&last); err != nil {
		return nil, fmt.Errorf("next db ids: %w", err)
	}

	ids := make([]int64, n)
	for i := range ids {
		ids[i] = last - int64(n) + int64(i) + 1
	}
	return ids, nil
}
