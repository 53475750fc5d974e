package store

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"
)

const visitorCounterID = "visitor_count"

// IncrementVisitorCount adds one to the visitor counter in a single
// statement and returns the new value, or 0 on failure.
func (s *Store) IncrementVisitorCount(ctx context.Context) int64 {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var n int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO website_visitors (id, count) VALUES ($1, 1)
		 ON CONFLICT (id) DO UPDATE
		    SET count = website_visitors.count + 1, updated_at = now()
		 RETURNING count`, visitorCounterID,
	).Scan(&n)
	if err != nil {
		s.log.Error("increment visitor count failed", zap.Error(classify("increment visitor count", err)))
		return 0
	}
	return n
}

// GetVisitorCount reads the visitor counter. It returns 0 when the counter
// has never been incremented or the read fails.
func (s *Store) GetVisitorCount(ctx context.Context) int64 {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT count FROM website_visitors WHERE id = $1`, visitorCounterID,
	).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0
	}
	if err != nil {
		s.log.Error("get visitor count failed", zap.Error(classify("get visitor count", err)))
		return 0
	}
	return n
}
