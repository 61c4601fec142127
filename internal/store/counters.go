package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// Counter names used by the scheduler.
const (
	CounterViewsTotal         = "views_total"
	CounterViewsSinceActivity = "views_since_activity"
	CounterPostsSinceActivity = "posts_since_activity"
)

// IncrementCounter atomically adds delta to a named counter and returns the
// new value. The upsert is one statement, so concurrent increments on the
// same name cannot lose updates.
func (s *Store) IncrementCounter(ctx context.Context, name string, delta int64) (int64, error) {
	var value int64
	q := s.rebind(`
		INSERT INTO counters (name, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET value = counters.value + excluded.value, updated_at = excluded.updated_at
		RETURNING value
	`)
	if err := sqlx.GetContext(ctx, s.ext(ctx), &value, q, name, delta, time.Now().UTC()); err != nil {
		return 0, fmt.Errorf("increment counter %s: %w", name, err)
	}
	return value, nil
}

// GetCounter reads a counter; names never written read as zero.
func (s *Store) GetCounter(ctx context.Context, name string) (int64, error) {
	var value int64
	q := s.rebind(`SELECT value FROM counters WHERE name = ?`)
	err := sqlx.GetContext(ctx, s.ext(ctx), &value, q, name)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read counter %s: %w", name, err)
	}
	return value, nil
}

// ResetCounters zeroes the named counters.
func (s *Store) ResetCounters(ctx context.Context, names ...string) error {
	if len(names) == 0 {
		return nil
	}
	query, args, err := sqlx.In(`UPDATE counters SET value = 0, updated_at = ? WHERE name IN (?)`, time.Now().UTC(), names)
	if err != nil {
		return fmt.Errorf("expand reset counters query: %w", err)
	}
	if _, err := s.ext(ctx).ExecContext(ctx, s.rebind(query), args...); err != nil {
		return fmt.Errorf("reset counters: %w", err)
	}
	return nil
}
