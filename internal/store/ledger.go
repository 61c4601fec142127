package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// AppendLedger records one scheduling event. Entries are append-only: no
// update or delete path exists anywhere in this package.
func (s *Store) AppendLedger(ctx context.Context, e LedgerEntry) (LedgerEntry, error) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	q := s.rebind(`
		INSERT INTO activity_ledger (persona, kind, post_id, created_at)
		VALUES (?, ?, ?, ?)
		RETURNING id
	`)
	err := sqlx.GetContext(ctx, s.ext(ctx), &e.ID, q, e.Persona, e.Kind, e.PostID, e.CreatedAt)
	if err != nil {
		return LedgerEntry{}, fmt.Errorf("append ledger: %w", err)
	}
	return e, nil
}

// LastActivityAt returns the time of the most recent post or reply entry, or
// nil on a cold ledger. trigger-check entries do not count as activity.
func (s *Store) LastActivityAt(ctx context.Context) (*time.Time, error) {
	var at time.Time
	q := s.rebind(`
		SELECT created_at FROM activity_ledger
		WHERE kind IN ('post', 'reply')
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`)
	err := sqlx.GetContext(ctx, s.ext(ctx), &at, q)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read last activity: %w", err)
	}
	at = at.UTC()
	return &at, nil
}

// CountActivitySince counts post and reply entries created at or after the
// given time. Used for the global daily cap.
func (s *Store) CountActivitySince(ctx context.Context, since time.Time) (int, error) {
	var n int
	q := s.rebind(`
		SELECT COUNT(*) FROM activity_ledger
		WHERE kind IN ('post', 'reply') AND created_at >= ?
	`)
	if err := sqlx.GetContext(ctx, s.ext(ctx), &n, q, since.UTC()); err != nil {
		return 0, fmt.Errorf("count ledger activity: %w", err)
	}
	return n, nil
}

// PersonaActivity reports one persona's cooldown inputs: the time of its
// latest post/reply entry (nil when it has none) and how many post/reply
// entries it has since the window start.
func (s *Store) PersonaActivity(ctx context.Context, persona string, windowStart time.Time) (lastActive *time.Time, countInWindow int, err error) {
	var at time.Time
	last := s.rebind(`
		SELECT created_at FROM activity_ledger
		WHERE persona = ? AND kind IN ('post', 'reply')
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`)
	getErr := sqlx.GetContext(ctx, s.ext(ctx), &at, last, persona)
	if getErr != nil && !errors.Is(getErr, sql.ErrNoRows) {
		return nil, 0, fmt.Errorf("read persona activity: %w", getErr)
	}
	if getErr == nil {
		at = at.UTC()
		lastActive = &at
	}

	count := s.rebind(`
		SELECT COUNT(*) FROM activity_ledger
		WHERE persona = ? AND kind IN ('post', 'reply') AND created_at >= ?
	`)
	if err := sqlx.GetContext(ctx, s.ext(ctx), &countInWindow, count, persona, windowStart.UTC()); err != nil {
		return nil, 0, fmt.Errorf("count persona activity: %w", err)
	}
	return lastActive, countInWindow, nil
}

// RecentLedger lists the newest entries, for the scheduler status view.
func (s *Store) RecentLedger(ctx context.Context, limit int) ([]LedgerEntry, error) {
	var entries []LedgerEntry
	q := s.rebind(`SELECT * FROM activity_ledger ORDER BY created_at DESC, id DESC LIMIT ?`)
	if err := sqlx.SelectContext(ctx, s.ext(ctx), &entries, q, limit); err != nil {
		return nil, fmt.Errorf("list recent ledger: %w", err)
	}
	return entries, nil
}
