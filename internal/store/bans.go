package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// ActorValueUser and ActorValueSynthetic format actor-scope ban values so
// user and synthetic identity ids cannot collide.
func ActorValueUser(id int64) string {
	return fmt.Sprintf("u:%d", id)
}

func ActorValueSynthetic(id int64) string {
	return fmt.Sprintf("s:%d", id)
}

// BanLookup carries the identifiers known for a submission attempt. Empty
// fields are skipped during matching.
type BanLookup struct {
	Actor   string
	Address string
	Session string
}

// ActiveBan returns the most recently created active, unexpired ban matching
// any supplied identifier, or nil when none governs.
func (s *Store) ActiveBan(ctx context.Context, l BanLookup) (*Ban, error) {
	var b Ban
	q := s.rebind(`
		SELECT * FROM bans
		WHERE active
		  AND (expires_at IS NULL OR expires_at > ?)
		  AND (
			(scope = 'actor' AND value <> '' AND value = ?)
			OR (scope = 'address' AND value <> '' AND value = ?)
			OR (scope = 'session' AND value <> '' AND value = ?)
		  )
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`)
	err := sqlx.GetContext(ctx, s.ext(ctx), &b, q, time.Now().UTC(), l.Actor, l.Address, l.Session)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup ban: %w", err)
	}
	return &b, nil
}

func (s *Store) CreateBan(ctx context.Context, b Ban) (Ban, error) {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	b.Active = true
	q := s.rebind(`
		INSERT INTO bans (scope, value, kind, reason, expires_at, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`)
	err := sqlx.GetContext(ctx, s.ext(ctx), &b.ID, q,
		b.Scope, b.Value, b.Kind, b.Reason, b.ExpiresAt, b.Active, b.CreatedAt)
	if err != nil {
		return Ban{}, fmt.Errorf("insert ban: %w", err)
	}
	return b, nil
}

func (s *Store) ListBans(ctx context.Context, limit int) ([]Ban, error) {
	var bans []Ban
	q := s.rebind(`SELECT * FROM bans WHERE active ORDER BY created_at DESC, id DESC LIMIT ?`)
	if err := sqlx.SelectContext(ctx, s.ext(ctx), &bans, q, limit); err != nil {
		return nil, fmt.Errorf("list bans: %w", err)
	}
	return bans, nil
}

// LiftBan deactivates a ban. The row stays for audit.
func (s *Store) LiftBan(ctx context.Context, id int64) error {
	q := s.rebind(`UPDATE bans SET active = ? WHERE id = ?`)
	res, err := s.ext(ctx).ExecContext(ctx, q, false, id)
	if err != nil {
		return fmt.Errorf("lift ban: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("lift ban rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
