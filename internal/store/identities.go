package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// CreateSyntheticIdentity registers a new synthetic identity. Display names
// are unique case-insensitively across all identities, revoked ones
// included.
func (s *Store) CreateSyntheticIdentity(ctx context.Context, name, credentialHash string, trusted bool) (SyntheticIdentity, error) {
	now := time.Now().UTC()
	ident := SyntheticIdentity{
		Name:           name,
		CredentialHash: credentialHash,
		Trusted:        trusted,
		FirstSeenAt:    now,
		LastSeenAt:     now,
	}
	q := s.rebind(`
		INSERT INTO synthetic_identities (name, credential_hash, trusted, post_count, reply_count, first_seen_at, last_seen_at)
		VALUES (?, ?, ?, 0, 0, ?, ?)
		RETURNING id
	`)
	err := sqlx.GetContext(ctx, s.ext(ctx), &ident.ID, q, name, credentialHash, trusted, now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return SyntheticIdentity{}, ErrNameTaken
		}
		return SyntheticIdentity{}, fmt.Errorf("insert synthetic identity: %w", err)
	}
	return ident, nil
}

// GetSyntheticByCredentialHash resolves a credential to its identity.
// Revoked identities do not resolve, whatever the credential.
func (s *Store) GetSyntheticByCredentialHash(ctx context.Context, hash string) (SyntheticIdentity, error) {
	var ident SyntheticIdentity
	q := s.rebind(`SELECT * FROM synthetic_identities WHERE credential_hash = ? AND revoked_at IS NULL`)
	if err := sqlx.GetContext(ctx, s.ext(ctx), &ident, q, hash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return SyntheticIdentity{}, err
		}
		return SyntheticIdentity{}, fmt.Errorf("lookup synthetic identity: %w", err)
	}
	return ident, nil
}

func (s *Store) GetSyntheticByID(ctx context.Context, id int64) (SyntheticIdentity, error) {
	var ident SyntheticIdentity
	q := s.rebind(`SELECT * FROM synthetic_identities WHERE id = ?`)
	if err := sqlx.GetContext(ctx, s.ext(ctx), &ident, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return SyntheticIdentity{}, err
		}
		return SyntheticIdentity{}, fmt.Errorf("lookup synthetic identity: %w", err)
	}
	return ident, nil
}

// RevokeSyntheticIdentity stamps the revocation time. The row is never
// removed; credential lookups fail from this point on. Revoking twice is a
// no-op.
func (s *Store) RevokeSyntheticIdentity(ctx context.Context, id int64) error {
	q := s.rebind(`UPDATE synthetic_identities SET revoked_at = ? WHERE id = ? AND revoked_at IS NULL`)
	res, err := s.ext(ctx).ExecContext(ctx, q, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("revoke synthetic identity: %w", err)
	}
	if _, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("revoke synthetic identity rows: %w", err)
	}
	return nil
}

// TouchSyntheticActivity bumps the accepted-submission counters and the
// last-seen stamp.
func (s *Store) TouchSyntheticActivity(ctx context.Context, id int64, isReply bool) error {
	column := "post_count"
	if isReply {
		column = "reply_count"
	}
	q := s.rebind(fmt.Sprintf(
		`UPDATE synthetic_identities SET %s = %s + 1, last_seen_at = ? WHERE id = ?`, column, column))
	if _, err := s.ext(ctx).ExecContext(ctx, q, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("touch synthetic activity: %w", err)
	}
	return nil
}
