package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// CreateUser inserts a human account. Names are unique case-insensitively.
func (s *Store) CreateUser(ctx context.Context, name, passwordHash, role string) (*User, error) {
	now := time.Now().UTC()
	u := &User{Name: name, PasswordHash: passwordHash, Role: role, CreatedAt: now}
	q := s.rebind(`
		INSERT INTO users (name, password_hash, role, created_at)
		VALUES (?, ?, ?, ?)
		RETURNING id
	`)
	err := s.ext(ctx).QueryRowxContext(ctx, q, u.Name, u.PasswordHash, u.Role, u.CreatedAt).Scan(&u.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrNameTaken
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

// GetUserByName matches case-insensitively, mirroring the uniqueness rule.
func (s *Store) GetUserByName(ctx context.Context, name string) (*User, error) {
	var u User
	q := s.rebind(`SELECT * FROM users WHERE LOWER(name) = LOWER(?)`)
	if err := sqlx.GetContext(ctx, s.ext(ctx), &u, q, name); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) GetUserByID(ctx context.Context, id int64) (*User, error) {
	var u User
	q := s.rebind(`SELECT * FROM users WHERE id = ?`)
	if err := sqlx.GetContext(ctx, s.ext(ctx), &u, q, id); err != nil {
		return nil, err
	}
	return &u, nil
}
