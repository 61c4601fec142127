package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// ActiveFilters returns every active word filter, oldest first so matching
// order is stable.
func (s *Store) ActiveFilters(ctx context.Context) ([]WordFilter, error) {
	var filters []WordFilter
	q := s.rebind(`SELECT * FROM word_filters WHERE active ORDER BY id ASC`)
	if err := sqlx.SelectContext(ctx, s.ext(ctx), &filters, q); err != nil {
		return nil, fmt.Errorf("list active filters: %w", err)
	}
	return filters, nil
}

func (s *Store) ListFilters(ctx context.Context) ([]WordFilter, error) {
	return s.ActiveFilters(ctx)
}

func (s *Store) CreateFilter(ctx context.Context, f WordFilter) (WordFilter, error) {
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	f.Active = true
	q := s.rebind(`
		INSERT INTO word_filters (phrase, effect, replacement, active, created_at)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id
	`)
	err := sqlx.GetContext(ctx, s.ext(ctx), &f.ID, q, f.Phrase, f.Effect, f.Replacement, f.Active, f.CreatedAt)
	if err != nil {
		return WordFilter{}, fmt.Errorf("insert filter: %w", err)
	}
	return f, nil
}

func (s *Store) DeleteFilter(ctx context.Context, id int64) error {
	q := s.rebind(`DELETE FROM word_filters WHERE id = ?`)
	res, err := s.ext(ctx).ExecContext(ctx, q, id)
	if err != nil {
		return fmt.Errorf("delete filter: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete filter rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
