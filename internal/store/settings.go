package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// GetSettings returns every stored setting row. Interpretation and defaults
// live with the scheduler, not here.
func (s *Store) GetSettings(ctx context.Context) ([]Setting, error) {
	var settings []Setting
	q := s.rebind(`SELECT * FROM scheduler_settings ORDER BY key ASC`)
	if err := sqlx.SelectContext(ctx, s.ext(ctx), &settings, q); err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	return settings, nil
}

// SettingsMap returns the stored settings keyed by name.
func (s *Store) SettingsMap(ctx context.Context) (map[string]string, error) {
	rows, err := s.GetSettings(ctx)
	if err != nil {
		return nil, err
	}
	m := make(map[string]string, len(rows))
	for _, row := range rows {
		m[row.Key] = row.Value
	}
	return m, nil
}

func (s *Store) UpsertSetting(ctx context.Context, key, value string) error {
	q := s.rebind(`
		INSERT INTO scheduler_settings (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`)
	if _, err := s.ext(ctx).ExecContext(ctx, q, key, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("upsert setting: %w", err)
	}
	return nil
}
