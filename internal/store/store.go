// Package store persists the forum engine's state in a relational database.
// Postgres backs production deployments; SQLite backs development and tests.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	sqlite "modernc.org/sqlite"
)

type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

var (
	ErrBodyTooShort      = errors.New("body too short")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNameTaken         = errors.New("name already taken")
	ErrParentUnavailable = errors.New("parent post unavailable")
)

type Store struct {
	db      *sqlx.DB
	dialect Dialect
}

// Open connects to the database named by databaseURL. URLs with a
// postgres:// or postgresql:// scheme use the pgx driver; anything else is
// treated as a SQLite path.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	var (
		db      *sqlx.DB
		dialect Dialect
		err     error
	)
	if strings.HasPrefix(databaseURL, "postgres://") || strings.HasPrefix(databaseURL, "postgresql://") {
		dialect = DialectPostgres
		db, err = sqlx.Open("pgx", databaseURL)
		if err != nil {
			return nil, fmt.Errorf("open db: %w", err)
		}
		db.SetConnMaxIdleTime(5 * time.Minute)
		db.SetConnMaxLifetime(30 * time.Minute)
		db.SetMaxIdleConns(10)
		db.SetMaxOpenConns(20)
	} else {
		dialect = DialectSQLite
		dsn := databaseURL
		if !strings.Contains(dsn, "?") {
			dsn += "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
		}
		db, err = sqlx.Open("sqlite", dsn)
		if err != nil {
			return nil, fmt.Errorf("open db: %w", err)
		}
		// SQLite allows one writer; a single connection avoids
		// SQLITE_BUSY churn under concurrent requests.
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return &Store{db: db, dialect: dialect}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) DB() *sqlx.DB {
	return s.db
}

func (s *Store) Dialect() Dialect {
	return s.dialect
}

// rebind converts ?-style placeholders to the driver's form.
func (s *Store) rebind(query string) string {
	return s.db.Rebind(query)
}

type txKey struct{}

// ext returns the transaction bound to ctx, or the root handle.
func (s *Store) ext(ctx context.Context) sqlx.ExtContext {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return s.db
}

// withTx runs fn inside a transaction carried on the context. A nested call
// joins the caller's transaction instead of opening a second one.
func (s *Store) withTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return fn(ctx)
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	txCtx := context.WithValue(ctx, txKey{}, tx)
	if err := fn(txCtx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// WithSchedulerLock serializes fn against every other scheduler evaluation.
// The row update takes a write lock on the singleton scheduler_state row,
// held until the surrounding transaction commits.
func (s *Store) WithSchedulerLock(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.withTx(ctx, func(ctx context.Context) error {
		q := s.rebind(`UPDATE scheduler_state SET locked_at = ? WHERE id = 1`)
		if _, err := s.ext(ctx).ExecContext(ctx, q, time.Now().UTC()); err != nil {
			return fmt.Errorf("lock scheduler state: %w", err)
		}
		return fn(ctx)
	})
}

// MarkTriggered records the wall-clock time of the latest fired trigger.
func (s *Store) MarkTriggered(ctx context.Context, at time.Time) error {
	q := s.rebind(`UPDATE scheduler_state SET last_trigger_at = ? WHERE id = 1`)
	if _, err := s.ext(ctx).ExecContext(ctx, q, at.UTC()); err != nil {
		return fmt.Errorf("mark triggered: %w", err)
	}
	return nil
}

// LastTriggeredAt reports the latest fired trigger, or nil on a cold system.
func (s *Store) LastTriggeredAt(ctx context.Context) (*time.Time, error) {
	var at sql.NullTime
	q := s.rebind(`SELECT last_trigger_at FROM scheduler_state WHERE id = 1`)
	if err := sqlx.GetContext(ctx, s.ext(ctx), &at, q); err != nil {
		return nil, fmt.Errorf("read scheduler state: %w", err)
	}
	if !at.Valid {
		return nil, nil
	}
	t := at.Time.UTC()
	return &t, nil
}

// Migrate applies the schema for the active dialect. Statements are
// idempotent, so re-running on startup is safe.
func (s *Store) Migrate(ctx context.Context) error {
	stmts := schemaSQLite
	if s.dialect == DialectPostgres {
		stmts = schemaPostgres
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var sqErr *sqlite.Error
	if errors.As(err, &sqErr) {
		code := sqErr.Code()
		return code == 19 || code == 1555 || code == 2067
	}
	return false
}

// forUpdate appends a row-locking clause on Postgres. SQLite serializes
// writers at the connection level, so the clause is unnecessary there.
func (s *Store) forUpdate(query string) string {
	if s.dialect == DialectPostgres {
		return query + " FOR UPDATE"
	}
	return query
}
