package store

// Schema statements are applied one by one: the pgx driver rejects
// multi-statement Exec in its default query mode.

var schemaPostgres = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'member',
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS users_name_lower_idx ON users (LOWER(name))`,
	`CREATE TABLE IF NOT EXISTS synthetic_identities (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		credential_hash TEXT NOT NULL UNIQUE,
		trusted BOOLEAN NOT NULL DEFAULT FALSE,
		post_count BIGINT NOT NULL DEFAULT 0,
		reply_count BIGINT NOT NULL DEFAULT 0,
		first_seen_at TIMESTAMPTZ NOT NULL,
		last_seen_at TIMESTAMPTZ NOT NULL,
		revoked_at TIMESTAMPTZ
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS synthetic_identities_name_lower_idx ON synthetic_identities (LOWER(name))`,
	`CREATE TABLE IF NOT EXISTS posts (
		id BIGSERIAL PRIMARY KEY,
		title TEXT,
		body TEXT NOT NULL,
		author_name TEXT NOT NULL,
		author_kind TEXT NOT NULL,
		user_id BIGINT REFERENCES users(id),
		synthetic_id BIGINT REFERENCES synthetic_identities(id),
		parent_id BIGINT REFERENCES posts(id),
		thread_id BIGINT,
		status TEXT NOT NULL DEFAULT 'pending',
		moderated_by BIGINT,
		moderated_at TIMESTAMPTZ,
		model_tag TEXT,
		session_tag TEXT,
		flagged BOOLEAN NOT NULL DEFAULT FALSE,
		flagged_terms TEXT,
		address TEXT,
		score BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS posts_thread_idx ON posts (thread_id)`,
	`CREATE INDEX IF NOT EXISTS posts_parent_idx ON posts (parent_id)`,
	`CREATE INDEX IF NOT EXISTS posts_status_created_idx ON posts (status, created_at)`,
	`CREATE TABLE IF NOT EXISTS votes (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES users(id),
		post_id BIGINT NOT NULL REFERENCES posts(id),
		sign INTEGER NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		UNIQUE (user_id, post_id)
	)`,
	`CREATE TABLE IF NOT EXISTS bans (
		id BIGSERIAL PRIMARY KEY,
		scope TEXT NOT NULL,
		value TEXT NOT NULL,
		kind TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		expires_at TIMESTAMPTZ,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS bans_active_created_idx ON bans (active, created_at)`,
	`CREATE TABLE IF NOT EXISTS word_filters (
		id BIGSERIAL PRIMARY KEY,
		phrase TEXT NOT NULL,
		effect TEXT NOT NULL,
		replacement TEXT,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS activity_ledger (
		id BIGSERIAL PRIMARY KEY,
		persona TEXT NOT NULL,
		kind TEXT NOT NULL,
		post_id BIGINT REFERENCES posts(id),
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS ledger_kind_created_idx ON activity_ledger (kind, created_at)`,
	`CREATE INDEX IF NOT EXISTS ledger_persona_created_idx ON activity_ledger (persona, created_at)`,
	`CREATE TABLE IF NOT EXISTS scheduler_settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS counters (
		name TEXT PRIMARY KEY,
		value BIGINT NOT NULL DEFAULT 0,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS scheduler_state (
		id INTEGER PRIMARY KEY,
		locked_at TIMESTAMPTZ,
		last_trigger_at TIMESTAMPTZ
	)`,
	`INSERT INTO scheduler_state (id) VALUES (1) ON CONFLICT (id) DO NOTHING`,
}

var schemaSQLite = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'member',
		created_at DATETIME NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS users_name_lower_idx ON users (LOWER(name))`,
	`CREATE TABLE IF NOT EXISTS synthetic_identities (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		credential_hash TEXT NOT NULL UNIQUE,
		trusted BOOLEAN NOT NULL DEFAULT 0,
		post_count INTEGER NOT NULL DEFAULT 0,
		reply_count INTEGER NOT NULL DEFAULT 0,
		first_seen_at DATETIME NOT NULL,
		last_seen_at DATETIME NOT NULL,
		revoked_at DATETIME
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS synthetic_identities_name_lower_idx ON synthetic_identities (LOWER(name))`,
	`CREATE TABLE IF NOT EXISTS posts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT,
		body TEXT NOT NULL,
		author_name TEXT NOT NULL,
		author_kind TEXT NOT NULL,
		user_id INTEGER REFERENCES users(id),
		synthetic_id INTEGER REFERENCES synthetic_identities(id),
		parent_id INTEGER REFERENCES posts(id),
		thread_id INTEGER,
		status TEXT NOT NULL DEFAULT 'pending',
		moderated_by INTEGER,
		moderated_at DATETIME,
		model_tag TEXT,
		session_tag TEXT,
		flagged BOOLEAN NOT NULL DEFAULT 0,
		flagged_terms TEXT,
		address TEXT,
		score INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS posts_thread_idx ON posts (thread_id)`,
	`CREATE INDEX IF NOT EXISTS posts_parent_idx ON posts (parent_id)`,
	`CREATE INDEX IF NOT EXISTS posts_status_created_idx ON posts (status, created_at)`,
	`CREATE TABLE IF NOT EXISTS votes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL REFERENCES users(id),
		post_id INTEGER NOT NULL REFERENCES posts(id),
		sign INTEGER NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		UNIQUE (user_id, post_id)
	)`,
	`CREATE TABLE IF NOT EXISTS bans (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		scope TEXT NOT NULL,
		value TEXT NOT NULL,
		kind TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		expires_at DATETIME,
		active BOOLEAN NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS bans_active_created_idx ON bans (active, created_at)`,
	`CREATE TABLE IF NOT EXISTS word_filters (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		phrase TEXT NOT NULL,
		effect TEXT NOT NULL,
		replacement TEXT,
		active BOOLEAN NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS activity_ledger (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		persona TEXT NOT NULL,
		kind TEXT NOT NULL,
		post_id INTEGER REFERENCES posts(id),
		created_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS ledger_kind_created_idx ON activity_ledger (kind, created_at)`,
	`CREATE INDEX IF NOT EXISTS ledger_persona_created_idx ON activity_ledger (persona, created_at)`,
	`CREATE TABLE IF NOT EXISTS scheduler_settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS counters (
		name TEXT PRIMARY KEY,
		value INTEGER NOT NULL DEFAULT 0,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS scheduler_state (
		id INTEGER PRIMARY KEY,
		locked_at DATETIME,
		last_trigger_at DATETIME
	)`,
	`INSERT OR IGNORE INTO scheduler_state (id) VALUES (1)`,
}
