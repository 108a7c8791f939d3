package pg

import (
	"context"

	"github.com/pkg/errors"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS admin_accounts (
		id            TEXT PRIMARY KEY,
		restaurant_id INTEGER NOT NULL,
		email         TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		role          TEXT NOT NULL,
		active        BOOLEAN NOT NULL DEFAULT TRUE,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS admin_accounts_restaurant_email
		ON admin_accounts (restaurant_id, LOWER(email))`,

	`CREATE TABLE IF NOT EXISTS admin_sessions (
		id            TEXT PRIMARY KEY,
		restaurant_id INTEGER NOT NULL,
		admin_id      TEXT NOT NULL,
		admin_email   TEXT NOT NULL,
		secret_hash   TEXT NOT NULL UNIQUE,
		issued_at     TIMESTAMPTZ NOT NULL,
		expires_at    TIMESTAMPTZ NOT NULL,
		ip            TEXT NOT NULL DEFAULT '',
		user_agent    TEXT NOT NULL DEFAULT '',
		revoked       BOOLEAN NOT NULL DEFAULT FALSE,
		revoked_at    TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS admin_sessions_restaurant
		ON admin_sessions (restaurant_id, issued_at DESC)`,
	`CREATE INDEX IF NOT EXISTS admin_sessions_admin
		ON admin_sessions (restaurant_id, admin_id, issued_at DESC)`,

	`CREATE TABLE IF NOT EXISTS admin_invites (
		token_id      TEXT PRIMARY KEY,
		restaurant_id INTEGER NOT NULL,
		email         TEXT NOT NULL,
		role          TEXT NOT NULL,
		invited_by    TEXT NOT NULL,
		issued_at     TIMESTAMPTZ NOT NULL,
		expires_at    TIMESTAMPTZ NOT NULL,
		consumed      BOOLEAN NOT NULL DEFAULT FALSE,
		consumed_at   TIMESTAMPTZ
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS admin_invites_restaurant_email
		ON admin_invites (restaurant_id, LOWER(email))`,

	`CREATE TABLE IF NOT EXISTS password_resets (
		token_id      TEXT PRIMARY KEY,
		restaurant_id INTEGER NOT NULL,
		admin_id      TEXT NOT NULL,
		issued_at     TIMESTAMPTZ NOT NULL,
		expires_at    TIMESTAMPTZ NOT NULL,
		consumed      BOOLEAN NOT NULL DEFAULT FALSE,
		consumed_at   TIMESTAMPTZ
	)`,

	`CREATE TABLE IF NOT EXISTS audit_log (
		id            BIGSERIAL PRIMARY KEY,
		restaurant_id INTEGER NOT NULL,
		actor_email   TEXT NOT NULL DEFAULT '',
		action        TEXT NOT NULL,
		payload       JSONB,
		ip            TEXT NOT NULL DEFAULT '',
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS audit_log_restaurant
		ON audit_log (restaurant_id, created_at DESC)`,
}

// EnsureSchema creates the tables and indexes if they do not exist.
func EnsureSchema(ctx context.Context, db *DB) error {
	for _, stmt := range schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return errors.Wrap(err, "[EnsureSchema] Exec")
		}
	}
	return nil
}
