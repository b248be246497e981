package database

import (
	"context"
	"fmt"
	"log"
)

// schema is applied at startup. There is no migration framework; every
// statement is idempotent so repeated boots are safe.
//
// current_period_end and free_reset_at are TEXT on purpose: both arrive as
// provider-supplied strings and are parsed at evaluation time, where a
// malformed value must fail closed instead of being rejected at the insert.
const schema = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	email TEXT UNIQUE NOT NULL,
	password_hash TEXT NOT NULL,
	email_verified BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS subscriptions (
	id BIGSERIAL PRIMARY KEY,
	user_id TEXT NOT NULL REFERENCES users(id),
	plan TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT '',
	current_period_end TEXT NOT NULL DEFAULT '',
	auto_renew BOOLEAN NOT NULL DEFAULT TRUE,
	provider TEXT NOT NULL DEFAULT '',
	provider_subscription_id TEXT NOT NULL DEFAULT '',
	is_lifetime BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_subscriptions_user_latest
	ON subscriptions (user_id, id DESC);

CREATE TABLE IF NOT EXISTS usage_quota (
	user_id TEXT PRIMARY KEY REFERENCES users(id),
	free_generated INTEGER NOT NULL DEFAULT 0,
	free_reset_at TEXT NOT NULL DEFAULT '',
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// Migrate creates the schema if it does not exist yet
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.Pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}

	log.Println("[database] Schema ready")
	return nil
}
