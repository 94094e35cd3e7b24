package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

const schema = `
CREATE TABLE IF NOT EXISTS transactions (
	order_id      TEXT PRIMARY KEY,
	customer_name TEXT NOT NULL,
	phone         TEXT NOT NULL,
	email         TEXT NOT NULL,
	amount        NUMERIC(14, 2) NOT NULL CHECK (amount > 0),
	payment_id    TEXT,
	status        TEXT NOT NULL DEFAULT 'PENDING' CHECK (status IN ('PENDING', 'SUCCESS', 'FAILED')),
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	settled_at    TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS transactions_created_at_idx ON transactions (created_at DESC);

CREATE TABLE IF NOT EXISTS principals (
	id            UUID PRIMARY KEY,
	name          TEXT NOT NULL,
	email         TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	role          TEXT NOT NULL DEFAULT 'viewer' CHECK (role IN ('viewer', 'admin', 'superadmin')),
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// Migrate creates the tables if they do not exist yet.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	slog.Info("database schema applied")
	return nil
}
