package db

import (
	"context"
	"fmt"
	"strings"
)

// schema is written once for both dialects; {{num}} and {{ts}} are replaced
// with the dialect's decimal and timestamp column types.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            TEXT PRIMARY KEY,
		username      TEXT NOT NULL UNIQUE,
		email         TEXT NOT NULL UNIQUE,
		name          TEXT NOT NULL DEFAULT '',
		contact_no    TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		created_at    {{ts}} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS user_roles (
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		role    TEXT NOT NULL,
		PRIMARY KEY (user_id, role)
	)`,
	`CREATE TABLE IF NOT EXISTS portfolios (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		name       TEXT NOT NULL,
		created_at {{ts}} NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_portfolios_user ON portfolios (user_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS assets (
		id           TEXT PRIMARY KEY,
		portfolio_id TEXT NOT NULL REFERENCES portfolios(id) ON DELETE CASCADE,
		symbol       TEXT NOT NULL,
		asset_type   TEXT NOT NULL,
		quantity     {{num}} NOT NULL,
		avg_price    {{num}} NOT NULL,
		created_at   {{ts}} NOT NULL,
		updated_at   {{ts}} NOT NULL,
		UNIQUE (portfolio_id, symbol)
	)`,
	// portfolio_id is a plain reference: orders outlive the portfolio they
	// settled against.
	`CREATE TABLE IF NOT EXISTS trade_orders (
		id            TEXT PRIMARY KEY,
		user_id       TEXT NOT NULL REFERENCES users(id),
		portfolio_id  TEXT,
		symbol        TEXT NOT NULL,
		side          TEXT NOT NULL CHECK (side IN ('BUY', 'SELL')),
		quantity      {{num}} NOT NULL,
		price         {{num}} NOT NULL,
		status        TEXT NOT NULL CHECK (status IN ('PENDING', 'FILLED', 'REJECTED')),
		reject_reason TEXT NOT NULL DEFAULT '',
		created_at    {{ts}} NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_trade_orders_user ON trade_orders (user_id, created_at)`,
}

// Migrate creates the tables when they do not exist yet.
func (d *DB) Migrate(ctx context.Context) error {
	r := strings.NewReplacer("{{num}}", d.dialect.numeric, "{{ts}}", d.dialect.timestamp)
	for _, stmt := range schema {
		if _, err := d.sql.ExecContext(ctx, r.Replace(stmt)); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
