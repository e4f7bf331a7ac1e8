package db

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
)

// dialect captures the few places where PostgreSQL and SQLite differ.
type dialect struct {
	name      string
	numbered  bool   // $1, $2 placeholders instead of ?
	lockRows  string // suffix for locking reads
	numeric   string // column type for exact decimals
	timestamp string
}

var (
	postgresDialect = dialect{
		name:      "postgres",
		numbered:  true,
		lockRows:  " FOR UPDATE",
		numeric:   "NUMERIC",
		timestamp: "TIMESTAMPTZ",
	}
	// SQLite has no row locks; its single connection serializes writers.
	// Decimals are kept as TEXT so NUMERIC affinity never turns them into
	// floats.
	sqliteDialect = dialect{
		name:      "sqlite",
		lockRows:  "",
		numeric:   "TEXT",
		timestamp: "TIMESTAMP",
	}
)

// rebind rewrites ? placeholders into the dialect's form.
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Runner is satisfied by *DB and *Tx; every query helper in this package
// accepts one so it can run inside or outside a transaction.
type Runner interface {
	exec(ctx context.Context, query string, args ...any) (sql.Result, error)
	query(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	queryRow(ctx context.Context, query string, args ...any) *sql.Row
	forUpdate() string
}

func (d *DB) exec(ctx context.Context, q string, args ...any) (sql.Result, error) {
	return d.sql.ExecContext(ctx, d.dialect.rebind(q), args...)
}

func (d *DB) query(ctx context.Context, q string, args ...any) (*sql.Rows, error) {
	return d.sql.QueryContext(ctx, d.dialect.rebind(q), args...)
}

func (d *DB) queryRow(ctx context.Context, q string, args ...any) *sql.Row {
	return d.sql.QueryRowContext(ctx, d.dialect.rebind(q), args...)
}

func (d *DB) forUpdate() string { return d.dialect.lockRows }
