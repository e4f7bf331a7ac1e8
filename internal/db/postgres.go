package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/atharvakonge/tradeshift/internal/config"
	"github.com/lib/pq"    // PostgreSQL driver
	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// ErrNotFound is returned by lookups that matched no row. Callers translate
// it into the matching domain error.
var ErrNotFound = errors.New("db: no rows")

// DB is a database handle bound to its SQL dialect.
type DB struct {
	sql     *sql.DB
	dialect dialect
}

// Connect opens the store selected by cfg.Driver ("postgres" or "sqlite").
func Connect(ctx context.Context, cfg config.Database) (*DB, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "postgres", "postgresql":
		return OpenPostgres(ctx, cfg)
	case "sqlite", "sqlite3":
		return OpenSQLite(ctx, cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

// OpenPostgres initializes a PostgreSQL connection pool
func OpenPostgres(ctx context.Context, cfg config.Database) (*DB, error) {
	conn, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	// Test connection
	if err = conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}

	conn.SetMaxOpenConns(cfg.MaxOpenConns)
	conn.SetMaxIdleConns(cfg.MaxIdleConns)
	conn.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return &DB{sql: conn, dialect: postgresDialect}, nil
}

// OpenSQLite opens (or creates) a SQLite database file. The pool is limited
// to one connection, so writers are serialized by the pool itself.
func OpenSQLite(ctx context.Context, path string) (*DB, error) {
	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if err = conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}
	return &DB{sql: conn, dialect: sqliteDialect}, nil
}

// Close closes database connection
func (d *DB) Close() error {
	if d == nil || d.sql == nil {
		return nil
	}
	return d.sql.Close()
}

// Driver returns the dialect name ("postgres" or "sqlite").
func (d *DB) Driver() string { return d.dialect.name }

// Ping checks the connection.
func (d *DB) Ping(ctx context.Context) error { return d.sql.PingContext(ctx) }

// uniqueViolation reports which column a unique-constraint error refers to.
func uniqueViolation(err error) (column string, ok bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if pqErr.Code != "23505" {
			return "", false
		}
		return constraintColumn(pqErr.Constraint + " " + pqErr.Detail), true
	}
	msg := err.Error()
	if strings.Contains(msg, "UNIQUE constraint failed") {
		return constraintColumn(msg), true
	}
	return "", false
}

func constraintColumn(s string) string {
	switch {
	case strings.Contains(s, "email"):
		return "email"
	case strings.Contains(s, "username"):
		return "username"
	case strings.Contains(s, "symbol"):
		return "symbol"
	}
	return ""
}
