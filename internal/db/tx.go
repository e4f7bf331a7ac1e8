package db

import (
	"context"
	"database/sql"
	"fmt"
)

// Tx is a transaction bound to the dialect of the DB that started it.
type Tx struct {
	tx      *sql.Tx
	dialect dialect
}

// InTx runs fn inside a transaction. The transaction commits only when fn
// returns nil; any error (or panic) rolls everything back.
func (d *DB) InTx(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer sqlTx.Rollback() // Rollback if we don't commit

	if err := fn(&Tx{tx: sqlTx, dialect: d.dialect}); err != nil {
		return err
	}

	// Commit transaction (all or nothing!)
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (t *Tx) exec(ctx context.Context, q string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(ctx, t.dialect.rebind(q), args...)
}

func (t *Tx) query(ctx context.Context, q string, args ...any) (*sql.Rows, error) {
	return t.tx.QueryContext(ctx, t.dialect.rebind(q), args...)
}

func (t *Tx) queryRow(ctx context.Context, q string, args ...any) *sql.Row {
	return t.tx.QueryRowContext(ctx, t.dialect.rebind(q), args...)
}

func (t *Tx) forUpdate() string { return t.dialect.lockRows }
