package repository

import (
	"context"
	"database/sql"
)

// DBExecutor is the slice of sqlx behavior the repositories need. Both
// *sqlx.DB and *sqlx.Tx satisfy it, so the same repository method runs
// inside or outside a transaction depending on what the caller passes.
type DBExecutor interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}
