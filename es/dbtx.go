package es

import (
	"context"
	"database/sql"
)

// DBTX is the minimal database surface the SQL recorders need.
// It is implemented by both *sql.DB and *sql.Tx, so recorder internals
// can run the same statements inside or outside a transaction.
//
// Recorders own their transaction boundaries: every append runs as one
// transaction that is rolled back on any exit path that does not
// commit, so no partial batch is ever visible.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Ensure standard library types implement DBTX
var (
	_ DBTX = (*sql.DB)(nil)
	_ DBTX = (*sql.Tx)(nil)
)
