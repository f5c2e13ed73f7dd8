package domain

import (
	"context"
	"database/sql"
)

// Querier is satisfied by both *sql.DB and *sql.Tx so repositories can run
// inside or outside a store transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Transactor runs fn inside a single store transaction. fn's error rolls the
// transaction back; a nil error commits it.
type Transactor interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, q Querier) error) error
	Querier() Querier
}
