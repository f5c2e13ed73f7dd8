package database

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"ledger/internal/domain"
)

// SQLTransactor runs units of work inside a database/sql transaction.
type SQLTransactor struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewSQLTransactor(db *sql.DB, logger *zap.Logger) *SQLTransactor {
	return &SQLTransactor{db: db, logger: logger}
}

func (t *SQLTransactor) Querier() domain.Querier {
	return t.db
}

// RunInTx commits when fn returns nil and rolls back otherwise. The error
// returned by fn is passed through unchanged.
func (t *SQLTransactor) RunInTx(ctx context.Context, fn func(ctx context.Context, q domain.Querier) error) (err error) {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		t.logger.Error("Failed to begin transaction", zap.Error(err))
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("Recovered panic inside transaction, rolling back", zap.Any("panic", r))
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			t.logger.Error("Failed to roll back transaction", zap.Error(rbErr), zap.NamedError("cause", err))
			return fmt.Errorf("rollback failed after error %v: %w", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		t.logger.Error("Failed to commit transaction", zap.Error(err))
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
