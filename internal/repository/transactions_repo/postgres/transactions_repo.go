package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"ledger/internal/domain"
	"ledger/internal/repository"
)

type TransactionRepository struct{}

func NewTransactionRepository() *TransactionRepository {
	return &TransactionRepository{}
}

func (r *TransactionRepository) CreateTransactionTx(ctx context.Context, querier domain.Querier, t *domain.Transaction) error {
	query := `
		INSERT INTO transaction (account_id, amount, transaction_type, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	err := querier.QueryRowContext(ctx, query, t.AccountID, t.Amount, int(t.Type), t.CreatedAt).Scan(&t.ID)
	if err != nil {
		if repository.IsForeignKeyViolation(err) {
			return domain.ErrAccountNotFound
		}
		return fmt.Errorf("failed to create %s transaction for account %d: %w", t.Type, t.AccountID, err)
	}
	return nil
}

func (r *TransactionRepository) SumAmountTx(ctx context.Context, querier domain.Querier, accountID int64, tt domain.TransactionType, from, to time.Time) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM transaction
		WHERE account_id = $1 AND transaction_type = $2
		  AND created_at >= $3 AND created_at < $4
	`
	var total decimal.Decimal
	if err := querier.QueryRowContext(ctx, query, accountID, int(tt), from, to).Scan(&total); err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum %s amounts for account %d: %w", tt, accountID, err)
	}
	return total, nil
}

func (r *TransactionRepository) ListByPeriodTx(ctx context.Context, querier domain.Querier, accountID int64, from, to time.Time) ([]domain.Transaction, error) {
	query := `
		SELECT id, account_id, amount, transaction_type, created_at
		FROM transaction
		WHERE account_id = $1 AND created_at >= $2 AND created_at < $3
		ORDER BY created_at DESC, id DESC
	`
	rows, err := querier.QueryContext(ctx, query, accountID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions for account %d: %w", accountID, err)
	}
	defer rows.Close()

	transactions := []domain.Transaction{}
	for rows.Next() {
		var t domain.Transaction
		if err := rows.Scan(&t.ID, &t.AccountID, &t.Amount, &t.Type, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return transactions, nil
}
