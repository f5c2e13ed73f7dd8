package transactions_repo

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"ledger/internal/domain"
)

type TransactionRepository interface {
	CreateTransactionTx(ctx context.Context, querier domain.Querier, t *domain.Transaction) error
	// SumAmountTx adds up the amounts of one transaction type posted in [from, to).
	SumAmountTx(ctx context.Context, querier domain.Querier, accountID int64, tt domain.TransactionType, from, to time.Time) (decimal.Decimal, error)
	// ListByPeriodTx returns the transactions created in [from, to), newest first.
	ListByPeriodTx(ctx context.Context, querier domain.Querier, accountID int64, from, to time.Time) ([]domain.Transaction, error)
}
