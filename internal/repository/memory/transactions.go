package memory

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"ledger/internal/domain"
)

type TransactionRepository struct {
	store *Store
}

func NewTransactionRepository(store *Store) *TransactionRepository {
	return &TransactionRepository{store: store}
}

func (r *TransactionRepository) CreateTransactionTx(ctx context.Context, querier domain.Querier, t *domain.Transaction) error {
	return r.store.update(ctx, querier, func(st *state) error {
		if _, ok := st.accounts[t.AccountID]; !ok {
			return domain.ErrAccountNotFound
		}
		st.nextTransactionID++
		t.ID = st.nextTransactionID
		st.transactions = append(st.transactions, *t)
		return nil
	})
}

func (r *TransactionRepository) SumAmountTx(ctx context.Context, querier domain.Querier, accountID int64, tt domain.TransactionType, from, to time.Time) (decimal.Decimal, error) {
	total := decimal.Zero
	err := r.store.view(ctx, querier, func(st *state) error {
		for _, t := range st.transactions {
			if t.AccountID == accountID && t.Type == tt && inRange(t.CreatedAt, from, to) {
				total = total.Add(t.Amount)
			}
		}
		return nil
	})
	return total, err
}

func (r *TransactionRepository) ListByPeriodTx(ctx context.Context, querier domain.Querier, accountID int64, from, to time.Time) ([]domain.Transaction, error) {
	result := []domain.Transaction{}
	err := r.store.view(ctx, querier, func(st *state) error {
		for _, t := range st.transactions {
			if t.AccountID == accountID && inRange(t.CreatedAt, from, to) {
				result = append(result, t)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func inRange(t, from, to time.Time) bool {
	return !t.Before(from) && t.Before(to)
}
