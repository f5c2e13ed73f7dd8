package memory

import (
	"context"

	"ledger/internal/domain"
)

type AccountRepository struct {
	store *Store
}

func NewAccountRepository(store *Store) *AccountRepository {
	return &AccountRepository{store: store}
}

func (r *AccountRepository) CreateAccountTx(ctx context.Context, querier domain.Querier, account *domain.Account) error {
	return r.store.update(ctx, querier, func(st *state) error {
		if _, ok := st.owners[account.OwnerID]; !ok {
			return domain.ErrOwnerNotFound
		}
		st.nextAccountID++
		account.ID = st.nextAccountID
		st.accounts[account.ID] = *account
		return nil
	})
}

func (r *AccountRepository) GetAccountTx(ctx context.Context, querier domain.Querier, id int64) (*domain.Account, error) {
	var account domain.Account
	err := r.store.view(ctx, querier, func(st *state) error {
		a, ok := st.accounts[id]
		if !ok {
			return domain.ErrAccountNotFound
		}
		account = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// GetAccountForUpdateTx is GetAccountTx: inside RunInTx the store-wide write
// lock already serialises every writer.
func (r *AccountRepository) GetAccountForUpdateTx(ctx context.Context, querier domain.Querier, id int64) (*domain.Account, error) {
	return r.GetAccountTx(ctx, querier, id)
}

func (r *AccountRepository) UpdateAccountTx(ctx context.Context, querier domain.Querier, account *domain.Account) error {
	return r.store.update(ctx, querier, func(st *state) error {
		current, ok := st.accounts[account.ID]
		if !ok {
			return domain.ErrAccountNotFound
		}
		current.State = account.State
		current.Balance = account.Balance
		current.DailyLimit = account.DailyLimit
		current.UpdatedAt = account.UpdatedAt
		current.ClosedAt = account.ClosedAt
		st.accounts[account.ID] = current
		return nil
	})
}
