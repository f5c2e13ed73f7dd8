package accounts_repo

import (
	"context"

	"ledger/internal/domain"
)

type AccountRepository interface {
	CreateAccountTx(ctx context.Context, querier domain.Querier, account *domain.Account) error
	GetAccountTx(ctx context.Context, querier domain.Querier, id int64) (*domain.Account, error)
	// GetAccountForUpdateTx locks the account row until the surrounding transaction ends.
	GetAccountForUpdateTx(ctx context.Context, querier domain.Querier, id int64) (*domain.Account, error)
	UpdateAccountTx(ctx context.Context, querier domain.Querier, account *domain.Account) error
}
