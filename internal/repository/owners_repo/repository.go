package owners_repo

import (
	"context"

	"ledger/internal/domain"
)

type OwnerRepository interface {
	// CreateOwnerTx inserts owner and sets its ID. A taken cpf yields domain.ErrDuplicateKey.
	CreateOwnerTx(ctx context.Context, querier domain.Querier, owner *domain.AccountOwner) error
	GetOwnerByIDTx(ctx context.Context, querier domain.Querier, id int64) (*domain.AccountOwner, error)
	// DeleteOwnerByCPFTx returns the removed owner, domain.ErrOwnerNotFound when
	// nothing matched or domain.ErrOwnerHasAccounts when accounts still reference it.
	DeleteOwnerByCPFTx(ctx context.Context, querier domain.Querier, cpf string) (*domain.AccountOwner, error)
}
