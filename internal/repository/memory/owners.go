package memory

import (
	"context"
	"fmt"

	"ledger/internal/domain"
)

type OwnerRepository struct {
	store *Store
}

func NewOwnerRepository(store *Store) *OwnerRepository {
	return &OwnerRepository{store: store}
}

func (r *OwnerRepository) CreateOwnerTx(ctx context.Context, querier domain.Querier, owner *domain.AccountOwner) error {
	return r.store.update(ctx, querier, func(st *state) error {
		for _, o := range st.owners {
			if o.CPF == owner.CPF {
				return fmt.Errorf("account owner with cpf %s: %w", owner.CPF, domain.ErrDuplicateKey)
			}
		}
		st.nextOwnerID++
		owner.ID = st.nextOwnerID
		st.owners[owner.ID] = *owner
		return nil
	})
}

func (r *OwnerRepository) GetOwnerByIDTx(ctx context.Context, querier domain.Querier, id int64) (*domain.AccountOwner, error) {
	var owner domain.AccountOwner
	err := r.store.view(ctx, querier, func(st *state) error {
		o, ok := st.owners[id]
		if !ok {
			return domain.ErrOwnerNotFound
		}
		owner = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &owner, nil
}

func (r *OwnerRepository) DeleteOwnerByCPFTx(ctx context.Context, querier domain.Querier, cpf string) (*domain.AccountOwner, error) {
	var removed domain.AccountOwner
	err := r.store.update(ctx, querier, func(st *state) error {
		for id, o := range st.owners {
			if o.CPF != cpf {
				continue
			}
			for _, a := range st.accounts {
				if a.OwnerID == id {
					return domain.ErrOwnerHasAccounts
				}
			}
			delete(st.owners, id)
			removed = o
			return nil
		}
		return domain.ErrOwnerNotFound
	})
	if err != nil {
		return nil, err
	}
	return &removed, nil
}
