package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ledger/internal/domain"
	"ledger/internal/repository"
)

type OwnerRepository struct{}

func NewOwnerRepository() *OwnerRepository {
	return &OwnerRepository{}
}

func (r *OwnerRepository) CreateOwnerTx(ctx context.Context, querier domain.Querier, owner *domain.AccountOwner) error {
	query := `
		INSERT INTO account_owner (name, cpf, created_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`
	err := querier.QueryRowContext(ctx, query, owner.Name, owner.CPF, owner.CreatedAt).Scan(&owner.ID)
	if err != nil {
		if repository.IsUniqueViolation(err) {
			return fmt.Errorf("account owner with cpf %s: %w", owner.CPF, domain.ErrDuplicateKey)
		}
		return fmt.Errorf("failed to create account owner: %w", err)
	}
	return nil
}

func (r *OwnerRepository) GetOwnerByIDTx(ctx context.Context, querier domain.Querier, id int64) (*domain.AccountOwner, error) {
	query := `
		SELECT id, name, cpf, created_at
		FROM account_owner
		WHERE id = $1
	`
	owner := &domain.AccountOwner{}
	err := querier.QueryRowContext(ctx, query, id).Scan(&owner.ID, &owner.Name, &owner.CPF, &owner.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrOwnerNotFound
		}
		return nil, fmt.Errorf("failed to get account owner %d: %w", id, err)
	}
	return owner, nil
}

func (r *OwnerRepository) DeleteOwnerByCPFTx(ctx context.Context, querier domain.Querier, cpf string) (*domain.AccountOwner, error) {
	query := `
		DELETE FROM account_owner
		WHERE cpf = $1
		RETURNING id, name, cpf, created_at
	`
	owner := &domain.AccountOwner{}
	err := querier.QueryRowContext(ctx, query, cpf).Scan(&owner.ID, &owner.Name, &owner.CPF, &owner.CreatedAt)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, domain.ErrOwnerNotFound
		case repository.IsForeignKeyViolation(err):
			return nil, domain.ErrOwnerHasAccounts
		}
		return nil, fmt.Errorf("failed to delete account owner: %w", err)
	}
	return owner, nil
}
