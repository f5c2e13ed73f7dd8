package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ledger/internal/domain"
	"ledger/internal/repository"
)

const selectAccount = `
	SELECT id, agency, checking_account_number, state, balance, daily_limit,
	       account_owner_id, created_at, updated_at, closed_at
	FROM account
	WHERE id = $1
`

type AccountRepository struct{}

func NewAccountRepository() *AccountRepository {
	return &AccountRepository{}
}

func (r *AccountRepository) CreateAccountTx(ctx context.Context, querier domain.Querier, account *domain.Account) error {
	query := `
		INSERT INTO account (agency, checking_account_number, state, balance, daily_limit, account_owner_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	err := querier.QueryRowContext(ctx, query,
		account.Agency,
		account.CheckingAccountNumber,
		account.State,
		account.Balance,
		account.DailyLimit,
		account.OwnerID,
		account.CreatedAt,
	).Scan(&account.ID)
	if err != nil {
		switch {
		case repository.IsForeignKeyViolation(err):
			return domain.ErrOwnerNotFound
		case repository.IsUniqueViolation(err):
			return fmt.Errorf("account: %w", domain.ErrDuplicateKey)
		}
		return fmt.Errorf("failed to create account for owner %d: %w", account.OwnerID, err)
	}
	return nil
}

func (r *AccountRepository) GetAccountTx(ctx context.Context, querier domain.Querier, id int64) (*domain.Account, error) {
	return r.getAccount(ctx, querier, selectAccount, id)
}

func (r *AccountRepository) GetAccountForUpdateTx(ctx context.Context, querier domain.Querier, id int64) (*domain.Account, error) {
	return r.getAccount(ctx, querier, selectAccount+"\tFOR UPDATE\n", id)
}

func (r *AccountRepository) getAccount(ctx context.Context, querier domain.Querier, query string, id int64) (*domain.Account, error) {
	account := &domain.Account{}
	var updatedAt, closedAt sql.NullTime
	err := querier.QueryRowContext(ctx, query, id).Scan(
		&account.ID,
		&account.Agency,
		&account.CheckingAccountNumber,
		&account.State,
		&account.Balance,
		&account.DailyLimit,
		&account.OwnerID,
		&account.CreatedAt,
		&updatedAt,
		&closedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account %d: %w", id, err)
	}
	if updatedAt.Valid {
		account.UpdatedAt = &updatedAt.Time
	}
	if closedAt.Valid {
		account.ClosedAt = &closedAt.Time
	}
	return account, nil
}

func (r *AccountRepository) UpdateAccountTx(ctx context.Context, querier domain.Querier, account *domain.Account) error {
	query := `
		UPDATE account
		SET state = $1, balance = $2, daily_limit = $3, updated_at = $4, closed_at = $5
		WHERE id = $6
	`
	res, err := querier.ExecContext(ctx, query,
		account.State,
		account.Balance,
		account.DailyLimit,
		nullTime(account.UpdatedAt),
		nullTime(account.ClosedAt),
		account.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update account %d: %w", account.ID, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
