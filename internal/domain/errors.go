package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("object not found")
	ErrOwnerNotFound    = fmt.Errorf("account owner: %w", ErrNotFound)
	ErrAccountNotFound  = fmt.Errorf("account: %w", ErrNotFound)
	ErrValidation       = errors.New("validation error")
	ErrDuplicateKey     = errors.New("duplicate key")
	ErrOwnerHasAccounts = errors.New("account owner still has accounts")

	ErrTransactionNotAllowed  = errors.New("transaction allowed for active accounts only")
	ErrInsufficientBalance    = errors.New("insufficient balance for this transaction")
	ErrDailyLimitReached      = errors.New("daily limit reached for this account")
	ErrInvalidStateTransition = errors.New("invalid account state transition")
)

// Validationf builds an ErrValidation carrying a field-specific reason.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// IsBusinessRule reports whether err is a rejection produced by the ledger
// rules rather than by the store or the transport.
func IsBusinessRule(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrValidation),
		errors.Is(err, ErrTransactionNotAllowed),
		errors.Is(err, ErrInsufficientBalance),
		errors.Is(err, ErrDailyLimitReached),
		errors.Is(err, ErrInvalidStateTransition),
		errors.Is(err, ErrOwnerHasAccounts),
		errors.Is(err, ErrDuplicateKey):
		return true
	}
	return false
}
