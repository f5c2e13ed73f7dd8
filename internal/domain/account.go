package domain

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type AccountState string

const (
	AccountStateActive  AccountState = "ACTIVE"
	AccountStateBlocked AccountState = "BLOCKED"
	AccountStateClosed  AccountState = "CLOSED"
)

func (s AccountState) Valid() bool {
	switch s {
	case AccountStateActive, AccountStateBlocked, AccountStateClosed:
		return true
	}
	return false
}

const (
	DefaultAgency        = "0001"
	MaxCheckingAccountNo = 1000
)

var DefaultDailyLimit = decimal.NewFromInt(2000)

var cpfPattern = regexp.MustCompile(`^\d{11}$`)

type AccountOwner struct {
	ID        int64
	Name      string
	CPF       string
	CreatedAt time.Time
}

func ValidateCPF(cpf string) error {
	if !cpfPattern.MatchString(cpf) {
		return Validationf("cpf must contain only numbers and have 11 digits")
	}
	return nil
}

func NewAccountOwner(name, cpf string, now time.Time) (*AccountOwner, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, Validationf("name is required")
	}
	if err := ValidateCPF(cpf); err != nil {
		return nil, err
	}
	return &AccountOwner{
		Name:      name,
		CPF:       cpf,
		CreatedAt: now,
	}, nil
}

type Account struct {
	ID                    int64
	Agency                string
	CheckingAccountNumber int
	State                 AccountState
	Balance               decimal.Decimal
	DailyLimit            decimal.Decimal
	OwnerID               int64
	CreatedAt             time.Time
	UpdatedAt             *time.Time
	ClosedAt              *time.Time
}

func NewAccount(ownerID int64, checkingAccountNumber int, dailyLimit decimal.Decimal, now time.Time) *Account {
	return &Account{
		Agency:                DefaultAgency,
		CheckingAccountNumber: checkingAccountNumber,
		State:                 AccountStateActive,
		Balance:               decimal.Zero,
		DailyLimit:            dailyLimit,
		OwnerID:               ownerID,
		CreatedAt:             now,
	}
}

// Deposit credits amount to an ACTIVE account.
func (a *Account) Deposit(amount decimal.Decimal, now time.Time) error {
	if a.State != AccountStateActive {
		return ErrTransactionNotAllowed
	}
	a.Balance = a.Balance.Add(amount)
	a.touch(now)
	return nil
}

// Withdraw debits amount from an ACTIVE account. withdrawnToday is the sum of
// the withdrawals already posted during the current calendar day.
func (a *Account) Withdraw(amount, withdrawnToday decimal.Decimal, now time.Time) error {
	if a.State != AccountStateActive {
		return ErrTransactionNotAllowed
	}
	if a.Balance.LessThan(amount) {
		return ErrInsufficientBalance
	}
	if withdrawnToday.Add(amount).GreaterThan(a.DailyLimit) {
		return ErrDailyLimitReached
	}
	a.Balance = a.Balance.Sub(amount)
	a.touch(now)
	return nil
}

// Block, Unblock and Close report whether the state actually changed.
// CLOSED is terminal: nothing but a repeated Close is accepted.
func (a *Account) Block(now time.Time) (bool, error) {
	return a.transition(AccountStateBlocked, now)
}

func (a *Account) Unblock(now time.Time) (bool, error) {
	return a.transition(AccountStateActive, now)
}

func (a *Account) Close(now time.Time) (bool, error) {
	changed, err := a.transition(AccountStateClosed, now)
	if changed {
		a.ClosedAt = &now
	}
	return changed, err
}

func (a *Account) transition(to AccountState, now time.Time) (bool, error) {
	if a.State == to {
		return false, nil
	}
	if a.State == AccountStateClosed {
		return false, ErrInvalidStateTransition
	}
	a.State = to
	a.touch(now)
	return true, nil
}

func (a *Account) touch(now time.Time) {
	a.UpdatedAt = &now
}
