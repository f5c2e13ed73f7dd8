package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType int

const (
	TransactionTypeDeposit  TransactionType = 1
	TransactionTypeWithdraw TransactionType = 2
)

func (t TransactionType) String() string {
	switch t {
	case TransactionTypeDeposit:
		return "DEPOSIT"
	case TransactionTypeWithdraw:
		return "WITHDRAW"
	}
	return fmt.Sprintf("TransactionType(%d)", int(t))
}

func ParseTransactionType(s string) (TransactionType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEPOSIT":
		return TransactionTypeDeposit, nil
	case "WITHDRAW":
		return TransactionTypeWithdraw, nil
	}
	return 0, Validationf("unknown transaction type %q", s)
}

// Transaction is an immutable ledger entry. Amount is always stored as the
// value that was requested, for withdrawals as well as deposits.
type Transaction struct {
	ID        int64
	AccountID int64
	Amount    decimal.Decimal
	Type      TransactionType
	CreatedAt time.Time
}

// DayBounds returns [start of t's day, start of the next day) in t's location.
func DayBounds(t time.Time) (time.Time, time.Time) {
	y, m, d := t.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 0, 1)
}

// StatementWindow turns an inclusive date range into the half-open instant
// range [start of startDate, start of the day after endDate).
func StatementWindow(startDate, endDate time.Time) (time.Time, time.Time, error) {
	from, _ := DayBounds(startDate)
	endDay, to := DayBounds(endDate)
	if endDay.Before(from) {
		return time.Time{}, time.Time{}, Validationf("start_date must not be after end_date")
	}
	return from, to, nil
}
