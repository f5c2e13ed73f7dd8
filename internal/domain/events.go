package domain

import "time"

type LedgerEventType string

const (
	EventOwnerCreated      LedgerEventType = "OWNER_CREATED"
	EventOwnerRemoved      LedgerEventType = "OWNER_REMOVED"
	EventAccountCreated    LedgerEventType = "ACCOUNT_CREATED"
	EventAccountBlocked    LedgerEventType = "ACCOUNT_BLOCKED"
	EventAccountUnblocked  LedgerEventType = "ACCOUNT_UNBLOCKED"
	EventAccountClosed     LedgerEventType = "ACCOUNT_CLOSED"
	EventTransactionPosted LedgerEventType = "TRANSACTION_POSTED"
)

const (
	AggregateAccount = "account"
	AggregateOwner   = "account_owner"
)

// LedgerEvent is published to the ledger events topic after a state change
// commits. Money values are carried as decimal strings.
type LedgerEvent struct {
	EventID         string          `json:"event_id"`
	EventType       LedgerEventType `json:"event_type"`
	OwnerID         int64           `json:"owner_id,omitempty"`
	AccountID       int64           `json:"account_id,omitempty"`
	State           AccountState    `json:"state,omitempty"`
	Balance         string          `json:"balance,omitempty"`
	TransactionID   int64           `json:"transaction_id,omitempty"`
	TransactionType string          `json:"transaction_type,omitempty"`
	Amount          string          `json:"amount,omitempty"`
	OccurredAt      time.Time       `json:"occurred_at"`
}

func AccountEvent(eventType LedgerEventType, a *Account, at time.Time) LedgerEvent {
	return LedgerEvent{
		EventType:  eventType,
		OwnerID:    a.OwnerID,
		AccountID:  a.ID,
		State:      a.State,
		Balance:    a.Balance.String(),
		OccurredAt: at,
	}
}

func TransactionEvent(a *Account, t *Transaction) LedgerEvent {
	return LedgerEvent{
		EventType:       EventTransactionPosted,
		OwnerID:         a.OwnerID,
		AccountID:       a.ID,
		State:           a.State,
		Balance:         a.Balance.String(),
		TransactionID:   t.ID,
		TransactionType: t.Type.String(),
		Amount:          t.Amount.String(),
		OccurredAt:      t.CreatedAt,
	}
}

func OwnerEvent(eventType LedgerEventType, o *AccountOwner, at time.Time) LedgerEvent {
	return LedgerEvent{
		EventType:  eventType,
		OwnerID:    o.ID,
		OccurredAt: at,
	}
}

// AggregateRef returns the aggregate type and id used to key the event.
func (e LedgerEvent) AggregateRef() (string, int64) {
	if e.AccountID != 0 {
		return AggregateAccount, e.AccountID
	}
	return AggregateOwner, e.OwnerID
}
