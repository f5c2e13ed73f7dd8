package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type InboxMessageStatus string

const (
	InboxStatusNew       InboxMessageStatus = "NEW"
	InboxStatusProcessed InboxMessageStatus = "PROCESSED"
	InboxStatusFailed    InboxMessageStatus = "FAILED"
)

// InboxMessage records a consumed transaction request so that it is applied
// at most once. ID is the request_id carried by the message.
type InboxMessage struct {
	ID          string
	Source      string
	Payload     []byte
	Status      InboxMessageStatus
	Error       string
	ReceivedAt  time.Time
	ProcessedAt *time.Time
}

// TransactionRequest is the message accepted on the transaction requests topic.
type TransactionRequest struct {
	RequestID string          `json:"request_id"`
	AccountID int64           `json:"account_id"`
	Type      string          `json:"type"`
	Amount    decimal.Decimal `json:"amount"`
}

func (r TransactionRequest) Validate() (TransactionType, error) {
	if r.RequestID == "" {
		return 0, Validationf("request_id is required")
	}
	if r.AccountID <= 0 {
		return 0, Validationf("account_id must be positive")
	}
	return ParseTransactionType(r.Type)
}
