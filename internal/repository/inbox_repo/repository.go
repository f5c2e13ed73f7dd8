package inbox_repo

import (
	"context"
	"time"

	"ledger/internal/domain"
)

type InboxRepository interface {
	// CreateMessageTx records msg and returns domain.ErrDuplicateKey when its ID was seen before.
	CreateMessageTx(ctx context.Context, querier domain.Querier, msg *domain.InboxMessage) error
	GetMessageTx(ctx context.Context, querier domain.Querier, id string) (*domain.InboxMessage, error)
	UpdateStatusTx(ctx context.Context, querier domain.Querier, id string, status domain.InboxMessageStatus, reason string, processedAt time.Time) error
}
