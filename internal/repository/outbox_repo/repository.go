package outbox_repo

import (
	"context"
	"time"

	"ledger/internal/domain"
)

type OutboxRepository interface {
	CreateMessageTx(ctx context.Context, querier domain.Querier, msg *domain.OutboxMessage) error
	// GetPendingMessagesTx locks up to limit PENDING rows, skipping rows held by other processors.
	GetPendingMessagesTx(ctx context.Context, querier domain.Querier, limit int) ([]domain.OutboxMessage, error)
	MarkSentTx(ctx context.Context, querier domain.Querier, id string, sentAt time.Time) error
	// MarkAttemptFailedTx counts a failed publish and moves the message to
	// FAILED once maxAttempts is reached. It returns the resulting status.
	MarkAttemptFailedTx(ctx context.Context, querier domain.Querier, id string, reason string, maxAttempts int) (domain.OutboxMessageStatus, error)
}
