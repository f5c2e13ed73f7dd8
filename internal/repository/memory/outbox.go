package memory

import (
	"context"
	"fmt"
	"time"

	"ledger/internal/domain"
)

type OutboxRepository struct {
	store *Store
}

func NewOutboxRepository(store *Store) *OutboxRepository {
	return &OutboxRepository{store: store}
}

func (r *OutboxRepository) CreateMessageTx(ctx context.Context, querier domain.Querier, msg *domain.OutboxMessage) error {
	return r.store.update(ctx, querier, func(st *state) error {
		for _, m := range st.outbox {
			if m.ID == msg.ID {
				return fmt.Errorf("outbox message %s: %w", msg.ID, domain.ErrDuplicateKey)
			}
		}
		st.outbox = append(st.outbox, *msg)
		return nil
	})
}

// GetPendingMessagesTx returns PENDING messages in insertion order, which is
// also creation order.
func (r *OutboxRepository) GetPendingMessagesTx(ctx context.Context, querier domain.Querier, limit int) ([]domain.OutboxMessage, error) {
	var messages []domain.OutboxMessage
	err := r.store.view(ctx, querier, func(st *state) error {
		for _, m := range st.outbox {
			if len(messages) == limit {
				break
			}
			if m.Status == domain.OutboxStatusPending {
				messages = append(messages, m)
			}
		}
		return nil
	})
	return messages, err
}

func (r *OutboxRepository) MarkSentTx(ctx context.Context, querier domain.Querier, id string, sentAt time.Time) error {
	return r.store.update(ctx, querier, func(st *state) error {
		m, err := findOutbox(st, id)
		if err != nil {
			return err
		}
		m.Status = domain.OutboxStatusSent
		m.SentAt = &sentAt
		m.Attempts++
		return nil
	})
}

func (r *OutboxRepository) MarkAttemptFailedTx(ctx context.Context, querier domain.Querier, id string, reason string, maxAttempts int) (domain.OutboxMessageStatus, error) {
	var status domain.OutboxMessageStatus
	err := r.store.update(ctx, querier, func(st *state) error {
		m, err := findOutbox(st, id)
		if err != nil {
			return err
		}
		m.Attempts++
		m.LastError = reason
		if m.Attempts >= maxAttempts {
			m.Status = domain.OutboxStatusFailed
		}
		status = m.Status
		return nil
	})
	return status, err
}

func findOutbox(st *state, id string) (*domain.OutboxMessage, error) {
	for i := range st.outbox {
		if st.outbox[i].ID == id {
			return &st.outbox[i], nil
		}
	}
	return nil, fmt.Errorf("outbox message %s: %w", id, domain.ErrNotFound)
}
