package memory

import (
	"context"
	"fmt"
	"time"

	"ledger/internal/domain"
)

type InboxRepository struct {
	store *Store
}

func NewInboxRepository(store *Store) *InboxRepository {
	return &InboxRepository{store: store}
}

func (r *InboxRepository) CreateMessageTx(ctx context.Context, querier domain.Querier, msg *domain.InboxMessage) error {
	return r.store.update(ctx, querier, func(st *state) error {
		if _, ok := st.inbox[msg.ID]; ok {
			return fmt.Errorf("inbox message %s: %w", msg.ID, domain.ErrDuplicateKey)
		}
		st.inbox[msg.ID] = *msg
		return nil
	})
}

func (r *InboxRepository) GetMessageTx(ctx context.Context, querier domain.Querier, id string) (*domain.InboxMessage, error) {
	var msg domain.InboxMessage
	err := r.store.view(ctx, querier, func(st *state) error {
		m, ok := st.inbox[id]
		if !ok {
			return fmt.Errorf("inbox message %s: %w", id, domain.ErrNotFound)
		}
		msg = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *InboxRepository) UpdateStatusTx(ctx context.Context, querier domain.Querier, id string, status domain.InboxMessageStatus, reason string, processedAt time.Time) error {
	return r.store.update(ctx, querier, func(st *state) error {
		m, ok := st.inbox[id]
		if !ok {
			return fmt.Errorf("inbox message %s: %w", id, domain.ErrNotFound)
		}
		m.Status = status
		m.Error = reason
		m.ProcessedAt = &processedAt
		st.inbox[id] = m
		return nil
	})
}
