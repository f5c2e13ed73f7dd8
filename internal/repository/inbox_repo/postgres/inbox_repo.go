package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ledger/internal/domain"
)

type InboxRepository struct{}

func NewInboxRepository() *InboxRepository {
	return &InboxRepository{}
}

func (r *InboxRepository) CreateMessageTx(ctx context.Context, querier domain.Querier, msg *domain.InboxMessage) error {
	query := `
		INSERT INTO inbox_messages (id, source, payload, status, received_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING
	`
	res, err := querier.ExecContext(ctx, query, msg.ID, msg.Source, msg.Payload, msg.Status, msg.ReceivedAt)
	if err != nil {
		return fmt.Errorf("failed to create inbox message: %w", err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for inbox insert: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("inbox message %s: %w", msg.ID, domain.ErrDuplicateKey)
	}
	return nil
}

func (r *InboxRepository) GetMessageTx(ctx context.Context, querier domain.Querier, id string) (*domain.InboxMessage, error) {
	query := `
		SELECT id, source, payload, status, error, received_at, processed_at
		FROM inbox_messages
		WHERE id = $1
	`
	msg := &domain.InboxMessage{}
	var reason sql.NullString
	var processedAt sql.NullTime
	err := querier.QueryRowContext(ctx, query, id).Scan(
		&msg.ID,
		&msg.Source,
		&msg.Payload,
		&msg.Status,
		&reason,
		&msg.ReceivedAt,
		&processedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("inbox message %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get inbox message %s: %w", id, err)
	}
	msg.Error = reason.String
	if processedAt.Valid {
		msg.ProcessedAt = &processedAt.Time
	}
	return msg, nil
}

func (r *InboxRepository) UpdateStatusTx(ctx context.Context, querier domain.Querier, id string, status domain.InboxMessageStatus, reason string, processedAt time.Time) error {
	query := `
		UPDATE inbox_messages
		SET status = $1, error = NULLIF($2, ''), processed_at = $3
		WHERE id = $4
	`
	res, err := querier.ExecContext(ctx, query, status, reason, processedAt, id)
	if err != nil {
		return fmt.Errorf("failed to update inbox message status %s: %w", id, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for inbox message update: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("inbox message %s: %w", id, domain.ErrNotFound)
	}
	return nil
}
