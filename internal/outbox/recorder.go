package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/gowebpki/jcs"

	"ledger/internal/domain"
	"ledger/internal/util"
)

// Recorder stores a ledger event in the outbox inside the caller's transaction.
type Recorder interface {
	Record(ctx context.Context, querier domain.Querier, event domain.LedgerEvent) error
}

type MessageWriter interface {
	CreateMessageTx(ctx context.Context, querier domain.Querier, msg *domain.OutboxMessage) error
}

type recorder struct {
	repo  MessageWriter
	topic string
}

func NewRecorder(repo MessageWriter, topic string) Recorder {
	return &recorder{repo: repo, topic: topic}
}

func (r *recorder) Record(ctx context.Context, querier domain.Querier, event domain.LedgerEvent) error {
	if event.EventID == "" {
		event.EventID = util.GenerateUUID()
	}
	payload, err := EncodeEvent(event)
	if err != nil {
		return err
	}
	aggregateType, aggregateID := event.AggregateRef()
	id := strconv.FormatInt(aggregateID, 10)

	msg := &domain.OutboxMessage{
		ID:            event.EventID,
		AggregateID:   id,
		AggregateType: aggregateType,
		MessageType:   string(event.EventType),
		Topic:         r.topic,
		Key:           MessageKey(aggregateType, id),
		Payload:       payload,
		Status:        domain.OutboxStatusPending,
		CreatedAt:     event.OccurredAt,
	}
	if err := r.repo.CreateMessageTx(ctx, querier, msg); err != nil {
		return fmt.Errorf("failed to record %s event: %w", event.EventType, err)
	}
	return nil
}

// MessageKey is the partition key of an aggregate's events. Owners and
// accounts draw ids from separate sequences, so the type is part of the key.
func MessageKey(aggregateType, aggregateID string) string {
	return aggregateType + ":" + aggregateID
}

// EncodeEvent renders event as RFC 8785 canonical JSON so that identical
// events always produce identical bytes.
func EncodeEvent(event domain.LedgerEvent) ([]byte, error) {
	raw, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ledger event: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize ledger event: %w", err)
	}
	return canonical, nil
}

type NopRecorder struct{}

func (NopRecorder) Record(context.Context, domain.Querier, domain.LedgerEvent) error {
	return nil
}
