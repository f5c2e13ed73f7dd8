package outbox

import (
	"context"
	"time"

	"go.uber.org/zap"

	"ledger/internal/domain"
	kafka_infra "ledger/internal/infrastructure/kafka"
	"ledger/internal/metrics"
)

type OutboxRepository interface {
	GetPendingMessagesTx(ctx context.Context, querier domain.Querier, limit int) ([]domain.OutboxMessage, error)
	MarkSentTx(ctx context.Context, querier domain.Querier, id string, sentAt time.Time) error
	MarkAttemptFailedTx(ctx context.Context, querier domain.Querier, id string, reason string, maxAttempts int) (domain.OutboxMessageStatus, error)
}

type ProcessorConfig struct {
	PollInterval time.Duration
	PollTimeout  time.Duration
	BatchSize    int
	MaxAttempts  int
}

type Processor struct {
	transactor domain.Transactor
	outboxRepo OutboxRepository
	producer   kafka_infra.Producer
	cfg        ProcessorConfig
	metrics    *metrics.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

func NewProcessor(
	transactor domain.Transactor,
	outboxRepo OutboxRepository,
	producer kafka_infra.Producer,
	cfg ProcessorConfig,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Processor {
	return &Processor{
		transactor: transactor,
		outboxRepo: outboxRepo,
		producer:   producer,
		cfg:        cfg,
		metrics:    m,
		logger:     logger,
		now:        time.Now,
	}
}

// Start polls the outbox until ctx is cancelled.
func (p *Processor) Start(ctx context.Context) error {
	p.logger.Info("Starting outbox processor", zap.Duration("poll_interval", p.cfg.PollInterval))
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Outbox processor stopped")
			return nil
		case <-ticker.C:
			if _, err := p.ProcessBatch(ctx); err != nil && ctx.Err() == nil {
				p.logger.Error("Failed to process outbox batch", zap.Error(err))
			}
		}
	}
}

// ProcessBatch publishes one batch of pending messages and returns how many
// were sent. Once a message fails, later messages with the same key stay
// pending so that per-key order is kept.
func (p *Processor) ProcessBatch(ctx context.Context) (int, error) {
	sent := 0
	err := p.transactor.RunInTx(ctx, func(ctx context.Context, q domain.Querier) error {
		queryCtx, cancel := context.WithTimeout(ctx, p.cfg.PollTimeout)
		messages, err := p.outboxRepo.GetPendingMessagesTx(queryCtx, q, p.cfg.BatchSize)
		cancel()
		if err != nil {
			return err
		}
		if len(messages) == 0 {
			p.logger.Debug("No pending outbox messages found")
			return nil
		}

		blocked := make(map[string]bool)
		for _, msg := range messages {
			if blocked[msg.Key] {
				continue
			}
			if err := p.producer.Produce(ctx, msg.Topic, msg.Key, msg.Payload); err != nil {
				blocked[msg.Key] = true
				p.metrics.ObserveOutbox(metrics.ResultError)
				status, markErr := p.outboxRepo.MarkAttemptFailedTx(ctx, q, msg.ID, err.Error(), p.cfg.MaxAttempts)
				if markErr != nil {
					return markErr
				}
				p.logger.Warn("Failed to publish outbox message",
					zap.String("message_id", msg.ID),
					zap.String("topic", msg.Topic),
					zap.String("status", string(status)),
					zap.Error(err))
				continue
			}
			if err := p.outboxRepo.MarkSentTx(ctx, q, msg.ID, p.now()); err != nil {
				return err
			}
			p.metrics.ObserveOutbox(metrics.ResultSuccess)
			sent++
			p.logger.Debug("Outbox message published", zap.String("message_id", msg.ID), zap.String("type", msg.MessageType))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if sent > 0 {
		p.logger.Info("Published outbox messages", zap.Int("count", sent))
	}
	return sent, nil
}
