package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"ledger/internal/app/transactions"
	"ledger/internal/domain"
	kafka_infra "ledger/internal/infrastructure/kafka"
)

// TransactionRequestMessageHandler applies deposit and withdraw requests
// consumed from Kafka. Returning an error leaves the offset uncommitted.
func TransactionRequestMessageHandler(transactionService transactions.TransactionService, logger *zap.Logger) kafka_infra.MessageHandler {
	return func(ctx context.Context, msg kafka.Message) error {
		logger.Info("Received transaction request",
			zap.String("topic", msg.Topic),
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.String("key", string(msg.Key)),
		)

		var req domain.TransactionRequest
		if err := json.Unmarshal(msg.Value, &req); err != nil {
			logger.Error("Failed to unmarshal transaction request",
				zap.Error(err),
				zap.ByteString("value", msg.Value),
				zap.String("topic", msg.Topic),
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
			)
			return nil
		}

		if err := transactionService.ProcessTransactionRequest(ctx, msg.Topic, req, msg.Value); err != nil {
			return fmt.Errorf("failed to process transaction request %s: %w", req.RequestID, err)
		}
		return nil
	}
}
