package kafka_infra

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type MessageHandler func(ctx context.Context, message kafka.Message) error

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	reader         messageReader
	topic          string
	logger         *zap.Logger
	handler        MessageHandler
	handlerTimeout time.Duration
	retryBackoff   time.Duration
	maxBackoff     time.Duration
}

func NewConsumer(brokers []string, topic, groupID string, handler MessageHandler, l *zap.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       10e3,
		MaxBytes:       10e6,
		CommitInterval: 0,
		Logger:         kafka.LoggerFunc(l.Sugar().Debugf),
		ErrorLogger:    kafka.LoggerFunc(l.Sugar().Errorf),
	})
	return newConsumer(reader, topic, handler, l)
}

func newConsumer(reader messageReader, topic string, handler MessageHandler, l *zap.Logger) *Consumer {
	return &Consumer{
		reader:         reader,
		topic:          topic,
		logger:         l,
		handler:        handler,
		handlerTimeout: 25 * time.Second,
		retryBackoff:   time.Second,
		maxBackoff:     30 * time.Second,
	}
}

// Consume reads until ctx is cancelled. A message whose handler fails is
// retried with backoff and its offset is committed only after success.
func (c *Consumer) Consume(ctx context.Context) error {
	c.logger.Info("Kafka consumer starting message consumption", zap.String("topic", c.topic))

	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, kafka.ErrGroupClosed) || errors.Is(err, context.Canceled) {
				c.logger.Info("Consumer stopping", zap.String("topic", c.topic), zap.Error(err))
				return nil
			}
			c.logger.Error("Error fetching message from Kafka", zap.Error(err), zap.String("topic", c.topic))
			if !sleepCtx(ctx, c.retryBackoff) {
				return nil
			}
			continue
		}

		if !c.handleWithRetry(ctx, m) {
			return nil
		}

		commitCtx, cancelCommit := context.WithTimeout(context.Background(), 5*time.Second)
		if err := c.reader.CommitMessages(commitCtx, m); err != nil {
			c.logger.Error("Failed to commit offset for message",
				zap.String("topic", m.Topic),
				zap.Int("partition", m.Partition),
				zap.Int64("offset", m.Offset),
				zap.Error(err))
		}
		cancelCommit()
	}
}

// handleWithRetry returns false when ctx ended before the handler succeeded.
func (c *Consumer) handleWithRetry(ctx context.Context, m kafka.Message) bool {
	backoff := c.retryBackoff
	for attempt := 1; ; attempt++ {
		handleCtx, cancel := context.WithTimeout(ctx, c.handlerTimeout)
		err := c.handler(handleCtx, m)
		cancel()
		if err == nil {
			return true
		}
		c.logger.Error("Error handling Kafka message, offset left uncommitted",
			zap.String("topic", m.Topic),
			zap.Int("partition", m.Partition),
			zap.Int64("offset", m.Offset),
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", backoff),
			zap.Error(err))
		if !sleepCtx(ctx, backoff) {
			return false
		}
		backoff = min(backoff*2, c.maxBackoff)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (c *Consumer) Close() error {
	if err := c.reader.Close(); err != nil {
		c.logger.Error("Failed to close Kafka consumer reader", zap.Error(err), zap.String("topic", c.topic))
		return fmt.Errorf("failed to close Kafka consumer reader: %w", err)
	}
	c.logger.Info("Kafka consumer reader closed", zap.String("topic", c.topic))
	return nil
}
