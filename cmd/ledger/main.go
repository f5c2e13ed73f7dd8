package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"ledger/internal/app/accounts"
	"ledger/internal/app/transactions"
	"ledger/internal/config"
	kafka_handler "ledger/internal/handler/kafka"
	kafka_infra "ledger/internal/infrastructure/kafka"
	"ledger/internal/metrics"
	"ledger/internal/outbox"
	"ledger/internal/router"
)

func newLogger(level string) (*zap.Logger, error) {
	zapConfig := zap.NewProductionConfig()
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapConfig.EncoderConfig.TimeKey = "timestamp"

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", level, err)
	}
	zapConfig.Level = zap.NewAtomicLevelAt(lvl)
	return zapConfig.Build()
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	appLogger, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create zap logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	if err := run(cfg, appLogger); err != nil {
		appLogger.Fatal("Ledger service stopped with error", zap.Error(err))
	}
	appLogger.Info("Application gracefully shut down.")
}

func run(cfg *config.Config, appLogger *zap.Logger) error {
	appLogger.Info("Ledger service starting...", zap.String("storage_driver", cfg.StorageDriver))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	store, err := openStorage(ctx, cfg, appLogger)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			appLogger.Error("Error closing storage", zap.Error(err))
		} else {
			appLogger.Info("Storage closed.")
		}
	}()

	appMetrics := metrics.New()

	var recorder outbox.Recorder = outbox.NopRecorder{}
	if cfg.OutboxEnabled {
		recorder = outbox.NewRecorder(store.outbox, cfg.KafkaLedgerEventsTopic)
	}

	accountService := accounts.NewAccountService(
		store.transactor,
		store.owners,
		store.accounts,
		appLogger.With(zap.String("component", "AccountService")),
		accounts.WithDefaultDailyLimit(cfg.DefaultDailyLimit),
		accounts.WithRecorder(recorder),
		accounts.WithMetrics(appMetrics),
	)
	transactionService := transactions.NewTransactionService(
		store.transactor,
		store.accounts,
		store.transactions,
		appLogger.With(zap.String("component", "TransactionService")),
		transactions.WithLocation(loc),
		transactions.WithStrictAmounts(cfg.StrictAmounts),
		transactions.WithRecorder(recorder),
		transactions.WithMetrics(appMetrics),
		transactions.WithInbox(store.inbox),
	)
	appLogger.Info("Ledger services initialized.")

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router.NewRouter(cfg, accountService, transactionService, appMetrics, appLogger),
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
	}

	if cfg.KafkaRequired() && cfg.KafkaEnsureTopics {
		topicsCtx, cancel := context.WithTimeout(ctx, cfg.HTTPReadTimeout)
		err := kafka_infra.EnsureTopics(topicsCtx, cfg.GetKafkaBrokers(),
			[]string{cfg.KafkaLedgerEventsTopic, cfg.KafkaTransactionRequestsTopic},
			appLogger.With(zap.String("component", "KafkaAdmin")))
		cancel()
		if err != nil {
			return fmt.Errorf("failed to ensure Kafka topics: %w", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		appLogger.Info("Starting HTTP server", zap.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		appLogger.Info("Shutting down HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("HTTP server graceful shutdown failed: %w", err)
		}
		appLogger.Info("HTTP server gracefully shut down.")
		return nil
	})

	if cfg.OutboxEnabled {
		kafkaProducer := kafka_infra.NewProducer(cfg.GetKafkaBrokers(), appLogger.With(zap.String("component", "KafkaProducer")))
		defer func() {
			if err := kafkaProducer.Close(); err != nil {
				appLogger.Error("Error closing Kafka producer", zap.Error(err))
			} else {
				appLogger.Info("Kafka producer closed.")
			}
		}()

		outboxProcessor := outbox.NewProcessor(
			store.transactor,
			store.outbox,
			kafkaProducer,
			outbox.ProcessorConfig{
				PollInterval: cfg.OutboxPollInterval,
				PollTimeout:  cfg.OutboxPollTimeout,
				BatchSize:    cfg.OutboxBatchSize,
				MaxAttempts:  cfg.OutboxMaxAttempts,
			},
			appMetrics,
			appLogger.With(zap.String("component", "OutboxProcessor")),
		)
		g.Go(func() error {
			appLogger.Info("Starting Outbox Processor...")
			err := outboxProcessor.Start(gctx)
			appLogger.Info("Outbox Processor stopped.")
			return err
		})
	}

	if cfg.KafkaConsumerEnabled {
		requestsConsumer := kafka_infra.NewConsumer(
			cfg.GetKafkaBrokers(),
			cfg.KafkaTransactionRequestsTopic,
			cfg.KafkaConsumerGroup,
			kafka_handler.TransactionRequestMessageHandler(
				transactionService,
				appLogger.With(zap.String("component", "TransactionRequestHandler")),
			),
			appLogger.With(zap.String("component", "TransactionRequestsConsumer")),
		)
		g.Go(func() error {
			appLogger.Info("Starting Transaction Requests Kafka Consumer...")
			err := requestsConsumer.Consume(gctx)
			if closeErr := requestsConsumer.Close(); closeErr != nil {
				appLogger.Error("Error closing Transaction Requests Kafka Consumer", zap.Error(closeErr))
			}
			appLogger.Info("Transaction Requests Kafka Consumer stopped.")
			return err
		})
	}

	return g.Wait()
}
