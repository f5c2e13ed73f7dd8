package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"ledger/internal/config"
	"ledger/internal/domain"
	"ledger/internal/infrastructure/database"
	"ledger/internal/repository/accounts_repo"
	accounts_postgres "ledger/internal/repository/accounts_repo/postgres"
	"ledger/internal/repository/inbox_repo"
	inbox_postgres "ledger/internal/repository/inbox_repo/postgres"
	"ledger/internal/repository/memory"
	"ledger/internal/repository/outbox_repo"
	outbox_postgres "ledger/internal/repository/outbox_repo/postgres"
	"ledger/internal/repository/owners_repo"
	owners_postgres "ledger/internal/repository/owners_repo/postgres"
	"ledger/internal/repository/transactions_repo"
	transactions_postgres "ledger/internal/repository/transactions_repo/postgres"
)

// storage bundles the repositories of one driver with the transactor that
// scopes them.
type storage struct {
	transactor   domain.Transactor
	owners       owners_repo.OwnerRepository
	accounts     accounts_repo.AccountRepository
	transactions transactions_repo.TransactionRepository
	outbox       outbox_repo.OutboxRepository
	inbox        inbox_repo.InboxRepository
	close        func() error
}

func (s *storage) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

func openStorage(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*storage, error) {
	switch cfg.StorageDriver {
	case config.StorageDriverMemory:
		logger.Warn("Using in-memory storage, data is lost on restart")
		store := memory.NewStore()
		return &storage{
			transactor:   store,
			owners:       memory.NewOwnerRepository(store),
			accounts:     memory.NewAccountRepository(store),
			transactions: memory.NewTransactionRepository(store),
			outbox:       memory.NewOutboxRepository(store),
			inbox:        memory.NewInboxRepository(store),
		}, nil
	case config.StorageDriverPostgres:
		return openPostgres(ctx, cfg, logger)
	}
	return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
}

func openPostgres(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*storage, error) {
	dbLogger := logger.With(zap.String("component", "Database"))
	dbLogger.Info("Waiting for database to be available...")

	db, err := database.ConnectWithRetry(ctx, database.DBConfig{
		Host:            cfg.DBConfig.Host,
		Port:            cfg.DBConfig.Port,
		User:            cfg.DBConfig.User,
		Password:        cfg.DBConfig.Password,
		DBName:          cfg.DBConfig.Name,
		SSLMode:         cfg.DBConfig.SSLMode,
		MaxOpenConns:    cfg.DBConfig.MaxOpenConns,
		MaxIdleConns:    cfg.DBConfig.MaxIdleConns,
		ConnMaxLifetime: cfg.DBConfig.ConnMaxLifetime,
	}, cfg.DBConfig.ConnectRetries, cfg.DBConfig.RetryDelay, dbLogger)
	if err != nil {
		return nil, err
	}

	dbLogger.Info("Running database migrations...", zap.String("source", cfg.MigrationsURL))
	if err := database.Migrate(cfg.MigrationsURL, cfg.GetDBMigrationConnectionString(), dbLogger); err != nil {
		db.Close()
		return nil, err
	}

	return &storage{
		transactor:   database.NewSQLTransactor(db, dbLogger),
		owners:       owners_postgres.NewOwnerRepository(),
		accounts:     accounts_postgres.NewAccountRepository(),
		transactions: transactions_postgres.NewTransactionRepository(),
		outbox:       outbox_postgres.NewOutboxRepository(),
		inbox:        inbox_postgres.NewInboxRepository(),
		close:        db.Close,
	}, nil
}
