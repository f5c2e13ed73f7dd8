package accounts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"ledger/internal/domain"
	"ledger/internal/metrics"
	"ledger/internal/outbox"
	"ledger/internal/repository/accounts_repo"
	"ledger/internal/repository/owners_repo"
	"ledger/internal/util"
)

type AccountService interface {
	CreateOwner(ctx context.Context, name, cpf string) (*domain.AccountOwner, error)
	RemoveOwner(ctx context.Context, cpf string) error
	CreateAccount(ctx context.Context, ownerID int64) (*domain.Account, error)
	GetAccount(ctx context.Context, accountID int64) (*domain.Account, error)
	BlockAccount(ctx context.Context, accountID int64) (*domain.Account, error)
	UnblockAccount(ctx context.Context, accountID int64) (*domain.Account, error)
	CloseAccount(ctx context.Context, accountID int64) (*domain.Account, error)
}

type Option func(*accountService)

func WithClock(now func() time.Time) Option {
	return func(s *accountService) { s.now = now }
}

func WithDefaultDailyLimit(limit decimal.Decimal) Option {
	return func(s *accountService) { s.dailyLimit = limit }
}

func WithCheckingNumberSource(next func() int) Option {
	return func(s *accountService) { s.checkingNumber = next }
}

func WithRecorder(r outbox.Recorder) Option {
	return func(s *accountService) { s.recorder = r }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *accountService) { s.metrics = m }
}

type accountService struct {
	transactor     domain.Transactor
	ownerRepo      owners_repo.OwnerRepository
	accountRepo    accounts_repo.AccountRepository
	recorder       outbox.Recorder
	metrics        *metrics.Metrics
	logger         *zap.Logger
	now            func() time.Time
	dailyLimit     decimal.Decimal
	checkingNumber func() int
}

func NewAccountService(
	transactor domain.Transactor,
	ownerRepo owners_repo.OwnerRepository,
	accountRepo accounts_repo.AccountRepository,
	logger *zap.Logger,
	opts ...Option,
) AccountService {
	s := &accountService{
		transactor:     transactor,
		ownerRepo:      ownerRepo,
		accountRepo:    accountRepo,
		recorder:       outbox.NopRecorder{},
		logger:         logger,
		now:            time.Now,
		dailyLimit:     domain.DefaultDailyLimit,
		checkingNumber: randomCheckingNumber,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func randomCheckingNumber() int {
	return util.RandomCheckingAccountNumber(domain.MaxCheckingAccountNo)
}

func (s *accountService) CreateOwner(ctx context.Context, name, cpf string) (*domain.AccountOwner, error) {
	s.logger.Info("Creating account owner", zap.String("cpf", cpf))

	owner, err := domain.NewAccountOwner(name, cpf, s.now())
	if err != nil {
		s.logger.Warn("Rejected account owner", zap.String("cpf", cpf), zap.Error(err))
		return nil, err
	}

	err = s.transactor.RunInTx(ctx, func(ctx context.Context, q domain.Querier) error {
		if err := s.ownerRepo.CreateOwnerTx(ctx, q, owner); err != nil {
			return err
		}
		return s.recorder.Record(ctx, q, domain.OwnerEvent(domain.EventOwnerCreated, owner, owner.CreatedAt))
	})
	if err != nil {
		s.logFailure("Failed to create account owner", err, zap.String("cpf", cpf))
		return nil, fmt.Errorf("failed to create account owner: %w", err)
	}

	s.logger.Info("Account owner created", zap.Int64("owner_id", owner.ID), zap.String("cpf", cpf))
	return owner, nil
}

// RemoveOwner deletes the owner with the given cpf. An unknown cpf is not an
// error.
func (s *accountService) RemoveOwner(ctx context.Context, cpf string) error {
	s.logger.Info("Removing account owner", zap.String("cpf", cpf))

	if err := domain.ValidateCPF(cpf); err != nil {
		s.logger.Warn("Rejected account owner removal", zap.String("cpf", cpf), zap.Error(err))
		return err
	}

	var removed *domain.AccountOwner
	err := s.transactor.RunInTx(ctx, func(ctx context.Context, q domain.Querier) error {
		owner, err := s.ownerRepo.DeleteOwnerByCPFTx(ctx, q, cpf)
		if err != nil {
			return err
		}
		removed = owner
		return s.recorder.Record(ctx, q, domain.OwnerEvent(domain.EventOwnerRemoved, owner, s.now()))
	})
	if err != nil {
		if errors.Is(err, domain.ErrOwnerNotFound) {
			s.logger.Info("No account owner matched cpf, nothing removed", zap.String("cpf", cpf))
			return nil
		}
		s.logFailure("Failed to remove account owner", err, zap.String("cpf", cpf))
		return fmt.Errorf("failed to remove account owner: %w", err)
	}

	s.logger.Info("Account owner removed", zap.Int64("owner_id", removed.ID), zap.String("cpf", cpf))
	return nil
}

func (s *accountService) CreateAccount(ctx context.Context, ownerID int64) (*domain.Account, error) {
	s.logger.Info("Creating account", zap.Int64("owner_id", ownerID))

	var account *domain.Account
	err := s.transactor.RunInTx(ctx, func(ctx context.Context, q domain.Querier) error {
		if _, err := s.ownerRepo.GetOwnerByIDTx(ctx, q, ownerID); err != nil {
			return err
		}
		account = domain.NewAccount(ownerID, s.checkingNumber(), s.dailyLimit, s.now())
		if err := s.accountRepo.CreateAccountTx(ctx, q, account); err != nil {
			return err
		}
		return s.recorder.Record(ctx, q, domain.AccountEvent(domain.EventAccountCreated, account, account.CreatedAt))
	})
	if err != nil {
		s.logFailure("Failed to create account", err, zap.Int64("owner_id", ownerID))
		return nil, fmt.Errorf("failed to create account for owner %d: %w", ownerID, err)
	}

	s.metrics.ObserveTransition(string(account.State))
	s.logger.Info("Account created",
		zap.Int64("account_id", account.ID),
		zap.Int64("owner_id", ownerID),
		zap.Int("checking_account_number", account.CheckingAccountNumber))
	return account, nil
}

func (s *accountService) GetAccount(ctx context.Context, accountID int64) (*domain.Account, error) {
	account, err := s.accountRepo.GetAccountTx(ctx, s.transactor.Querier(), accountID)
	if err != nil {
		s.logFailure("Failed to get account", err, zap.Int64("account_id", accountID))
		return nil, fmt.Errorf("failed to get account %d: %w", accountID, err)
	}
	return account, nil
}

func (s *accountService) BlockAccount(ctx context.Context, accountID int64) (*domain.Account, error) {
	return s.transition(ctx, accountID, domain.EventAccountBlocked, (*domain.Account).Block)
}

func (s *accountService) UnblockAccount(ctx context.Context, accountID int64) (*domain.Account, error) {
	return s.transition(ctx, accountID, domain.EventAccountUnblocked, (*domain.Account).Unblock)
}

func (s *accountService) CloseAccount(ctx context.Context, accountID int64) (*domain.Account, error) {
	return s.transition(ctx, accountID, domain.EventAccountClosed, (*domain.Account).Close)
}

// transition locks the account, applies move and persists the result. A move
// that leaves the state unchanged writes nothing.
func (s *accountService) transition(
	ctx context.Context,
	accountID int64,
	eventType domain.LedgerEventType,
	move func(a *domain.Account, now time.Time) (bool, error),
) (*domain.Account, error) {
	s.logger.Info("Changing account state", zap.Int64("account_id", accountID), zap.String("event", string(eventType)))

	var account *domain.Account
	var changed bool
	err := s.transactor.RunInTx(ctx, func(ctx context.Context, q domain.Querier) error {
		a, err := s.accountRepo.GetAccountForUpdateTx(ctx, q, accountID)
		if err != nil {
			return err
		}
		now := s.now()
		if changed, err = move(a, now); err != nil {
			return err
		}
		account = a
		if !changed {
			return nil
		}
		if err := s.accountRepo.UpdateAccountTx(ctx, q, a); err != nil {
			return err
		}
		return s.recorder.Record(ctx, q, domain.AccountEvent(eventType, a, now))
	})
	if err != nil {
		s.logFailure("Failed to change account state", err, zap.Int64("account_id", accountID), zap.String("event", string(eventType)))
		return nil, fmt.Errorf("failed to change state of account %d: %w", accountID, err)
	}

	if changed {
		s.metrics.ObserveTransition(string(account.State))
	}
	s.logger.Info("Account state updated",
		zap.Int64("account_id", accountID),
		zap.String("state", string(account.State)),
		zap.Bool("changed", changed))
	return account, nil
}

func (s *accountService) logFailure(msg string, err error, fields ...zap.Field) {
	fields = append(fields, zap.Error(err))
	if domain.IsBusinessRule(err) {
		s.logger.Warn(msg, fields...)
		return
	}
	s.logger.Error(msg, fields...)
}
