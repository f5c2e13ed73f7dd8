package transactions

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
	"ledger/internal/repository/inbox_repo"
	"ledger/internal/repository/transactions_repo"
)

type TransactionService interface {
	Deposit(ctx context.Context, accountID int64, amount decimal.Decimal) (*domain.Transaction, error)
	Withdraw(ctx context.Context, accountID int64, amount decimal.Decimal) (*domain.Transaction, error)
	// GetStatementByPeriod lists the transactions dated within [startDate, endDate], newest first.
	GetStatementByPeriod(ctx context.Context, accountID int64, startDate, endDate time.Time) ([]domain.Transaction, error)
	// ProcessTransactionRequest applies a request received from Kafka at most once.
	ProcessTransactionRequest(ctx context.Context, source string, req domain.TransactionRequest, rawPayload []byte) error
}

type Option func(*transactionService)

func WithClock(now func() time.Time) Option {
	return func(s *transactionService) { s.now = now }
}

// WithLocation sets the time zone whose calendar day bounds the daily limit.
func WithLocation(loc *time.Location) Option {
	return func(s *transactionService) { s.loc = loc }
}

func WithStrictAmounts(strict bool) Option {
	return func(s *transactionService) { s.strictAmounts = strict }
}

func WithRecorder(r outbox.Recorder) Option {
	return func(s *transactionService) { s.recorder = r }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *transactionService) { s.metrics = m }
}

func WithInbox(repo inbox_repo.InboxRepository) Option {
	return func(s *transactionService) { s.inboxRepo = repo }
}

type transactionService struct {
	transactor      domain.Transactor
	accountRepo     accounts_repo.AccountRepository
	transactionRepo transactions_repo.TransactionRepository
	inboxRepo       inbox_repo.InboxRepository
	recorder        outbox.Recorder
	metrics         *metrics.Metrics
	logger          *zap.Logger
	now             func() time.Time
	loc             *time.Location
	strictAmounts   bool
}

func NewTransactionService(
	transactor domain.Transactor,
	accountRepo accounts_repo.AccountRepository,
	transactionRepo transactions_repo.TransactionRepository,
	logger *zap.Logger,
	opts ...Option,
) TransactionService {
	s := &transactionService{
		transactor:      transactor,
		accountRepo:     accountRepo,
		transactionRepo: transactionRepo,
		recorder:        outbox.NopRecorder{},
		logger:          logger,
		now:             time.Now,
		loc:             time.Local,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *transactionService) Deposit(ctx context.Context, accountID int64, amount decimal.Decimal) (*domain.Transaction, error) {
	return s.post(ctx, accountID, domain.TransactionTypeDeposit, amount)
}

func (s *transactionService) Withdraw(ctx context.Context, accountID int64, amount decimal.Decimal) (*domain.Transaction, error) {
	return s.post(ctx, accountID, domain.TransactionTypeWithdraw, amount)
}

func (s *transactionService) post(ctx context.Context, accountID int64, tt domain.TransactionType, amount decimal.Decimal) (*domain.Transaction, error) {
	fields := []zap.Field{
		zap.Int64("account_id", accountID),
		zap.String("type", tt.String()),
		zap.String("amount", amount.String()),
	}
	s.logger.Info("Posting transaction", fields...)

	var posted *domain.Transaction
	err := s.transactor.RunInTx(ctx, func(ctx context.Context, q domain.Querier) error {
		t, err := s.postTx(ctx, q, accountID, tt, amount)
		posted = t
		return err
	})
	if err != nil {
		return nil, s.failed(tt, err, fields...)
	}

	s.metrics.ObserveTransaction(tt.String(), metrics.ResultSuccess)
	s.logger.Info("Transaction posted", append(fields, zap.Int64("transaction_id", posted.ID))...)
	return posted, nil
}

// postTx runs the guards and writes of one deposit or withdrawal inside an
// open transaction. Guards run before any write.
func (s *transactionService) postTx(ctx context.Context, q domain.Querier, accountID int64, tt domain.TransactionType, amount decimal.Decimal) (*domain.Transaction, error) {
	if err := domain.ValidateAmountScale(amount); err != nil {
		return nil, err
	}
	if s.strictAmounts && !amount.IsPositive() {
		return nil, domain.Validationf("amount must be greater than zero")
	}

	account, err := s.accountRepo.GetAccountForUpdateTx(ctx, q, accountID)
	if err != nil {
		return nil, err
	}

	now := s.now().In(s.loc)
	switch tt {
	case domain.TransactionTypeDeposit:
		if err := account.Deposit(amount, now); err != nil {
			return nil, err
		}
	case domain.TransactionTypeWithdraw:
		dayStart, dayEnd := domain.DayBounds(now)
		withdrawnToday, err := s.transactionRepo.SumAmountTx(ctx, q, accountID, domain.TransactionTypeWithdraw, dayStart, dayEnd)
		if err != nil {
			return nil, err
		}
		if err := account.Withdraw(amount, withdrawnToday, now); err != nil {
			return nil, err
		}
	default:
		return nil, domain.Validationf("unsupported transaction type %s", tt)
	}

	if err := s.accountRepo.UpdateAccountTx(ctx, q, account); err != nil {
		return nil, err
	}
	t := &domain.Transaction{
		AccountID: accountID,
		Amount:    amount,
		Type:      tt,
		CreatedAt: now,
	}
	if err := s.transactionRepo.CreateTransactionTx(ctx, q, t); err != nil {
		return nil, err
	}
	if err := s.recorder.Record(ctx, q, domain.TransactionEvent(account, t)); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *transactionService) failed(tt domain.TransactionType, err error, fields ...zap.Field) error {
	fields = append(fields, zap.Error(err))
	if domain.IsBusinessRule(err) {
		s.metrics.ObserveTransaction(tt.String(), metrics.ResultRejected)
		s.logger.Warn("Transaction rejected", fields...)
	} else {
		s.metrics.ObserveTransaction(tt.String(), metrics.ResultError)
		s.logger.Error("Transaction failed", fields...)
	}
	return fmt.Errorf("failed to post %s: %w", tt, err)
}

func (s *transactionService) GetStatementByPeriod(ctx context.Context, accountID int64, startDate, endDate time.Time) ([]domain.Transaction, error) {
	s.logger.Info("Getting statement",
		zap.Int64("account_id", accountID),
		zap.String("start_date", startDate.Format(time.DateOnly)),
		zap.String("end_date", endDate.Format(time.DateOnly)))

	from, to, err := domain.StatementWindow(inLocation(startDate, s.loc), inLocation(endDate, s.loc))
	if err != nil {
		s.logger.Warn("Rejected statement period", zap.Int64("account_id", accountID), zap.Error(err))
		return nil, err
	}

	statement, err := s.transactionRepo.ListByPeriodTx(ctx, s.transactor.Querier(), accountID, from, to)
	if err != nil {
		s.logger.Error("Failed to get statement", zap.Int64("account_id", accountID), zap.Error(err))
		return nil, fmt.Errorf("failed to get statement for account %d: %w", accountID, err)
	}
	return statement, nil
}

// inLocation reinterprets the calendar date of t in loc.
func inLocation(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

func (s *transactionService) ProcessTransactionRequest(ctx context.Context, source string, req domain.TransactionRequest, rawPayload []byte) error {
	if s.inboxRepo == nil {
		return errors.New("no inbox repository configured")
	}
	fields := []zap.Field{
		zap.String("request_id", req.RequestID),
		zap.Int64("account_id", req.AccountID),
		zap.String("type", req.Type),
		zap.String("amount", req.Amount.String()),
	}
	s.logger.Info("Processing transaction request", fields...)

	tt, validationErr := req.Validate()
	if req.RequestID == "" {
		s.logger.Warn("Dropping transaction request", append(fields, zap.Error(validationErr))...)
		return nil
	}

	var (
		duplicate bool
		rejection error
		posted    *domain.Transaction
	)
	err := s.transactor.RunInTx(ctx, func(ctx context.Context, q domain.Querier) error {
		msg := &domain.InboxMessage{
			ID:         req.RequestID,
			Source:     source,
			Payload:    rawPayload,
			Status:     domain.InboxStatusNew,
			ReceivedAt: s.now(),
		}
		if err := s.inboxRepo.CreateMessageTx(ctx, q, msg); err != nil {
			duplicate = errors.Is(err, domain.ErrDuplicateKey)
			return err
		}

		rejection = validationErr
		if rejection == nil {
			t, err := s.postTx(ctx, q, req.AccountID, tt, req.Amount)
			if err != nil && !domain.IsBusinessRule(err) {
				return err
			}
			posted, rejection = t, err
		}

		if rejection != nil {
			return s.inboxRepo.UpdateStatusTx(ctx, q, req.RequestID, domain.InboxStatusFailed, rejection.Error(), s.now())
		}
		return s.inboxRepo.UpdateStatusTx(ctx, q, req.RequestID, domain.InboxStatusProcessed, "", s.now())
	})
	switch {
	case duplicate:
		s.logger.Info("Transaction request already seen, skipping", fields...)
		return nil
	case err != nil:
		s.metrics.ObserveTransaction(requestLabel(req), metrics.ResultError)
		s.logger.Error("Failed to process transaction request", append(fields, zap.Error(err))...)
		return fmt.Errorf("failed to process transaction request %s: %w", req.RequestID, err)
	case rejection != nil:
		s.metrics.ObserveTransaction(requestLabel(req), metrics.ResultRejected)
		s.logger.Warn("Transaction request rejected", append(fields, zap.Error(rejection))...)
		return nil
	}
	s.metrics.ObserveTransaction(tt.String(), metrics.ResultSuccess)
	s.logger.Info("Transaction request applied", append(fields, zap.Int64("transaction_id", posted.ID))...)
	return nil
}

func requestLabel(req domain.TransactionRequest) string {
	if tt, err := domain.ParseTransactionType(req.Type); err == nil {
		return tt.String()
	}
	return "UNKNOWN"
}
