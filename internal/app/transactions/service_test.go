package transactions

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ledger/internal/domain"
	"ledger/internal/metrics"
	"ledger/internal/outbox"
	"ledger/internal/repository/memory"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type fixture struct {
	store    *memory.Store
	accounts *memory.AccountRepository
	inbox    *memory.InboxRepository
	outbox   *memory.OutboxRepository
	metrics  *metrics.Metrics
	clock    *clock
	service  TransactionService
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	store := memory.NewStore()
	f := &fixture{
		store:    store,
		accounts: memory.NewAccountRepository(store),
		inbox:    memory.NewInboxRepository(store),
		outbox:   memory.NewOutboxRepository(store),
		metrics:  metrics.New(),
		clock:    &clock{now: time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)},
	}
	base := []Option{
		WithClock(f.clock.Now),
		WithLocation(time.UTC),
		WithRecorder(outbox.NewRecorder(f.outbox, "ledger_events")),
		WithMetrics(f.metrics),
		WithInbox(f.inbox),
	}
	f.service = NewTransactionService(
		store,
		f.accounts,
		memory.NewTransactionRepository(store),
		zap.NewNop(),
		append(base, opts...)...,
	)
	return f
}

func (f *fixture) openAccount(t *testing.T, cpf string) *domain.Account {
	t.Helper()
	ctx := context.Background()
	owner, err := domain.NewAccountOwner("Maria Silva", cpf, f.clock.Now())
	require.NoError(t, err)
	require.NoError(t, memory.NewOwnerRepository(f.store).CreateOwnerTx(ctx, f.store.Querier(), owner))
	account := domain.NewAccount(owner.ID, 42, domain.DefaultDailyLimit, f.clock.Now())
	require.NoError(t, f.accounts.CreateAccountTx(ctx, f.store.Querier(), account))
	return account
}

func (f *fixture) balance(t *testing.T, accountID int64) decimal.Decimal {
	t.Helper()
	account, err := f.accounts.GetAccountTx(context.Background(), f.store.Querier(), accountID)
	require.NoError(t, err)
	return account.Balance
}

func (f *fixture) setState(t *testing.T, accountID int64, state domain.AccountState) {
	t.Helper()
	ctx := context.Background()
	account, err := f.accounts.GetAccountTx(ctx, f.store.Querier(), accountID)
	require.NoError(t, err)
	account.State = state
	require.NoError(t, f.accounts.UpdateAccountTx(ctx, f.store.Querier(), account))
}

func (f *fixture) statement(t *testing.T, accountID int64) []domain.Transaction {
	t.Helper()
	day := f.clock.Now()
	list, err := f.service.GetStatementByPeriod(context.Background(), accountID, day.AddDate(-1, 0, 0), day)
	require.NoError(t, err)
	return list
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestDepositCreditsBalance(t *testing.T) {
	f := newFixture(t)
	account := f.openAccount(t, "39410675839")

	tx, err := f.service.Deposit(context.Background(), account.ID, dec("100.50"))
	require.NoError(t, err)
	assert.NotZero(t, tx.ID)
	assert.Equal(t, domain.TransactionTypeDeposit, tx.Type)
	assert.True(t, tx.Amount.Equal(dec("100.50")))
	assert.Equal(t, f.clock.Now(), tx.CreatedAt)

	assert.True(t, f.balance(t, account.ID).Equal(dec("100.50")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Transactions.WithLabelValues("DEPOSIT", metrics.ResultSuccess)))

	msgs, err := f.outbox.GetPendingMessagesTx(context.Background(), f.store.Querier(), 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, string(domain.EventTransactionPosted), msgs[0].MessageType)
}

func TestWithdrawDebitsBalance(t *testing.T) {
	f := newFixture(t)
	account := f.openAccount(t, "39410675839")
	ctx := context.Background()

	_, err := f.service.Deposit(ctx, account.ID, dec("500"))
	require.NoError(t, err)
	tx, err := f.service.Withdraw(ctx, account.ID, dec("120.25"))
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionTypeWithdraw, tx.Type)
	assert.True(t, tx.Amount.Equal(dec("120.25")), "withdrawals keep the requested amount")
	assert.True(t, f.balance(t, account.ID).Equal(dec("379.75")))
}

func TestWithdrawMoreThanBalanceIsRejected(t *testing.T) {
	f := newFixture(t)
	account := f.openAccount(t, "39410675839")
	ctx := context.Background()

	_, err := f.service.Deposit(ctx, account.ID, dec("50"))
	require.NoError(t, err)

	_, err = f.service.Withdraw(ctx, account.ID, dec("50.01"))
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
	assert.True(t, f.balance(t, account.ID).Equal(dec("50")))
	assert.Len(t, f.statement(t, account.ID), 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Transactions.WithLabelValues("WITHDRAW", metrics.ResultRejected)))
}

func TestInactiveAccountsRejectTransactions(t *testing.T) {
	for _, state := range []domain.AccountState{domain.AccountStateBlocked, domain.AccountStateClosed} {
		t.Run(string(state), func(t *testing.T) {
			f := newFixture(t)
			account := f.openAccount(t, "39410675839")
			ctx := context.Background()
			_, err := f.service.Deposit(ctx, account.ID, dec("100"))
			require.NoError(t, err)
			f.setState(t, account.ID, state)

			_, err = f.service.Deposit(ctx, account.ID, dec("10"))
			assert.ErrorIs(t, err, domain.ErrTransactionNotAllowed)
			_, err = f.service.Withdraw(ctx, account.ID, dec("10"))
			assert.ErrorIs(t, err, domain.ErrTransactionNotAllowed)

			assert.True(t, f.balance(t, account.ID).Equal(dec("100")))
			assert.Len(t, f.statement(t, account.ID), 1)
		})
	}
}

func TestUnknownAccount(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.Deposit(context.Background(), 404, dec("10"))
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
	_, err = f.service.Withdraw(context.Background(), 404, dec("10"))
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestDailyLimit(t *testing.T) {
	f := newFixture(t)
	account := f.openAccount(t, "39410675839")
	ctx := context.Background()

	_, err := f.service.Deposit(ctx, account.ID, dec("5000"))
	require.NoError(t, err)
	_, err = f.service.Withdraw(ctx, account.ID, dec("1900"))
	require.NoError(t, err)

	_, err = f.service.Withdraw(ctx, account.ID, dec("150"))
	assert.ErrorIs(t, err, domain.ErrDailyLimitReached)
	assert.True(t, f.balance(t, account.ID).Equal(dec("3100")))

	_, err = f.service.Withdraw(ctx, account.ID, dec("100"))
	require.NoError(t, err, "exactly reaching the limit is allowed")
	assert.True(t, f.balance(t, account.ID).Equal(dec("3000")))

	_, err = f.service.Withdraw(ctx, account.ID, dec("0.01"))
	assert.ErrorIs(t, err, domain.ErrDailyLimitReached)

	// deposits do not count towards the limit
	_, err = f.service.Deposit(ctx, account.ID, dec("10"))
	require.NoError(t, err)

	f.clock.Set(f.clock.Now().Add(14 * time.Hour))
	_, err = f.service.Withdraw(ctx, account.ID, dec("2000"))
	require.NoError(t, err, "the limit resets on the next calendar day")
}

func TestDailyLimitFollowsConfiguredTimeZone(t *testing.T) {
	saoPaulo := time.FixedZone("BRT", -3*60*60)
	f := newFixture(t, WithLocation(saoPaulo))
	account := f.openAccount(t, "39410675839")
	ctx := context.Background()

	// 23:30 local on the 14th is 02:30 UTC on the 15th.
	f.clock.Set(time.Date(2024, 3, 15, 2, 30, 0, 0, time.UTC))
	_, err := f.service.Deposit(ctx, account.ID, dec("5000"))
	require.NoError(t, err)
	_, err = f.service.Withdraw(ctx, account.ID, dec("2000"))
	require.NoError(t, err)

	// 00:30 local on the 15th.
	f.clock.Set(time.Date(2024, 3, 15, 3, 30, 0, 0, time.UTC))
	_, err = f.service.Withdraw(ctx, account.ID, dec("2000"))
	require.NoError(t, err)

	// 20:00 local, still the 15th.
	f.clock.Set(time.Date(2024, 3, 15, 23, 0, 0, 0, time.UTC))
	_, err = f.service.Withdraw(ctx, account.ID, dec("1"))
	assert.ErrorIs(t, err, domain.ErrDailyLimitReached)
}

func TestStatementByPeriod(t *testing.T) {
	f := newFixture(t)
	account := f.openAccount(t, "39410675839")
	other := f.openAccount(t, "11122233344")
	ctx := context.Background()

	post := func(at time.Time, deposit bool, amount string) {
		f.clock.Set(at)
		var err error
		if deposit {
			_, err = f.service.Deposit(ctx, account.ID, dec(amount))
		} else {
			_, err = f.service.Withdraw(ctx, account.ID, dec(amount))
		}
		require.NoError(t, err)
	}
	post(time.Date(2024, 3, 9, 23, 59, 59, 0, time.UTC), true, "100")
	post(time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), true, "200")
	post(time.Date(2024, 3, 11, 12, 0, 0, 0, time.UTC), false, "50")
	post(time.Date(2024, 3, 12, 23, 59, 59, 0, time.UTC), true, "10")
	post(time.Date(2024, 3, 13, 0, 0, 0, 0, time.UTC), true, "20")
	_, err := f.service.Deposit(ctx, other.ID, dec("999"))
	require.NoError(t, err)

	list, err := f.service.GetStatementByPeriod(ctx, account.ID,
		time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.True(t, list[0].Amount.Equal(dec("10")))
	assert.True(t, list[1].Amount.Equal(dec("50")))
	assert.Equal(t, domain.TransactionTypeWithdraw, list[1].Type)
	assert.True(t, list[2].Amount.Equal(dec("200")))
	for _, tx := range list {
		assert.Equal(t, account.ID, tx.AccountID)
	}

	single, err := f.service.GetStatementByPeriod(ctx, account.ID,
		time.Date(2024, 3, 13, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 13, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Len(t, single, 1)

	empty, err := f.service.GetStatementByPeriod(ctx, account.ID,
		time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	_, err = f.service.GetStatementByPeriod(ctx, account.ID,
		time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestDepositThenWithdrawRestoresBalance(t *testing.T) {
	f := newFixture(t)
	account := f.openAccount(t, "39410675839")
	ctx := context.Background()
	_, err := f.service.Deposit(ctx, account.ID, dec("33.33"))
	require.NoError(t, err)

	for _, amount := range []string{"0.01", "1", "250.75", "1999.99"} {
		_, err := f.service.Deposit(ctx, account.ID, dec(amount))
		require.NoError(t, err)
		_, err = f.service.Withdraw(ctx, account.ID, dec(amount))
		require.NoError(t, err)
		assert.True(t, f.balance(t, account.ID).Equal(dec("33.33")), amount)
		f.clock.Set(f.clock.Now().AddDate(0, 0, 1))
	}
}

func TestOwnerDayScenario(t *testing.T) {
	f := newFixture(t)
	account := f.openAccount(t, "12345678901")
	ctx := context.Background()

	_, err := f.service.Deposit(ctx, account.ID, dec("100"))
	require.NoError(t, err)
	_, err = f.service.Withdraw(ctx, account.ID, dec("30"))
	require.NoError(t, err)
	assert.True(t, f.balance(t, account.ID).Equal(dec("70")))

	// balance is checked before the daily limit
	_, err = f.service.Withdraw(ctx, account.ID, dec("2000"))
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)

	_, err = f.service.Deposit(ctx, account.ID, dec("2000"))
	require.NoError(t, err)
	_, err = f.service.Withdraw(ctx, account.ID, dec("2000"))
	assert.ErrorIs(t, err, domain.ErrDailyLimitReached)
	assert.True(t, f.balance(t, account.ID).Equal(dec("2070")))

	list := f.statement(t, account.ID)
	require.Len(t, list, 3)
	assert.Equal(t, domain.TransactionTypeDeposit, list[0].Type)
	assert.Equal(t, domain.TransactionTypeWithdraw, list[1].Type)
	assert.Equal(t, domain.TransactionTypeDeposit, list[2].Type)
}

func TestConcurrentWithdrawalsNeverOverdraw(t *testing.T) {
	f := newFixture(t)
	account := f.openAccount(t, "39410675839")
	ctx := context.Background()
	_, err := f.service.Deposit(ctx, account.ID, dec("1000"))
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.service.Withdraw(ctx, account.ID, dec("50"))
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
		}()
	}
	wg.Wait()

	assert.Equal(t, 20, succeeded)
	assert.True(t, f.balance(t, account.ID).IsZero())
	assert.Len(t, f.statement(t, account.ID), 21)
}

func TestStrictAmounts(t *testing.T) {
	ctx := context.Background()

	strict := newFixture(t, WithStrictAmounts(true))
	account := strict.openAccount(t, "39410675839")
	for _, amount := range []string{"0", "-5"} {
		_, err := strict.service.Deposit(ctx, account.ID, dec(amount))
		assert.ErrorIs(t, err, domain.ErrValidation, amount)
		_, err = strict.service.Withdraw(ctx, account.ID, dec(amount))
		assert.ErrorIs(t, err, domain.ErrValidation, amount)
	}
	assert.Empty(t, strict.statement(t, account.ID))

	permissive := newFixture(t)
	account = permissive.openAccount(t, "39410675839")
	_, err := permissive.service.Deposit(ctx, account.ID, dec("0"))
	require.NoError(t, err)
	assert.Len(t, permissive.statement(t, account.ID), 1)
}

func TestAmountsKeepTheirStoredScale(t *testing.T) {
	f := newFixture(t)
	account := f.openAccount(t, "39410675839")
	ctx := context.Background()

	posted, err := f.service.Deposit(ctx, account.ID, dec("0.005"))
	require.NoError(t, err)
	assert.True(t, posted.Amount.Equal(dec("0.005")))
	list := f.statement(t, account.ID)
	require.Len(t, list, 1)
	assert.True(t, list[0].Amount.Equal(posted.Amount), "the statement shows the amount that was posted")

	for _, amount := range []string{"0.000001", "12.3456789"} {
		_, err = f.service.Deposit(ctx, account.ID, dec(amount))
		assert.ErrorIs(t, err, domain.ErrValidation, amount)
		_, err = f.service.Withdraw(ctx, account.ID, dec(amount))
		assert.ErrorIs(t, err, domain.ErrValidation, amount)
	}
	assert.True(t, f.balance(t, account.ID).Equal(dec("0.005")))
	assert.Len(t, f.statement(t, account.ID), 1)
}

func TestProcessTransactionRequest(t *testing.T) {
	f := newFixture(t)
	account := f.openAccount(t, "39410675839")
	ctx := context.Background()
	req := domain.TransactionRequest{RequestID: "req-1", AccountID: account.ID, Type: "deposit", Amount: dec("75")}

	require.NoError(t, f.service.ProcessTransactionRequest(ctx, "ledger_transaction_requests", req, []byte(`{"request_id":"req-1"}`)))
	require.NoError(t, f.service.ProcessTransactionRequest(ctx, "ledger_transaction_requests", req, []byte(`{"request_id":"req-1"}`)))

	assert.True(t, f.balance(t, account.ID).Equal(dec("75")), "a redelivered request is applied once")
	msg, err := f.inbox.GetMessageTx(ctx, f.store.Querier(), "req-1")
	require.NoError(t, err)
	assert.Equal(t, domain.InboxStatusProcessed, msg.Status)
	assert.Equal(t, "ledger_transaction_requests", msg.Source)
	assert.NotNil(t, msg.ProcessedAt)
}

func TestProcessTransactionRequestRecordsRejections(t *testing.T) {
	f := newFixture(t)
	account := f.openAccount(t, "39410675839")
	ctx := context.Background()

	cases := []struct {
		req     domain.TransactionRequest
		wantErr error
	}{
		{domain.TransactionRequest{RequestID: "r-overdraw", AccountID: account.ID, Type: "WITHDRAW", Amount: dec("1")}, domain.ErrInsufficientBalance},
		{domain.TransactionRequest{RequestID: "r-type", AccountID: account.ID, Type: "TRANSFER", Amount: dec("1")}, domain.ErrValidation},
		{domain.TransactionRequest{RequestID: "r-account", AccountID: 999, Type: "DEPOSIT", Amount: dec("1")}, domain.ErrAccountNotFound},
	}
	for _, tc := range cases {
		require.NoError(t, f.service.ProcessTransactionRequest(ctx, "src", tc.req, nil))
		msg, err := f.inbox.GetMessageTx(ctx, f.store.Querier(), tc.req.RequestID)
		require.NoError(t, err)
		assert.Equal(t, domain.InboxStatusFailed, msg.Status, tc.req.RequestID)
		assert.Contains(t, msg.Error, tc.wantErr.Error(), tc.req.RequestID)
	}
	assert.True(t, f.balance(t, account.ID).IsZero())

	assert.NoError(t, f.service.ProcessTransactionRequest(ctx, "src", domain.TransactionRequest{Type: "DEPOSIT"}, nil),
		"requests without an id are dropped")
}

type failingInbox struct {
	*memory.InboxRepository
}

func (failingInbox) UpdateStatusTx(context.Context, domain.Querier, string, domain.InboxMessageStatus, string, time.Time) error {
	return errors.New("connection reset")
}

func TestProcessTransactionRequestRollsBackOnStoreFailure(t *testing.T) {
	f := newFixture(t)
	f.service = NewTransactionService(
		f.store,
		f.accounts,
		memory.NewTransactionRepository(f.store),
		zap.NewNop(),
		WithClock(f.clock.Now),
		WithInbox(failingInbox{f.inbox}),
	)
	account := f.openAccount(t, "39410675839")
	ctx := context.Background()
	req := domain.TransactionRequest{RequestID: "req-1", AccountID: account.ID, Type: "DEPOSIT", Amount: dec("10")}

	err := f.service.ProcessTransactionRequest(ctx, "src", req, nil)
	require.Error(t, err)
	assert.True(t, f.balance(t, account.ID).IsZero())
	_, err = f.inbox.GetMessageTx(ctx, f.store.Querier(), "req-1")
	assert.ErrorIs(t, err, domain.ErrNotFound, "the request can be redelivered")
}
