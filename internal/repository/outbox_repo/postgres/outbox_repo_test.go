package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger/internal/domain"
)

func TestCreateMessageTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)
	msg := &domain.OutboxMessage{
		ID:            "m-1",
		AggregateID:   "3",
		AggregateType: domain.AggregateAccount,
		MessageType:   string(domain.EventTransactionPosted),
		Topic:         "ledger_events",
		Key:           "3",
		Payload:       []byte(`{"account_id":3}`),
		Status:        domain.OutboxStatusPending,
		CreatedAt:     now,
	}
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO outbox_messages")).
		WithArgs("m-1", "3", "account", "TRANSACTION_POSTED", "ledger_events", "3", []byte(`{"account_id":3}`), domain.OutboxStatusPending, 0, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, NewOutboxRepository().CreateMessageTx(context.Background(), db, msg))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetPendingMessagesTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "aggregate_id", "aggregate_type", "message_type", "topic", "message_key", "payload", "status", "attempts", "last_error", "created_at", "sent_at"}).
		AddRow("m-1", "3", "account", "ACCOUNT_CREATED", "ledger_events", "3", []byte("{}"), "PENDING", 0, nil, now, nil).
		AddRow("m-2", "3", "account", "ACCOUNT_BLOCKED", "ledger_events", "3", []byte("{}"), "PENDING", 2, "broker down", now, nil)
	mock.ExpectQuery(`FOR UPDATE SKIP LOCKED`).
		WithArgs(domain.OutboxStatusPending, 10).
		WillReturnRows(rows)

	msgs, err := NewOutboxRepository().GetPendingMessagesTx(context.Background(), db, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "m-1", msgs[0].ID)
	assert.Equal(t, "", msgs[0].LastError)
	assert.Equal(t, 2, msgs[1].Attempts)
	assert.Equal(t, "broker down", msgs[1].LastError)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkSentTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE outbox_messages")).
		WithArgs(domain.OutboxStatusSent, now, "m-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE outbox_messages")).
		WithArgs(domain.OutboxStatusSent, now, "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewOutboxRepository()
	require.NoError(t, repo.MarkSentTx(context.Background(), db, "m-1", now))
	assert.ErrorIs(t, repo.MarkSentTx(context.Background(), db, "missing", now), domain.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkAttemptFailedTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SET attempts = attempts + 1")).
		WithArgs("m-1", "timeout", 5, domain.OutboxStatusFailed).
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("FAILED"))

	status, err := NewOutboxRepository().MarkAttemptFailedTx(context.Background(), db, "m-1", "timeout", 5)
	require.NoError(t, err)
	assert.Equal(t, domain.OutboxStatusFailed, status)
	assert.NoError(t, mock.ExpectationsWereMet())
}
