package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ledger/internal/app/transactions"
	"ledger/internal/domain"
)

type recordingService struct {
	transactions.TransactionService
	source string
	req    domain.TransactionRequest
	raw    []byte
	calls  int
	err    error
}

func (s *recordingService) ProcessTransactionRequest(_ context.Context, source string, req domain.TransactionRequest, raw []byte) error {
	s.calls++
	s.source, s.req, s.raw = source, req, raw
	return s.err
}

func TestTransactionRequestMessageHandler(t *testing.T) {
	svc := &recordingService{}
	handler := TransactionRequestMessageHandler(svc, zap.NewNop())
	value := []byte(`{"request_id":"req-1","account_id":7,"type":"WITHDRAW","amount":"12.34"}`)

	err := handler(context.Background(), kafka.Message{Topic: "ledger_transaction_requests", Value: value})
	require.NoError(t, err)
	assert.Equal(t, 1, svc.calls)
	assert.Equal(t, "ledger_transaction_requests", svc.source)
	assert.Equal(t, "req-1", svc.req.RequestID)
	assert.Equal(t, int64(7), svc.req.AccountID)
	assert.Equal(t, "WITHDRAW", svc.req.Type)
	assert.True(t, svc.req.Amount.Equal(decimal.RequireFromString("12.34")))
	assert.Equal(t, value, svc.raw)
}

func TestTransactionRequestMessageHandlerSkipsMalformed(t *testing.T) {
	svc := &recordingService{}
	handler := TransactionRequestMessageHandler(svc, zap.NewNop())

	require.NoError(t, handler(context.Background(), kafka.Message{Value: []byte(`not json`)}))
	assert.Zero(t, svc.calls)
}

func TestTransactionRequestMessageHandlerPropagatesFailures(t *testing.T) {
	svc := &recordingService{err: errors.New("connection refused")}
	handler := TransactionRequestMessageHandler(svc, zap.NewNop())

	err := handler(context.Background(), kafka.Message{Value: []byte(`{"request_id":"req-2","account_id":1,"type":"DEPOSIT","amount":1}`)})
	assert.ErrorIs(t, err, svc.err)
}
