package transactions_http

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"ledger/internal/app/transactions"
)

func RegisterRoutes(r chi.Router, s transactions.TransactionService, l *zap.Logger) {
	handler := NewTransactionHandler(s, l.With(zap.String("component", "TransactionHTTPHandler")))

	r.Route("/v1/transactions", func(r chi.Router) {
		r.Post("/deposit", handler.DepositHandler)
		r.Post("/withdraw", handler.WithdrawHandler)
		r.Get("/statement/{account_id}", handler.GetStatementHandler)
	})
}
