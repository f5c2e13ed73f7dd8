package accounts_http

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"ledger/internal/app/accounts"
)

func RegisterRoutes(r chi.Router, s accounts.AccountService, l *zap.Logger) {
	handler := NewAccountHandler(s, l.With(zap.String("component", "AccountHTTPHandler")))

	r.Route("/v1/accounts", func(r chi.Router) {
		r.Post("/owner", handler.CreateOwnerHandler)
		r.Delete("/owner/{cpf}", handler.RemoveOwnerHandler)
		r.Post("/create", handler.CreateAccountHandler)
		r.Post("/block", handler.BlockAccountHandler)
		r.Post("/unblock", handler.UnblockAccountHandler)
		r.Post("/close", handler.CloseAccountHandler)
		r.Get("/{account_id}", handler.GetAccountHandler)
	})
}
