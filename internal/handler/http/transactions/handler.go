package transactions_http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"ledger/internal/app/transactions"
	"ledger/internal/domain"
	"ledger/internal/handler/http/response"
)

type TransactionHandler struct {
	service transactions.TransactionService
	logger  *zap.Logger
}

func NewTransactionHandler(s transactions.TransactionService, l *zap.Logger) *TransactionHandler {
	return &TransactionHandler{service: s, logger: l}
}

type TransactionRequest struct {
	AccountID int64           `json:"account_id"`
	Amount    decimal.Decimal `json:"amount"`
}

type TransactionResponse struct {
	TransactionID   int64           `json:"transaction_id"`
	Account         int64           `json:"account"`
	Amount          decimal.Decimal `json:"amount"`
	TransactionType int             `json:"transaction_type"`
	CreatedAt       time.Time       `json:"created_at"`
}

func NewTransactionResponse(t *domain.Transaction) TransactionResponse {
	return TransactionResponse{
		TransactionID:   t.ID,
		Account:         t.AccountID,
		Amount:          t.Amount,
		TransactionType: int(t.Type),
		CreatedAt:       t.CreatedAt,
	}
}

type postFunc func(r *http.Request, accountID int64, amount decimal.Decimal) (*domain.Transaction, error)

func (h *TransactionHandler) DepositHandler(w http.ResponseWriter, r *http.Request) {
	h.post(w, r, func(r *http.Request, accountID int64, amount decimal.Decimal) (*domain.Transaction, error) {
		return h.service.Deposit(r.Context(), accountID, amount)
	})
}

func (h *TransactionHandler) WithdrawHandler(w http.ResponseWriter, r *http.Request) {
	h.post(w, r, func(r *http.Request, accountID int64, amount decimal.Decimal) (*domain.Transaction, error) {
		return h.service.Withdraw(r.Context(), accountID, amount)
	})
}

func (h *TransactionHandler) post(w http.ResponseWriter, r *http.Request, fn postFunc) {
	var req TransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.WriteError(w, domain.Validationf("invalid request body: %v", err), h.logger)
		return
	}

	t, err := fn(r, req.AccountID, req.Amount)
	if err != nil {
		response.WriteError(w, err, h.logger)
		return
	}
	response.WriteJSON(w, http.StatusCreated, NewTransactionResponse(t), h.logger)
}

func (h *TransactionHandler) GetStatementHandler(w http.ResponseWriter, r *http.Request) {
	accountIDStr := chi.URLParam(r, "account_id")
	accountID, err := strconv.ParseInt(accountIDStr, 10, 64)
	if err != nil {
		response.WriteError(w, domain.Validationf("invalid account_id %q", accountIDStr), h.logger)
		return
	}
	startDate, err := parseDate(r, "start_date")
	if err != nil {
		response.WriteError(w, err, h.logger)
		return
	}
	endDate, err := parseDate(r, "end_date")
	if err != nil {
		response.WriteError(w, err, h.logger)
		return
	}

	statement, err := h.service.GetStatementByPeriod(r.Context(), accountID, startDate, endDate)
	if err != nil {
		response.WriteError(w, err, h.logger)
		return
	}

	resp := make([]TransactionResponse, 0, len(statement))
	for i := range statement {
		resp = append(resp, NewTransactionResponse(&statement[i]))
	}
	response.WriteJSON(w, http.StatusOK, resp, h.logger)
}

func parseDate(r *http.Request, param string) (time.Time, error) {
	raw := r.URL.Query().Get(param)
	if raw == "" {
		return time.Time{}, domain.Validationf("%s is required", param)
	}
	d, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, domain.Validationf("%s must be in YYYY-MM-DD format", param)
	}
	return d, nil
}
