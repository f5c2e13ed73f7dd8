package accounts_http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"ledger/internal/app/accounts"
	"ledger/internal/domain"
	"ledger/internal/handler/http/response"
)

const OwnerRemovedMessage = "Account owner successfully removed"

type AccountHandler struct {
	service accounts.AccountService
	logger  *zap.Logger
}

func NewAccountHandler(s accounts.AccountService, l *zap.Logger) *AccountHandler {
	return &AccountHandler{service: s, logger: l}
}

type CreateOwnerRequest struct {
	Name string `json:"name"`
	CPF  string `json:"cpf"`
}

type CreateAccountRequest struct {
	AccountOwnerID int64 `json:"account_owner_id"`
}

type AccountIDRequest struct {
	AccountID int64 `json:"account_id"`
}

type OwnerResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CPF       string    `json:"cpf"`
	CreatedAt time.Time `json:"created_at"`
}

type AccountResponse struct {
	AccountID             int64           `json:"account_id"`
	Agency                string          `json:"agency"`
	CheckingAccountNumber int             `json:"checking_account_number"`
	State                 string          `json:"state"`
	Balance               decimal.Decimal `json:"balance"`
	DailyLimit            decimal.Decimal `json:"daily_limit"`
	AccountOwner          int64           `json:"account_owner"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             *time.Time      `json:"updated_at"`
	ClosedAt              *time.Time      `json:"closed_at,omitempty"`
}

func NewOwnerResponse(o *domain.AccountOwner) OwnerResponse {
	return OwnerResponse{ID: o.ID, Name: o.Name, CPF: o.CPF, CreatedAt: o.CreatedAt}
}

func NewAccountResponse(a *domain.Account) AccountResponse {
	return AccountResponse{
		AccountID:             a.ID,
		Agency:                a.Agency,
		CheckingAccountNumber: a.CheckingAccountNumber,
		State:                 string(a.State),
		Balance:               a.Balance,
		DailyLimit:            a.DailyLimit,
		AccountOwner:          a.OwnerID,
		CreatedAt:             a.CreatedAt,
		UpdatedAt:             a.UpdatedAt,
		ClosedAt:              a.ClosedAt,
	}
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return domain.Validationf("invalid request body: %v", err)
	}
	return nil
}

func (h *AccountHandler) CreateOwnerHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateOwnerRequest
	if err := decodeBody(r, &req); err != nil {
		response.WriteError(w, err, h.logger)
		return
	}

	owner, err := h.service.CreateOwner(r.Context(), req.Name, req.CPF)
	if err != nil {
		response.WriteError(w, err, h.logger)
		return
	}
	response.WriteJSON(w, http.StatusCreated, NewOwnerResponse(owner), h.logger)
}

func (h *AccountHandler) RemoveOwnerHandler(w http.ResponseWriter, r *http.Request) {
	cpf := chi.URLParam(r, "cpf")
	if err := h.service.RemoveOwner(r.Context(), cpf); err != nil {
		response.WriteError(w, err, h.logger)
		return
	}
	response.WriteJSON(w, http.StatusOK, OwnerRemovedMessage, h.logger)
}

func (h *AccountHandler) CreateAccountHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := decodeBody(r, &req); err != nil {
		response.WriteError(w, err, h.logger)
		return
	}

	account, err := h.service.CreateAccount(r.Context(), req.AccountOwnerID)
	if err != nil {
		response.WriteError(w, err, h.logger)
		return
	}
	response.WriteJSON(w, http.StatusCreated, NewAccountResponse(account), h.logger)
}

func (h *AccountHandler) GetAccountHandler(w http.ResponseWriter, r *http.Request) {
	accountIDStr := chi.URLParam(r, "account_id")
	accountID, err := strconv.ParseInt(accountIDStr, 10, 64)
	if err != nil {
		response.WriteError(w, domain.Validationf("invalid account_id %q", accountIDStr), h.logger)
		return
	}

	account, err := h.service.GetAccount(r.Context(), accountID)
	if err != nil {
		response.WriteError(w, err, h.logger)
		return
	}
	response.WriteJSON(w, http.StatusOK, NewAccountResponse(account), h.logger)
}

func (h *AccountHandler) BlockAccountHandler(w http.ResponseWriter, r *http.Request) {
	h.changeState(w, r, h.service.BlockAccount)
}

func (h *AccountHandler) UnblockAccountHandler(w http.ResponseWriter, r *http.Request) {
	h.changeState(w, r, h.service.UnblockAccount)
}

func (h *AccountHandler) CloseAccountHandler(w http.ResponseWriter, r *http.Request) {
	h.changeState(w, r, h.service.CloseAccount)
}

type stateChange func(ctx context.Context, accountID int64) (*domain.Account, error)

func (h *AccountHandler) changeState(w http.ResponseWriter, r *http.Request, change stateChange) {
	var req AccountIDRequest
	if err := decodeBody(r, &req); err != nil {
		response.WriteError(w, err, h.logger)
		return
	}

	account, err := change(r.Context(), req.AccountID)
	if err != nil {
		response.WriteError(w, fmt.Errorf("account %d: %w", req.AccountID, err), h.logger)
		return
	}
	response.WriteJSON(w, http.StatusOK, NewAccountResponse(account), h.logger)
}
