package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"ledger/internal/domain"
)

// ErrorBody is returned for every rejected request.
type ErrorBody struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

type errorKind struct {
	target  error
	status  int
	title   string
	message string
}

// Ordered: the specific not-found errors must match before ErrNotFound.
var errorKinds = []errorKind{
	{domain.ErrOwnerNotFound, http.StatusNotFound, "Object AccountOwner not found", "Account owner not found"},
	{domain.ErrAccountNotFound, http.StatusNotFound, "Object Account not found", "Account not found"},
	{domain.ErrNotFound, http.StatusNotFound, "Object not found", "Object not found"},
	{domain.ErrTransactionNotAllowed, http.StatusUnprocessableEntity, "Transaction not allowed", "Transaction allowed for active accounts only."},
	{domain.ErrInsufficientBalance, http.StatusUnprocessableEntity, "Insufficient balance", "Insufficient balance for this transaction"},
	{domain.ErrDailyLimitReached, http.StatusUnprocessableEntity, "Daily limit reached", "Daily limit reached for this account"},
	{domain.ErrInvalidStateTransition, http.StatusUnprocessableEntity, "Invalid state transition", "Closed accounts cannot change state"},
	{domain.ErrOwnerHasAccounts, http.StatusConflict, "Account owner has accounts", "Account owner still has accounts and cannot be removed"},
	{domain.ErrDuplicateKey, http.StatusConflict, "Object already exists", "An object with the same key already exists"},
}

// StatusFor resolves err to the HTTP status and public body it is reported
// with. Unknown errors resolve to 500 and a nil body.
func StatusFor(err error) (int, *ErrorBody) {
	if errors.Is(err, domain.ErrValidation) {
		return http.StatusUnprocessableEntity, &ErrorBody{Title: "Validation error", Message: validationMessage(err)}
	}
	for _, k := range errorKinds {
		if errors.Is(err, k.target) {
			return k.status, &ErrorBody{Title: k.title, Message: k.message}
		}
	}
	return http.StatusInternalServerError, nil
}

// validationMessage strips the wrapping chain down to the reason produced by
// domain.Validationf.
func validationMessage(err error) string {
	msg := err.Error()
	marker := domain.ErrValidation.Error() + ": "
	if i := strings.Index(msg, marker); i >= 0 {
		return msg[i+len(marker):]
	}
	return msg
}

func WriteJSON(w http.ResponseWriter, status int, v any, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to write JSON response", zap.Error(err))
	}
}

// WriteError reports err to the client. Internal errors are logged and
// answered with an empty object so nothing about the store leaks.
func WriteError(w http.ResponseWriter, err error, logger *zap.Logger) {
	status, body := StatusFor(err)
	if body == nil {
		logger.Error("Request failed", zap.Error(err))
		WriteJSON(w, status, struct{}{}, logger)
		return
	}
	logger.Warn("Request rejected", zap.Int("status", status), zap.Error(err))
	WriteJSON(w, status, body, logger)
}
