package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/coreledger/backend/internal/services"
)

// decodeJSON decodes a single JSON object into dst with the usual
// hardening: bounded body, unknown fields rejected, trailing content
// rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("request body must only contain a single JSON object")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}

// sendDomainError maps a service error to its stable HTTP response.
// Store internals never leak to the caller.
func sendDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrAccountNotFound),
		errors.Is(err, services.ErrUserNotFound):
		services.SendErrorResponse(w, err.Error(), http.StatusNotFound, nil)
	case errors.Is(err, services.ErrDuplicateAccount),
		errors.Is(err, services.ErrAccountBlocked),
		errors.Is(err, services.ErrInsufficientBalance),
		errors.Is(err, services.ErrSameAccountTransfer),
		errors.Is(err, services.ErrInvalidBankCode),
		errors.Is(err, services.ErrNoOpStatusChange),
		errors.Is(err, services.ErrEmailTaken):
		services.SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
	case errors.Is(err, services.ErrInvalidCredentials):
		services.SendErrorResponse(w, err.Error(), http.StatusUnauthorized, nil)
	case errors.Is(err, services.ErrExternalValidationUnavailable):
		services.SendErrorResponse(w, err.Error(), http.StatusServiceUnavailable, nil)
	case errors.Is(err, services.ErrOperationFailed):
		services.SendErrorResponse(w, services.ErrOperationFailed.Error(), http.StatusInternalServerError, nil)
	default:
		log.Printf("[HTTP] Internal error: %v", err)
		services.SendErrorResponse(w, "Internal server error", http.StatusInternalServerError, nil)
	}
}

// parseAmount converts a JSON amount into the fixed-point money type,
// rejecting more than two fractional digits.
func parseAmount(value float64) (decimal.Decimal, error) {
	d := decimal.NewFromFloat(value)
	if !d.Equal(d.Truncate(2)) {
		return decimal.Decimal{}, errors.New("amount must have at most 2 decimal places")
	}
	return d, nil
}
