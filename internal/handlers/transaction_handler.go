package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/coreledger/backend/internal/middleware"
	"github.com/coreledger/backend/internal/models"
	"github.com/coreledger/backend/internal/services"
)

type TransactionHandler struct {
	service   *services.TransactionService
	validator *services.ValidationHelper
}

func NewTransactionHandler(service *services.TransactionService) *TransactionHandler {
	return &TransactionHandler{
		service:   service,
		validator: services.NewValidationHelper(),
	}
}

type transactionListResponse struct {
	Data []models.Transaction `json:"data"`
	Meta models.PageMeta      `json:"meta"`
}

// Deposit credits the caller's account
// @Summary Deposit into own account
// @Tags transactions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{amount=float64} true "Deposit request"
// @Success 201 {object} models.Transaction
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /transactions/deposit [post]
func (h *TransactionHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.CallerFromContext(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req struct {
		Amount float64 `json:"amount" validate:"required,gt=0"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		services.SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		services.SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}

	txn, err := h.service.Deposit(r.Context(), caller.UserID, amount)
	if err != nil {
		sendDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, txn)
}

// Withdraw debits the caller's account
// @Summary Withdraw from own account
// @Tags transactions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{amount=float64} true "Withdraw request"
// @Success 201 {object} models.Transaction
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /transactions/withdraw [post]
func (h *TransactionHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.CallerFromContext(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req struct {
		Amount float64 `json:"amount" validate:"required,gt=0"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		services.SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		services.SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}

	txn, err := h.service.Withdraw(r.Context(), caller.UserID, amount)
	if err != nil {
		sendDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, txn)
}

// InternalTransfer moves value to another account of this bank
// @Summary Internal transfer
// @Tags transactions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{toAccountNumber=string,amount=float64} true "Transfer request"
// @Success 201 {array} models.Transaction
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /transactions/transfer/internal [post]
func (h *TransactionHandler) InternalTransfer(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.CallerFromContext(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req struct {
		ToAccountNumber string  `json:"toAccountNumber" validate:"required"`
		Amount          float64 `json:"amount" validate:"required,gt=0"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		services.SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		services.SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}

	pair, err := h.service.InternalTransfer(r.Context(), caller.UserID, req.ToAccountNumber, amount)
	if err != nil {
		sendDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, pair)
}

// ExternalTransfer debits the caller's account towards another bank
// @Summary External transfer
// @Tags transactions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{bankCode=string,agency=string,accountNumber=string,cpf=string,amount=float64} true "External transfer request"
// @Success 201 {object} models.Transaction
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /transactions/transfer/external [post]
func (h *TransactionHandler) ExternalTransfer(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.CallerFromContext(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req struct {
		BankCode      string  `json:"bankCode" validate:"required,len=3"`
		Agency        string  `json:"agency" validate:"required"`
		AccountNumber string  `json:"accountNumber" validate:"required"`
		Cpf           string  `json:"cpf" validate:"required,cpf"`
		Amount        float64 `json:"amount" validate:"required,gt=0"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		services.SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		services.SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}

	txn, err := h.service.ExternalTransfer(r.Context(), caller.UserID, services.ExternalTransferInput{
		BankCode:      req.BankCode,
		Agency:        req.Agency,
		AccountNumber: req.AccountNumber,
		Cpf:           req.Cpf,
		Amount:        amount,
	})
	if err != nil {
		sendDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, txn)
}

// GetHistory returns the caller's transaction history
// @Summary Own transaction history
// @Tags transactions
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number (default 1)"
// @Param limit query int false "Page size (default 50, max 100)"
// @Success 200 {object} transactionListResponse
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /transactions/history [get]
func (h *TransactionHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.CallerFromContext(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	page, limit, err := parsePagination(r)
	if err != nil {
		services.SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}
	transactions, meta, err := h.service.GetHistory(r.Context(), caller.UserID, page, limit)
	if err != nil {
		sendDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, transactionListResponse{Data: transactions, Meta: meta})
}

// ListAll returns every transaction with account summaries (admin)
// @Summary All transactions (Admin)
// @Tags transactions
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number (default 1)"
// @Param limit query int false "Page size (default 50, max 100)"
// @Success 200 {object} transactionListResponse
// @Failure 400 {object} services.ErrorResponse
// @Failure 403 {object} services.ErrorResponse
// @Router /transactions [get]
func (h *TransactionHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	page, limit, err := parsePagination(r)
	if err != nil {
		services.SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}
	transactions, meta, err := h.service.GetAllTransactions(r.Context(), page, limit)
	if err != nil {
		sendDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, transactionListResponse{Data: transactions, Meta: meta})
}

// parsePagination reads the page/limit query parameters. Malformed
// values are rejected rather than silently replaced with defaults,
// matching the filter handling on the audit routes.
func parsePagination(r *http.Request) (int, int, error) {
	page := 1
	limit := 50
	if raw := r.URL.Query().Get("page"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return 0, 0, errors.New("invalid page parameter")
		}
		page = v
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return 0, 0, errors.New("invalid limit parameter")
		}
		limit = v
	}
	return page, limit, nil
}
