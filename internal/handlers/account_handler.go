package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/coreledger/backend/internal/middleware"
	"github.com/coreledger/backend/internal/models"
	"github.com/coreledger/backend/internal/services"
)

type AccountHandler struct {
	service *services.AccountService
}

func NewAccountHandler(service *services.AccountService) *AccountHandler {
	return &AccountHandler{service: service}
}

// GetMyAccount returns the caller's account
// @Summary Own account
// @Tags accounts
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.Account
// @Failure 404 {object} services.ErrorResponse
// @Router /accounts/me [get]
func (h *AccountHandler) GetMyAccount(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.CallerFromContext(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	account, err := h.service.FindByUserID(r.Context(), caller.UserID)
	if err != nil {
		sendDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, account)
}

// GetAccount returns any account by id (admin)
// @Summary Account by ID (Admin)
// @Tags accounts
// @Produce json
// @Security BearerAuth
// @Param id path int true "Account ID"
// @Success 200 {object} models.Account
// @Failure 404 {object} services.ErrorResponse
// @Router /accounts/{id} [get]
func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	id, err := accountID(r)
	if err != nil {
		services.SendErrorResponse(w, "Invalid account id", http.StatusBadRequest, nil)
		return
	}

	account, err := h.service.FindByID(r.Context(), id)
	if err != nil {
		sendDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, account)
}

// Block sets an account to BLOCKED (admin)
// @Summary Block account (Admin)
// @Tags accounts
// @Produce json
// @Security BearerAuth
// @Param id path int true "Account ID"
// @Success 200 {object} models.Account
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /accounts/{id}/block [patch]
func (h *AccountHandler) Block(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, models.AccountBlocked)
}

// Unblock sets an account back to ACTIVE (admin)
// @Summary Unblock account (Admin)
// @Tags accounts
// @Produce json
// @Security BearerAuth
// @Param id path int true "Account ID"
// @Success 200 {object} models.Account
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /accounts/{id}/unblock [patch]
func (h *AccountHandler) Unblock(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, models.AccountActive)
}

func (h *AccountHandler) setStatus(w http.ResponseWriter, r *http.Request, status models.AccountStatus) {
	id, err := accountID(r)
	if err != nil {
		services.SendErrorResponse(w, "Invalid account id", http.StatusBadRequest, nil)
		return
	}

	account, err := h.service.SetStatus(r.Context(), id, status)
	if err != nil {
		sendDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, account)
}

func accountID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
