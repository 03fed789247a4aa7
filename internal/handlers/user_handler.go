package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/coreledger/backend/internal/middleware"
	"github.com/coreledger/backend/internal/services"
)

type UserHandler struct {
	service   *services.UserService
	validator *services.ValidationHelper
}

func NewUserHandler(service *services.UserService) *UserHandler {
	return &UserHandler{
		service:   service,
		validator: services.NewValidationHelper(),
	}
}

// GetMe returns the caller's profile
// @Summary Own profile
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.User
// @Failure 404 {object} services.ErrorResponse
// @Router /users/me [get]
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.CallerFromContext(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	user, err := h.service.FindByID(r.Context(), caller.UserID)
	if err != nil {
		sendDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// GetUser returns any user by id (admin)
// @Summary User by ID (Admin)
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 200 {object} models.User
// @Failure 404 {object} services.ErrorResponse
// @Router /users/{id} [get]
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := userID(r)
	if err != nil {
		services.SendErrorResponse(w, "Invalid user id", http.StatusBadRequest, nil)
		return
	}

	user, err := h.service.FindByID(r.Context(), id)
	if err != nil {
		sendDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// Update applies a partial profile update. Regular users may only
// update their own profile; admins may update anyone's.
// @Summary Update user
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Param request body object{name=string,email=string,password=string} true "Profile update"
// @Success 200 {object} models.User
// @Failure 400 {object} services.ErrorResponse
// @Failure 403 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /users/{id} [patch]
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.CallerFromContext(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	id, err := userID(r)
	if err != nil {
		services.SendErrorResponse(w, "Invalid user id", http.StatusBadRequest, nil)
		return
	}
	if caller.Role != "ADMIN" && caller.UserID != id {
		services.SendErrorResponse(w, "You can only update your own profile", http.StatusForbidden, nil)
		return
	}

	var req struct {
		Name     *string `json:"name" validate:"omitempty,min=2"`
		Email    *string `json:"email" validate:"omitempty,email"`
		Password *string `json:"password" validate:"omitempty,min=8"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		services.SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	user, err := h.service.Update(r.Context(), id, services.UserUpdate{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		sendDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

func userID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
