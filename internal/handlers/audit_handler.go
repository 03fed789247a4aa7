package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/coreledger/backend/internal/models"
	"github.com/coreledger/backend/internal/services"
)

type AuditHandler struct {
	service *services.AuditService
}

func NewAuditHandler(service *services.AuditService) *AuditHandler {
	return &AuditHandler{service: service}
}

type auditListResponse struct {
	Data []models.AuditLog `json:"data"`
	Meta models.PageMeta   `json:"meta"`
}

// Query returns audit entries matching the filters (admin)
// @Summary Query audit trail (Admin)
// @Tags audit
// @Produce json
// @Security BearerAuth
// @Param userId query int false "Filter by acting user"
// @Param action query string false "Filter by action (exact match)"
// @Param dateFrom query string false "Inclusive lower bound (RFC 3339)"
// @Param dateTo query string false "Inclusive upper bound (RFC 3339)"
// @Param page query int false "Page number (default 1)"
// @Param limit query int false "Page size (default 50, max 100)"
// @Success 200 {object} auditListResponse
// @Failure 400 {object} services.ErrorResponse
// @Failure 403 {object} services.ErrorResponse
// @Router /audit [get]
func (h *AuditHandler) Query(w http.ResponseWriter, r *http.Request) {
	var q services.AuditQuery

	if raw := r.URL.Query().Get("userId"); raw != "" {
		userID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			services.SendErrorResponse(w, "Invalid userId filter", http.StatusBadRequest, nil)
			return
		}
		q.UserID = &userID
	}
	q.Action = r.URL.Query().Get("action")

	if raw := r.URL.Query().Get("dateFrom"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			services.SendErrorResponse(w, "Invalid dateFrom filter", http.StatusBadRequest, nil)
			return
		}
		q.DateFrom = &t
	}
	if raw := r.URL.Query().Get("dateTo"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			services.SendErrorResponse(w, "Invalid dateTo filter", http.StatusBadRequest, nil)
			return
		}
		q.DateTo = &t
	}

	page, limit, err := parsePagination(r)
	if err != nil {
		services.SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}
	q.Page, q.Limit = page, limit

	logs, meta, err := h.service.Query(r.Context(), q)
	if err != nil {
		sendDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, auditListResponse{Data: logs, Meta: meta})
}
