package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"github.com/coreledger/backend/internal/services"
)

func newAuditHandler(t *testing.T) (*AuditHandler, sqlmock.Sqlmock) {
	t.Helper()
	db, mockDB, err := sqlmock.New()
	assert.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewAuditHandler(services.NewAuditService(db)), mockDB
}

func TestAuditHandler_Query(t *testing.T) {
	auditColumns := []string{"id", "user_id", "action", "resource", "metadata", "created_at"}

	t.Run("filters forwarded to the service", func(t *testing.T) {
		handler, mockDB := newAuditHandler(t)

		from, _ := time.Parse(time.RFC3339, "2026-08-01T00:00:00Z")
		mockDB.ExpectQuery("SELECT COUNT\\(\\*\\) FROM audit_logs WHERE user_id = \\$1 AND action = \\$2 AND created_at >= \\$3").
			WithArgs(int64(7), "DEPOSIT", from).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
		mockDB.ExpectQuery("SELECT id, user_id, action, resource, metadata, created_at FROM audit_logs WHERE user_id = \\$1 AND action = \\$2 AND created_at >= \\$3 ORDER BY created_at DESC LIMIT \\$4 OFFSET \\$5").
			WithArgs(int64(7), "DEPOSIT", from, 50, 0).
			WillReturnRows(sqlmock.NewRows(auditColumns).
				AddRow(1, 7, "DEPOSIT", "transaction", []byte(`{"amount":"100"}`), time.Now()))

		req := httptest.NewRequest(http.MethodGet, "/audit?userId=7&action=DEPOSIT&dateFrom=2026-08-01T00:00:00Z", nil)
		rec := httptest.NewRecorder()
		handler.Query(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		var resp auditListResponse
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Len(t, resp.Data, 1)
		assert.Equal(t, "DEPOSIT", resp.Data[0].Action)
		assert.NoError(t, mockDB.ExpectationsWereMet())
	})

	t.Run("invalid userId filter", func(t *testing.T) {
		handler, _ := newAuditHandler(t)

		req := httptest.NewRequest(http.MethodGet, "/audit?userId=abc", nil)
		rec := httptest.NewRecorder()
		handler.Query(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("invalid dateFrom filter", func(t *testing.T) {
		handler, _ := newAuditHandler(t)

		req := httptest.NewRequest(http.MethodGet, "/audit?dateFrom=yesterday", nil)
		rec := httptest.NewRecorder()
		handler.Query(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("invalid page parameter", func(t *testing.T) {
		handler, _ := newAuditHandler(t)

		req := httptest.NewRequest(http.MethodGet, "/audit?page=first", nil)
		rec := httptest.NewRecorder()
		handler.Query(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
