package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"github.com/coreledger/backend/internal/middleware"
	"github.com/coreledger/backend/internal/models"
	"github.com/coreledger/backend/internal/services"
)

func newAccountHandler(t *testing.T) (*AccountHandler, sqlmock.Sqlmock) {
	t.Helper()
	db, mockDB, err := sqlmock.New()
	assert.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewAccountHandler(services.NewAccountService(db)), mockDB
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func testAccountRows(id, userID int64, balance string, status models.AccountStatus) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "user_id", "account_number", "balance", "status", "created_at", "updated_at"}).
		AddRow(id, userID, "17561234567891234", balance, status, time.Now(), time.Now())
}

func TestAccountHandler_GetMyAccount(t *testing.T) {
	t.Run("returns the caller's account", func(t *testing.T) {
		handler, mockDB := newAccountHandler(t)

		mockDB.ExpectQuery("SELECT id, user_id, account_number, balance, status, created_at, updated_at FROM accounts WHERE user_id = \\$1").
			WithArgs(int64(7)).
			WillReturnRows(testAccountRows(1, 7, "150.00", models.AccountActive))

		req := httptest.NewRequest(http.MethodGet, "/accounts/me", nil)
		req = req.WithContext(middleware.WithCaller(req.Context(), middleware.Caller{UserID: 7, Role: "USER"}))
		rec := httptest.NewRecorder()
		handler.GetMyAccount(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		var account models.Account
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &account))
		assert.Equal(t, "17561234567891234", account.AccountNumber)
		assert.NoError(t, mockDB.ExpectationsWereMet())
	})

	t.Run("unauthenticated", func(t *testing.T) {
		handler, _ := newAccountHandler(t)

		rec := httptest.NewRecorder()
		handler.GetMyAccount(rec, httptest.NewRequest(http.MethodGet, "/accounts/me", nil))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestAccountHandler_GetAccount(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		handler, mockDB := newAccountHandler(t)

		mockDB.ExpectQuery("SELECT id, user_id, account_number, balance, status, created_at, updated_at FROM accounts WHERE id = \\$1").
			WithArgs(int64(1)).
			WillReturnRows(testAccountRows(1, 7, "150.00", models.AccountActive))

		req := withURLParam(httptest.NewRequest(http.MethodGet, "/accounts/1", nil), "id", "1")
		rec := httptest.NewRecorder()
		handler.GetAccount(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.NoError(t, mockDB.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		handler, mockDB := newAccountHandler(t)

		mockDB.ExpectQuery("SELECT id, user_id, account_number, balance, status, created_at, updated_at FROM accounts WHERE id = \\$1").
			WithArgs(int64(999)).
			WillReturnError(sql.ErrNoRows)

		req := withURLParam(httptest.NewRequest(http.MethodGet, "/accounts/999", nil), "id", "999")
		rec := httptest.NewRecorder()
		handler.GetAccount(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("non numeric id", func(t *testing.T) {
		handler, _ := newAccountHandler(t)

		req := withURLParam(httptest.NewRequest(http.MethodGet, "/accounts/abc", nil), "id", "abc")
		rec := httptest.NewRecorder()
		handler.GetAccount(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestAccountHandler_BlockUnblock(t *testing.T) {
	t.Run("block", func(t *testing.T) {
		handler, mockDB := newAccountHandler(t)

		mockDB.ExpectQuery("SELECT id, user_id, account_number, balance, status, created_at, updated_at FROM accounts WHERE id = \\$1").
			WithArgs(int64(1)).
			WillReturnRows(testAccountRows(1, 7, "150.00", models.AccountActive))
		mockDB.ExpectQuery("UPDATE accounts SET status = \\$1, updated_at = NOW\\(\\) WHERE id = \\$2").
			WithArgs(models.AccountBlocked, int64(1)).
			WillReturnRows(testAccountRows(1, 7, "150.00", models.AccountBlocked))

		req := withURLParam(httptest.NewRequest(http.MethodPatch, "/accounts/1/block", nil), "id", "1")
		rec := httptest.NewRecorder()
		handler.Block(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		var account models.Account
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &account))
		assert.Equal(t, models.AccountBlocked, account.Status)
		assert.NoError(t, mockDB.ExpectationsWereMet())
	})

	t.Run("unblocking an active account is rejected", func(t *testing.T) {
		handler, mockDB := newAccountHandler(t)

		mockDB.ExpectQuery("SELECT id, user_id, account_number, balance, status, created_at, updated_at FROM accounts WHERE id = \\$1").
			WithArgs(int64(1)).
			WillReturnRows(testAccountRows(1, 7, "150.00", models.AccountActive))

		req := withURLParam(httptest.NewRequest(http.MethodPatch, "/accounts/1/unblock", nil), "id", "1")
		rec := httptest.NewRecorder()
		handler.Unblock(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.NoError(t, mockDB.ExpectationsWereMet())
	})
}
