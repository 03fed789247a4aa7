package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"golang.org/x/crypto/bcrypt"

	"github.com/coreledger/backend/internal/models"
	"github.com/coreledger/backend/internal/services"
)

func newAuthHandler(t *testing.T) (*AuthHandler, sqlmock.Sqlmock) {
	t.Helper()
	db, mockDB, err := sqlmock.New()
	assert.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	viper.Set("jwt.secret_key", "test-secret-key")
	t.Cleanup(func() { viper.Set("jwt.secret_key", "") })

	users := services.NewUserService(db)
	accounts := services.NewAccountService(db)
	audit := services.NewAuditService(db)
	return NewAuthHandler(services.NewAuthService(users, accounts, audit)), mockDB
}

func postJSON(target, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestAuthHandler_Register(t *testing.T) {
	t.Run("successful registration returns user, account and token", func(t *testing.T) {
		handler, mockDB := newAuthHandler(t)

		mockDB.ExpectQuery("INSERT INTO users").
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(3, time.Now()))
		mockDB.ExpectQuery("SELECT id FROM accounts WHERE user_id = \\$1").
			WillReturnError(sql.ErrNoRows)
		mockDB.ExpectQuery("INSERT INTO accounts").
			WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "account_number", "balance", "status", "created_at", "updated_at"}).
				AddRow(9, 3, "17561234567893456", "0.00", models.AccountActive, time.Now(), time.Now()))
		mockDB.ExpectQuery("INSERT INTO audit_logs").
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(1, time.Now()))

		rec := httptest.NewRecorder()
		handler.Register(rec, postJSON("/auth/register", `{"name":"Alice","email":"alice@example.com","password":"s3cret-password"}`))

		assert.Equal(t, http.StatusCreated, rec.Code)

		var result services.RegisterResult
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
		assert.Equal(t, int64(3), result.User.ID)
		assert.NotEmpty(t, result.AccessToken)
		assert.NoError(t, mockDB.ExpectationsWereMet())
	})

	t.Run("short password rejected", func(t *testing.T) {
		handler, _ := newAuthHandler(t)

		rec := httptest.NewRecorder()
		handler.Register(rec, postJSON("/auth/register", `{"name":"Alice","email":"alice@example.com","password":"short"}`))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("invalid email rejected", func(t *testing.T) {
		handler, _ := newAuthHandler(t)

		rec := httptest.NewRecorder()
		handler.Register(rec, postJSON("/auth/register", `{"name":"Alice","email":"not-an-email","password":"s3cret-password"}`))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestAuthHandler_Login(t *testing.T) {
	userColumns := []string{"id", "name", "email", "password_hash", "role", "created_at"}

	t.Run("valid credentials return a token", func(t *testing.T) {
		handler, mockDB := newAuthHandler(t)

		hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
		assert.NoError(t, err)

		mockDB.ExpectQuery("SELECT id, name, email, password_hash, role, created_at FROM users WHERE email = \\$1").
			WithArgs("alice@example.com").
			WillReturnRows(sqlmock.NewRows(userColumns).
				AddRow(3, "Alice", "alice@example.com", string(hash), models.RoleUser, time.Now()))
		mockDB.ExpectQuery("INSERT INTO audit_logs").
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(2, time.Now()))

		rec := httptest.NewRecorder()
		handler.Login(rec, postJSON("/auth/login", `{"email":"alice@example.com","password":"correct-horse"}`))

		assert.Equal(t, http.StatusOK, rec.Code)

		var resp map[string]string
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp["access_token"])
		assert.NoError(t, mockDB.ExpectationsWereMet())
	})

	t.Run("bad credentials map to 401", func(t *testing.T) {
		handler, mockDB := newAuthHandler(t)

		mockDB.ExpectQuery("SELECT id, name, email, password_hash, role, created_at FROM users WHERE email = \\$1").
			WithArgs("nobody@example.com").
			WillReturnError(sql.ErrNoRows)

		rec := httptest.NewRecorder()
		handler.Login(rec, postJSON("/auth/login", `{"email":"nobody@example.com","password":"whatever"}`))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
