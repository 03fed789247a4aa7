package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func newBankDirectory(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	viper.Set("brasilapi.base_url", server.URL)
	t.Cleanup(func() { viper.Set("brasilapi.base_url", "") })
	return server
}

func TestBrasilAPIService_Validate(t *testing.T) {
	ctx := context.Background()

	t.Run("resolves a known bank", func(t *testing.T) {
		newBankDirectory(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/banks/v1/001", r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"ispb":"00000000","name":"BCO DO BRASIL S.A.","code":1,"fullName":"Banco do Brasil S.A."}`))
		})

		service := NewBrasilAPIService(nil)
		info, err := service.Validate(ctx, "001")
		assert.NoError(t, err)
		assert.Equal(t, "1", info.Code)
		assert.Equal(t, "BCO DO BRASIL S.A.", info.Name)
	})

	t.Run("unknown code returns nil without error", func(t *testing.T) {
		newBankDirectory(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})

		service := NewBrasilAPIService(nil)
		info, err := service.Validate(ctx, "999")
		assert.NoError(t, err)
		assert.Nil(t, info)
	})

	t.Run("directory error surfaces as error", func(t *testing.T) {
		newBankDirectory(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})

		service := NewBrasilAPIService(nil)
		_, err := service.Validate(ctx, "001")
		assert.Error(t, err)
	})

	t.Run("unreachable directory surfaces as error", func(t *testing.T) {
		server := newBankDirectory(t, func(w http.ResponseWriter, r *http.Request) {})
		server.Close()

		service := NewBrasilAPIService(nil)
		_, err := service.Validate(ctx, "001")
		assert.Error(t, err)
	})

	t.Run("cache hit skips the directory", func(t *testing.T) {
		newBankDirectory(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("directory should not be called on a cache hit")
		})

		client, redisMock := redismock.NewClientMock()
		redisMock.ExpectGet("bank:001").SetVal(`{"code":"1","name":"BCO DO BRASIL S.A."}`)

		service := NewBrasilAPIService(client)
		info, err := service.Validate(ctx, "001")
		assert.NoError(t, err)
		assert.Equal(t, "BCO DO BRASIL S.A.", info.Name)
		assert.NoError(t, redisMock.ExpectationsWereMet())
	})

	t.Run("cache miss resolves and caches", func(t *testing.T) {
		newBankDirectory(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"code":260,"name":"NU PAGAMENTOS"}`))
		})

		client, redisMock := redismock.NewClientMock()
		redisMock.ExpectGet("bank:260").RedisNil()
		redisMock.ExpectSet("bank:260", []byte(`{"code":"260","name":"NU PAGAMENTOS"}`), 24*time.Hour).SetVal("OK")

		service := NewBrasilAPIService(client)
		info, err := service.Validate(ctx, "260")
		assert.NoError(t, err)
		assert.Equal(t, "260", info.Code)
		assert.NoError(t, redisMock.ExpectationsWereMet())
	})
}
