package services

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateCPF(t *testing.T) {
	vh := NewValidationHelper()

	type payload struct {
		Cpf string `validate:"required,cpf"`
	}

	tests := []struct {
		name  string
		cpf   string
		valid bool
	}{
		{"valid document", "52998224725", true},
		{"another valid document", "16899535009", true},
		{"bad check digits", "12345678901", false},
		{"repeated digits pass checksum but are rejected", "11111111111", false},
		{"too short", "5299822472", false},
		{"too long", "529982247250", false},
		{"non numeric", "5299822472a", false},
		{"formatted input rejected", "529.982.247-25", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := vh.ValidateStruct(payload{Cpf: tt.cpf})
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidateStruct(t *testing.T) {
	vh := NewValidationHelper()

	type request struct {
		BankCode string  `validate:"required,len=3,numeric"`
		Amount   float64 `validate:"required,gt=0"`
	}

	t.Run("valid request", func(t *testing.T) {
		assert.NoError(t, vh.ValidateStruct(request{BankCode: "001", Amount: 10.50}))
	})

	t.Run("missing fields reported per field", func(t *testing.T) {
		err := vh.ValidateStruct(request{})
		assert.Error(t, err)
	})

	t.Run("bank code length enforced", func(t *testing.T) {
		assert.Error(t, vh.ValidateStruct(request{BankCode: "1", Amount: 10}))
	})
}

func TestSendErrorResponse(t *testing.T) {
	vh := NewValidationHelper()

	type request struct {
		Email string `validate:"required,email"`
	}

	t.Run("validation errors produce per-field details", func(t *testing.T) {
		rec := httptest.NewRecorder()
		SendErrorResponse(rec, "Validation failed", 400, vh.ValidateStruct(request{Email: "nope"}))

		var resp ErrorResponse
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "Validation failed", resp.Error)
		assert.Contains(t, resp.Details, "Email")
	})

	t.Run("non-validation error omits details", func(t *testing.T) {
		rec := httptest.NewRecorder()
		SendErrorResponse(rec, "Something broke", 500, errors.New("plain error"))

		var resp ErrorResponse
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "Something broke", resp.Error)
		assert.Empty(t, resp.Details)
	})
}
