package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// ErrorResponse represents error response structure
type ErrorResponse struct {
	Error   string            `json:"error"`             // Error message
	Details map[string]string `json:"details,omitempty"` // Validation details
}

// ValidationHelper provides shared validation functionality
type ValidationHelper struct {
	validator *validator.Validate
}

// NewValidationHelper creates a new validation helper with the custom
// cpf tag registered.
func NewValidationHelper() *ValidationHelper {
	v := validator.New()
	v.RegisterValidation("cpf", validateCPF)
	return &ValidationHelper{
		validator: v,
	}
}

// ValidateStruct validates a struct and returns validation errors
func (vh *ValidationHelper) ValidateStruct(s any) error {
	return vh.validator.Struct(s)
}

// validateCPF implements the CPF check-digit algorithm: eleven digits
// where digits 10 and 11 are modulo-11 checksums of the preceding
// positions. Repeated-digit sequences (e.g. 11111111111) pass the
// checksum but are not valid documents.
func validateCPF(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if len(value) != 11 {
		return false
	}

	digits := make([]int, 11)
	allSame := true
	for i, c := range value {
		if c < '0' || c > '9' {
			return false
		}
		digits[i] = int(c - '0')
		if digits[i] != digits[0] {
			allSame = false
		}
	}
	if allSame {
		return false
	}

	calcDigit := func(slice int) int {
		sum := 0
		for i := 0; i < slice; i++ {
			sum += digits[i] * (slice + 1 - i)
		}
		remainder := sum % 11
		if remainder < 2 {
			return 0
		}
		return 11 - remainder
	}

	return digits[9] == calcDigit(9) && digits[10] == calcDigit(10)
}

// SendErrorResponse sends a JSON error response
func SendErrorResponse(w http.ResponseWriter, message string, statusCode int, validationErr error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	errorResp := ErrorResponse{Error: message}
	var fieldErrs validator.ValidationErrors
	if errors.As(validationErr, &fieldErrs) {
		errorResp.Details = make(map[string]string)
		for _, err := range fieldErrs {
			errorResp.Details[err.Field()] = fmt.Sprintf("Field Validation Failed on '%s' tag", err.Tag())
		}
	}

	json.NewEncoder(w).Encode(errorResp)
}
