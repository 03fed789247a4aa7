package services

import "errors"

// Domain errors surfaced by the ledger core. Handlers translate these
// into HTTP status codes; internal store errors are never exposed.
var (
	ErrAccountNotFound               = errors.New("account not found")
	ErrDuplicateAccount              = errors.New("user already has an account")
	ErrAccountBlocked                = errors.New("account is blocked")
	ErrInsufficientBalance           = errors.New("insufficient balance")
	ErrSameAccountTransfer           = errors.New("cannot transfer to the same account")
	ErrInvalidBankCode               = errors.New("invalid bank code")
	ErrNoOpStatusChange              = errors.New("account is already in the requested status")
	ErrNumberGenerationExhausted     = errors.New("failed to generate unique account number")
	ErrExternalValidationUnavailable = errors.New("external bank validation unavailable")

	// ErrOperationFailed is returned when a ledger operation exhausted
	// its retries against transient store failures. Atomicity guarantees
	// no partial state was committed.
	ErrOperationFailed = errors.New("operation failed, no changes were applied")

	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("email is already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
)
