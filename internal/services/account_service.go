package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/coreledger/backend/internal/models"
)

// BalanceDirection selects how AdjustBalance moves an account balance.
type BalanceDirection string

const (
	BalanceIncrement BalanceDirection = "increment"
	BalanceDecrement BalanceDirection = "decrement"
)

const accountNumberAttempts = 5

// AccountService owns account identity, balance storage and the
// active/blocked lifecycle. Balances are mutated here only through
// AdjustBalance; ledger operations that must also write transaction
// rows atomically perform the adjustment inline in their own store
// transaction.
type AccountService struct {
	db *sql.DB
}

func NewAccountService(db *sql.DB) *AccountService {
	return &AccountService{db: db}
}

const accountColumns = `id, user_id, account_number, balance, status, created_at, updated_at`

// Create allocates a unique account number and opens an ACTIVE account
// with zero balance. Exactly one account may exist per user. The store's
// unique index on account_number is the authoritative uniqueness guard;
// the retry loop only handles the rare collision of the best-effort
// timestamp+random scheme.
func (as *AccountService) Create(ctx context.Context, userID int64) (*models.Account, error) {
	var existingID int64
	err := as.db.QueryRowContext(ctx,
		`SELECT id FROM accounts WHERE user_id = $1`, userID).Scan(&existingID)
	if err == nil {
		return nil, ErrDuplicateAccount
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("checking existing account: %w", err)
	}

	for attempt := 0; attempt < accountNumberAttempts; attempt++ {
		number := generateAccountNumber()

		account := &models.Account{}
		err := as.db.QueryRowContext(ctx, `
			INSERT INTO accounts (user_id, account_number, balance, status, created_at, updated_at)
			VALUES ($1, $2, 0, $3, NOW(), NOW())
			RETURNING `+accountColumns,
			userID, number, models.AccountActive,
		).Scan(
			&account.ID, &account.UserID, &account.AccountNumber,
			&account.Balance, &account.Status, &account.CreatedAt, &account.UpdatedAt,
		)
		if err == nil {
			log.Printf("[ACCOUNT] Created account %s for user %d", account.AccountNumber, userID)
			return account, nil
		}

		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			if strings.Contains(pqErr.Constraint, "user_id") {
				return nil, ErrDuplicateAccount
			}
			log.Printf("[ACCOUNT] Account number collision on attempt %d for user %d", attempt+1, userID)
			continue
		}
		return nil, fmt.Errorf("creating account: %w", err)
	}

	return nil, ErrNumberGenerationExhausted
}

func (as *AccountService) FindByUserID(ctx context.Context, userID int64) (*models.Account, error) {
	return as.findOne(ctx, `SELECT `+accountColumns+` FROM accounts WHERE user_id = $1`, userID)
}

func (as *AccountService) FindByAccountNumber(ctx context.Context, number string) (*models.Account, error) {
	return as.findOne(ctx, `SELECT `+accountColumns+` FROM accounts WHERE account_number = $1`, number)
}

func (as *AccountService) FindByID(ctx context.Context, id int64) (*models.Account, error) {
	return as.findOne(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
}

func (as *AccountService) findOne(ctx context.Context, query string, arg any) (*models.Account, error) {
	account := &models.Account{}
	err := as.db.QueryRowContext(ctx, query, arg).Scan(
		&account.ID, &account.UserID, &account.AccountNumber,
		&account.Balance, &account.Status, &account.CreatedAt, &account.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("fetching account: %w", err)
	}
	return account, nil
}

// AdjustBalance applies a single-account balance change as one atomic
// conditional update. A decrement that would take the balance negative
// leaves the row untouched and returns ErrInsufficientBalance.
func (as *AccountService) AdjustBalance(ctx context.Context, id int64, amount decimal.Decimal, direction BalanceDirection) (*models.Account, error) {
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("adjust amount must be positive, got %s", amount)
	}

	var query string
	switch direction {
	case BalanceIncrement:
		query = `
			UPDATE accounts
			SET balance = balance + $1, updated_at = NOW()
			WHERE id = $2
			RETURNING ` + accountColumns
	case BalanceDecrement:
		query = `
			UPDATE accounts
			SET balance = balance - $1, updated_at = NOW()
			WHERE id = $2 AND balance >= $1
			RETURNING ` + accountColumns
	default:
		return nil, fmt.Errorf("unknown balance direction %q", direction)
	}

	account := &models.Account{}
	err := as.db.QueryRowContext(ctx, query, amount, id).Scan(
		&account.ID, &account.UserID, &account.AccountNumber,
		&account.Balance, &account.Status, &account.CreatedAt, &account.UpdatedAt,
	)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("adjusting balance: %w", err)
	}

	// No row matched: either the account is missing or the conditional
	// decrement was rejected.
	if _, findErr := as.FindByID(ctx, id); findErr != nil {
		return nil, findErr
	}
	return nil, ErrInsufficientBalance
}

// SetStatus toggles the active/blocked gate. Requesting the status the
// account is already in is rejected rather than silently ignored.
func (as *AccountService) SetStatus(ctx context.Context, id int64, status models.AccountStatus) (*models.Account, error) {
	account, err := as.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if account.Status == status {
		return nil, ErrNoOpStatusChange
	}

	updated := &models.Account{}
	err = as.db.QueryRowContext(ctx, `
		UPDATE accounts
		SET status = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING `+accountColumns,
		status, id,
	).Scan(
		&updated.ID, &updated.UserID, &updated.AccountNumber,
		&updated.Balance, &updated.Status, &updated.CreatedAt, &updated.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("updating account status: %w", err)
	}

	log.Printf("[ACCOUNT] Account %d status changed to %s", id, status)
	return updated, nil
}

// generateAccountNumber combines a millisecond timestamp with a random
// four-digit suffix. Best effort only; the unique index catches the
// rare collision.
func generateAccountNumber() string {
	return fmt.Sprintf("%d%04d", time.Now().UnixMilli(), rand.Intn(9000)+1000)
}
