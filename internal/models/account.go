package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type AccountStatus string

const (
	AccountActive  AccountStatus = "ACTIVE"
	AccountBlocked AccountStatus = "BLOCKED"
)

// Account holds the balance for exactly one user. Balance is NUMERIC(15,2)
// in the store and is only ever written inside a committed ledger operation.
type Account struct {
	ID            int64           `json:"id" db:"id"`
	UserID        int64           `json:"userId" db:"user_id"`
	AccountNumber string          `json:"accountNumber" db:"account_number"`
	Balance       decimal.Decimal `json:"balance" db:"balance"`
	Status        AccountStatus   `json:"status" db:"status"`
	CreatedAt     time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time       `json:"updatedAt" db:"updated_at"`
}

// AccountSummary is the denormalized view attached to admin transaction
// listings.
type AccountSummary struct {
	ID            int64  `json:"id"`
	AccountNumber string `json:"accountNumber"`
	UserID        int64  `json:"userId"`
}
