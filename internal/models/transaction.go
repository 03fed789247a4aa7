package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TypeDeposit          TransactionType = "DEPOSIT"
	TypeWithdrawal       TransactionType = "WITHDRAWAL"
	TypeInternalTransfer TransactionType = "INTERNAL_TRANSFER"
	TypeExternalTransfer TransactionType = "EXTERNAL_TRANSFER"
)

// Transaction is one immutable ledger entry. DEPOSIT carries only a
// destination account, WITHDRAWAL and EXTERNAL_TRANSFER only a source.
// An internal transfer produces two rows sharing the same source and
// destination pair, one per mutated account, each with that account's
// own post-operation balance.
type Transaction struct {
	ID                   string          `json:"id" db:"id"`
	Type                 TransactionType `json:"type" db:"type"`
	Amount               decimal.Decimal `json:"amount" db:"amount"`
	SourceAccountID      *int64          `json:"sourceAccountId,omitempty" db:"source_account_id"`
	DestinationAccountID *int64          `json:"destinationAccountId,omitempty" db:"destination_account_id"`
	ExternalBankCode     *string         `json:"externalBankCode,omitempty" db:"external_bank_code"`
	ExternalBankName     *string         `json:"externalBankName,omitempty" db:"external_bank_name"`
	ExternalAgency       *string         `json:"externalAgency,omitempty" db:"external_agency"`
	ExternalAccount      *string         `json:"externalAccount,omitempty" db:"external_account"`
	ExternalCpf          *string         `json:"externalCpf,omitempty" db:"external_cpf"`
	BalanceAfter         decimal.Decimal `json:"balanceAfter" db:"balance_after"`
	CreatedAt            time.Time       `json:"createdAt" db:"created_at"`

	// Populated only by the admin listing.
	SourceAccount      *AccountSummary `json:"sourceAccount,omitempty" db:"-"`
	DestinationAccount *AccountSummary `json:"destinationAccount,omitempty" db:"-"`
}

// PageMeta describes one page of a paginated result set.
type PageMeta struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int64 `json:"totalPages"`
}

func NewPageMeta(total int64, page, limit int) PageMeta {
	totalPages := total / int64(limit)
	if total%int64(limit) != 0 {
		totalPages++
	}
	return PageMeta{Total: total, Page: page, Limit: limit, TotalPages: totalPages}
}
