package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/coreledger/backend/internal/models"
)

const (
	ledgerRetryAttempts = 3
	ledgerRetryBackoff  = 50 * time.Millisecond
)

// TransactionService orchestrates the money-moving operations. Every
// operation follows the same shape: resolve account state, validate,
// commit balance mutation plus transaction record(s) as one store
// transaction, then append an audit entry. Balance checks are repeated
// inside the transaction on rows locked FOR UPDATE, so two concurrent
// operations on the same account cannot both pass a sufficiency check.
type TransactionService struct {
	db       *sql.DB
	accounts *AccountService
	audit    *AuditService
	banks    BankValidator
}

func NewTransactionService(db *sql.DB, accounts *AccountService, audit *AuditService, banks BankValidator) *TransactionService {
	return &TransactionService{
		db:       db,
		accounts: accounts,
		audit:    audit,
		banks:    banks,
	}
}

// ExternalTransferInput carries the destination details for an external
// transfer. The bank code is resolved against the bank directory before
// any mutation.
type ExternalTransferInput struct {
	BankCode      string
	Agency        string
	AccountNumber string
	Cpf           string
	Amount        decimal.Decimal
}

// Deposit credits the caller's account and records one DEPOSIT row.
func (ts *TransactionService) Deposit(ctx context.Context, userID int64, amount decimal.Decimal) (*models.Transaction, error) {
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be positive, got %s", amount)
	}

	account, err := ts.accounts.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if account.Status == models.AccountBlocked {
		return nil, ErrAccountBlocked
	}

	var txn *models.Transaction
	err = ts.withRetry(ctx, func(ctx context.Context) error {
		dbTx, err := ts.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("beginning transaction: %w", err)
		}
		defer dbTx.Rollback()

		locked, err := ts.lockAccount(ctx, dbTx, account.ID)
		if err != nil {
			return err
		}
		if locked.Status == models.AccountBlocked {
			return ErrAccountBlocked
		}

		if err := ts.creditAccount(ctx, dbTx, account.ID, amount); err != nil {
			return err
		}

		newBalance := locked.Balance.Add(amount)
		txn = &models.Transaction{
			Type:                 models.TypeDeposit,
			Amount:               amount,
			DestinationAccountID: &account.ID,
			BalanceAfter:         newBalance,
		}
		if err := ts.insertTransaction(ctx, dbTx, txn); err != nil {
			return err
		}

		return dbTx.Commit()
	})
	if err != nil {
		return nil, err
	}

	ts.recordAudit(ctx, userID, "DEPOSIT", map[string]any{
		"transactionId": txn.ID,
		"amount":        amount,
		"accountId":     account.ID,
	})
	return txn, nil
}

// Withdraw debits the caller's account and records one WITHDRAWAL row.
func (ts *TransactionService) Withdraw(ctx context.Context, userID int64, amount decimal.Decimal) (*models.Transaction, error) {
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be positive, got %s", amount)
	}

	account, err := ts.accounts.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if account.Status == models.AccountBlocked {
		return nil, ErrAccountBlocked
	}
	if account.Balance.LessThan(amount) {
		return nil, ErrInsufficientBalance
	}

	var txn *models.Transaction
	err = ts.withRetry(ctx, func(ctx context.Context) error {
		dbTx, err := ts.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("beginning transaction: %w", err)
		}
		defer dbTx.Rollback()

		locked, err := ts.lockAccount(ctx, dbTx, account.ID)
		if err != nil {
			return err
		}
		if locked.Status == models.AccountBlocked {
			return ErrAccountBlocked
		}
		if locked.Balance.LessThan(amount) {
			return ErrInsufficientBalance
		}

		if err := ts.debitAccount(ctx, dbTx, account.ID, amount); err != nil {
			return err
		}

		newBalance := locked.Balance.Sub(amount)
		txn = &models.Transaction{
			Type:            models.TypeWithdrawal,
			Amount:          amount,
			SourceAccountID: &account.ID,
			BalanceAfter:    newBalance,
		}
		if err := ts.insertTransaction(ctx, dbTx, txn); err != nil {
			return err
		}

		return dbTx.Commit()
	})
	if err != nil {
		return nil, err
	}

	ts.recordAudit(ctx, userID, "WITHDRAWAL", map[string]any{
		"transactionId": txn.ID,
		"amount":        amount,
		"accountId":     account.ID,
	})
	return txn, nil
}

// InternalTransfer moves value between two accounts of this bank. Both
// balance mutations and both INTERNAL_TRANSFER rows commit in one store
// transaction; the pair shares the same source/destination, one row per
// mutated account with that account's own post-balance. A BLOCKED
// destination rejects the credit.
func (ts *TransactionService) InternalTransfer(ctx context.Context, userID int64, toAccountNumber string, amount decimal.Decimal) ([]*models.Transaction, error) {
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be positive, got %s", amount)
	}

	source, err := ts.accounts.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if source.Status == models.AccountBlocked {
		return nil, ErrAccountBlocked
	}
	if source.Balance.LessThan(amount) {
		return nil, ErrInsufficientBalance
	}

	destination, err := ts.accounts.FindByAccountNumber(ctx, toAccountNumber)
	if err != nil {
		return nil, err
	}
	if destination.Status == models.AccountBlocked {
		return nil, ErrAccountBlocked
	}
	if source.ID == destination.ID {
		return nil, ErrSameAccountTransfer
	}

	var pair []*models.Transaction
	err = ts.withRetry(ctx, func(ctx context.Context) error {
		dbTx, err := ts.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("beginning transaction: %w", err)
		}
		defer dbTx.Rollback()

		// Lock both rows in ascending ID order to avoid deadlocks
		// between concurrent opposite-direction transfers.
		firstID, secondID := source.ID, destination.ID
		if firstID > secondID {
			firstID, secondID = secondID, firstID
		}
		first, err := ts.lockAccount(ctx, dbTx, firstID)
		if err != nil {
			return err
		}
		second, err := ts.lockAccount(ctx, dbTx, secondID)
		if err != nil {
			return err
		}

		lockedSource, lockedDestination := first, second
		if first.ID != source.ID {
			lockedSource, lockedDestination = second, first
		}

		if lockedSource.Status == models.AccountBlocked || lockedDestination.Status == models.AccountBlocked {
			return ErrAccountBlocked
		}
		if lockedSource.Balance.LessThan(amount) {
			return ErrInsufficientBalance
		}

		if err := ts.debitAccount(ctx, dbTx, source.ID, amount); err != nil {
			return err
		}
		if err := ts.creditAccount(ctx, dbTx, destination.ID, amount); err != nil {
			return err
		}

		debitRow := &models.Transaction{
			Type:                 models.TypeInternalTransfer,
			Amount:               amount,
			SourceAccountID:      &source.ID,
			DestinationAccountID: &destination.ID,
			BalanceAfter:         lockedSource.Balance.Sub(amount),
		}
		creditRow := &models.Transaction{
			Type:                 models.TypeInternalTransfer,
			Amount:               amount,
			SourceAccountID:      &source.ID,
			DestinationAccountID: &destination.ID,
			BalanceAfter:         lockedDestination.Balance.Add(amount),
		}
		if err := ts.insertTransaction(ctx, dbTx, debitRow); err != nil {
			return err
		}
		if err := ts.insertTransaction(ctx, dbTx, creditRow); err != nil {
			return err
		}

		pair = []*models.Transaction{debitRow, creditRow}
		return dbTx.Commit()
	})
	if err != nil {
		return nil, err
	}

	ts.recordAudit(ctx, userID, "INTERNAL_TRANSFER", map[string]any{
		"transactionIds":       []string{pair[0].ID, pair[1].ID},
		"amount":               amount,
		"sourceAccountId":      source.ID,
		"destinationAccountId": destination.ID,
	})
	return pair, nil
}

// ExternalTransfer debits the caller's account towards another bank.
// The destination bank code must resolve against the bank directory
// before any mutation; a directory miss fails the operation with no
// balance change and no transaction row.
func (ts *TransactionService) ExternalTransfer(ctx context.Context, userID int64, input ExternalTransferInput) (*models.Transaction, error) {
	if input.Amount.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be positive, got %s", input.Amount)
	}

	account, err := ts.accounts.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if account.Status == models.AccountBlocked {
		return nil, ErrAccountBlocked
	}
	if account.Balance.LessThan(input.Amount) {
		return nil, ErrInsufficientBalance
	}

	bank, err := ts.banks.Validate(ctx, input.BankCode)
	if err != nil {
		log.Printf("[LEDGER] Bank validation unavailable for code %s: %v", input.BankCode, err)
		return nil, ErrExternalValidationUnavailable
	}
	if bank == nil {
		return nil, ErrInvalidBankCode
	}

	var txn *models.Transaction
	err = ts.withRetry(ctx, func(ctx context.Context) error {
		dbTx, err := ts.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("beginning transaction: %w", err)
		}
		defer dbTx.Rollback()

		locked, err := ts.lockAccount(ctx, dbTx, account.ID)
		if err != nil {
			return err
		}
		if locked.Status == models.AccountBlocked {
			return ErrAccountBlocked
		}
		if locked.Balance.LessThan(input.Amount) {
			return ErrInsufficientBalance
		}

		if err := ts.debitAccount(ctx, dbTx, account.ID, input.Amount); err != nil {
			return err
		}

		txn = &models.Transaction{
			Type:             models.TypeExternalTransfer,
			Amount:           input.Amount,
			SourceAccountID:  &account.ID,
			ExternalBankCode: &bank.Code,
			ExternalBankName: &bank.Name,
			ExternalAgency:   &input.Agency,
			ExternalAccount:  &input.AccountNumber,
			ExternalCpf:      &input.Cpf,
			BalanceAfter:     locked.Balance.Sub(input.Amount),
		}
		if err := ts.insertTransaction(ctx, dbTx, txn); err != nil {
			return err
		}

		return dbTx.Commit()
	})
	if err != nil {
		return nil, err
	}

	ts.recordAudit(ctx, userID, "EXTERNAL_TRANSFER", map[string]any{
		"transactionId": txn.ID,
		"amount":        input.Amount,
		"accountId":     account.ID,
		"bankCode":      bank.Code,
		"bankName":      bank.Name,
	})
	return txn, nil
}

const transactionColumns = `id, type, amount, source_account_id, destination_account_id,
	external_bank_code, external_bank_name, external_agency, external_account, external_cpf,
	balance_after, created_at`

// GetHistory returns the caller's transactions, as source or
// destination, newest first.
func (ts *TransactionService) GetHistory(ctx context.Context, userID int64, page, limit int) ([]models.Transaction, models.PageMeta, error) {
	account, err := ts.accounts.FindByUserID(ctx, userID)
	if err != nil {
		return nil, models.PageMeta{}, err
	}
	page, limit = normalizePage(page, limit)

	var total int64
	err = ts.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM transactions
		WHERE source_account_id = $1 OR destination_account_id = $1`,
		account.ID,
	).Scan(&total)
	if err != nil {
		return nil, models.PageMeta{}, fmt.Errorf("counting transactions: %w", err)
	}

	rows, err := ts.db.QueryContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE source_account_id = $1 OR destination_account_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		account.ID, limit, (page-1)*limit,
	)
	if err != nil {
		return nil, models.PageMeta{}, fmt.Errorf("fetching transactions: %w", err)
	}
	defer rows.Close()

	transactions := []models.Transaction{}
	for rows.Next() {
		var t models.Transaction
		if err := scanTransaction(rows, &t); err != nil {
			return nil, models.PageMeta{}, err
		}
		transactions = append(transactions, t)
	}
	if err := rows.Err(); err != nil {
		return nil, models.PageMeta{}, fmt.Errorf("iterating transactions: %w", err)
	}

	return transactions, models.NewPageMeta(total, page, limit), nil
}

// GetAllTransactions is the privileged listing across all accounts,
// including denormalized source and destination account summaries.
func (ts *TransactionService) GetAllTransactions(ctx context.Context, page, limit int) ([]models.Transaction, models.PageMeta, error) {
	page, limit = normalizePage(page, limit)

	var total int64
	if err := ts.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions`).Scan(&total); err != nil {
		return nil, models.PageMeta{}, fmt.Errorf("counting transactions: %w", err)
	}

	rows, err := ts.db.QueryContext(ctx, `
		SELECT t.id, t.type, t.amount, t.source_account_id, t.destination_account_id,
		       t.external_bank_code, t.external_bank_name, t.external_agency, t.external_account, t.external_cpf,
		       t.balance_after, t.created_at,
		       sa.id, sa.account_number, sa.user_id,
		       da.id, da.account_number, da.user_id
		FROM transactions t
		LEFT JOIN accounts sa ON t.source_account_id = sa.id
		LEFT JOIN accounts da ON t.destination_account_id = da.id
		ORDER BY t.created_at DESC
		LIMIT $1 OFFSET $2`,
		limit, (page-1)*limit,
	)
	if err != nil {
		return nil, models.PageMeta{}, fmt.Errorf("fetching transactions: %w", err)
	}
	defer rows.Close()

	transactions := []models.Transaction{}
	for rows.Next() {
		var t models.Transaction
		var srcID, dstID sql.NullInt64
		var srcNumber, dstNumber sql.NullString
		var srcUser, dstUser sql.NullInt64
		err := rows.Scan(
			&t.ID, &t.Type, &t.Amount, &t.SourceAccountID, &t.DestinationAccountID,
			&t.ExternalBankCode, &t.ExternalBankName, &t.ExternalAgency, &t.ExternalAccount, &t.ExternalCpf,
			&t.BalanceAfter, &t.CreatedAt,
			&srcID, &srcNumber, &srcUser,
			&dstID, &dstNumber, &dstUser,
		)
		if err != nil {
			return nil, models.PageMeta{}, fmt.Errorf("scanning transaction: %w", err)
		}
		if srcID.Valid {
			t.SourceAccount = &models.AccountSummary{ID: srcID.Int64, AccountNumber: srcNumber.String, UserID: srcUser.Int64}
		}
		if dstID.Valid {
			t.DestinationAccount = &models.AccountSummary{ID: dstID.Int64, AccountNumber: dstNumber.String, UserID: dstUser.Int64}
		}
		transactions = append(transactions, t)
	}
	if err := rows.Err(); err != nil {
		return nil, models.PageMeta{}, fmt.Errorf("iterating transactions: %w", err)
	}

	return transactions, models.NewPageMeta(total, page, limit), nil
}

// lockedAccount is the row state captured under FOR UPDATE.
type lockedAccount struct {
	ID      int64
	Balance decimal.Decimal
	Status  models.AccountStatus
}

func (ts *TransactionService) lockAccount(ctx context.Context, dbTx *sql.Tx, id int64) (*lockedAccount, error) {
	acct := &lockedAccount{}
	err := dbTx.QueryRowContext(ctx, `
		SELECT id, balance, status FROM accounts WHERE id = $1 FOR UPDATE`,
		id,
	).Scan(&acct.ID, &acct.Balance, &acct.Status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("locking account %d: %w", id, err)
	}
	return acct, nil
}

// debitAccount applies a conditional decrement. The balance >= amount
// guard plus the rows-affected check is the backstop behind the locked
// re-check: the balance can never go negative even if a caller skips
// the lock.
func (ts *TransactionService) debitAccount(ctx context.Context, dbTx *sql.Tx, id int64, amount decimal.Decimal) error {
	result, err := dbTx.ExecContext(ctx, `
		UPDATE accounts
		SET balance = balance - $1, updated_at = NOW()
		WHERE id = $2 AND balance >= $1`,
		amount, id,
	)
	if err != nil {
		return fmt.Errorf("debiting account %d: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("debiting account %d: %w", id, err)
	}
	if affected == 0 {
		return ErrInsufficientBalance
	}
	return nil
}

func (ts *TransactionService) creditAccount(ctx context.Context, dbTx *sql.Tx, id int64, amount decimal.Decimal) error {
	result, err := dbTx.ExecContext(ctx, `
		UPDATE accounts
		SET balance = balance + $1, updated_at = NOW()
		WHERE id = $2`,
		amount, id,
	)
	if err != nil {
		return fmt.Errorf("crediting account %d: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("crediting account %d: %w", id, err)
	}
	if affected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (ts *TransactionService) insertTransaction(ctx context.Context, dbTx *sql.Tx, t *models.Transaction) error {
	t.ID = uuid.NewString()
	err := dbTx.QueryRowContext(ctx, `
		INSERT INTO transactions
		(id, type, amount, source_account_id, destination_account_id,
		 external_bank_code, external_bank_name, external_agency, external_account, external_cpf,
		 balance_after, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
		RETURNING created_at`,
		t.ID, t.Type, t.Amount, t.SourceAccountID, t.DestinationAccountID,
		t.ExternalBankCode, t.ExternalBankName, t.ExternalAgency, t.ExternalAccount, t.ExternalCpf,
		t.BalanceAfter,
	).Scan(&t.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting transaction: %w", err)
	}
	return nil
}

// withRetry runs one atomic ledger mutation, retrying only transient
// store failures. Business-rule violations are surfaced immediately;
// retry exhaustion surfaces as ErrOperationFailed with no partial state.
func (ts *TransactionService) withRetry(ctx context.Context, op func(ctx context.Context) error) error {
	var err error
	for attempt := 1; attempt <= ledgerRetryAttempts; attempt++ {
		err = op(ctx)
		if err == nil || !isTransient(err) {
			return err
		}
		log.Printf("[LEDGER] Transient store failure (attempt %d/%d): %v", attempt, ledgerRetryAttempts, err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * ledgerRetryBackoff):
		}
	}
	return fmt.Errorf("%w: %v", ErrOperationFailed, err)
}

// isTransient reports whether err is a serialization or deadlock
// failure worth retrying.
func isTransient(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "40001" || pqErr.Code == "40P01"
	}
	return false
}

// recordAudit appends the post-commit audit entry. The financial
// mutation is already committed: a failed audit write is logged and the
// operation still reports success.
func (ts *TransactionService) recordAudit(ctx context.Context, userID int64, action string, metadata map[string]any) {
	if _, err := ts.audit.Record(ctx, userID, action, "transaction", metadata); err != nil {
		log.Printf("[LEDGER] Audit write failed for %s by user %d: %v", action, userID, err)
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(rows rowScanner, t *models.Transaction) error {
	err := rows.Scan(
		&t.ID, &t.Type, &t.Amount, &t.SourceAccountID, &t.DestinationAccountID,
		&t.ExternalBankCode, &t.ExternalBankName, &t.ExternalAgency, &t.ExternalAccount, &t.ExternalCpf,
		&t.BalanceAfter, &t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("scanning transaction: %w", err)
	}
	return nil
}
