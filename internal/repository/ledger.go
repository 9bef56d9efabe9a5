package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/ruralpay/payauth/internal/models"
)

// DoubleLedger books every payment as balanced DEBIT/CREDIT entries in one
// database transaction. The payments row keyed by transaction id makes a
// second booking of the same intent fail.
type DoubleLedger struct {
	db               *sql.DB
	systemFeeAccount string
	now              func() time.Time
}

func NewDoubleLedger(db *sql.DB, systemFeeAccount string) *DoubleLedger {
	return &DoubleLedger{db: db, systemFeeAccount: systemFeeAccount, now: time.Now}
}

func (l *DoubleLedger) Transfer(ctx context.Context, t models.LedgerTransfer) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := l.insertPayment(ctx, tx, t); err != nil {
		return err
	}

	if err := l.appendPaymentState(ctx, tx, t.TransactionID, "PENDING"); err != nil {
		return err
	}

	if err := l.transferTx(ctx, tx, t); err != nil {
		return err
	}

	if err := l.appendPaymentState(ctx, tx, t.TransactionID, "SUCCESS"); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	log.Printf("[LEDGER] booked %s: %d from %s to %s (fee %d)", t.TransactionID, t.Amount, t.FromAccountID, t.ToAccountID, t.Fee)
	return nil
}

func (l *DoubleLedger) insertPayment(ctx context.Context, tx *sql.Tx, t models.LedgerTransfer) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO payments (transaction_id, user_id, account_id, amount, fee, counterparty_name, rail, reference, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		t.TransactionID, t.UserID, t.FromAccountID, t.Amount, t.Fee, t.CounterpartyName, t.Rail, t.Reference, l.now())
	if isUniqueViolation(err) {
		return ErrDuplicateTransaction
	}
	return err
}

func (l *DoubleLedger) transferTx(ctx context.Context, tx *sql.Tx, t models.LedgerTransfer) error {
	ids := []string{t.FromAccountID, t.ToAccountID}
	if t.Fee > 0 && t.ToAccountID != l.systemFeeAccount {
		ids = append(ids, l.systemFeeAccount)
	}
	// Lock accounts in consistent order to prevent deadlocks
	sort.Strings(ids)

	locked := make(map[string]*models.Account, len(ids))
	for _, id := range ids {
		account, err := l.lockAccount(ctx, tx, id)
		if err != nil {
			return fmt.Errorf("lock account %s: %w", id, err)
		}
		locked[id] = account
	}

	from := locked[t.FromAccountID]
	if from.Balance < t.Amount+t.Fee {
		return ErrInsufficientFunds
	}

	balances := make(map[string]int64, len(locked))
	for id, account := range locked {
		balances[id] = account.Balance
	}
	post := func(accountID string, amount int64, entryType string) error {
		balances[accountID] += amount
		return l.createLedgerEntry(ctx, tx, t.TransactionID, accountID, amount, entryType, balances[accountID])
	}

	if err := post(t.FromAccountID, -t.Amount, "DEBIT"); err != nil {
		return err
	}
	if err := post(t.ToAccountID, t.Amount, "CREDIT"); err != nil {
		return err
	}
	if t.Fee > 0 {
		if err := post(t.FromAccountID, -t.Fee, "DEBIT"); err != nil {
			return err
		}
		if err := post(l.systemFeeAccount, t.Fee, "CREDIT"); err != nil {
			return err
		}
	}

	for _, id := range ids {
		if err := l.updateAccountBalance(ctx, tx, id, balances[id], locked[id].Version); err != nil {
			return err
		}
	}
	return nil
}

func (l *DoubleLedger) appendPaymentState(ctx context.Context, tx *sql.Tx, transactionID, state string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO payment_states (transaction_id, state, created_at)
		VALUES ($1, $2, $3)`,
		transactionID, state, l.now())
	return err
}

func (l *DoubleLedger) lockAccount(ctx context.Context, tx *sql.Tx, accountID string) (*models.Account, error) {
	var account models.Account
	err := tx.QueryRowContext(ctx, `
		SELECT id, balance, version, updated_at
		FROM accounts
		WHERE id = $1
		FOR UPDATE`, accountID).Scan(&account.ID, &account.Balance, &account.Version, &account.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &account, nil
}

func (l *DoubleLedger) createLedgerEntry(ctx context.Context, tx *sql.Tx, transactionID, accountID string, amount int64, entryType string, balance int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO ledger_entries (transaction_id, account_id, amount, entry_type, balance, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		transactionID, accountID, amount, entryType, balance, l.now())
	return err
}

func (l *DoubleLedger) updateAccountBalance(ctx context.Context, tx *sql.Tx, accountID string, newBalance int64, version int) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE accounts
		SET balance = $1, version = version + 1, updated_at = $2
		WHERE id = $3 AND version = $4`,
		newBalance, l.now(), accountID, version)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return fmt.Errorf("account %s: %w", accountID, models.ErrConcurrentUpdate)
	}
	return nil
}
