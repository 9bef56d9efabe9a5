package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ruralpay/payauth/internal/cop"
	"github.com/ruralpay/payauth/internal/models"
)

const accountColumns = `id, owner_id, sort_code, account_number, holder_name, balance, status, version, opened_at, updated_at`

// AccountRepository reads accounts and the per-user facts the pipeline needs
// (KYC level, PIN hash).
type AccountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func scanAccount(row scanner) (*models.Account, error) {
	var a models.Account
	err := row.Scan(&a.ID, &a.OwnerID, &a.SortCode, &a.AccountNumber, &a.HolderName,
		&a.Balance, &a.Status, &a.Version, &a.OpenedAt, &a.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

func (r *AccountRepository) GetAccount(ctx context.Context, accountID string) (*models.Account, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, accountID)
	return scanAccount(row)
}

func (r *AccountRepository) FindByDetails(ctx context.Context, sortCode, accountNumber string) (*models.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE sort_code = $1 AND account_number = $2`,
		sortCode, accountNumber)
	return scanAccount(row)
}

// HolderName answers name enquiries for our own sort codes.
func (r *AccountRepository) HolderName(ctx context.Context, sortCode, accountNumber string) (string, error) {
	acct, err := r.FindByDetails(ctx, sortCode, accountNumber)
	if errors.Is(err, ErrNotFound) {
		return "", cop.ErrHolderNotFound
	}
	if err != nil {
		return "", err
	}
	return acct.HolderName, nil
}

func (r *AccountRepository) Tier(ctx context.Context, userID string) (models.KYCTier, error) {
	var level int
	err := r.db.QueryRowContext(ctx, `SELECT kyc_level FROM users WHERE id = $1`, userID).Scan(&level)
	if err != nil {
		return "", fmt.Errorf("kyc level for %s: %w", userID, notFound(err))
	}
	return models.TierFromLevel(level), nil
}

// PINHash returns ErrNotFound when the user has never set a PIN.
func (r *AccountRepository) PINHash(ctx context.Context, userID string) (string, error) {
	var hash sql.NullString
	err := r.db.QueryRowContext(ctx, `SELECT pin_hash FROM users WHERE id = $1`, userID).Scan(&hash)
	if err != nil {
		return "", notFound(err)
	}
	if !hash.Valid || hash.String == "" {
		return "", ErrNotFound
	}
	return hash.String, nil
}

func (r *AccountRepository) SetPINHash(ctx context.Context, userID, hash string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET pin_hash = $1 WHERE id = $2`, hash, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
