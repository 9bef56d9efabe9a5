package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/ruralpay/payauth/internal/models"
	"github.com/ruralpay/payauth/internal/rails"
)

// HistoryRepository reads completed outbound payments. Moves between a
// customer's own accounts are not outbound and are left out.
type HistoryRepository struct {
	db *sql.DB
}

func NewHistoryRepository(db *sql.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

func (r *HistoryRepository) OutboundTotal(ctx context.Context, userID string, since time.Time) (int64, error) {
	var total int64
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM payments
		WHERE user_id = $1 AND created_at >= $2 AND rail <> $3`,
		userID, since, string(rails.Internal)).Scan(&total)
	return total, err
}

func (r *HistoryRepository) RecentPayments(ctx context.Context, userID string, since time.Time) ([]models.PaymentRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT transaction_id, account_id, amount, counterparty_name, rail, created_at FROM payments
		WHERE user_id = $1 AND created_at >= $2 AND rail <> $3
		ORDER BY created_at DESC`,
		userID, since, string(rails.Internal))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.PaymentRecord
	for rows.Next() {
		var p models.PaymentRecord
		if err := rows.Scan(&p.TransactionID, &p.AccountID, &p.Amount, &p.CounterpartyName, &p.Rail, &p.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, p)
	}
	return records, rows.Err()
}
