package repository

import (
	"context"
	"database/sql"

	"github.com/ruralpay/payauth/internal/models"
)

type ScheduleRepository struct {
	db *sql.DB
}

func NewScheduleRepository(db *sql.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

func (r *ScheduleRepository) CreateStandingOrder(ctx context.Context, order *models.StandingOrder) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO standing_orders (id, owner_id, from_account_id, payee_id, amount, reference, frequency, rail, start_date, next_run_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		order.ID, order.OwnerID, order.FromAccountID, order.PayeeID, order.Amount, order.Reference,
		string(order.Frequency), order.Rail, order.StartDate, order.NextRunAt, order.CreatedAt)
	return err
}
