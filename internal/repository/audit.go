package repository

import (
	"context"
	"database/sql"

	"github.com/ruralpay/payauth/internal/aml"
	"github.com/ruralpay/payauth/internal/models"
)

// AuditRepository is append-only: there is no update or delete path.
type AuditRepository struct {
	db *sql.DB
}

func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Append(ctx context.Context, event models.AuditEvent) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_events (id, created_at, event_type, intent_id, user_id, account_id, amount, stage, status, details)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		event.ID, event.Timestamp, event.EventType, event.IntentID, event.UserID,
		event.AccountID, event.Amount, event.Stage, event.Status, event.Details)
	return err
}

// RecordAlerts persists every AML alert raised for an intent, whether or not
// the payment was stopped.
func (r *AuditRepository) RecordAlerts(ctx context.Context, intentID, userID string, alerts []aml.Alert) error {
	if len(alerts) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, a := range alerts {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO aml_alerts (intent_id, user_id, kind, severity, description)
			VALUES ($1, $2, $3, $4, $5)`,
			intentID, userID, string(a.Kind), string(a.Severity), a.Description)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// FindBlock returns the stage of the fraud or AML block recorded for the
// user's intent, or ErrNotFound when the intent was never blocked.
func (r *AuditRepository) FindBlock(ctx context.Context, userID, intentID string) (models.Stage, error) {
	var stage string
	err := r.db.QueryRowContext(ctx, `
		SELECT stage FROM audit_events
		WHERE intent_id = $1 AND user_id = $2 AND event_type IN ('fraud_block', 'aml_block')
		ORDER BY created_at
		LIMIT 1`,
		intentID, userID).Scan(&stage)
	if err != nil {
		return "", notFound(err)
	}
	return models.Stage(stage), nil
}
