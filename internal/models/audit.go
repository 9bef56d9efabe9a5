package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

type AuditEvent struct {
	ID        string    `json:"id" db:"id"`
	Timestamp time.Time `json:"timestamp" db:"created_at"`
	EventType string    `json:"event_type" db:"event_type"`
	IntentID  string    `json:"intent_id" db:"intent_id"`
	UserID    string    `json:"user_id" db:"user_id"`
	AccountID string    `json:"account_id" db:"account_id"`
	Amount    int64     `json:"amount" db:"amount"`
	Stage     string    `json:"stage,omitempty" db:"stage"`
	Status    string    `json:"status" db:"status"`
	Details   Metadata  `json:"details,omitempty" db:"details"`
}

// Metadata type for JSONB fields
type Metadata map[string]any

// Value implements driver.Valuer for Metadata
func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner for Metadata
func (m *Metadata) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}

	b, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}

	return json.Unmarshal(b, m)
}
