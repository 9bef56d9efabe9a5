// Package audit writes the audit trail: one JSON line per event on the
// process log and an append to the durable sink.
package audit

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/ruralpay/payauth/internal/models"
)

type Sink interface {
	Append(ctx context.Context, event models.AuditEvent) error
}

type Logger struct {
	sink Sink
	now  func() time.Time
}

// NewLogger with a nil sink only logs.
func NewLogger(sink Sink) *Logger {
	return &Logger{sink: sink, now: time.Now}
}

func (a *Logger) Record(ctx context.Context, event models.AuditEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = a.now()
	}
	a.log(event)

	if a.sink == nil {
		return nil
	}
	return a.sink.Append(ctx, event)
}

// LogOperation records an action outside a payment run, e.g. a payee edit or
// a step-up challenge. Sink failures are logged.
func (a *Logger) LogOperation(ctx context.Context, userID, operation, status string, details models.Metadata) {
	event := models.AuditEvent{
		EventType: operation,
		UserID:    userID,
		Status:    status,
		Details:   details,
	}
	if err := a.Record(ctx, event); err != nil {
		log.Printf("[AUDIT] failed to persist %s for %s: %v", operation, userID, err)
	}
}

func (a *Logger) log(event models.AuditEvent) {
	data, _ := json.Marshal(event)
	log.Printf("AUDIT: %s", string(data))
}
