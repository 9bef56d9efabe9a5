// Package cooloff holds back the first payment to a newly added payee.
package cooloff

import (
	"fmt"
	"time"

	"github.com/ruralpay/payauth/internal/config"
	"github.com/ruralpay/payauth/internal/models"
	"github.com/ruralpay/payauth/internal/rails"
)

type Record struct {
	PayeeID       string        `json:"payeeId"`
	Rail          rails.ID      `json:"rail"`
	Allowed       bool          `json:"allowed"`
	Reason        string        `json:"reason,omitempty"`
	RemainingWait time.Duration `json:"remainingWait,omitempty"`
}

type Enforcer struct {
	windows map[rails.ID]time.Duration
}

func NewEnforcer(cfg config.CoolingConfig) *Enforcer {
	return &Enforcer{
		windows: map[rails.ID]time.Duration{
			rails.FasterPayments: cfg.FasterPayments,
			rails.CHAPS:          cfg.CHAPS,
			rails.BACS:           cfg.BACS,
		},
	}
}

// Window is the hold applied to a new payee on the given rail.
func (e *Enforcer) Window(rail rails.ID) time.Duration {
	return e.windows[rail]
}

// Check evaluates the hold at the given instant. Payees that have already
// received a payment are always allowed.
func (e *Enforcer) Check(payee *models.Payee, rail rails.ID, at time.Time) Record {
	record := Record{PayeeID: payee.ID, Rail: rail, Allowed: true}
	if !payee.IsNew() {
		return record
	}

	elapsed := at.Sub(payee.CreatedAt)
	window := e.Window(rail)
	if elapsed >= window {
		return record
	}

	record.Allowed = false
	record.RemainingWait = window - elapsed
	record.Reason = fmt.Sprintf("This is a new payee. For your security you can pay them in %s.", formatWait(record.RemainingWait))
	return record
}

// formatWait rounds up to the next whole minute.
func formatWait(d time.Duration) string {
	minutes := int((d + time.Minute - 1) / time.Minute)
	switch {
	case minutes >= 60 && minutes%60 == 0:
		return fmt.Sprintf("%dh", minutes/60)
	case minutes >= 60:
		return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
	case minutes == 1:
		return "1 minute"
	default:
		return fmt.Sprintf("%d minutes", minutes)
	}
}
