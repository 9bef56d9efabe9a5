// Package limits enforces per-payment and rolling-window ceilings by KYC tier.
package limits

import (
	"context"
	"fmt"
	"time"

	"github.com/ruralpay/payauth/internal/config"
	"github.com/ruralpay/payauth/internal/models"
)

type Result struct {
	Allowed bool           `json:"allowed"`
	Reason  string         `json:"reason,omitempty"`
	Tier    models.KYCTier `json:"tier"`
}

// HistorySource sums a user's completed outbound payments since a point in time.
type HistorySource interface {
	OutboundTotal(ctx context.Context, userID string, since time.Time) (int64, error)
}

type Enforcer struct {
	cfg     config.LimitsConfig
	history HistorySource
	now     func() time.Time
}

func NewEnforcer(cfg config.LimitsConfig, history HistorySource, now func() time.Time) *Enforcer {
	if now == nil {
		now = time.Now
	}
	return &Enforcer{cfg: cfg, history: history, now: now}
}

func (e *Enforcer) Check(ctx context.Context, userID string, amount int64, tier models.KYCTier) (Result, error) {
	limit := e.limitFor(tier)
	result := Result{Tier: tier}

	if amount > limit.PerTransaction {
		result.Reason = fmt.Sprintf("This payment is over the %s single payment limit for %s accounts.",
			models.FormatPence(limit.PerTransaction), tier)
		return result, nil
	}

	total, err := e.history.OutboundTotal(ctx, userID, e.now().Add(-e.cfg.Window))
	if err != nil {
		return Result{}, fmt.Errorf("failed to load rolling total: %w", err)
	}

	if total+amount > limit.RollingTotal {
		remaining := limit.RollingTotal - total
		if remaining < 0 {
			remaining = 0
		}
		result.Reason = fmt.Sprintf("This payment would take you over your %s limit for %s accounts. You can send up to %s right now.",
			models.FormatPence(limit.RollingTotal), tier, models.FormatPence(remaining))
		return result, nil
	}

	result.Allowed = true
	return result, nil
}

func (e *Enforcer) limitFor(tier models.KYCTier) config.TierLimit {
	switch tier {
	case models.TierEnhanced:
		return e.cfg.Enhanced
	case models.TierStandard:
		return e.cfg.Standard
	default:
		return e.cfg.Unverified
	}
}
