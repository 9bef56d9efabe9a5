// Package fraud scores a payment against independent weighted rules.
package fraud

import (
	"context"
	"fmt"
	"time"

	"github.com/ruralpay/payauth/internal/config"
	"github.com/ruralpay/payauth/internal/models"
)

type Decision string

const (
	Allow     Decision = "allow"
	Challenge Decision = "challenge"
	Block     Decision = "block"
)

const (
	RuleLargeAmountNewPayee = "large-amount-new-payee"
	RuleLargeAmount         = "large-amount"
	RuleRapidSuccession     = "rapid-succession"
	RuleOffHoursHighValue   = "off-hours-high-value"
	RuleNewAccount          = "new-account"
	RuleOnUsCounterparty    = "on-us-counterparty"
)

type Input struct {
	UserID           string
	AccountID        string
	Amount           int64
	CounterpartyName string
	IsNewPayee       bool
	OnUsCounterparty bool
	AccountOpenedAt  time.Time
}

type Assessment struct {
	Score    int      `json:"score"`
	Decision Decision `json:"decision"`
	Rules    []string `json:"rules"`
}

// SignalSource supplies recent activity for velocity checks.
type SignalSource interface {
	RecentPayments(ctx context.Context, userID string, since time.Time) ([]models.PaymentRecord, error)
}

type signals struct {
	Input
	now         time.Time
	recentCount int
}

type rule struct {
	id      string
	weight  int
	applies func(s signals) bool
}

type Engine struct {
	cfg     config.FraudConfig
	signals SignalSource
	now     func() time.Time
	rules   []rule
}

func NewEngine(cfg config.FraudConfig, source SignalSource, now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	e := &Engine{cfg: cfg, signals: source, now: now}
	e.rules = []rule{
		{RuleLargeAmountNewPayee, 40, func(s signals) bool {
			return s.IsNewPayee && s.Amount >= cfg.NewPayeeLargeAmount
		}},
		{RuleLargeAmount, 20, func(s signals) bool {
			return s.Amount >= cfg.LargeAmount
		}},
		{RuleRapidSuccession, 30, func(s signals) bool {
			return s.recentCount >= cfg.RapidCount
		}},
		{RuleOffHoursHighValue, 25, func(s signals) bool {
			return inWindow(s.now.Hour(), cfg.OffHoursStart, cfg.OffHoursEnd) && s.Amount >= cfg.OffHoursAmount
		}},
		{RuleNewAccount, 25, func(s signals) bool {
			return !s.AccountOpenedAt.IsZero() && s.now.Sub(s.AccountOpenedAt) < cfg.NewAccountAge && s.Amount >= cfg.NewAccountAmount
		}},
		{RuleOnUsCounterparty, -10, func(s signals) bool {
			return s.OnUsCounterparty
		}},
	}
	return e
}

// inWindow reports whether hour falls in [start, end). A window whose start is
// after its end wraps past midnight.
func inWindow(hour, start, end int) bool {
	if start <= end {
		return hour >= start && hour < end
	}
	return hour >= start || hour < end
}

func (e *Engine) Score(ctx context.Context, in Input) (Assessment, error) {
	now := e.now()
	recent, err := e.signals.RecentPayments(ctx, in.UserID, now.Add(-e.cfg.RapidWindow))
	if err != nil {
		return Assessment{}, fmt.Errorf("failed to load velocity signals: %w", err)
	}

	s := signals{Input: in, now: now, recentCount: len(recent)}
	assessment := Assessment{Rules: []string{}}
	for _, r := range e.rules {
		if r.applies(s) {
			assessment.Score += r.weight
			assessment.Rules = append(assessment.Rules, r.id)
		}
	}

	if assessment.Score < 0 {
		assessment.Score = 0
	}
	if assessment.Score > 100 {
		assessment.Score = 100
	}
	assessment.Decision = e.decide(assessment.Score)
	return assessment, nil
}

func (e *Engine) decide(score int) Decision {
	switch {
	case score < e.cfg.LowThreshold:
		return Allow
	case score > e.cfg.HighThreshold:
		return Block
	default:
		return Challenge
	}
}
