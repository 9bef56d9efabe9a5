// Package rails picks the settlement channel for a payment and prices it.
package rails

import (
	"time"

	"github.com/ruralpay/payauth/internal/config"
	"github.com/shopspring/decimal"
)

type ID string

const (
	Internal       ID = "INTERNAL"
	FasterPayments ID = "FPS"
	CHAPS          ID = "CHAPS"
	BACS           ID = "BACS"
)

// External reports whether the rail settles outside our own ledger.
func (id ID) External() bool {
	return id != Internal
}

type Selection struct {
	Rail                ID            `json:"rail"`
	DisplayName         string        `json:"displayName"`
	Fee                 int64         `json:"fee"`
	EstimatedSettlement string        `json:"estimatedSettlement"`
	SettlementWindow    time.Duration `json:"settlementWindow"`
	ClearingAccount     string        `json:"-"`
}

type Selector struct {
	cfg config.RailsConfig
}

func NewSelector(cfg config.RailsConfig) *Selector {
	return &Selector{cfg: cfg}
}

// Select is a pure function of its arguments and the configured fees.
func (s *Selector) Select(amount int64, internal, urgent bool) Selection {
	switch {
	case internal:
		return Selection{
			Rail:                Internal,
			DisplayName:         "Internal transfer",
			EstimatedSettlement: "Immediately",
		}
	case !urgent:
		return Selection{
			Rail:                BACS,
			DisplayName:         "Bacs",
			Fee:                 fee(amount, s.cfg.BACSFee),
			EstimatedSettlement: "3 working days",
			SettlementWindow:    72 * time.Hour,
			ClearingAccount:     s.cfg.BACSClear,
		}
	case amount <= s.cfg.FasterPaymentsLimit:
		return Selection{
			Rail:                FasterPayments,
			DisplayName:         "Faster Payments",
			Fee:                 fee(amount, s.cfg.FasterPaymentsFee),
			EstimatedSettlement: "Usually within 2 hours",
			SettlementWindow:    2 * time.Hour,
			ClearingAccount:     s.cfg.FasterPaymentsClear,
		}
	default:
		return Selection{
			Rail:                CHAPS,
			DisplayName:         "CHAPS",
			Fee:                 fee(amount, s.cfg.CHAPSFee),
			EstimatedSettlement: "Same working day",
			SettlementWindow:    8 * time.Hour,
			ClearingAccount:     s.cfg.CHAPSClear,
		}
	}
}

// fee is the fixed part plus basis points of the amount, rounded half to even.
func fee(amount int64, f config.Fee) int64 {
	variable := decimal.NewFromInt(amount).
		Mul(decimal.NewFromInt(f.BasisPoints)).
		Div(decimal.NewFromInt(10_000)).
		RoundBank(0)
	return f.Fixed + variable.IntPart()
}
