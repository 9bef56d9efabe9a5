package models

import (
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

type Purpose string

const (
	PurposeTransfer      Purpose = "transfer"
	PurposePayment       Purpose = "payment"
	PurposeStandingOrder Purpose = "standing_order"
)

// Destination is either a saved payee or raw bank details, never both.
type Destination struct {
	PayeeID       string `json:"payeeId,omitempty"`
	Name          string `json:"name,omitempty" validate:"omitempty,max=140"`
	SortCode      string `json:"sortCode,omitempty" validate:"omitempty,sortcode"`
	AccountNumber string `json:"accountNumber,omitempty" validate:"omitempty,accountnumber"`
}

func (d Destination) IsSavedPayee() bool {
	return d.PayeeID != ""
}

// PaymentIntent is one authorization attempt. ID doubles as the idempotency key
// and as the ledger transaction id.
type PaymentIntent struct {
	ID            string      `json:"id" validate:"required,max=64"`
	UserID        string      `json:"userId" validate:"required"`
	Purpose       Purpose     `json:"purpose" validate:"required,oneof=transfer payment standing_order"`
	FromAccountID string      `json:"fromAccountId" validate:"required"`
	ToAccountID   string      `json:"toAccountId,omitempty"`
	Destination   Destination `json:"destination"`
	Amount        int64       `json:"amount" validate:"gt=0"`
	Reference     string      `json:"reference,omitempty" validate:"max=18"`
	PIN           string      `json:"-" validate:"required,numeric,min=4,max=6"`
	ChallengeID   string      `json:"challengeId,omitempty"`
	Schedule      *Schedule   `json:"schedule,omitempty"`
	CreatedAt     time.Time   `json:"createdAt"`
}

var (
	sortCodePattern      = regexp.MustCompile(`^\d{2}[- ]?\d{2}[- ]?\d{2}$`)
	accountNumberPattern = regexp.MustCompile(`^\d{8}$`)
)

// NormalizeSortCode strips the usual separators ("12-34-56", "12 34 56").
func NormalizeSortCode(s string) string {
	return strings.NewReplacer("-", "", " ", "").Replace(strings.TrimSpace(s))
}

// RegisterValidations adds the bank-detail tags used on request and intent structs.
func RegisterValidations(v *validator.Validate) {
	v.RegisterValidation("sortcode", func(fl validator.FieldLevel) bool {
		return sortCodePattern.MatchString(strings.TrimSpace(fl.Field().String()))
	})
	v.RegisterValidation("accountnumber", func(fl validator.FieldLevel) bool {
		return accountNumberPattern.MatchString(strings.TrimSpace(fl.Field().String()))
	})
}
