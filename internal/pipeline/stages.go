package pipeline

import (
	"context"
	"time"

	"github.com/ruralpay/payauth/internal/aml"
	"github.com/ruralpay/payauth/internal/cooloff"
	"github.com/ruralpay/payauth/internal/cop"
	"github.com/ruralpay/payauth/internal/fraud"
	"github.com/ruralpay/payauth/internal/limits"
	"github.com/ruralpay/payauth/internal/models"
	"github.com/ruralpay/payauth/internal/modulus"
	"github.com/ruralpay/payauth/internal/rails"
	"github.com/ruralpay/payauth/internal/stepup"
)

// Stages. Each is satisfied by the package of the same name.

type ChecksumValidator interface {
	Validate(sortCode, accountNumber string) modulus.Result
}

type PayeeMatcher interface {
	Match(ctx context.Context, name, sortCode, accountNumber string) (cop.Result, error)
}

type FraudScorer interface {
	Score(ctx context.Context, in fraud.Input) (fraud.Assessment, error)
}

type AMLMonitor interface {
	Check(ctx context.Context, in aml.Input) (aml.Outcome, error)
}

type LimitEnforcer interface {
	Check(ctx context.Context, userID string, amount int64, tier models.KYCTier) (limits.Result, error)
}

type CoolingOffEnforcer interface {
	Check(payee *models.Payee, rail rails.ID, at time.Time) cooloff.Record
}

type StepUpPolicy interface {
	Assess(amount int64, purpose models.Purpose) stepup.Requirement
}

type ChallengeVerifier interface {
	IsChallengeVerified(ctx context.Context, userID, challengeID string) (bool, error)
}

type RailSelector interface {
	Select(amount int64, internal, urgent bool) rails.Selection
}

// Collaborators.

type PINVerifier interface {
	VerifyPIN(ctx context.Context, userID, pin string) (bool, error)
}

// AccountDirectory returns models.ErrNotFound for unknown accounts.
type AccountDirectory interface {
	GetAccount(ctx context.Context, accountID string) (*models.Account, error)
	FindByDetails(ctx context.Context, sortCode, accountNumber string) (*models.Account, error)
}

type KYCDirectory interface {
	Tier(ctx context.Context, userID string) (models.KYCTier, error)
}

// PayeeStore.Resolve inserts the payee or returns the existing row for the
// same owner and bank details.
type PayeeStore interface {
	Get(ctx context.Context, ownerID, payeeID string) (*models.Payee, error)
	Resolve(ctx context.Context, payee *models.Payee) (*models.Payee, error)
	Update(ctx context.Context, ownerID, payeeID string, update models.PayeeUpdate) (*models.Payee, error)
}

// Ledger applies a transfer atomically or not at all. A transaction id that
// was already applied yields models.ErrDuplicateTransaction.
type Ledger interface {
	Transfer(ctx context.Context, t models.LedgerTransfer) error
}

type ScheduleStore interface {
	CreateStandingOrder(ctx context.Context, order *models.StandingOrder) error
}

type AuditRecorder interface {
	Record(ctx context.Context, event models.AuditEvent) error
}

type ComplianceRecorder interface {
	RecordAlerts(ctx context.Context, intentID, userID string, alerts []aml.Alert) error
}

// OutcomeStore remembers terminal outcomes per user and intent id.
type OutcomeStore interface {
	Load(ctx context.Context, userID, intentID string) (Outcome, bool, error)
	Save(ctx context.Context, userID, intentID string, outcome Outcome) error
}

// BlockHistory is the durable record of fraud and AML blocks. FindBlock
// returns models.ErrNotFound when the intent was never blocked.
type BlockHistory interface {
	FindBlock(ctx context.Context, userID, intentID string) (models.Stage, error)
}

type CacheInvalidator interface {
	Invalidate(ctx context.Context, userID string, accountIDs ...string) error
}

type SettlementQueue interface {
	Enqueue(ctx context.Context, instruction models.SettlementInstruction) error
}
