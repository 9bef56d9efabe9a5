// Package stepup decides when a payment needs strong customer authentication
// and manages the one-time challenges that satisfy it.
package stepup

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/ruralpay/payauth/internal/config"
	"github.com/ruralpay/payauth/internal/models"
)

var (
	ErrChallengeNotFound = errors.New("challenge not found")
	ErrChallengeExpired  = errors.New("challenge expired")
	ErrTooManyAttempts   = errors.New("too many verification attempts")
	ErrInvalidCode       = errors.New("invalid verification code")
)

const (
	CategoryLargePayment  = "large_payment"
	CategoryLargeTransfer = "large_transfer"
)

type Challenge struct {
	ID         string         `json:"id"`
	UserID     string         `json:"userId"`
	Purpose    models.Purpose `json:"purpose"`
	Verified   bool           `json:"verified"`
	Attempts   int            `json:"attempts"`
	CodeHash   string         `json:"codeHash"`
	ExpiresAt  time.Time      `json:"expiresAt"`
	CreatedAt  time.Time      `json:"createdAt"`
	VerifiedAt *time.Time     `json:"verifiedAt,omitempty"`
}

func (c *Challenge) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

type Store interface {
	Save(ctx context.Context, c *Challenge, ttl time.Duration) error
	Get(ctx context.Context, id string) (*Challenge, error)
}

// Hasher protects one-time codes at rest.
type Hasher interface {
	Hash(secret string) (string, error)
	Verify(secret, encoded string) bool
}

type Gate struct {
	cfg    config.StepUpConfig
	store  Store
	hasher Hasher
	now    func() time.Time
}

func NewGate(cfg config.StepUpConfig, store Store, hasher Hasher, now func() time.Time) *Gate {
	if now == nil {
		now = time.Now
	}
	return &Gate{cfg: cfg, store: store, hasher: hasher, now: now}
}

func (g *Gate) Threshold(purpose models.Purpose) int64 {
	switch purpose {
	case models.PurposeTransfer:
		return g.cfg.TransferThreshold
	case models.PurposeStandingOrder:
		return g.cfg.StandingOrderThreshold
	default:
		return g.cfg.PaymentThreshold
	}
}

func (g *Gate) Category(purpose models.Purpose) string {
	if purpose == models.PurposeTransfer {
		return CategoryLargeTransfer
	}
	return CategoryLargePayment
}

func (g *Gate) RequiresStepUp(amount int64, purpose models.Purpose) bool {
	return amount > g.Threshold(purpose)
}

type Requirement struct {
	Required  bool   `json:"required"`
	Category  string `json:"category"`
	Threshold int64  `json:"threshold"`
}

func (g *Gate) Assess(amount int64, purpose models.Purpose) Requirement {
	return Requirement{
		Required:  g.RequiresStepUp(amount, purpose),
		Category:  g.Category(purpose),
		Threshold: g.Threshold(purpose),
	}
}

// IsChallengeVerified reports whether the challenge belongs to userID, has been
// completed and is still inside its validity window. Unknown ids are not verified.
func (g *Gate) IsChallengeVerified(ctx context.Context, userID, challengeID string) (bool, error) {
	c, err := g.store.Get(ctx, challengeID)
	if errors.Is(err, ErrChallengeNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load challenge: %w", err)
	}
	return c.UserID == userID && c.Verified && !c.Expired(g.now()), nil
}

// Issue creates a challenge and returns it with the plaintext code for delivery.
func (g *Gate) Issue(ctx context.Context, userID string, purpose models.Purpose) (*Challenge, string, error) {
	code, err := g.generateCode()
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate code: %w", err)
	}
	hash, err := g.hasher.Hash(code)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash code: %w", err)
	}

	now := g.now()
	c := &Challenge{
		ID:        uuid.New().String(),
		UserID:    userID,
		Purpose:   purpose,
		CodeHash:  hash,
		ExpiresAt: now.Add(g.cfg.ChallengeTTL),
		CreatedAt: now,
	}
	if err := g.store.Save(ctx, c, g.cfg.ChallengeTTL); err != nil {
		return nil, "", fmt.Errorf("failed to store challenge: %w", err)
	}

	log.Printf("[STEPUP] issued challenge %s for user %s, purpose %s, expires %s", c.ID, userID, purpose, c.ExpiresAt.Format(time.RFC3339))
	return c, code, nil
}

// Verify checks a code against the challenge. Each wrong code consumes an attempt.
func (g *Gate) Verify(ctx context.Context, userID, challengeID, code string) (*Challenge, error) {
	c, err := g.store.Get(ctx, challengeID)
	if err != nil {
		return nil, err
	}
	if c.UserID != userID {
		return nil, ErrChallengeNotFound
	}

	now := g.now()
	if c.Expired(now) {
		return nil, ErrChallengeExpired
	}
	if c.Verified {
		return c, nil
	}
	if c.Attempts >= g.cfg.MaxAttempts {
		return nil, ErrTooManyAttempts
	}

	remaining := c.ExpiresAt.Sub(now)
	if !g.hasher.Verify(code, c.CodeHash) {
		c.Attempts++
		if err := g.store.Save(ctx, c, remaining); err != nil {
			return nil, fmt.Errorf("failed to record attempt: %w", err)
		}
		log.Printf("[STEPUP] challenge %s: wrong code, attempt %d of %d", c.ID, c.Attempts, g.cfg.MaxAttempts)
		if c.Attempts >= g.cfg.MaxAttempts {
			return nil, ErrTooManyAttempts
		}
		return nil, ErrInvalidCode
	}

	c.Verified = true
	c.VerifiedAt = &now
	if err := g.store.Save(ctx, c, remaining); err != nil {
		return nil, fmt.Errorf("failed to mark challenge verified: %w", err)
	}

	log.Printf("[STEPUP] challenge %s verified for user %s", c.ID, userID)
	return c, nil
}

func (g *Gate) generateCode() (string, error) {
	const charset = "0123456789"
	code := make([]byte, g.cfg.CodeLength)
	charsetLen := big.NewInt(int64(len(charset)))

	for i := range code {
		n, err := rand.Int(rand.Reader, charsetLen)
		if err != nil {
			return "", err
		}
		code[i] = charset[n.Int64()]
	}
	return string(code), nil
}
