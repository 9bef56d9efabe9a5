package stepup

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ruralpay/payauth/internal/config"
	"github.com/ruralpay/payauth/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	mu         sync.Mutex
	challenges map[string]Challenge
	err        error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{challenges: map[string]Challenge{}}
}

func (s *memoryStore) Save(ctx context.Context, c *Challenge, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.challenges[c.ID] = *c
	return nil
}

func (s *memoryStore) Get(ctx context.Context, id string) (*Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	c, ok := s.challenges[id]
	if !ok {
		return nil, ErrChallengeNotFound
	}
	return &c, nil
}

type plainHasher struct{}

func (plainHasher) Hash(secret string) (string, error) { return "h:" + secret, nil }
func (plainHasher) Verify(secret, encoded string) bool { return "h:"+secret == encoded }

var testStepUp = config.StepUpConfig{
	TransferThreshold:      2_500_000,
	PaymentThreshold:       1_000_000,
	StandingOrderThreshold: 1_000_000,
	ChallengeTTL:           5 * time.Minute,
	CodeLength:             6,
	MaxAttempts:            3,
}

type testClock struct{ now time.Time }

func (c *testClock) Now() time.Time { return c.now }

func newGate() (*Gate, *memoryStore, *testClock) {
	store := newMemoryStore()
	clock := &testClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
	return NewGate(testStepUp, store, plainHasher{}, clock.Now), store, clock
}

func TestGate_RequiresStepUp(t *testing.T) {
	g, _, _ := newGate()

	tests := []struct {
		name     string
		amount   int64
		purpose  models.Purpose
		expected bool
		category string
	}{
		{"payment at threshold", 1_000_000, models.PurposePayment, false, CategoryLargePayment},
		{"payment above threshold", 1_500_000, models.PurposePayment, true, CategoryLargePayment},
		{"transfer below its own threshold", 1_500_000, models.PurposeTransfer, false, CategoryLargeTransfer},
		{"transfer above threshold", 2_500_001, models.PurposeTransfer, true, CategoryLargeTransfer},
		{"standing order above threshold", 1_000_001, models.PurposeStandingOrder, true, CategoryLargePayment},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, g.RequiresStepUp(tt.amount, tt.purpose))
			assert.Equal(t, tt.category, g.Category(tt.purpose))

			req := g.Assess(tt.amount, tt.purpose)
			assert.Equal(t, tt.expected, req.Required)
			assert.Equal(t, g.Threshold(tt.purpose), req.Threshold)
		})
	}
}

func TestGate_IssueAndVerify(t *testing.T) {
	ctx := context.Background()

	t.Run("issued challenge is not verified until the code is confirmed", func(t *testing.T) {
		g, store, _ := newGate()

		c, code, err := g.Issue(ctx, "user-1", models.PurposePayment)
		require.NoError(t, err)
		assert.Len(t, code, 6)
		assert.Equal(t, "h:"+code, store.challenges[c.ID].CodeHash)

		ok, err := g.IsChallengeVerified(ctx, "user-1", c.ID)
		require.NoError(t, err)
		assert.False(t, ok)

		verified, err := g.Verify(ctx, "user-1", c.ID, code)
		require.NoError(t, err)
		assert.True(t, verified.Verified)
		assert.NotNil(t, verified.VerifiedAt)

		ok, err = g.IsChallengeVerified(ctx, "user-1", c.ID)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("challenge is bound to its owner", func(t *testing.T) {
		g, _, _ := newGate()
		c, code, err := g.Issue(ctx, "user-1", models.PurposePayment)
		require.NoError(t, err)

		_, err = g.Verify(ctx, "user-2", c.ID, code)
		assert.ErrorIs(t, err, ErrChallengeNotFound)

		_, err = g.Verify(ctx, "user-1", c.ID, code)
		require.NoError(t, err)

		ok, err := g.IsChallengeVerified(ctx, "user-2", c.ID)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("verified challenge lapses at expiry", func(t *testing.T) {
		g, _, clock := newGate()
		c, code, err := g.Issue(ctx, "user-1", models.PurposeTransfer)
		require.NoError(t, err)
		_, err = g.Verify(ctx, "user-1", c.ID, code)
		require.NoError(t, err)

		clock.now = clock.now.Add(5 * time.Minute)

		ok, err := g.IsChallengeVerified(ctx, "user-1", c.ID)
		require.NoError(t, err)
		assert.False(t, ok)

		_, err = g.Verify(ctx, "user-1", c.ID, code)
		assert.ErrorIs(t, err, ErrChallengeExpired)
	})

	t.Run("wrong codes exhaust attempts", func(t *testing.T) {
		g, store, _ := newGate()
		c, code, err := g.Issue(ctx, "user-1", models.PurposePayment)
		require.NoError(t, err)
		wrong := "x" + code[1:]

		_, err = g.Verify(ctx, "user-1", c.ID, wrong)
		assert.ErrorIs(t, err, ErrInvalidCode)
		_, err = g.Verify(ctx, "user-1", c.ID, wrong)
		assert.ErrorIs(t, err, ErrInvalidCode)
		_, err = g.Verify(ctx, "user-1", c.ID, wrong)
		assert.ErrorIs(t, err, ErrTooManyAttempts)

		_, err = g.Verify(ctx, "user-1", c.ID, code)
		assert.ErrorIs(t, err, ErrTooManyAttempts)
		assert.Equal(t, 3, store.challenges[c.ID].Attempts)
		assert.False(t, store.challenges[c.ID].Verified)
	})

	t.Run("unknown challenge", func(t *testing.T) {
		g, _, _ := newGate()

		ok, err := g.IsChallengeVerified(ctx, "user-1", "missing")
		require.NoError(t, err)
		assert.False(t, ok)

		_, err = g.Verify(ctx, "user-1", "missing", "123456")
		assert.ErrorIs(t, err, ErrChallengeNotFound)
	})

	t.Run("store failure surfaces", func(t *testing.T) {
		g, store, _ := newGate()
		store.err = errors.New("redis unavailable")

		_, err := g.IsChallengeVerified(ctx, "user-1", "c1")
		assert.ErrorContains(t, err, "redis unavailable")

		_, _, err = g.Issue(ctx, "user-1", models.PurposePayment)
		assert.ErrorContains(t, err, "failed to store challenge")
	})
}
