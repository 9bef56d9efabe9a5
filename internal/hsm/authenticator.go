package hsm

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/ruralpay/payauth/internal/models"
)

type HashSource interface {
	PINHash(ctx context.Context, userID string) (string, error)
}

// PINAuthenticator checks a customer's PIN. After MaxFailures wrong PINs
// within Lockout every attempt is refused until the window expires.
type PINAuthenticator struct {
	hashes      HashSource
	vault       *PINVault
	client      *redis.Client
	maxFailures int
	lockout     time.Duration
}

func NewPINAuthenticator(hashes HashSource, vault *PINVault, client *redis.Client, maxFailures int, lockout time.Duration) *PINAuthenticator {
	return &PINAuthenticator{
		hashes:      hashes,
		vault:       vault,
		client:      client,
		maxFailures: maxFailures,
		lockout:     lockout,
	}
}

func failuresKey(userID string) string {
	return "pin:failures:" + userID
}

// VerifyPIN returns false, nil for a wrong PIN, a locked user or a user
// without a PIN. Errors are infrastructure failures only.
func (a *PINAuthenticator) VerifyPIN(ctx context.Context, userID, pin string) (bool, error) {
	locked, err := a.locked(ctx, userID)
	if err != nil {
		return false, err
	}
	if locked {
		log.Printf("[HSM] PIN attempts locked for user %s", userID)
		return false, nil
	}

	hash, err := a.hashes.PINHash(ctx, userID)
	if errors.Is(err, models.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("pin hash lookup: %w", err)
	}

	ok, err := a.vault.Compare(pin, hash)
	if err != nil {
		return false, err
	}
	if !ok {
		a.recordFailure(ctx, userID)
		return false, nil
	}

	if a.client != nil {
		if err := a.client.Del(ctx, failuresKey(userID)).Err(); err != nil {
			log.Printf("[HSM] failed to reset PIN failures for %s: %v", userID, err)
		}
	}
	return true, nil
}

func (a *PINAuthenticator) locked(ctx context.Context, userID string) (bool, error) {
	if a.client == nil {
		return false, nil
	}
	failures, err := a.client.Get(ctx, failuresKey(userID)).Int()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("pin failure counter: %w", err)
	}
	return failures >= a.maxFailures, nil
}

func (a *PINAuthenticator) recordFailure(ctx context.Context, userID string) {
	if a.client == nil {
		return
	}
	key := failuresKey(userID)
	pipe := a.client.Pipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, a.lockout)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("[HSM] failed to record PIN failure for %s: %v", userID, err)
	}
}
