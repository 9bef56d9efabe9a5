package repository

import (
	"context"

	"github.com/go-redis/redis/v8"
)

// CacheInvalidator drops the balance and recent-activity views that a booked
// payment makes stale.
type CacheInvalidator struct {
	client *redis.Client
}

func NewCacheInvalidator(client *redis.Client) *CacheInvalidator {
	return &CacheInvalidator{client: client}
}

func balanceKey(accountID string) string { return "balance:" + accountID }

func activityKey(userID string) string { return "activity:" + userID }

func (c *CacheInvalidator) Invalidate(ctx context.Context, userID string, accountIDs ...string) error {
	keys := []string{activityKey(userID)}
	for _, id := range accountIDs {
		keys = append(keys, balanceKey(id))
	}
	return c.client.Del(ctx, keys...).Err()
}
