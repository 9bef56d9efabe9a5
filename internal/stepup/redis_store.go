package stepup

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const challengeKeyPrefix = "stepup:challenge:"

type RedisStore struct {
	redis *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{redis: client}
}

func challengeKey(id string) string {
	return challengeKeyPrefix + id
}

func (s *RedisStore) Save(ctx context.Context, c *Challenge, ttl time.Duration) error {
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, challengeKey(c.ID), string(data), ttl).Err()
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Challenge, error) {
	data, err := s.redis.Get(ctx, challengeKey(id)).Bytes()
	if err == redis.Nil {
		return nil, ErrChallengeNotFound
	}
	if err != nil {
		return nil, err
	}

	var c Challenge
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("corrupt challenge %s: %w", id, err)
	}
	return &c, nil
}
