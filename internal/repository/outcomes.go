package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/ruralpay/payauth/internal/pipeline"
)

// OutcomeStore memoises terminal outcomes per (user, intent) in Redis.
type OutcomeStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewOutcomeStore(client *redis.Client, ttl time.Duration) *OutcomeStore {
	return &OutcomeStore{client: client, ttl: ttl}
}

func outcomeKey(userID, intentID string) string {
	return fmt.Sprintf("pipeline:outcome:%s:%s", userID, intentID)
}

func (s *OutcomeStore) Load(ctx context.Context, userID, intentID string) (pipeline.Outcome, bool, error) {
	data, err := s.client.Get(ctx, outcomeKey(userID, intentID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	out, err := pipeline.UnmarshalOutcome(data)
	if err != nil {
		return nil, false, fmt.Errorf("corrupt outcome for intent %s: %w", intentID, err)
	}
	return out, true, nil
}

func (s *OutcomeStore) Save(ctx context.Context, userID, intentID string, outcome pipeline.Outcome) error {
	data, err := pipeline.MarshalOutcome(outcome)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, outcomeKey(userID, intentID), string(data), s.ttl).Err()
}
