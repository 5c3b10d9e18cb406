package dating

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// OutcomeCache is a fast path in front of reward_events. It is never the
// source of truth: a miss falls through to the repository.
type OutcomeCache interface {
	Get(ctx context.Context, eventID string) ([]byte, bool, error)
	Set(ctx context.Context, eventID string, outcome []byte) error
}

type redisOutcomeCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisOutcomeCache(client *redis.Client, ttl time.Duration) OutcomeCache {
	return &redisOutcomeCache{client: client, ttl: ttl, prefix: "butterfly:outcome:"}
}

func (c *redisOutcomeCache) key(eventID string) string {
	return fmt.Sprintf("%s%s", c.prefix, eventID)
}

func (c *redisOutcomeCache) Get(ctx context.Context, eventID string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, c.key(eventID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (c *redisOutcomeCache) Set(ctx context.Context, eventID string, outcome []byte) error {
	return c.client.Set(ctx, c.key(eventID), outcome, c.ttl).Err()
}

type noopOutcomeCache struct{}

// NewNoopOutcomeCache is used when Redis is not configured.
func NewNoopOutcomeCache() OutcomeCache { return noopOutcomeCache{} }

func (noopOutcomeCache) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }

func (noopOutcomeCache) Set(context.Context, string, []byte) error { return nil }
