package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisSink pushes events onto a Redis list, capped at maxLen, for
// consumption by downstream billing and analytics workers.
type RedisSink struct {
	client *redis.Client
	key    string
	maxLen int64
}

// NewRedisSink creates a Redis-backed event sink
func NewRedisSink(client *redis.Client, key string, maxLen int64) *RedisSink {
	if maxLen <= 0 {
		maxLen = 100_000
	}
	return &RedisSink{
		client: client,
		key:    key,
		maxLen: maxLen,
	}
}

// Publish appends the event to the list and trims it to maxLen
func (s *RedisSink) Publish(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.RPush(ctx, s.key, data)
	pipe.LTrim(ctx, s.key, -s.maxLen, -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to push event to Redis: %w", err)
	}

	return nil
}

// Close closes the underlying Redis client
func (s *RedisSink) Close() error {
	return s.client.Close()
}
