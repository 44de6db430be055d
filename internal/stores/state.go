package stores

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// StateStore is session-scoped key-value state under a common prefix. The
// engine only ever clears it wholesale during global logout.
type StateStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStateStore creates a [StateStore]. prefix defaults to "lg".
func NewStateStore(redisClient redis.UniversalClient, prefix string) *StateStore {
	if prefix == "" {
		prefix = "lg"
	}
	return &StateStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *StateStore) key(name string) string {
	return s.prefix + ":state:" + name
}

func (s *StateStore) Set(ctx context.Context, name, value string) error {
	if err := s.redis.Set(ctx, s.key(name), value, 0).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (s *StateStore) Get(ctx context.Context, name string) (string, bool, error) {
	value, err := s.redis.Get(ctx, s.key(name)).Result()
	if err != nil {
		if err == redis.Nil {
			return "", false, nil
		}
		return "", false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return value, true, nil
}

// Clear removes every key under the state prefix.
func (s *StateStore) Clear(ctx context.Context) error {
	iter := s.redis.Scan(ctx, 0, s.key("*"), 0).Iterator()
	for iter.Next(ctx) {
		if err := s.redis.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
