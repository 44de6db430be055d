package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	fieldCount       = "n"
	fieldLastFailure = "t"
)

// Redis is a ledger backed by a Redis hash per principal. The hash TTL is the
// failure window, refreshed on every increment, so streaks decay server-side.
type Redis struct {
	redis  redis.UniversalClient
	prefix string
	window time.Duration
	now    func() time.Time
}

// NewRedis creates a [Redis] ledger. prefix defaults to "lg". window behaves
// as in [NewMemory]; now defaults to [time.Now].
func NewRedis(redisClient redis.UniversalClient, prefix string, window time.Duration, now func() time.Time) *Redis {
	if prefix == "" {
		prefix = "lg"
	}
	if now == nil {
		now = time.Now
	}
	return &Redis{
		redis:  redisClient,
		prefix: prefix,
		window: window,
		now:    now,
	}
}

func (r *Redis) key(principal string) string {
	return r.prefix + ":fa:" + principal
}

func (r *Redis) GetAttempts(ctx context.Context, principal string) (int, error) {
	count, err := r.redis.HGet(ctx, r.key(principal), fieldCount).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return count, nil
}

func (r *Redis) IncrementAttempts(ctx context.Context, principal string) (int, error) {
	key := r.key(principal)
	now := r.now()

	var incr *redis.IntCmd
	_, err := r.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.HIncrBy(ctx, key, fieldCount, 1)
		pipe.HSet(ctx, key, fieldLastFailure, now.UnixMilli())
		if r.window > 0 {
			pipe.Expire(ctx, key, r.window)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return int(incr.Val()), nil
}

func (r *Redis) ResetAttempts(ctx context.Context, principal string) error {
	if err := r.redis.Del(ctx, r.key(principal)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (r *Redis) LastAttemptTime(ctx context.Context, principal string) (time.Time, bool, error) {
	raw, err := r.redis.HGet(ctx, r.key(principal), fieldLastFailure).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%w: corrupt timestamp: %v", ErrUnavailable, err)
	}
	return time.UnixMilli(ms), true, nil
}

func (r *Redis) Clear(ctx context.Context) error {
	iter := r.redis.Scan(ctx, 0, r.prefix+":fa:*", 0).Iterator()
	for iter.Next(ctx) {
		if err := r.redis.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
