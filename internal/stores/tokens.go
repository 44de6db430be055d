// Package stores holds Redis-backed persistence for session tokens, offline
// credentials, and session-scoped state. Types here are wire-level; the root
// package adapts them to its public interfaces.
package stores

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable indicates the Redis backend is unreachable.
var ErrRedisUnavailable = errors.New("store redis unavailable")

const (
	fieldAccessToken  = "at"
	fieldRefreshToken = "rt"
	fieldExpiry       = "exp"
)

// TokenRecord is the persisted token pair.
type TokenRecord struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

// TokenStore persists a single token pair in a Redis hash.
type TokenStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewTokenStore creates a [TokenStore]. prefix defaults to "lg".
func NewTokenStore(redisClient redis.UniversalClient, prefix string) *TokenStore {
	if prefix == "" {
		prefix = "lg"
	}
	return &TokenStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *TokenStore) key() string {
	return s.prefix + ":token"
}

func (s *TokenStore) Save(ctx context.Context, record TokenRecord) error {
	var expiry int64
	if !record.Expiry.IsZero() {
		expiry = record.Expiry.UnixMilli()
	}

	err := s.redis.HSet(ctx, s.key(),
		fieldAccessToken, record.AccessToken,
		fieldRefreshToken, record.RefreshToken,
		fieldExpiry, expiry,
	).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Load returns the stored token pair, or (nil, nil) when none is stored.
func (s *TokenStore) Load(ctx context.Context) (*TokenRecord, error) {
	values, err := s.redis.HGetAll(ctx, s.key()).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(values) == 0 {
		return nil, nil
	}

	record := &TokenRecord{
		AccessToken:  values[fieldAccessToken],
		RefreshToken: values[fieldRefreshToken],
	}
	if raw := values[fieldExpiry]; raw != "" && raw != "0" {
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: corrupt expiry: %v", ErrRedisUnavailable, err)
		}
		record.Expiry = time.UnixMilli(ms)
	}

	return record, nil
}

func (s *TokenStore) Delete(ctx context.Context) error {
	if err := s.redis.Del(ctx, s.key()).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
