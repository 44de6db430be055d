package loginguard

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/loginguard/loginguard/internal/stores"
)

// redisTokenStore adapts the internal Redis token store to [TokenStore].
type redisTokenStore struct {
	inner *stores.TokenStore
}

// NewRedisTokenStore creates a Redis-backed [TokenStore]. prefix defaults to
// "lg".
func NewRedisTokenStore(client redis.UniversalClient, prefix string) TokenStore {
	return &redisTokenStore{inner: stores.NewTokenStore(client, prefix)}
}

func (s *redisTokenStore) Save(ctx context.Context, token Token) error {
	return s.inner.Save(ctx, stores.TokenRecord{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Expiry:       token.Expiry,
	})
}

func (s *redisTokenStore) Load(ctx context.Context) (*Token, error) {
	record, err := s.inner.Load(ctx)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, nil
	}
	return &Token{
		AccessToken:  record.AccessToken,
		RefreshToken: record.RefreshToken,
		Expiry:       record.Expiry,
	}, nil
}

func (s *redisTokenStore) Delete(ctx context.Context) error {
	return s.inner.Delete(ctx)
}

// redisOfflineStore adapts the internal Redis offline store to
// [OfflineCredentialStore].
type redisOfflineStore struct {
	inner *stores.OfflineStore
}

// NewRedisOfflineStore creates a Redis-backed [OfflineCredentialStore].
// prefix defaults to "lg".
func NewRedisOfflineStore(client redis.UniversalClient, prefix string) OfflineCredentialStore {
	return &redisOfflineStore{inner: stores.NewOfflineStore(client, prefix)}
}

func (s *redisOfflineStore) Save(ctx context.Context, creds Credentials) error {
	return s.inner.Save(ctx, stores.CredentialRecord{
		Principal: creds.Principal,
		Secret:    creds.Secret,
	})
}

func (s *redisOfflineStore) LoadAll(ctx context.Context) ([]Credentials, error) {
	records, err := s.inner.LoadAll(ctx)
	if err != nil {
		return nil, err
	}

	creds := make([]Credentials, 0, len(records))
	for _, record := range records {
		creds = append(creds, Credentials{
			Principal: record.Principal,
			Secret:    record.Secret,
		})
	}
	return creds, nil
}

func (s *redisOfflineStore) Delete(ctx context.Context, creds Credentials) error {
	return s.inner.Delete(ctx, creds.Principal)
}

func (s *redisOfflineStore) ClearAll(ctx context.Context) error {
	return s.inner.ClearAll(ctx)
}

// NewRedisSessionState creates a Redis-backed [SessionStateStore]. prefix
// defaults to "lg".
func NewRedisSessionState(client redis.UniversalClient, prefix string) SessionStateStore {
	return stores.NewStateStore(client, prefix)
}

// memoryTokenStore is the single-process fallback used when no Redis client
// and no explicit store are supplied.
type memoryTokenStore struct {
	mu    sync.Mutex
	token *Token
}

func newMemoryTokenStore() *memoryTokenStore {
	return &memoryTokenStore{}
}

func (s *memoryTokenStore) Save(_ context.Context, token Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = &token
	return nil
}

func (s *memoryTokenStore) Load(context.Context) (*Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == nil {
		return nil, nil
	}
	copied := *s.token
	return &copied, nil
}

func (s *memoryTokenStore) Delete(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = nil
	return nil
}

type memoryOfflineStore struct {
	mu    sync.Mutex
	creds map[string]Credentials
}

func newMemoryOfflineStore() *memoryOfflineStore {
	return &memoryOfflineStore{creds: make(map[string]Credentials)}
}

func (s *memoryOfflineStore) Save(_ context.Context, creds Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds[creds.Principal] = creds
	return nil
}

func (s *memoryOfflineStore) LoadAll(context.Context) ([]Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Credentials, 0, len(s.creds))
	for _, c := range s.creds {
		out = append(out, c)
	}
	return out, nil
}

func (s *memoryOfflineStore) Delete(_ context.Context, creds Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.creds, creds.Principal)
	return nil
}

func (s *memoryOfflineStore) ClearAll(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = make(map[string]Credentials)
	return nil
}
