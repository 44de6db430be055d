package stores

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// CredentialRecord is a credential pair queued for replay after a
// connectivity failure. Entries are keyed by principal so a retried principal
// overwrites its earlier entry instead of queueing twice.
type CredentialRecord struct {
	Principal string `json:"principal"`
	Secret    string `json:"secret"`
}

// OfflineStore persists queued credentials in a Redis hash keyed by principal.
type OfflineStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewOfflineStore creates an [OfflineStore]. prefix defaults to "lg".
func NewOfflineStore(redisClient redis.UniversalClient, prefix string) *OfflineStore {
	if prefix == "" {
		prefix = "lg"
	}
	return &OfflineStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *OfflineStore) key() string {
	return s.prefix + ":offline"
}

func (s *OfflineStore) Save(ctx context.Context, record CredentialRecord) error {
	encoded, err := json.Marshal(record)
	if err != nil {
		return err
	}

	if err := s.redis.HSet(ctx, s.key(), record.Principal, encoded).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (s *OfflineStore) LoadAll(ctx context.Context) ([]CredentialRecord, error) {
	values, err := s.redis.HGetAll(ctx, s.key()).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	records := make([]CredentialRecord, 0, len(values))
	for _, raw := range values {
		var record CredentialRecord
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			return nil, fmt.Errorf("%w: corrupt credential record: %v", ErrRedisUnavailable, err)
		}
		records = append(records, record)
	}
	return records, nil
}

func (s *OfflineStore) Delete(ctx context.Context, principal string) error {
	if err := s.redis.HDel(ctx, s.key(), principal).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (s *OfflineStore) ClearAll(ctx context.Context) error {
	if err := s.redis.Del(ctx, s.key()).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
