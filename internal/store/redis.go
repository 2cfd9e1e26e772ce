package store

import (
	"context"
	"fmt"

	"github.com/DukeRupert/labsnap/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	subscriptionKeyPrefix = "labsnap:subscription:"
	usageKeyPrefix        = "labsnap:usage:"
)

// RedisStore keeps each record as a Redis hash keyed by user id.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) GetSubscription(ctx context.Context, userID string) (domain.Subscription, error) {
	fields, err := s.load(ctx, subscriptionKeyPrefix+userID)
	if err != nil {
		return domain.Subscription{}, err
	}
	return DecodeSubscription(fields)
}

func (s *RedisStore) PutSubscription(ctx context.Context, userID string, sub domain.Subscription) error {
	return s.replace(ctx, subscriptionKeyPrefix+userID, EncodeSubscription(sub))
}

func (s *RedisStore) GetUsage(ctx context.Context, userID string) (domain.UsageCounters, error) {
	fields, err := s.load(ctx, usageKeyPrefix+userID)
	if err != nil {
		return domain.UsageCounters{}, err
	}
	return DecodeUsage(fields)
}

func (s *RedisStore) PutUsage(ctx context.Context, userID string, usage domain.UsageCounters) error {
	return s.replace(ctx, usageKeyPrefix+userID, EncodeUsage(usage))
}

func (s *RedisStore) load(ctx context.Context, key string) (map[string]string, error) {
	fields, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall %s: %w", key, err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}
	return fields, nil
}

// replace overwrites the hash in one transaction so stale fields never survive.
func (s *RedisStore) replace(ctx context.Context, key string, fields map[string]string) error {
	values := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		values[k] = v
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, values)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis replace %s: %w", key, err)
	}
	return nil
}
