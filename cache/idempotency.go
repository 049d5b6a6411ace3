package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const idempotencyPrefix = "idem:orders:"

// IdempotencyStore remembers the first successful response per key.
type IdempotencyStore struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewIdempotencyStore(client *redis.Client, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{redis: client, ttl: ttl}
}

// Get returns the stored response, or found=false when the key is unused.
func (s *IdempotencyStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := s.redis.Get(ctx, idempotencyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

// Save keeps the first value written for key.
func (s *IdempotencyStore) Save(ctx context.Context, key string, value []byte) error {
	return s.redis.SetNX(ctx, idempotencyPrefix+key, value, s.ttl).Err()
}
