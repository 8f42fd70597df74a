// internal/services/cache_service.go
// Cache service for Redis operations: the standings read-through cache,
// rate limiting counters, and (via SetNX) the match assigner's
// short-leased per-referee lock.

package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// CacheService handles all caching operations. Every method takes the
// caller's context rather than defaulting to context.Background(), so a
// slow Redis round trip is bounded by the same deadline as the request
// that triggered it (the dispatcher already threads one through every
// handler call).
type CacheService struct {
	client *redis.Client
	logger *log.Logger
}

// NewCacheService creates a new cache service
func NewCacheService(client *redis.Client, logger *log.Logger) *CacheService {
	return &CacheService{
		client: client,
		logger: logger,
	}
}

// Set stores a value in cache with expiration
func (s *CacheService) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	if err := s.client.Set(ctx, key, data, expiration).Err(); err != nil {
		return fmt.Errorf("failed to set cache: %w", err)
	}

	return nil
}

// Get retrieves a value from cache
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) error {
	data, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return fmt.Errorf("key not found")
	}
	if err != nil {
		return fmt.Errorf("failed to get from cache: %w", err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to unmarshal value: %w", err)
	}

	return nil
}

// Delete removes a key from cache
func (s *CacheService) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete from cache: %w", err)
	}

	return nil
}

// Increment increments a counter in cache, used by the sender-keyed rate
// limiter (internal/middleware/rate_limiter.go).
func (s *CacheService) Increment(ctx context.Context, key string, expiration time.Duration) (int, error) {
	// Use pipeline for atomic operation
	pipe := s.client.Pipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, expiration)

	_, err := pipe.Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to increment: %w", err)
	}

	return int(incr.Val()), nil
}

// SetNX sets a key only if it doesn't exist, the primitive behind the
// match assigner's per-referee lock (internal/services/assigner_service.go).
func (s *CacheService) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return false, fmt.Errorf("failed to marshal value: %w", err)
	}

	ok, err := s.client.SetNX(ctx, key, data, expiration).Result()
	if err != nil {
		return false, fmt.Errorf("failed to setnx: %w", err)
	}

	return ok, nil
}
