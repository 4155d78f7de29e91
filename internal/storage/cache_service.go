package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/botique-hub/internal/types"
	"github.com/redis/go-redis/v9"
)

// CacheService provides high-level caching for agent profiles and job
// listings. Cache misses and cache errors are indistinguishable to callers
// that only care about a hit: Get returns (false, err) and callers fall
// through to the database.
type CacheService struct {
	redis *RedisCache
	ttl   time.Duration
}

// NewCacheService creates a new cache service
func NewCacheService(redis *RedisCache, ttl time.Duration) *CacheService {
	return &CacheService{
		redis: redis,
		ttl:   ttl,
	}
}

// CacheKeyType represents different types of cache keys
type CacheKeyType string

const (
	// CacheKeyAgent is for agent profiles
	CacheKeyAgent CacheKeyType = "agent"
	// CacheKeyJobs is for per-agent job listings
	CacheKeyJobs CacheKeyType = "jobs"
)

// GenerateCacheKey generates a cache key for a given type and parameters.
// Format: <type>:<param1>:<param2>:...
func (c *CacheService) GenerateCacheKey(keyType CacheKeyType, params ...string) string {
	normalized := make([]string, len(params))
	for i, param := range params {
		normalized[i] = strings.ToLower(param)
	}

	parts := append([]string{string(keyType)}, normalized...)
	return strings.Join(parts, ":")
}

// AgentKey generates a cache key for an agent profile.
// Format: agent:<agent-id>
func (c *CacheService) AgentKey(agentID string) string {
	return c.GenerateCacheKey(CacheKeyAgent, agentID)
}

// JobListKey generates a cache key for a job listing.
// Format: jobs:<agent-id>:<status>:<limit>:<offset>
func (c *CacheService) JobListKey(agentID string, status types.JobStatus, limit, offset int) string {
	return c.GenerateCacheKey(CacheKeyJobs, agentID, string(status),
		fmt.Sprintf("%d", limit), fmt.Sprintf("%d", offset))
}

// Set stores a value in cache with the configured TTL
func (c *CacheService) Set(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	return c.redis.Set(ctx, key, data, c.ttl)
}

// Get retrieves a value from cache and deserializes it into dest.
// Returns (false, nil) on a cache miss.
func (c *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := c.redis.Get(ctx, key)
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, fmt.Errorf("failed to get from cache: %w", err)
	}

	if err := json.Unmarshal([]byte(data), dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal cached value: %w", err)
	}

	return true, nil
}

// InvalidateAgent removes an agent's cached profile and job listings
func (c *CacheService) InvalidateAgent(ctx context.Context, agentID string) error {
	if err := c.redis.Del(ctx, c.AgentKey(agentID)); err != nil {
		return err
	}
	return c.redis.DelPattern(ctx, c.GenerateCacheKey(CacheKeyJobs, agentID)+":*")
}
