package advisor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/redis/go-redis/v9"
)

// =============================================================================
// CACHE
// =============================================================================
//
// Identical requests (same property, unit and resolved proposal) get the same
// suggestion back without a second model call. Only successes are stored.

const cacheKeyPrefix = "proposal:suggestion:"

// Cache stores suggestions by key. A miss returns ok == false and no error.
type Cache interface {
	Get(ctx context.Context, key string) (Suggestion, bool, error)
	Set(ctx context.Context, key string, s Suggestion, ttl time.Duration) error
}

// CacheKey hashes the canonical JSON encoding of a request.
func CacheKey(req Request) (string, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%016x", cacheKeyPrefix, xxhash.Sum64(data)), nil
}

// CachedProvider consults a Cache before delegating to a Provider. Cache
// failures are logged and treated as misses.
type CachedProvider struct {
	next   Provider
	cache  Cache
	ttl    time.Duration
	logger *slog.Logger
}

func NewCachedProvider(next Provider, cache Cache, ttl time.Duration, logger *slog.Logger) *CachedProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedProvider{next: next, cache: cache, ttl: ttl, logger: logger}
}

// Suggest implements Provider.
func (c *CachedProvider) Suggest(ctx context.Context, req Request) (Suggestion, error) {
	key, err := CacheKey(req)
	if err != nil {
		return c.next.Suggest(ctx, req)
	}

	s, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		c.logger.Warn("suggestion cache read failed", "key", key, "error", err)
	} else if ok {
		c.logger.Debug("suggestion cache hit", "key", key)
		return s, nil
	}

	s, err = c.next.Suggest(ctx, req)
	if err != nil {
		return Suggestion{}, err
	}

	if err := c.cache.Set(ctx, key, s, c.ttl); err != nil {
		c.logger.Warn("suggestion cache write failed", "key", key, "error", err)
	}
	return s, nil
}

// =============================================================================
// MEMORY CACHE
// =============================================================================

type memoryEntry struct {
	suggestion Suggestion
	expiresAt  time.Time
}

// MemoryCache is a process-local Cache.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry), now: time.Now}
}

func (m *MemoryCache) Get(_ context.Context, key string) (Suggestion, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return Suggestion{}, false, nil
	}
	if !e.expiresAt.IsZero() && !m.now().Before(e.expiresAt) {
		delete(m.entries, key)
		return Suggestion{}, false, nil
	}
	return e.suggestion, true, nil
}

// Set stores s. A non-positive ttl keeps the entry until the process exits.
func (m *MemoryCache) Set(_ context.Context, key string, s Suggestion, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := memoryEntry{suggestion: s}
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}
	m.entries[key] = e
	return nil
}

// =============================================================================
// REDIS CACHE
// =============================================================================

// RedisCache shares suggestions between instances through Redis.
type RedisCache struct {
	client redis.Cmdable
}

func NewRedisCache(client redis.Cmdable) *RedisCache {
	return &RedisCache{client: client}
}

func (r *RedisCache) Get(ctx context.Context, key string) (Suggestion, bool, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Suggestion{}, false, nil
	}
	if err != nil {
		return Suggestion{}, false, fmt.Errorf("redis get: %w", err)
	}

	s, err := ParseSuggestion(data)
	if err != nil {
		return Suggestion{}, false, err
	}
	return s, true, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, s Suggestion, ttl time.Duration) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	if ttl < 0 {
		ttl = 0
	}
	if err := r.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
