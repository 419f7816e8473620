package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/platinummonkey/seotools/pkg/observability"
)

var (
	// ErrCacheMiss is returned when a cache key is not found
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidCacheKey is returned when a cache key is empty
	ErrInvalidCacheKey = errors.New("invalid cache key")
)

// Cache stores serialized values by key
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// InvalidatePrefix removes every key starting with prefix
	InvalidatePrefix(ctx context.Context, prefix string) error
	Close() error
}

// MemoryCache is a process-local LRU with a fixed TTL per entry
type MemoryCache struct {
	cache   *lru.LRU[string, []byte]
	metrics *observability.Metrics
}

// NewMemoryCache creates an LRU holding at most size entries for ttl each
func NewMemoryCache(size int, ttl time.Duration, metrics *observability.Metrics) *MemoryCache {
	if size < 1 {
		size = 1
	}
	return &MemoryCache{
		cache:   lru.NewLRU[string, []byte](size, nil, ttl),
		metrics: metrics,
	}
}

// Get retrieves a cached value
func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrInvalidCacheKey
	}

	value, ok := c.cache.Get(key)
	c.metrics.RecordCache("lru", ok)
	if !ok {
		return nil, ErrCacheMiss
	}
	return value, nil
}

// Set stores a value. The per-call ttl is ignored; entries use the LRU's TTL.
func (c *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if key == "" {
		return ErrInvalidCacheKey
	}
	c.cache.Add(key, value)
	return nil
}

// InvalidatePrefix removes matching keys
func (c *MemoryCache) InvalidatePrefix(ctx context.Context, prefix string) error {
	for _, key := range c.cache.Keys() {
		if strings.HasPrefix(key, prefix) {
			c.cache.Remove(key)
		}
	}
	return nil
}

// Len returns the number of live entries
func (c *MemoryCache) Len() int {
	return c.cache.Len()
}

// Close releases resources
func (c *MemoryCache) Close() error {
	c.cache.Purge()
	return nil
}

// MultiLevelCache checks the local LRU before the shared Redis tier and back-fills L1
// on an L2 hit. Either level may be nil.
type MultiLevelCache struct {
	l1 Cache
	l2 Cache
}

// NewMultiLevelCache layers l1 in front of l2
func NewMultiLevelCache(l1, l2 Cache) *MultiLevelCache {
	return &MultiLevelCache{l1: l1, l2: l2}
}

// Get retrieves from L1 then L2
func (c *MultiLevelCache) Get(ctx context.Context, key string) ([]byte, error) {
	if c.l1 != nil {
		if value, err := c.l1.Get(ctx, key); err == nil {
			return value, nil
		}
	}

	if c.l2 != nil {
		value, err := c.l2.Get(ctx, key)
		if err == nil {
			if c.l1 != nil {
				_ = c.l1.Set(ctx, key, value, 0)
			}
			return value, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			return nil, err
		}
	}

	return nil, ErrCacheMiss
}

// Set writes through both levels. An L2 failure is returned after L1 is populated.
func (c *MultiLevelCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if c.l1 != nil {
		if err := c.l1.Set(ctx, key, value, ttl); err != nil {
			return err
		}
	}
	if c.l2 != nil {
		return c.l2.Set(ctx, key, value, ttl)
	}
	return nil
}

// InvalidatePrefix removes matching keys from both levels
func (c *MultiLevelCache) InvalidatePrefix(ctx context.Context, prefix string) error {
	var errs []error
	if c.l1 != nil {
		errs = append(errs, c.l1.InvalidatePrefix(ctx, prefix))
	}
	if c.l2 != nil {
		errs = append(errs, c.l2.InvalidatePrefix(ctx, prefix))
	}
	return errors.Join(errs...)
}

// Close closes both levels
func (c *MultiLevelCache) Close() error {
	var errs []error
	if c.l1 != nil {
		errs = append(errs, c.l1.Close())
	}
	if c.l2 != nil {
		errs = append(errs, c.l2.Close())
	}
	return errors.Join(errs...)
}
