package cache

import (
	"context"
	"errors"
	"log"
	"time"
)

// MultiLevelCache reads through an in-process MemoryCache and, when
// configured, a shared RedisCache. Redis calls go through a CircuitBreaker;
// while the breaker is open the cache keeps working from memory alone.
type MultiLevelCache struct {
	l1      *MemoryCache
	l2      *RedisCache
	breaker *CircuitBreaker
	metrics *CacheMetrics
	l1TTL   time.Duration
}

type MultiLevelConfig struct {
	MemoryEntries  int
	MemoryTTL      time.Duration
	CircuitBreaker *CircuitBreakerConfig
}

func DefaultMultiLevelConfig() *MultiLevelConfig {
	return &MultiLevelConfig{
		MemoryEntries:  defaultMemoryCacheSize,
		MemoryTTL:      5 * time.Minute,
		CircuitBreaker: DefaultCircuitBreakerConfig(),
	}
}

// NewMultiLevelCache builds the cache. redisCache may be nil, in which case
// only the memory level is used.
func NewMultiLevelCache(redisCache *RedisCache, config *MultiLevelConfig) *MultiLevelCache {
	if config == nil {
		config = DefaultMultiLevelConfig()
	}

	return &MultiLevelCache{
		l1:      NewMemoryCache(config.MemoryEntries),
		l2:      redisCache,
		breaker: NewCircuitBreaker(config.CircuitBreaker),
		metrics: NewCacheMetrics(),
		l1TTL:   config.MemoryTTL,
	}
}

func (c *MultiLevelCache) memoryTTL(ttl time.Duration) time.Duration {
	if c.l1TTL > 0 && c.l1TTL < ttl {
		return c.l1TTL
	}
	return ttl
}

func (c *MultiLevelCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if err := c.l1.Set(key, value, c.memoryTTL(ttl)); err != nil {
		c.metrics.RecordError()
		return err
	}
	c.metrics.RecordSet()

	if c.l2 != nil {
		c.redis("set", func() error { return c.l2.Set(ctx, key, value, ttl) })
	}
	return nil
}

func (c *MultiLevelCache) Get(ctx context.Context, key string, dest interface{}) error {
	err := c.l1.Get(key, dest)
	if err == nil {
		c.metrics.RecordL1Hit()
		return nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		c.metrics.RecordError()
		c.l1.Delete(key)
	}

	if c.l2 == nil {
		c.metrics.RecordMiss()
		return ErrCacheMiss
	}

	var found bool
	c.redis("get", func() error {
		err := c.l2.Get(ctx, key, dest)
		if errors.Is(err, ErrCacheMiss) {
			return nil
		}
		found = err == nil
		return err
	})

	if !found {
		c.metrics.RecordMiss()
		return ErrCacheMiss
	}

	c.metrics.RecordL2Hit()
	_ = c.l1.Set(key, dest, c.l1TTL)
	return nil
}

func (c *MultiLevelCache) Delete(ctx context.Context, keys ...string) error {
	c.l1.Delete(keys...)
	c.metrics.RecordDelete()

	if c.l2 != nil {
		c.redis("delete", func() error { return c.l2.Delete(ctx, keys...) })
	}
	return nil
}

func (c *MultiLevelCache) DeletePattern(ctx context.Context, pattern string) error {
	if err := c.l1.DeletePattern(pattern); err != nil {
		return err
	}
	c.metrics.RecordDelete()

	if c.l2 != nil {
		c.redis("delete pattern", func() error { return c.l2.DeletePattern(ctx, pattern) })
	}
	return nil
}

// redis runs a level-two operation through the breaker. Failures are logged
// and counted but never returned: the memory level stays authoritative for
// this process.
func (c *MultiLevelCache) redis(op string, fn func() error) {
	err := c.breaker.Execute(fn)
	if err == nil {
		return
	}

	c.metrics.RecordDegraded()
	if !errors.Is(err, ErrCircuitBreakerOpen) {
		c.metrics.RecordError()
		log.Printf("Cache: redis %s failed, serving from memory: %v", op, err)
	}
}

func (c *MultiLevelCache) Metrics() CacheMetrics {
	return c.metrics.GetStats()
}

func (c *MultiLevelCache) Stats() map[string]interface{} {
	stats := map[string]interface{}{
		"l1":       c.l1.Stats(),
		"metrics":  c.metrics.GetStats(),
		"hit_rate": c.metrics.HitRate(),
	}

	if c.l2 != nil {
		stats["l2"] = c.l2.Stats()
		stats["circuit_breaker"] = c.breaker.GetStats()
	}

	return stats
}

func (c *MultiLevelCache) Health(ctx context.Context) error {
	if c.l2 != nil {
		return c.l2.Health(ctx)
	}
	return nil
}
