package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"market-screener/models"
)

// CacheKey normalizes a query so that case and spacing do not split entries.
func CacheKey(query string) string {
	return strings.ToLower(strings.Join(strings.Fields(query), " "))
}

type memoryEntry struct {
	res     *models.AnalysisResult
	expires time.Time
}

// MemoryCache is an in-process ResultCache. It is safe for concurrent use.
type MemoryCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryCache creates a MemoryCache. A non-positive ttl never expires entries.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{ttl: ttl, entries: make(map[string]memoryEntry), now: time.Now}
}

func (c *MemoryCache) Get(_ context.Context, query string) (*models.AnalysisResult, bool, error) {
	c.mu.RLock()
	e, ok := c.entries[CacheKey(query)]
	c.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}
	if !e.expires.IsZero() && c.now().After(e.expires) {
		c.mu.Lock()
		delete(c.entries, CacheKey(query))
		c.mu.Unlock()
		return nil, false, nil
	}
	return e.res, true, nil
}

func (c *MemoryCache) Put(_ context.Context, query string, res *models.AnalysisResult) error {
	e := memoryEntry{res: res}
	if c.ttl > 0 {
		e.expires = c.now().Add(c.ttl)
	}
	c.mu.Lock()
	c.entries[CacheKey(query)] = e
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Reset(context.Context) error {
	c.mu.Lock()
	c.entries = make(map[string]memoryEntry)
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Close() error { return nil }

const redisKeyPrefix = "market-screener:result:"

// RedisCache shares results between server instances through Redis.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache connects to Redis and verifies connectivity.
func NewRedisCache(addr, password string, db int, ttl time.Duration) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: connect to %s: %w", addr, err)
	}

	return &RedisCache{client: client, ttl: ttl}, nil
}

func (c *RedisCache) Get(ctx context.Context, query string) (*models.AnalysisResult, bool, error) {
	data, err := c.client.Get(ctx, redisKeyPrefix+CacheKey(query)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis: get: %w", err)
	}

	var res models.AnalysisResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, false, fmt.Errorf("redis: decode cached result: %w", err)
	}
	return &res, true, nil
}

func (c *RedisCache) Put(ctx context.Context, query string, res *models.AnalysisResult) error {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("redis: encode result: %w", err)
	}
	if err := c.client.Set(ctx, redisKeyPrefix+CacheKey(query), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set: %w", err)
	}
	return nil
}

// Reset deletes every cached result of this application.
func (c *RedisCache) Reset(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis: scan: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis: delete: %w", err)
	}
	return nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
