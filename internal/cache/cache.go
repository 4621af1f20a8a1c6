// Package cache handles Redis caching operations.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aivanceworks/leadform/internal/config"
)

// ErrCacheMiss is returned when a key is not cached.
var ErrCacheMiss = errors.New("cache miss")

// Cache defines the interface for caching operations.
type Cache interface {
	// Get retrieves a value from the cache.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in the cache with a TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from the cache.
	Delete(ctx context.Context, key string) error

	// Exists checks if a key exists in the cache.
	Exists(ctx context.Context, key string) (bool, error)

	// Ping checks if the cache is healthy.
	Ping(ctx context.Context) error

	// Close closes the cache connection.
	Close() error
}

// RedisCache implements Cache using Redis.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a Redis cache client and verifies connectivity.
func NewRedisCache(ctx context.Context, cfg *config.RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisCache{client: client}, nil
}

// Get retrieves a value from the cache.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("cache get failed: %w", err)
	}
	return val, nil
}

// Set stores a value in the cache with a TTL.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("cache set failed: %w", err)
	}
	return nil
}

// Delete removes a value from the cache.
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("cache delete failed: %w", err)
	}
	return nil
}

// Exists checks if a key exists in the cache.
func (c *RedisCache) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("cache exists check failed: %w", err)
	}
	return n > 0, nil
}

// Ping checks if the cache is healthy.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// HealthCheck pings Redis. It matches handlers.CheckFunc.
func (c *RedisCache) HealthCheck(ctx context.Context) error {
	return c.Ping(ctx)
}

// Close closes the cache connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// Client returns the underlying Redis client for advanced operations.
func (c *RedisCache) Client() *redis.Client {
	return c.client
}

// CachedSubscriber is a newsletter subscriber as stored in the cache.
type CachedSubscriber struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}

// SubscriberCacher defines the subscriber cache operations.
type SubscriberCacher interface {
	Get(ctx context.Context, email string) (*CachedSubscriber, error)
	Set(ctx context.Context, sub *CachedSubscriber) error
	Delete(ctx context.Context, email string) error
	Exists(ctx context.Context, email string) (bool, error)
	Ping(ctx context.Context) error
}

var _ SubscriberCacher = (*SubscriberCache)(nil)

// SubscriberCache caches newsletter membership keyed by lower-cased email.
type SubscriberCache struct {
	cache      Cache
	keyPrefix  string
	defaultTTL time.Duration
}

// NewSubscriberCache creates a subscriber cache.
func NewSubscriberCache(cache Cache, keyPrefix string, defaultTTL time.Duration) *SubscriberCache {
	if keyPrefix == "" {
		keyPrefix = "newsletter:subscriber:"
	}
	if defaultTTL <= 0 {
		defaultTTL = 24 * time.Hour
	}
	return &SubscriberCache{
		cache:      cache,
		keyPrefix:  keyPrefix,
		defaultTTL: defaultTTL,
	}
}

// Get retrieves a cached subscriber.
func (c *SubscriberCache) Get(ctx context.Context, email string) (*CachedSubscriber, error) {
	data, err := c.cache.Get(ctx, c.key(email))
	if err != nil {
		return nil, err
	}

	var sub CachedSubscriber
	if err := json.Unmarshal(data, &sub); err != nil {
		_ = c.cache.Delete(ctx, c.key(email))
		return nil, fmt.Errorf("failed to unmarshal cached subscriber: %w", err)
	}
	return &sub, nil
}

// Set stores a subscriber for the default TTL.
func (c *SubscriberCache) Set(ctx context.Context, sub *CachedSubscriber) error {
	data, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("failed to marshal subscriber: %w", err)
	}
	return c.cache.Set(ctx, c.key(sub.Email), data, c.defaultTTL)
}

// Delete removes a subscriber from the cache.
func (c *SubscriberCache) Delete(ctx context.Context, email string) error {
	return c.cache.Delete(ctx, c.key(email))
}

// Exists checks if a subscriber is cached.
func (c *SubscriberCache) Exists(ctx context.Context, email string) (bool, error) {
	return c.cache.Exists(ctx, c.key(email))
}

// Ping checks if the cache is healthy.
func (c *SubscriberCache) Ping(ctx context.Context) error {
	return c.cache.Ping(ctx)
}

func (c *SubscriberCache) key(email string) string {
	return c.keyPrefix + strings.ToLower(strings.TrimSpace(email))
}
