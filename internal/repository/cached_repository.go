package repository

import (
	"context"
	"errors"

	"github.com/aivanceworks/leadform/internal/cache"
	"github.com/aivanceworks/leadform/internal/metrics"
	"github.com/aivanceworks/leadform/internal/newsletter"
)

// CachedSubscriberRepository wraps a SubscriberRepository with a membership
// cache. Cache failures are never fatal; the wrapped repository is the
// source of truth.
type CachedSubscriberRepository struct {
	repo  SubscriberRepository
	cache cache.SubscriberCacher
}

// NewCachedSubscriberRepository creates a cached repository.
func NewCachedSubscriberRepository(repo SubscriberRepository, subCache cache.SubscriberCacher) *CachedSubscriberRepository {
	return &CachedSubscriberRepository{
		repo:  repo,
		cache: subCache,
	}
}

// Add rejects cached members without touching the database, then writes
// through to the cache.
func (c *CachedSubscriberRepository) Add(ctx context.Context, email, source string) (*newsletter.Subscriber, error) {
	if hit, _ := c.cache.Exists(ctx, email); hit {
		metrics.RecordCacheHit()
		return nil, newsletter.ErrAlreadySubscribed
	}

	sub, err := c.repo.Add(ctx, email, source)
	if err != nil {
		return nil, err
	}

	_ = c.cache.Set(ctx, toCached(sub))
	return sub, nil
}

// Get checks the cache first, falling back to the repository.
func (c *CachedSubscriberRepository) Get(ctx context.Context, email string) (*newsletter.Subscriber, error) {
	if cached, err := c.cache.Get(ctx, email); err == nil {
		metrics.RecordCacheHit()
		return fromCached(cached), nil
	}
	metrics.RecordCacheMiss()

	sub, err := c.repo.Get(ctx, email)
	if err != nil {
		return nil, err
	}

	_ = c.cache.Set(ctx, toCached(sub))
	return sub, nil
}

// Exists reports membership through Get so that positive answers are cached.
func (c *CachedSubscriberRepository) Exists(ctx context.Context, email string) (bool, error) {
	_, err := c.Get(ctx, email)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, newsletter.ErrNotSubscribed):
		return false, nil
	default:
		return false, err
	}
}

// Delete removes the subscriber from the cache and then the repository.
func (c *CachedSubscriberRepository) Delete(ctx context.Context, email string) error {
	_ = c.cache.Delete(ctx, email)
	return c.repo.Delete(ctx, email)
}

// Count is not cached.
func (c *CachedSubscriberRepository) Count(ctx context.Context) (int64, error) {
	return c.repo.Count(ctx)
}

// HealthCheck checks the repository; the cache is optional.
func (c *CachedSubscriberRepository) HealthCheck(ctx context.Context) error {
	return c.repo.HealthCheck(ctx)
}

func toCached(sub *newsletter.Subscriber) *cache.CachedSubscriber {
	return &cache.CachedSubscriber{
		ID:        sub.ID,
		Email:     sub.Email,
		Source:    sub.Source,
		CreatedAt: sub.CreatedAt,
	}
}

func fromCached(c *cache.CachedSubscriber) *newsletter.Subscriber {
	return &newsletter.Subscriber{
		ID:        c.ID,
		Email:     c.Email,
		Source:    c.Source,
		CreatedAt: c.CreatedAt,
	}
}
