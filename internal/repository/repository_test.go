package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aivanceworks/leadform/internal/cache"
	"github.com/aivanceworks/leadform/internal/clock"
	"github.com/aivanceworks/leadform/internal/config"
	"github.com/aivanceworks/leadform/internal/database"
	"github.com/aivanceworks/leadform/internal/newsletter"
)

func skipIfNoPostgres(t *testing.T) {
	t.Helper()
	if os.Getenv("TEST_POSTGRES") != "true" {
		t.Skip("Skipping: TEST_POSTGRES not set. Run with docker-compose up -d")
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func testDBConfig() *config.DatabaseConfig {
	return &config.DatabaseConfig{
		Host:     getEnvOrDefault("DB_HOST", "localhost"),
		Port:     5432,
		User:     getEnvOrDefault("DB_USER", "leadform"),
		Password: getEnvOrDefault("DB_PASSWORD", "leadform_dev_password"),
		DBName:   getEnvOrDefault("DB_NAME", "leadform"),
		SSLMode:  "disable",
	}
}

func setupPostgres(t *testing.T) *PostgresSubscriberRepository {
	t.Helper()
	skipIfNoPostgres(t)

	ctx := context.Background()
	pool, err := database.NewPool(ctx, testDBConfig())
	require.NoError(t, err)

	migrator, err := database.NewMigrator(pool)
	require.NoError(t, err)
	_, err = migrator.Up(ctx)
	require.NoError(t, err)

	t.Cleanup(func() {
		_, _ = pool.Exec(ctx, "DELETE FROM newsletter_subscribers WHERE email LIKE 'test-%'")
		pool.Close()
	})

	return NewPostgresSubscriberRepository(pool)
}

// repositories returns every implementation that can run in this environment.
func repositories(t *testing.T) map[string]SubscriberRepository {
	t.Helper()

	repos := map[string]SubscriberRepository{
		"memory": NewMemorySubscriberRepository(nil),
		"cached": NewCachedSubscriberRepository(NewMemorySubscriberRepository(nil), newFakeCache()),
	}
	if os.Getenv("TEST_POSTGRES") == "true" {
		repos["postgres"] = setupPostgres(t)
	}
	return repos
}

func TestSubscriberRepository_Contract(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			email := fmt.Sprintf("test-%d@example.com", time.Now().UnixNano())

			sub, err := repo.Add(ctx, email, "footer")
			require.NoError(t, err)
			assert.Equal(t, email, sub.Email)
			assert.Equal(t, "footer", sub.Source)
			assert.NotZero(t, sub.ID)

			_, err = repo.Add(ctx, email, "footer")
			assert.ErrorIs(t, err, newsletter.ErrAlreadySubscribed)

			exists, err := repo.Exists(ctx, email)
			require.NoError(t, err)
			assert.True(t, exists)

			got, err := repo.Get(ctx, email)
			require.NoError(t, err)
			assert.Equal(t, sub.ID, got.ID)

			require.NoError(t, repo.Delete(ctx, email))
			assert.ErrorIs(t, repo.Delete(ctx, email), newsletter.ErrNotSubscribed)

			_, err = repo.Get(ctx, email)
			assert.ErrorIs(t, err, newsletter.ErrNotSubscribed)

			exists, err = repo.Exists(ctx, email)
			require.NoError(t, err)
			assert.False(t, exists)

			assert.NoError(t, repo.HealthCheck(ctx))
		})
	}
}

func TestSubscriberRepository_CaseInsensitive(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			email := fmt.Sprintf("test-case-%d@example.com", time.Now().UnixNano())

			_, err := repo.Add(ctx, email, "website")
			require.NoError(t, err)

			_, err = repo.Add(ctx, "TEST-CASE"+email[len("test-case"):], "website")
			assert.ErrorIs(t, err, newsletter.ErrAlreadySubscribed)
		})
	}
}

func TestMemorySubscriberRepository_Count(t *testing.T) {
	clk := clock.NewManual(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))
	repo := NewMemorySubscriberRepository(clk)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := repo.Add(ctx, fmt.Sprintf("r%d@example.com", i), "website")
		require.NoError(t, err)
	}

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	sub, err := repo.Get(ctx, "r0@example.com")
	require.NoError(t, err)
	assert.Equal(t, clk.Now(), sub.CreatedAt)
}

func TestMemorySubscriberRepository_Concurrent(t *testing.T) {
	repo := NewMemorySubscriberRepository(nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	added := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.Add(ctx, "same@example.com", "website"); err == nil {
				mu.Lock()
				added++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, added)
}

// fakeCache is an in-memory cache.SubscriberCacher.
type fakeCache struct {
	mu      sync.Mutex
	entries map[string]*cache.CachedSubscriber
	failing bool
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]*cache.CachedSubscriber)}
}

func (f *fakeCache) Get(_ context.Context, email string) (*cache.CachedSubscriber, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return nil, errors.New("redis down")
	}
	sub, ok := f.entries[memoryKey(email)]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return sub, nil
}

func (f *fakeCache) Set(_ context.Context, sub *cache.CachedSubscriber) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return errors.New("redis down")
	}
	f.entries[memoryKey(sub.Email)] = sub
	return nil
}

func (f *fakeCache) Delete(_ context.Context, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entries, memoryKey(email))
	return nil
}

func (f *fakeCache) Exists(_ context.Context, email string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return false, errors.New("redis down")
	}
	_, ok := f.entries[memoryKey(email)]
	return ok, nil
}

func (f *fakeCache) Ping(_ context.Context) error {
	return nil
}

func TestCachedSubscriberRepository_WritesThrough(t *testing.T) {
	base := NewMemorySubscriberRepository(nil)
	fc := newFakeCache()
	repo := NewCachedSubscriberRepository(base, fc)
	ctx := context.Background()

	_, err := repo.Add(ctx, "reader@example.com", "website")
	require.NoError(t, err)

	hit, _ := fc.Exists(ctx, "reader@example.com")
	assert.True(t, hit)
}

func TestCachedSubscriberRepository_CacheHitSkipsRepository(t *testing.T) {
	base := NewMemorySubscriberRepository(nil)
	fc := newFakeCache()
	repo := NewCachedSubscriberRepository(base, fc)
	ctx := context.Background()

	require.NoError(t, fc.Set(ctx, &cache.CachedSubscriber{ID: 9, Email: "cached@example.com"}))

	_, err := repo.Add(ctx, "cached@example.com", "website")
	assert.ErrorIs(t, err, newsletter.ErrAlreadySubscribed)

	n, _ := base.Count(ctx)
	assert.Equal(t, int64(0), n, "repository is not touched on a cache hit")

	got, err := repo.Get(ctx, "cached@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(9), got.ID)
}

func TestCachedSubscriberRepository_FillsOnMiss(t *testing.T) {
	base := NewMemorySubscriberRepository(nil)
	fc := newFakeCache()
	repo := NewCachedSubscriberRepository(base, fc)
	ctx := context.Background()

	_, err := base.Add(ctx, "reader@example.com", "website")
	require.NoError(t, err)

	exists, err := repo.Exists(ctx, "reader@example.com")
	require.NoError(t, err)
	assert.True(t, exists)

	hit, _ := fc.Exists(ctx, "reader@example.com")
	assert.True(t, hit)
}

func TestCachedSubscriberRepository_CacheFailureIsNotFatal(t *testing.T) {
	base := NewMemorySubscriberRepository(nil)
	fc := newFakeCache()
	fc.failing = true
	repo := NewCachedSubscriberRepository(base, fc)
	ctx := context.Background()

	_, err := repo.Add(ctx, "reader@example.com", "website")
	require.NoError(t, err)

	exists, err := repo.Exists(ctx, "reader@example.com")
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = repo.Add(ctx, "reader@example.com", "website")
	assert.ErrorIs(t, err, newsletter.ErrAlreadySubscribed)
}

func TestCachedSubscriberRepository_DeleteEvicts(t *testing.T) {
	base := NewMemorySubscriberRepository(nil)
	fc := newFakeCache()
	repo := NewCachedSubscriberRepository(base, fc)
	ctx := context.Background()

	_, err := repo.Add(ctx, "reader@example.com", "website")
	require.NoError(t, err)
	require.NoError(t, repo.Delete(ctx, "reader@example.com"))

	hit, _ := fc.Exists(ctx, "reader@example.com")
	assert.False(t, hit)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestIsDuplicateKeyError(t *testing.T) {
	assert.False(t, isDuplicateKeyError(nil))
	assert.False(t, isDuplicateKeyError(errors.New("duplicate key 23505")))
}
