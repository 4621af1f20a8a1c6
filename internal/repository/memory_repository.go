package repository

import (
	"context"
	"strings"
	"sync"

	"github.com/aivanceworks/leadform/internal/clock"
	"github.com/aivanceworks/leadform/internal/newsletter"
)

// MemorySubscriberRepository keeps subscribers in process memory. It is
// used when no database is configured; contents are lost on restart.
type MemorySubscriberRepository struct {
	mu     sync.RWMutex
	byKey  map[string]*newsletter.Subscriber
	nextID int64
	clock  clock.Clock
}

// NewMemorySubscriberRepository creates an empty repository. A nil clock
// uses the system time.
func NewMemorySubscriberRepository(c clock.Clock) *MemorySubscriberRepository {
	if c == nil {
		c = clock.Real{}
	}
	return &MemorySubscriberRepository{
		byKey: make(map[string]*newsletter.Subscriber),
		clock: c,
	}
}

// Add stores a subscriber.
func (r *MemorySubscriberRepository) Add(_ context.Context, email, source string) (*newsletter.Subscriber, error) {
	key := memoryKey(email)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byKey[key]; ok {
		return nil, newsletter.ErrAlreadySubscribed
	}

	r.nextID++
	sub := &newsletter.Subscriber{
		ID:        r.nextID,
		Email:     email,
		Source:    source,
		CreatedAt: r.clock.Now(),
	}
	r.byKey[key] = sub

	out := *sub
	return &out, nil
}

// Get retrieves a subscriber by email.
func (r *MemorySubscriberRepository) Get(_ context.Context, email string) (*newsletter.Subscriber, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sub, ok := r.byKey[memoryKey(email)]
	if !ok {
		return nil, newsletter.ErrNotSubscribed
	}
	out := *sub
	return &out, nil
}

// Exists checks whether an address is subscribed.
func (r *MemorySubscriberRepository) Exists(_ context.Context, email string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.byKey[memoryKey(email)]
	return ok, nil
}

// Delete removes a subscriber.
func (r *MemorySubscriberRepository) Delete(_ context.Context, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := memoryKey(email)
	if _, ok := r.byKey[key]; !ok {
		return newsletter.ErrNotSubscribed
	}
	delete(r.byKey, key)
	return nil
}

// Count returns the number of subscribers.
func (r *MemorySubscriberRepository) Count(_ context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.byKey)), nil
}

// HealthCheck always succeeds.
func (r *MemorySubscriberRepository) HealthCheck(_ context.Context) error {
	return nil
}

func memoryKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
