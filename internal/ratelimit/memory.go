package ratelimit

import (
	"sync"
	"time"

	"github.com/aivanceworks/leadform/internal/clock"
)

// SlidingWindow implements an in-memory sliding window log limiter.
//
// Each identifier maps to the timestamps of its admitted requests. Expired
// timestamps are dropped lazily when the identifier is next checked, so the
// number of admitted requests inside any trailing window never exceeds the
// configured budget regardless of how calls align with the clock.
//
// The whole check-and-record step runs under one mutex. The structure is
// process-local; separate processes do not share budgets.
type SlidingWindow struct {
	config Config
	clock  clock.Clock

	mu   sync.Mutex
	logs map[string][]time.Time

	// For cleanup
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// Option configures a SlidingWindow.
type Option func(*SlidingWindow)

// WithClock sets the time source. Defaults to the real clock.
func WithClock(c clock.Clock) Option {
	return func(sw *SlidingWindow) {
		sw.clock = c
	}
}

// NewSlidingWindow creates a new in-memory sliding window limiter.
func NewSlidingWindow(cfg Config, opts ...Option) (*SlidingWindow, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	sw := &SlidingWindow{
		config: cfg,
		clock:  clock.Real{},
		logs:   make(map[string][]time.Time),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(sw)
	}

	if cfg.CleanupInterval > 0 {
		sw.wg.Add(1)
		go sw.cleanupLoop()
	}

	return sw, nil
}

// Check decides whether a request from identifier is admitted.
func (sw *SlidingWindow) Check(identifier string) Decision {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	now := sw.clock.Now()
	live := sw.live(identifier, now)

	if len(live) >= sw.config.Requests {
		// Denied attempts are not recorded.
		sw.store(identifier, live)
		return Decision{
			Allowed:   false,
			Remaining: 0,
			Limit:     sw.config.Requests,
			ResetAt:   oldest(live).Add(sw.config.Window),
		}
	}

	live = append(live, now)
	sw.logs[identifier] = live

	return Decision{
		Allowed:   true,
		Remaining: sw.config.Requests - len(live),
		Limit:     sw.config.Requests,
	}
}

// Count returns the number of unexpired requests for identifier.
// It does not modify any state.
func (sw *SlidingWindow) Count(identifier string) int {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	windowStart := sw.clock.Now().Add(-sw.config.Window)
	count := 0
	for _, ts := range sw.logs[identifier] {
		if ts.After(windowStart) {
			count++
		}
	}
	return count
}

// Clear removes all history for identifier.
func (sw *SlidingWindow) Clear(identifier string) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	delete(sw.logs, identifier)
}

// ClearAll removes history for every identifier.
func (sw *SlidingWindow) ClearAll() {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	sw.logs = make(map[string][]time.Time)
}

// Len returns the number of identifiers currently tracked.
func (sw *SlidingWindow) Len() int {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return len(sw.logs)
}

// Config returns the limiter configuration.
func (sw *SlidingWindow) Config() Config {
	return sw.config
}

// Close stops the cleanup goroutine if one is running.
func (sw *SlidingWindow) Close() error {
	sw.closeOnce.Do(func() {
		close(sw.done)
	})
	sw.wg.Wait()
	return nil
}

// live returns the timestamps for identifier that are still inside the
// window ending at now. Must be called with sw.mu held.
func (sw *SlidingWindow) live(identifier string, now time.Time) []time.Time {
	windowStart := now.Add(-sw.config.Window)

	entries := sw.logs[identifier]
	pruned := entries[:0]
	for _, ts := range entries {
		if ts.After(windowStart) {
			pruned = append(pruned, ts)
		}
	}
	return pruned
}

// store writes back a pruned log, dropping the key when nothing is left.
// Must be called with sw.mu held.
func (sw *SlidingWindow) store(identifier string, live []time.Time) {
	if len(live) == 0 {
		delete(sw.logs, identifier)
		return
	}
	sw.logs[identifier] = live
}

// cleanupLoop periodically removes identifiers with no live requests.
func (sw *SlidingWindow) cleanupLoop() {
	defer sw.wg.Done()

	ticker := time.NewTicker(sw.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-sw.done:
			return
		case <-ticker.C:
			sw.cleanup()
		}
	}
}

// cleanup prunes every identifier. An absent key and an empty log are
// equivalent, so this never changes a later decision.
func (sw *SlidingWindow) cleanup() {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	now := sw.clock.Now()
	for id := range sw.logs {
		sw.store(id, sw.live(id, now))
	}
}

func oldest(ts []time.Time) time.Time {
	first := ts[0]
	for _, t := range ts[1:] {
		if t.Before(first) {
			first = t
		}
	}
	return first
}
