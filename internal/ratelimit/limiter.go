// Package ratelimit provides sliding-window admission control keyed by
// client identifier.
package ratelimit

import (
	"errors"
	"time"
)

// ErrInvalidConfig is returned when a limiter is configured with a
// non-positive request budget or window.
var ErrInvalidConfig = errors.New("rate limit requests and window must be positive")

// Decision is the outcome of a single admission check.
type Decision struct {
	Allowed   bool      // Whether the request was admitted and recorded
	Remaining int       // Admissions left in the current window, never negative
	Limit     int       // The configured budget
	ResetAt   time.Time // Set only when denied: when the oldest counted request leaves the window
}

// RetryAfter returns how long a denied caller should wait, measured from now.
// It is zero for admitted decisions.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	if d.Allowed || d.ResetAt.IsZero() {
		return 0
	}
	wait := d.ResetAt.Sub(now)
	if wait < 0 {
		return 0
	}
	return wait
}

// Limiter defines the admission control interface.
type Limiter interface {
	// Check decides whether a new request from identifier may proceed and
	// records it when admitted. Denied attempts are not recorded.
	Check(identifier string) Decision

	// Count returns the number of requests in the trailing window for
	// identifier without recording anything.
	Count(identifier string) int

	// Clear drops all history for identifier.
	Clear(identifier string)

	// ClearAll drops history for every identifier.
	ClearAll()

	// Close releases any resources held by the limiter.
	Close() error
}

// Config holds rate limiter configuration.
type Config struct {
	Requests int           // Maximum admitted requests per window
	Window   time.Duration // Trailing window length

	// CleanupInterval enables a janitor that deletes identifiers whose
	// history has fully expired. Zero disables it.
	CleanupInterval time.Duration
}

// Validate reports whether the configuration is usable.
func (c Config) Validate() error {
	if c.Requests <= 0 || c.Window <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

// ContactFormConfig is the budget applied to contact form submissions:
// five per hour per client.
func ContactFormConfig() Config {
	return Config{
		Requests: 5,
		Window:   time.Hour,
	}
}

// NewsletterConfig is the budget applied to newsletter signups:
// three per hour per client.
func NewsletterConfig() Config {
	return Config{
		Requests: 3,
		Window:   time.Hour,
	}
}
