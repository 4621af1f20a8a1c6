package middleware

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/aivanceworks/leadform/internal/forms"
	"github.com/aivanceworks/leadform/internal/metrics"
	"github.com/aivanceworks/leadform/internal/ratelimit"
)

// RateLimit returns a middleware that guards a route group with a coarse
// per-client budget, independent of the per-form budgets enforced by the
// submission pipelines. name labels the rate_limited_total metric.
//
// Requests are keyed by the identifier set by ClientIP.
func RateLimit(limiter ratelimit.Limiter, name string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identifier := GetClientIP(r.Context())
			if identifier == "" {
				identifier = UnknownClient
			}

			decision := limiter.Check(identifier)
			setRateLimitHeaders(w, decision, time.Now())

			if !decision.Allowed {
				metrics.RecordRateLimited(name)
				writeRateLimitResponse(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RetryAfterSeconds rounds a wait up to whole seconds, at least one.
func RetryAfterSeconds(d time.Duration) int {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

// setRateLimitHeaders sets the rate limit headers on the response.
func setRateLimitHeaders(w http.ResponseWriter, d ratelimit.Decision, now time.Time) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))

	if !d.Allowed {
		if !d.ResetAt.IsZero() {
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
		}
		w.Header().Set("Retry-After", strconv.Itoa(RetryAfterSeconds(d.RetryAfter(now))))
	}
}

// writeRateLimitResponse writes the 429 response.
func writeRateLimitResponse(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(forms.Failed(forms.OutcomeRateLimited, "Too many requests. Please try again later."))
}
