// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts total HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration measures request latency in seconds.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	// ActiveConnections tracks current active connections.
	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_connections",
			Help: "Number of active connections",
		},
	)

	// CacheHitsTotal counts subscriber cache hits.
	CacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of cache hits",
		},
	)

	// CacheMissesTotal counts subscriber cache misses.
	CacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of cache misses",
		},
	)

	// DBQueryDuration measures database query latency.
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)

	// ContactSubmissionsTotal counts contact submissions by outcome.
	ContactSubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contact_submissions_total",
			Help: "Total number of contact form submissions by outcome",
		},
		[]string{"outcome"},
	)

	// NewsletterSignupsTotal counts newsletter signups by outcome.
	NewsletterSignupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsletter_signups_total",
			Help: "Total number of newsletter signups by outcome",
		},
		[]string{"outcome"},
	)

	// NewsletterUnsubscribesTotal counts unsubscribe requests by outcome.
	NewsletterUnsubscribesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsletter_unsubscribes_total",
			Help: "Total number of newsletter unsubscribe requests by outcome",
		},
		[]string{"outcome"},
	)

	// RateLimitedTotal counts denied admissions per limiter.
	RateLimitedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limited_total",
			Help: "Total number of rate-limited requests",
		},
		[]string{"limiter"},
	)

	// EmailsSentTotal counts outbound emails by kind and status.
	EmailsSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emails_sent_total",
			Help: "Total number of outbound emails by kind and status",
		},
		[]string{"kind", "status"},
	)

	// EmailSendDuration measures how long the mail provider takes to accept a message.
	EmailSendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "email_send_duration_seconds",
			Help:    "Email send duration in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"kind"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordRequest records an HTTP request metric.
func RecordRequest(method, path string, status int, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordCacheHit records a cache hit.
func RecordCacheHit() {
	CacheHitsTotal.Inc()
}

// RecordCacheMiss records a cache miss.
func RecordCacheMiss() {
	CacheMissesTotal.Inc()
}

// RecordDBQuery records a database query duration.
func RecordDBQuery(operation string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordContactSubmission records the outcome of a contact submission.
func RecordContactSubmission(outcome string) {
	ContactSubmissionsTotal.WithLabelValues(outcome).Inc()
}

// RecordNewsletterSignup records the outcome of a newsletter signup.
func RecordNewsletterSignup(outcome string) {
	NewsletterSignupsTotal.WithLabelValues(outcome).Inc()
}

// RecordNewsletterUnsubscribe records the outcome of an unsubscribe request.
func RecordNewsletterUnsubscribe(outcome string) {
	NewsletterUnsubscribesTotal.WithLabelValues(outcome).Inc()
}

// RecordRateLimited records a denied admission for the named limiter.
func RecordRateLimited(limiter string) {
	RateLimitedTotal.WithLabelValues(limiter).Inc()
}

// RecordEmail records one send attempt of the given kind.
func RecordEmail(kind string, err error, duration time.Duration) {
	status := "sent"
	if err != nil {
		status = "failed"
	}
	EmailsSentTotal.WithLabelValues(kind, status).Inc()
	EmailSendDuration.WithLabelValues(kind).Observe(duration.Seconds())
}
