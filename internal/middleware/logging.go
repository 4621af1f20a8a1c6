package middleware

import (
	"net/http"
	"time"

	"github.com/aivanceworks/leadform/pkg/logger"
)

// Logging attaches a request-scoped logger to the context and writes one
// line per request once the handler returns. Successful health checks are
// not logged.
func Logging(log *logger.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := newResponseWriter(w)

			reqLog := log.With("request_id", GetRequestID(r.Context()))
			ctx := logger.NewContext(r.Context(), reqLog)

			next.ServeHTTP(rw, r.WithContext(ctx))

			if isHealthCheck(r.URL.Path) && rw.statusCode < http.StatusInternalServerError {
				return
			}

			reqLog.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rw.statusCode,
				"duration_ms", time.Since(start).Milliseconds(),
				"client_ip", GetClientIP(r.Context()),
			)
		})
	}
}

func isHealthCheck(path string) bool {
	return path == "/health" || path == "/ready" || path == "/metrics"
}
