package middleware

import (
	"encoding/json"
	"net/http"
	"runtime/debug"

	"github.com/aivanceworks/leadform/internal/forms"
	"github.com/aivanceworks/leadform/pkg/logger"
)

// Recover turns a panic in a handler into a 500 response carrying a failed
// form result, so clients always receive the JSON shape they expect.
func Recover(log *logger.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					log.Error("panic recovered",
						"error", rec,
						"stack", string(debug.Stack()),
						"method", r.Method,
						"path", r.URL.Path,
						"request_id", w.Header().Get(HeaderXRequestID),
					)

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(
						forms.Failed(forms.OutcomeUnexpected, "An unexpected error occurred. Please try again later."))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
