package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/aivanceworks/leadform/internal/contact"
	"github.com/aivanceworks/leadform/internal/forms"
	"github.com/aivanceworks/leadform/internal/middleware"
)

// DefaultMaxBodyBytes bounds a form body when no limit is configured.
const DefaultMaxBodyBytes = 64 << 10

// Body errors
var (
	errUnsupportedMediaType = errors.New("unsupported content type")
	errNotObject            = errors.New("body is not a JSON object")
)

var jsonNull = []byte("null")

// fallbackOrDefault returns the address failure messages point visitors at.
func fallbackOrDefault(addr string) string {
	if addr == "" {
		return contact.DefaultFallbackEmail
	}
	return addr
}

// writeBadRequest answers a body that could not be read at all.
func writeBadRequest(w http.ResponseWriter, fallback string) {
	writeJSON(w, http.StatusBadRequest, forms.Unexpected(fallback))
}

// statusFor maps a pipeline outcome to an HTTP status code.
func statusFor(outcome forms.Outcome) int {
	switch outcome {
	case forms.OutcomeSuccess:
		return http.StatusOK
	case forms.OutcomeInvalid:
		return http.StatusUnprocessableEntity
	case forms.OutcomeRateLimited:
		return http.StatusTooManyRequests
	case forms.OutcomeDeliveryFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeResult writes a pipeline result with its mapped status.
func writeResult(w http.ResponseWriter, result forms.Result) {
	if result.Outcome == forms.OutcomeRateLimited {
		w.Header().Set("Retry-After", strconv.Itoa(middleware.RetryAfterSeconds(result.RetryAfter)))
	}
	writeJSON(w, statusFor(result.Outcome), result)
}

// clientID returns the identifier the ClientIP middleware derived.
func clientID(r *http.Request) string {
	if id := middleware.GetClientIP(r.Context()); id != "" {
		return id
	}
	return middleware.UnknownClient
}

// decodeBody reads a JSON object or a form-encoded body into the string
// pointers of fields, keyed by field name. A JSON value of the wrong type
// does not fail the body; its field name is returned in mistyped so the
// pipeline can report it alongside the other violations.
func decodeBody(w http.ResponseWriter, r *http.Request, maxBytes int64, fields map[string]*string) (mistyped []string, err error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodyBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	mediaType := "application/json"
	if ct := r.Header.Get("Content-Type"); ct != "" {
		if mediaType, _, err = mime.ParseMediaType(ct); err != nil {
			return nil, err
		}
	}

	switch {
	case mediaType == "application/json" || strings.HasSuffix(mediaType, "+json"):
		var raw map[string]json.RawMessage
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			return nil, err
		}
		if raw == nil {
			return nil, errNotObject
		}
		for name, dst := range fields {
			v, ok := raw[name]
			if !ok || bytes.Equal(v, jsonNull) {
				continue
			}
			if err := json.Unmarshal(v, dst); err != nil {
				mistyped = append(mistyped, name)
			}
		}
		sort.Strings(mistyped)
		return mistyped, nil
	case mediaType == "application/x-www-form-urlencoded" || mediaType == "multipart/form-data":
		if err := r.ParseMultipartForm(maxBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			return nil, err
		}
		for name, ptr := range fields {
			*ptr = r.PostForm.Get(name)
		}
		return nil, nil
	default:
		return nil, errUnsupportedMediaType
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
