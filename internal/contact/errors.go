package contact

import (
	"errors"
	"sort"
	"strings"
)

// Pipeline errors. They classify a terminal branch for logs and spans and
// are never shown to the visitor.
var (
	ErrRateLimited = errors.New("contact: rate limit exceeded")
	ErrValidation  = errors.New("contact: invalid submission")
	ErrDelivery    = errors.New("contact: delivery failed")
	ErrUnexpected  = errors.New("contact: unexpected failure")
)

// ValidationError carries the per-field violations of a rejected Input.
type ValidationError struct {
	Fields map[string][]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return "contact: invalid fields: " + strings.Join(names, ", ")
}

// Unwrap lets errors.Is match ErrValidation.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
