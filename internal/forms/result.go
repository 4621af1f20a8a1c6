// Package forms holds the pieces shared by the public form pipelines: the
// result shape handed back to the site, outcome classification, and schema
// validation.
package forms

import (
	"fmt"
	"time"
)

// Outcome classifies which terminal branch a pipeline took.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeRateLimited
	OutcomeInvalid
	OutcomeDeliveryFailed
	OutcomeUnexpected
)

// String returns the label used in logs and metrics.
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeRateLimited:
		return "rate_limited"
	case OutcomeInvalid:
		return "invalid"
	case OutcomeDeliveryFailed:
		return "delivery_failed"
	default:
		return "unexpected"
	}
}

// Result is the only contract the site depends on. Exactly one branch is
// populated: Message on success, Error (and optionally FieldErrors) on
// failure. Build it with Succeeded, Failed or FailedFields.
type Result struct {
	Success     bool                `json:"success"`
	Message     string              `json:"message,omitempty"`
	Error       string              `json:"error,omitempty"`
	FieldErrors map[string][]string `json:"fieldErrors,omitempty"`

	// Outcome and RetryAfter are for the HTTP layer and are not serialized.
	Outcome    Outcome       `json:"-"`
	RetryAfter time.Duration `json:"-"`
}

// Succeeded builds a success result.
func Succeeded(message string) Result {
	return Result{
		Success: true,
		Message: message,
		Outcome: OutcomeSuccess,
	}
}

// Failed builds a failure result without field detail.
func Failed(outcome Outcome, errMsg string) Result {
	return Result{
		Success: false,
		Error:   errMsg,
		Outcome: outcome,
	}
}

// RateLimited builds a failure result for a denied admission.
func RateLimited(errMsg string, retryAfter time.Duration) Result {
	r := Failed(OutcomeRateLimited, errMsg)
	r.RetryAfter = retryAfter
	return r
}

// FailedFields builds a validation failure carrying per-field messages.
func FailedFields(errMsg string, fields map[string][]string) Result {
	r := Failed(OutcomeInvalid, errMsg)
	if len(fields) > 0 {
		r.FieldErrors = fields
	}
	return r
}

// Unexpected builds the failure result for an internal fault. It points
// the visitor at fallback so the message still reaches a person.
func Unexpected(fallback string) Result {
	return Failed(OutcomeUnexpected,
		fmt.Sprintf("An unexpected error occurred. Please try again or email us at %s.", fallback))
}

// Delivery identifies a message accepted by the mail provider.
type Delivery struct {
	MessageID string
}

// RetryTimeLayout renders the moment a rate-limited visitor may try again.
const RetryTimeLayout = "3:04 PM MST"

// FormatRetryTime renders resetAt in loc for a visitor-facing message. A zero
// time renders as "soon".
func FormatRetryTime(resetAt time.Time, loc *time.Location) string {
	if resetAt.IsZero() {
		return "soon"
	}
	if loc == nil {
		loc = time.UTC
	}
	return resetAt.In(loc).Format(RetryTimeLayout)
}
