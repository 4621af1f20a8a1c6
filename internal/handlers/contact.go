package handlers

import (
	"context"
	"net/http"

	"github.com/aivanceworks/leadform/internal/contact"
	"github.com/aivanceworks/leadform/internal/forms"
	"github.com/aivanceworks/leadform/internal/metrics"
	"github.com/aivanceworks/leadform/internal/middleware"
	"github.com/aivanceworks/leadform/pkg/logger"
)

// ContactSubmitter runs a contact form submission.
type ContactSubmitter interface {
	Submit(ctx context.Context, in contact.Input, clientID string) forms.Result
}

// ContactHandler handles POST /api/contact.
type ContactHandler struct {
	service  ContactSubmitter
	maxBytes int64
	fallback string
	log      *logger.Logger
}

// NewContactHandler creates a new ContactHandler. fallback is the address
// named when the body cannot be read.
func NewContactHandler(svc ContactSubmitter, maxBytes int64, fallback string, log *logger.Logger) *ContactHandler {
	return &ContactHandler{service: svc, maxBytes: maxBytes, fallback: fallbackOrDefault(fallback), log: log}
}

// Submit handles POST /api/contact requests.
func (h *ContactHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var in contact.Input
	mistyped, err := decodeBody(w, r, h.maxBytes, map[string]*string{
		"name":        &in.Name,
		"email":       &in.Email,
		"company":     &in.Company,
		"budgetRange": &in.BudgetRange,
		"message":     &in.Message,
	})
	if err != nil {
		logger.FromContext(r.Context(), h.log).Warn("contact body rejected", "error", err)
		metrics.RecordContactSubmission("bad_request")
		writeBadRequest(w, h.fallback)
		return
	}
	in.Mistyped = mistyped

	id := clientID(r)
	in.Meta = contact.Meta{
		RequestID: middleware.GetRequestID(r.Context()),
		UserAgent: r.UserAgent(),
		ClientID:  id,
	}

	result := h.service.Submit(r.Context(), in, id)

	metrics.RecordContactSubmission(result.Outcome.String())
	if result.Outcome == forms.OutcomeRateLimited {
		metrics.RecordRateLimited("contact")
	}
	writeResult(w, result)
}
