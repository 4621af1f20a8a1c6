package handlers

import (
	"context"
	"net/http"

	"github.com/aivanceworks/leadform/internal/forms"
	"github.com/aivanceworks/leadform/internal/metrics"
	"github.com/aivanceworks/leadform/internal/middleware"
	"github.com/aivanceworks/leadform/internal/newsletter"
	"github.com/aivanceworks/leadform/pkg/logger"
)

// NewsletterSubscriber runs newsletter signups and removals.
type NewsletterSubscriber interface {
	Subscribe(ctx context.Context, in newsletter.Input, clientID string) forms.Result
	Unsubscribe(ctx context.Context, in newsletter.Input, clientID string) forms.Result
}

// NewsletterHandler handles POST /api/newsletter and
// POST /api/newsletter/unsubscribe.
type NewsletterHandler struct {
	service  NewsletterSubscriber
	maxBytes int64
	fallback string
	log      *logger.Logger
}

// NewNewsletterHandler creates a new NewsletterHandler.
func NewNewsletterHandler(svc NewsletterSubscriber, maxBytes int64, fallback string, log *logger.Logger) *NewsletterHandler {
	return &NewsletterHandler{service: svc, maxBytes: maxBytes, fallback: fallbackOrDefault(fallback), log: log}
}

// Subscribe handles POST /api/newsletter requests.
func (h *NewsletterHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var in newsletter.Input
	mistyped, err := decodeBody(w, r, h.maxBytes, map[string]*string{
		"email":  &in.Email,
		"source": &in.Source,
	})
	if err != nil {
		logger.FromContext(r.Context(), h.log).Warn("newsletter body rejected", "error", err)
		metrics.RecordNewsletterSignup("bad_request")
		writeBadRequest(w, h.fallback)
		return
	}
	in.Mistyped = mistyped
	in.RequestID = middleware.GetRequestID(r.Context())

	result := h.service.Subscribe(r.Context(), in, clientID(r))

	metrics.RecordNewsletterSignup(result.Outcome.String())
	if result.Outcome == forms.OutcomeRateLimited {
		metrics.RecordRateLimited("newsletter")
	}
	writeResult(w, result)
}

// Unsubscribe handles POST /api/newsletter/unsubscribe requests.
func (h *NewsletterHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	var in newsletter.Input
	mistyped, err := decodeBody(w, r, h.maxBytes, map[string]*string{
		"email": &in.Email,
	})
	if err != nil {
		logger.FromContext(r.Context(), h.log).Warn("unsubscribe body rejected", "error", err)
		metrics.RecordNewsletterUnsubscribe("bad_request")
		writeBadRequest(w, h.fallback)
		return
	}
	in.Mistyped = mistyped
	in.RequestID = middleware.GetRequestID(r.Context())

	result := h.service.Unsubscribe(r.Context(), in, clientID(r))

	metrics.RecordNewsletterUnsubscribe(result.Outcome.String())
	if result.Outcome == forms.OutcomeRateLimited {
		metrics.RecordRateLimited("newsletter")
	}
	writeResult(w, result)
}
