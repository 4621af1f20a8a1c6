package contact

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/aivanceworks/leadform/internal/clock"
	"github.com/aivanceworks/leadform/internal/forms"
	"github.com/aivanceworks/leadform/internal/ratelimit"
	"github.com/aivanceworks/leadform/internal/security"
	"github.com/aivanceworks/leadform/pkg/logger"
)

// DefaultFallbackEmail is the address offered when the form cannot be used.
const DefaultFallbackEmail = "contact@aivanceworks.com"

// Visitor-facing result messages.
const (
	msgSuccess = "Thank you for your message! We'll respond within 24 hours."
	msgInvalid = "Invalid form data. Please check your inputs and try again."
)

// Service runs the contact submission pipeline.
type Service struct {
	limiter   ratelimit.Limiter
	notifier  Notifier
	validator *Validator
	log       *logger.Logger
	clock     clock.Clock
	location  *time.Location
	fallback  string
	tracer    trace.Tracer
	sanitizer *security.Sanitizer
}

// Option configures a Service.
type Option func(*Service)

// WithClock sets the clock used to render retry times.
func WithClock(c clock.Clock) Option {
	return func(s *Service) {
		s.clock = c
	}
}

// WithFallbackEmail sets the address quoted in failure messages.
func WithFallbackEmail(addr string) Option {
	return func(s *Service) {
		if addr != "" {
			s.fallback = addr
		}
	}
}

// WithLocation sets the time zone retry times are rendered in.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithSanitizer sets the sanitizer used during validation.
func WithSanitizer(san *security.Sanitizer) Option {
	return func(s *Service) {
		s.sanitizer = san
	}
}

// WithTracer sets the tracer; the global provider is used otherwise.
func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

// NewService creates a contact Service.
func NewService(limiter ratelimit.Limiter, notifier Notifier, log *logger.Logger, opts ...Option) *Service {
	s := &Service{
		limiter:  limiter,
		notifier: notifier,
		log:      log,
		clock:    clock.Real{},
		location: time.UTC,
		fallback: DefaultFallbackEmail,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer("leadform/contact")
	}
	s.validator = NewValidator(s.sanitizer)
	return s
}

// Submit runs one submission through admission, validation and delivery.
// It never panics and never returns an error: every outcome, including an
// internal fault, is reported through the Result.
func (s *Service) Submit(ctx context.Context, in Input, clientID string) (result forms.Result) {
	ctx, span := s.tracer.Start(ctx, "contact.Submit")
	log := logger.FromContext(ctx, s.log).With("client_id", clientID)

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("%w: %v", ErrUnexpected, r)
			log.Error("contact submission panicked", "error", err)
			span.RecordError(err)
			result = s.unexpected()
		}
		span.SetAttributes(attribute.String("contact.outcome", result.Outcome.String()))
		if !result.Success {
			span.SetStatus(codes.Error, result.Outcome.String())
		}
		span.End()
	}()

	decision := s.limiter.Check(clientID)
	if !decision.Allowed {
		log.Warn("contact rate limit exceeded", "reset_at", decision.ResetAt)
		span.RecordError(ErrRateLimited)
		now := s.clock.Now()
		return forms.RateLimited(
			fmt.Sprintf("Too many requests. Please try again after %s or email us directly at %s.",
				forms.FormatRetryTime(decision.ResetAt, s.location), s.fallback),
			decision.RetryAfter(now),
		)
	}

	sub, verr := s.validator.Validate(in)
	if verr != nil {
		log.Warn("contact validation failed", "error", verr, "fields", verr.Fields)
		span.RecordError(verr)
		return forms.FailedFields(msgInvalid, verr.Fields)
	}
	span.SetAttributes(attribute.String("contact.budget_range", string(sub.BudgetRange)))

	delivery, err := s.notifier.SendContactForm(ctx, sub)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrDelivery, err)
		log.Error("contact delivery failed", "error", err, "company", sub.Company)
		span.RecordError(err)
		return forms.Failed(forms.OutcomeDeliveryFailed,
			fmt.Sprintf("We encountered an issue sending your message. Please email us directly at %s or try again later.", s.fallback))
	}

	messageID := ""
	if delivery != nil {
		messageID = delivery.MessageID
	}
	log.Info("contact submission delivered",
		"company", sub.Company,
		"budget_range", string(sub.BudgetRange),
		"message_id", messageID,
	)
	return forms.Succeeded(msgSuccess)
}

func (s *Service) unexpected() forms.Result {
	return forms.Unexpected(s.fallback)
}
