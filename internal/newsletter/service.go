package newsletter

import (
	"context"
	"errors"
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

const (
	msgSubscribed        = "Thanks for subscribing! Check your inbox for a welcome email."
	msgAlreadySubscribed = "You're already subscribed."
	msgInvalid           = "Please enter a valid email address."
	msgStoreFailed       = "We couldn't complete your subscription. Please try again later."
	msgUnexpected        = "An unexpected error occurred. Please try again later."
	msgUnsubscribed      = "You've been unsubscribed. Sorry to see you go."
	msgUnsubscribeFailed = "We couldn't process your request. Please try again later."
)

// DefaultSource tags signups that do not name where they came from.
const DefaultSource = "website"

type schema struct {
	Email  string `json:"email" validate:"required,email,max=255"`
	Source string `json:"source" validate:"omitempty,max=50"`
}

var messages = forms.Messages{
	"email": {
		"required":      "Email is required",
		forms.TagString: "Email must be a string",
		"email":         "Invalid email address",
		"max":           "Email must be less than 255 characters",
	},
	"source": {
		forms.TagString: "Source must be a string",
		"max":           "Source must be less than 50 characters",
	},
}

// Service runs newsletter signups.
type Service struct {
	limiter   ratelimit.Limiter
	store     Store
	notifier  Notifier
	log       *logger.Logger
	clock     clock.Clock
	location  *time.Location
	tracer    trace.Tracer
	sanitizer *security.Sanitizer
	validator *forms.Validator
}

// Option configures a Service.
type Option func(*Service)

// WithClock sets the clock used to compute retry delays.
func WithClock(c clock.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithLocation sets the time zone retry times are rendered in.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithSanitizer sets the sanitizer applied to addresses.
func WithSanitizer(san *security.Sanitizer) Option {
	return func(s *Service) {
		if san != nil {
			s.sanitizer = san
		}
	}
}

// WithTracer sets the tracer; the global provider is used otherwise.
func WithTracer(t trace.Tracer) Option {
	return func(s *Service) { s.tracer = t }
}

// NewService creates a newsletter Service.
func NewService(limiter ratelimit.Limiter, store Store, notifier Notifier, log *logger.Logger, opts ...Option) *Service {
	s := &Service{
		limiter:   limiter,
		store:     store,
		notifier:  notifier,
		log:       log,
		clock:     clock.Real{},
		location:  time.UTC,
		sanitizer: security.NewSanitizer(security.DefaultConfig()),
		validator: forms.NewValidator(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer("leadform/newsletter")
	}
	return s
}

// Subscribe adds an address to the newsletter. Signing up twice is not an
// error, but only the first signup receives a welcome mail. A failed
// welcome mail does not undo the subscription.
func (s *Service) Subscribe(ctx context.Context, in Input, clientID string) (result forms.Result) {
	ctx, span := s.tracer.Start(ctx, "newsletter.Subscribe")
	log := logger.FromContext(ctx, s.log).With("client_id", clientID)

	defer func() {
		if r := recover(); r != nil {
			log.Error("newsletter signup panicked", "error", fmt.Sprint(r))
			result = forms.Failed(forms.OutcomeUnexpected, msgUnexpected)
		}
		span.SetAttributes(attribute.String("newsletter.outcome", result.Outcome.String()))
		if !result.Success {
			span.SetStatus(codes.Error, result.Outcome.String())
		}
		span.End()
	}()

	decision := s.limiter.Check(clientID)
	if !decision.Allowed {
		log.Warn("newsletter rate limit exceeded", "reset_at", decision.ResetAt)
		return forms.RateLimited(
			fmt.Sprintf("Too many requests. Please try again after %s.", forms.FormatRetryTime(decision.ResetAt, s.location)),
			decision.RetryAfter(s.clock.Now()),
		)
	}

	email, source, fields := s.validate(in)
	if len(fields) > 0 {
		log.Warn("newsletter validation failed", "fields", fields)
		return forms.FailedFields(msgInvalid, fields)
	}

	_, err := s.store.Add(ctx, email, source)
	switch {
	case errors.Is(err, ErrAlreadySubscribed):
		log.Info("newsletter signup repeated")
		return forms.Succeeded(msgAlreadySubscribed)
	case err != nil:
		log.Error("newsletter store failed", "error", err)
		span.RecordError(err)
		return forms.Failed(forms.OutcomeDeliveryFailed, msgStoreFailed)
	}

	delivery, err := s.notifier.SendNewsletterWelcome(ctx, email)
	if err != nil {
		log.Error("newsletter welcome mail failed", "error", err)
		span.RecordError(err)
	} else if delivery != nil {
		log.Info("newsletter welcome mail sent", "message_id", delivery.MessageID)
	}

	log.Info("newsletter signup stored", "source", source)
	return forms.Succeeded(msgSubscribed)
}

// Unsubscribe removes an address from the newsletter. It shares the signup
// limiter. An address that was never subscribed gets the same answer as one
// that was.
func (s *Service) Unsubscribe(ctx context.Context, in Input, clientID string) (result forms.Result) {
	ctx, span := s.tracer.Start(ctx, "newsletter.Unsubscribe")
	log := logger.FromContext(ctx, s.log).With("client_id", clientID)

	defer func() {
		if r := recover(); r != nil {
			log.Error("newsletter unsubscribe panicked", "error", fmt.Sprint(r))
			result = forms.Failed(forms.OutcomeUnexpected, msgUnexpected)
		}
		span.SetAttributes(attribute.String("newsletter.outcome", result.Outcome.String()))
		if !result.Success {
			span.SetStatus(codes.Error, result.Outcome.String())
		}
		span.End()
	}()

	decision := s.limiter.Check(clientID)
	if !decision.Allowed {
		log.Warn("newsletter rate limit exceeded", "reset_at", decision.ResetAt)
		return forms.RateLimited(
			fmt.Sprintf("Too many requests. Please try again after %s.", forms.FormatRetryTime(decision.ResetAt, s.location)),
			decision.RetryAfter(s.clock.Now()),
		)
	}

	in.Source = ""
	email, _, fields := s.validate(in)
	if len(fields) > 0 {
		log.Warn("newsletter unsubscribe validation failed", "fields", fields)
		return forms.FailedFields(msgInvalid, fields)
	}

	err := s.store.Delete(ctx, email)
	switch {
	case errors.Is(err, ErrNotSubscribed):
		log.Info("newsletter unsubscribe for unknown address")
	case err != nil:
		log.Error("newsletter unsubscribe failed", "error", err)
		span.RecordError(err)
		return forms.Failed(forms.OutcomeDeliveryFailed, msgUnsubscribeFailed)
	default:
		log.Info("newsletter subscriber removed")
	}
	return forms.Succeeded(msgUnsubscribed)
}

func (s *Service) validate(in Input) (email, source string, fields forms.FieldErrors) {
	fields = forms.FieldErrors{}

	email, err := s.sanitizer.Email(in.Email)
	switch {
	case errors.Is(err, security.ErrLineBreak):
		fields.Add("email", "Email must be a single line")
	case errors.Is(err, security.ErrBlockedDomain):
		fields.Add("email", "Please use a different email address")
	}

	source, _ = s.sanitizer.Line(in.Source)
	if source == "" {
		source = DefaultSource
	}

	schemaErrs, err := s.validator.Check(schema{Email: email, Source: source}, messages)
	if err != nil {
		panic(err)
	}
	fields.Merge(schemaErrs)

	for field, msgs := range messages.NotStrings(in.Mistyped) {
		fields[field] = msgs
	}
	return email, source, fields
}
