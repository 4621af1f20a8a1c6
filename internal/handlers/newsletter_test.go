package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/aivanceworks/leadform/internal/forms"
	"github.com/aivanceworks/leadform/internal/middleware"
	"github.com/aivanceworks/leadform/internal/newsletter"
	"github.com/aivanceworks/leadform/pkg/logger"
)

// MockNewsletterService is a mock implementation of NewsletterSubscriber.
type MockNewsletterService struct {
	mock.Mock
}

func (m *MockNewsletterService) Subscribe(ctx context.Context, in newsletter.Input, clientID string) forms.Result {
	args := m.Called(ctx, in, clientID)
	return args.Get(0).(forms.Result)
}

func (m *MockNewsletterService) Unsubscribe(ctx context.Context, in newsletter.Input, clientID string) forms.Result {
	args := m.Called(ctx, in, clientID)
	return args.Get(0).(forms.Result)
}

func serveNewsletter(h *NewsletterHandler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	middleware.New(middleware.RequestID(), middleware.ClientIP(false)).
		ThenFunc(h.Subscribe).
		ServeHTTP(rec, req)
	return rec
}

func TestNewsletterHandler_Subscribe(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		contentType    string
		result         forms.Result
		expectedStatus int
	}{
		{
			name:           "JSON success",
			body:           `{"email":"reader@example.com","source":"footer"}`,
			contentType:    "application/json",
			result:         forms.Succeeded("Thanks for subscribing!"),
			expectedStatus: http.StatusOK,
		},
		{
			name:           "form-encoded success",
			body:           url.Values{"email": {"reader@example.com"}, "source": {"footer"}}.Encode(),
			contentType:    "application/x-www-form-urlencoded",
			result:         forms.Succeeded("Thanks for subscribing!"),
			expectedStatus: http.StatusOK,
		},
		{
			name:           "invalid email returns 422",
			body:           `{"email":"reader@example.com","source":"footer"}`,
			contentType:    "application/json",
			result:         forms.FailedFields("Please enter a valid email address.", map[string][]string{"email": {"Invalid email address"}}),
			expectedStatus: http.StatusUnprocessableEntity,
		},
		{
			name:           "store failure returns 502",
			body:           `{"email":"reader@example.com","source":"footer"}`,
			contentType:    "application/json",
			result:         forms.Failed(forms.OutcomeDeliveryFailed, "We couldn't complete your subscription."),
			expectedStatus: http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockNewsletterService)
			svc.On("Subscribe", mock.Anything, mock.MatchedBy(func(in newsletter.Input) bool {
				return in.Email == "reader@example.com" && in.Source == "footer" && in.RequestID != ""
			}), "198.51.100.4").Return(tt.result).Once()

			h := NewNewsletterHandler(svc, 0, "help@example.com", logger.Nop())
			req := httptest.NewRequest(http.MethodPost, "/api/newsletter", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.contentType)
			req.Header.Set(middleware.HeaderXRealIP, "198.51.100.4")

			rec := serveNewsletter(h, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			svc.AssertExpectations(t)
		})
	}
}

func TestNewsletterHandler_RateLimited(t *testing.T) {
	svc := new(MockNewsletterService)
	svc.On("Subscribe", mock.Anything, mock.Anything, mock.Anything).
		Return(forms.RateLimited("Too many requests.", 0))

	h := NewNewsletterHandler(svc, 0, "help@example.com", logger.Nop())
	rec := serveNewsletter(h, httptest.NewRequest(http.MethodPost, "/api/newsletter",
		strings.NewReader(`{"email":"reader@example.com"}`)))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"), "Retry-After is at least one second")
}

func TestNewsletterHandler_BadBody(t *testing.T) {
	svc := new(MockNewsletterService)

	h := NewNewsletterHandler(svc, 16, "help@example.com", logger.Nop())
	rec := serveNewsletter(h, httptest.NewRequest(http.MethodPost, "/api/newsletter",
		strings.NewReader(`{"email":"`+strings.Repeat("a", 64)+`@example.com"}`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"success":false,"error":"An unexpected error occurred. Please try again or email us at help@example.com."}`, rec.Body.String())
	svc.AssertNotCalled(t, "Subscribe", mock.Anything, mock.Anything, mock.Anything)
}

func TestNewsletterHandler_MistypedEmail(t *testing.T) {
	svc := new(MockNewsletterService)
	svc.On("Subscribe", mock.Anything, mock.MatchedBy(func(in newsletter.Input) bool {
		return in.Email == "" && assert.ObjectsAreEqual([]string{"email"}, in.Mistyped)
	}), mock.Anything).Return(forms.FailedFields("Please enter a valid email address.",
		map[string][]string{"email": {"Email must be a string"}})).Once()

	h := NewNewsletterHandler(svc, 0, "", logger.Nop())
	rec := serveNewsletter(h, httptest.NewRequest(http.MethodPost, "/api/newsletter",
		strings.NewReader(`{"email":42}`)))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	svc.AssertExpectations(t)
}

func TestNewsletterHandler_Unsubscribe(t *testing.T) {
	svc := new(MockNewsletterService)
	svc.On("Unsubscribe", mock.Anything, mock.MatchedBy(func(in newsletter.Input) bool {
		return in.Email == "reader@example.com" && in.RequestID != ""
	}), "198.51.100.4").Return(forms.Succeeded("You've been unsubscribed.")).Once()

	h := NewNewsletterHandler(svc, 0, "help@example.com", logger.Nop())
	req := httptest.NewRequest(http.MethodPost, "/api/newsletter/unsubscribe",
		strings.NewReader(`{"email":"reader@example.com"}`))
	req.Header.Set(middleware.HeaderXRealIP, "198.51.100.4")

	rec := httptest.NewRecorder()
	middleware.New(middleware.RequestID(), middleware.ClientIP(false)).
		ThenFunc(h.Unsubscribe).
		ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"message":"You've been unsubscribed."}`, rec.Body.String())
	svc.AssertExpectations(t)
}

func TestNewsletterHandler_UnsubscribeBadBody(t *testing.T) {
	svc := new(MockNewsletterService)

	h := NewNewsletterHandler(svc, 0, "help@example.com", logger.Nop())
	rec := httptest.NewRecorder()
	h.Unsubscribe(rec, httptest.NewRequest(http.MethodPost, "/api/newsletter/unsubscribe", strings.NewReader(`email`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "Unsubscribe", mock.Anything, mock.Anything, mock.Anything)
}
