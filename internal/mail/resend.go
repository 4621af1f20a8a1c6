package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/resend/resend-go/v2"
	"golang.org/x/time/rate"
)

// DefaultResendBaseURL is the public Resend API endpoint.
const DefaultResendBaseURL = "https://api.resend.com"

// maxErrorBody bounds how much of an error reply is read.
const maxErrorBody = 16 << 10

// ResendConfig configures a ResendTransport.
type ResendConfig struct {
	APIKey        string
	BaseURL       string
	Timeout       time.Duration
	RatePerSecond float64 // Provider request quota; <= 0 disables throttling
	HTTPClient    *http.Client
}

// ResendTransport sends mail through the Resend SDK.
type ResendTransport struct {
	client  *resend.Client
	limiter *rate.Limiter
}

// NewResendTransport creates a ResendTransport.
func NewResendTransport(cfg ResendConfig) (*ResendTransport, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("resend api key is required")
	}

	raw := cfg.BaseURL
	if raw == "" {
		raw = DefaultResendBaseURL
	}
	baseURL, err := url.Parse(strings.TrimRight(raw, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("resend base url: %w", err)
	}

	var httpClient http.Client
	if cfg.HTTPClient != nil {
		httpClient = *cfg.HTTPClient
	} else {
		httpClient.Timeout = cfg.Timeout
		if httpClient.Timeout <= 0 {
			httpClient.Timeout = 10 * time.Second
		}
	}
	next := httpClient.Transport
	if next == nil {
		next = http.DefaultTransport
	}
	httpClient.Transport = replyRecorder{next: next}

	client := resend.NewCustomClient(&httpClient, cfg.APIKey)
	client.BaseURL = baseURL

	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}

	return &ResendTransport{
		client:  client,
		limiter: rate.NewLimiter(limit, 1),
	}, nil
}

// Send hands msg to the Resend emails endpoint. It waits for the send quota
// before issuing the request and never retries.
func (t *ResendTransport) Send(ctx context.Context, msg *Message) (string, error) {
	if err := msg.Validate(); err != nil {
		return "", err
	}

	if err := t.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("resend: wait for send quota: %w", err)
	}

	var reply *APIError
	ctx = context.WithValue(ctx, replyKey{}, &reply)

	sent, err := t.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    msg.From,
		To:      msg.To,
		Subject: msg.Subject,
		Html:    msg.HTML,
		Text:    msg.Text,
		ReplyTo: msg.ReplyTo,
	})
	if reply != nil {
		return "", reply
	}
	if err != nil {
		return "", fmt.Errorf("resend: send: %w", err)
	}
	return sent.Id, nil
}

type replyKey struct{}

type resendError struct {
	StatusCode int    `json:"statusCode"`
	Name       string `json:"name"`
	Message    string `json:"message"`
}

// replyRecorder keeps the status and body of a non-2xx reply, which the SDK
// reduces to a message string, and stores them in the request's slot.
type replyRecorder struct {
	next http.RoundTripper
}

func (r replyRecorder) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := r.next.RoundTrip(req)
	if err != nil || (resp.StatusCode >= 200 && resp.StatusCode <= 299) {
		return resp, err
	}

	slot, ok := req.Context().Value(replyKey{}).(**APIError)
	if !ok {
		return resp, nil
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	_ = resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(raw))

	*slot = decodeResendError(resp.StatusCode, raw)
	return resp, nil
}

func decodeResendError(status int, raw []byte) *APIError {
	apiErr := &APIError{Status: status}

	var body resendError
	if err := json.Unmarshal(raw, &body); err == nil && body.Message != "" {
		apiErr.Name = body.Name
		apiErr.Message = body.Message
		return apiErr
	}

	apiErr.Message = strings.TrimSpace(string(raw))
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}
