package mail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aivanceworks/leadform/internal/contact"
	"github.com/aivanceworks/leadform/pkg/logger"
)

// recordingTransport records messages and fails for recipients listed in failFor.
type recordingTransport struct {
	sent    []*Message
	failFor map[string]bool
}

func (r *recordingTransport) Send(_ context.Context, msg *Message) (string, error) {
	r.sent = append(r.sent, msg)
	if r.failFor[msg.To[0]] {
		return "", errors.New("provider rejected " + msg.To[0])
	}
	return fmt.Sprintf("id-%d", len(r.sent)), nil
}

func testConfig() Config {
	return Config{
		From: "AIvanceWorks <noreply@aivanceworks.com>",
		Team: "team@aivanceworks.com",
		Site: Site{Name: "AIvanceWorks", URL: "https://aivanceworks.com/"},
	}
}

func testSubmission() *contact.Submission {
	return &contact.Submission{
		Name:        "Jane <script>alert(1)</script>",
		Email:       "jane@example.com",
		Company:     "Acme",
		BudgetRange: contact.Budget25kTo100k,
		Message:     "We need a new system.\nSecond line.",
		Meta: contact.Meta{
			UserAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			RequestID: "req-42",
		},
	}
}

func TestMailer_SendContactForm(t *testing.T) {
	tr := &recordingTransport{}
	m, err := NewMailer(tr, testConfig(), logger.Nop())
	require.NoError(t, err)

	delivery, err := m.SendContactForm(context.Background(), testSubmission())

	require.NoError(t, err)
	require.Len(t, tr.sent, 2)
	assert.Equal(t, "id-2", delivery.MessageID, "confirmation id is returned")

	notification := tr.sent[0]
	assert.Equal(t, []string{"team@aivanceworks.com"}, notification.To)
	assert.Equal(t, "jane@example.com", notification.ReplyTo)
	assert.Equal(t, "New Contact Form: Acme ($25,000 - $100,000)", notification.Subject)
	assert.Contains(t, notification.HTML, "Jane &lt;script&gt;alert(1)&lt;/script&gt;")
	assert.NotContains(t, notification.HTML, "<script>")
	assert.Contains(t, notification.HTML, "Chrome on")
	assert.Contains(t, notification.HTML, "req-42")
	assert.Contains(t, notification.Text, "Second line.")

	confirmation := tr.sent[1]
	assert.Equal(t, []string{"jane@example.com"}, confirmation.To)
	assert.Equal(t, "team@aivanceworks.com", confirmation.ReplyTo)
	assert.Equal(t, "Thank you for contacting AIvanceWorks", confirmation.Subject)
	assert.Contains(t, confirmation.HTML, "https://aivanceworks.com/book-consultation")
}

func TestMailer_SendContactForm_AttemptsBoth(t *testing.T) {
	tests := []struct {
		name    string
		failFor string
	}{
		{"notification fails", "team@aivanceworks.com"},
		{"confirmation fails", "jane@example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := &recordingTransport{failFor: map[string]bool{tt.failFor: true}}
			var logs bytes.Buffer
			m, err := NewMailer(tr, testConfig(), logger.New(&logs, "info"))
			require.NoError(t, err)

			delivery, err := m.SendContactForm(context.Background(), testSubmission())

			assert.Nil(t, delivery)
			assert.ErrorIs(t, err, ErrPartialDelivery)
			assert.Contains(t, err.Error(), tt.failFor)
			assert.Len(t, tr.sent, 2)
			assert.Contains(t, logs.String(), tt.failFor)
		})
	}
}

func TestMailer_SendNewsletterWelcome(t *testing.T) {
	tr := &recordingTransport{}
	m, err := NewMailer(tr, testConfig(), logger.Nop())
	require.NoError(t, err)

	delivery, err := m.SendNewsletterWelcome(context.Background(), "reader+news@example.com")

	require.NoError(t, err)
	assert.Equal(t, "id-1", delivery.MessageID)
	require.Len(t, tr.sent, 1)

	msg := tr.sent[0]
	assert.Equal(t, "Welcome to AIvanceWorks Insights!", msg.Subject)
	assert.Equal(t, []string{"reader+news@example.com"}, msg.To)
	assert.Contains(t, msg.HTML, "https://aivanceworks.com/unsubscribe?email=reader%2Bnews%40example.com")
}

func TestMailer_SendNewsletterWelcome_Error(t *testing.T) {
	tr := &recordingTransport{failFor: map[string]bool{"reader@example.com": true}}
	m, err := NewMailer(tr, testConfig(), logger.Nop())
	require.NoError(t, err)

	delivery, err := m.SendNewsletterWelcome(context.Background(), "reader@example.com")

	assert.Nil(t, delivery)
	assert.Error(t, err)
}

func TestNewMailer_Defaults(t *testing.T) {
	_, err := NewMailer(&recordingTransport{}, Config{}, logger.Nop())
	assert.Error(t, err)

	m, err := NewMailer(&recordingTransport{}, Config{Team: "team@example.com"}, logger.Nop())
	require.NoError(t, err)
	assert.Equal(t, "team@example.com", m.cfg.From)
	assert.Equal(t, "team@example.com", m.cfg.Site.ContactEmail)
}

func TestDescribeDevice(t *testing.T) {
	assert.Equal(t, "", describeDevice(""))
	assert.True(t, strings.HasPrefix(describeDevice(testSubmission().Meta.UserAgent), "Chrome on "))
	assert.True(t, strings.HasPrefix(describeDevice("Googlebot/2.1 (+http://www.google.com/bot.html)"), "Bot"))
}

func TestTemplates_Render(t *testing.T) {
	templates, err := ParseTemplates()
	require.NoError(t, err)

	_, err = templates.Render("missing.html", nil)
	assert.Error(t, err)

	html, err := templates.Render(tmplNewsletterWelcome, welcomeData{
		pageData:       pageData{Site: Site{Name: "Acme", URL: "https://acme.test"}},
		UnsubscribeURL: "https://acme.test/unsubscribe",
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(html, "<!DOCTYPE html>"))
	assert.Contains(t, html, "Welcome to Acme Insights!")
}

func TestIsTemporary(t *testing.T) {
	assert.True(t, isTemporary(fmt.Errorf("send x: %w", &APIError{Status: 503})))
	assert.True(t, isTemporary(&APIError{Status: 429}))
	assert.False(t, isTemporary(&APIError{Status: 422}))
	assert.False(t, isTemporary(errors.New("dial tcp: refused")))
	assert.False(t, isTemporary(nil))
}
