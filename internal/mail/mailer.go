package mail

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/mssola/useragent"

	"github.com/aivanceworks/leadform/internal/contact"
	"github.com/aivanceworks/leadform/internal/forms"
	"github.com/aivanceworks/leadform/internal/metrics"
	"github.com/aivanceworks/leadform/pkg/logger"
)

// Email kinds, used as metric labels.
const (
	KindContactNotification = "contact_notification"
	KindContactConfirmation = "contact_confirmation"
	KindNewsletterWelcome   = "newsletter_welcome"
)

// ErrPartialDelivery means at least one of the contact emails was not sent.
var ErrPartialDelivery = errors.New("one or more emails failed to send")

// Site describes the sender shown in templates.
type Site struct {
	Name         string
	URL          string
	ContactEmail string
}

// Config configures a Mailer.
type Config struct {
	From string // Envelope sender
	Team string // Operator inbox that receives contact notifications
	Site Site
}

// Mailer renders and sends the service's emails. It implements
// contact.Notifier and newsletter.Notifier.
type Mailer struct {
	transport Transport
	templates *Templates
	cfg       Config
	log       *logger.Logger
}

// NewMailer creates a Mailer.
func NewMailer(transport Transport, cfg Config, log *logger.Logger) (*Mailer, error) {
	if cfg.Team == "" {
		return nil, errors.New("mail: team address is required")
	}
	if cfg.From == "" {
		cfg.From = cfg.Team
	}
	if cfg.Site.ContactEmail == "" {
		cfg.Site.ContactEmail = cfg.Team
	}
	cfg.Site.URL = strings.TrimRight(cfg.Site.URL, "/")

	templates, err := ParseTemplates()
	if err != nil {
		return nil, err
	}

	return &Mailer{
		transport: transport,
		templates: templates,
		cfg:       cfg,
		log:       log,
	}, nil
}

type pageData struct {
	Site Site
}

type contactData struct {
	pageData
	Submission   *contact.Submission
	Device       string
	ReplySubject string
}

type welcomeData struct {
	pageData
	UnsubscribeURL string
}

// SendContactForm sends the operator notification and then the submitter
// confirmation. Both are attempted even if the first fails; the call
// succeeds only if both were accepted. The confirmation's id is returned.
func (m *Mailer) SendContactForm(ctx context.Context, sub *contact.Submission) (*forms.Delivery, error) {
	log := logger.FromContext(ctx, m.log)

	data := contactData{
		pageData:     pageData{Site: m.cfg.Site},
		Submission:   sub,
		Device:       describeDevice(sub.Meta.UserAgent),
		ReplySubject: "Re: Your Inquiry to " + m.cfg.Site.Name,
	}

	_, notifyErr := m.send(ctx, KindContactNotification, tmplContactNotification, data, &Message{
		From:    m.cfg.From,
		To:      []string{m.cfg.Team},
		ReplyTo: sub.Email,
		Subject: fmt.Sprintf("New Contact Form: %s (%s)", sub.Company, sub.BudgetRange.Label()),
		Text:    notificationText(sub, data.Device),
	})
	if notifyErr != nil {
		log.Error("team notification failed", "error", notifyErr, "temporary", isTemporary(notifyErr))
	}

	confirmID, confirmErr := m.send(ctx, KindContactConfirmation, tmplContactConfirmation, data, &Message{
		From:    m.cfg.From,
		To:      []string{sub.Email},
		ReplyTo: m.cfg.Team,
		Subject: "Thank you for contacting " + m.cfg.Site.Name,
	})
	if confirmErr != nil {
		log.Error("submitter confirmation failed", "error", confirmErr, "temporary", isTemporary(confirmErr))
	}

	if err := errors.Join(notifyErr, confirmErr); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPartialDelivery, err)
	}
	return &forms.Delivery{MessageID: confirmID}, nil
}

// SendNewsletterWelcome sends the welcome mail to a new subscriber.
func (m *Mailer) SendNewsletterWelcome(ctx context.Context, email string) (*forms.Delivery, error) {
	data := welcomeData{
		pageData:       pageData{Site: m.cfg.Site},
		UnsubscribeURL: m.cfg.Site.URL + "/unsubscribe?email=" + url.QueryEscape(email),
	}

	id, err := m.send(ctx, KindNewsletterWelcome, tmplNewsletterWelcome, data, &Message{
		From:    m.cfg.From,
		To:      []string{email},
		ReplyTo: m.cfg.Team,
		Subject: fmt.Sprintf("Welcome to %s Insights!", m.cfg.Site.Name),
	})
	if err != nil {
		return nil, err
	}
	return &forms.Delivery{MessageID: id}, nil
}

// send renders the HTML body into msg and hands it to the transport.
func (m *Mailer) send(ctx context.Context, kind, page string, data any, msg *Message) (string, error) {
	start := time.Now()

	html, err := m.templates.Render(page, data)
	if err != nil {
		metrics.RecordEmail(kind, err, time.Since(start))
		return "", err
	}
	msg.HTML = html

	id, err := m.transport.Send(ctx, msg)
	metrics.RecordEmail(kind, err, time.Since(start))
	if err != nil {
		return "", fmt.Errorf("send %s: %w", kind, err)
	}
	return id, nil
}

// isTemporary reports whether err came from a provider reply worth retrying.
func isTemporary(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Temporary()
}

// describeDevice renders a user agent as "Browser on OS", or "" when none
// was supplied.
func describeDevice(ua string) string {
	if strings.TrimSpace(ua) == "" {
		return ""
	}

	parsed := useragent.New(ua)
	if parsed.Bot() {
		name, _ := parsed.Browser()
		return strings.TrimSpace("Bot " + name)
	}

	browser, _ := parsed.Browser()
	os := parsed.OS()
	if parsed.Mobile() && parsed.Platform() != "" {
		os = parsed.Platform()
	}
	if browser == "" {
		browser = "Unknown browser"
	}
	if os == "" {
		os = "unknown OS"
	}
	return browser + " on " + os
}

func notificationText(sub *contact.Submission, device string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s\n", sub.Name)
	fmt.Fprintf(&b, "Email: %s\n", sub.Email)
	fmt.Fprintf(&b, "Company: %s\n", sub.Company)
	fmt.Fprintf(&b, "Budget Range: %s\n", sub.BudgetRange.Label())
	if device != "" {
		fmt.Fprintf(&b, "Device: %s\n", device)
	}
	b.WriteString("\n")
	b.WriteString(sub.Message)
	b.WriteString("\n")
	return b.String()
}
