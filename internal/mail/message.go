// Package mail renders and sends the service's transactional email.
package mail

import (
	"context"
	"errors"
	"fmt"
)

// Mail errors
var (
	ErrNoRecipient = errors.New("mail: message has no recipient")
	ErrNoSender    = errors.New("mail: message has no sender")
	ErrNoSubject   = errors.New("mail: message has no subject")
)

// Message is a single outbound email.
type Message struct {
	From    string
	To      []string
	ReplyTo string
	Subject string
	HTML    string
	Text    string
}

// Validate checks the fields every provider requires.
func (m *Message) Validate() error {
	if len(m.To) == 0 {
		return ErrNoRecipient
	}
	if m.From == "" {
		return ErrNoSender
	}
	if m.Subject == "" {
		return ErrNoSubject
	}
	return nil
}

// Transport hands a message to a mail provider and returns the provider's
// message id.
type Transport interface {
	Send(ctx context.Context, msg *Message) (string, error)
}

// APIError is a non-2xx reply from a mail provider.
type APIError struct {
	Status  int
	Name    string
	Message string
}

func (e *APIError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("mail provider returned %d %s: %s", e.Status, e.Name, e.Message)
	}
	return fmt.Sprintf("mail provider returned %d: %s", e.Status, e.Message)
}

// Temporary reports whether retrying later may succeed.
func (e *APIError) Temporary() bool {
	return e.Status == 429 || e.Status >= 500
}
