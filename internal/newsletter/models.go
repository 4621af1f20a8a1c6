// Package newsletter implements the newsletter signup pipeline.
package newsletter

import (
	"context"
	"errors"
	"time"

	"github.com/aivanceworks/leadform/internal/forms"
)

// Subscription errors
var (
	ErrAlreadySubscribed = errors.New("email is already subscribed")
	ErrNotSubscribed     = errors.New("email is not subscribed")
)

// Input is the raw signup form.
type Input struct {
	Email  string `json:"email"`
	Source string `json:"source,omitempty"`

	// Mistyped names fields that were submitted with a non-string value.
	Mistyped []string `json:"-"`

	RequestID string `json:"-"`
}

// Subscriber is a stored newsletter address.
type Subscriber struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists subscribers. Add returns ErrAlreadySubscribed for an
// address that is already stored and Delete returns ErrNotSubscribed for
// one that is not.
type Store interface {
	Add(ctx context.Context, email, source string) (*Subscriber, error)
	Exists(ctx context.Context, email string) (bool, error)
	Delete(ctx context.Context, email string) error
}

// Notifier sends the welcome mail to a new subscriber.
type Notifier interface {
	SendNewsletterWelcome(ctx context.Context, email string) (*forms.Delivery, error)
}
