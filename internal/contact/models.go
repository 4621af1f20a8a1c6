// Package contact implements the contact form submission pipeline:
// admission, validation, delivery and result shaping.
package contact

import (
	"context"

	"github.com/aivanceworks/leadform/internal/forms"
)

// BudgetRange is the closed set of project budgets a visitor can pick.
type BudgetRange string

const (
	Budget5kTo25k    BudgetRange = "5k-25k"
	Budget25kTo100k  BudgetRange = "25k-100k"
	Budget100kTo500k BudgetRange = "100k-500k"
	Budget500kPlus   BudgetRange = "500k-plus"
)

// BudgetRanges lists every accepted budget in display order.
var BudgetRanges = []BudgetRange{
	Budget5kTo25k,
	Budget25kTo100k,
	Budget100kTo500k,
	Budget500kPlus,
}

// Valid reports whether b is one of the accepted budgets.
func (b BudgetRange) Valid() bool {
	switch b {
	case Budget5kTo25k, Budget25kTo100k, Budget100kTo500k, Budget500kPlus:
		return true
	default:
		return false
	}
}

// Label returns the human-readable budget, or the raw token when unknown.
func (b BudgetRange) Label() string {
	switch b {
	case Budget5kTo25k:
		return "$5,000 - $25,000"
	case Budget25kTo100k:
		return "$25,000 - $100,000"
	case Budget100kTo500k:
		return "$100,000 - $500,000"
	case Budget500kPlus:
		return "$500,000+"
	default:
		return string(b)
	}
}

// Input is the raw, untrusted form data as entered by the visitor.
type Input struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Company     string `json:"company"`
	BudgetRange string `json:"budgetRange"`
	Message     string `json:"message"`

	// Mistyped names fields that were submitted with a non-string value.
	Mistyped []string `json:"-"`

	Meta Meta `json:"-"`
}

// Meta is request context passed along for the operator notification.
// It never affects validation.
type Meta struct {
	RequestID string
	UserAgent string
	ClientID  string
}

// Submission is a contact request that passed validation. It can only be
// produced by Validate.
type Submission struct {
	Name        string
	Email       string
	Company     string
	BudgetRange BudgetRange
	Message     string

	Meta Meta
}

// Notifier delivers the operator notification and the submitter
// confirmation for a submission. A nil error means both were accepted.
type Notifier interface {
	SendContactForm(ctx context.Context, sub *Submission) (*forms.Delivery, error)
}
