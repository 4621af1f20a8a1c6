package contact

import (
	"errors"

	"github.com/aivanceworks/leadform/internal/forms"
	"github.com/aivanceworks/leadform/internal/security"
)

// schema is the normalized form as checked by the validator.
type schema struct {
	Name        string `json:"name" validate:"required,min=2,max=100"`
	Email       string `json:"email" validate:"required,email,max=255"`
	Company     string `json:"company" validate:"required,min=2,max=200"`
	BudgetRange string `json:"budgetRange" validate:"required,oneof=5k-25k 25k-100k 100k-500k 500k-plus"`
	Message     string `json:"message" validate:"required,min=10,max=2000"`
}

var messages = forms.Messages{
	"name": {
		"required":      "Name is required",
		forms.TagString: "Name must be a string",
		"min":           "Name must be at least 2 characters",
		"max":           "Name must be less than 100 characters",
	},
	"email": {
		"required":      "Email is required",
		forms.TagString: "Email must be a string",
		"email":         "Invalid email address",
		"max":           "Email must be less than 255 characters",
	},
	"company": {
		"required":      "Company name is required",
		forms.TagString: "Company name must be a string",
		"min":           "Company name must be at least 2 characters",
		"max":           "Company name must be less than 200 characters",
	},
	"budgetRange": {
		forms.AnyTag: "Please select a budget range",
	},
	"message": {
		"required":      "Message is required",
		forms.TagString: "Message must be a string",
		"min":           "Message must be at least 10 characters",
		"max":           "Message must be less than 2000 characters",
	},
}

var lineBreakMessages = map[string]string{
	"name":    "Name must be a single line",
	"email":   "Email must be a single line",
	"company": "Company name must be a single line",
}

// Validator turns raw Input into a Submission.
type Validator struct {
	schema    *forms.Validator
	sanitizer *security.Sanitizer
}

// NewValidator creates a Validator. A nil sanitizer uses the default config.
func NewValidator(sanitizer *security.Sanitizer) *Validator {
	if sanitizer == nil {
		sanitizer = security.NewSanitizer(security.DefaultConfig())
	}
	return &Validator{
		schema:    forms.NewValidator(),
		sanitizer: sanitizer,
	}
}

// Validate normalizes in and checks it against the contact schema. Values
// are trimmed before their lengths are checked and the email is
// lower-cased. On failure no Submission is returned.
func (v *Validator) Validate(in Input) (*Submission, *ValidationError) {
	fields := forms.FieldErrors{}

	line := func(field, raw string) string {
		clean, err := v.sanitizer.Line(raw)
		if errors.Is(err, security.ErrLineBreak) {
			fields.Add(field, lineBreakMessages[field])
		}
		return clean
	}

	name := line("name", in.Name)
	company := line("company", in.Company)

	email, err := v.sanitizer.Email(in.Email)
	switch {
	case errors.Is(err, security.ErrLineBreak):
		fields.Add("email", lineBreakMessages["email"])
	case errors.Is(err, security.ErrBlockedDomain):
		fields.Add("email", "Please use a different email address")
	}

	budget, _ := v.sanitizer.Line(in.BudgetRange)

	s := schema{
		Name:        name,
		Email:       email,
		Company:     company,
		BudgetRange: budget,
		Message:     v.sanitizer.Text(in.Message),
	}

	schemaErrs, err := v.schema.Check(s, messages)
	if err != nil {
		// schema is a struct, so this is a programming error
		panic(err)
	}
	fields.Merge(schemaErrs)

	// A mistyped value reaches the schema as "", so its type message
	// replaces whatever the schema said about it.
	for field, msgs := range messages.NotStrings(in.Mistyped) {
		fields[field] = msgs
	}

	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	return &Submission{
		Name:        s.Name,
		Email:       s.Email,
		Company:     s.Company,
		BudgetRange: BudgetRange(s.BudgetRange),
		Message:     s.Message,
		Meta:        in.Meta,
	}, nil
}
