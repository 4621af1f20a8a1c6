package forms

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// AnyTag keys the fallback message for a field in Messages.
const AnyTag = "*"

// TagString keys the message for a value that arrived as a non-string.
const TagString = "string"

// FieldErrors maps a form field (by its JSON name) to its violation messages.
type FieldErrors map[string][]string

// Add appends msg to field.
func (f FieldErrors) Add(field, msg string) {
	f[field] = append(f[field], msg)
}

// Merge appends every message of other.
func (f FieldErrors) Merge(other FieldErrors) {
	for field, msgs := range other {
		for _, msg := range msgs {
			f.Add(field, msg)
		}
	}
}

// Messages maps field -> validation tag -> user-facing message. The AnyTag
// entry is used for tags without a dedicated message.
type Messages map[string]map[string]string

// NotStrings renders a violation for each field whose submitted value was
// not a string.
func (m Messages) NotStrings(fields []string) FieldErrors {
	out := FieldErrors{}
	for _, field := range fields {
		msg := fmt.Sprintf("%s must be a string", field)
		if byTag, ok := m[field]; ok {
			if s, ok := byTag[TagString]; ok {
				msg = s
			} else if s, ok := byTag[AnyTag]; ok {
				msg = s
			}
		}
		out.Add(field, msg)
	}
	return out
}

// Validator runs struct-tag schemas and renders violations as FieldErrors.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a Validator that reports fields by their JSON name.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{validate: v}
}

// Check validates s and returns the violations keyed by field. A non-nil
// error means s itself could not be validated (not a struct).
func (v *Validator) Check(s any, msgs Messages) (FieldErrors, error) {
	fields := FieldErrors{}

	err := v.validate.Struct(s)
	if err == nil {
		return fields, nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return nil, fmt.Errorf("validate %T: %w", s, err)
	}

	for _, fe := range validationErrs {
		field := fe.Field()
		fields.Add(field, message(msgs, field, fe))
	}
	return fields, nil
}

// message picks the configured message for a violation, falling back to a
// generic rendering of the tag.
func message(msgs Messages, field string, fe validator.FieldError) string {
	if byTag, ok := msgs[field]; ok {
		if msg, ok := byTag[fe.Tag()]; ok {
			return msg
		}
		if msg, ok := byTag[AnyTag]; ok {
			return msg
		}
	}

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
