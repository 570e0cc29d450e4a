package validation

import (
	"errors"
	"strings"
)

// ErrRequired is returned when a required text field is empty.
var ErrRequired = errors.New("required field is empty")

// FieldError names a required field that was left empty.
type FieldError struct {
	Field string
}

func (e *FieldError) Error() string {
	return e.Field + ": " + ErrRequired.Error()
}

func (e *FieldError) Unwrap() error {
	return ErrRequired
}

// RequireText is the presence check applied to journal fields before any
// network call. Whitespace-only input counts as empty.
func RequireText(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return &FieldError{Field: field}
	}
	return nil
}

// MissingFields lists the fields named by every FieldError in err's tree,
// in order.
func MissingFields(err error) []string {
	var fields []string
	var walk func(error)
	walk = func(e error) {
		switch x := e.(type) {
		case nil:
		case *FieldError:
			fields = append(fields, x.Field)
		case interface{ Unwrap() []error }:
			for _, inner := range x.Unwrap() {
				walk(inner)
			}
		case interface{ Unwrap() error }:
			walk(x.Unwrap())
		}
	}
	walk(err)
	return fields
}

// ValidateNewEntry checks that both title and description are present.
func ValidateNewEntry(title, description string) error {
	return errors.Join(
		RequireText("title", title),
		RequireText("description", description),
	)
}

// ValidateNewComment checks that the comment text is present.
func ValidateNewComment(text string) error {
	return RequireText("text", text)
}
