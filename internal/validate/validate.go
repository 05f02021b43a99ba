// Package validate checks inbound request payloads and reports every failed
// field at once.
package validate

import (
	"strings"
	"unicode"

	"vita-api/internal/shared"
)

// Errors carries one entry per failed field so clients can render all
// problems in a single round trip.
type Errors []shared.FieldError

func (e Errors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(e))
	for _, fe := range e {
		parts = append(parts, fe.FieldPath+": "+fe.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *Errors) add(field, path, message, errType string) {
	*e = append(*e, shared.FieldError{
		Field:     field,
		FieldPath: path,
		Message:   message,
		Type:      errType,
	})
}

// ValidateRegister checks a registration payload. A nil return means the
// payload passed every rule.
func ValidateRegister(req shared.RegisterRequest) error {
	var errs Errors

	username := strings.TrimSpace(req.Username)
	switch {
	case len(username) < 3 || len(username) > 30:
		errs.add("username", "body.username", "must be between 3 and 30 characters", "length")
	case !isUsername(username):
		errs.add("username", "body.username", "may only contain letters, digits and underscores", "format")
	}

	if !strings.Contains(req.Email, "@") {
		errs.add("email", "body.email", "must be a valid email address", "format")
	}

	if len(req.Password) < 8 {
		errs.add("password", "body.password", "must be at least 8 characters", "length")
	} else if !hasLetterAndDigit(req.Password) {
		errs.add("password", "body.password", "must contain at least one letter and one digit", "format")
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

func isUsername(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return false
		}
	}
	return true
}

func hasLetterAndDigit(s string) bool {
	var letter, digit bool
	for _, r := range s {
		switch {
		case unicode.IsLetter(r):
			letter = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return letter && digit
}
