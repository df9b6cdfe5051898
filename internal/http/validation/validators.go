package validation

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

// User-facing messages shared by the account screens.
const (
	MsgInvalidEmail     = "Please enter a valid email address."
	MsgPasswordRequired = "Please enter a password."
	MsgPasswordPolicy   = "Password must be at least 8 characters long, start with a letter, and include a letter, number, and special character."
	MsgPasswordMismatch = "Passwords do not match."
	MsgFillAllFields    = "Please fill out all fields."
)

// PasswordMinLength is the shortest password the account screens accept.
const PasswordMinLength = 8

//nolint:gochecknoglobals // compiled once; read-only
var (
	emailPattern           = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	startsWithLetter       = regexp.MustCompile(`^[A-Za-z]`)
	containsLetter         = regexp.MustCompile(`[A-Za-z]`)
	containsDigit          = regexp.MustCompile(`\d`)
	containsSpecialPattern = regexp.MustCompile(`[!@#$%^&*(),.?":{}|<>]`)
)

// Validator is a function that validates a string value and returns an error message if invalid.
type Validator func(v string) string

// Required validates that a field is not empty and does not exceed maxLen characters.
// Uses rune count for proper Unicode support.
func Required(fieldName string, maxLen int) Validator {
	return func(v string) string {
		v = strings.TrimSpace(v)
		if v == "" {
			return fieldName + " is required."
		}
		if maxLen > 0 && utf8.RuneCountInString(v) > maxLen {
			return fmt.Sprintf("%s cannot exceed %d characters.", fieldName, maxLen)
		}
		return ""
	}
}

// RequiredMsg fails with msg when the value is blank.
func RequiredMsg(msg string) Validator {
	return func(v string) string {
		if strings.TrimSpace(v) == "" {
			return msg
		}
		return ""
	}
}

// OneOf validates that a field matches one of the provided options (case-insensitive).
func OneOf(fieldName string, options []string) Validator {
	return func(v string) string {
		v = strings.ToUpper(strings.TrimSpace(v))
		for _, opt := range options {
			if v == strings.ToUpper(opt) {
				return ""
			}
		}
		return fmt.Sprintf("%s must be one of: %s", fieldName, strings.Join(options, ", "))
	}
}

// Pattern validates that a field matches the provided regular expression.
func Pattern(fieldName string, re *regexp.Regexp) Validator {
	return func(v string) string {
		v = strings.TrimSpace(v)
		if v == "" {
			return ""
		}
		if !re.MatchString(v) {
			return fieldName + " has an invalid format."
		}
		return ""
	}
}

// Email validates the address shape the remote API accepts.
func Email() Validator {
	return func(v string) string {
		if !IsEmail(v) {
			return MsgInvalidEmail
		}
		return ""
	}
}

// IsEmail reports whether v looks like name@domain.tld.
func IsEmail(v string) bool { return emailPattern.MatchString(v) }

// Password validates the sign-up password policy.
func Password() Validator {
	return func(v string) string {
		if !IsStrongPassword(v) {
			return MsgPasswordPolicy
		}
		return ""
	}
}

// IsStrongPassword reports whether v is at least PasswordMinLength long, starts
// with a letter and contains a letter, a digit and a special character.
func IsStrongPassword(v string) bool {
	return utf8.RuneCountInString(v) >= PasswordMinLength &&
		startsWithLetter.MatchString(v) &&
		containsLetter.MatchString(v) &&
		containsDigit.MatchString(v) &&
		containsSpecialPattern.MatchString(v)
}

// Matches fails with msg unless the value equals other exactly.
func Matches(other, msg string) Validator {
	return func(v string) string {
		if v != other {
			return msg
		}
		return ""
	}
}

// Date validates an optional yyyy-mm-dd value from an <input type="date">.
func Date(fieldName string) Validator {
	return func(v string) string {
		v = strings.TrimSpace(v)
		if v == "" {
			return ""
		}
		if _, err := time.Parse("2006-01-02", v); err != nil {
			return fieldName + " must be a valid date."
		}
		return ""
	}
}

// FieldValidator provides a fluent API for validating multiple fields.
type FieldValidator struct {
	errors map[string]string
	order  []string
}

// New creates a new FieldValidator instance.
func New() *FieldValidator {
	return &FieldValidator{errors: make(map[string]string)}
}

// Validate validates a field with one or more validators.
// It stops at the first error for each field.
func (fv *FieldValidator) Validate(field, value string, validators ...Validator) *FieldValidator {
	if _, seen := fv.errors[field]; seen {
		return fv
	}
	for _, v := range validators {
		if err := v(value); err != "" {
			fv.errors[field] = err
			fv.order = append(fv.order, field)
			break // Stop at first error per field
		}
	}
	return fv
}

// Errors returns the accumulated validation errors.
func (fv *FieldValidator) Errors() map[string]string {
	return fv.errors
}

// Valid reports whether no field failed.
func (fv *FieldValidator) Valid() bool { return len(fv.errors) == 0 }

// First returns the message of the first field that failed, in Validate order.
func (fv *FieldValidator) First() string {
	if len(fv.order) == 0 {
		return ""
	}
	return fv.errors[fv.order[0]]
}
