// Package errors defines the AppError type screens and JSON endpoints use to
// decide how a failed call is shown to the visitor.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode is the category of an AppError.
type ErrorCode string

const (
	ErrCodeNotFound     ErrorCode = "not_found"
	ErrCodeValidation   ErrorCode = "validation"
	ErrCodeUnauthorized ErrorCode = "unauthorized" // remote API answered 401/403
	ErrCodeUnavailable  ErrorCode = "unavailable"  // a prerequisite such as the anti-forgery token is missing
	ErrCodeUpstream     ErrorCode = "upstream"     // remote API rejected the call with a message
	ErrCodeInternal     ErrorCode = "internal"
	ErrCodeTimeout      ErrorCode = "timeout"
	ErrCodeCanceled     ErrorCode = "canceled"
)

// statusByCode maps each code to the HTTP status a JSON endpoint answers with.
var statusByCode = map[ErrorCode]int{
	ErrCodeNotFound:     http.StatusNotFound,
	ErrCodeValidation:   http.StatusUnprocessableEntity,
	ErrCodeUnauthorized: http.StatusForbidden,
	ErrCodeUnavailable:  http.StatusServiceUnavailable,
	ErrCodeUpstream:     http.StatusBadGateway,
	ErrCodeInternal:     http.StatusInternalServerError,
	ErrCodeTimeout:      http.StatusGatewayTimeout,
	// 499 is the de facto "client closed request" status.
	ErrCodeCanceled: 499,
}

// AppError carries a code, a message safe to show the visitor and an
// optional cause. Field names the form input at fault, if any.
type AppError struct {
	Code    ErrorCode
	Message string
	Cause   error
	Field   string
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Cause }

// HTTPStatus returns the status matching e.Code, or 500 for unknown codes.
func (e *AppError) HTTPStatus() int {
	if s, ok := statusByCode[e.Code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// New returns an AppError without a cause.
func New(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Newf is New with a formatted message.
func Newf(code ErrorCode, format string, args ...any) *AppError {
	return New(code, fmt.Sprintf(format, args...))
}

// ValidationField returns a validation error for one form field.
func ValidationField(field, message string) *AppError {
	return &AppError{Code: ErrCodeValidation, Message: message, Field: field}
}

// Unavailable returns an ErrCodeUnavailable error.
func Unavailable(message string) *AppError { return New(ErrCodeUnavailable, message) }

// Upstream returns an ErrCodeUpstream error carrying the remote API's message.
func Upstream(message string) *AppError { return New(ErrCodeUpstream, message) }

// Wrap attaches code and message to err. It returns nil for a nil err.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{Code: code, Message: message, Cause: err}
}

// Wrapf is Wrap with a formatted message.
func Wrapf(err error, code ErrorCode, format string, args ...any) *AppError {
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

// As returns the outermost AppError in err's chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Is reports whether err carries an AppError with the given code.
func Is(err error, code ErrorCode) bool {
	appErr, ok := As(err)
	return ok && appErr.Code == code
}

// CodeOf returns err's code, or "" when err carries no AppError.
func CodeOf(err error) ErrorCode {
	if appErr, ok := As(err); ok {
		return appErr.Code
	}
	return ""
}

// FieldOf returns the form field err points at, if any.
func FieldOf(err error) string {
	if appErr, ok := As(err); ok {
		return appErr.Field
	}
	return ""
}

// UserMessage returns the message to show a user for err, or fallback when err
// carries no AppError message.
func UserMessage(err error, fallback string) string {
	if appErr, ok := As(err); ok && appErr.Message != "" {
		return appErr.Message
	}
	return fallback
}
