package upstream

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrTransport marks failures where no usable response was obtained:
// network errors, timeouts and success bodies that could not be decoded.
var ErrTransport = errors.New("upstream transport failure")

// APIError is a non-2xx answer from the remote API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("upstream status %d", e.Status)
	}
	return fmt.Sprintf("upstream status %d: %s", e.Status, e.Message)
}

// IsUnauthorized reports whether err is a 401 or 403 from the remote API.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden
}

// IsTransport reports whether err wraps ErrTransport.
func IsTransport(err error) bool { return errors.Is(err, ErrTransport) }

// MessageOf returns the server-supplied message carried by err, if any.
func MessageOf(err error) (string, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message, true
	}
	return "", false
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}
