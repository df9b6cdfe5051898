package errors

import (
	"context"
	goerrors "errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/synergyaccounting/synergy-web/internal/adapters/upstream"
)

// Error classes with fixed cardinality. Anything else is named by its
// innermost concrete type.
const (
	ClassCanceled     = "canceled"
	ClassTimeout      = "timeout"
	ClassTransport    = "transport"
	ClassUnauthorized = "unauthorized"
	ClassNotFound     = "not_found"
	ClassConflict     = "conflict"
	ClassClientError  = "upstream_4xx"
	ClassServerError  = "upstream_5xx"
)

// Classify returns a short label for err suitable for metric labels and
// log attributes. Upstream answers are bucketed by status so the label set
// stays bounded.
func Classify(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case goerrors.Is(err, context.Canceled):
		return ClassCanceled
	case goerrors.Is(err, context.DeadlineExceeded):
		return ClassTimeout
	}

	if status := upstream.StatusOf(err); status != 0 {
		return classifyStatus(status)
	}
	if upstream.IsTransport(err) {
		return ClassTransport
	}
	return typeName(err)
}

func classifyStatus(status int) string {
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return ClassUnauthorized
	case status == http.StatusNotFound:
		return ClassNotFound
	case status == http.StatusConflict:
		return ClassConflict
	case status >= 500:
		return ClassServerError
	default:
		return ClassClientError
	}
}

// typeName unwraps to the innermost error and turns its type into
// pkg_type form, e.g. "url_error".
func typeName(err error) string {
	for {
		unwrapped := goerrors.Unwrap(err)
		if unwrapped == nil {
			break
		}
		err = unwrapped
	}

	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.String() == "" {
		return "unknown"
	}
	return strings.ReplaceAll(strings.ToLower(t.String()), ".", "_")
}
