package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestAppError_ErrorAndUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(cause, ErrCodeUpstream, "remote call failed")

	if got, want := err.Error(), "remote call failed: connection refused"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, cause) {
		t.Errorf("errors.Is(err, cause) = false, want true")
	}
	if Wrap(nil, ErrCodeInternal, "x") != nil {
		t.Errorf("Wrap(nil) should return nil")
	}
	if got := Wrapf(errors.New("eof"), ErrCodeInternal, "decode %s", "principal").Message; got != "decode principal" {
		t.Errorf("Wrapf message = %q", got)
	}
}

func TestIsAndCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		code ErrorCode
	}{
		{"not found", Newf(ErrCodeNotFound, "account %d", 101), ErrCodeNotFound},
		{"validation field", ValidationField("email", "bad email"), ErrCodeValidation},
		{"unavailable", Unavailable("token missing"), ErrCodeUnavailable},
		{"upstream", Upstream("User already exists"), ErrCodeUpstream},
		{"timeout", New(ErrCodeTimeout, "slow"), ErrCodeTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("wrapped: %w", tt.err)
			if !Is(wrapped, tt.code) {
				t.Errorf("Is(%v) = false through wrapping", tt.code)
			}
			if got := CodeOf(wrapped); got != tt.code {
				t.Errorf("CodeOf = %v, want %v", got, tt.code)
			}
			if Is(errors.New("plain"), tt.code) || Is(nil, tt.code) {
				t.Errorf("Is matched a non-AppError")
			}
		})
	}
	if got := CodeOf(errors.New("plain")); got != "" {
		t.Errorf("CodeOf(plain) = %v", got)
	}
}

func TestFieldOf(t *testing.T) {
	if got := FieldOf(ValidationField("password", "weak")); got != "password" {
		t.Errorf("FieldOf = %q", got)
	}
	if got := FieldOf(nil); got != "" {
		t.Errorf("FieldOf(nil) = %q", got)
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeValidation, http.StatusUnprocessableEntity},
		{ErrCodeUnauthorized, http.StatusForbidden},
		{ErrCodeUnavailable, http.StatusServiceUnavailable},
		{ErrCodeUpstream, http.StatusBadGateway},
		{ErrCodeTimeout, http.StatusGatewayTimeout},
		{ErrCodeCanceled, 499},
		{"bogus", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := New(tt.code, "x").HTTPStatus(); got != tt.want {
			t.Errorf("HTTPStatus(%s) = %d, want %d", tt.code, got, tt.want)
		}
	}
}

func TestUserMessage(t *testing.T) {
	const fallback = "An error occurred. Please try again."

	if got := UserMessage(Upstream("Email already in use"), fallback); got != "Email already in use" {
		t.Errorf("UserMessage(upstream) = %q", got)
	}
	if got := UserMessage(errors.New("dial tcp"), fallback); got != fallback {
		t.Errorf("UserMessage(plain) = %q", got)
	}
	if got := UserMessage(&AppError{Code: ErrCodeInternal}, fallback); got != fallback {
		t.Errorf("UserMessage(empty message) = %q", got)
	}
}
