package upstream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	domainauth "github.com/synergyaccounting/synergy-web/internal/domain/auth"
	"github.com/synergyaccounting/synergy-web/internal/ports"
)

type tokenResponse struct {
	Token string `json:"token"`
}

// FetchCSRFToken asks the remote API for a fresh anti-forgery token.
// The call is unauthenticated but rides on the Client's cookie jar.
func (cl *Client) FetchCSRFToken(ctx context.Context) (string, error) {
	var out tokenResponse
	if err := cl.doJSON(ctx, call{endpoint: "csrf", method: http.MethodGet, path: "/api/csrf"}, &out); err != nil {
		return "", err
	}
	token := strings.TrimSpace(out.Token)
	if token == "" {
		return "", fmt.Errorf("%w: csrf response carried no token", ErrTransport)
	}
	return token, nil
}

// Validate returns the principal bound to the current remote session.
func (cl *Client) Validate(ctx context.Context, token string) (domainauth.Principal, error) {
	var p domainauth.Principal
	err := cl.doJSON(ctx, call{
		endpoint: "users_validate",
		method:   http.MethodGet,
		path:     "/api/users/validate",
		token:    token,
	}, &p)
	return p, err
}

// Login posts credentials and returns the principal the remote API answered with.
func (cl *Client) Login(ctx context.Context, token string, creds ports.Credentials) (domainauth.Principal, error) {
	var p domainauth.Principal
	err := cl.doJSON(ctx, call{
		endpoint: "users_login",
		method:   http.MethodPost,
		path:     "/api/users/login",
		token:    token,
		jsonBody: creds,
	}, &p)
	return p, err
}

// Logout ends the remote session.
func (cl *Client) Logout(ctx context.Context, token string) error {
	return cl.doDiscard(ctx, call{
		endpoint: "users_logout",
		method:   http.MethodPost,
		path:     "/api/users/logout",
		token:    token,
		header:   http.Header{"Content-Type": []string{"application/json"}},
	})
}

// Register submits a self-service sign-up.
func (cl *Client) Register(ctx context.Context, token string, reg ports.Registration) (string, error) {
	return cl.doMessage(ctx, call{
		endpoint: "users_register",
		method:   http.MethodPost,
		path:     "/api/users/register",
		token:    token,
		jsonBody: reg,
	})
}

// Verify redeems an e-mail verification token.
func (cl *Client) Verify(ctx context.Context, token, verificationToken string) (string, error) {
	if verificationToken == "" {
		return "", errors.New("verification token is required")
	}
	return cl.doMessage(ctx, call{
		endpoint: "users_verify",
		method:   http.MethodGet,
		path:     "/api/users/verify",
		query:    url.Values{"token": []string{verificationToken}},
		token:    token,
	})
}

type emailRequest struct {
	Email string `json:"email"`
}

// RequestPasswordReset asks the remote API to mail a reset link.
func (cl *Client) RequestPasswordReset(ctx context.Context, token, email string) (string, error) {
	return cl.doMessage(ctx, call{
		endpoint: "users_request_password_reset",
		method:   http.MethodPost,
		path:     "/api/users/request-password-reset",
		token:    token,
		jsonBody: emailRequest{Email: email},
	})
}

// ValidateResetToken checks that a password-reset link is still usable.
func (cl *Client) ValidateResetToken(ctx context.Context, token, resetToken string) error {
	if resetToken == "" {
		return errors.New("reset token is required")
	}
	return cl.doDiscard(ctx, call{
		endpoint: "users_password_reset_validate",
		method:   http.MethodGet,
		path:     "/api/users/password-reset",
		query:    url.Values{"token": []string{resetToken}},
		token:    token,
	})
}

type passwordRequest struct {
	Password string `json:"password"`
}

// ResetPassword sets a new password using a reset token.
func (cl *Client) ResetPassword(ctx context.Context, token, resetToken, password string) (string, error) {
	if resetToken == "" {
		return "", errors.New("reset token is required")
	}
	return cl.doMessage(ctx, call{
		endpoint: "users_password_reset",
		method:   http.MethodPost,
		path:     "/api/users/password-reset",
		query:    url.Values{"token": []string{resetToken}},
		token:    token,
		jsonBody: passwordRequest{Password: password},
	})
}
