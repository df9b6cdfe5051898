package httpx

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultCSRFCookieName  = "synergy_csrf"
	DefaultCSRFFormField   = "csrf_token"
	DefaultCSRFHeaderName  = "X-Csrf-Token" // canonical form
	DefaultCSRFTokenLength = 32             // random bytes before encoding
	DefaultCSRFMaxAge      = 12 * time.Hour
)

// CSRFConfig configures CSRFProtection. Zero fields take the defaults above.
type CSRFConfig struct {
	CookieName    string
	HeaderName    string
	FormFieldName string
	CookieDomain  string
	TokenLength   int
	MaxAge        time.Duration
	// Exempt skips validation for matching requests. The token is still issued.
	Exempt func(*http.Request) bool
	Logger *slog.Logger
}

// csrfGuard implements the double-submit cookie check for the BFF's own forms.
// It is unrelated to the remote API's anti-forgery token, which never reaches
// the browser.
type csrfGuard struct {
	cfg    CSRFConfig
	logger *slog.Logger
}

func newCSRFGuard(cfg CSRFConfig) *csrfGuard {
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultCSRFCookieName
	}
	if cfg.HeaderName == "" {
		cfg.HeaderName = DefaultCSRFHeaderName
	}
	if cfg.FormFieldName == "" {
		cfg.FormFieldName = DefaultCSRFFormField
	}
	if cfg.TokenLength <= 0 {
		cfg.TokenLength = DefaultCSRFTokenLength
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = DefaultCSRFMaxAge
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &csrfGuard{cfg: cfg, logger: logger}
}

// CSRFProtection issues a token cookie to every visitor and requires unsafe
// requests to echo it in the X-Csrf-Token header (htmx) or the csrf_token
// form field (plain forms). Requests the browser marks cross-site are refused
// outright.
func CSRFProtection(cfg CSRFConfig) func(http.Handler) http.Handler {
	g := newCSRFGuard(cfg)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, fresh, err := g.token(r)
			if err != nil {
				g.logger.ErrorContext(r.Context(), "csrf token generation failed", "error", err)
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			if fresh {
				g.setCookie(w, r, token)
			}
			r = r.WithContext(context.WithValue(r.Context(), csrfTokenKey{}, token))

			if isSafeMethod(r.Method) || (g.cfg.Exempt != nil && g.cfg.Exempt(r)) {
				next.ServeHTTP(w, r)
				return
			}
			// A fresh token cannot match anything the client sent.
			if reason := g.reject(r, token, fresh); reason != "" {
				g.logger.WarnContext(r.Context(), "csrf validation failed",
					"method", r.Method,
					"path", r.URL.Path,
					"reason", reason,
				)
				http.Error(w, "CSRF token validation failed", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	}
	return false
}

// token returns the visitor's cookie token, minting a new one when the cookie
// is missing or was not produced by this guard.
func (g *csrfGuard) token(r *http.Request) (token string, fresh bool, err error) {
	if c, err := r.Cookie(g.cfg.CookieName); err == nil && g.wellFormed(c.Value) {
		return c.Value, false, nil
	}
	b := make([]byte, g.cfg.TokenLength)
	if _, err := rand.Read(b); err != nil {
		return "", false, fmt.Errorf("read random: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), true, nil
}

func (g *csrfGuard) wellFormed(v string) bool {
	raw, err := base64.RawURLEncoding.DecodeString(v)
	return err == nil && len(raw) == g.cfg.TokenLength
}

// reject returns why r fails validation, or "" when it passes.
func (g *csrfGuard) reject(r *http.Request, token string, fresh bool) string {
	if r.Header.Get("Sec-Fetch-Site") == "cross-site" {
		return "cross_site"
	}
	if fresh {
		return "no_cookie"
	}
	submitted := r.Header.Get(g.cfg.HeaderName)
	if submitted == "" {
		var err error
		if submitted, err = g.formToken(r); err != nil {
			return "bad_form"
		}
	}
	switch {
	case submitted == "":
		return "missing"
	case subtle.ConstantTimeCompare([]byte(submitted), []byte(token)) != 1:
		return "mismatch"
	}
	return ""
}

// formToken reads the token field from form bodies. Other bodies are left
// unread for the handler.
func (g *csrfGuard) formToken(r *http.Request) (string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return "", err
		}
	case "multipart/form-data":
		if err := r.ParseMultipartForm(uploadFormMemory); err != nil {
			return "", err
		}
	default:
		return "", nil
	}
	return r.PostFormValue(g.cfg.FormFieldName), nil
}

func (g *csrfGuard) setCookie(w http.ResponseWriter, r *http.Request, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:   g.cfg.CookieName,
		Value:  token,
		Path:   "/",
		Domain: g.cfg.CookieDomain,
		// htmx reads it to fill the header, so no HttpOnly.
		HttpOnly: false,
		Secure:   isSecureRequest(r),
		// Lax so the first visit from an e-mailed verify or reset link gets a usable token.
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(g.cfg.MaxAge / time.Second),
	})
}

// isSecureRequest reports whether r arrived over HTTPS, directly or through
// a proxy that set X-Forwarded-Proto.
func isSecureRequest(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	for _, proto := range strings.Split(r.Header.Get("X-Forwarded-Proto"), ",") {
		if strings.EqualFold(strings.TrimSpace(proto), "https") {
			return true
		}
	}
	return false
}

type csrfTokenKey struct{}

// GetCSRFToken returns the token CSRFProtection put in r's context, for
// templates to embed in forms and hx-headers.
func GetCSRFToken(r *http.Request) string {
	token, _ := r.Context().Value(csrfTokenKey{}).(string)
	return token
}
