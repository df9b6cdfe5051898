package httpx

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/synergyaccounting/synergy-web/internal/service"
)

// DefaultVisitorCookieName names the cookie that identifies a visitor's Workspace.
const DefaultVisitorCookieName = "synergy_visitor"

// VisitorConfig configures the Visitor middleware.
type VisitorConfig struct {
	Registry     *service.WorkspaceRegistry
	CookieName   string
	CookieDomain string
	// MaxAge is the cookie lifetime; normally the registry idle TTL.
	MaxAge time.Duration
	// Skip serves matching requests without a Workspace (probes, static assets).
	Skip   func(*http.Request) bool
	Logger *slog.Logger
}

// Visitor resolves the caller's Workspace from the visitor cookie, creating
// one (and a fresh cookie) when the cookie is missing, malformed or refers to
// an evicted Workspace. The Workspace is attached to the request context and
// its bootstrap is started.
func Visitor(cfg VisitorConfig) func(http.Handler) http.Handler {
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultVisitorCookieName
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = service.DefaultWorkspaceIdleTTL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.Registry == nil || (cfg.Skip != nil && cfg.Skip(r)) {
				next.ServeHTTP(w, r)
				return
			}

			var presented string
			if c, err := r.Cookie(cfg.CookieName); err == nil {
				presented = c.Value
			}

			ws, _, err := cfg.Registry.GetOrCreate(r.Context(), presented)
			if err != nil {
				if errors.Is(err, service.ErrRegistryClosed) {
					http.Error(w, "service is shutting down", http.StatusServiceUnavailable)
					return
				}
				logger.ErrorContext(r.Context(), "workspace lookup failed", "error", err)
				http.Error(w, "internal server error", http.StatusInternalServerError)
				return
			}

			// Sliding expiry: refresh the cookie on every request.
			http.SetCookie(w, &http.Cookie{
				Name:     cfg.CookieName,
				Value:    ws.ID(),
				Path:     "/",
				Domain:   cfg.CookieDomain,
				HttpOnly: true,
				Secure:   isSecureRequest(r),
				SameSite: http.SameSiteLaxMode,
				MaxAge:   int(cfg.MaxAge / time.Second),
			})

			ws.EnsureBootstrap()
			next.ServeHTTP(w, r.WithContext(SetWorkspaceInContext(r.Context(), ws)))
		})
	}
}
