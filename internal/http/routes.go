package httpx

import (
	"bytes"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"regexp"
	"strings"
	"time"

	synergyweb "github.com/synergyaccounting/synergy-web"
	domainauth "github.com/synergyaccounting/synergy-web/internal/domain/auth"
	"github.com/synergyaccounting/synergy-web/internal/observability/metrics"
	"github.com/synergyaccounting/synergy-web/internal/service"
)

// RouterServices holds everything the HTTP router needs.
type RouterServices struct {
	Registry *service.WorkspaceRegistry

	// Visitor cookie settings. VisitorMaxAge is normally the registry idle TTL.
	VisitorCookieName string
	VisitorMaxAge     time.Duration
	CookieDomain      string

	// GuardWait bounds how long a screen waits on bootstrap (0 = service default).
	GuardWait time.Duration

	Metrics *metrics.Recorder
	// MetricsHandler serves /metrics when set.
	MetricsHandler http.Handler

	// Compression enables gzip for compressible responses.
	Compression      bool
	CompressionLevel int // 1-9, 0 = 6

	// TemplateFS overrides the template filesystem (tests).
	TemplateFS fs.FS

	IsDev  bool         // Development mode flag for hot reloading, etc.
	Logger *slog.Logger // Logger for template and HTTP errors (optional)
}

func (s RouterServices) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// NewRouter creates the HTTP handler with its middleware chain:
// Recover, Logging, Compression, Visitor, CSRFProtection, Metrics, then the mux.
func NewRouter(services RouterServices) http.Handler {
	logger := services.logger()
	mux := http.NewServeMux()

	health := healthHandler(services.Registry)
	mux.Handle("GET /healthz", health)
	mux.Handle("HEAD /healthz", health)
	if services.MetricsHandler != nil {
		mux.Handle("GET /metrics", services.MetricsHandler)
	}
	mux.Handle("GET /static/", staticWithFallback(services.IsDev, logger))

	uiHandlers := setupUIHandlers(services)
	if uiHandlers != nil {
		registerUIRoutes(mux, uiHandlers)
	}

	var handler http.Handler = &notFoundHandler{
		next:       Metrics(services.Metrics)(mux),
		uiHandlers: uiHandlers,
		logger:     logger,
	}
	handler = CSRFProtection(CSRFConfig{
		CookieDomain: services.CookieDomain,
		Logger:       logger,
	})(handler)
	handler = Visitor(VisitorConfig{
		Registry:     services.Registry,
		CookieName:   services.VisitorCookieName,
		CookieDomain: services.CookieDomain,
		MaxAge:       services.VisitorMaxAge,
		Logger:       logger,
		Skip:         isInfraRequest,
	})(handler)
	if services.Compression {
		level := services.CompressionLevel
		if level == 0 {
			level = 6
		}
		handler = Compression(CompressionConfig{Level: level, MinSize: 1024, Logger: logger})(handler)
	}
	handler = Logging(logger)(handler)
	return Recover(logger)(handler)
}

// isInfraRequest reports probe, metrics and asset paths. They are served
// without a Workspace and logged at debug level.
func isInfraRequest(r *http.Request) bool {
	p := r.URL.Path
	return p == "/healthz" || p == "/metrics" || strings.HasPrefix(p, "/static/")
}

// templateFS picks the template filesystem: disk in dev mode for hot reloading,
// the embedded copy otherwise.
func templateFS(services RouterServices) fs.FS {
	if services.TemplateFS != nil {
		return services.TemplateFS
	}
	if services.IsDev {
		return os.DirFS(TemplatePathFromRoot)
	}
	sub, err := fs.Sub(synergyweb.TemplateFS, TemplatePathFromRoot)
	if err != nil {
		services.logger().Warn("embedded templates unavailable; falling back to disk", "error", err)
		return os.DirFS(TemplatePathFromRoot)
	}
	return sub
}

// setupUIHandlers creates UI handlers with their template renderer.
func setupUIHandlers(services RouterServices) *UIHandlers {
	tr, err := NewTemplateRenderer(TemplateRendererConfig{
		TemplateFS: templateFS(services),
		DevMode:    services.IsDev,
		Logger:     services.Logger,
	})
	if err != nil {
		services.logger().Error("failed to create template renderer", slog.Any("error", err))
		return nil
	}

	return &UIHandlers{
		T:         tr,
		GuardWait: services.GuardWait,
		Metrics:   services.Metrics,
		IsDev:     services.IsDev,
		Logger:    services.Logger,
	}
}

// registerUIRoutes delegates to per-area route registration.
func registerUIRoutes(mux *http.ServeMux, h *UIHandlers) {
	registerAccountRoutes(mux, h)
	registerDashboardRoutes(mux, h)
	registerAdminRoutes(mux, h)
	mux.HandleFunc("GET /session/state", h.SessionState)
}

// registerAccountRoutes wires the public account screens.
func registerAccountRoutes(mux *http.ServeMux, h *UIHandlers) {
	mux.HandleFunc("GET /{$}", h.Root)
	mux.Handle("GET /login", h.tokenScreen(h.LoginPage))
	mux.HandleFunc("POST /login", h.LoginSubmit)
	mux.HandleFunc("GET /logout", h.LogoutPage)
	mux.HandleFunc("POST /logout", h.LogoutSubmit)
	mux.Handle("GET /register", h.tokenScreen(h.RegisterPage))
	mux.HandleFunc("POST /register", h.RegisterSubmit)
	mux.Handle("GET /verify", h.tokenPrecheck(h.tokenScreen(h.Verify)))
	mux.Handle("GET /forgot-password", h.tokenScreen(h.ForgotPasswordPage))
	mux.HandleFunc("POST /forgot-password", h.ForgotPasswordSubmit)
	mux.Handle("GET /password-reset", h.tokenPrecheck(h.tokenScreen(h.ResetPasswordPage)))
	mux.HandleFunc("POST /password-reset", h.ResetPasswordSubmit)
}

// registerDashboardRoutes wires the screens open to any assigned role.
func registerDashboardRoutes(mux *http.ServeMux, h *UIHandlers) {
	signedIn := func(next http.HandlerFunc) http.Handler {
		return h.Guarded(domainauth.RequireNonDefault, next)
	}
	mux.Handle("GET /dashboard", signedIn(h.Dashboard))
	mux.Handle("GET /dashboard/chart-of-accounts", signedIn(h.ChartOfAccounts))
	mux.Handle("GET /upload-image", signedIn(h.UploadImagePage))
	mux.Handle("POST /upload-image", signedIn(h.UploadImageSubmit))
	mux.Handle("GET /profile-image/{id}", signedIn(h.ProfileImage))
}

// registerAdminRoutes wires the administrator screens.
func registerAdminRoutes(mux *http.ServeMux, h *UIHandlers) {
	admin := func(next http.HandlerFunc) http.Handler {
		return h.Guarded(domainauth.RequireAdministrator, next)
	}
	mux.Handle("GET /dashboard/admin/add-user", admin(h.AddUserPage))
	mux.Handle("POST /dashboard/admin/add-user", admin(h.AddUserSubmit))
	mux.Handle("GET "+PathUpdateUserSearch, admin(h.UpdateUserSearchPage))
	mux.Handle("POST "+PathUpdateUserSearch, admin(h.UpdateUserSearchSubmit))
	mux.Handle("GET "+PathUpdateUser, admin(h.UpdateUserPage))
	mux.Handle("POST "+PathUpdateUser, admin(h.UpdateUserSubmit))
	mux.Handle("GET "+PathInbox, admin(h.Inbox))
	mux.Handle("POST "+PathInbox+"/delete", admin(h.InboxDelete))
	mux.Handle("GET /dashboard/admin/send-email", admin(h.SendEmailPage))
	mux.Handle("POST /dashboard/admin/send-email", admin(h.SendEmailSubmit))
}

// staticWithFallback serves /static/* assets.
// In dev mode (isDev=true), serves from disk for hot reloading.
// In production mode (isDev=false), serves from embedded FS.
func staticWithFallback(isDev bool, logger *slog.Logger) http.Handler {
	if isDev {
		return staticWithCacheHeaders(http.StripPrefix("/static/", http.FileServer(http.Dir("frontend/static"))))
	}

	staticSub, err := fs.Sub(synergyweb.StaticFS, "frontend/static")
	if err != nil {
		logger.Warn("embedded static assets unavailable; serving from disk", "error", err)
		return staticWithCacheHeaders(http.StripPrefix("/static/", http.FileServer(http.Dir("frontend/static"))))
	}
	return staticWithCacheHeaders(http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))
}

// staticWithCacheHeaders wraps a static file handler to add appropriate cache headers.
func staticWithCacheHeaders(handler http.Handler) http.Handler {
	// Content-hashed filenames, e.g. app.abc12345.js or styles.def45678.css.
	hashedFilePattern := regexp.MustCompile(`\.[a-f0-9]{8}\.(?:js|css)(?:\.map)?$`)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hashedFilePattern.MatchString(r.URL.Path) {
			w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		} else {
			w.Header().Set("Cache-Control", "no-cache")
		}
		handler.ServeHTTP(w, r)
	})
}

// notFoundHandler renders the branded 404 page for requests no route handled.
type notFoundHandler struct {
	next       http.Handler
	uiHandlers *UIHandlers
	logger     *slog.Logger
}

// ServeHTTP implements http.Handler and provides custom 404 handling.
func (h *notFoundHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	cw := newCaptureWriter(w)
	h.next.ServeHTTP(cw, r)

	if cw.status != http.StatusNotFound || cw.passthrough {
		cw.flushTo(w, h.logger)
		return
	}
	// Missing static assets keep the file server's response.
	if strings.HasPrefix(r.URL.Path, "/static/") || h.uiHandlers == nil {
		cw.flushTo(w, h.logger)
		return
	}
	h.uiHandlers.NotFound(w, r)
}

// captureWriter holds back a 404 so it can be replaced; any other status is
// passed straight through so streamed bodies are not buffered.
type captureWriter struct {
	rw          http.ResponseWriter
	header      http.Header
	status      int
	wrote       bool
	passthrough bool
	buf         bytes.Buffer
}

func newCaptureWriter(w http.ResponseWriter) *captureWriter {
	return &captureWriter{rw: w, header: make(http.Header), status: http.StatusOK}
}

func (c *captureWriter) Header() http.Header {
	if c.passthrough {
		return c.rw.Header()
	}
	return c.header
}

func (c *captureWriter) WriteHeader(code int) {
	if c.wrote {
		return
	}
	c.wrote = true
	c.status = code
	if code != http.StatusNotFound {
		c.startPassthrough()
		c.rw.WriteHeader(code)
	}
}

func (c *captureWriter) Write(b []byte) (int, error) {
	if !c.wrote {
		c.WriteHeader(http.StatusOK)
	}
	if c.passthrough {
		return c.rw.Write(b)
	}
	return c.buf.Write(b)
}

func (c *captureWriter) startPassthrough() {
	c.passthrough = true
	for k, vs := range c.header {
		for _, v := range vs {
			c.rw.Header().Add(k, v)
		}
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (c *captureWriter) Unwrap() http.ResponseWriter { return c.rw }

func (c *captureWriter) flushTo(w http.ResponseWriter, logger *slog.Logger) {
	if c.passthrough {
		return
	}
	for k, vs := range c.header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(c.status)
	if _, err := w.Write(c.buf.Bytes()); err != nil {
		logger.Warn("failed to write captured response", "error", err)
	}
}
