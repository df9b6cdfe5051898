package httpx

import (
	"context"
	"html"
	"log/slog"
	"net/http"
	"time"

	domainauth "github.com/synergyaccounting/synergy-web/internal/domain/auth"
	"github.com/synergyaccounting/synergy-web/internal/http/ui/viewmodel"
	"github.com/synergyaccounting/synergy-web/internal/observability/metrics"
	"github.com/synergyaccounting/synergy-web/internal/service"
)

// User-facing messages shared by several screens.
const (
	msgGenericError = "An error occurred. Please try again."
	msgTokenMissing = "Failed to get CSRF token. Please try again."
	msgForbidden    = "You don't have permission to perform this action."
)

// UIHandlers serves browser-facing routes.
type UIHandlers struct {
	T *TemplateRenderer
	// GuardWait bounds how long a guarded screen waits for bootstrap before
	// showing the loading placeholder.
	GuardWait time.Duration
	Metrics   *metrics.Recorder
	IsDev     bool // Development mode flag for enhanced error reporting
	Logger    *slog.Logger
}

// logger returns the configured logger or falls back to slog.Default().
func (h *UIHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// guardWait returns the configured wait or the service default.
func (h *UIHandlers) guardWait() time.Duration {
	if h.GuardWait < 0 {
		return 0
	}
	if h.GuardWait == 0 {
		return service.DefaultGuardWait
	}
	return h.GuardWait
}

// guard builds a ScreenGuard for requirement using the handler's settings.
func (h *UIHandlers) guard(requirement domainauth.Requirement) *service.ScreenGuard {
	return service.NewScreenGuard(requirement,
		service.WithGuardWait(h.guardWait()),
		service.WithGuardMetrics(h.Metrics),
	)
}

// workspace returns the visitor's Workspace or writes a 500.
func (h *UIHandlers) workspace(w http.ResponseWriter, r *http.Request) (*service.Workspace, bool) {
	ws, ok := WorkspaceFromContext(r.Context())
	if !ok {
		h.logger().ErrorContext(r.Context(), "request reached a screen without a workspace", "path", r.URL.Path)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return nil, false
	}
	return ws, true
}

// PageMeta contains metadata for page rendering.
type PageMeta struct {
	Title       string
	PageTitle   string
	CurrentPage string
}

func pageMeta(title, currentPage string) PageMeta {
	return PageMeta{
		Title:       title + " - Synergy Accounting",
		PageTitle:   title,
		CurrentPage: currentPage,
	}
}

// buildLayout constructs shared layout metadata from the request and its Workspace.
func buildLayout(r *http.Request, meta PageMeta) viewmodel.Layout {
	layout := viewmodel.Layout{
		Title:       meta.Title,
		PageTitle:   meta.PageTitle,
		CurrentPage: meta.CurrentPage,
	}

	if csrfToken := GetCSRFToken(r); csrfToken != "" {
		layout.CSRFToken = csrfToken
	}

	ws, ok := WorkspaceFromContext(r.Context())
	if !ok {
		return layout
	}
	if p := ws.Principal(); p != nil {
		layout.User = &viewmodel.User{
			UserID:   p.UserID,
			Username: p.Username,
			Name:     p.DisplayName(),
			Email:    p.Email,
			Role:     string(p.Role),
		}
		layout.IsAuthenticated = true
		layout.IsAdministrator = p.IsAdministrator()
	}

	return layout
}

// basePageData constructs the common page data map with user context.
func basePageData(r *http.Request, meta PageMeta) map[string]any {
	layout := buildLayout(r, meta)
	data := map[string]any{
		"Title":           layout.Title,
		"PageTitle":       layout.PageTitle,
		"CurrentPage":     layout.CurrentPage,
		"IsAuthenticated": layout.IsAuthenticated,
		"IsAdministrator": layout.IsAdministrator,
		"Errors":          map[string]string{},
		"Form":            map[string]string{},
	}

	if layout.CSRFToken != "" {
		data["CSRFToken"] = layout.CSRFToken
	}
	if layout.User != nil {
		data["User"] = layout.User
	}

	return data
}

// renderPage renders a page with proper HTMX partial support. A pending
// flash notice is attached unless the handler already set one.
func (h *UIHandlers) renderPage(w http.ResponseWriter, r *http.Request, data map[string]any) {
	if f, ok := PopFlash(w, r); ok {
		if _, has := data["Notice"]; !has {
			data["Notice"] = f.Message
			data["NoticeKind"] = f.Kind
		}
	}

	if !WantsPartial(r) {
		if err := h.T.RenderFull(w, data); err != nil {
			h.logAndRenderTemplateError(w, r, err, "full page render")
		}
		return
	}

	// htmx swaps #main; the <title> and the out-of-band header keep the
	// document title and page heading in step.
	layout := extractLayoutInfo(data)
	head := `<title>` + html.EscapeString(layout.Title) + `</title>` +
		`<h1 id="header-title" class="header-title" hx-swap-oob="outerHTML">` + html.EscapeString(layout.PageTitle) + `</h1>`

	SetHXTrigger(w, navActivateEvent, map[string]string{"path": r.URL.Path})
	if err := h.T.RenderWithPrefix(w, http.StatusOK, []byte(head), data, tmplFlash, ContentTemplateFor(layout.CurrentPage)); err != nil {
		h.logAndRenderTemplateError(w, r, err, "partial render")
	}
}

// redirect sends the browser to path, using HX-Redirect for htmx requests.
func redirect(w http.ResponseWriter, r *http.Request, path string) {
	if IsHTMX(r) {
		hxRedirect(w, path)
		return
	}
	http.Redirect(w, r, path, http.StatusSeeOther)
}

// redirectWithNotice carries msg across the redirect as a flash notice.
func redirectWithNotice(w http.ResponseWriter, r *http.Request, path string, f Flash) {
	SetFlash(w, r, f)
	redirect(w, r, path)
}

// awaitBootstrap waits up to the guard budget for the Workspace bootstrap.
// It reports whether bootstrap has finished.
func (h *UIHandlers) awaitBootstrap(ctx context.Context, ws *service.Workspace) bool {
	if ws.Bootstrapped() {
		return true
	}
	ws.EnsureBootstrap()
	wait := h.guardWait()
	if wait <= 0 {
		return false
	}
	waitCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	return ws.WaitBootstrapped(waitCtx) == nil
}

// renderLoading shows the placeholder that polls until bootstrap settles.
func (h *UIHandlers) renderLoading(w http.ResponseWriter, r *http.Request) {
	data := NewTemplateData(r, pageMeta("Loading", PageLoading)).
		With("RetryURL", r.URL.RequestURI()).
		Build()
	// Keep intermediaries from caching the placeholder in place of the screen.
	w.Header().Set("Cache-Control", "no-store")
	h.renderPage(w, r, data)
}

func layoutFromProvider(data any) *viewmodel.Layout {
	provider, ok := data.(viewmodel.LayoutProvider)
	if !ok {
		return nil
	}
	return provider.LayoutData()
}

func layoutFromMap(data any) viewmodel.Layout {
	m, mapOK := data.(map[string]any)
	if !mapOK {
		return viewmodel.Layout{}
	}

	layout := viewmodel.Layout{}
	if v, titleOK := m["Title"].(string); titleOK {
		layout.Title = v
	}
	if v, pageTitleOK := m["PageTitle"].(string); pageTitleOK {
		layout.PageTitle = v
	}
	if v, currentPageOK := m["CurrentPage"].(string); currentPageOK {
		layout.CurrentPage = v
	}
	return layout
}

func extractLayoutInfo(data any) viewmodel.Layout {
	if layout := layoutFromProvider(data); layout != nil {
		return *layout
	}
	if layout, ok := data.(viewmodel.Layout); ok {
		return layout
	}
	return layoutFromMap(data)
}

// logAndRenderTemplateError logs template errors and renders them in dev mode.
func (h *UIHandlers) logAndRenderTemplateError(w http.ResponseWriter, r *http.Request, err error, context string) {
	h.logger().Error("template rendering failed",
		"error", err,
		"context", context,
		"path", r.URL.Path,
		"method", r.Method,
	)

	if h.IsDev {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		errHTML := html.EscapeString(err.Error())
		pathHTML := html.EscapeString(r.URL.Path)
		contextHTML := html.EscapeString(context)
		if _, writeErr := w.Write([]byte(`
			<div class="dev-error">
				<h2>Template Rendering Error</h2>
				<p><strong>Context:</strong> ` + contextHTML + `</p>
				<p><strong>Path:</strong> ` + pathHTML + `</p>
				<pre>` + errHTML + `</pre>
			</div>
		`)); writeErr != nil {
			h.logger().Error("failed to write template error response", "error", writeErr)
		}
		return
	}

	http.Error(w, "internal server error", http.StatusInternalServerError)
}

// NotFound renders the 404 page.
func (h *UIHandlers) NotFound(w http.ResponseWriter, r *http.Request) {
	h.renderStatusPage(w, r, statusPage{
		Code:    http.StatusNotFound,
		Title:   "Page Not Found",
		Message: "The page you're looking for doesn't exist.",
	})
}

type statusPage struct {
	Code    int
	Title   string
	Message string
}

func (h *UIHandlers) renderStatusPage(w http.ResponseWriter, r *http.Request, p statusPage) {
	data := basePageData(r, pageMeta(p.Title, ""))
	data["Code"] = p.Code
	data["Message"] = p.Message

	if h.T == nil || !h.T.Has(tmplErrorLayout) {
		http.Error(w, p.Message, p.Code)
		return
	}
	if err := h.T.RenderError(w, p.Code, data); err != nil {
		h.logger().Error("failed to render status page", "error", err, "code", p.Code)
	}
}
