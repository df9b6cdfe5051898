package httpx

import (
	"bytes"
	"errors"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"

	corefuncs "github.com/synergyaccounting/synergy-web/internal/http/templates/core"
)

var templatePatterns = []string{
	"*.tmpl",
	"pages/*.tmpl",
	"partials/*.tmpl",
}

// Template names the renderer relies on.
const (
	tmplLayout      = "layout"
	tmplErrorLayout = "error-layout" // defined in error.tmpl
	tmplFlash       = "flash"
)

// TemplateRenderer renders the screen templates. Output is buffered so a
// failing template never leaves half a page on the wire.
type TemplateRenderer struct {
	mu      sync.RWMutex
	t       *template.Template
	fsys    fs.FS
	devMode bool
	logger  *slog.Logger
	bufs    sync.Pool
}

// TemplateRendererConfig holds configuration for creating a TemplateRenderer.
type TemplateRendererConfig struct {
	// TemplateFS holds layout.tmpl, error.tmpl, pages/ and partials/.
	// Dev mode uses os.DirFS("frontend/templates"); production the embedded copy.
	TemplateFS fs.FS
	// DevMode re-parses templates on every render.
	DevMode bool
	Logger  *slog.Logger
}

// NewTemplateRenderer parses every template up front so a broken set fails at startup.
func NewTemplateRenderer(cfg TemplateRendererConfig) (*TemplateRenderer, error) {
	if cfg.TemplateFS == nil {
		return nil, errors.New("TemplateFS is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	t, err := parseTemplates(cfg.TemplateFS)
	if err != nil {
		logger.Error("template parsing failed", slog.Any("error", err))
		return nil, err
	}
	r := &TemplateRenderer{t: t, fsys: cfg.TemplateFS, devMode: cfg.DevMode, logger: logger}
	r.bufs.New = func() any { return new(bytes.Buffer) }
	return r, nil
}

func parseTemplates(fsys fs.FS) (*template.Template, error) {
	var t *template.Template
	funcs := corefuncs.Funcs(corefuncs.Deps{
		Template:           &t,
		ContentTemplateFor: ContentTemplateFor,
	})
	parsed, err := template.New("root").Funcs(funcs).ParseFS(fsys, templatePatterns...)
	if err != nil {
		return nil, err
	}
	t = parsed
	return t, nil
}

// templates returns the current set. In dev mode it is re-parsed first; a
// broken edit keeps the previous set serving.
func (r *TemplateRenderer) templates() *template.Template {
	if r.devMode {
		if t, err := parseTemplates(r.fsys); err != nil {
			r.logger.Warn("template reload failed; serving previous set", slog.Any("error", err))
		} else {
			r.mu.Lock()
			r.t = t
			r.mu.Unlock()
		}
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.t
}

// Has reports whether a template with the given name is defined.
func (r *TemplateRenderer) Has(name string) bool {
	return r.templates().Lookup(name) != nil
}

// RenderFull renders the layout with the page content inside.
func (r *TemplateRenderer) RenderFull(w http.ResponseWriter, data any) error {
	return r.Render(w, http.StatusOK, data, tmplLayout)
}

// RenderError renders the branded status page with the given status code.
func (r *TemplateRenderer) RenderError(w http.ResponseWriter, status int, data any) error {
	return r.Render(w, status, data, tmplErrorLayout)
}

// Render executes names in order into one buffer and only then writes the
// HTML answer with status. prefix, if any, goes out ahead of the templates.
func (r *TemplateRenderer) Render(w http.ResponseWriter, status int, data any, names ...string) error {
	return r.RenderWithPrefix(w, status, nil, data, names...)
}

// RenderWithPrefix is Render with raw markup written ahead of the templates.
// Callers must escape anything user-supplied in prefix.
func (r *TemplateRenderer) RenderWithPrefix(w http.ResponseWriter, status int, prefix []byte, data any, names ...string) error {
	buf := r.bufs.Get().(*bytes.Buffer)
	buf.Reset()
	defer r.bufs.Put(buf)

	buf.Write(prefix)
	t := r.templates()
	for _, name := range names {
		if err := t.ExecuteTemplate(buf, name, data); err != nil {
			r.logger.Error("template execution failed", slog.String("template", name), slog.Any("error", err))
			return err
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		r.logger.Debug("client went away mid-render", slog.Any("error", err))
		return err
	}
	return nil
}
