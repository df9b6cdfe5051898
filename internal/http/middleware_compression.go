package httpx

import (
	"compress/gzip"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"sync"
)

// CompressionConfig configures Compression.
type CompressionConfig struct {
	// Level is the gzip level, 1-9. Anything else means gzip.DefaultCompression.
	Level int
	// MinSize is the body size below which responses go out uncompressed.
	MinSize int
	Logger  *slog.Logger
}

var compressibleTypes = map[string]bool{
	"text/html":              true,
	"text/css":               true,
	"text/plain":             true,
	"text/javascript":        true,
	"application/javascript": true,
	"application/json":       true,
	"application/xml":        true,
	"image/svg+xml":          true,
}

// gzipper owns the writer pool for one configured level.
type gzipper struct {
	level   int
	minSize int
	pool    sync.Pool
	logger  *slog.Logger
}

func newGzipper(cfg CompressionConfig) *gzipper {
	level := cfg.Level
	if level < gzip.BestSpeed || level > gzip.BestCompression {
		level = gzip.DefaultCompression
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	g := &gzipper{level: level, minSize: max(cfg.MinSize, 1), logger: logger}
	g.pool.New = func() any {
		zw, _ := gzip.NewWriterLevel(io.Discard, level) // level validated above
		return zw
	}
	return g
}

// Compression gzips screen, JSON and asset responses for clients that accept
// it. The body is buffered until MinSize bytes decide the matter, so short
// answers like a token probe are sent as they are.
func Compression(cfg CompressionConfig) func(http.Handler) http.Handler {
	g := newGzipper(cfg)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodHead || !acceptsGzip(r.Header.Get("Accept-Encoding")) {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Add("Vary", "Accept-Encoding")
			gw := &gzipResponseWriter{ResponseWriter: w, g: g, r: r}
			defer gw.finish()
			next.ServeHTTP(gw, r)
		})
	}
}

// acceptsGzip reports whether the Accept-Encoding header allows gzip with a
// non-zero quality.
func acceptsGzip(header string) bool {
	for _, part := range strings.Split(header, ",") {
		coding, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		if !strings.EqualFold(strings.TrimSpace(coding), "gzip") {
			continue
		}
		q := 1.0
		for _, p := range strings.Split(params, ";") {
			k, v, ok := strings.Cut(strings.TrimSpace(p), "=")
			if ok && strings.EqualFold(strings.TrimSpace(k), "q") {
				if parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
					q = parsed
				}
			}
		}
		return q > 0
	}
	return false
}

func compressible(h http.Header) bool {
	if h.Get("Content-Encoding") != "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(h.Get("Content-Type"))
	return err == nil && compressibleTypes[strings.ToLower(mediaType)]
}

func bodyAllowed(status int) bool {
	return status >= 200 && status != http.StatusNoContent && status != http.StatusNotModified
}

// gzipResponseWriter holds back the status line and the first MinSize bytes,
// then commits to gzip or to the plain body.
type gzipResponseWriter struct {
	http.ResponseWriter
	g       *gzipper
	r       *http.Request
	status  int
	decided bool
	buf     []byte
	zw      *gzip.Writer
}

func (w *gzipResponseWriter) WriteHeader(status int) {
	if w.status != 0 {
		return
	}
	if status < 200 {
		w.ResponseWriter.WriteHeader(status) // 1xx informational, pass through
		return
	}
	w.status = status
	if !bodyAllowed(status) || w.Header().Get("Content-Encoding") != "" {
		w.commit(false)
	}
}

func (w *gzipResponseWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.WriteHeader(http.StatusOK)
	}
	if w.decided {
		if w.zw != nil {
			return w.zw.Write(b)
		}
		return w.ResponseWriter.Write(b)
	}

	w.buf = append(w.buf, b...)
	if len(w.buf) >= w.g.minSize {
		if err := w.commitAndDrain(true); err != nil {
			return 0, err
		}
	}
	return len(b), nil
}

// commit sends the held status line, switching to gzip when asked and the
// content type allows it.
func (w *gzipResponseWriter) commit(compress bool) {
	w.decided = true
	h := w.Header()
	if h.Get("Content-Type") == "" && len(w.buf) > 0 {
		h.Set("Content-Type", http.DetectContentType(w.buf))
	}
	if compress && compressible(h) {
		w.zw = w.g.pool.Get().(*gzip.Writer)
		w.zw.Reset(w.ResponseWriter)
		h.Set("Content-Encoding", "gzip")
		h.Del("Content-Length")
	}
	w.ResponseWriter.WriteHeader(w.status)
}

func (w *gzipResponseWriter) commitAndDrain(compress bool) error {
	w.commit(compress)
	if len(w.buf) == 0 {
		return nil
	}
	buf := w.buf
	w.buf = nil
	var err error
	if w.zw != nil {
		_, err = w.zw.Write(buf)
	} else {
		_, err = w.ResponseWriter.Write(buf)
	}
	return err
}

// finish flushes whatever the handler left behind and returns the gzip
// writer to the pool.
func (w *gzipResponseWriter) finish() {
	if !w.decided && w.status != 0 {
		if err := w.commitAndDrain(false); err != nil {
			w.g.logger.DebugContext(w.r.Context(), "writing short body failed", "error", err)
		}
	}
	if w.zw == nil {
		return
	}
	if err := w.zw.Close(); err != nil {
		w.g.logger.DebugContext(w.r.Context(), "closing gzip stream failed", "error", err)
	}
	w.zw.Reset(io.Discard)
	w.g.pool.Put(w.zw)
	w.zw = nil
}

// Flush commits early; streamed bodies are compressed regardless of size.
func (w *gzipResponseWriter) Flush() {
	if !w.decided && w.status != 0 {
		if err := w.commitAndDrain(true); err != nil {
			w.g.logger.DebugContext(w.r.Context(), "writing buffered body failed", "error", err)
		}
	}
	if w.zw != nil {
		if err := w.zw.Flush(); err != nil {
			w.g.logger.DebugContext(w.r.Context(), "flushing gzip stream failed", "error", err)
		}
	}
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *gzipResponseWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }
