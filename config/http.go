package config

import "time"

// HTTPConfig controls the listener, cookies and response compression.
type HTTPConfig struct {
	Addr string `env:"HTTP_ADDR" envDefault:":8080"`

	// CookieDomain scopes the visitor and CSRF cookies. Empty means the request host.
	CookieDomain string `env:"APP_COOKIE_DOMAIN" envDefault:""`

	CompressionEnabled bool `env:"HTTP_COMPRESSION_ENABLED" envDefault:"false"`
	// CompressionLevel is the gzip level, clamped to 1-9.
	CompressionLevel int `env:"HTTP_COMPRESSION_LEVEL" envDefault:"6"`

	ReadHeaderTimeout time.Duration `env:"HTTP_READ_HEADER_TIMEOUT" envDefault:"10s"`
	ReadTimeout       time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
	// WriteTimeout must outlast the slowest screen: guard wait plus one upstream call.
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
	// ShutdownTimeout bounds how long in-flight screens may finish after a signal.
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"15s"`
}

// Sanitize applies guardrails to HTTP configuration values.
func (h *HTTPConfig) Sanitize() {
	if h.Addr == "" {
		h.Addr = ":8080"
	}
	h.CompressionLevel = min(max(h.CompressionLevel, 1), 9)

	defaultDuration(&h.ReadHeaderTimeout, 10*time.Second)
	defaultDuration(&h.ReadTimeout, 30*time.Second)
	defaultDuration(&h.WriteTimeout, 30*time.Second)
	defaultDuration(&h.IdleTimeout, 120*time.Second)
	defaultDuration(&h.ShutdownTimeout, 15*time.Second)
}

func defaultDuration(d *time.Duration, def time.Duration) {
	if *d <= 0 {
		*d = def
	}
}
