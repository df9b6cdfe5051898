package config

import (
	"strings"
	"time"
)

// UpstreamConfig describes the remote accounting API.
type UpstreamConfig struct {
	// BaseURL is the origin of the remote API, e.g. "https://api.example.com".
	BaseURL string `env:"UPSTREAM_BASE_URL" envDefault:"http://localhost:8081"`

	// Timeout bounds each upstream request.
	Timeout time.Duration `env:"UPSTREAM_TIMEOUT" envDefault:"10s"`

	// CSRFRetries is the number of token fetch attempts per acquisition.
	CSRFRetries int `env:"CSRF_RETRIES" envDefault:"3"`

	// CSRFRetryDelay is the pause between failed token fetch attempts.
	CSRFRetryDelay time.Duration `env:"CSRF_RETRY_DELAY" envDefault:"1s"`

	// CSRFAttemptTimeout bounds a single token fetch attempt.
	CSRFAttemptTimeout time.Duration `env:"CSRF_ATTEMPT_TIMEOUT" envDefault:"5s"`
}

// Sanitize applies guardrails to upstream configuration values.
func (u *UpstreamConfig) Sanitize() {
	u.BaseURL = strings.TrimRight(strings.TrimSpace(u.BaseURL), "/")
	if u.Timeout <= 0 {
		u.Timeout = 10 * time.Second
	}
	if u.CSRFRetries < 0 {
		u.CSRFRetries = 0
	}
	if u.CSRFRetryDelay < 0 {
		u.CSRFRetryDelay = 0
	}
	if u.CSRFAttemptTimeout <= 0 || u.CSRFAttemptTimeout > u.Timeout {
		u.CSRFAttemptTimeout = u.Timeout
	}
}
