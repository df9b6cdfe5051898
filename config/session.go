package config

import (
	"strings"
	"time"
)

// Principal store backends.
const (
	SessionStoreMemory = "memory"
	SessionStoreRedis  = "redis"
)

// SessionConfig controls visitor workspaces and where the logged-in principal is kept.
type SessionConfig struct {
	// Store selects the principal store backend: "memory" or "redis".
	Store string `env:"SESSION_STORE" envDefault:"memory"`

	// KeyPrefix namespaces principal entries in Redis.
	KeyPrefix string `env:"SESSION_KEY_PREFIX" envDefault:"synergy:principal:"`

	// CookieName is the visitor cookie that identifies a workspace.
	CookieName string `env:"VISITOR_COOKIE_NAME" envDefault:"synergy_visitor"`

	// IdleTTL evicts workspaces not used for this long. It is also the
	// Redis TTL of stored principals.
	IdleTTL time.Duration `env:"VISITOR_IDLE_TTL" envDefault:"30m"`

	// Capacity bounds the number of live workspaces.
	Capacity int `env:"VISITOR_CAPACITY" envDefault:"10000"`

	// SweepInterval is how often idle workspaces are evicted.
	SweepInterval time.Duration `env:"VISITOR_SWEEP_INTERVAL" envDefault:"1m"`

	// GuardWait is how long a guarded screen waits for bootstrap before
	// rendering the loading placeholder.
	GuardWait time.Duration `env:"GUARD_WAIT" envDefault:"2s"`
}

// Sanitize applies guardrails to session configuration values.
func (s *SessionConfig) Sanitize() {
	s.Store = strings.ToLower(strings.TrimSpace(s.Store))
	if s.Store != SessionStoreRedis {
		s.Store = SessionStoreMemory
	}
	if s.KeyPrefix == "" {
		s.KeyPrefix = "synergy:principal:"
	}
	if s.CookieName = strings.TrimSpace(s.CookieName); s.CookieName == "" {
		s.CookieName = "synergy_visitor"
	}
	if s.IdleTTL <= 0 {
		s.IdleTTL = 30 * time.Minute
	}
	if s.Capacity <= 0 {
		s.Capacity = 10000
	}
	if s.SweepInterval <= 0 {
		s.SweepInterval = time.Minute
	}
	if s.GuardWait < 0 {
		s.GuardWait = 0
	}
}
