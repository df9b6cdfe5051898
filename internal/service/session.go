package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	domainauth "github.com/synergyaccounting/synergy-web/internal/domain/auth"
	"github.com/synergyaccounting/synergy-web/internal/observability/metrics"
	"github.com/synergyaccounting/synergy-web/internal/ports"
)

// PrincipalKey is the fixed durable-storage name of the serialized principal.
const PrincipalKey = "loggedInUser"

// LoginRejectedError is returned when the remote API accepted the credentials
// but the returned principal may not start a session.
type LoginRejectedError struct {
	Message string
}

func (e *LoginRejectedError) Error() string { return "login rejected: " + e.Message }

// TokenReader exposes the held anti-forgery token without fetching.
type TokenReader interface {
	Current() (string, bool)
}

// SessionServiceOptions groups dependencies for SessionService.
type SessionServiceOptions struct {
	Tokens   TokenReader
	Identity ports.IdentityAPI
	Store    ports.PrincipalStore
	// StoreKey is the durable entry for this visitor, typically "<visitor>:loggedInUser".
	StoreKey string
	// Cookies, when set, is saved alongside the principal and reseeded on Hydrate.
	Cookies ports.SessionCookieJar
	Now     func() time.Time
	Metrics  *metrics.Recorder
	Logger   *slog.Logger
}

// SessionService resolves and caches the authenticated principal.
// It is the only writer of the durable principal copy.
type SessionService struct {
	tokens   TokenReader
	identity ports.IdentityAPI
	store    ports.PrincipalStore
	key      string
	cookies  ports.SessionCookieJar
	now      func() time.Time
	metrics  *metrics.Recorder
	logger   *slog.Logger

	mu        sync.RWMutex
	principal *domainauth.Principal
}

// NewSessionService constructs a SessionService.
func NewSessionService(opts SessionServiceOptions) (*SessionService, error) {
	if opts.Tokens == nil {
		return nil, errors.New("token reader is required")
	}
	if opts.Identity == nil {
		return nil, errors.New("identity API is required")
	}
	if opts.Store == nil {
		return nil, errors.New("principal store is required")
	}
	key := strings.TrimSpace(opts.StoreKey)
	if key == "" {
		key = PrincipalKey
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &SessionService{
		tokens:   opts.Tokens,
		identity: opts.Identity,
		store:    opts.Store,
		key:      key,
		cookies:  opts.Cookies,
		now:      now,
		metrics:  opts.Metrics,
		logger:   logger.With("component", "session_service"),
	}, nil
}

// Hydrate loads the durable copy into memory without confirming it, and hands
// the stored remote cookies back to the client so Restore can confirm it.
func (s *SessionService) Hydrate(ctx context.Context) {
	snap, err := s.store.Load(ctx, s.key)
	if err != nil {
		if !errors.Is(err, ports.ErrPrincipalNotFound) {
			s.logger.WarnContext(ctx, "failed to read stored principal", "error", err)
		}
		return
	}
	if s.cookies != nil {
		s.cookies.RestoreSessionCookies(snap.Cookies)
	}
	p := snap.Principal
	s.mu.Lock()
	s.principal = &p
	s.mu.Unlock()
	s.logger.DebugContext(ctx, "hydrated optimistic principal", "userid", p.UserID, "cookies", len(snap.Cookies))
}

// Restore confirms the session with the remote API.
//
// Without a token it logs and returns ErrTokenMissing without any network call.
// Success overwrites both copies; any failure clears both.
func (s *SessionService) Restore(ctx context.Context) error {
	token, ok := s.tokens.Current()
	if !ok {
		s.logger.ErrorContext(ctx, "CSRF token is missing; skipping session restore")
		s.metrics.SessionRestore(metrics.ResultNoop, nil)
		return ErrTokenMissing
	}

	p, err := s.identity.Validate(ctx, token)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to fetch user data", "error", err)
		s.clear(ctx)
		s.metrics.SessionRestore(metrics.ResultError, err)
		return fmt.Errorf("restore session: %w", err)
	}

	s.set(ctx, p)
	s.metrics.SessionRestore(metrics.ResultSuccess, nil)
	return nil
}

// SetPrincipal replaces the principal. nil clears both copies.
func (s *SessionService) SetPrincipal(ctx context.Context, p *domainauth.Principal) {
	if p == nil {
		s.clear(ctx)
		return
	}
	s.set(ctx, *p)
}

// Principal returns a copy of the in-memory principal, or nil.
func (s *SessionService) Principal() *domainauth.Principal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.principal == nil {
		return nil
	}
	p := *s.principal
	return &p
}

// Login posts credentials and applies the acceptance rules to the answer.
// A rejection returns *LoginRejectedError and leaves the session untouched.
func (s *SessionService) Login(ctx context.Context, email, password string) (*domainauth.Principal, error) {
	token, ok := s.tokens.Current()
	if !ok {
		s.metrics.Login(metrics.ResultNoop)
		return nil, ErrTokenMissing
	}

	p, err := s.identity.Login(ctx, token, ports.Credentials{Email: email, Password: password})
	if err != nil {
		s.metrics.Login(metrics.ResultError)
		return nil, fmt.Errorf("login: %w", err)
	}

	verdict := domainauth.EvaluateLogin(p, s.now())
	if !verdict.Accepted {
		s.metrics.Login("rejected")
		s.logger.InfoContext(ctx, "login rejected", "userid", p.UserID, "reason", verdict.Message)
		return nil, &LoginRejectedError{Message: verdict.Message}
	}

	s.set(ctx, p)
	s.metrics.Login(metrics.ResultSuccess)
	s.logger.InfoContext(ctx, "login accepted", "userid", p.UserID, "role", string(p.Role))
	return &p, nil
}

// Logout ends the remote session. On failure the local session is kept.
func (s *SessionService) Logout(ctx context.Context) error {
	token, _ := s.tokens.Current()
	if err := s.identity.Logout(ctx, token); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	s.clear(ctx)
	return nil
}

func (s *SessionService) set(ctx context.Context, p domainauth.Principal) {
	s.mu.Lock()
	s.principal = &p
	s.mu.Unlock()

	snap := ports.SessionSnapshot{Principal: p}
	if s.cookies != nil {
		snap.Cookies = s.cookies.SessionCookies()
	}
	if err := s.store.Save(context.WithoutCancel(ctx), s.key, snap); err != nil {
		s.logger.WarnContext(ctx, "failed to persist principal", "error", err)
	}
}

func (s *SessionService) clear(ctx context.Context) {
	s.mu.Lock()
	s.principal = nil
	s.mu.Unlock()

	if err := s.store.Delete(context.WithoutCancel(ctx), s.key); err != nil {
		s.logger.WarnContext(ctx, "failed to remove stored principal", "error", err)
	}
}
