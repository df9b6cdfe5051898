package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	domainauth "github.com/synergyaccounting/synergy-web/internal/domain/auth"
	"github.com/synergyaccounting/synergy-web/internal/observability/metrics"
	"github.com/synergyaccounting/synergy-web/internal/ports"
)

// Token acquisition defaults.
const (
	DefaultTokenRetries        = 3
	DefaultTokenRetryDelay     = time.Second
	DefaultTokenAttemptTimeout = 5 * time.Second
)

var (
	// ErrTokenUnavailable is returned when every acquisition attempt failed.
	ErrTokenUnavailable = errors.New("anti-forgery token unavailable")
	// ErrTokenMissing is returned by calls that need a token when none is held.
	ErrTokenMissing = errors.New("anti-forgery token missing")
)

// CredentialTokenServiceOptions groups dependencies for CredentialTokenService.
type CredentialTokenServiceOptions struct {
	Source  ports.TokenSource
	Retries int
	Delay   time.Duration
	// AttemptTimeout bounds a single fetch; zero uses DefaultTokenAttemptTimeout.
	AttemptTimeout time.Duration
	Metrics        *metrics.Recorder
	Logger         *slog.Logger
	// Sleep waits between attempts. Tests replace it to observe delays.
	Sleep func(ctx context.Context, d time.Duration) error
}

// CredentialTokenService obtains and holds the remote API's anti-forgery token.
// A token once obtained is never cleared; a failed refresh keeps the old value.
type CredentialTokenService struct {
	source         ports.TokenSource
	retries        int
	delay          time.Duration
	attemptTimeout time.Duration
	metrics        *metrics.Recorder
	logger         *slog.Logger
	sleep          func(ctx context.Context, d time.Duration) error

	group singleflight.Group

	mu    sync.RWMutex
	token string
	state domainauth.TokenState
}

// NewCredentialTokenService constructs a CredentialTokenService.
func NewCredentialTokenService(opts CredentialTokenServiceOptions) (*CredentialTokenService, error) {
	if opts.Source == nil {
		return nil, errors.New("token source is required")
	}

	retries := opts.Retries
	if retries <= 0 {
		retries = DefaultTokenRetries
	}
	delay := opts.Delay
	if delay <= 0 {
		delay = DefaultTokenRetryDelay
	}
	attemptTimeout := opts.AttemptTimeout
	if attemptTimeout <= 0 {
		attemptTimeout = DefaultTokenAttemptTimeout
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &CredentialTokenService{
		source:         opts.Source,
		retries:        retries,
		delay:          delay,
		attemptTimeout: attemptTimeout,
		metrics:        opts.Metrics,
		logger:         logger.With("component", "csrf_token_service"),
		sleep:          sleep,
		state:          domainauth.TokenUnresolved,
	}, nil
}

type acquireConfig struct {
	retries int
	delay   time.Duration
}

// AcquireOption overrides the retry policy of a single Acquire call.
type AcquireOption func(*acquireConfig)

// WithRetries sets the number of attempts. Values below zero are treated as zero.
func WithRetries(n int) AcquireOption {
	return func(c *acquireConfig) {
		if n < 0 {
			n = 0
		}
		c.retries = n
	}
}

// WithDelay sets the wait between attempts.
func WithDelay(d time.Duration) AcquireOption {
	return func(c *acquireConfig) {
		if d < 0 {
			d = 0
		}
		c.delay = d
	}
}

// Acquire fetches a fresh token, retrying on failure.
//
// Concurrent callers share one in-flight sequence, run with the context and
// options of the caller that started it. A caller whose ctx ends stops
// waiting without aborting the shared sequence.
func (s *CredentialTokenService) Acquire(ctx context.Context, opts ...AcquireOption) error {
	cfg := acquireConfig{retries: s.retries, delay: s.delay}
	for _, opt := range opts {
		opt(&cfg)
	}

	ch := s.group.DoChan("acquire", func() (any, error) {
		return nil, s.run(ctx, cfg)
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *CredentialTokenService) run(ctx context.Context, cfg acquireConfig) error {
	s.beginResolving()

	for attempt := 1; attempt <= cfg.retries; attempt++ {
		s.logger.DebugContext(ctx, "fetching csrf token", "attempt", attempt, "of", cfg.retries)

		token, err := s.fetchOnce(ctx)
		if err == nil {
			s.metrics.TokenAttempt(metrics.ResultSuccess)
			s.metrics.TokenAcquisition(metrics.ResultSuccess)
			s.store(token)
			s.logger.InfoContext(ctx, "csrf token fetched", "attempt", attempt)
			return nil
		}

		s.metrics.TokenAttempt(metrics.ResultError)
		s.logger.WarnContext(ctx, "csrf token fetch failed", "attempt", attempt, "error", err)

		if ctx.Err() != nil {
			s.giveUp()
			return ctx.Err()
		}
		if attempt < cfg.retries {
			if sleepErr := s.sleep(ctx, cfg.delay); sleepErr != nil {
				s.giveUp()
				return sleepErr
			}
		}
	}

	s.metrics.TokenAcquisition(metrics.ResultError)
	s.giveUp()
	s.logger.ErrorContext(ctx, "failed to fetch csrf token after multiple attempts", "attempts", cfg.retries)
	return ErrTokenUnavailable
}

func (s *CredentialTokenService) fetchOnce(ctx context.Context) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, s.attemptTimeout)
	defer cancel()

	token, err := s.source.FetchCSRFToken(attemptCtx)
	if err != nil {
		return "", fmt.Errorf("fetch csrf token: %w", err)
	}
	if token == "" {
		return "", errors.New("fetch csrf token: empty token")
	}
	return token, nil
}

// Current returns the held token. It never blocks and never fetches.
func (s *CredentialTokenService) Current() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.token != ""
}

// State reports where the token lifecycle stands.
func (s *CredentialTokenService) State() domainauth.TokenState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *CredentialTokenService) beginResolving() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == "" {
		s.state = domainauth.TokenResolving
	}
}

func (s *CredentialTokenService) store(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.state = domainauth.TokenReady
}

func (s *CredentialTokenService) giveUp() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == "" {
		s.state = domainauth.TokenUnavailable
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
