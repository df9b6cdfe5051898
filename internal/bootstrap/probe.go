package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/synergyaccounting/synergy-web/config"
	"github.com/synergyaccounting/synergy-web/internal/adapters/upstream"
	"github.com/synergyaccounting/synergy-web/internal/service"
)

// ProbeConfig groups dependencies for Probe.
type ProbeConfig struct {
	Upstream config.UpstreamConfig
	Logger   *slog.Logger
	// HTTPClient overrides the upstream transport (tests).
	HTTPClient *http.Client
}

// Probe runs one token acquisition against the remote API with the
// configured retry policy. It returns nil only when a token was obtained.
func Probe(ctx context.Context, cfg ProbeConfig) error {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	client, err := upstream.NewClient(upstream.Options{
		BaseURL:    cfg.Upstream.BaseURL,
		Timeout:    cfg.Upstream.Timeout,
		HTTPClient: cfg.HTTPClient,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	policy := tokenPolicy(cfg.Upstream)
	tokens, err := service.NewCredentialTokenService(service.CredentialTokenServiceOptions{
		Source:         client,
		Retries:        policy.Retries,
		Delay:          policy.Delay,
		AttemptTimeout: policy.AttemptTimeout,
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	if err := tokens.Acquire(ctx); err != nil {
		if errors.Is(err, service.ErrTokenUnavailable) {
			return fmt.Errorf("probe %s: %w", cfg.Upstream.BaseURL, err)
		}
		return err
	}
	if _, ok := tokens.Current(); !ok {
		return fmt.Errorf("probe %s: %w", cfg.Upstream.BaseURL, service.ErrTokenUnavailable)
	}
	logger.Info("upstream reachable", "base_url", cfg.Upstream.BaseURL)
	return nil
}
