package bootstrap

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/synergyaccounting/synergy-web/config"
	httpx "github.com/synergyaccounting/synergy-web/internal/http"
)

// HTTPServerConfig contains configuration for HTTP server.
type HTTPServerConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	Logger   *slog.Logger
}

// NewHTTPServer builds the HTTP server around the screen router.
// The caller owns ListenAndServe and Shutdown.
func NewHTTPServer(cfg *HTTPServerConfig) *http.Server {
	if cfg == nil {
		return nil
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	appCfg := cfg.Config
	if appCfg == nil {
		appCfg = &config.AppConfig{}
	}

	if appCfg.HTTP.CompressionEnabled {
		logger.Info("HTTP compression enabled", "level", appCfg.HTTP.CompressionLevel)
	}

	handler := httpx.NewRouter(httpx.RouterServices{
		Registry:          cfg.Services.Registry,
		VisitorCookieName: appCfg.Session.CookieName,
		VisitorMaxAge:     appCfg.Session.IdleTTL,
		CookieDomain:      appCfg.HTTP.CookieDomain,
		GuardWait:         appCfg.Session.GuardWait,
		Metrics:           cfg.Services.Metrics,
		MetricsHandler:    cfg.Services.MetricsHandler,
		Compression:       appCfg.HTTP.CompressionEnabled,
		CompressionLevel:  appCfg.HTTP.CompressionLevel,
		IsDev:             appCfg.IsDev,
		Logger:            logger,
	})

	httpCfg := appCfg.HTTP
	httpCfg.Sanitize() // zero AppConfig in tests still gets real timeouts

	return &http.Server{
		Addr:              httpCfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: httpCfg.ReadHeaderTimeout,
		ReadTimeout:       httpCfg.ReadTimeout,
		WriteTimeout:      httpCfg.WriteTimeout,
		IdleTimeout:       httpCfg.IdleTimeout,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}
}

// ShutdownConfig contains dependencies for HTTP server shutdown.
type ShutdownConfig struct {
	Context context.Context
	Server  *http.Server
	Logger  *slog.Logger
	// Timeout bounds the drain; zero means shutdownWaitTimeout.
	Timeout time.Duration
}

// ShutdownHTTPServer gracefully shuts down the HTTP server.
func ShutdownHTTPServer(cfg ShutdownConfig) error {
	if cfg.Server == nil {
		return nil
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("shutting down HTTP server")
	}

	ctx := cfg.Context
	if ctx == nil {
		ctx = context.Background()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = shutdownWaitTimeout
	}
	// The caller's context is usually already cancelled by the signal.
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	if err := cfg.Server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("HTTP server stopped")
	}

	return nil
}
