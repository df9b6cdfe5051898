package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/synergyaccounting/synergy-web/config"
	"github.com/synergyaccounting/synergy-web/internal/adapters/memory"
	redisstore "github.com/synergyaccounting/synergy-web/internal/adapters/redis"
	"github.com/synergyaccounting/synergy-web/internal/adapters/upstream"
	"github.com/synergyaccounting/synergy-web/internal/observability/metrics"
	"github.com/synergyaccounting/synergy-web/internal/ports"
	"github.com/synergyaccounting/synergy-web/internal/service"
)

// shutdownWaitTimeout is the maximum time to wait for services to stop gracefully.
const shutdownWaitTimeout = 15 * time.Second

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Registry *service.WorkspaceRegistry
	Store    ports.PrincipalStore

	// Metrics is nil when metrics are disabled.
	Metrics        *metrics.Recorder
	MetricsHandler http.Handler
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	// Context bounds the lifetime of every Workspace.
	Context     context.Context
	Config      *config.AppConfig
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// NewServices wires the principal store, metrics and the workspace registry.
func NewServices(deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil || deps.Config == nil {
		return ServiceContainer{}, errors.New("service deps with config are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ctx := deps.Context
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := deps.Config

	store, err := newPrincipalStore(cfg.Session, deps.RedisClient)
	if err != nil {
		return ServiceContainer{}, err
	}

	var (
		rec     *metrics.Recorder
		handler http.Handler
	)
	if cfg.Observability.MetricsEnabled {
		rec, handler = newMetrics()
	}

	registry, err := service.NewWorkspaceRegistry(ctx, service.WorkspaceRegistryConfig{
		Capacity: cfg.Session.Capacity,
		IdleTTL:  cfg.Session.IdleTTL,
		Factory: newWorkspaceFactory(workspaceFactoryOptions{
			Upstream: cfg.Upstream,
			Store:    store,
			Metrics:  rec,
			Logger:   logger,
		}),
		Metrics: rec,
		Logger:  logger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create workspace registry: %w", err)
	}

	logger.Info("services initialised",
		"session_store", cfg.Session.Store,
		"visitor_capacity", cfg.Session.Capacity,
		"visitor_idle_ttl", cfg.Session.IdleTTL,
		"metrics", rec != nil,
	)

	return ServiceContainer{
		Registry:       registry,
		Store:          store,
		Metrics:        rec,
		MetricsHandler: handler,
	}, nil
}

// newMetrics registers the application collectors next to the Go runtime and
// process collectors on a dedicated registry.
func newMetrics() (*metrics.Recorder, http.Handler) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	rec := metrics.New(reg)
	return rec, promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// newPrincipalStore picks the principal store backend.
//
//nolint:ireturn // the backend is chosen at runtime.
func newPrincipalStore(cfg config.SessionConfig, client redis.UniversalClient) (ports.PrincipalStore, error) {
	if cfg.Store != config.SessionStoreRedis {
		return memory.NewPrincipalStore(), nil
	}
	if client == nil {
		return nil, errors.New("redis session store selected but no redis client is configured")
	}
	return redisstore.NewPrincipalStore(client, redisstore.PrincipalStoreOptions{
		Prefix: cfg.KeyPrefix,
		TTL:    cfg.IdleTTL,
	}), nil
}

type workspaceFactoryOptions struct {
	Upstream config.UpstreamConfig
	Store    ports.PrincipalStore
	Metrics  *metrics.Recorder
	Logger   *slog.Logger
	// HTTPClient overrides the transport of every upstream client (tests).
	HTTPClient *http.Client
}

// newWorkspaceFactory gives every visitor its own upstream client, and with it
// its own cookie jar.
func newWorkspaceFactory(opts workspaceFactoryOptions) service.WorkspaceFactory {
	policy := tokenPolicy(opts.Upstream)
	return func(ctx context.Context, id string) (*service.Workspace, error) {
		clientOpts := upstream.Options{
			BaseURL:    opts.Upstream.BaseURL,
			Timeout:    opts.Upstream.Timeout,
			HTTPClient: opts.HTTPClient,
			Logger:     opts.Logger,
		}
		if opts.Metrics != nil {
			clientOpts.Observer = opts.Metrics
		}
		client, err := upstream.NewClient(clientOpts)
		if err != nil {
			return nil, err
		}
		return service.NewWorkspace(ctx, service.WorkspaceOptions{
			ID:      id,
			API:     client,
			Store:   opts.Store,
			Cookies: client,
			Tokens:  policy,
			Metrics: opts.Metrics,
			Logger:  opts.Logger,
		})
	}
}

func tokenPolicy(cfg config.UpstreamConfig) service.TokenPolicy {
	return service.TokenPolicy{
		Retries:        cfg.CSRFRetries,
		Delay:          cfg.CSRFRetryDelay,
		AttemptTimeout: cfg.CSRFAttemptTimeout,
	}
}

// ServiceOrchestrationConfig groups what RunServicesWithShutdown needs.
type ServiceOrchestrationConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	Logger   *slog.Logger
}

// RunServicesWithShutdown serves HTTP and sweeps idle workspaces until ctx is
// cancelled or either of them fails, then shuts both down.
func RunServicesWithShutdown(ctx context.Context, cfg *ServiceOrchestrationConfig) error {
	if cfg == nil || cfg.Config == nil {
		return errors.New("service orchestration config is required")
	}
	if cfg.Services.Registry == nil {
		return errors.New("service orchestration config missing workspace registry")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	server := NewHTTPServer(&HTTPServerConfig{
		Config:   cfg.Config,
		Services: cfg.Services,
		Logger:   logger,
	})
	registry := cfg.Services.Registry

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting HTTP server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return registry.Run(gctx, cfg.Config.Session.SweepInterval)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down services...")
		err := ShutdownHTTPServer(ShutdownConfig{
			Context: gctx,
			Server:  server,
			Logger:  logger,
			Timeout: cfg.Config.HTTP.ShutdownTimeout,
		})
		registry.Close()
		return err
	})

	return g.Wait()
}
