package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/synergyaccounting/synergy-web/config"
	"github.com/synergyaccounting/synergy-web/internal/bootstrap"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1) //nolint:forbidigo // Main entrypoint should exit with non-zero status on fatal errors.
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "synergy-web",
		Short: "Server-rendered front end for the Synergy accounting API",
		Long: `synergy-web renders the Synergy accounting screens and calls the
remote accounting API on behalf of each browser visitor.

Configuration is read from the environment (and a .env file when present).`,
		Version:       version + " (" + commit + ")",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd(), probeCmd())
	return rootCmd
}

// loadConfig reads the environment and installs the process logger.
func loadConfig() (config.AppConfig, *slog.Logger, error) {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return cfg, nil, err
	}
	logger := bootstrap.InitLogger(cfg.Observability.SlogLevel())
	if err := bootstrap.ValidateConfig(&cfg); err != nil {
		return cfg, logger, err
	}
	return cfg, logger, nil
}

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.HTTP.Addr = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, &cfg, logger)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides HTTP_ADDR)")
	return cmd
}

func serve(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) error {
	logger.InfoContext(ctx, "starting synergy-web",
		"version", version,
		"upstream", cfg.Upstream.BaseURL,
		"session_store", cfg.Session.Store,
		"dev", cfg.IsDev,
	)

	var redisClient redis.UniversalClient
	if cfg.UsesRedis() {
		client, err := bootstrap.ConnectRedis(ctx, bootstrap.RedisConnectConfig{Redis: cfg.Redis, Logger: logger})
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		redisClient = client
		defer func() {
			if cerr := redisClient.Close(); cerr != nil {
				logger.ErrorContext(ctx, "close redis failed", "error", cerr)
			}
		}()
	}

	services, err := bootstrap.NewServices(&bootstrap.ServiceDeps{
		Context:     ctx,
		Config:      cfg,
		RedisClient: redisClient,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	return bootstrap.RunServicesWithShutdown(ctx, &bootstrap.ServiceOrchestrationConfig{
		Config:   cfg,
		Services: services,
		Logger:   logger,
	})
}

func probeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Check that the remote API hands out an anti-forgery token",
		Long: `probe performs one token acquisition against UPSTREAM_BASE_URL using
the configured retry policy and exits non-zero when no token was obtained.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if err := bootstrap.Probe(cmd.Context(), bootstrap.ProbeConfig{Upstream: cfg.Upstream, Logger: logger}); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
}
