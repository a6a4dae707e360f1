package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/txn2/storefront/internal/server"
	"github.com/txn2/storefront/pkg/platform"
)

func newServeCommand(rootOpts *rootOptions) *cobra.Command {
	var address string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the storefront HTTP server",
		Long: `Run the storefront HTTP server.

The server exposes the storefront cart API, the health probes and, when
enabled, the admin API and the operator MCP endpoint. SIGINT or SIGTERM
starts a graceful shutdown.

Example:
  storefront serve --config storefront.yaml
  storefront serve -c storefront.yaml --address :9090`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}
			if address != "" {
				cfg.Server.Address = address
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}

	cmd.Flags().StringVar(&address, "address", "", "listen address, overrides server.address")

	return cmd
}

func serve(ctx context.Context, cfg *platform.Config) error {
	logger, err := newLogger(cfg.Logging, os.Stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	slog.Info("starting storefront", "build", server.BuildInfo(), "environment", cfg.Server.Environment)

	p, err := platform.New(platform.WithConfig(cfg), platform.WithVersion(server.Version))
	if err != nil {
		return fmt.Errorf("creating platform: %w", err)
	}
	defer func() {
		if err := p.Close(); err != nil {
			slog.Error("closing platform", "error", err)
		}
	}()

	if err := p.Start(ctx); err != nil {
		return fmt.Errorf("starting platform: %w", err)
	}

	srvCfg := server.Config{
		Address:         cfg.Server.Address,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		BeforeShutdown:  p.Health().SetDraining,
	}
	if cfg.Server.TLS.Enabled {
		srvCfg.CertFile = cfg.Server.TLS.CertFile
		srvCfg.KeyFile = cfg.Server.TLS.KeyFile
	}

	serveErr := server.ListenAndServe(ctx, srvCfg, p.Handler())

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := p.Stop(stopCtx); err != nil {
		slog.Error("stopping platform", "error", err)
	}

	if serveErr != nil {
		return serveErr
	}
	slog.Info("storefront stopped")
	return nil
}
