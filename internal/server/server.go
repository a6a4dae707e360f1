// Package server runs the storefront HTTP server until its context ends.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// Build information, set at build time via -ldflags.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// BuildInfo returns the one-line build description.
func BuildInfo() string {
	return fmt.Sprintf("storefront %s (commit %s, built %s)", Version, Commit, Date)
}

const (
	readHeaderTimeout      = 10 * time.Second
	defaultShutdownTimeout = 25 * time.Second
)

// Config configures Serve.
type Config struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// CertFile and KeyFile enable TLS when both are set.
	CertFile string
	KeyFile  string

	// BeforeShutdown runs once the context is done and before in-flight
	// requests are drained.
	BeforeShutdown func()
}

// ListenAndServe listens on cfg.Address and calls Serve.
func ListenAndServe(ctx context.Context, cfg Config, h http.Handler) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(context.WithoutCancel(ctx), "tcp", cfg.Address)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", cfg.Address, err)
	}
	return Serve(ctx, ln, cfg, h)
}

// Serve serves h on ln until ctx is done, then shuts down gracefully within
// cfg.ShutdownTimeout. It returns nil after a clean shutdown.
func Serve(ctx context.Context, ln net.Listener, cfg Config, h http.Handler) error {
	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
	}

	tls := cfg.CertFile != "" && cfg.KeyFile != ""
	errCh := make(chan error, 1)
	go func() {
		var err error
		if tls {
			err = srv.ServeTLS(ln, cfg.CertFile, cfg.KeyFile)
		} else {
			err = srv.Serve(ln)
		}
		errCh <- err
	}()

	slog.Info("http server listening", "address", ln.Addr().String(), "tls", tls)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving http: %w", err)
	case <-ctx.Done():
	}

	if cfg.BeforeShutdown != nil {
		cfg.BeforeShutdown()
	}

	timeout := cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	slog.Info("http server shutting down", "timeout", timeout)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving http: %w", err)
	}
	return nil
}
