package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/txn2/storefront/pkg/platform"
)

// rootOptions holds flags shared by all commands.
type rootOptions struct {
	configPath string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "storefront",
		Short:         "Storefront cart and session service",
		Long:          "Serves the storefront cart API in front of a commerce backend.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to configuration file")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newMigrateCommand(opts))
	cmd.AddCommand(newVersionCommand())

	return cmd
}

// loadConfig reads and validates the configuration file.
func loadConfig(opts *rootOptions) (*platform.Config, error) {
	if opts.configPath == "" {
		return nil, fmt.Errorf("--config is required")
	}
	cfg, err := platform.LoadConfig(opts.configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger builds the process logger from the logging config.
func newLogger(cfg platform.LoggingConfig, w io.Writer) (*slog.Logger, error) {
	level, err := platform.ParseLogLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("logging.level %w", err)
	}
	hopts := &slog.HandlerOptions{Level: level}
	switch cfg.Format {
	case "text":
		return slog.New(slog.NewTextHandler(w, hopts)), nil
	case "json", "":
		return slog.New(slog.NewJSONHandler(w, hopts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
}
