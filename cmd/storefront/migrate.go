package main

import (
	"database/sql"
	"fmt"
	"strconv"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/spf13/cobra"

	"github.com/txn2/storefront/pkg/database/migrate"
)

func newMigrateCommand(rootOpts *rootOptions) *cobra.Command {
	var dsn string

	cmd := &cobra.Command{
		Use:   "migrate [up|down|version|steps N]",
		Short: "Apply or inspect database migrations",
		Long: `Apply or inspect the session and cart event schema.

The database is taken from --dsn, or from database.dsn in the config file.

Example:
  storefront migrate up -c storefront.yaml
  storefront migrate steps -1 --dsn postgres://localhost/storefront`,
		Args:      cobra.RangeArgs(1, 2),
		ValidArgs: []string{"up", "down", "version", "steps"},
		RunE: func(cmd *cobra.Command, args []string) error {
			action, n, err := parseMigrateArgs(args)
			if err != nil {
				return err
			}
			if dsn == "" {
				cfg, err := loadConfig(rootOpts)
				if err != nil {
					return err
				}
				dsn = cfg.Database.DSN
			}
			if dsn == "" {
				return fmt.Errorf("no database configured: set --dsn or database.dsn")
			}

			db, err := sql.Open("postgres", dsn)
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer func() { _ = db.Close() }()

			out := cmd.OutOrStdout()
			switch action {
			case "up":
				err = migrate.Run(db)
			case "down":
				err = migrate.Down(db)
			case "steps":
				err = migrate.Steps(db, n)
			}
			if err != nil {
				return err
			}

			v, dirty, err := migrate.Version(db)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(out, "version %d (dirty: %t)\n", v, dirty)
			return nil
		},
	}

	cmd.Flags().StringVar(&dsn, "dsn", "", "database connection string, overrides database.dsn")

	return cmd
}

// parseMigrateArgs validates the action and, for steps, its count.
func parseMigrateArgs(args []string) (string, int, error) {
	action := args[0]
	switch action {
	case "up", "down", "version":
		if len(args) != 1 {
			return "", 0, fmt.Errorf("%s takes no arguments", action)
		}
		return action, 0, nil
	case "steps":
		if len(args) != 2 {
			return "", 0, fmt.Errorf("steps requires a count")
		}
		n, err := strconv.Atoi(args[1])
		if err != nil || n == 0 {
			return "", 0, fmt.Errorf("invalid step count %q", args[1])
		}
		return action, n, nil
	default:
		return "", 0, fmt.Errorf("unknown migrate action %q", action)
	}
}
