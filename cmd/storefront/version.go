package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/txn2/storefront/internal/server"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), server.BuildInfo())
			return err
		},
	}
}
