package main

import (
	"fmt"

	"github.com/leeforge/bot/version"
	"github.com/spf13/cobra"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the host and extension API versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "bot %s (extension API %s)\n", version.Version, version.API)
			return err
		},
	}
}
