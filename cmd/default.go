package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"
)

// Running vslmanager without a subcommand lists the installations.
func init() {
	rootCmd.Args = cobra.NoArgs
	rootCmd.RunE = func(_ *cobra.Command, _ []string) error {
		return withApp(func(_ context.Context, a *app) error {
			printInstallations(os.Stdout, a.store.Snapshot())
			return nil
		})
	}
}
