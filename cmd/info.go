package cmd

import (
	"context"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags "-X vslmanager/cmd.Version=...".
var Version = "dev"

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the launcher version and where its data lives",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		return withApp(func(_ context.Context, a *app) error {
			s := a.store.Snapshot().Settings
			fmt.Printf("vslmanager %s (%s/%s, %s)\n", Version, runtime.GOOS, runtime.GOARCH, runtime.Version())
			fmt.Printf("  database:      %s\n", a.cfg.DatabasePath)
			fmt.Printf("  installations: %s\n", s.DefaultInstallationsFolder)
			fmt.Printf("  backups:       %s\n", s.BackupsFolder)
			fmt.Printf("  versions:      %s\n", s.VersionsFolder)
			fmt.Printf("  mod database:  %s\n", a.cfg.ModDBURL)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
