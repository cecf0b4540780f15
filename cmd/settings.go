package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Change the shared installations, backups and versions folders",
	Long: `Change the folders shared by every installation. Only the flags given are
changed. Existing backups and versions are not moved.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		f := cmd.Flags()
		return withApp(func(ctx context.Context, a *app) error {
			s := a.store.Snapshot().Settings
			for flag, target := range map[string]*string{
				"installations": &s.DefaultInstallationsFolder,
				"backups":       &s.BackupsFolder,
				"versions":      &s.VersionsFolder,
			} {
				if !f.Changed(flag) {
					continue
				}
				v, _ := f.GetString(flag)
				abs, err := filepath.Abs(v)
				if err != nil {
					return err
				}
				*target = abs
			}
			if err := a.manager.SetSettings(ctx, s); err != nil {
				return err
			}
			fmt.Printf("installations: %s\nbackups:       %s\nversions:      %s\n", s.DefaultInstallationsFolder, s.BackupsFolder, s.VersionsFolder)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(settingsCmd)
	settingsCmd.Flags().String("installations", "", "default folder for new installations")
	settingsCmd.Flags().String("backups", "", "folder holding every installation's backups")
	settingsCmd.Flags().String("versions", "", "folder holding unpacked game versions")
}
