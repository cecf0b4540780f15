package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"vslmanager/state"
	"vslmanager/ui"
)

var versionCmd = &cobra.Command{
	Use:     "version",
	Aliases: []string{"v"},
	Short:   "Manage installed game versions",
}

var versionAddCmd = &cobra.Command{
	Use:   "add <version> [path]",
	Short: "Register an installed game version",
	Long: `Register a game version that is already unpacked on disk.
Example: vslmanager version add 1.19.8

Without a path the version is expected in the versions folder.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(_ *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			gv := state.GameVersion{Version: args[0]}
			if len(args) == 2 {
				abs, err := filepath.Abs(args[1])
				if err != nil {
					return err
				}
				gv.Path = abs
			} else {
				gv.Path = filepath.Join(a.store.Snapshot().Settings.VersionsFolder, args[0])
			}
			if err := a.manager.AddGameVersion(ctx, gv); err != nil {
				return err
			}
			fmt.Printf("Added game version %s at %s\n", gv.Version, gv.Path)
			return nil
		})
	},
}

var versionListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List game versions, newest first",
	Args:    cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		return withApp(func(_ context.Context, a *app) error {
			cfg := a.store.Snapshot()
			if len(cfg.GameVersions) == 0 {
				fmt.Println("No game versions registered.")
				return nil
			}
			used := map[string]int{}
			for _, inst := range cfg.Installations {
				used[inst.Version]++
			}
			fmt.Println(ui.HeaderStyle.Render(fmt.Sprintf("%-12s %-6s %s", "Version", "Used", "Path")))
			for _, gv := range state.SortedGameVersions(cfg.GameVersions) {
				fmt.Printf(" %-12s %-6d %s\n", gv.Version, used[gv.Version], gv.Path)
			}
			return nil
		})
	},
}

var versionRemoveCmd = &cobra.Command{
	Use:     "remove <version>",
	Aliases: []string{"rm"},
	Short:   "Forget a game version no installation uses",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deleteData, _ := cmd.Flags().GetBool("delete-files")
		return withApp(func(ctx context.Context, a *app) error {
			if err := a.manager.RemoveGameVersion(ctx, args[0], deleteData); err != nil {
				return err
			}
			fmt.Printf("Removed game version %s\n", args[0])
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.AddCommand(versionAddCmd, versionListCmd, versionRemoveCmd)
	versionRemoveCmd.Flags().Bool("delete-files", false, "also delete the version folder")
}
