package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"vslmanager/mods"
	"vslmanager/ui"
)

var modsCmd = &cobra.Command{
	Use:     "mods",
	Aliases: []string{"m"},
	Short:   "List, install, update and delete an installation's mods",
}

var modsListCmd = &cobra.Command{
	Use:     "list <installation>",
	Aliases: []string{"ls"},
	Short:   "List installed mods and available updates",
	Args:    cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			inst, err := findInstallation(a.store.Snapshot(), args[0])
			if err != nil {
				return err
			}
			res, err := a.manager.ListMods(ctx, inst.ID)
			if err != nil {
				return err
			}
			printMods(os.Stdout, res, inst.Version)
			return nil
		})
	},
}

var modsInstallCmd = &cobra.Command{
	Use:   "install <installation> <modid> [release-id]",
	Short: "Download a mod from the mod database",
	Long: `Download a mod from the mod database into the installation's Mods folder.
Without a release id the newest release for the installation's game version is used.`,
	Args: cobra.RangeArgs(2, 3),
	RunE: func(_ *cobra.Command, args []string) error {
		releaseID := 0
		if len(args) == 3 {
			n, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("invalid release id %q", args[2])
			}
			releaseID = n
		}
		return withApp(func(ctx context.Context, a *app) error {
			inst, err := findInstallation(a.store.Snapshot(), args[0])
			if err != nil {
				return err
			}
			mod, err := a.manager.InstallMod(ctx, inst.ID, args[1], releaseID)
			if err != nil {
				return err
			}
			fmt.Printf("Installed %s %s into %s\n", mod.Name, mod.Version, inst.Name)
			return nil
		})
	},
}

var modsDeleteCmd = &cobra.Command{
	Use:     "delete <installation> <modid>",
	Aliases: []string{"rm"},
	Short:   "Delete an installed mod",
	Args:    cobra.ExactArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			inst, err := findInstallation(a.store.Snapshot(), args[0])
			if err != nil {
				return err
			}
			res, err := a.manager.ListMods(ctx, inst.ID)
			if err != nil {
				return err
			}
			mod, ok := findMod(res, args[1])
			if !ok {
				return fmt.Errorf("mod %q is not installed in %s", args[1], inst.Name)
			}
			if err := a.manager.DeleteMod(ctx, inst.ID, mod.Path); err != nil {
				return err
			}
			fmt.Printf("Deleted %s from %s\n", mod.Name, inst.Name)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(modsCmd)
	modsCmd.AddCommand(modsListCmd, modsInstallCmd, modsDeleteCmd)
}

// findMod matches ref against mod ids first and then file names.
func findMod(res mods.Result, ref string) (mods.InstalledMod, bool) {
	for _, m := range res.Mods {
		if m.ModID == ref {
			return m, true
		}
	}
	for _, m := range res.Mods {
		if filepath.Base(m.Path) == ref {
			return m, true
		}
	}
	return mods.InstalledMod{}, false
}

func printMods(w io.Writer, res mods.Result, gameVersion string) {
	if len(res.Mods) == 0 && len(res.Errors) == 0 {
		fmt.Fprintln(w, "No mods installed.")
		return
	}
	fmt.Fprintln(w, ui.HeaderStyle.Render(fmt.Sprintf("%-30s %-20s %-10s %s", "Name", "Mod id", "Version", "Update")))
	for _, m := range res.Mods {
		update := ""
		if rel, ok := mods.UpdateAvailable(m, gameVersion); ok {
			update = ui.Colorize(rel.ModVersion, 0x55ff55)
		}
		fmt.Fprintf(w, " %-30s %-20s %-10s %s\n", truncate(m.Name, 30), truncate(m.ModID, 20), m.Version, update)
	}
	for _, e := range res.Errors {
		fmt.Fprintln(w, ui.SeverityStyle(ui.SeverityError).Render(fmt.Sprintf(" %-30s %v", truncate(e.ZipName, 30), e.Err)))
	}
}
