package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"vslmanager/lifecycle"
	"vslmanager/state"
	"vslmanager/ui"
)

var installationCmd = &cobra.Command{
	Use:     "installation",
	Aliases: []string{"inst", "i"},
	Short:   "Create, list, edit and remove installations",
}

var installationAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a new installation",
	Long: `Create a new installation with its own data folder.
Example: vslmanager installation add --name "Survival" --version 1.19.8

Without --path the folder is derived from the name inside the default
installations folder.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		in := lifecycle.DefaultInput()
		applyInstallationFlags(cmd.Flags(), &in)
		return withApp(func(ctx context.Context, a *app) error {
			inst, err := a.manager.CreateInstallation(ctx, in)
			if err != nil {
				return err
			}
			fmt.Printf("Created %s (%s) at %s\n", inst.Name, inst.ID, inst.Path)
			return nil
		})
	},
}

var installationListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List installations",
	Args:    cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		return withApp(func(_ context.Context, a *app) error {
			printInstallations(os.Stdout, a.store.Snapshot())
			return nil
		})
	},
}

var installationEditCmd = &cobra.Command{
	Use:   "edit <installation>",
	Short: "Change an installation's settings",
	Long: `Change an installation's settings. Only the flags given are changed.
Moving an installation with --path moves its folder.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			inst, err := findInstallation(a.store.Snapshot(), args[0])
			if err != nil {
				return err
			}
			in := lifecycle.InputFrom(inst)
			applyInstallationFlags(cmd.Flags(), &in)
			updated, err := a.manager.EditInstallation(ctx, inst.ID, in)
			if err != nil {
				return err
			}
			fmt.Printf("Updated %s\n", updated.Name)
			return nil
		})
	},
}

var installationRemoveCmd = &cobra.Command{
	Use:     "remove <installation>",
	Aliases: []string{"rm"},
	Short:   "Remove an installation and its backups",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		keep, _ := cmd.Flags().GetBool("keep-data")
		return withApp(func(ctx context.Context, a *app) error {
			inst, err := findInstallation(a.store.Snapshot(), args[0])
			if err != nil {
				return err
			}
			if err := a.manager.DeleteInstallation(ctx, inst.ID, !keep); err != nil {
				return err
			}
			fmt.Printf("Removed %s\n", inst.Name)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(installationCmd)
	installationCmd.AddCommand(installationAddCmd, installationListCmd, installationEditCmd, installationRemoveCmd)

	for _, c := range []*cobra.Command{installationAddCmd, installationEditCmd} {
		f := c.Flags()
		f.String("name", "", "installation name (5 to 50 characters)")
		f.String("path", "", "installation folder")
		f.String("version", "", "game version")
		f.String("start-params", "", "extra arguments passed to the game")
		f.Int("backups-limit", state.DefaultBackupsLimit, "backups to keep, 0 keeps all")
		f.Bool("backups-auto", false, "back up automatically before playing")
		f.Int("compression", state.DefaultCompressionLevel, "backup compression level 0-9")
		f.Bool("mesa-glthread", false, "enable mesa_glthread when launching")
	}
	installationRemoveCmd.Flags().Bool("keep-data", false, "keep the installation folder on disk")
}

// applyInstallationFlags copies every flag the user set into in.
func applyInstallationFlags(f *pflag.FlagSet, in *lifecycle.InstallationInput) {
	if f.Changed("name") {
		in.Name, _ = f.GetString("name")
	}
	if f.Changed("path") {
		in.Path, _ = f.GetString("path")
	}
	if f.Changed("version") {
		in.Version, _ = f.GetString("version")
	}
	if f.Changed("start-params") {
		in.StartParams, _ = f.GetString("start-params")
	}
	if f.Changed("backups-limit") {
		in.BackupsLimit, _ = f.GetInt("backups-limit")
	}
	if f.Changed("backups-auto") {
		in.BackupsAuto, _ = f.GetBool("backups-auto")
	}
	if f.Changed("compression") {
		in.CompressionLevel, _ = f.GetInt("compression")
	}
	if f.Changed("mesa-glthread") {
		in.MesaGlThread, _ = f.GetBool("mesa-glthread")
	}
}

func printInstallations(w io.Writer, cfg state.Config) {
	if len(cfg.Installations) == 0 {
		fmt.Fprintln(w, "No installations yet. Create one with 'vslmanager installation add'.")
		return
	}
	fmt.Fprintln(w, ui.HeaderStyle.Render(fmt.Sprintf("%-10s %-30s %-10s %5s %7s %-16s %s", "ID", "Name", "Version", "Mods", "Backups", "Last played", "Played")))
	for _, inst := range cfg.Installations {
		fmt.Fprintf(w, " %-10s %-30s %-10s %5d %7d %-16s %s\n",
			truncate(inst.ID, 8),
			truncate(inst.Name, 30),
			inst.Version,
			inst.ModsCount,
			len(inst.Backups),
			formatLastPlayed(inst.LastTimePlayed),
			formatPlayTime(inst.TotalTimePlayed),
		)
		fmt.Fprintln(w, ui.MutedStyle.Render("   "+inst.Path))
	}
}
