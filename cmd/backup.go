package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"vslmanager/state"
	"vslmanager/ui"
)

var backupCmd = &cobra.Command{
	Use:     "backup",
	Aliases: []string{"b"},
	Short:   "Create, list, restore and delete installation backups",
}

var backupCreateCmd = &cobra.Command{
	Use:   "create <installation>",
	Short: "Back up an installation's folder",
	Long: `Archive the installation's folder into the backups folder. Older backups
beyond the installation's limit are removed afterwards.`,
	Args: cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			inst, err := findInstallation(a.store.Snapshot(), args[0])
			if err != nil {
				return err
			}
			b, err := a.manager.CreateBackup(ctx, inst.ID)
			if err != nil {
				return err
			}
			fmt.Printf("Created backup %s (%s)\n", b.ID, formatSize(b.SizeBytes))
			return nil
		})
	},
}

var backupListCmd = &cobra.Command{
	Use:     "list <installation>",
	Aliases: []string{"ls"},
	Short:   "List an installation's backups, oldest first",
	Args:    cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		return withApp(func(_ context.Context, a *app) error {
			inst, err := findInstallation(a.store.Snapshot(), args[0])
			if err != nil {
				return err
			}
			backups, err := a.manager.ListBackups(inst.ID)
			if err != nil {
				return err
			}
			printBackups(os.Stdout, inst, backups)
			return nil
		})
	},
}

var backupDeleteCmd = &cobra.Command{
	Use:     "delete <installation> <backup-id>",
	Aliases: []string{"rm"},
	Short:   "Delete one backup",
	Args:    cobra.ExactArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			inst, err := findInstallation(a.store.Snapshot(), args[0])
			if err != nil {
				return err
			}
			b, err := findBackup(inst, args[1])
			if err != nil {
				return err
			}
			if err := a.manager.DeleteBackup(ctx, inst.ID, b.ID); err != nil {
				return err
			}
			fmt.Printf("Deleted backup %s\n", b.ID)
			return nil
		})
	},
}

var backupPruneCmd = &cobra.Command{
	Use:   "prune <installation>",
	Short: "Remove the oldest backups beyond the installation's limit",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			inst, err := findInstallation(a.store.Snapshot(), args[0])
			if err != nil {
				return err
			}
			removed, err := a.manager.PruneBackups(ctx, inst.ID)
			if err != nil {
				return err
			}
			fmt.Printf("Removed %d backup(s)\n", len(removed))
			return nil
		})
	},
}

var backupDoctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Report archives in the backups folder that no installation knows about",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		return withApp(func(_ context.Context, a *app) error {
			orphans, err := a.manager.OrphanedArchives()
			if err != nil {
				return err
			}
			if len(orphans) == 0 {
				fmt.Println("Backups folder is consistent.")
				return nil
			}
			fmt.Println(ui.SeverityStyle(ui.SeverityWarning).Render(fmt.Sprintf("%d archive(s) are not referenced by any installation:", len(orphans))))
			for _, p := range orphans {
				fmt.Println("  " + p)
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(backupCmd)
	backupCmd.AddCommand(backupCreateCmd, backupListCmd, backupDeleteCmd, backupPruneCmd, backupDoctorCmd)
}

// findBackup resolves ref as a backup id or the 1-based position in the
// list, oldest first.
func findBackup(inst state.Installation, ref string) (state.Backup, error) {
	if b, ok := inst.FindBackup(ref); ok {
		return b, nil
	}
	if n, err := strconv.Atoi(ref); err == nil && n >= 1 && n <= len(inst.Backups) {
		return inst.Backups[n-1], nil
	}
	return state.Backup{}, fmt.Errorf("backup %q not found in %s", ref, inst.Name)
}

func printBackups(w io.Writer, inst state.Installation, backups []state.Backup) {
	if len(backups) == 0 {
		fmt.Fprintf(w, "%s has no backups.\n", inst.Name)
		return
	}
	limit := "unlimited"
	if inst.BackupsLimit > 0 {
		limit = fmt.Sprint(inst.BackupsLimit)
	}
	fmt.Fprintf(w, "%s: %d backup(s), limit %s\n", inst.Name, len(backups), limit)
	fmt.Fprintln(w, ui.HeaderStyle.Render(fmt.Sprintf("%-3s %-38s %-20s %s", "#", "ID", "Created", "Size")))
	for i, b := range backups {
		fmt.Fprintf(w, " %-3d %-38s %-20s %s\n", i+1, b.ID, b.CreatedAt.Local().Format(time.DateTime), formatSize(b.SizeBytes))
	}
}
