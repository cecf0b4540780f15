package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vslmanager/logger"
)

var backupRestoreCmd = &cobra.Command{
	Use:     "restore <installation> [backup-id]",
	Aliases: []string{"rollback"},
	Short:   "Restore an installation from a backup",
	Long: `Overwrite the installation's files with the contents of a backup.
Without a backup id the newest backup is restored. Files that are not in the
archive are left in place.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(_ *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			inst, err := findInstallation(a.store.Snapshot(), args[0])
			if err != nil {
				return err
			}
			if len(inst.Backups) == 0 {
				return fmt.Errorf("%s has no backups to restore", inst.Name)
			}
			b := inst.Backups[len(inst.Backups)-1]
			if len(args) == 2 {
				if b, err = findBackup(inst, args[1]); err != nil {
					return err
				}
			}

			logger.Log.Infow("Restoring backup", zap.String("installation", inst.ID), zap.String("backup", b.ID))
			if err := a.manager.RestoreBackup(ctx, inst.ID, b.ID); err != nil {
				return err
			}
			fmt.Printf("Restored %s from backup %s\n", inst.Name, b.ID)
			return nil
		})
	},
}

func init() {
	backupCmd.AddCommand(backupRestoreCmd)
}
