package lifecycle

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"vslmanager/guard"
	"vslmanager/state"
	"vslmanager/ui"
)

func (m *Manager) backupsFolder() (string, error) {
	folder := m.Store.Snapshot().Settings.BackupsFolder
	if folder == "" {
		return "", invalid("backupsFolder", "is not configured")
	}
	return folder, nil
}

// CreateBackup snapshots the installation and then evicts the oldest
// backups beyond its limit. If the backup cannot be recorded its archive
// is removed again.
func (m *Manager) CreateBackup(ctx context.Context, id string) (state.Backup, error) {
	inst, err := m.installation(id)
	if err != nil {
		return state.Backup{}, err
	}
	folder, err := m.backupsFolder()
	if err != nil {
		return state.Backup{}, err
	}
	release, err := m.admit(id, guard.ReasonBackingUp, "Creating backup")
	if err != nil {
		return state.Backup{}, err
	}
	defer release()

	b, err := m.Backups.Create(ctx, inst, folder, inst.CompressionLevel)
	if err != nil {
		if ctx.Err() != nil {
			return state.Backup{}, ctx.Err()
		}
		return state.Backup{}, m.fail("Failed to create backup", ioFailure("write", folder, err))
	}

	cfg, err := m.Store.Dispatch(ctx, state.AddBackup{InstallationID: id, Backup: b})
	if err != nil {
		if rerr := m.Backups.Remove(b); rerr != nil {
			m.Log.Errorw("Failed to remove unrecorded backup", zap.String("archive", b.ArchivePath), zap.Error(rerr))
		}
		return state.Backup{}, dispatchError(err)
	}
	m.notify(fmt.Sprintf("Backup of %s created", inst.Name), ui.SeveritySuccess)

	if updated, ok := cfg.FindInstallation(id); ok {
		if _, err := m.prune(ctx, updated); err != nil {
			m.Log.Warnw("Failed to prune backups", zap.String("installation", id), zap.Error(err))
			m.notify("Old backups could not be removed: "+err.Error(), ui.SeverityWarning)
		}
	}
	return b, nil
}

// prune evicts backups beyond the limit, oldest first. Each archive is
// staged aside, its record dropped and only then the file deleted, so a
// failure at any step leaves file and record together.
func (m *Manager) prune(ctx context.Context, inst state.Installation) ([]state.Backup, error) {
	var removed []state.Backup
	for _, b := range m.Backups.Prune(inst) {
		if err := m.removeBackup(ctx, inst.ID, b); err != nil {
			return removed, err
		}
		removed = append(removed, b)
	}
	if len(removed) > 0 {
		m.Log.Infow("Pruned backups", zap.String("installation", inst.ID), zap.Int("removed", len(removed)))
	}
	return removed, nil
}

func (m *Manager) removeBackup(ctx context.Context, id string, b state.Backup) error {
	commit, rollback, err := m.Backups.Stage(b)
	if err != nil {
		return ioFailure("delete", b.ArchivePath, err)
	}
	if _, err := m.Store.Dispatch(ctx, state.RemoveBackup{InstallationID: id, BackupID: b.ID}); err != nil {
		if rerr := rollback(); rerr != nil {
			m.Log.Errorw("Failed to restore staged backup", zap.String("archive", b.ArchivePath), zap.Error(rerr))
		}
		return dispatchError(err)
	}
	if err := commit(); err != nil {
		m.Log.Warnw("Backup record removed but archive remains", zap.String("archive", b.ArchivePath), zap.Error(err))
	}
	return nil
}

// PruneBackups applies the retention limit now and returns what it removed.
func (m *Manager) PruneBackups(ctx context.Context, id string) ([]state.Backup, error) {
	inst, err := m.installation(id)
	if err != nil {
		return nil, err
	}
	release, err := m.admit(id, guard.ReasonDeletingBackup, "Pruning backups")
	if err != nil {
		return nil, err
	}
	defer release()
	return m.prune(ctx, inst)
}

// RestoreBackup extracts a backup over the installation folder.
func (m *Manager) RestoreBackup(ctx context.Context, id, backupID string) error {
	inst, err := m.installation(id)
	if err != nil {
		return err
	}
	b, ok := inst.FindBackup(backupID)
	if !ok {
		return notFound("backup", backupID)
	}
	release, err := m.admit(id, guard.ReasonRestoring, "Restoring backup")
	if err != nil {
		return err
	}
	defer release()

	if err := m.Backups.Restore(ctx, inst, b); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return m.fail("Failed to restore backup", ioFailure("restore", inst.Path, err))
	}
	m.notify(fmt.Sprintf("Backup of %s restored", inst.Name), ui.SeveritySuccess)
	return nil
}

// DeleteBackup removes one backup, archive and record together.
func (m *Manager) DeleteBackup(ctx context.Context, id, backupID string) error {
	inst, err := m.installation(id)
	if err != nil {
		return err
	}
	b, ok := inst.FindBackup(backupID)
	if !ok {
		return notFound("backup", backupID)
	}
	release, err := m.admit(id, guard.ReasonDeletingBackup, "Deleting backup")
	if err != nil {
		return err
	}
	defer release()

	if err := m.removeBackup(ctx, id, b); err != nil {
		return m.fail("Failed to delete backup", err)
	}
	m.notify("Backup deleted", ui.SeveritySuccess)
	return nil
}

// ListBackups returns the installation's backups oldest first.
func (m *Manager) ListBackups(id string) ([]state.Backup, error) {
	inst, err := m.installation(id)
	if err != nil {
		return nil, err
	}
	return m.Backups.List(inst), nil
}

// OrphanedArchives lists archive files in the backups folder that no
// backup record points to.
func (m *Manager) OrphanedArchives() ([]string, error) {
	folder, err := m.backupsFolder()
	if err != nil {
		return nil, err
	}
	out, err := m.Backups.Orphans(folder, m.Store.Snapshot())
	if err != nil {
		return nil, ioFailure("scan", folder, err)
	}
	return out, nil
}
