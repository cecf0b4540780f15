package lifecycle

import (
	"context"

	"go.uber.org/zap"
)

// background runs fn off the caller's goroutine. The application is kept
// open until fn returns; its result arrives on the returned channel and
// any state change through Store.Subscribe.
func (m *Manager) background(name, installationID string, fn func() error) <-chan error {
	done := make(chan error, 1)
	key := name + ":" + installationID + ":" + m.NewID()
	m.PreventClose(key, name)
	go func() {
		defer m.AllowClose(key)
		err := fn()
		if err != nil {
			m.Log.Debugw("Background operation failed", zap.String("op", name), zap.String("installation", installationID), zap.Error(err))
		}
		done <- err
		close(done)
	}()
	return done
}

func (m *Manager) CreateBackupAsync(ctx context.Context, id string) <-chan error {
	return m.background("backup", id, func() error {
		_, err := m.CreateBackup(ctx, id)
		return err
	})
}

func (m *Manager) RestoreBackupAsync(ctx context.Context, id, backupID string) <-chan error {
	return m.background("restore", id, func() error {
		return m.RestoreBackup(ctx, id, backupID)
	})
}

func (m *Manager) DeleteInstallationAsync(ctx context.Context, id string, deleteData bool) <-chan error {
	return m.background("delete", id, func() error {
		return m.DeleteInstallation(ctx, id, deleteData)
	})
}

// RefreshModsAsync rescans the installation's mods so the stored count
// follows the directory.
func (m *Manager) RefreshModsAsync(ctx context.Context, id string) <-chan error {
	return m.background("scan", id, func() error {
		_, err := m.ListMods(ctx, id)
		return err
	})
}
