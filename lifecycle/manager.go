// Package lifecycle is the public surface of the engine. Every operation
// validates against the committed snapshot, asks the guard, does its work
// and only then dispatches to the store. A failed operation leaves the
// store as it was and returns a ValidationError, ConflictError, IOFailure
// or ErrNotFound.
package lifecycle

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"vslmanager/backup"
	"vslmanager/guard"
	"vslmanager/logger"
	"vslmanager/moddb"
	"vslmanager/mods"
	"vslmanager/paths"
	"vslmanager/state"
	"vslmanager/ui"
)

// ModSource is the catalog plus the ability to fetch release files.
type ModSource interface {
	moddb.Catalog
	DownloadModFile(ctx context.Context, destinationPath, downloadURL string) error
}

type Manager struct {
	Store    *state.Store
	Guard    *guard.Guard
	Paths    paths.Resolver
	Backups  *backup.Engine
	Scanner  *mods.Scanner
	Catalog  ModSource // nil disables mod installs and updates
	Notifier ui.Notifier
	Log      *zap.SugaredLogger

	Now   func() time.Time
	NewID func() string
}

// New wires a Manager with OS paths, a fresh guard and no catalog.
func New(store *state.Store, log *zap.SugaredLogger) *Manager {
	log = logger.OrNop(log)
	return &Manager{
		Store:    store,
		Guard:    guard.New(),
		Paths:    paths.NewOS(),
		Backups:  backup.New(log.Named("backup")),
		Scanner:  &mods.Scanner{Log: log.Named("mods")},
		Notifier: ui.NopNotifier{},
		Log:      log,
		Now:      time.Now,
		NewID:    uuid.NewString,
	}
}

func (m *Manager) installation(id string) (state.Installation, error) {
	inst, ok := m.Store.Installation(id)
	if !ok {
		return state.Installation{}, notFound("installation", id)
	}
	return inst, nil
}

// admit reserves reasonID on an idle installation. The returned func
// releases it.
func (m *Manager) admit(id, reasonID, description string) (func(), error) {
	if held, ok := m.Guard.TryAcquire(id, reasonID, description); !ok {
		m.Log.Infow("Operation rejected, installation busy", zap.String("installation", id), zap.String("reason", reasonID), zap.Any("held", held))
		return nil, &ConflictError{InstallationID: id, Reasons: held}
	}
	return func() { m.Guard.Release(id, reasonID) }, nil
}

func (m *Manager) notify(msg string, severity ui.Severity) {
	if m.Notifier != nil {
		m.Notifier.Notify(msg, severity)
	}
}

// fail reports err to the user and returns it unchanged.
func (m *Manager) fail(msg string, err error) error {
	m.Log.Errorw(msg, zap.Error(err))
	m.notify(msg+": "+err.Error(), ui.SeverityError)
	return err
}

// refreshModsCount stores the number of packages on disk. The count is a
// cache of the directory so a failed dispatch is only logged.
func (m *Manager) refreshModsCount(ctx context.Context, inst state.Installation, count int) {
	if count == inst.ModsCount {
		return
	}
	if _, err := m.Store.Dispatch(ctx, state.SetModsCount{InstallationID: inst.ID, Count: count}); err != nil {
		m.Log.Warnw("Failed to store mods count", zap.String("installation", inst.ID), zap.Error(err))
	}
}

// PreventClose registers work that must finish before the application
// exits. AllowClose drops it again.
func (m *Manager) PreventClose(id, description string) {
	m.Guard.Acquire(guard.AppScope, id, description)
}

func (m *Manager) AllowClose(id string) {
	m.Guard.Release(guard.AppScope, id)
}

// CanClose reports whether no installation is busy and nothing asked to
// keep the application open.
func (m *Manager) CanClose() bool {
	return !m.Guard.AnyBusy()
}

// CloseBlockers lists everything currently holding the application open,
// keyed by installation id or guard.AppScope.
func (m *Manager) CloseBlockers() map[string][]guard.Reason {
	return m.Guard.All()
}
