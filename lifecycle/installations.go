package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"vslmanager/backup"
	"vslmanager/guard"
	"vslmanager/mods"
	"vslmanager/paths"
	"vslmanager/state"
	"vslmanager/ui"
)

// reservedStartParam is passed by the launcher itself to isolate
// installations from each other.
const reservedStartParam = "--dataPath"

// InstallationInput is what a user supplies when creating or editing an
// installation. An empty Path is derived from the name under the default
// installations folder; a relative Path is resolved against it.
type InstallationInput struct {
	Name             string
	Path             string
	Version          string
	StartParams      string
	BackupsLimit     int
	BackupsAuto      bool
	CompressionLevel int
	MesaGlThread     bool
}

// DefaultInput returns an input carrying the default backup settings.
func DefaultInput() InstallationInput {
	return InstallationInput{
		BackupsLimit:     state.DefaultBackupsLimit,
		CompressionLevel: state.DefaultCompressionLevel,
	}
}

// InputFrom returns the editable fields of inst.
func InputFrom(inst state.Installation) InstallationInput {
	return InstallationInput{
		Name:             inst.Name,
		Path:             inst.Path,
		Version:          inst.Version,
		StartParams:      inst.StartParams,
		BackupsLimit:     inst.BackupsLimit,
		BackupsAuto:      inst.BackupsAuto,
		CompressionLevel: inst.CompressionLevel,
		MesaGlThread:     inst.MesaGlThread,
	}
}

// validate checks in against cfg and returns it with Name trimmed and Path
// made absolute. exceptID is the installation being edited, if any.
func validate(cfg state.Config, in InstallationInput, exceptID string) (InstallationInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	if n := utf8.RuneCountInString(in.Name); n < state.MinNameLength || n > state.MaxNameLength {
		return in, invalid("name", "must be between %d and %d characters", state.MinNameLength, state.MaxNameLength)
	}

	if in.Version == "" {
		return in, invalid("version", "is required")
	}
	if _, ok := cfg.FindGameVersion(in.Version); !ok {
		return in, invalid("version", "game version %s is not installed", in.Version)
	}

	if strings.Contains(strings.ToLower(in.StartParams), strings.ToLower(reservedStartParam)) {
		return in, invalid("startParams", "%s is managed by the launcher", reservedStartParam)
	}
	if in.BackupsLimit < 0 || in.BackupsLimit > state.MaxBackupsLimit {
		return in, invalid("backupsLimit", "must be between 0 and %d", state.MaxBackupsLimit)
	}
	if in.CompressionLevel < 0 || in.CompressionLevel > state.MaxCompressionLevel {
		return in, invalid("compressionLevel", "must be between 0 and %d", state.MaxCompressionLevel)
	}

	path := strings.TrimSpace(in.Path)
	if path == "" {
		path = paths.FormatFolderName(in.Name)
	}
	if !filepath.IsAbs(path) {
		base := cfg.Settings.DefaultInstallationsFolder
		if base == "" {
			return in, invalid("path", "must be absolute when no default installations folder is set")
		}
		path = filepath.Join(base, path)
	}
	in.Path = filepath.Clean(path)

	if state.PathInUse(cfg, in.Path, exceptID) {
		return in, invalid("path", "%s is already used by another installation, a game version or the backups folder", in.Path)
	}
	if b := cfg.Settings.BackupsFolder; b != "" && (paths.IsWithin(b, in.Path) || paths.IsWithin(in.Path, b)) {
		return in, invalid("path", "%s overlaps the backups folder", in.Path)
	}
	return in, nil
}

// dispatchError maps a reducer rejection that slipped past validation
// (a concurrent create, typically) onto the public error types.
func dispatchError(err error) error {
	switch {
	case errors.Is(err, state.ErrPathInUse), errors.Is(err, state.ErrDuplicate):
		return &ValidationError{Field: "path", Reason: err.Error()}
	case errors.Is(err, state.ErrUnknownInstallation), errors.Is(err, state.ErrUnknownBackup), errors.Is(err, state.ErrUnknownGameVersion):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return fmt.Errorf("failed to save state: %w", err)
}

// CreateInstallation validates in, creates the installation folder and
// records the installation.
func (m *Manager) CreateInstallation(ctx context.Context, in InstallationInput) (state.Installation, error) {
	in, err := validate(m.Store.Snapshot(), in, "")
	if err != nil {
		return state.Installation{}, err
	}

	created := !m.Paths.Exists(in.Path)
	if err := m.Paths.EnsureDir(in.Path); err != nil {
		return state.Installation{}, m.fail("Failed to create installation folder", ioFailure("create", in.Path, err))
	}

	inst := state.Installation{
		ID:               m.NewID(),
		Name:             in.Name,
		Path:             in.Path,
		Version:          in.Version,
		StartParams:      in.StartParams,
		BackupsLimit:     in.BackupsLimit,
		BackupsAuto:      in.BackupsAuto,
		CompressionLevel: in.CompressionLevel,
		MesaGlThread:     in.MesaGlThread,
		LastTimePlayed:   state.NeverPlayed,
		ModsCount:        mods.CountMods(in.Path),
	}
	if _, err := m.Store.Dispatch(ctx, state.AddInstallation{Installation: inst}); err != nil {
		if created {
			m.removeIfEmpty(in.Path)
		}
		return state.Installation{}, dispatchError(err)
	}

	m.Log.Infow("Installation created", zap.String("installation", inst.ID), zap.String("name", inst.Name), zap.String("path", inst.Path))
	m.notify(fmt.Sprintf("Installation %s created", inst.Name), ui.SeveritySuccess)
	return inst, nil
}

func (m *Manager) removeIfEmpty(path string) {
	if empty, err := m.Paths.IsEmpty(path); err == nil && empty {
		m.Paths.Delete(path)
	}
}

// EditInstallation replaces the installation's metadata. Moving it to a
// new path moves its folder and is refused while the installation is busy.
func (m *Manager) EditInstallation(ctx context.Context, id string, in InstallationInput) (state.Installation, error) {
	cur, err := m.installation(id)
	if err != nil {
		return state.Installation{}, err
	}
	in, err = validate(m.Store.Snapshot(), in, id)
	if err != nil {
		return state.Installation{}, err
	}

	moved := false
	undoMove := func() {}
	if filepath.Clean(cur.Path) != in.Path {
		release, err := m.admit(id, guard.ReasonDeleting, "Moving installation")
		if err != nil {
			return state.Installation{}, err
		}
		defer release()

		targetExisted := m.Paths.Exists(in.Path)
		if targetExisted {
			empty, err := m.Paths.IsEmpty(in.Path)
			if err != nil {
				return state.Installation{}, ioFailure("read", in.Path, err)
			}
			if !empty {
				return state.Installation{}, invalid("path", "%s already exists and is not empty", in.Path)
			}
		}
		// An existing empty target comes back if the edit fails.
		restoreTarget := func() {
			if !targetExisted {
				return
			}
			if err := m.Paths.EnsureDir(in.Path); err != nil {
				m.Log.Errorw("Failed to recreate target folder", zap.String("path", in.Path), zap.Error(err))
			}
		}
		if m.Paths.Exists(cur.Path) {
			if targetExisted && !m.Paths.Delete(in.Path) {
				return state.Installation{}, m.fail("Failed to move installation", ioFailure("move", in.Path, errors.New("could not replace empty folder")))
			}
			if err := m.Paths.Move(cur.Path, in.Path); err != nil {
				restoreTarget()
				return state.Installation{}, m.fail("Failed to move installation", ioFailure("move", cur.Path, err))
			}
			moved = true
			undoMove = func() {
				if rerr := m.Paths.Move(in.Path, cur.Path); rerr != nil {
					m.Log.Errorw("Failed to move installation back", zap.String("installation", id), zap.Error(rerr))
					return
				}
				restoreTarget()
			}
		} else if err := m.Paths.EnsureDir(in.Path); err != nil {
			return state.Installation{}, ioFailure("create", in.Path, err)
		}
	}

	next := cur
	next.Name = in.Name
	next.Path = in.Path
	next.Version = in.Version
	next.StartParams = in.StartParams
	next.BackupsLimit = in.BackupsLimit
	next.BackupsAuto = in.BackupsAuto
	next.CompressionLevel = in.CompressionLevel
	next.MesaGlThread = in.MesaGlThread

	cfg, err := m.Store.Dispatch(ctx, state.UpdateInstallation{Installation: next})
	if err != nil {
		undoMove()
		return state.Installation{}, dispatchError(err)
	}

	updated, _ := cfg.FindInstallation(id)
	m.Log.Infow("Installation updated", zap.String("installation", id), zap.Bool("moved", moved))
	m.notify(fmt.Sprintf("Installation %s updated", updated.Name), ui.SeveritySuccess)
	return updated, nil
}

// DeleteInstallation removes the installation record together with its
// backups. With deleteData its folder goes too.
func (m *Manager) DeleteInstallation(ctx context.Context, id string, deleteData bool) error {
	inst, err := m.installation(id)
	if err != nil {
		return err
	}
	release, err := m.admit(id, guard.ReasonDeleting, "Deleting installation")
	if err != nil {
		return err
	}
	defer release()

	type staged struct{ commit, rollback func() error }
	var archives []staged
	rollbackAll := func() {
		for _, s := range archives {
			if err := s.rollback(); err != nil {
				m.Log.Errorw("Failed to restore staged backup", zap.String("installation", id), zap.Error(err))
			}
		}
	}
	for _, b := range inst.Backups {
		commit, rollback, err := m.Backups.Stage(b)
		if err != nil {
			rollbackAll()
			return m.fail("Failed to delete installation backups", ioFailure("delete", b.ArchivePath, err))
		}
		archives = append(archives, staged{commit, rollback})
	}

	aside := ""
	if deleteData && m.Paths.Exists(inst.Path) {
		aside = m.asidePath(inst.Path)
		if err := m.Paths.Move(inst.Path, aside); err != nil {
			rollbackAll()
			return m.fail("Failed to delete installation folder", ioFailure("delete", inst.Path, err))
		}
	}

	if _, err := m.Store.Dispatch(ctx, state.RemoveInstallation{ID: id}); err != nil {
		rollbackAll()
		if aside != "" {
			if rerr := m.Paths.Move(aside, inst.Path); rerr != nil {
				m.Log.Errorw("Failed to restore installation folder", zap.String("installation", id), zap.String("path", aside), zap.Error(rerr))
			}
		}
		return dispatchError(err)
	}

	for _, s := range archives {
		if err := s.commit(); err != nil {
			m.Log.Warnw("Failed to remove backup archive", zap.String("installation", id), zap.Error(err))
		}
	}
	if aside != "" && !m.Paths.Delete(aside) {
		m.Log.Warnw("Failed to remove installation folder", zap.String("installation", id), zap.String("path", aside))
	}
	if root := m.Store.Snapshot().Settings.BackupsFolder; root != "" {
		m.removeIfEmpty(backup.InstallationFolder(root, id))
	}

	m.Log.Infow("Installation deleted", zap.String("installation", id), zap.Bool("data", deleteData))
	m.notify(fmt.Sprintf("Installation %s deleted", inst.Name), ui.SeveritySuccess)
	return nil
}

// asidePath names an unused ".deleting" sibling of path.
func (m *Manager) asidePath(path string) string {
	aside := path + ".deleting"
	for i := 2; m.Paths.Exists(aside); i++ {
		aside = fmt.Sprintf("%s.deleting-%d", path, i)
	}
	return aside
}

// AddGameVersion registers an installed game version.
func (m *Manager) AddGameVersion(ctx context.Context, gv state.GameVersion) error {
	gv.Version = strings.TrimSpace(gv.Version)
	if state.CanonicalVersion(gv.Version) == "" {
		return invalid("version", "%q is not a version number", gv.Version)
	}
	if gv.Path == "" || !filepath.IsAbs(gv.Path) {
		return invalid("path", "must be an absolute directory")
	}
	gv.Path = filepath.Clean(gv.Path)

	cfg := m.Store.Snapshot()
	if _, ok := cfg.FindGameVersion(gv.Version); ok {
		return invalid("version", "%s is already installed", gv.Version)
	}
	if state.PathInUse(cfg, gv.Path, "") {
		return invalid("path", "%s is already in use", gv.Path)
	}
	if _, err := m.Store.Dispatch(ctx, state.AddGameVersion{GameVersion: gv}); err != nil {
		return dispatchError(err)
	}
	m.Log.Infow("Game version added", zap.String("version", gv.Version), zap.String("path", gv.Path))
	return nil
}

// RemoveGameVersion forgets a game version that no installation uses.
// With deleteData its folder is removed as well.
func (m *Manager) RemoveGameVersion(ctx context.Context, version string, deleteData bool) error {
	cfg := m.Store.Snapshot()
	gv, ok := cfg.FindGameVersion(version)
	if !ok {
		return notFound("game version", version)
	}
	for _, inst := range cfg.Installations {
		if inst.Version == version {
			return invalid("version", "%s is used by installation %s", version, inst.Name)
		}
	}
	if deleteData && !m.Paths.Delete(gv.Path) {
		return m.fail("Failed to delete game version", ioFailure("delete", gv.Path, errors.New("could not remove directory")))
	}
	if _, err := m.Store.Dispatch(ctx, state.RemoveGameVersion{Version: version}); err != nil {
		return dispatchError(err)
	}
	m.Log.Infow("Game version removed", zap.String("version", version), zap.Bool("data", deleteData))
	return nil
}

// SetSettings replaces the global folders. The backups folder may not be
// an installation or game version path.
func (m *Manager) SetSettings(ctx context.Context, s state.Settings) error {
	cfg := m.Store.Snapshot()
	if s.BackupsFolder == "" || !filepath.IsAbs(s.BackupsFolder) {
		return invalid("backupsFolder", "must be an absolute directory")
	}
	s.BackupsFolder = filepath.Clean(s.BackupsFolder)
	for _, inst := range cfg.Installations {
		if paths.IsWithin(inst.Path, s.BackupsFolder) || paths.IsWithin(s.BackupsFolder, inst.Path) {
			return invalid("backupsFolder", "overlaps installation %s", inst.Name)
		}
	}
	for _, gv := range cfg.GameVersions {
		if filepath.Clean(gv.Path) == s.BackupsFolder {
			return invalid("backupsFolder", "is the folder of game version %s", gv.Version)
		}
	}
	for _, dir := range []string{s.BackupsFolder, s.DefaultInstallationsFolder, s.VersionsFolder} {
		if dir == "" {
			continue
		}
		if err := m.Paths.EnsureDir(dir); err != nil {
			return ioFailure("create", dir, err)
		}
	}
	if _, err := m.Store.Dispatch(ctx, state.SetSettings{Settings: s}); err != nil {
		return dispatchError(err)
	}
	m.Log.Infow("Settings updated", zap.String("backups", s.BackupsFolder))
	return nil
}
