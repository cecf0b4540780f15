package state

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrUnknownInstallation = errors.New("unknown installation")
	ErrUnknownBackup       = errors.New("unknown backup")
	ErrUnknownGameVersion  = errors.New("unknown game version")
	ErrDuplicate           = errors.New("duplicate entry")
	ErrPathInUse           = errors.New("path already in use")
)

// Action is one entry of the closed set of state mutations.
type Action interface {
	Kind() string
	apply(Config) (Config, error)
}

type AddInstallation struct {
	Installation Installation
}

type UpdateInstallation struct {
	Installation Installation
}

type RemoveInstallation struct {
	ID string
}

type AddBackup struct {
	InstallationID string
	Backup         Backup
}

type RemoveBackup struct {
	InstallationID string
	BackupID       string
}

type AddGameVersion struct {
	GameVersion GameVersion
}

type RemoveGameVersion struct {
	Version string
}

type SetSettings struct {
	Settings Settings
}

type SetModsCount struct {
	InstallationID string
	Count          int
}

// RecordPlaySession stamps the end of a play session and accumulates its length.
type RecordPlaySession struct {
	InstallationID string
	EndedAt        time.Time
	Duration       time.Duration
}

func (AddInstallation) Kind() string    { return "ADD_INSTALLATION" }
func (UpdateInstallation) Kind() string { return "UPDATE_INSTALLATION" }
func (RemoveInstallation) Kind() string { return "REMOVE_INSTALLATION" }
func (AddBackup) Kind() string          { return "ADD_BACKUP" }
func (RemoveBackup) Kind() string       { return "REMOVE_BACKUP" }
func (AddGameVersion) Kind() string     { return "ADD_GAME_VERSION" }
func (RemoveGameVersion) Kind() string  { return "REMOVE_GAME_VERSION" }
func (SetSettings) Kind() string        { return "SET_SETTINGS" }
func (SetModsCount) Kind() string       { return "SET_MODS_COUNT" }
func (RecordPlaySession) Kind() string  { return "RECORD_PLAY_SESSION" }

func (a AddInstallation) apply(c Config) (Config, error) {
	inst := a.Installation.Clone()
	if inst.ID == "" {
		return c, fmt.Errorf("installation id is required")
	}
	if c.installationIndex(inst.ID) >= 0 {
		return c, fmt.Errorf("%w: installation %s", ErrDuplicate, inst.ID)
	}
	if PathInUse(c, inst.Path, "") {
		return c, fmt.Errorf("%w: %s", ErrPathInUse, inst.Path)
	}
	c.Installations = append(c.Installations, inst)
	return c, nil
}

// apply replaces the editable metadata only. Backups, play time and mod count
// have their own actions so a concurrent backup is never clobbered by an edit.
func (a UpdateInstallation) apply(c Config) (Config, error) {
	idx := c.installationIndex(a.Installation.ID)
	if idx < 0 {
		return c, fmt.Errorf("%w: %s", ErrUnknownInstallation, a.Installation.ID)
	}
	if PathInUse(c, a.Installation.Path, a.Installation.ID) {
		return c, fmt.Errorf("%w: %s", ErrPathInUse, a.Installation.Path)
	}
	cur := &c.Installations[idx]
	cur.Name = a.Installation.Name
	cur.Path = a.Installation.Path
	cur.Version = a.Installation.Version
	cur.StartParams = a.Installation.StartParams
	cur.BackupsLimit = a.Installation.BackupsLimit
	cur.BackupsAuto = a.Installation.BackupsAuto
	cur.CompressionLevel = a.Installation.CompressionLevel
	cur.MesaGlThread = a.Installation.MesaGlThread
	return c, nil
}

func (a RemoveInstallation) apply(c Config) (Config, error) {
	idx := c.installationIndex(a.ID)
	if idx < 0 {
		return c, fmt.Errorf("%w: %s", ErrUnknownInstallation, a.ID)
	}
	c.Installations = append(c.Installations[:idx], c.Installations[idx+1:]...)
	return c, nil
}

func (a AddBackup) apply(c Config) (Config, error) {
	idx := c.installationIndex(a.InstallationID)
	if idx < 0 {
		return c, fmt.Errorf("%w: %s", ErrUnknownInstallation, a.InstallationID)
	}
	inst := &c.Installations[idx]
	if _, ok := inst.FindBackup(a.Backup.ID); ok {
		return c, fmt.Errorf("%w: backup %s", ErrDuplicate, a.Backup.ID)
	}
	b := a.Backup
	b.InstallationID = inst.ID
	inst.Backups = append(inst.Backups, b)
	return c, nil
}

func (a RemoveBackup) apply(c Config) (Config, error) {
	idx := c.installationIndex(a.InstallationID)
	if idx < 0 {
		return c, fmt.Errorf("%w: %s", ErrUnknownInstallation, a.InstallationID)
	}
	inst := &c.Installations[idx]
	for i, b := range inst.Backups {
		if b.ID == a.BackupID {
			inst.Backups = append(inst.Backups[:i], inst.Backups[i+1:]...)
			return c, nil
		}
	}
	return c, fmt.Errorf("%w: %s", ErrUnknownBackup, a.BackupID)
}

func (a AddGameVersion) apply(c Config) (Config, error) {
	gv := a.GameVersion
	if gv.Version == "" {
		return c, fmt.Errorf("game version is required")
	}
	if _, ok := c.FindGameVersion(gv.Version); ok {
		return c, fmt.Errorf("%w: game version %s", ErrDuplicate, gv.Version)
	}
	if PathInUse(c, gv.Path, "") {
		return c, fmt.Errorf("%w: %s", ErrPathInUse, gv.Path)
	}
	c.GameVersions = append(c.GameVersions, gv)
	return c, nil
}

func (a RemoveGameVersion) apply(c Config) (Config, error) {
	for i, gv := range c.GameVersions {
		if gv.Version == a.Version {
			c.GameVersions = append(c.GameVersions[:i], c.GameVersions[i+1:]...)
			return c, nil
		}
	}
	return c, fmt.Errorf("%w: %s", ErrUnknownGameVersion, a.Version)
}

func (a SetSettings) apply(c Config) (Config, error) {
	c.Settings = a.Settings
	return c, nil
}

func (a SetModsCount) apply(c Config) (Config, error) {
	idx := c.installationIndex(a.InstallationID)
	if idx < 0 {
		return c, fmt.Errorf("%w: %s", ErrUnknownInstallation, a.InstallationID)
	}
	c.Installations[idx].ModsCount = a.Count
	return c, nil
}

func (a RecordPlaySession) apply(c Config) (Config, error) {
	idx := c.installationIndex(a.InstallationID)
	if idx < 0 {
		return c, fmt.Errorf("%w: %s", ErrUnknownInstallation, a.InstallationID)
	}
	inst := &c.Installations[idx]
	inst.LastTimePlayed = a.EndedAt.UnixMilli()
	if a.Duration > 0 {
		inst.TotalTimePlayed += a.Duration
	}
	return c, nil
}

// Reduce applies a to a copy of c. c itself is never modified.
func Reduce(c Config, a Action) (Config, error) {
	if a == nil {
		return c, fmt.Errorf("nil action")
	}
	next, err := a.apply(c.Clone())
	if err != nil {
		return c, fmt.Errorf("%s: %w", a.Kind(), err)
	}
	return next, nil
}
