package state

import (
	"path/filepath"
	"time"
)

const (
	MinNameLength           = 5
	MaxNameLength           = 50
	MaxBackupsLimit         = 10
	MaxCompressionLevel     = 9
	DefaultBackupsLimit     = 3
	DefaultCompressionLevel = 6

	// NeverPlayed is the LastTimePlayed value of an installation that was never launched.
	NeverPlayed int64 = -1
)

// Installation is an isolated instance of the game with its own directory,
// game version, mods and backups.
type Installation struct {
	ID               string
	Name             string
	Path             string
	Version          string
	StartParams      string
	BackupsLimit     int
	BackupsAuto      bool
	CompressionLevel int
	MesaGlThread     bool
	Backups          []Backup
	LastTimePlayed   int64 // unix milliseconds, NeverPlayed if never launched
	TotalTimePlayed  time.Duration
	ModsCount        int
}

// Backup is a compressed snapshot of an installation directory.
type Backup struct {
	ID             string
	InstallationID string
	CreatedAt      time.Time
	SizeBytes      int64
	ArchivePath    string
}

// GameVersion is an installed game build.
type GameVersion struct {
	Version string
	Path    string
}

// Settings are the global folders shared by every installation.
type Settings struct {
	DefaultInstallationsFolder string
	BackupsFolder              string
	VersionsFolder             string
}

// Config is the full persisted snapshot.
type Config struct {
	Settings      Settings
	Installations []Installation
	GameVersions  []GameVersion
}

// Clone returns a deep copy so callers can never alias the store's slices.
func (c Config) Clone() Config {
	out := Config{Settings: c.Settings}
	if c.Installations != nil {
		out.Installations = make([]Installation, len(c.Installations))
		for i, inst := range c.Installations {
			out.Installations[i] = inst.Clone()
		}
	}
	if c.GameVersions != nil {
		out.GameVersions = append([]GameVersion(nil), c.GameVersions...)
	}
	return out
}

func (i Installation) Clone() Installation {
	if i.Backups != nil {
		i.Backups = append([]Backup(nil), i.Backups...)
	}
	return i
}

// FindInstallation returns the installation with the given id.
func (c Config) FindInstallation(id string) (Installation, bool) {
	if idx := c.installationIndex(id); idx >= 0 {
		return c.Installations[idx].Clone(), true
	}
	return Installation{}, false
}

// FindGameVersion returns the game version with the given version string.
func (c Config) FindGameVersion(version string) (GameVersion, bool) {
	for _, gv := range c.GameVersions {
		if gv.Version == version {
			return gv, true
		}
	}
	return GameVersion{}, false
}

// FindBackup returns the backup with the given id on the installation.
func (i Installation) FindBackup(id string) (Backup, bool) {
	for _, b := range i.Backups {
		if b.ID == id {
			return b, true
		}
	}
	return Backup{}, false
}

func (c Config) installationIndex(id string) int {
	for i := range c.Installations {
		if c.Installations[i].ID == id {
			return i
		}
	}
	return -1
}

// PathInUse reports whether path is already taken by an installation other
// than exceptID, by a game version, or by the backups folder.
func PathInUse(c Config, path, exceptID string) bool {
	path = cleanPath(path)
	if path == "" {
		return false
	}
	if cleanPath(c.Settings.BackupsFolder) == path {
		return true
	}
	for _, inst := range c.Installations {
		if inst.ID != exceptID && cleanPath(inst.Path) == path {
			return true
		}
	}
	for _, gv := range c.GameVersions {
		if cleanPath(gv.Path) == path {
			return true
		}
	}
	return false
}

func cleanPath(p string) string {
	if p == "" {
		return ""
	}
	return filepath.Clean(p)
}
