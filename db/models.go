package db

import (
	"time"
)

// InstallationRecord is one persisted installation. Position keeps the
// user's ordering stable across rewrites.
type InstallationRecord struct {
	ID               string `gorm:"primaryKey"`
	Position         int
	Name             string
	Path             string `gorm:"uniqueIndex"`
	Version          string
	StartParams      string
	BackupsLimit     int
	BackupsAuto      bool
	CompressionLevel int
	MesaGlThread     bool
	LastTimePlayed   int64
	TotalTimePlayed  int64 // nanoseconds
	ModsCount        int
	Backups          []BackupRecord `gorm:"foreignKey:InstallationID;constraint:OnDelete:CASCADE"`
}

// BackupRecord references one archive under the backups folder.
type BackupRecord struct {
	ID             string `gorm:"primaryKey"`
	InstallationID string `gorm:"index"`
	Position       int
	CreatedAt      time.Time `gorm:"autoCreateTime:false"`
	SizeBytes      int64
	ArchivePath    string
}

type GameVersionRecord struct {
	Version  string `gorm:"primaryKey"`
	Position int
	Path     string
}

// SettingRecord is a key/value row for the global settings.
type SettingRecord struct {
	Key   string `gorm:"primaryKey"`
	Value string
}

func (InstallationRecord) TableName() string { return "installations" }
func (BackupRecord) TableName() string       { return "backups" }
func (GameVersionRecord) TableName() string  { return "game_versions" }
func (SettingRecord) TableName() string      { return "settings" }
