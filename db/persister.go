package db

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"vslmanager/state"
)

const (
	keyDefaultInstallationsFolder = "default_installations_folder"
	keyBackupsFolder              = "backups_folder"
	keyVersionsFolder             = "versions_folder"
)

// Persister stores state snapshots in SQLite. Every Save rewrites the whole
// document inside one transaction, so a reader never sees half an action.
type Persister struct {
	db *gorm.DB

	// Defaults fill settings that were never saved (first run).
	Defaults state.Settings
}

func NewPersister(db *gorm.DB, defaults state.Settings) *Persister {
	return &Persister{db: db, Defaults: defaults}
}

// Load rebuilds the snapshot from the database.
func (p *Persister) Load(ctx context.Context) (state.Config, error) {
	var cfg state.Config
	tx := p.db.WithContext(ctx)

	var settings []SettingRecord
	if err := tx.Find(&settings).Error; err != nil {
		return cfg, fmt.Errorf("failed to load settings: %w", err)
	}
	cfg.Settings = p.Defaults
	for _, s := range settings {
		switch s.Key {
		case keyDefaultInstallationsFolder:
			cfg.Settings.DefaultInstallationsFolder = s.Value
		case keyBackupsFolder:
			cfg.Settings.BackupsFolder = s.Value
		case keyVersionsFolder:
			cfg.Settings.VersionsFolder = s.Value
		}
	}

	var versions []GameVersionRecord
	if err := tx.Order("position").Find(&versions).Error; err != nil {
		return cfg, fmt.Errorf("failed to load game versions: %w", err)
	}
	for _, v := range versions {
		cfg.GameVersions = append(cfg.GameVersions, state.GameVersion{Version: v.Version, Path: v.Path})
	}

	var installs []InstallationRecord
	err := tx.Preload("Backups", func(db *gorm.DB) *gorm.DB {
		return db.Order("position")
	}).Order("position").Find(&installs).Error
	if err != nil {
		return cfg, fmt.Errorf("failed to load installations: %w", err)
	}
	for _, r := range installs {
		cfg.Installations = append(cfg.Installations, fromRecord(r))
	}
	return cfg, nil
}

// Save replaces every row with the contents of cfg.
func (p *Persister) Save(ctx context.Context, cfg state.Config) error {
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []any{&BackupRecord{}, &InstallationRecord{}, &GameVersionRecord{}, &SettingRecord{}} {
			if err := tx.Where("1 = 1").Delete(model).Error; err != nil {
				return fmt.Errorf("failed to clear table: %w", err)
			}
		}

		settings := []SettingRecord{
			{Key: keyDefaultInstallationsFolder, Value: cfg.Settings.DefaultInstallationsFolder},
			{Key: keyBackupsFolder, Value: cfg.Settings.BackupsFolder},
			{Key: keyVersionsFolder, Value: cfg.Settings.VersionsFolder},
		}
		if err := tx.Create(&settings).Error; err != nil {
			return fmt.Errorf("failed to save settings: %w", err)
		}

		if len(cfg.GameVersions) > 0 {
			versions := make([]GameVersionRecord, len(cfg.GameVersions))
			for i, gv := range cfg.GameVersions {
				versions[i] = GameVersionRecord{Version: gv.Version, Path: gv.Path, Position: i}
			}
			if err := tx.Create(&versions).Error; err != nil {
				return fmt.Errorf("failed to save game versions: %w", err)
			}
		}

		var backups []BackupRecord
		for i, inst := range cfg.Installations {
			rec := toRecord(inst, i)
			if err := tx.Omit("Backups").Create(&rec).Error; err != nil {
				return fmt.Errorf("failed to save installation %s: %w", inst.ID, err)
			}
			for j, b := range inst.Backups {
				backups = append(backups, BackupRecord{
					ID:             b.ID,
					InstallationID: inst.ID,
					Position:       j,
					CreatedAt:      b.CreatedAt,
					SizeBytes:      b.SizeBytes,
					ArchivePath:    b.ArchivePath,
				})
			}
		}
		if len(backups) > 0 {
			if err := tx.Create(&backups).Error; err != nil {
				return fmt.Errorf("failed to save backups: %w", err)
			}
		}
		return nil
	})
}

func toRecord(inst state.Installation, position int) InstallationRecord {
	return InstallationRecord{
		ID:               inst.ID,
		Position:         position,
		Name:             inst.Name,
		Path:             inst.Path,
		Version:          inst.Version,
		StartParams:      inst.StartParams,
		BackupsLimit:     inst.BackupsLimit,
		BackupsAuto:      inst.BackupsAuto,
		CompressionLevel: inst.CompressionLevel,
		MesaGlThread:     inst.MesaGlThread,
		LastTimePlayed:   inst.LastTimePlayed,
		TotalTimePlayed:  int64(inst.TotalTimePlayed),
		ModsCount:        inst.ModsCount,
	}
}

func fromRecord(r InstallationRecord) state.Installation {
	inst := state.Installation{
		ID:               r.ID,
		Name:             r.Name,
		Path:             r.Path,
		Version:          r.Version,
		StartParams:      r.StartParams,
		BackupsLimit:     r.BackupsLimit,
		BackupsAuto:      r.BackupsAuto,
		CompressionLevel: r.CompressionLevel,
		MesaGlThread:     r.MesaGlThread,
		LastTimePlayed:   r.LastTimePlayed,
		TotalTimePlayed:  time.Duration(r.TotalTimePlayed),
		ModsCount:        r.ModsCount,
	}
	for _, b := range r.Backups {
		inst.Backups = append(inst.Backups, state.Backup{
			ID:             b.ID,
			InstallationID: b.InstallationID,
			CreatedAt:      b.CreatedAt,
			SizeBytes:      b.SizeBytes,
			ArchivePath:    b.ArchivePath,
		})
	}
	return inst
}
