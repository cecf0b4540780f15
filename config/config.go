package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

const (
	defaultModDBURL        = "https://mods.vintagestory.at"
	defaultUserAgent       = "vslmanager/dev"
	defaultCatalogTimeout  = 10 * time.Second
	defaultScanConcurrency = 8
	appDirName             = "vslmanager"
)

// Config holds all configuration for the application.
// Values are loaded by Viper from a config file and/or environment variables.
type Config struct {
	DataDir          string        `mapstructure:"VSL_DATA_DIR"`
	InstallationsDir string        `mapstructure:"VSL_INSTALLATIONS_DIR"`
	BackupsDir       string        `mapstructure:"VSL_BACKUPS_DIR"`
	VersionsDir      string        `mapstructure:"VSL_VERSIONS_DIR"`
	ModDBURL         string        `mapstructure:"VSL_MODDB_URL"`
	UserAgent        string        `mapstructure:"VSL_USERAGENT"`
	CatalogTimeout   time.Duration `mapstructure:"VSL_CATALOG_TIMEOUT"`
	ScanConcurrency  int           `mapstructure:"VSL_SCAN_CONCURRENCY"`
	LogFile          string        `mapstructure:"VSL_LOG_FILE"`
	Debug            bool          `mapstructure:"VSL_DEBUG"`
	DatabasePath     string        `mapstructure:"-"` // derived
	CacheDir         string        `mapstructure:"-"` // derived
}

var envKeys = []string{
	"VSL_DATA_DIR",
	"VSL_INSTALLATIONS_DIR",
	"VSL_BACKUPS_DIR",
	"VSL_VERSIONS_DIR",
	"VSL_MODDB_URL",
	"VSL_USERAGENT",
	"VSL_CATALOG_TIMEOUT",
	"VSL_SCAN_CONCURRENCY",
	"VSL_LOG_FILE",
	"VSL_DEBUG",
}

// LoadConfig reads configuration from a .env file in path (optional) and
// environment variables, applies defaults and creates the data folders.
func LoadConfig(path string) (config Config, err error) {
	if path != "" {
		viper.AddConfigPath(path)
	}
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	vipErr := viper.ReadInConfig()
	if _, ok := vipErr.(viper.ConfigFileNotFoundError); ok {
		slog.Debug("Config file (.env) not found, relying on environment variables.")
	} else if vipErr != nil {
		return Config{}, fmt.Errorf("fatal error config file: %w", vipErr)
	}

	viper.AutomaticEnv()
	for _, key := range envKeys {
		if err := viper.BindEnv(key); err != nil {
			slog.Warn("Unable to bind env var", "key", key, "error", err)
		}
	}

	if err := viper.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("unable to decode into struct, %w", err)
	}

	if err := processConfigDefaults(&config); err != nil {
		return Config{}, err
	}
	if err := validateAndEnsureDirectories(&config); err != nil {
		return Config{}, err
	}
	return config, nil
}

func processConfigDefaults(cfg *Config) error {
	if cfg.DataDir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return fmt.Errorf("VSL_DATA_DIR is not set and no user config dir is available: %w", err)
		}
		cfg.DataDir = filepath.Join(base, appDirName)
	}
	if cfg.InstallationsDir == "" {
		cfg.InstallationsDir = filepath.Join(cfg.DataDir, "Installations")
	}
	if cfg.BackupsDir == "" {
		cfg.BackupsDir = filepath.Join(cfg.DataDir, "Backups")
	}
	if cfg.VersionsDir == "" {
		cfg.VersionsDir = filepath.Join(cfg.DataDir, "Versions")
	}
	if cfg.ModDBURL == "" {
		cfg.ModDBURL = defaultModDBURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.CatalogTimeout <= 0 {
		cfg.CatalogTimeout = defaultCatalogTimeout
	}
	if cfg.ScanConcurrency <= 0 {
		cfg.ScanConcurrency = defaultScanConcurrency
	}
	if cfg.LogFile == "" {
		cfg.LogFile = filepath.Join(cfg.DataDir, "vslmanager.log")
	}
	cfg.DatabasePath = filepath.Join(cfg.DataDir, "state.db")
	cfg.CacheDir = filepath.Join(cfg.DataDir, "Cache", "modimg")
	return nil
}

func validateAndEnsureDirectories(cfg *Config) error {
	if cfg.DataDir == "" {
		return fmt.Errorf("VSL_DATA_DIR is required")
	}
	for _, dir := range []string{cfg.DataDir, cfg.InstallationsDir, cfg.BackupsDir, cfg.VersionsDir, cfg.CacheDir} {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			slog.Debug("Directory does not exist, creating it", "path", dir)
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create directory '%s': %w", dir, err)
			}
		} else if err != nil {
			return fmt.Errorf("failed to check directory '%s': %w", dir, err)
		}
	}
	return nil
}
