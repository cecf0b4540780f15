package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessConfigDefaults(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		cfg := Config{DataDir: "/data"}
		require.NoError(t, processConfigDefaults(&cfg))

		assert.Equal(t, filepath.Join("/data", "Installations"), cfg.InstallationsDir)
		assert.Equal(t, filepath.Join("/data", "Backups"), cfg.BackupsDir)
		assert.Equal(t, filepath.Join("/data", "Versions"), cfg.VersionsDir)
		assert.Equal(t, defaultModDBURL, cfg.ModDBURL)
		assert.Equal(t, defaultCatalogTimeout, cfg.CatalogTimeout)
		assert.Equal(t, defaultScanConcurrency, cfg.ScanConcurrency)
		assert.Equal(t, filepath.Join("/data", "state.db"), cfg.DatabasePath)
		assert.NotEmpty(t, cfg.UserAgent)
	})

	t.Run("respects existing values", func(t *testing.T) {
		cfg := Config{
			DataDir:         "/data",
			BackupsDir:      "/elsewhere/backups",
			UserAgent:       "custom-agent",
			CatalogTimeout:  time.Second,
			ScanConcurrency: 2,
		}
		require.NoError(t, processConfigDefaults(&cfg))

		assert.Equal(t, "/elsewhere/backups", cfg.BackupsDir)
		assert.Equal(t, "custom-agent", cfg.UserAgent)
		assert.Equal(t, time.Second, cfg.CatalogTimeout)
		assert.Equal(t, 2, cfg.ScanConcurrency)
	})
}

func TestValidateAndEnsureDirectories(t *testing.T) {
	t.Run("missing data dir", func(t *testing.T) {
		cfg := Config{}
		assert.Error(t, validateAndEnsureDirectories(&cfg))
	})

	t.Run("creates directories", func(t *testing.T) {
		cfg := Config{DataDir: filepath.Join(t.TempDir(), "vsl")}
		require.NoError(t, processConfigDefaults(&cfg))
		require.NoError(t, validateAndEnsureDirectories(&cfg))

		for _, dir := range []string{cfg.InstallationsDir, cfg.BackupsDir, cfg.VersionsDir, cfg.CacheDir} {
			_, err := os.Stat(dir)
			assert.NoError(t, err, dir)
		}
	})
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	dataDir := filepath.Join(t.TempDir(), "data")
	t.Setenv("VSL_DATA_DIR", dataDir)
	t.Setenv("VSL_CATALOG_TIMEOUT", "3s")
	t.Setenv("VSL_SCAN_CONCURRENCY", "4")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, dataDir, cfg.DataDir)
	assert.Equal(t, 3*time.Second, cfg.CatalogTimeout)
	assert.Equal(t, 4, cfg.ScanConcurrency)
	assert.DirExists(t, cfg.BackupsDir)
}
