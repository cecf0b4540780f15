package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vslmanager/lifecycle"
	"vslmanager/logger"
	"vslmanager/state"
)

var versionImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Register every game version found in the versions folder",
	Long: `Scan the versions folder for unpacked game versions and register the ones
that are not known yet. A folder counts as a game version when its name is a
version number and it contains the game executable.`,
	Args: cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			added, err := importGameVersions(ctx, a.manager)
			if err != nil {
				return err
			}
			fmt.Printf("Imported %d game version(s)\n", added)
			return nil
		})
	},
}

func init() {
	versionCmd.AddCommand(versionImportCmd)
}

// discoverGameVersions lists the folders in dir that hold a game version.
func discoverGameVersions(dir string) ([]state.GameVersion, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read versions folder '%s': %w", dir, err)
	}

	var found []state.GameVersion
	for _, e := range entries {
		if !e.IsDir() || state.CanonicalVersion(e.Name()) == "" {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if _, err := os.Stat(lifecycle.GameExecutable(path)); err != nil {
			logger.Log.Debugw("Skipping folder without game executable", zap.String("path", path))
			continue
		}
		found = append(found, state.GameVersion{Version: e.Name(), Path: path})
	}
	return state.SortedGameVersions(found), nil
}

func importGameVersions(ctx context.Context, m *lifecycle.Manager) (int, error) {
	cfg := m.Store.Snapshot()
	found, err := discoverGameVersions(cfg.Settings.VersionsFolder)
	if err != nil {
		return 0, err
	}
	added := 0
	for _, gv := range found {
		if _, ok := cfg.FindGameVersion(gv.Version); ok {
			continue
		}
		if err := m.AddGameVersion(ctx, gv); err != nil {
			logger.Log.Warnw("Failed to import game version", zap.String("version", gv.Version), zap.Error(err))
			continue
		}
		logger.Log.Infow("Imported game version", zap.String("version", gv.Version), zap.String("path", gv.Path))
		added++
	}
	return added, nil
}
