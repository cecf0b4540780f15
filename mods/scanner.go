// Package mods reads the mods installed in an installation and matches them
// against the remote catalog. Results are always recomputed from disk.
package mods

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"vslmanager/logger"
	"vslmanager/moddb"
)

// ModsFolder is the mod directory inside an installation.
const ModsFolder = "Mods"

const defaultConcurrency = 8

// InstalledMod is a mod package whose manifest parsed. Remote is nil when
// the catalog had nothing for it.
type InstalledMod struct {
	ModID        string
	Name         string
	Version      string
	Authors      []string
	Contributors []string
	Description  string
	Side         string
	ImagePath    string
	Path         string
	Remote       *moddb.Mod
}

// ErrorInstalledMod is a package on disk whose manifest could not be read.
type ErrorInstalledMod struct {
	ZipName string
	Path    string
	Err     error
}

type Result struct {
	Mods   []InstalledMod
	Errors []ErrorInstalledMod
}

// Scanner enumerates and reconciles an installation's mods.
type Scanner struct {
	Catalog     moddb.Catalog // optional
	CacheDir    string        // where extracted icons go; icons are skipped if empty
	Concurrency int
	Log         *zap.SugaredLogger
}

// ModsDir returns the mod directory of the installation at installationPath.
func ModsDir(installationPath string) string {
	return filepath.Join(installationPath, ModsFolder)
}

// Scan reads every package in the installation's mod directory. A broken
// package lands in Result.Errors and never stops the scan. Catalog misses
// leave Remote empty. Only an unreadable mod directory or a cancelled
// context fail the whole call.
func (s *Scanner) Scan(ctx context.Context, installationPath string) (Result, error) {
	var res Result
	log := s.logger().With(zap.String("installation", installationPath))

	entries, err := listPackages(ModsDir(installationPath))
	if err != nil {
		return res, err
	}

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		pc, err := readPackage(e.path, e.isDir)
		if err != nil {
			log.Warnw("Failed to read mod package", zap.String("file", e.name), zap.Error(err))
			res.Errors = append(res.Errors, ErrorInstalledMod{ZipName: e.name, Path: e.path, Err: err})
			continue
		}
		res.Mods = append(res.Mods, InstalledMod{
			ModID:        pc.manifest.ModID,
			Name:         pc.manifest.Name,
			Version:      pc.manifest.Version,
			Authors:      pc.manifest.Authors,
			Contributors: pc.manifest.Contributors,
			Description:  pc.manifest.Description,
			Side:         pc.manifest.Side,
			ImagePath:    s.cacheIcon(pc, log),
			Path:         e.path,
		})
	}

	if err := s.reconcile(ctx, res.Mods, log); err != nil {
		return Result{}, err
	}

	log.Infow("Scanned mods", zap.Int("mods", len(res.Mods)), zap.Int("errors", len(res.Errors)))
	return res, nil
}

// reconcile attaches catalog data to each mod. Lookups never fail the scan;
// each goroutine writes only its own slot.
func (s *Scanner) reconcile(ctx context.Context, mods []InstalledMod, log *zap.SugaredLogger) error {
	if s.Catalog == nil || len(mods) == 0 {
		return nil
	}
	limit := s.Concurrency
	if limit <= 0 {
		limit = defaultConcurrency
	}

	var g errgroup.Group
	g.SetLimit(limit)
	for i := range mods {
		i := i
		g.Go(func() error {
			remote, err := s.Catalog.QueryByModID(ctx, mods[i].ModID)
			if err != nil {
				log.Debugw("No catalog data for mod", zap.String("modid", mods[i].ModID), zap.Error(err))
				return nil
			}
			mods[i].Remote = remote
			return nil
		})
	}
	_ = g.Wait()
	return ctx.Err()
}

func (s *Scanner) cacheIcon(pc packageContents, log *zap.SugaredLogger) string {
	if s.CacheDir == "" || len(pc.icon) == 0 {
		return ""
	}
	name := fmt.Sprintf("%s-%s.png", sanitizeFileName(pc.manifest.ModID), sanitizeFileName(pc.manifest.Version))
	path := filepath.Join(s.CacheDir, name)
	if _, err := os.Stat(path); err == nil {
		return path
	}
	if err := os.MkdirAll(s.CacheDir, 0755); err != nil {
		log.Warnw("Failed to create icon cache", zap.String("dir", s.CacheDir), zap.Error(err))
		return ""
	}
	if err := os.WriteFile(path, pc.icon, 0644); err != nil {
		log.Warnw("Failed to cache mod icon", zap.String("modid", pc.manifest.ModID), zap.Error(err))
		return ""
	}
	return path
}

func (s *Scanner) logger() *zap.SugaredLogger {
	return logger.OrNop(s.Log)
}

type packageEntry struct {
	name  string
	path  string
	isDir bool
}

// listPackages returns the zip files and folders in dir. A missing dir is
// simply an installation without mods.
func listPackages(dir string) ([]packageEntry, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read mods directory '%s': %w", dir, err)
	}
	var out []packageEntry
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		switch {
		case e.IsDir():
			out = append(out, packageEntry{name: name, path: filepath.Join(dir, name), isDir: true})
		case strings.EqualFold(filepath.Ext(name), ".zip"):
			out = append(out, packageEntry{name: name, path: filepath.Join(dir, name)})
		}
	}
	return out, nil
}

// CountMods returns how many packages sit in the installation's mod
// directory, broken ones included.
func CountMods(installationPath string) int {
	entries, err := listPackages(ModsDir(installationPath))
	if err != nil {
		return 0
	}
	return len(entries)
}

// ReadInstalledMod parses a single package without touching the catalog.
func ReadInstalledMod(path string) (InstalledMod, error) {
	info, err := os.Stat(path)
	if err != nil {
		return InstalledMod{}, err
	}
	pc, err := readPackage(path, info.IsDir())
	if err != nil {
		return InstalledMod{}, err
	}
	return InstalledMod{
		ModID:        pc.manifest.ModID,
		Name:         pc.manifest.Name,
		Version:      pc.manifest.Version,
		Authors:      pc.manifest.Authors,
		Contributors: pc.manifest.Contributors,
		Description:  pc.manifest.Description,
		Side:         pc.manifest.Side,
		Path:         path,
	}, nil
}

// SortByName orders mods for display.
func SortByName(mods []InstalledMod) {
	sort.SliceStable(mods, func(i, j int) bool {
		return strings.ToLower(mods[i].Name) < strings.ToLower(mods[j].Name)
	})
}

func sanitizeFileName(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		}
		return '_'
	}, s)
}
