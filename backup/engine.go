// Package backup creates, restores and rotates zip snapshots of installation
// directories. It only does I/O: admission checks and state changes belong
// to the caller.
package backup

import (
	"archive/zip"
	"compress/flate"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"vslmanager/logger"
	"vslmanager/paths"
	"vslmanager/state"
)

const (
	archiveExt     = ".zip"
	timestampStyle = "2006-01-02_15-04-05.000"
)

// IOError reports a failed filesystem step of a backup operation.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("backup %s '%s': %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

type Engine struct {
	Now   func() time.Time
	NewID func() string
	Log   *zap.SugaredLogger
}

func New(log *zap.SugaredLogger) *Engine {
	log = logger.OrNop(log)
	return &Engine{
		Now:   time.Now,
		NewID: uuid.NewString,
		Log:   log,
	}
}

// ArchiveName is the deterministic file name for a backup of installationID
// taken at t.
func ArchiveName(installationID string, t time.Time) string {
	return fmt.Sprintf("%s_%s%s", installationID, t.UTC().Format(timestampStyle), archiveExt)
}

// InstallationFolder is where an installation's archives live under root.
func InstallationFolder(root, installationID string) string {
	return filepath.Join(root, installationID)
}

// Create zips inst.Path into root and returns the new Backup. On failure no
// archive is left on disk.
func (e *Engine) Create(ctx context.Context, inst state.Installation, root string, level int) (state.Backup, error) {
	log := e.Log.With(zap.String("installation", inst.ID))
	if level < 0 || level > state.MaxCompressionLevel {
		return state.Backup{}, fmt.Errorf("compression level %d out of range 0..%d", level, state.MaxCompressionLevel)
	}

	info, err := os.Stat(inst.Path)
	if err != nil {
		return state.Backup{}, &IOError{Op: "read", Path: inst.Path, Err: err}
	}
	if !info.IsDir() {
		return state.Backup{}, &IOError{Op: "read", Path: inst.Path, Err: errors.New("not a directory")}
	}

	dir := InstallationFolder(root, inst.ID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return state.Backup{}, &IOError{Op: "create", Path: dir, Err: err}
	}

	createdAt := e.Now()
	target := uniquePath(filepath.Join(dir, ArchiveName(inst.ID, createdAt)))

	tmp, err := os.CreateTemp(dir, ".backup-*.tmp")
	if err != nil {
		return state.Backup{}, &IOError{Op: "create", Path: dir, Err: err}
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpPath)
	}

	log.Infow("Creating backup", zap.String("source", inst.Path), zap.String("archive", target), zap.Int("level", level))
	if err := writeArchive(ctx, tmp, inst.Path, []string{root}, level); err != nil {
		cleanup()
		if ctx.Err() != nil {
			return state.Backup{}, ctx.Err()
		}
		return state.Backup{}, &IOError{Op: "write", Path: target, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return state.Backup{}, &IOError{Op: "write", Path: target, Err: err}
	}
	stat, err := tmp.Stat()
	if err != nil {
		cleanup()
		return state.Backup{}, &IOError{Op: "write", Path: target, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return state.Backup{}, &IOError{Op: "write", Path: target, Err: err}
	}
	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return state.Backup{}, &IOError{Op: "write", Path: target, Err: err}
	}

	b := state.Backup{
		ID:             e.NewID(),
		InstallationID: inst.ID,
		CreatedAt:      createdAt,
		SizeBytes:      stat.Size(),
		ArchivePath:    target,
	}
	log.Infow("Backup created", zap.String("backup", b.ID), zap.Int64("bytes", b.SizeBytes))
	return b, nil
}

// writeArchive walks src into a zip written to w. Directories in skip (and
// anything below them) are left out, as are symlinks and special files.
func writeArchive(ctx context.Context, w io.Writer, src string, skip []string, level int) error {
	zw := zip.NewWriter(w)
	method := zip.Deflate
	if level == 0 {
		method = zip.Store
	} else {
		zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
			return flate.NewWriter(out, level)
		})
	}

	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if path == src {
			return nil
		}
		for _, s := range skip {
			if s != "" && paths.IsWithin(s, path) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)

		info, err := d.Info()
		if err != nil {
			return err
		}
		if d.IsDir() {
			hdr, err := zip.FileInfoHeader(info)
			if err != nil {
				return err
			}
			hdr.Name = name + "/"
			_, err = zw.CreateHeader(hdr)
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		hdr, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}
		hdr.Name = name
		hdr.Method = method
		fw, err := zw.CreateHeader(hdr)
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		_, err = io.Copy(fw, f)
		f.Close()
		return err
	})
	if err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}

// Restore extracts b over inst.Path, overwriting files that exist in the
// archive. It does not check whether the installation is busy.
func (e *Engine) Restore(ctx context.Context, inst state.Installation, b state.Backup) error {
	log := e.Log.With(zap.String("installation", inst.ID), zap.String("backup", b.ID))

	r, err := zip.OpenReader(b.ArchivePath)
	if err != nil {
		return &IOError{Op: "open", Path: b.ArchivePath, Err: err}
	}
	defer r.Close()

	// Every entry is checked before the first file is written.
	targets := make([]string, len(r.File))
	for i, f := range r.File {
		target := filepath.Join(inst.Path, filepath.FromSlash(f.Name))
		if !paths.IsStrictlyWithin(inst.Path, target) {
			return &IOError{Op: "restore", Path: f.Name, Err: errors.New("entry escapes installation directory")}
		}
		targets[i] = target
	}
	if err := os.MkdirAll(inst.Path, 0755); err != nil {
		return &IOError{Op: "restore", Path: inst.Path, Err: err}
	}

	log.Infow("Restoring backup", zap.String("archive", b.ArchivePath), zap.Int("entries", len(r.File)))
	for i, f := range r.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := extractEntry(f, targets[i]); err != nil {
			return &IOError{Op: "restore", Path: targets[i], Err: err}
		}
	}
	log.Infow("Backup restored")
	return nil
}

func extractEntry(f *zip.File, target string) error {
	if f.FileInfo().IsDir() || strings.HasSuffix(f.Name, "/") {
		return os.MkdirAll(target, 0755)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}

	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	perm := f.Mode().Perm() | 0600
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	if !f.Modified.IsZero() {
		_ = os.Chtimes(target, f.Modified, f.Modified)
	}
	return nil
}

// List returns the installation's backups oldest first.
func (e *Engine) List(inst state.Installation) []state.Backup {
	out := append([]state.Backup(nil), inst.Backups...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Prune selects the backups that exceed inst.BackupsLimit, oldest first.
// A limit of 0 disables pruning. Nothing is deleted here.
func (e *Engine) Prune(inst state.Installation) []state.Backup {
	if inst.BackupsLimit <= 0 || len(inst.Backups) <= inst.BackupsLimit {
		return nil
	}
	ordered := e.List(inst)
	return ordered[:len(ordered)-inst.BackupsLimit]
}

// Remove deletes the archive of b. A missing archive is not an error.
func (e *Engine) Remove(b state.Backup) error {
	if err := os.Remove(b.ArchivePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return &IOError{Op: "delete", Path: b.ArchivePath, Err: err}
	}
	e.Log.Infow("Backup archive removed", zap.String("backup", b.ID), zap.String("archive", b.ArchivePath))
	return nil
}

// Stage moves b's archive aside so its record can be dropped. Commit with
// the returned func, or roll back to put the archive back.
func (e *Engine) Stage(b state.Backup) (commit func() error, rollback func() error, err error) {
	staged := b.ArchivePath + ".deleting"
	if err := os.Rename(b.ArchivePath, staged); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			noop := func() error { return nil }
			return noop, noop, nil
		}
		return nil, nil, &IOError{Op: "delete", Path: b.ArchivePath, Err: err}
	}
	commit = func() error {
		if err := os.Remove(staged); err != nil && !errors.Is(err, os.ErrNotExist) {
			return &IOError{Op: "delete", Path: staged, Err: err}
		}
		e.Log.Infow("Backup archive removed", zap.String("backup", b.ID), zap.String("archive", b.ArchivePath))
		return nil
	}
	rollback = func() error {
		if err := os.Rename(staged, b.ArchivePath); err != nil {
			return &IOError{Op: "rollback", Path: b.ArchivePath, Err: err}
		}
		return nil
	}
	return commit, rollback, nil
}

// Orphans lists archive files under root that no backup record points to.
func (e *Engine) Orphans(root string, cfg state.Config) ([]string, error) {
	known := make(map[string]bool)
	for _, inst := range cfg.Installations {
		for _, b := range inst.Backups {
			known[filepath.Clean(b.ArchivePath)] = true
		}
	}

	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, os.ErrNotExist) && path == root {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		if strings.HasSuffix(name, archiveExt) || strings.HasSuffix(name, archiveExt+".deleting") {
			if !known[filepath.Clean(path)] {
				out = append(out, path)
			}
		}
		return nil
	})
	if err != nil {
		return nil, &IOError{Op: "scan", Path: root, Err: err}
	}
	sort.Strings(out)
	return out, nil
}

func uniquePath(path string) string {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return path
	}
	base := strings.TrimSuffix(path, archiveExt)
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s-%d%s", base, i, archiveExt)
		if _, err := os.Stat(candidate); errors.Is(err, os.ErrNotExist) {
			return candidate
		}
	}
}
