package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/afero"
)

// Resolver is the narrow filesystem contract the engine relies on.
// Ordinary failures come back as false; unreadable or unwritable states
// come back as errors.
type Resolver interface {
	Join(parts ...string) string
	Exists(path string) bool
	IsEmpty(path string) (bool, error)
	Delete(path string) bool
	EnsureDir(path string) error
	Move(src, dst string) error
}

// FS implements Resolver on top of an afero filesystem.
type FS struct {
	fs afero.Fs
}

func New(fs afero.Fs) *FS {
	return &FS{fs: fs}
}

// NewOS returns a Resolver backed by the real filesystem.
func NewOS() *FS {
	return New(afero.NewOsFs())
}

func (p *FS) Join(parts ...string) string {
	return filepath.Join(parts...)
}

func (p *FS) Exists(path string) bool {
	ok, err := afero.Exists(p.fs, path)
	return err == nil && ok
}

// IsEmpty reports whether path holds nothing. A missing path is empty.
func (p *FS) IsEmpty(path string) (bool, error) {
	if !p.Exists(path) {
		return true, nil
	}
	empty, err := afero.IsEmpty(p.fs, path)
	if err != nil {
		return false, fmt.Errorf("failed to read '%s': %w", path, err)
	}
	return empty, nil
}

// Delete removes path recursively. Deleting something that does not exist
// succeeds.
func (p *FS) Delete(path string) bool {
	if path == "" || filepath.Clean(path) == string(filepath.Separator) {
		return false
	}
	return p.fs.RemoveAll(path) == nil
}

func (p *FS) EnsureDir(path string) error {
	if err := p.fs.MkdirAll(path, 0755); err != nil {
		return fmt.Errorf("failed to create directory '%s': %w", path, err)
	}
	return nil
}

// Move renames src to dst, creating dst's parent first.
func (p *FS) Move(src, dst string) error {
	if err := p.fs.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to create directory '%s': %w", filepath.Dir(dst), err)
	}
	if err := p.fs.Rename(src, dst); err != nil {
		return fmt.Errorf("failed to move '%s' to '%s': %w", src, dst, err)
	}
	return nil
}

var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9]`)

// FormatFolderName derives a folder name from an installation name.
func FormatFolderName(name string) string {
	return nonAlphanumeric.ReplaceAllString(name, "-")
}

// IsWithin reports whether target is base itself or lies below it.
func IsWithin(base, target string) bool {
	rel, err := filepath.Rel(filepath.Clean(base), filepath.Clean(target))
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(os.PathSeparator)))
}

// IsStrictlyWithin is IsWithin without the base itself.
func IsStrictlyWithin(base, target string) bool {
	return IsWithin(base, target) && filepath.Clean(base) != filepath.Clean(target)
}
