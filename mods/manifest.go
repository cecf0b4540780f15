package mods

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

const (
	manifestName = "modinfo.json"
	iconName     = "modicon.png"
	maxManifest  = 1 << 20
	maxIcon      = 4 << 20
)

var (
	ErrNoManifest      = errors.New("package has no modinfo.json")
	ErrInvalidManifest = errors.New("invalid modinfo.json")
)

// Manifest is the subset of modinfo.json the launcher cares about. Keys are
// matched case-insensitively, the game accepts both "ModID" and "modid".
type Manifest struct {
	ModID        string   `json:"modid"`
	Name         string   `json:"name"`
	Version      string   `json:"version"`
	Type         string   `json:"type"`
	Side         string   `json:"side"`
	Authors      []string `json:"authors"`
	Contributors []string `json:"contributors"`
	Description  string   `json:"description"`
	Website      string   `json:"website"`
}

// ParseManifest decodes a modinfo.json payload. It tolerates a UTF-8 BOM
// and trailing commas, both common in hand-written manifests.
func ParseManifest(data []byte) (Manifest, error) {
	var m Manifest
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if err := json.Unmarshal(stripTrailingCommas(data), &m); err != nil {
		return m, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	if m.ModID == "" {
		m.ModID = modIDFromName(m.Name)
	}
	if m.ModID == "" {
		return m, fmt.Errorf("%w: missing modid and name", ErrInvalidManifest)
	}
	if strings.TrimSpace(m.Version) == "" {
		return m, fmt.Errorf("%w: missing version", ErrInvalidManifest)
	}
	if m.Name == "" {
		m.Name = m.ModID
	}
	return m, nil
}

// modIDFromName mirrors the game's fallback: lower-case letters and digits
// of the display name.
func modIDFromName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// stripTrailingCommas removes commas that directly precede a closing
// bracket or brace, ignoring anything inside string literals.
func stripTrailingCommas(data []byte) []byte {
	out := make([]byte, 0, len(data))
	inString, escaped := false, false
	for i := 0; i < len(data); i++ {
		c := data[i]
		if inString {
			out = append(out, c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		if c == '"' {
			inString = true
			out = append(out, c)
			continue
		}
		if c == ',' {
			j := i + 1
			for j < len(data) && unicode.IsSpace(rune(data[j])) {
				j++
			}
			if j < len(data) && (data[j] == '}' || data[j] == ']') {
				continue
			}
		}
		out = append(out, c)
	}
	return out
}

// packageContents is what a mod package yields before catalog reconciliation.
type packageContents struct {
	manifest Manifest
	icon     []byte
}

// readPackage opens a zip or directory mod and returns its manifest and icon.
func readPackage(path string, isDir bool) (packageContents, error) {
	if isDir {
		return readDirPackage(path)
	}
	return readZipPackage(path)
}

func readZipPackage(path string) (packageContents, error) {
	var pc packageContents
	r, err := zip.OpenReader(path)
	if err != nil {
		return pc, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	defer r.Close()

	var manifest, icon *zip.File
	for _, f := range r.File {
		switch {
		case strings.EqualFold(f.Name, manifestName):
			manifest = f
		case strings.EqualFold(f.Name, iconName):
			icon = f
		}
	}
	if manifest == nil {
		return pc, ErrNoManifest
	}

	data, err := readZipEntry(manifest, maxManifest)
	if err != nil {
		return pc, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	if pc.manifest, err = ParseManifest(data); err != nil {
		return pc, err
	}
	if icon != nil {
		pc.icon, _ = readZipEntry(icon, maxIcon)
	}
	return pc, nil
}

func readZipEntry(f *zip.File, limit int64) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(io.LimitReader(rc, limit))
}

func readDirPackage(dir string) (packageContents, error) {
	var pc packageContents
	entries, err := os.ReadDir(dir)
	if err != nil {
		return pc, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	var manifestPath, iconPath string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch {
		case strings.EqualFold(e.Name(), manifestName):
			manifestPath = filepath.Join(dir, e.Name())
		case strings.EqualFold(e.Name(), iconName):
			iconPath = filepath.Join(dir, e.Name())
		}
	}
	if manifestPath == "" {
		return pc, ErrNoManifest
	}
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return pc, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	if pc.manifest, err = ParseManifest(data); err != nil {
		return pc, err
	}
	if iconPath != "" {
		pc.icon, _ = os.ReadFile(iconPath)
	}
	return pc, nil
}
