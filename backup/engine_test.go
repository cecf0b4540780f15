package backup

import (
	"archive/zip"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vslmanager/state"
)

func testEngine() *Engine {
	e := New(nil)
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	n := 0
	e.Now = func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Minute)
	}
	ids := 0
	e.NewID = func() string {
		ids++
		return fmt.Sprintf("B%d", ids)
	}
	return e
}

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	}
}

func readTree(t *testing.T, root string) map[string]string {
	t.Helper()
	out := map[string]string{}
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		require.NoError(t, err)
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		require.NoError(t, err)
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		out[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	require.NoError(t, err)
	return out
}

func TestCreateRestoreRoundTrip(t *testing.T) {
	for _, level := range []int{0, 1, 6, 9} {
		t.Run(fmt.Sprintf("level %d", level), func(t *testing.T) {
			inst := state.Installation{ID: "inst-1", Path: t.TempDir()}
			files := map[string]string{
				"clientsettings.json":      `{"fullscreen":false}`,
				"Saves/world.vcdbs":        string(make([]byte, 64*1024)),
				"Mods/carryon.zip":         "zip-bytes",
				"Logs/client-main.txt":     "started",
				"Playerdata/nested/x.json": "{}",
			}
			writeTree(t, inst.Path, files)
			require.NoError(t, os.MkdirAll(filepath.Join(inst.Path, "Empty"), 0755))

			e := testEngine()
			root := t.TempDir()
			b, err := e.Create(context.Background(), inst, root, level)
			require.NoError(t, err)
			assert.Equal(t, "B1", b.ID)
			assert.Equal(t, inst.ID, b.InstallationID)
			assert.Equal(t, filepath.Join(root, inst.ID, ArchiveName(inst.ID, b.CreatedAt)), b.ArchivePath)
			info, err := os.Stat(b.ArchivePath)
			require.NoError(t, err)
			assert.Equal(t, info.Size(), b.SizeBytes)

			writeTree(t, inst.Path, map[string]string{
				"clientsettings.json": `{"fullscreen":true}`,
				"Saves/world.vcdbs":   "corrupted",
			})
			require.NoError(t, os.Remove(filepath.Join(inst.Path, "Logs", "client-main.txt")))

			require.NoError(t, e.Restore(context.Background(), inst, b))
			assert.Equal(t, files, readTree(t, inst.Path))
			assert.DirExists(t, filepath.Join(inst.Path, "Empty"))
		})
	}
}

func TestCreateSkipsBackupsFolderInsideInstallation(t *testing.T) {
	inst := state.Installation{ID: "inst-1", Path: t.TempDir()}
	writeTree(t, inst.Path, map[string]string{"a.txt": "a"})
	root := filepath.Join(inst.Path, "Backups")

	e := testEngine()
	first, err := e.Create(context.Background(), inst, root, 6)
	require.NoError(t, err)
	second, err := e.Create(context.Background(), inst, root, 6)
	require.NoError(t, err)

	r, err := zip.OpenReader(second.ArchivePath)
	require.NoError(t, err)
	defer r.Close()
	var names []string
	for _, f := range r.File {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"a.txt"}, names)
	assert.NotEqual(t, first.ArchivePath, second.ArchivePath)
}

func TestCreateFailureLeavesNothing(t *testing.T) {
	e := testEngine()
	root := t.TempDir()

	_, err := e.Create(context.Background(), state.Installation{ID: "gone", Path: filepath.Join(t.TempDir(), "missing")}, root, 6)
	var ioErr *IOError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, "read", ioErr.Op)

	inst := state.Installation{ID: "inst-1", Path: t.TempDir()}
	writeTree(t, inst.Path, map[string]string{"a.txt": "a", "b.txt": "b"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.Create(ctx, inst, root, 6)
	assert.ErrorIs(t, err, context.Canceled)

	entries, err := os.ReadDir(InstallationFolder(root, inst.ID))
	require.NoError(t, err)
	assert.Empty(t, entries, "temporary archive must be removed")

	_, err = e.Create(context.Background(), inst, root, 10)
	assert.Error(t, err)
}

func TestCreateNameCollision(t *testing.T) {
	e := testEngine()
	fixed := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	e.Now = func() time.Time { return fixed }

	inst := state.Installation{ID: "inst-1", Path: t.TempDir()}
	writeTree(t, inst.Path, map[string]string{"a.txt": "a"})
	root := t.TempDir()

	b1, err := e.Create(context.Background(), inst, root, 1)
	require.NoError(t, err)
	b2, err := e.Create(context.Background(), inst, root, 1)
	require.NoError(t, err)
	assert.NotEqual(t, b1.ArchivePath, b2.ArchivePath)
	assert.FileExists(t, b1.ArchivePath)
	assert.FileExists(t, b2.ArchivePath)
}

func TestRestoreRejectsEscapingEntries(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "evil.zip")
	f, err := os.Create(archive)
	require.NoError(t, err)
	w := zip.NewWriter(f)
	fw, err := w.Create("../escaped.txt")
	require.NoError(t, err)
	_, err = fw.Write([]byte("nope"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())

	instDir := filepath.Join(dir, "inst")
	err = testEngine().Restore(context.Background(), state.Installation{ID: "i", Path: instDir}, state.Backup{ID: "b", ArchivePath: archive})
	var ioErr *IOError
	require.ErrorAs(t, err, &ioErr)
	assert.NoFileExists(t, filepath.Join(dir, "escaped.txt"))
}

func TestRestoreWithEscapingEntryWritesNothing(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "mixed.zip")
	f, err := os.Create(archive)
	require.NoError(t, err)
	w := zip.NewWriter(f)
	for name, body := range map[string]string{"Saves/world.vcdbs": "from backup", "../../outside.txt": "nope"} {
		fw, err := w.Create(name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())

	inst := state.Installation{ID: "i", Path: filepath.Join(dir, "inst")}
	writeTree(t, inst.Path, map[string]string{"Saves/world.vcdbs": "current"})

	err = testEngine().Restore(context.Background(), inst, state.Backup{ID: "b", ArchivePath: archive})
	var ioErr *IOError
	require.ErrorAs(t, err, &ioErr)

	got, err := os.ReadFile(filepath.Join(inst.Path, "Saves", "world.vcdbs"))
	require.NoError(t, err)
	assert.Equal(t, "current", string(got))
}

func TestRestoreMissingArchive(t *testing.T) {
	err := testEngine().Restore(context.Background(),
		state.Installation{ID: "i", Path: t.TempDir()},
		state.Backup{ID: "b", ArchivePath: filepath.Join(t.TempDir(), "missing.zip")})
	var ioErr *IOError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, "open", ioErr.Op)
}

func TestPruneSelection(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	backups := []state.Backup{
		{ID: "B3", CreatedAt: base.Add(3 * time.Hour)},
		{ID: "B1", CreatedAt: base.Add(1 * time.Hour)},
		{ID: "B2", CreatedAt: base.Add(2 * time.Hour)},
	}
	e := testEngine()

	tests := []struct {
		name  string
		limit int
		want  []string
	}{
		{"over limit evicts oldest", 2, []string{"B1"}},
		{"keep one", 1, []string{"B1", "B2"}},
		{"at limit", 3, nil},
		{"under limit", 5, nil},
		{"zero disables", 0, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.Prune(state.Installation{BackupsLimit: tt.limit, Backups: backups})
			var ids []string
			for _, b := range got {
				ids = append(ids, b.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}

	listed := e.List(state.Installation{Backups: backups})
	assert.Equal(t, "B1", listed[0].ID)
	assert.Equal(t, "B3", backups[0].ID, "List must not reorder the input")
}

func TestStageCommitAndRollback(t *testing.T) {
	e := testEngine()
	dir := t.TempDir()
	path := filepath.Join(dir, "a.zip")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
	b := state.Backup{ID: "B1", ArchivePath: path}

	commit, rollback, err := e.Stage(b)
	require.NoError(t, err)
	assert.NoFileExists(t, path)
	require.NoError(t, rollback())
	assert.FileExists(t, path)

	commit, _, err = e.Stage(b)
	require.NoError(t, err)
	require.NoError(t, commit())
	assert.NoFileExists(t, path)
	assert.NoFileExists(t, path+".deleting")

	commit, rollback, err = e.Stage(b)
	require.NoError(t, err, "missing archive stages as a no-op")
	assert.NoError(t, commit())
	assert.NoError(t, rollback())

	assert.NoError(t, e.Remove(b))
}

func TestOrphans(t *testing.T) {
	e := testEngine()
	root := t.TempDir()
	inst := state.Installation{ID: "inst-1", Path: t.TempDir()}
	writeTree(t, inst.Path, map[string]string{"a.txt": "a"})

	kept, err := e.Create(context.Background(), inst, root, 6)
	require.NoError(t, err)
	stray, err := e.Create(context.Background(), inst, root, 6)
	require.NoError(t, err)
	inst.Backups = []state.Backup{kept}

	orphans, err := e.Orphans(root, state.Config{Installations: []state.Installation{inst}})
	require.NoError(t, err)
	assert.Equal(t, []string{stray.ArchivePath}, orphans)

	orphans, err = e.Orphans(filepath.Join(root, "missing"), state.Config{})
	require.NoError(t, err)
	assert.Empty(t, orphans)
}
