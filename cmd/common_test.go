package cmd

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vslmanager/guard"
	"vslmanager/lifecycle"
	"vslmanager/state"
)

const testGameVersion = "1.19.8"

// newTestManager builds a manager over an in-memory store with one game
// version installed under a temporary root.
func newTestManager(t *testing.T) (*lifecycle.Manager, string) {
	t.Helper()
	root := t.TempDir()
	versionDir := filepath.Join(root, "versions", testGameVersion)
	require.NoError(t, os.MkdirAll(versionDir, 0755))

	p := &state.MemoryPersister{Initial: state.Config{
		Settings: state.Settings{
			DefaultInstallationsFolder: filepath.Join(root, "installations"),
			BackupsFolder:              filepath.Join(root, "backups"),
			VersionsFolder:             filepath.Join(root, "versions"),
		},
		GameVersions: []state.GameVersion{{Version: testGameVersion, Path: versionDir}},
	}}
	store, err := state.Open(context.Background(), p, nil)
	require.NoError(t, err)
	return lifecycle.New(store, nil), root
}

func testConfig() state.Config {
	return state.Config{Installations: []state.Installation{
		{ID: "a1b2c3d4-0001", Name: "Survival World"},
		{ID: "a1b2ffff-0002", Name: "Creative Build"},
		{ID: "e5f6a7b8-0003", Name: "survival world two"},
	}}
}

func TestFindInstallation(t *testing.T) {
	cfg := testConfig()
	tests := []struct {
		name    string
		ref     string
		wantID  string
		wantErr error
	}{
		{"exact id", "a1b2ffff-0002", "a1b2ffff-0002", nil},
		{"unique prefix", "e5f6", "e5f6a7b8-0003", nil},
		{"name ignores case", "creative build", "a1b2ffff-0002", nil},
		{"short prefix is not matched", "e5f", "", lifecycle.ErrNotFound},
		{"unknown", "nothing", "", lifecycle.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst, err := findInstallation(cfg, tt.ref)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, inst.ID)
		})
	}
}

func TestFindInstallationAmbiguousPrefix(t *testing.T) {
	_, err := findInstallation(testConfig(), "a1b2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "matches 2 installations")
}

func TestFormatPlayTime(t *testing.T) {
	assert.Equal(t, "0m", formatPlayTime(0))
	assert.Equal(t, "0m", formatPlayTime(-time.Hour))
	assert.Equal(t, "45m", formatPlayTime(45*time.Minute))
	assert.Equal(t, "2h05m", formatPlayTime(2*time.Hour+5*time.Minute+10*time.Second))
}

func TestFormatLastPlayed(t *testing.T) {
	assert.Equal(t, "never", formatLastPlayed(state.NeverPlayed))
	assert.Contains(t, formatLastPlayed(time.Now().Add(-3*time.Hour).UnixMilli()), "hours ago")
}

func TestFormatSizeAndTruncate(t *testing.T) {
	assert.Equal(t, "0 B", formatSize(-5))
	assert.Equal(t, "1.5 kB", formatSize(1500))
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "a very...", truncate("a very long name", 9))
}

func TestDescribeError(t *testing.T) {
	assert.NoError(t, describeError(nil))

	conflict := &lifecycle.ConflictError{InstallationID: "x", Reasons: []guard.Reason{{ID: guard.ReasonBackingUp, Description: "Creating backup"}}}
	err := describeError(conflict)
	assert.Contains(t, err.Error(), "Creating backup")
	assert.Contains(t, err.Error(), "try again once it has finished")

	io := &lifecycle.IOFailure{Op: "write", Path: "/tmp/x", Err: errors.New("no space left")}
	err = describeError(io)
	assert.ErrorIs(t, err, lifecycle.ErrIO)
	assert.Contains(t, err.Error(), "free disk space")

	plain := errors.New("boom")
	assert.Equal(t, plain, describeError(plain))
}
