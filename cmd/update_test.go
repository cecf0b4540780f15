package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vslmanager/lifecycle"
	"vslmanager/mods"
	"vslmanager/state"
)

func TestUpdateModelApply(t *testing.T) {
	m := initialUpdateModel(func(chan<- UpdateProgressMsg) {})

	steps := []UpdateProgressMsg{
		{Type: progressStatus, Message: "Scanning mods..."},
		{Type: progressCheck, ModName: "Carry On", ModID: "carryon"},
		{Type: progressDownloadStart, ModName: "Carry On", Version: "1.8.0"},
		{Type: progressUpdated, ModName: "Carry On", Version: "1.8.0"},
		{Type: progressCheck, ModName: "Prospect Info", ModID: "prospectinfo"},
		{Type: progressDownloadStart, ModName: "Prospect Info", Version: "5.0.0"},
		{Type: progressError, ModName: "Prospect Info", Version: "5.0.0", Message: "download failed"},
		{Type: progressSummary, Message: "1 updated, 1 failed, 0 unreadable"},
	}
	for _, s := range steps {
		m.apply(s)
	}

	assert.Equal(t, 2, m.totalChecked)
	assert.Equal(t, 1, m.totalUpdated)
	assert.Empty(t, m.downloading)
	assert.Equal(t, []string{"Updated Carry On to 1.8.0"}, m.completed)
	assert.Equal(t, []string{"Prospect Info: download failed"}, m.errors)
	assert.False(t, m.done)

	m.apply(UpdateProgressMsg{Type: progressDone})
	assert.True(t, m.done)
	view := m.View()
	assert.Contains(t, view, "Finished")
	assert.Contains(t, view, "1 updated, 1 failed, 0 unreadable")
	assert.Contains(t, view, "Prospect Info: download failed")
}

func TestUpdateModelQuitsWhenChannelCloses(t *testing.T) {
	m := initialUpdateModel(func(chan<- UpdateProgressMsg) {})
	close(m.progressChan)

	msg := m.waitForActivity()()
	next, cmd := m.Update(msg)
	assert.True(t, next.(UpdateModel).done)
	assert.NotNil(t, cmd)
}

func collectUpdates(t *testing.T, m *lifecycle.Manager, id string, modIDs []string) []UpdateProgressMsg {
	t.Helper()
	ch := make(chan UpdateProgressMsg, 64)
	runModUpdates(context.Background(), m, id, modIDs, ch)
	close(ch)
	var out []UpdateProgressMsg
	for msg := range ch {
		out = append(out, msg)
	}
	return out
}

func createTestInstallation(t *testing.T, m *lifecycle.Manager) state.Installation {
	t.Helper()
	in := lifecycle.DefaultInput()
	in.Name = "Survival World"
	in.Version = testGameVersion
	inst, err := m.CreateInstallation(context.Background(), in)
	require.NoError(t, err)
	return inst
}

func TestRunModUpdatesReportsUnknownMods(t *testing.T) {
	m, _ := newTestManager(t)
	inst := createTestInstallation(t, m)

	msgs := collectUpdates(t, m, inst.ID, []string{"missingmod"})
	require.NotEmpty(t, msgs)
	assert.Equal(t, progressStatus, msgs[0].Type)

	var errs []UpdateProgressMsg
	for _, msg := range msgs {
		if msg.Type == progressError {
			errs = append(errs, msg)
		}
	}
	require.Len(t, errs, 1)
	assert.Equal(t, "missingmod", errs[0].ModName)
	assert.Equal(t, "not installed", errs[0].Message)

	last := msgs[len(msgs)-1]
	assert.Equal(t, progressSummary, last.Type)
	assert.Equal(t, "0 updated, 1 failed, 0 unreadable", last.Message)
}

func TestRunModUpdatesWithoutCatalogUpdatesNothing(t *testing.T) {
	m, _ := newTestManager(t)
	inst := createTestInstallation(t, m)

	modDir := filepath.Join(mods.ModsDir(inst.Path), "carryon")
	require.NoError(t, os.MkdirAll(modDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(modDir, "modinfo.json"),
		[]byte(`{"modid": "carryon", "name": "Carry On", "version": "1.7.0",}`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(mods.ModsDir(inst.Path), "broken.zip"), []byte("not a zip"), 0644))

	msgs := collectUpdates(t, m, inst.ID, nil)

	var checked []string
	for _, msg := range msgs {
		assert.NotEqual(t, progressDownloadStart, msg.Type)
		if msg.Type == progressCheck {
			checked = append(checked, msg.ModID)
		}
	}
	assert.Equal(t, []string{"carryon"}, checked)
	assert.Equal(t, "0 updated, 0 failed, 1 unreadable", msgs[len(msgs)-1].Message)

	after, ok := m.Store.Installation(inst.ID)
	require.True(t, ok)
	assert.Equal(t, 2, after.ModsCount)
}

func TestRunModUpdatesMissingInstallation(t *testing.T) {
	m, _ := newTestManager(t)
	msgs := collectUpdates(t, m, "nope", nil)
	require.Len(t, msgs, 2)
	assert.Equal(t, progressError, msgs[1].Type)
}
