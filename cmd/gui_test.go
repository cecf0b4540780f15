package cmd

import (
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vslmanager/guard"
	"vslmanager/state"
	"vslmanager/ui"
)

func newTestDashboard(t *testing.T) (Dashboard, *ui.RecordingNotifier) {
	t.Helper()
	m, _ := newTestManager(t)
	notes := &ui.RecordingNotifier{}
	m.Notifier = notes
	createTestInstallation(t, m)
	return newDashboard(context.Background(), m, notes, nil), notes
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestDashboardNavigation(t *testing.T) {
	d, _ := newTestDashboard(t)
	cfg := d.cfg
	cfg.Installations = append(cfg.Installations, state.Installation{ID: "second", Name: "Second World", LastTimePlayed: state.NeverPlayed})

	next, _ := d.Update(configMsg(cfg))
	d = next.(Dashboard)
	require.Len(t, d.cfg.Installations, 2)

	next, _ = d.Update(key("j"))
	d = next.(Dashboard)
	assert.Equal(t, 1, d.selectedIndex)
	next, _ = d.Update(key("j"))
	d = next.(Dashboard)
	assert.Equal(t, 1, d.selectedIndex)
	next, _ = d.Update(key("k"))
	d = next.(Dashboard)
	assert.Equal(t, 0, d.selectedIndex)

	cfg.Installations = cfg.Installations[:0]
	next, _ = d.Update(configMsg(cfg))
	d = next.(Dashboard)
	assert.Equal(t, 0, d.selectedIndex)
	assert.Contains(t, d.View(), "No installations yet")
}

func TestDashboardShowsBusyReasons(t *testing.T) {
	d, _ := newTestDashboard(t)
	inst := d.cfg.Installations[0]

	d.manager.Guard.Acquire(inst.ID, guard.ReasonBackingUp, "Creating backup")
	next, _ := d.Update(refreshTickMsg{})
	d = next.(Dashboard)
	assert.Contains(t, d.View(), "Creating backup")

	d.manager.Guard.Release(inst.ID, guard.ReasonBackingUp)
	next, _ = d.Update(refreshTickMsg{})
	d = next.(Dashboard)
	assert.NotContains(t, d.View(), "Creating backup")
	assert.Contains(t, d.View(), "idle")
}

func TestDashboardBackupKey(t *testing.T) {
	d, _ := newTestDashboard(t)
	inst := d.cfg.Installations[0]

	_, cmd := d.Update(key("b"))
	require.NotNil(t, cmd)
	done, ok := cmd().(opDoneMsg)
	require.True(t, ok)
	require.NoError(t, done.err)

	after, ok := d.manager.Store.Installation(inst.ID)
	require.True(t, ok)
	assert.Len(t, after.Backups, 1)

	next, _ := d.Update(refreshTickMsg{})
	d = next.(Dashboard)
	require.NotEmpty(t, d.messages)
	assert.Equal(t, ui.SeveritySuccess, d.messages[len(d.messages)-1].Severity)
}

func TestDashboardWaitsBeforeQuitting(t *testing.T) {
	d, _ := newTestDashboard(t)
	d.manager.PreventClose("download", "Downloading game")

	next, cmd := d.Update(key("q"))
	d = next.(Dashboard)
	assert.Nil(t, cmd)
	assert.True(t, d.quitting)
	assert.Contains(t, d.View(), "Waiting for running operations")

	d.manager.AllowClose("download")
	_, cmd = d.Update(refreshTickMsg{})
	require.NotNil(t, cmd)
	_, isQuit := cmd().(tea.QuitMsg)
	assert.True(t, isQuit)
}

func TestDashboardReportsFailedOperation(t *testing.T) {
	d, _ := newTestDashboard(t)
	inst := d.cfg.Installations[0]
	d.manager.Guard.Acquire(inst.ID, guard.ReasonPlaying, "Playing")

	_, cmd := d.Update(key("b"))
	require.NotNil(t, cmd)
	msg := cmd()
	next, _ := d.Update(msg)
	d = next.(Dashboard)
	require.NotEmpty(t, d.messages)
	last := d.messages[len(d.messages)-1]
	assert.Equal(t, ui.SeverityError, last.Severity)
	assert.Contains(t, last.Message, "backup:")
}
