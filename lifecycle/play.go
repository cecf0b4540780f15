package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"vslmanager/guard"
	"vslmanager/state"
	"vslmanager/ui"
)

// Session is a running game on one installation. The installation stays
// busy until Stop.
type Session struct {
	InstallationID string
	Started        time.Time

	m    *Manager
	once sync.Once
	err  error
}

// StartPlaying marks the installation as playing. Installations with
// automatic backups get one first; a failed backup cancels the start.
func (m *Manager) StartPlaying(ctx context.Context, id string) (*Session, error) {
	inst, err := m.installation(id)
	if err != nil {
		return nil, err
	}
	if inst.BackupsAuto {
		if _, err := m.CreateBackup(ctx, id); err != nil {
			return nil, err
		}
	}
	if _, err := m.admit(id, guard.ReasonPlaying, "Playing"); err != nil {
		return nil, err
	}
	s := &Session{InstallationID: id, Started: m.Now(), m: m}
	m.Log.Infow("Play session started", zap.String("installation", id))
	return s, nil
}

// Stop ends the session and records the time played. Calling it again
// returns the first result.
func (s *Session) Stop(ctx context.Context) error {
	s.once.Do(func() {
		defer s.m.Guard.Release(s.InstallationID, guard.ReasonPlaying)
		ended := s.m.Now()
		played := ended.Sub(s.Started)
		_, err := s.m.Store.Dispatch(ctx, state.RecordPlaySession{
			InstallationID: s.InstallationID,
			EndedAt:        ended,
			Duration:       played,
		})
		if err != nil {
			s.err = dispatchError(err)
			s.m.Log.Warnw("Failed to record play session", zap.String("installation", s.InstallationID), zap.Error(err))
			return
		}
		s.m.Log.Infow("Play session ended", zap.String("installation", s.InstallationID), zap.Duration("played", played))
	})
	return s.err
}

// GameExecutable is the game binary inside a game version folder.
func GameExecutable(versionPath string) string {
	if runtime.GOOS == "windows" {
		return filepath.Join(versionPath, "Vintagestory.exe")
	}
	return filepath.Join(versionPath, "Vintagestory")
}

// LaunchArgs builds the command line that runs inst with gv. The data path
// always points at the installation folder.
func LaunchArgs(inst state.Installation, gv state.GameVersion) (exe string, args []string, env []string) {
	exe = GameExecutable(gv.Path)
	args = append([]string{reservedStartParam, inst.Path}, strings.Fields(inst.StartParams)...)
	if inst.MesaGlThread {
		env = append(env, "mesa_glthread=true")
	}
	return exe, args, env
}

// Play runs the game for the installation and blocks until it exits.
func (m *Manager) Play(ctx context.Context, id string) error {
	inst, err := m.installation(id)
	if err != nil {
		return err
	}
	gv, ok := m.Store.Snapshot().FindGameVersion(inst.Version)
	if !ok {
		return invalid("version", "game version %s is not installed", inst.Version)
	}
	exe, args, env := LaunchArgs(inst, gv)
	if !m.Paths.Exists(exe) {
		return ioFailure("launch", exe, os.ErrNotExist)
	}

	session, err := m.StartPlaying(ctx, id)
	if err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, exe, args...)
	cmd.Dir = gv.Path
	cmd.Env = append(os.Environ(), env...)
	m.Log.Infow("Launching game", zap.String("installation", id), zap.String("exe", exe), zap.Strings("args", args))
	runErr := cmd.Run()

	// The session is recorded even if the game was killed.
	stopErr := session.Stop(context.WithoutCancel(ctx))
	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			m.notify(fmt.Sprintf("The game exited with code %d", exitErr.ExitCode()), ui.SeverityWarning)
			return stopErr
		}
		return m.fail("Failed to launch game", ioFailure("launch", exe, runErr))
	}
	return stopErr
}
