package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"vslmanager/config"
	"vslmanager/db"
	"vslmanager/lifecycle"
	"vslmanager/logger"
	"vslmanager/moddb"
	"vslmanager/state"
	"vslmanager/ui"
)

// app is everything a command needs once configuration is loaded.
type app struct {
	cfg     config.Config
	db      *gorm.DB
	store   *state.Store
	manager *lifecycle.Manager
}

// bootstrap handles shared initialization logic for commands.
func bootstrap(path string) *app {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := logger.InitLogger(cfg.LogFile, cfg.Debug); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	database, err := db.Open(cfg.DatabasePath)
	if err != nil {
		logger.Log.Fatalw("Failed to open database", zap.String("path", cfg.DatabasePath), zap.Error(err))
	}
	logger.Log.Infow("Database initialized", zap.String("path", cfg.DatabasePath))

	persister := db.NewPersister(database, defaultSettings(cfg))
	store, err := state.Open(context.Background(), persister, logger.Named("state"))
	if err != nil {
		logger.Log.Fatalw("Failed to load state", zap.Error(err))
	}

	m := lifecycle.New(store, logger.Named("lifecycle"))
	m.Notifier = &ui.ConsoleNotifier{}
	m.Scanner.CacheDir = cfg.CacheDir
	m.Scanner.Concurrency = cfg.ScanConcurrency

	client, err := moddb.NewClient(cfg, logger.Named("moddb"))
	if err != nil {
		logger.Log.Warnw("Mod database client disabled", zap.Error(err))
	} else {
		m.Catalog = client
		m.Scanner.Catalog = client
	}

	return &app{cfg: cfg, db: database, store: store, manager: m}
}

func (a *app) close() {
	if err := db.Close(a.db); err != nil {
		logger.Log.Warnw("Failed to close database", zap.Error(err))
	}
}

func defaultSettings(cfg config.Config) state.Settings {
	return state.Settings{
		DefaultInstallationsFolder: cfg.InstallationsDir,
		BackupsFolder:              cfg.BackupsDir,
		VersionsFolder:             cfg.VersionsDir,
	}
}

// withApp runs fn with a bootstrapped app and reports its error the way
// every command does.
func withApp(fn func(ctx context.Context, a *app) error) error {
	a := bootstrap(configDir)
	defer a.close()
	err := fn(context.Background(), a)
	if err != nil {
		logger.Log.Errorw("Command failed", zap.Error(err))
	}
	return describeError(err)
}

// describeError turns engine errors into messages for the terminal.
func describeError(err error) error {
	var cerr *lifecycle.ConflictError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &cerr):
		return fmt.Errorf("%s; try again once it has finished", cerr.Error())
	case errors.Is(err, lifecycle.ErrIO):
		return fmt.Errorf("%w. Check free disk space and permissions, then try again", err)
	}
	return err
}

// findInstallation resolves ref as an installation id, a unique id prefix
// or a case-insensitive name.
func findInstallation(cfg state.Config, ref string) (state.Installation, error) {
	if inst, ok := cfg.FindInstallation(ref); ok {
		return inst, nil
	}
	var matches []state.Installation
	for _, inst := range cfg.Installations {
		if strings.EqualFold(inst.Name, ref) || (len(ref) >= 4 && strings.HasPrefix(inst.ID, ref)) {
			matches = append(matches, inst)
		}
	}
	switch len(matches) {
	case 0:
		return state.Installation{}, fmt.Errorf("%w: installation %q", lifecycle.ErrNotFound, ref)
	case 1:
		return matches[0], nil
	}
	return state.Installation{}, fmt.Errorf("%q matches %d installations, use the id", ref, len(matches))
}

func formatLastPlayed(ms int64) string {
	if ms == state.NeverPlayed {
		return "never"
	}
	return humanize.Time(time.UnixMilli(ms))
}

func formatPlayTime(d time.Duration) string {
	if d <= 0 {
		return "0m"
	}
	d = d.Round(time.Minute)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h == 0 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%dh%02dm", h, m)
}

func formatSize(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.Bytes(uint64(n))
}

func truncate(s string, maxLen int) string {
	if len(s) > maxLen {
		return s[:maxLen-3] + "..."
	}
	return s
}
