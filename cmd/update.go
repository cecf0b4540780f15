package cmd

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vslmanager/lifecycle"
	"vslmanager/logger"
	"vslmanager/mods"
	"vslmanager/ui"
)

var modsUpdateCmd = &cobra.Command{
	Use:   "update <installation> [modid...]",
	Short: "Update mods to the newest release for the game version",
	Long: `Check the mod database for newer releases of the installation's mods and
install them. Without mod ids every mod with an update is updated.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		plain, _ := cmd.Flags().GetBool("plain")
		return withApp(func(ctx context.Context, a *app) error {
			inst, err := findInstallation(a.store.Snapshot(), args[0])
			if err != nil {
				return err
			}
			// The progress view owns the terminal.
			a.manager.Notifier = ui.NopNotifier{}

			model := initialUpdateModel(func(progress chan<- UpdateProgressMsg) {
				runModUpdates(ctx, a.manager, inst.ID, args[1:], progress)
			})
			if plain {
				return printUpdateProgress(model)
			}
			if _, err := tea.NewProgram(model).Run(); err != nil {
				return fmt.Errorf("update interface failed: %w", err)
			}
			return nil
		})
	},
}

func init() {
	modsCmd.AddCommand(modsUpdateCmd)
	modsUpdateCmd.Flags().Bool("plain", false, "print progress lines instead of the interactive view")
}

// printUpdateProgress drives the update without a terminal UI.
func printUpdateProgress(m UpdateModel) error {
	go func() {
		defer close(m.progressChan)
		m.run(m.progressChan)
	}()
	for msg := range m.progressChan {
		switch msg.Type {
		case progressError:
			fmt.Fprintln(os.Stderr, ui.SeverityStyle(ui.SeverityError).Render(fmt.Sprintf("%s: %s", msg.ModName, msg.Message)))
		case progressUpdated:
			fmt.Printf("Updated %s to %s\n", msg.ModName, msg.Version)
		case progressSummary, progressStatus:
			fmt.Println(msg.Message)
		}
	}
	return nil
}

// runModUpdates updates the selected mods, or every mod with an update
// when modIDs is empty, reporting each step on progress.
func runModUpdates(ctx context.Context, m *lifecycle.Manager, installationID string, modIDs []string, progress chan<- UpdateProgressMsg) {
	progress <- UpdateProgressMsg{Type: progressStatus, Message: "Scanning mods..."}
	inst, ok := m.Store.Installation(installationID)
	if !ok {
		progress <- UpdateProgressMsg{Type: progressError, Message: "installation no longer exists"}
		return
	}
	res, err := m.ListMods(ctx, installationID)
	if err != nil {
		progress <- UpdateProgressMsg{Type: progressError, Message: describeError(err).Error()}
		return
	}

	wanted := make(map[string]bool, len(modIDs))
	for _, id := range modIDs {
		wanted[id] = true
	}

	updated, failed := 0, 0
	for _, mod := range res.Mods {
		if len(wanted) > 0 && !wanted[mod.ModID] {
			continue
		}
		delete(wanted, mod.ModID)
		progress <- UpdateProgressMsg{Type: progressCheck, ModName: mod.Name, ModID: mod.ModID}

		rel, ok := mods.UpdateAvailable(mod, inst.Version)
		if !ok {
			continue
		}
		progress <- UpdateProgressMsg{Type: progressDownloadStart, ModName: mod.Name, ModID: mod.ModID, Version: rel.ModVersion}
		if _, err := m.UpdateMod(ctx, installationID, mod, rel.ReleaseID); err != nil {
			logger.Log.Errorw("Mod update failed", zap.String("modid", mod.ModID), zap.Error(err))
			progress <- UpdateProgressMsg{Type: progressError, ModName: mod.Name, ModID: mod.ModID, Message: describeError(err).Error()}
			failed++
			continue
		}
		progress <- UpdateProgressMsg{Type: progressUpdated, ModName: mod.Name, ModID: mod.ModID, Version: rel.ModVersion}
		updated++
	}
	for id := range wanted {
		progress <- UpdateProgressMsg{Type: progressError, ModName: id, ModID: id, Message: "not installed"}
		failed++
	}

	progress <- UpdateProgressMsg{
		Type:    progressSummary,
		Message: fmt.Sprintf("%d updated, %d failed, %d unreadable", updated, failed, len(res.Errors)),
	}
}
