package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var playCmd = &cobra.Command{
	Use:   "play <installation>",
	Short: "Launch the game with the installation's data folder",
	Long: `Launch the installation's game version with its own data folder and wait
for the game to exit. When automatic backups are enabled a backup is taken
first and the game does not start if it fails.`,
	Args: cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			inst, err := findInstallation(a.store.Snapshot(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Launching %s (%s)...\n", inst.Name, inst.Version)
			if err := a.manager.Play(ctx, inst.ID); err != nil {
				return err
			}
			if after, ok := a.store.Installation(inst.ID); ok {
				fmt.Printf("Session ended. Total play time %s\n", formatPlayTime(after.TotalTimePlayed))
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(playCmd)
}
