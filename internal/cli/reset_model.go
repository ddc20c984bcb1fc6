package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/vietddude/triage/internal/core/config"
)

var confirmReset bool

var resetModelCmd = &cobra.Command{
	Use:   "reset-model",
	Short: "Delete the persisted policy snapshot so the engine restarts with full exploration",
	Run:   runResetModel,
}

func init() {
	resetModelCmd.Flags().BoolVar(&confirmReset, "yes", false, "confirm deletion")
	rootCmd.AddCommand(resetModelCmd)
}

func runResetModel(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	if !confirmReset {
		fmt.Printf("This deletes %s and resets all learned routing. Re-run with --yes to confirm.\n",
			cfg.Policy.SnapshotPath)
		os.Exit(1)
	}

	if err := os.Remove(cfg.Policy.SnapshotPath); err != nil {
		if os.IsNotExist(err) {
			fmt.Println("No snapshot to remove.")
			return
		}
		slog.Error("Failed to remove snapshot", "error", err)
		os.Exit(1)
	}
	fmt.Println("Policy snapshot removed.")
}
