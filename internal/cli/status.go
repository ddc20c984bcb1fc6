package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/vietddude/triage/internal/core/config"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the running engine's policy state",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(fmt.Sprintf("http://localhost:%d/policy", cfg.Server.Port))
	if err != nil {
		slog.Error("Failed to reach ops server", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	var policy struct {
		Version uint64  `json:"version"`
		Epsilon float64 `json:"epsilon"`
		Cells   int     `json:"cells"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&policy); err != nil {
		slog.Error("Failed to decode policy status", "error", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "VERSION\tEPSILON\tCELLS")
	_, _ = fmt.Fprintf(w, "%d\t%.4f\t%d\n", policy.Version, policy.Epsilon, policy.Cells)
	_ = w.Flush()
}
