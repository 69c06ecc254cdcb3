package cli

import (
	"encoding/json"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"treasuryd/internal/core/domain"
)

var triggerCmd = &cobra.Command{
	Use:   "trigger",
	Short: "Force an immediate snapshot generation",
	Run:   runTrigger,
}

func init() {
	rootCmd.AddCommand(triggerCmd)
}

func runTrigger(cmd *cobra.Command, args []string) {
	data, err := callAPI("POST", "/api/treasury/refresh")
	if err != nil {
		slog.Error("Refresh failed", "error", err)
		os.Exit(1)
	}

	var snapshot domain.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		slog.Error("Unexpected snapshot payload", "error", err)
		os.Exit(1)
	}

	slog.Info("Snapshot generated",
		"total_usd", snapshot.TotalUsdValue,
		"tokens", len(snapshot.Tokens),
		"timestamp", snapshot.Timestamp)
	printSnapshot(&snapshot)
}
