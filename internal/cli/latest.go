package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"treasuryd/internal/core/domain"
)

var latestCmd = &cobra.Command{
	Use:   "latest",
	Short: "Show the latest treasury snapshot",
	Run:   runLatest,
}

func init() {
	rootCmd.AddCommand(latestCmd)
}

func runLatest(cmd *cobra.Command, args []string) {
	data, err := callAPI("GET", "/api/treasury/snapshot")
	if err != nil {
		slog.Error("Failed to fetch snapshot", "error", err)
		os.Exit(1)
	}

	var snapshot domain.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		slog.Error("Unexpected snapshot payload", "error", err)
		os.Exit(1)
	}

	printSnapshot(&snapshot)
}

func printSnapshot(s *domain.Snapshot) {
	fmt.Printf("Snapshot %s\n", s.Timestamp.Format("2006-01-02 15:04:05 MST"))
	fmt.Printf("Total: $%.2f across %d tokens\n\n", s.TotalUsdValue, len(s.Tokens))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "SYMBOL\tAMOUNT\tPRICE\tVALUE\tSOURCE")
	for _, t := range s.Tokens {
		_, _ = fmt.Fprintf(w, "%s\t%.6f\t$%.4f\t$%.2f\t%s\n",
			t.Symbol, t.Amount, t.UsdPrice, t.UsdValue, t.Source)
	}
	_ = w.Flush()
}
