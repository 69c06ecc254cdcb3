package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the daemon's dependency health",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	resp, err := httpClient.Get(serverAddr + "/health/detailed")
	if err != nil {
		slog.Error("Failed to reach daemon", "addr", serverAddr, "error", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		slog.Error("Failed to read health response", "error", err)
		os.Exit(1)
	}

	var report map[string]string
	if err := json.Unmarshal(body, &report); err != nil {
		slog.Error("Unexpected health response", "body", string(body))
		os.Exit(1)
	}

	names := make([]string, 0, len(report))
	for name := range report {
		names = append(names, name)
	}
	sort.Strings(names)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "DEPENDENCY\tSTATUS")
	for _, name := range names {
		_, _ = fmt.Fprintf(w, "%s\t%s\n", name, report[name])
	}
	_ = w.Flush()
}
