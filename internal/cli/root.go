// Package cli implements the treasuryctl command line client. It talks to
// a running daemon over its HTTP API.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var serverAddr string

var rootCmd = &cobra.Command{
	Use:   "treasuryctl",
	Short: "Control client for the treasury snapshot daemon",
	Long:  `treasuryctl inspects and controls a running treasuryd instance over its HTTP API.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverAddr, "addr", "http://localhost:8080", "address of the treasuryd HTTP API")
}

var httpClient = &http.Client{Timeout: 60 * time.Second}

type apiEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

// callAPI performs a request against the daemon and unwraps the response
// envelope. Non-2xx responses surface the server's message.
func callAPI(method, path string) (json.RawMessage, error) {
	req, err := http.NewRequest(method, serverAddr+path, nil)
	if err != nil {
		return nil, err
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach daemon at %s: %w", serverAddr, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var envelope apiEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("unexpected response (%d): %s", resp.StatusCode, body)
	}
	if !envelope.Success {
		return nil, fmt.Errorf("%s (HTTP %d)", envelope.Message, resp.StatusCode)
	}
	return envelope.Data, nil
}
