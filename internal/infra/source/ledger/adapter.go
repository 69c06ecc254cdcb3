// Package ledger fetches manually maintained treasury positions from a
// spreadsheet values endpoint. It is the lowest-precedence source: the
// merge engine only lets its amounts accumulate with other
// non-authoritative records.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"treasuryd/internal/core/domain"
)

const defaultBaseURL = "https://sheets.googleapis.com"

// Config holds spreadsheet ledger settings.
type Config struct {
	BaseURL       string        `yaml:"base_url"`
	SpreadsheetID string        `yaml:"spreadsheet_id"`
	Range         string        `yaml:"range"`
	APIKey        string        `yaml:"api_key"`
	Timeout       time.Duration `yaml:"timeout"`
}

// Adapter implements source.TokenSource against the spreadsheet API.
// Rows are [symbol, name, amount, usd price?]; the price column is
// optional and rows with an unparseable or negative amount are skipped.
type Adapter struct {
	cfg        Config
	httpClient *http.Client
}

// New creates a ledger adapter.
func New(cfg Config) *Adapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Range == "" {
		cfg.Range = "Treasury!A2:D"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Adapter{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

func (a *Adapter) Name() string            { return "ledger" }
func (a *Adapter) Kind() domain.SourceKind { return domain.SourceManualLedger }

// FetchTokens returns the ledger's token positions.
func (a *Adapter) FetchTokens(ctx context.Context) ([]domain.TokenBalance, error) {
	if a.cfg.SpreadsheetID == "" {
		return nil, nil
	}

	endpoint := fmt.Sprintf("%s/v4/spreadsheets/%s/values/%s?key=%s",
		a.cfg.BaseURL, a.cfg.SpreadsheetID,
		url.PathEscape(a.cfg.Range), url.QueryEscape(a.cfg.APIKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ledger sheet call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("ledger api status %d: %s", resp.StatusCode, body)
	}

	var sheet struct {
		Values [][]string `json:"values"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&sheet); err != nil {
		return nil, fmt.Errorf("decode ledger sheet: %w", err)
	}

	tokens := make([]domain.TokenBalance, 0, len(sheet.Values))
	for _, row := range sheet.Values {
		if len(row) < 3 || row[0] == "" {
			continue
		}
		amount, err := strconv.ParseFloat(row[2], 64)
		if err != nil || amount < 0 {
			// Quantities are non-negative; a negative sheet entry is a
			// bookkeeping mistake, not a position
			continue
		}

		t := domain.TokenBalance{
			Symbol: row[0],
			Name:   row[1],
			Amount: amount,
			Source: domain.SourceManualLedger,
		}
		if len(row) > 3 {
			if price, err := strconv.ParseFloat(row[3], 64); err == nil {
				t.UsdPrice = price
			}
		}
		tokens = append(tokens, t)
	}
	return tokens, nil
}
