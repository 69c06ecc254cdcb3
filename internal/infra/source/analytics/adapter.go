// Package analytics fetches on-chain balances, token prices and NFT floor
// prices from the analytics query provider. Balance records are
// non-authoritative: duplicates across analytics and the manual ledger
// accumulate during merge. The prices query doubles as the price oracle.
package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"treasuryd/internal/core/domain"
)

const defaultBaseURL = "https://api.dune.com/api/v1"

// Config holds analytics provider settings. Each dataset is a saved query
// executed server-side; only the query IDs differ.
type Config struct {
	BaseURL         string        `yaml:"base_url"`
	APIKey          string        `yaml:"api_key"`
	BalancesQueryID string        `yaml:"balances_query_id"`
	PricesQueryID   string        `yaml:"prices_query_id"`
	FloorsQueryID   string        `yaml:"floors_query_id"`
	Timeout         time.Duration `yaml:"timeout"`
}

// Adapter implements source.TokenSource, source.WalletSource and
// source.PriceSource against the analytics REST API.
type Adapter struct {
	cfg        Config
	httpClient *http.Client
}

// New creates an analytics adapter.
func New(cfg Config) *Adapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Adapter{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

func (a *Adapter) Name() string            { return "analytics" }
func (a *Adapter) Kind() domain.SourceKind { return domain.SourceAnalytics }

// queryRows executes a saved query and decodes its result rows.
func (a *Adapter) queryRows(ctx context.Context, queryID string, out any) error {
	if a.cfg.APIKey == "" {
		return fmt.Errorf("analytics api key not configured")
	}

	url := fmt.Sprintf("%s/query/%s/results", a.cfg.BaseURL, queryID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("x-dune-api-key", a.cfg.APIKey)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("analytics query call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("analytics api status %d: %s", resp.StatusCode, body)
	}

	var envelope struct {
		Result struct {
			Rows json.RawMessage `json:"rows"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode analytics response: %w", err)
	}
	if envelope.Result.Rows == nil {
		return nil
	}
	if err := json.Unmarshal(envelope.Result.Rows, out); err != nil {
		return fmt.Errorf("decode analytics rows: %w", err)
	}
	return nil
}

type balanceRow struct {
	Address string  `json:"address"`
	Symbol  string  `json:"symbol"`
	Name    string  `json:"name"`
	Amount  float64 `json:"amount"`
}

// FetchTokens returns token balances across all tracked wallets. The same
// symbol held by several wallets appears once per wallet; the merge engine
// accumulates them.
func (a *Adapter) FetchTokens(ctx context.Context) ([]domain.TokenBalance, error) {
	if a.cfg.BalancesQueryID == "" {
		return nil, nil
	}

	var rows []balanceRow
	if err := a.queryRows(ctx, a.cfg.BalancesQueryID, &rows); err != nil {
		return nil, err
	}

	tokens := make([]domain.TokenBalance, 0, len(rows))
	for _, row := range rows {
		tokens = append(tokens, domain.TokenBalance{
			Symbol: row.Symbol,
			Name:   row.Name,
			Amount: row.Amount,
			Source: domain.SourceAnalytics,
		})
	}
	return tokens, nil
}

// FetchWallets returns the distinct wallet addresses seen in the balances
// query, in first-seen order.
func (a *Adapter) FetchWallets(ctx context.Context) ([]domain.WalletRef, error) {
	if a.cfg.BalancesQueryID == "" {
		return nil, nil
	}

	var rows []balanceRow
	if err := a.queryRows(ctx, a.cfg.BalancesQueryID, &rows); err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var wallets []domain.WalletRef
	for _, row := range rows {
		if row.Address == "" || seen[row.Address] {
			continue
		}
		seen[row.Address] = true
		wallets = append(wallets, domain.WalletRef{Address: row.Address, ChainID: 1})
	}
	return wallets, nil
}

type priceRow struct {
	Symbol string  `json:"symbol"`
	Name   string  `json:"name"`
	Price  float64 `json:"price"`
}

// FetchPrices returns USD prices by symbol.
func (a *Adapter) FetchPrices(ctx context.Context) (map[string]float64, error) {
	if a.cfg.PricesQueryID == "" {
		return nil, nil
	}

	var rows []priceRow
	if err := a.queryRows(ctx, a.cfg.PricesQueryID, &rows); err != nil {
		return nil, err
	}

	prices := make(map[string]float64, len(rows))
	for _, row := range rows {
		prices[row.Symbol] = row.Price
	}
	return prices, nil
}

type floorRow struct {
	Collection string  `json:"collection"`
	FloorPrice float64 `json:"floor_price"`
}

// FetchNftFloors returns NFT floor prices by collection, used to backfill
// holdings the NFT index reports without a floor.
func (a *Adapter) FetchNftFloors(ctx context.Context) (map[string]float64, error) {
	if a.cfg.FloorsQueryID == "" {
		return nil, nil
	}

	var rows []floorRow
	if err := a.queryRows(ctx, a.cfg.FloorsQueryID, &rows); err != nil {
		return nil, err
	}

	floors := make(map[string]float64, len(rows))
	for _, row := range rows {
		floors[row.Collection] = row.FloorPrice
	}
	return floors, nil
}
