// Package custody fetches treasury balances from the multisig custody
// transaction service. It is the authoritative source: its balances win
// outright over every other provider during merge.
package custody

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"treasuryd/internal/core/domain"
)

const defaultBaseURL = "https://safe-transaction-mainnet.safe.global"

// Config holds custody service settings.
type Config struct {
	BaseURL      string        `yaml:"base_url"`
	VaultAddress string        `yaml:"vault_address"`
	Timeout      time.Duration `yaml:"timeout"`
}

// Adapter implements source.TokenSource against the custody REST API.
type Adapter struct {
	cfg        Config
	httpClient *http.Client
}

// New creates a custody adapter.
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

func (a *Adapter) Name() string            { return "custody" }
func (a *Adapter) Kind() domain.SourceKind { return domain.SourceCustody }

type balanceEntry struct {
	TokenAddress string `json:"tokenAddress"`
	Token        *struct {
		Name     string `json:"name"`
		Symbol   string `json:"symbol"`
		Decimals int    `json:"decimals"`
	} `json:"token"`
	Balance        string `json:"balance"`
	FiatBalance    string `json:"fiatBalance"`
	FiatConversion string `json:"fiatConversion"`
}

// FetchTokens returns the vault's current token balances. Fiat fields come
// from the custody service itself, so records carry their own USD price.
func (a *Adapter) FetchTokens(ctx context.Context) ([]domain.TokenBalance, error) {
	if a.cfg.VaultAddress == "" {
		return nil, nil
	}

	url := fmt.Sprintf("%s/api/v1/safes/%s/balances/usd/", a.cfg.BaseURL, a.cfg.VaultAddress)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("custody balances call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("custody api status %d: %s", resp.StatusCode, body)
	}

	var entries []balanceEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode custody balances: %w", err)
	}

	tokens := make([]domain.TokenBalance, 0, len(entries))
	for _, e := range entries {
		symbol, name, decimals := "ETH", "Ethereum", 18
		if e.Token != nil {
			symbol, name, decimals = e.Token.Symbol, e.Token.Name, e.Token.Decimals
		}

		raw, err := strconv.ParseFloat(e.Balance, 64)
		if err != nil {
			continue
		}
		price, _ := strconv.ParseFloat(e.FiatConversion, 64)
		value, _ := strconv.ParseFloat(e.FiatBalance, 64)

		tokens = append(tokens, domain.TokenBalance{
			Symbol:   symbol,
			Name:     name,
			Amount:   raw / math.Pow10(decimals),
			UsdPrice: price,
			UsdValue: value,
			Source:   domain.SourceCustody,
		})
	}
	return tokens, nil
}

// FetchWallets reports the configured vault address.
func (a *Adapter) FetchWallets(ctx context.Context) ([]domain.WalletRef, error) {
	if a.cfg.VaultAddress == "" {
		return nil, nil
	}
	return []domain.WalletRef{
		{Address: a.cfg.VaultAddress, Label: "custody vault", ChainID: 1},
	}, nil
}
