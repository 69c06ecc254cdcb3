// Package nftindex fetches NFT holdings for treasury wallets from the NFT
// index provider. Holdings are upserted into long-lived asset rows,
// independent of snapshot generation.
package nftindex

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"treasuryd/internal/core/domain"
)

const defaultBaseURL = "https://deep-index.moralis.io/api/v2.2"

// Config holds NFT index provider settings.
type Config struct {
	BaseURL      string        `yaml:"base_url"`
	APIKey       string        `yaml:"api_key"`
	Chain        string        `yaml:"chain"`
	MaxPerWallet int           `yaml:"max_per_wallet"`
	Timeout      time.Duration `yaml:"timeout"`
}

// Adapter implements source.NftSource against the NFT index REST API.
type Adapter struct {
	cfg        Config
	httpClient *http.Client
}

// New creates an NFT index adapter.
func New(cfg Config) *Adapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Chain == "" {
		cfg.Chain = "eth"
	}
	if cfg.MaxPerWallet == 0 {
		cfg.MaxPerWallet = 50
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Adapter{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

func (a *Adapter) get(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-API-Key", a.cfg.APIKey)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("nft index call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("nft index status %d: %s", resp.StatusCode, body)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type nftEntry struct {
	TokenAddress       string `json:"token_address"`
	TokenID            string `json:"token_id"`
	Name               string `json:"name"`
	NormalizedMetadata *struct {
		Name  string `json:"name"`
		Image string `json:"image"`
	} `json:"normalized_metadata"`
}

// FetchNfts returns holdings across the given wallets. A wallet that fails
// is skipped with a warning; the call errors only when every wallet fails.
func (a *Adapter) FetchNfts(ctx context.Context, wallets []string) ([]domain.NftAsset, error) {
	if a.cfg.APIKey == "" {
		return nil, fmt.Errorf("nft index api key not configured")
	}

	var assets []domain.NftAsset
	floors := make(map[string]float64)
	failed := 0

	for _, wallet := range wallets {
		url := fmt.Sprintf("%s/%s/nft?chain=%s&format=decimal&normalizeMetadata=true",
			a.cfg.BaseURL, wallet, a.cfg.Chain)

		var page struct {
			Result []nftEntry `json:"result"`
		}
		if err := a.get(ctx, url, &page); err != nil {
			slog.Warn("NFT fetch failed for wallet", "wallet", wallet, "error", err)
			failed++
			continue
		}

		entries := page.Result
		if len(entries) > a.cfg.MaxPerWallet {
			entries = entries[:a.cfg.MaxPerWallet]
		}

		for _, e := range entries {
			collection, image := e.Name, ""
			if e.NormalizedMetadata != nil {
				if e.NormalizedMetadata.Name != "" {
					collection = e.NormalizedMetadata.Name
				}
				image = e.NormalizedMetadata.Image
			}
			if collection == "" {
				collection = e.TokenAddress
			}

			floor, ok := floors[e.TokenAddress]
			if !ok {
				floor = a.fetchFloorPrice(ctx, e.TokenAddress)
				floors[e.TokenAddress] = floor
			}

			assets = append(assets, domain.NftAsset{
				ContractAddress:   e.TokenAddress,
				TokenID:           e.TokenID,
				Collection:        collection,
				Image:             image,
				FloorPrice:        floor,
				EstimatedValueUsd: floor,
			})
		}
	}

	if len(wallets) > 0 && failed == len(wallets) {
		return nil, fmt.Errorf("nft fetch failed for all %d wallets", failed)
	}
	return assets, nil
}

// fetchFloorPrice returns the collection floor in USD, 0 when unavailable.
func (a *Adapter) fetchFloorPrice(ctx context.Context, contractAddress string) float64 {
	url := fmt.Sprintf("%s/nft/%s/floor-price?chain=%s",
		a.cfg.BaseURL, contractAddress, a.cfg.Chain)

	var out struct {
		FloorPriceUsd float64 `json:"floor_price_usd"`
	}
	if err := a.get(ctx, url, &out); err != nil {
		slog.Debug("Floor price unavailable", "contract", contractAddress, "error", err)
		return 0
	}
	return out.FloorPriceUsd
}
