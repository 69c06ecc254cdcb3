package source

import (
	"context"
	"log/slog"
	"sync"

	"treasuryd/internal/core/domain"
	"treasuryd/internal/metrics"
)

// TokenSource is the contract every balance provider implements. Fetch must
// be safe to call concurrently with itself: the scheduler and a direct read
// request may both invoke it.
type TokenSource interface {
	// Name returns the provider name used in logs and metrics
	Name() string

	// Kind returns the provenance tag stamped on every returned record
	Kind() domain.SourceKind

	// FetchTokens returns the provider's current token balances
	FetchTokens(ctx context.Context) ([]domain.TokenBalance, error)
}

// WalletSource is implemented by providers that also report the treasury
// wallet addresses they cover.
type WalletSource interface {
	FetchWallets(ctx context.Context) ([]domain.WalletRef, error)
}

// PriceSource supplies USD prices by symbol. It is the price oracle for the
// merge engine; symbols it does not know resolve to price 0 unless the
// record carries a provider-supplied price.
type PriceSource interface {
	FetchPrices(ctx context.Context) (map[string]float64, error)
}

// NftSource fetches NFT holdings for a set of wallet addresses.
type NftSource interface {
	FetchNfts(ctx context.Context, wallets []string) ([]domain.NftAsset, error)
}

// FetchResult is the settled outcome of one source fetch. Failures are kept
// as typed results rather than collapsed into empty slices so the merge
// engine can tell "source failed" from "legitimately zero records".
type FetchResult struct {
	Source  string
	Kind    domain.SourceKind
	Tokens  []domain.TokenBalance
	Wallets []domain.WalletRef
	Err     error
}

// Failed reports whether the fetch errored.
func (r FetchResult) Failed() bool {
	return r.Err != nil
}

// Collect fans out to all sources concurrently and waits for every fetch to
// settle. A failing source becomes an empty, error-tagged contribution; it
// never fails the cycle and never blocks the other sources beyond the wait.
func Collect(ctx context.Context, sources []TokenSource) []FetchResult {
	results := make([]FetchResult, len(sources))

	var wg sync.WaitGroup
	for i, src := range sources {
		wg.Add(1)
		go func(i int, src TokenSource) {
			defer wg.Done()
			results[i] = fetchOne(ctx, src)
		}(i, src)
	}
	wg.Wait()

	return results
}

func fetchOne(ctx context.Context, src TokenSource) FetchResult {
	result := FetchResult{Source: src.Name(), Kind: src.Kind()}

	tokens, err := src.FetchTokens(ctx)
	if err != nil {
		result.Err = err
		metrics.SourceFetchTotal.WithLabelValues(src.Name(), "error").Inc()
		slog.Warn("Source fetch failed, contributing zero records",
			"source", src.Name(), "error", err)
		return result
	}
	result.Tokens = tokens

	if ws, ok := src.(WalletSource); ok {
		wallets, err := ws.FetchWallets(ctx)
		if err != nil {
			slog.Warn("Wallet fetch failed", "source", src.Name(), "error", err)
		} else {
			result.Wallets = wallets
		}
	}

	metrics.SourceFetchTotal.WithLabelValues(src.Name(), "ok").Inc()
	metrics.SourceRecords.WithLabelValues(src.Name()).Set(float64(len(tokens)))
	slog.Debug("Source fetch completed", "source", src.Name(), "records", len(tokens))
	return result
}
