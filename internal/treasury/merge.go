// Package treasury implements the snapshot pipeline: merging source
// results into a canonical ledger, the generate-or-serve read path, and
// the periodic generation scheduler.
package treasury

import (
	"sort"
	"time"

	"treasuryd/internal/core/domain"
	"treasuryd/internal/infra/source"
)

// MergeInput carries the settled outputs of one generation cycle.
type MergeInput struct {
	// Results are the per-source fetch outcomes, failures included
	Results []source.FetchResult

	// Prices is the price oracle output, USD by symbol
	Prices map[string]float64

	// Nfts are the stored NFT assets folded into the snapshot
	Nfts []domain.NftAsset

	// Now is the generation timestamp
	Now time.Time
}

// Merge combines all source results into one immutable snapshot. Sources
// are processed in precedence order: an authoritative record wins outright
// over any later record with the same symbol, while non-authoritative
// duplicates accumulate. Pure function: both the request path and the
// scheduler call it with no other merge logic anywhere.
func Merge(in MergeInput) *domain.Snapshot {
	results := make([]source.FetchResult, len(in.Results))
	copy(results, in.Results)
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Kind.Precedence() > results[j].Kind.Precedence()
	})

	merged := make(map[string]*domain.TokenBalance)
	var order []string

	for _, res := range results {
		for _, t := range res.Tokens {
			existing, ok := merged[t.Symbol]
			if !ok {
				record := t
				merged[t.Symbol] = &record
				order = append(order, t.Symbol)
				continue
			}
			if existing.Source.Authoritative() {
				// Authoritative balance wins outright
				continue
			}
			existing.Amount += t.Amount
			if existing.UsdPrice == 0 && t.UsdPrice != 0 {
				existing.UsdPrice = t.UsdPrice
			}
		}
	}

	tokens := make([]domain.TokenBalance, 0, len(order))
	total := 0.0
	for _, symbol := range order {
		record := *merged[symbol]

		// Oracle price wins; a provider-supplied price fills the gap for
		// symbols the oracle does not know. Unknown prices resolve to 0.
		price, ok := in.Prices[record.Symbol]
		if !ok {
			price = record.UsdPrice
		}
		record.UsdPrice = price
		record.UsdValue = record.Amount * price

		total += record.UsdValue
		tokens = append(tokens, record)
	}

	sort.SliceStable(tokens, func(i, j int) bool {
		if tokens[i].UsdValue != tokens[j].UsdValue {
			return tokens[i].UsdValue > tokens[j].UsdValue
		}
		return tokens[i].Symbol < tokens[j].Symbol
	})

	return &domain.Snapshot{
		Timestamp:     in.Now.UTC(),
		TotalUsdValue: total,
		Tokens:        tokens,
		Nfts:          in.Nfts,
		Wallets:       unionWallets(results),
		Metadata:      sourceMetadata(in.Results),
	}
}

// unionWallets collects wallet refs across sources, first seen per address.
func unionWallets(results []source.FetchResult) []domain.WalletRef {
	seen := make(map[string]bool)
	wallets := []domain.WalletRef{}
	for _, res := range results {
		for _, w := range res.Wallets {
			if w.Address == "" || seen[w.Address] {
				continue
			}
			seen[w.Address] = true
			wallets = append(wallets, w)
		}
	}
	return wallets
}

// sourceMetadata records per-source outcomes so a persisted snapshot keeps
// the distinction between "source failed" and "zero records".
func sourceMetadata(results []source.FetchResult) map[string]any {
	sources := make(map[string]any, len(results))
	for _, res := range results {
		status := "ok"
		if res.Failed() {
			status = "failed"
		}
		sources[res.Source] = map[string]any{
			"status":  status,
			"records": len(res.Tokens),
		}
	}
	return map[string]any{"sources": sources}
}
