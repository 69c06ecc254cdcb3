package domain

import "time"

// Snapshot is one generation of the aggregated treasury state. A snapshot is
// immutable once built: a new generation cycle produces a new snapshot, it
// never mutates an old one. TotalUsdValue is always recomputed from Tokens
// at merge time, never supplied independently.
type Snapshot struct {
	ID            string         `json:"id,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
	TotalUsdValue float64        `json:"totalUsdValue"`
	Tokens        []TokenBalance `json:"tokens"`
	Nfts          []NftAsset     `json:"nfts"`
	Wallets       []WalletRef    `json:"wallets"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// Age returns how old the snapshot is relative to now.
func (s *Snapshot) Age(now time.Time) time.Duration {
	return now.Sub(s.Timestamp)
}

// UpdateEvent is the lightweight invalidation hint broadcast to listeners
// after a successful generation. It carries no snapshot data; listeners
// re-read state through the API.
type UpdateEvent struct {
	TotalUsdValue float64 `json:"totalUsdValue"`
	Timestamp     string  `json:"timestamp"`
	TokenCount    int     `json:"tokenCount"`
}

// NewUpdateEvent builds the broadcast payload for a snapshot.
func NewUpdateEvent(s *Snapshot) UpdateEvent {
	return UpdateEvent{
		TotalUsdValue: s.TotalUsdValue,
		Timestamp:     s.Timestamp.UTC().Format(time.RFC3339),
		TokenCount:    len(s.Tokens),
	}
}
