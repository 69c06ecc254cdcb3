package storage

import (
	"context"
	"time"

	"treasuryd/internal/core/domain"
)

// HistoryQuery bounds a snapshot history read. Nil time bounds are open
// ended; Limit <= 0 means the repository default.
type HistoryQuery struct {
	Start *time.Time
	End   *time.Time
	Limit int
}

// SnapshotRepository handles treasury snapshot storage operations.
// Absence is not an error: GetLatest returns (nil, nil) when the store is
// empty so the caller decides the fallback.
type SnapshotRepository interface {
	// GetLatest retrieves the most recently upserted snapshot
	GetLatest(ctx context.Context) (*domain.Snapshot, error)

	// GetHistory retrieves snapshots in a time window, ascending by timestamp
	GetHistory(ctx context.Context, q HistoryQuery) ([]*domain.Snapshot, error)

	// Upsert stores a snapshot. Each generation is an append; re-upserting
	// the same snapshot ID updates in place rather than duplicating it.
	Upsert(ctx context.Context, s *domain.Snapshot) (*domain.Snapshot, error)
}

// NftAssetRepository handles NFT asset rows keyed by (contract, token id).
type NftAssetRepository interface {
	// UpsertBatch stores assets idempotently by (contract_address, token_id)
	UpsertBatch(ctx context.Context, assets []*domain.NftAsset) error

	// GetAll retrieves all stored assets
	GetAll(ctx context.Context) ([]*domain.NftAsset, error)

	// Get retrieves one asset, (nil, nil) when absent
	Get(ctx context.Context, contractAddress, tokenID string) (*domain.NftAsset, error)
}

// SettingRepository is a key/value store for admin configuration such as the
// tracked treasury wallet list. Values are raw JSON.
type SettingRepository interface {
	// Get retrieves a setting value, (nil, nil) when absent
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a setting value, replacing any previous one
	Set(ctx context.Context, key string, value []byte) error
}
