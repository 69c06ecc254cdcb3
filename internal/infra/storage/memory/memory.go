package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"treasuryd/internal/core/domain"
	"treasuryd/internal/infra/storage"
)

const defaultHistoryLimit = 100

// MemoryStorage backs all repositories with mutex-guarded maps. Used by
// tests and as the fallback when no database URL is configured.
type MemoryStorage struct {
	snapshots map[string]*domain.Snapshot
	nfts      map[string]*domain.NftAsset
	settings  map[string][]byte
	mu        sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		snapshots: make(map[string]*domain.Snapshot),
		nfts:      make(map[string]*domain.NftAsset),
		settings:  make(map[string][]byte),
	}
}

// -----------------------------------------------------------------------------
// Snapshot Repository
// -----------------------------------------------------------------------------

type SnapshotRepo struct {
	store *MemoryStorage
}

func NewSnapshotRepo(store *MemoryStorage) *SnapshotRepo {
	return &SnapshotRepo{store: store}
}

func (r *SnapshotRepo) GetLatest(ctx context.Context) (*domain.Snapshot, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var latest *domain.Snapshot
	for _, s := range r.store.snapshots {
		if latest == nil || s.Timestamp.After(latest.Timestamp) {
			latest = s
		}
	}
	return latest, nil
}

func (r *SnapshotRepo) GetHistory(
	ctx context.Context,
	q storage.HistoryQuery,
) ([]*domain.Snapshot, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var out []*domain.Snapshot
	for _, s := range r.store.snapshots {
		if q.Start != nil && s.Timestamp.Before(*q.Start) {
			continue
		}
		if q.End != nil && s.Timestamp.After(*q.End) {
			continue
		}
		out = append(out, s)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})

	limit := q.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *SnapshotRepo) Upsert(
	ctx context.Context,
	s *domain.Snapshot,
) (*domain.Snapshot, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	stored := *s
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	r.store.snapshots[stored.ID] = &stored
	return &stored, nil
}

// -----------------------------------------------------------------------------
// NFT Asset Repository
// -----------------------------------------------------------------------------

type NftAssetRepo struct {
	store *MemoryStorage
}

func NewNftAssetRepo(store *MemoryStorage) *NftAssetRepo {
	return &NftAssetRepo{store: store}
}

func nftKey(contractAddress, tokenID string) string {
	return contractAddress + ":" + tokenID
}

func (r *NftAssetRepo) UpsertBatch(ctx context.Context, assets []*domain.NftAsset) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for _, a := range assets {
		stored := *a
		key := nftKey(stored.ContractAddress, stored.TokenID)
		if prev, ok := r.store.nfts[key]; ok {
			stored.ID = prev.ID
		} else if stored.ID == "" {
			stored.ID = uuid.NewString()
		}
		stored.LastUpdated = time.Now()
		r.store.nfts[key] = &stored
	}
	return nil
}

func (r *NftAssetRepo) GetAll(ctx context.Context) ([]*domain.NftAsset, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	out := make([]*domain.NftAsset, 0, len(r.store.nfts))
	for _, a := range r.store.nfts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ContractAddress != out[j].ContractAddress {
			return out[i].ContractAddress < out[j].ContractAddress
		}
		return out[i].TokenID < out[j].TokenID
	})
	return out, nil
}

func (r *NftAssetRepo) Get(
	ctx context.Context,
	contractAddress, tokenID string,
) (*domain.NftAsset, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	a, ok := r.store.nfts[nftKey(contractAddress, tokenID)]
	if !ok {
		return nil, nil
	}
	return a, nil
}

// -----------------------------------------------------------------------------
// Setting Repository
// -----------------------------------------------------------------------------

type SettingRepo struct {
	store *MemoryStorage
}

func NewSettingRepo(store *MemoryStorage) *SettingRepo {
	return &SettingRepo{store: store}
}

func (r *SettingRepo) Get(ctx context.Context, key string) ([]byte, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	v, ok := r.store.settings[key]
	if !ok {
		return nil, nil
	}
	return v, nil
}

func (r *SettingRepo) Set(ctx context.Context, key string, value []byte) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	r.store.settings[key] = value
	return nil
}
