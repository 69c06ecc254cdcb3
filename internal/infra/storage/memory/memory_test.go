package memory

import (
	"context"
	"testing"
	"time"

	"treasuryd/internal/core/domain"
	"treasuryd/internal/infra/storage"
)

func TestSnapshotRepo_LatestAndIdempotentUpsert(t *testing.T) {
	ctx := context.Background()
	repo := NewSnapshotRepo(NewMemoryStorage())

	older := &domain.Snapshot{Timestamp: time.Now().Add(-time.Hour), TotalUsdValue: 100}
	newer := &domain.Snapshot{Timestamp: time.Now(), TotalUsdValue: 200}

	if _, err := repo.Upsert(ctx, older); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	stored, err := repo.Upsert(ctx, newer)
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if stored.ID == "" {
		t.Error("Expected upsert to assign an ID")
	}

	latest, err := repo.GetLatest(ctx)
	if err != nil {
		t.Fatalf("GetLatest failed: %v", err)
	}
	if latest.TotalUsdValue != 200 {
		t.Errorf("Expected latest total 200, got %f", latest.TotalUsdValue)
	}

	// Re-upserting the same snapshot must not create a second row
	if _, err := repo.Upsert(ctx, stored); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	history, err := repo.GetHistory(ctx, storage.HistoryQuery{})
	if err != nil {
		t.Fatalf("GetHistory failed: %v", err)
	}
	if len(history) != 2 {
		t.Errorf("Expected 2 snapshots after idempotent re-upsert, got %d", len(history))
	}
}

func TestSnapshotRepo_GetLatestEmpty(t *testing.T) {
	repo := NewSnapshotRepo(NewMemoryStorage())

	latest, err := repo.GetLatest(context.Background())
	if err != nil {
		t.Fatalf("GetLatest failed: %v", err)
	}
	if latest != nil {
		t.Error("Expected nil snapshot for empty store")
	}
}

func TestSnapshotRepo_HistoryWindowAndLimit(t *testing.T) {
	ctx := context.Background()
	repo := NewSnapshotRepo(NewMemoryStorage())

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		s := &domain.Snapshot{Timestamp: base.Add(time.Duration(i) * time.Hour)}
		if _, err := repo.Upsert(ctx, s); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}

	start := base.Add(time.Hour)
	end := base.Add(3 * time.Hour)
	history, err := repo.GetHistory(ctx, storage.HistoryQuery{Start: &start, End: &end})
	if err != nil {
		t.Fatalf("GetHistory failed: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("Expected 3 snapshots in window, got %d", len(history))
	}
	for i := 1; i < len(history); i++ {
		if history[i].Timestamp.Before(history[i-1].Timestamp) {
			t.Error("Expected history ascending by timestamp")
		}
	}

	limited, err := repo.GetHistory(ctx, storage.HistoryQuery{Limit: 2})
	if err != nil {
		t.Fatalf("GetHistory failed: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("Expected 2 snapshots with limit, got %d", len(limited))
	}
}

func TestNftAssetRepo_UpsertByContractToken(t *testing.T) {
	ctx := context.Background()
	repo := NewNftAssetRepo(NewMemoryStorage())

	first := &domain.NftAsset{
		ContractAddress: "0xabc",
		TokenID:         "1",
		Collection:      "Kong NFT",
		FloorPrice:      0.5,
	}
	if err := repo.UpsertBatch(ctx, []*domain.NftAsset{first}); err != nil {
		t.Fatalf("UpsertBatch failed: %v", err)
	}

	updated := &domain.NftAsset{
		ContractAddress: "0xabc",
		TokenID:         "1",
		Collection:      "Kong NFT",
		FloorPrice:      0.7,
	}
	if err := repo.UpsertBatch(ctx, []*domain.NftAsset{updated}); err != nil {
		t.Fatalf("UpsertBatch failed: %v", err)
	}

	all, err := repo.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("Expected 1 asset after upsert of same key, got %d", len(all))
	}
	if all[0].FloorPrice != 0.7 {
		t.Errorf("Expected floor price 0.7 after update, got %f", all[0].FloorPrice)
	}

	got, err := repo.Get(ctx, "0xabc", "2")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != nil {
		t.Error("Expected nil for unknown token id")
	}
}

func TestSettingRepo(t *testing.T) {
	ctx := context.Background()
	repo := NewSettingRepo(NewMemoryStorage())

	missing, err := repo.Get(ctx, "treasury_wallets")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if missing != nil {
		t.Error("Expected nil for unset key")
	}

	if err := repo.Set(ctx, "treasury_wallets", []byte(`["0xabc"]`)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	got, err := repo.Get(ctx, "treasury_wallets")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != `["0xabc"]` {
		t.Errorf("Unexpected value: %s", got)
	}
}
