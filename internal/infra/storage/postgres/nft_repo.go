package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"treasuryd/internal/core/domain"
)

// NftAssetRepo implements storage.NftAssetRepository using PostgreSQL.
type NftAssetRepo struct {
	db *DB
}

// NewNftAssetRepo creates a new PostgreSQL NFT asset repository.
func NewNftAssetRepo(db *DB) *NftAssetRepo {
	return &NftAssetRepo{db: db}
}

type nftRow struct {
	ID                string          `db:"id"`
	ContractAddress   string          `db:"contract_address"`
	TokenID           string          `db:"token_id"`
	Collection        string          `db:"collection"`
	Image             sql.NullString  `db:"image"`
	FloorPrice        sql.NullFloat64 `db:"floor_price"`
	EstimatedValueUsd sql.NullFloat64 `db:"estimated_value_usd"`
	LastUpdated       time.Time       `db:"last_updated"`
}

func (r nftRow) toDomain() *domain.NftAsset {
	return &domain.NftAsset{
		ID:                r.ID,
		ContractAddress:   r.ContractAddress,
		TokenID:           r.TokenID,
		Collection:        r.Collection,
		Image:             r.Image.String,
		FloorPrice:        r.FloorPrice.Float64,
		EstimatedValueUsd: r.EstimatedValueUsd.Float64,
		LastUpdated:       r.LastUpdated,
	}
}

// UpsertBatch stores assets idempotently keyed by (contract_address, token_id).
func (r *NftAssetRepo) UpsertBatch(ctx context.Context, assets []*domain.NftAsset) error {
	if len(assets) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, a := range assets {
		id := a.ID
		if id == "" {
			id = uuid.NewString()
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO nft_assets
				(id, contract_address, token_id, collection, image,
				 floor_price, estimated_value_usd, last_updated)
			VALUES ($1, $2, $3, $4, $5, $6, $7, now())
			ON CONFLICT (contract_address, token_id) DO UPDATE SET
				collection = EXCLUDED.collection,
				image = EXCLUDED.image,
				floor_price = EXCLUDED.floor_price,
				estimated_value_usd = EXCLUDED.estimated_value_usd,
				last_updated = now()`,
			id, a.ContractAddress, a.TokenID, a.Collection,
			a.Image, a.FloorPrice, a.EstimatedValueUsd)
		if err != nil {
			return fmt.Errorf("failed to upsert nft asset: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetAll retrieves all stored NFT assets.
func (r *NftAssetRepo) GetAll(ctx context.Context) ([]*domain.NftAsset, error) {
	var rows []nftRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id, contract_address, token_id, collection, image,
		       floor_price, estimated_value_usd, last_updated
		FROM nft_assets
		ORDER BY contract_address, token_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to get nft assets: %w", err)
	}

	assets := make([]*domain.NftAsset, 0, len(rows))
	for _, row := range rows {
		assets = append(assets, row.toDomain())
	}
	return assets, nil
}

// Get retrieves one asset, (nil, nil) when absent.
func (r *NftAssetRepo) Get(
	ctx context.Context,
	contractAddress, tokenID string,
) (*domain.NftAsset, error) {
	var row nftRow
	err := r.db.GetContext(ctx, &row, `
		SELECT id, contract_address, token_id, collection, image,
		       floor_price, estimated_value_usd, last_updated
		FROM nft_assets
		WHERE contract_address = $1 AND token_id = $2`,
		contractAddress, tokenID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get nft asset: %w", err)
	}
	return row.toDomain(), nil
}
