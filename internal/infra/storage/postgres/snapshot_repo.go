package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"treasuryd/internal/core/domain"
	"treasuryd/internal/infra/storage"
)

const defaultHistoryLimit = 100

// SnapshotRepo implements storage.SnapshotRepository using PostgreSQL.
// Token, NFT and wallet lists are stored as JSONB documents; each
// generation is its own row and "latest" is simply the newest timestamp.
type SnapshotRepo struct {
	db *DB
}

// NewSnapshotRepo creates a new PostgreSQL snapshot repository.
func NewSnapshotRepo(db *DB) *SnapshotRepo {
	return &SnapshotRepo{db: db}
}

type snapshotRow struct {
	ID            string         `db:"id"`
	Timestamp     time.Time      `db:"timestamp"`
	TotalUsdValue float64        `db:"total_usd_value"`
	Tokens        []byte         `db:"tokens"`
	Nfts          []byte         `db:"nfts"`
	Wallets       []byte         `db:"wallets"`
	Metadata      sql.NullString `db:"metadata"`
}

func (r snapshotRow) toDomain() (*domain.Snapshot, error) {
	s := &domain.Snapshot{
		ID:            r.ID,
		Timestamp:     r.Timestamp,
		TotalUsdValue: r.TotalUsdValue,
	}
	if err := json.Unmarshal(r.Tokens, &s.Tokens); err != nil {
		return nil, fmt.Errorf("decode tokens: %w", err)
	}
	if err := json.Unmarshal(r.Nfts, &s.Nfts); err != nil {
		return nil, fmt.Errorf("decode nfts: %w", err)
	}
	if err := json.Unmarshal(r.Wallets, &s.Wallets); err != nil {
		return nil, fmt.Errorf("decode wallets: %w", err)
	}
	if r.Metadata.Valid {
		if err := json.Unmarshal([]byte(r.Metadata.String), &s.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return s, nil
}

// GetLatest retrieves the most recently upserted snapshot, (nil, nil) when
// the table is empty.
func (r *SnapshotRepo) GetLatest(ctx context.Context) (*domain.Snapshot, error) {
	var row snapshotRow
	err := r.db.GetContext(ctx, &row, `
		SELECT id, timestamp, total_usd_value, tokens, nfts, wallets, metadata
		FROM treasury_snapshots
		ORDER BY timestamp DESC
		LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest snapshot: %w", err)
	}
	return row.toDomain()
}

// GetHistory retrieves snapshots in a time window, ascending by timestamp.
func (r *SnapshotRepo) GetHistory(
	ctx context.Context,
	q storage.HistoryQuery,
) ([]*domain.Snapshot, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	query := `
		SELECT id, timestamp, total_usd_value, tokens, nfts, wallets, metadata
		FROM treasury_snapshots
		WHERE ($1::timestamptz IS NULL OR timestamp >= $1)
		  AND ($2::timestamptz IS NULL OR timestamp <= $2)
		ORDER BY timestamp ASC
		LIMIT $3`

	var rows []snapshotRow
	if err := r.db.SelectContext(ctx, &rows, query, q.Start, q.End, limit); err != nil {
		return nil, fmt.Errorf("failed to get snapshot history: %w", err)
	}

	snapshots := make([]*domain.Snapshot, 0, len(rows))
	for _, row := range rows {
		s, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, s)
	}
	return snapshots, nil
}

// Upsert stores a snapshot. Rows conflict only on ID, so re-persisting the
// same snapshot updates in place while each new generation appends.
func (r *SnapshotRepo) Upsert(
	ctx context.Context,
	s *domain.Snapshot,
) (*domain.Snapshot, error) {
	stored := *s
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}

	tokens, err := json.Marshal(orEmptyTokens(stored.Tokens))
	if err != nil {
		return nil, fmt.Errorf("encode tokens: %w", err)
	}
	nfts, err := json.Marshal(orEmptyNfts(stored.Nfts))
	if err != nil {
		return nil, fmt.Errorf("encode nfts: %w", err)
	}
	wallets, err := json.Marshal(orEmptyWallets(stored.Wallets))
	if err != nil {
		return nil, fmt.Errorf("encode wallets: %w", err)
	}

	var metadata any
	if stored.Metadata != nil {
		raw, err := json.Marshal(stored.Metadata)
		if err != nil {
			return nil, fmt.Errorf("encode metadata: %w", err)
		}
		metadata = string(raw)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO treasury_snapshots
			(id, timestamp, total_usd_value, tokens, nfts, wallets, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			timestamp = EXCLUDED.timestamp,
			total_usd_value = EXCLUDED.total_usd_value,
			tokens = EXCLUDED.tokens,
			nfts = EXCLUDED.nfts,
			wallets = EXCLUDED.wallets,
			metadata = EXCLUDED.metadata`,
		stored.ID, stored.Timestamp, stored.TotalUsdValue,
		tokens, nfts, wallets, metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert snapshot: %w", err)
	}
	return &stored, nil
}

func orEmptyTokens(v []domain.TokenBalance) []domain.TokenBalance {
	if v == nil {
		return []domain.TokenBalance{}
	}
	return v
}

func orEmptyNfts(v []domain.NftAsset) []domain.NftAsset {
	if v == nil {
		return []domain.NftAsset{}
	}
	return v
}

func orEmptyWallets(v []domain.WalletRef) []domain.WalletRef {
	if v == nil {
		return []domain.WalletRef{}
	}
	return v
}
