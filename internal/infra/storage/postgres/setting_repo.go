package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// SettingRepo implements storage.SettingRepository using PostgreSQL.
type SettingRepo struct {
	db *DB
}

// NewSettingRepo creates a new PostgreSQL setting repository.
func NewSettingRepo(db *DB) *SettingRepo {
	return &SettingRepo{db: db}
}

// Get retrieves a setting value, (nil, nil) when absent.
func (r *SettingRepo) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := r.db.GetContext(ctx, &value,
		`SELECT value FROM admin_settings WHERE key = $1`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get setting: %w", err)
	}
	return value, nil
}

// Set stores a setting value, replacing any previous one.
func (r *SettingRepo) Set(ctx context.Context, key string, value []byte) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO admin_settings (key, value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = now()`,
		key, value)
	if err != nil {
		return fmt.Errorf("failed to set setting: %w", err)
	}
	return nil
}
