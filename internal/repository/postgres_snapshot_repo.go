package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// PostgresSnapshotRepo はPostgreSQLを使用したスナップショットリポジトリ。
type PostgresSnapshotRepo struct {
	db *sql.DB
}

// NewPostgresSnapshotRepo はPostgresSnapshotRepoを生成する。
func NewPostgresSnapshotRepo(db *sql.DB) *PostgresSnapshotRepo {
	return &PostgresSnapshotRepo{db: db}
}

// Load は指定クライアント・キーのスナップショットを取得する。
func (r *PostgresSnapshotRepo) Load(ctx context.Context, clientID, key string) ([]byte, error) {
	var data []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT data FROM client_snapshots WHERE client_id = $1 AND storage_key = $2`,
		clientID, key,
	).Scan(&data)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	return data, nil
}

// Save はスナップショットをUPSERTする。
func (r *PostgresSnapshotRepo) Save(ctx context.Context, clientID, key string, data []byte) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO client_snapshots (client_id, storage_key, data, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (client_id, storage_key)
		 DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
		clientID, key, data,
	)
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// Delete はスナップショットを削除する。
func (r *PostgresSnapshotRepo) Delete(ctx context.Context, clientID, key string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM client_snapshots WHERE client_id = $1 AND storage_key = $2`,
		clientID, key,
	)
	if err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}

// DeleteStale はbeforeより前に更新されたスナップショットを一括削除する。
func (r *PostgresSnapshotRepo) DeleteStale(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM client_snapshots WHERE updated_at < $1`,
		before,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale snapshots: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return n, nil
}

// compile-time interface check
var (
	_ SnapshotRepository = (*PostgresSnapshotRepo)(nil)
	_ StalePurger        = (*PostgresSnapshotRepo)(nil)
)
