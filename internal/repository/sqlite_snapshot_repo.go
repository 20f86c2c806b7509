package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// sqliteSchema はSQLiteのスナップショットテーブル。
// updated_atはUNIXナノ秒で保持する。
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS client_snapshots (
	client_id   TEXT    NOT NULL,
	storage_key TEXT    NOT NULL,
	data        BLOB    NOT NULL,
	updated_at  INTEGER NOT NULL,
	PRIMARY KEY (client_id, storage_key)
);
CREATE INDEX IF NOT EXISTS idx_client_snapshots_updated_at ON client_snapshots (updated_at);
`

// SQLiteSnapshotRepo はSQLiteを使用したスナップショットリポジトリ。
// 単一インスタンスでの運用や開発用途を想定する。
type SQLiteSnapshotRepo struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite はSQLiteデータベースを開き、スナップショットテーブルを作成する。
// pathに":memory:"を指定するとプロセス内のみのデータベースになる。
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	// SQLiteは書き込みが直列化されるため接続は1本に絞る
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create sqlite schema: %w", err)
	}
	return db, nil
}

// NewSQLiteSnapshotRepo はSQLiteSnapshotRepoを生成する。dbはOpenSQLiteで開いたもの。
func NewSQLiteSnapshotRepo(db *sql.DB) *SQLiteSnapshotRepo {
	return &SQLiteSnapshotRepo{db: db, now: time.Now}
}

// Load は指定クライアント・キーのスナップショットを取得する。
func (r *SQLiteSnapshotRepo) Load(ctx context.Context, clientID, key string) ([]byte, error) {
	var data []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT data FROM client_snapshots WHERE client_id = ? AND storage_key = ?`,
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
func (r *SQLiteSnapshotRepo) Save(ctx context.Context, clientID, key string, data []byte) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO client_snapshots (client_id, storage_key, data, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (client_id, storage_key)
		 DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		clientID, key, data, r.now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// Delete はスナップショットを削除する。
func (r *SQLiteSnapshotRepo) Delete(ctx context.Context, clientID, key string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM client_snapshots WHERE client_id = ? AND storage_key = ?`,
		clientID, key,
	)
	if err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}

// DeleteStale はbeforeより前に更新されたスナップショットを一括削除する。
func (r *SQLiteSnapshotRepo) DeleteStale(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM client_snapshots WHERE updated_at < ?`,
		before.UnixNano(),
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
	_ SnapshotRepository = (*SQLiteSnapshotRepo)(nil)
	_ StalePurger        = (*SQLiteSnapshotRepo)(nil)
)
