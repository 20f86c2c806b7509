// Package repository はクライアントスナップショットの永続化を提供する。
//
// スナップショットはクライアントIDと保存キー（"cart-storage"、"auth-storage"）の組で識別され、
// 変更のたびに丸ごと上書きされる。同時書き込みは後勝ちとなる。
package repository

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound はスナップショットが存在しないことを表す。
var ErrNotFound = errors.New("snapshot not found")

// SnapshotRepository はクライアントスナップショットの永続化インターフェース。
type SnapshotRepository interface {
	// Load は保存済みのスナップショットを返す。存在しない場合はErrNotFoundを返す。
	Load(ctx context.Context, clientID, key string) ([]byte, error)
	// Save はスナップショットを上書き保存する。
	Save(ctx context.Context, clientID, key string, data []byte) error
	// Delete はスナップショットを削除する。存在しない場合もエラーにしない。
	Delete(ctx context.Context, clientID, key string) error
}

// StalePurger は一定期間更新されていないスナップショットを削除する。
// 有効期限を自前で管理できないストレージ（PostgreSQL、メモリ）が実装する。
type StalePurger interface {
	// DeleteStale はbeforeより前に更新されたスナップショットを削除し、削除件数を返す。
	DeleteStale(ctx context.Context, before time.Time) (int64, error)
}
