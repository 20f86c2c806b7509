package repository

import (
	"context"
	"sync"
	"time"
)

type memorySnapshot struct {
	data      []byte
	updatedAt time.Time
}

// MemorySnapshotRepo はプロセス内メモリにスナップショットを保持する。
// 開発環境と単一インスタンス構成向けで、再起動するとすべて失われる。
type MemorySnapshotRepo struct {
	mu        sync.RWMutex
	snapshots map[string]memorySnapshot
	now       func() time.Time
}

// NewMemorySnapshotRepo はMemorySnapshotRepoを生成する。
func NewMemorySnapshotRepo() *MemorySnapshotRepo {
	return &MemorySnapshotRepo{
		snapshots: make(map[string]memorySnapshot),
		now:       time.Now,
	}
}

// Load は指定クライアント・キーのスナップショットを取得する。
func (r *MemorySnapshotRepo) Load(_ context.Context, clientID, key string) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.snapshots[snapshotKey(clientID, key)]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), s.data...), nil
}

// Save はスナップショットを上書き保存する。
func (r *MemorySnapshotRepo) Save(_ context.Context, clientID, key string, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.snapshots[snapshotKey(clientID, key)] = memorySnapshot{
		data:      append([]byte(nil), data...),
		updatedAt: r.now(),
	}
	return nil
}

// Delete はスナップショットを削除する。
func (r *MemorySnapshotRepo) Delete(_ context.Context, clientID, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.snapshots, snapshotKey(clientID, key))
	return nil
}

// DeleteStale はbeforeより前に更新されたスナップショットを削除する。
func (r *MemorySnapshotRepo) DeleteStale(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for k, s := range r.snapshots {
		if s.updatedAt.Before(before) {
			delete(r.snapshots, k)
			n++
		}
	}
	return n, nil
}

// compile-time interface check
var (
	_ SnapshotRepository = (*MemorySnapshotRepo)(nil)
	_ StalePurger        = (*MemorySnapshotRepo)(nil)
)
