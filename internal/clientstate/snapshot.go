package clientstate

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hitoshi/storefront/internal/metrics"
	"github.com/hitoshi/storefront/internal/repository"
)

// 保存キー。クライアントごとに2つのスナップショットを独立に保存する。
const (
	CartStorageKey = "cart-storage"
	AuthStorageKey = "auth-storage"
)

// snapshotVersion はスナップショット形式のバージョン。
const snapshotVersion = 0

// envelope は保存されるスナップショットの外形。
type envelope[T any] struct {
	State   T   `json:"state"`
	Version int `json:"version"`
}

// snapshotPersister は状態をJSONスナップショットとしてリポジトリに書き出す。
// cart.Persister と auth.Persister を満たす。
type snapshotPersister[T any] struct {
	repo     repository.SnapshotRepository
	clientID string
	key      string
	metrics  metrics.MetricsCollector
}

// Save は状態全体をスナップショットとして上書き保存する。
func (p *snapshotPersister[T]) Save(ctx context.Context, state T) error {
	data, err := json.Marshal(envelope[T]{State: state, Version: snapshotVersion})
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", p.key, err)
	}
	if err := p.repo.Save(ctx, p.clientID, p.key, data); err != nil {
		p.metrics.RecordSnapshotFailure(p.key)
		return err
	}
	return nil
}

// Clear はスナップショットを削除する。
func (p *snapshotPersister[T]) Clear(ctx context.Context) error {
	if err := p.repo.Delete(ctx, p.clientID, p.key); err != nil {
		p.metrics.RecordSnapshotFailure(p.key)
		return err
	}
	return nil
}

// decodeSnapshot はスナップショットを状態に復元する。
func decodeSnapshot[T any](data []byte) (T, error) {
	var env envelope[T]
	if err := json.Unmarshal(data, &env); err != nil {
		var zero T
		return zero, err
	}
	return env.State, nil
}
