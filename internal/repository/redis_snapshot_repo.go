package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisSnapshotRepo はRedisを使用したスナップショットリポジトリ。
// 保存のたびにTTLを更新するため、古いスナップショットはRedis側で失効する。
type RedisSnapshotRepo struct {
	client    *redis.Client
	retention time.Duration
}

// NewRedisSnapshotRepo はRedisSnapshotRepoを生成する。
// retentionが0以下の場合は有効期限を設定しない。
func NewRedisSnapshotRepo(client *redis.Client, retention time.Duration) *RedisSnapshotRepo {
	return &RedisSnapshotRepo{client: client, retention: retention}
}

// Load は指定クライアント・キーのスナップショットを取得する。
func (r *RedisSnapshotRepo) Load(ctx context.Context, clientID, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, snapshotKey(clientID, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	return data, nil
}

// Save はスナップショットを上書き保存する。
func (r *RedisSnapshotRepo) Save(ctx context.Context, clientID, key string, data []byte) error {
	ttl := r.retention
	if ttl < 0 {
		ttl = 0
	}
	if err := r.client.Set(ctx, snapshotKey(clientID, key), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Delete はスナップショットを削除する。
func (r *RedisSnapshotRepo) Delete(ctx context.Context, clientID, key string) error {
	if err := r.client.Del(ctx, snapshotKey(clientID, key)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

// Ping はRedisへの疎通を確認する。
func (r *RedisSnapshotRepo) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func snapshotKey(clientID, key string) string {
	return fmt.Sprintf("storefront:%s:%s", clientID, key)
}

// compile-time interface check
var _ SnapshotRepository = (*RedisSnapshotRepo)(nil)
