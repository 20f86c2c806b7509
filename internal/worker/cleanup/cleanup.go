// Package cleanup はクライアント状態の定期クリーンアップジョブを提供する。
// 一定時間アクセスのないクライアントをメモリから解放し、
// 保持期間を超えて更新されていないスナップショットをストレージから削除する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/storefront/internal/metrics"
	"github.com/hitoshi/storefront/internal/repository"
)

const (
	// DefaultIdleTTL はクライアントをメモリに保持する時間のデフォルト値。
	DefaultIdleTTL = 30 * time.Minute
	// DefaultRetention はスナップショットの保持期間のデフォルト値。
	DefaultRetention = 30 * 24 * time.Hour
)

// Evictor はメモリ上のクライアントを解放する。clientstate.Managerが実装する。
type Evictor interface {
	EvictIdle(idle time.Duration) int
	Len() int
}

// CleanupJob はクライアント状態のクリーンアップジョブ。
// 冪等であり、対象がない場合でもエラーにならない。
type CleanupJob struct {
	evictor Evictor
	purger  repository.StalePurger
	metrics metrics.MetricsCollector
	logger  *slog.Logger
	now     func() time.Time

	IdleTTL   time.Duration // メモリ上のクライアントの保持時間（デフォルト: 30分）
	Retention time.Duration // スナップショットの保持期間（デフォルト: 30日）
}

// NewCleanupJob は新しいCleanupJobを生成する。
// evictorがnilの場合はメモリの解放を、purgerがnilの場合はスナップショットの削除を行わない。
// 有効期限をストレージ側で管理するRedisではpurgerにnilを渡す。
func NewCleanupJob(evictor Evictor, purger repository.StalePurger, mc metrics.MetricsCollector, logger *slog.Logger) *CleanupJob {
	if mc == nil {
		mc = metrics.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CleanupJob{
		evictor:   evictor,
		purger:    purger,
		metrics:   mc,
		logger:    logger,
		now:       time.Now,
		IdleTTL:   DefaultIdleTTL,
		Retention: DefaultRetention,
	}
}

// Run はクリーンアップを1回実行する。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := j.now()

	evicted := 0
	if j.evictor != nil {
		evicted = j.evictor.EvictIdle(j.IdleTTL)
		j.metrics.SetActiveClients(j.evictor.Len())
	}

	var purged int64
	if j.purger != nil {
		n, err := j.purger.DeleteStale(ctx, start.Add(-j.Retention))
		if err != nil {
			j.logger.Error("スナップショットのクリーンアップに失敗しました",
				slog.String("error", err.Error()),
				slog.Duration("retention", j.Retention),
			)
			return fmt.Errorf("スナップショットの削除に失敗: %w", err)
		}
		purged = n
		j.metrics.RecordSnapshotsPurged(n)
	}

	j.logger.Info("クリーンアップジョブが完了しました",
		slog.Int("evicted_clients", evicted),
		slog.Int64("purged_snapshots", purged),
		slog.Duration("retention", j.Retention),
		slog.Float64("duration_ms", float64(j.now().Sub(start).Milliseconds())),
	)
	return nil
}

// Start はintervalごとにRunを実行する。起動直後に1回実行し、ctxがキャンセルされるまでブロックする。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("クリーンアップジョブを開始しました",
		slog.Duration("interval", interval),
		slog.Duration("idle_ttl", j.IdleTTL),
	)

	if err := j.Run(ctx); err != nil {
		j.logger.Error("クリーンアップの実行に失敗しました", slog.String("error", err.Error()))
	}

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("クリーンアップジョブを停止しました")
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Error("クリーンアップの実行に失敗しました", slog.String("error", err.Error()))
			}
		}
	}
}
