// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// セッション破棄の理由
const (
	RevokeReasonUnauthorized = "unauthorized" // APIが401を返した
	RevokeReasonExpired      = "expired"      // 送信前にトークンの期限切れを検出した
	RevokeReasonLogout       = "logout"       // 利用者によるログアウト
)

// MetricsCollector はメトリクス収集のインターフェース。
// ストア、APIクライアント、クリーンアップジョブから利用する。
type MetricsCollector interface {
	RecordCartMutation(op string)
	RecordUpstreamStatus(statusCode int)
	RecordUpstreamLatency(duration time.Duration)
	RecordSessionRevoked(reason string)
	RecordSnapshotFailure(key string)
	SetActiveClients(count int)
	RecordSnapshotsPurged(count int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	cartMutations   *prometheus.CounterVec
	upstreamStatus  *prometheus.CounterVec
	upstreamLatency prometheus.Histogram
	sessionRevoked  *prometheus.CounterVec
	snapshotFail    *prometheus.CounterVec
	activeClients   prometheus.Gauge
	snapshotsPurged prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		cartMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_cart_mutations_total",
			Help: "操作別のカート更新数",
		}, []string{"op"}),
		upstreamStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_upstream_status_total",
			Help: "ストアAPIのHTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		upstreamLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "storefront_upstream_latency_seconds",
			Help:    "ストアAPI呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		sessionRevoked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_session_revoked_total",
			Help: "理由別の認証状態の破棄数",
		}, []string{"reason"}),
		snapshotFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_snapshot_failures_total",
			Help: "保存キー別のスナップショット読み書き失敗数",
		}, []string{"key"}),
		activeClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "storefront_active_clients",
			Help: "メモリ上に保持しているクライアント数",
		}),
		snapshotsPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storefront_snapshots_purged_total",
			Help: "保持期間切れで削除されたスナップショットの合計数",
		}),
	}

	reg.MustRegister(
		c.cartMutations,
		c.upstreamStatus,
		c.upstreamLatency,
		c.sessionRevoked,
		c.snapshotFail,
		c.activeClients,
		c.snapshotsPurged,
	)

	return c
}

// RecordCartMutation はカート更新を記録する。
func (c *Collector) RecordCartMutation(op string) {
	c.cartMutations.WithLabelValues(op).Inc()
}

// RecordUpstreamStatus はストアAPIのHTTPステータスコードを記録する。
func (c *Collector) RecordUpstreamStatus(statusCode int) {
	c.upstreamStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordUpstreamLatency はストアAPI呼び出しのレイテンシを記録する。
func (c *Collector) RecordUpstreamLatency(duration time.Duration) {
	c.upstreamLatency.Observe(duration.Seconds())
}

// RecordSessionRevoked は認証状態の破棄を記録する。
func (c *Collector) RecordSessionRevoked(reason string) {
	c.sessionRevoked.WithLabelValues(reason).Inc()
}

// RecordSnapshotFailure はスナップショットの読み書き失敗を記録する。
func (c *Collector) RecordSnapshotFailure(key string) {
	c.snapshotFail.WithLabelValues(key).Inc()
}

// SetActiveClients はメモリ上のクライアント数を設定する。
func (c *Collector) SetActiveClients(count int) {
	c.activeClients.Set(float64(count))
}

// RecordSnapshotsPurged は削除されたスナップショット数を記録する。
func (c *Collector) RecordSnapshotsPurged(count int64) {
	c.snapshotsPurged.Add(float64(count))
}

// Nop は何も記録しないMetricsCollector。テストやメトリクス無効時に使う。
type Nop struct{}

func (Nop) RecordCartMutation(string) {}
func (Nop) RecordUpstreamStatus(int) {}
func (Nop) RecordUpstreamLatency(time.Duration) {}
func (Nop) RecordSessionRevoked(string) {}
func (Nop) RecordSnapshotFailure(string) {}
func (Nop) SetActiveClients(int) {}
func (Nop) RecordSnapshotsPurged(int64) {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
