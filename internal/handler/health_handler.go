package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// healthCheckTimeout はストレージへの疎通確認のタイムアウト。
const healthCheckTimeout = 2 * time.Second

// HealthChecker はスナップショットストレージへの疎通を確認する。
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// healthResponse はヘルスチェックのレスポンス。
type healthResponse struct {
	Status  string `json:"status"`
	Storage string `json:"storage"`
}

// NewHealthHandler は/healthのハンドラーを返す。checkerがnilの場合はストレージを確認しない。
func NewHealthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker == nil {
			writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Storage: "none"})
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		if err := checker.Ping(ctx); err != nil {
			slog.Warn("storage health check failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable", Storage: "down"})
			return
		}
		writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Storage: "up"})
	}
}
