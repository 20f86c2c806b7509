package storeapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/storefront/internal/auth"
	"github.com/hitoshi/storefront/internal/metrics"
)

// Session はリクエストを送るクライアントの認証状態。*auth.Store が満たす。
type Session interface {
	Token() string
	Logout(ctx context.Context) error
}

type sessionKey struct{}

// WithSession はAPI呼び出しに使うSessionをコンテキストに格納する。
// Sessionのないコンテキストでは認証ヘッダーを付けず、401でも何もクリアしない。
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// WithoutSession は認証ヘッダーを付けずに送信するコンテキストを返す。
// ログイン・会員登録など、保存済みのトークンと関係しない呼び出しに使う。
func WithoutSession(ctx context.Context) context.Context {
	return context.WithValue(ctx, sessionKey{}, nil)
}

func sessionFrom(ctx context.Context) Session {
	s, _ := ctx.Value(sessionKey{}).(Session)
	return s
}

// BearerTransport はすべてのAPI呼び出しに認証ヘッダーを付け、401を受けたら認証状態をクリアする。
// JWTの有効期限が切れているトークンは送信せず、401と同じ扱いにする。
type BearerTransport struct {
	Base    http.RoundTripper
	Metrics metrics.MetricsCollector
	Logger  *slog.Logger
	Now     func() time.Time
}

// NewBearerTransport はBearerTransportを生成する。baseがnilの場合はhttp.DefaultTransportを使う。
func NewBearerTransport(base http.RoundTripper, mc metrics.MetricsCollector, logger *slog.Logger) *BearerTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	if mc == nil {
		mc = metrics.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BearerTransport{Base: base, Metrics: mc, Logger: logger, Now: time.Now}
}

// RoundTrip はhttp.RoundTripperを実装する。
func (t *BearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	session := sessionFrom(ctx)

	if session != nil {
		if token := session.Token(); token != "" {
			if auth.TokenExpired(token, t.Now()) {
				t.revoke(ctx, session, metrics.RevokeReasonExpired, req)
				return nil, fmt.Errorf("%w: token expired", ErrUnauthorized)
			}
			req = req.Clone(ctx)
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := t.Now()
	resp, err := t.Base.RoundTrip(req)
	t.Metrics.RecordUpstreamLatency(t.Now().Sub(start))
	if err != nil {
		return nil, err
	}
	t.Metrics.RecordUpstreamStatus(resp.StatusCode)

	if resp.StatusCode == http.StatusUnauthorized && session != nil {
		t.revoke(ctx, session, metrics.RevokeReasonUnauthorized, req)
	}
	return resp, nil
}

func (t *BearerTransport) revoke(ctx context.Context, session Session, reason string, req *http.Request) {
	t.Metrics.RecordSessionRevoked(reason)
	if err := session.Logout(context.WithoutCancel(ctx)); err != nil {
		t.Logger.Error("認証情報のクリアに失敗しました",
			slog.String("reason", reason),
			slog.String("path", req.URL.Path),
			slog.String("error", err.Error()),
		)
		return
	}
	t.Logger.Info("認証情報をクリアしました",
		slog.String("reason", reason),
		slog.String("path", req.URL.Path),
	)
}

// compile-time interface check
var (
	_ http.RoundTripper = (*BearerTransport)(nil)
	_ Session           = (*auth.Store)(nil)
)
