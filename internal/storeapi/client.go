// Package storeapi は外部のストアREST APIのクライアントを提供する。
//
// すべての呼び出しはBearerTransportを通り、コンテキストに格納されたSessionのトークンが付与される。
// APIが401を返した場合、SessionはクリアされErrUnauthorizedと一致するエラーが返る。
// 自動リトライは行わない。
package storeapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hitoshi/storefront/internal/metrics"
)

const (
	// DefaultBaseURL はAPI_BASE_URL未設定時の接続先。
	DefaultBaseURL = "http://localhost:8000/api/v1"
	// maxResponseSize はレスポンスボディの最大サイズ。
	maxResponseSize = 4 << 20
	userAgent       = "Storefront/1.0"
)

type idempotencyKeyCtxKey struct{}

// WithIdempotencyKey はリクエストにIdempotency-Keyヘッダーを付与するコンテキストを返す。
func WithIdempotencyKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, idempotencyKeyCtxKey{}, key)
}

// IdempotencyKeyFrom はコンテキストに格納されたIdempotency-Keyを返す。なければ空文字。
func IdempotencyKeyFrom(ctx context.Context) string {
	key, _ := ctx.Value(idempotencyKeyCtxKey{}).(string)
	return key
}

// Client はストアAPIのクライアント。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
}

// NewHTTPClient はBearerTransportを組み込んだhttp.Clientを生成する。
func NewHTTPClient(timeout time.Duration, mc metrics.MetricsCollector, logger *slog.Logger) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: NewBearerTransport(nil, mc, logger),
	}
}

// NewClient はClientを生成する。httpClientにはNewHTTPClientで生成したものを渡す。
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// idSegment はIDをURLのパスセグメント1つ分にエスケープする。
// "." と ".." はエスケープされずパスの移動として解釈されるため、APIに送らず404として扱う。
func idSegment(id string) (string, error) {
	switch id {
	case "", ".", "..":
		return "", &Error{StatusCode: http.StatusNotFound, Detail: "Not found"}
	}
	return url.PathEscape(id), nil
}

// do はリクエストを送信し、2xxならレスポンスをoutにデコードする。
// outがnilの場合はボディを読み捨てる。
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType string, out any) error {
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if key := IdempotencyKeyFrom(ctx); key != "" {
		req.Header.Set("Idempotency-Key", key)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("ストアAPIの呼び出しに失敗しました",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &Error{StatusCode: resp.StatusCode, Detail: parseDetail(data)}
		level := slog.LevelWarn
		if resp.StatusCode >= 500 {
			level = slog.LevelError
		}
		c.logger.Log(ctx, level, "ストアAPIがエラーステータスを返しました",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("http_status", resp.StatusCode),
			slog.String("detail", apiErr.Detail),
		)
		return apiErr
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, "", out)
}

func (c *Client) sendJSON(ctx context.Context, method, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("リクエストJSONの生成に失敗しました: %w", err)
	}
	return c.do(ctx, method, path, nil, bytes.NewReader(payload), "application/json", out)
}

// Pagination はskip/limitによるページング指定。0の項目は送らない。
type Pagination struct {
	Skip  int
	Limit int
}

func (p Pagination) apply(q url.Values) {
	if p.Skip > 0 {
		q.Set("skip", fmt.Sprint(p.Skip))
	}
	if p.Limit > 0 {
		q.Set("limit", fmt.Sprint(p.Limit))
	}
}
