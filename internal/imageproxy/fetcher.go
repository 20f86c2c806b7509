// Package imageproxy は商品画像を外部ホストから取得して配信する。
//
// 商品データの画像URLはAPI側で自由に登録できるため、取得はSSRF対策済みのクライアントで行い、
// サイズ上限と画像MIMEの検証を通ったものだけを返す。
package imageproxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	// DefaultMaxSize は画像の最大サイズ（5MB）。
	DefaultMaxSize = 5 * 1024 * 1024
	// DefaultTimeout は画像取得のタイムアウト。
	DefaultTimeout = 10 * time.Second
	userAgent      = "Storefront/1.0 ImageProxy"
)

var (
	// ErrBlocked はURLがSSRF検証で拒否されたことを表す。
	ErrBlocked = errors.New("image url blocked")
	// ErrNotImage はレスポンスが画像でないことを表す。
	ErrNotImage = errors.New("response is not an image")
	// ErrTooLarge は画像がサイズ上限を超えたことを表す。
	ErrTooLarge = errors.New("image too large")
	// ErrUpstream は画像ホストへのリクエストが失敗したことを表す。
	ErrUpstream = errors.New("image fetch failed")
)

// Image は取得した画像。
type Image struct {
	Data     []byte
	MIMEType string
}

// URLValidator は取得前のURL検証とSSRF対策済みクライアントの生成を行う。
// security.URLGuardが実装する。
type URLValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration) *http.Client
}

// Fetcher は画像の取得機能。同じURLへの同時リクエストは1回の取得にまとめる。
type Fetcher struct {
	guard   URLValidator
	client  *http.Client
	maxSize int64
	logger  *slog.Logger
	group   singleflight.Group
}

// NewFetcher はFetcherを生成する。maxSize、timeoutが0以下の場合はデフォルト値を使う。
func NewFetcher(guard URLValidator, timeout time.Duration, maxSize int64, logger *slog.Logger) *Fetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	var client *http.Client
	if guard != nil {
		client = guard.NewSafeClient(timeout)
	} else {
		client = &http.Client{Timeout: timeout}
	}
	return &Fetcher{
		guard:   guard,
		client:  client,
		maxSize: maxSize,
		logger:  logger,
	}
}

// Fetch は画像を取得する。
func (f *Fetcher) Fetch(ctx context.Context, imageURL string) (*Image, error) {
	if f.guard != nil {
		if err := f.guard.ValidateURL(imageURL); err != nil {
			f.logger.Warn("画像取得: SSRFブロック", "url", imageURL, "error", err)
			return nil, fmt.Errorf("%w: %v", ErrBlocked, err)
		}
	}

	// 呼び出し元のキャンセルが相乗りした他のリクエストに波及しないようにする
	v, err, _ := f.group.Do(imageURL, func() (any, error) {
		return f.fetch(context.WithoutCancel(ctx), imageURL)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Image), nil
}

func (f *Fetcher) fetch(ctx context.Context, imageURL string) (*Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "image/*")

	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Warn("画像取得: HTTPリクエスト失敗", "url", imageURL, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		f.logger.Warn("画像取得: HTTPステータス異常", "url", imageURL, "status", resp.StatusCode)
		return nil, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}

	// Content-Lengthで分かる場合は読み込む前に拒否する
	if resp.ContentLength > f.maxSize {
		f.logger.Warn("画像取得: サイズ超過", "url", imageURL, "size", resp.ContentLength)
		return nil, ErrTooLarge
	}

	mimeType := extractMIMEType(resp.Header.Get("Content-Type"))
	if !isImageMIME(mimeType) {
		f.logger.Warn("画像取得: 画像以外のContent-Type", "url", imageURL, "contentType", mimeType)
		return nil, ErrNotImage
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxSize+1))
	if err != nil {
		f.logger.Warn("画像取得: レスポンス読み取り失敗", "url", imageURL, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	if int64(len(body)) > f.maxSize {
		f.logger.Warn("画像取得: サイズ超過", "url", imageURL, "size", len(body))
		return nil, ErrTooLarge
	}

	return &Image{Data: body, MIMEType: mimeType}, nil
}

// extractMIMEType はContent-Typeヘッダーからメディアタイプを抽出する。
func extractMIMEType(contentType string) string {
	mediaType, _, _ := strings.Cut(contentType, ";")
	return strings.TrimSpace(strings.ToLower(mediaType))
}

// isImageMIME はMIMEタイプが配信してよい画像かどうかを判定する。
// SVGはスクリプトを含められるため配信しない。
func isImageMIME(mimeType string) bool {
	if mimeType == "image/svg+xml" {
		return false
	}
	return strings.HasPrefix(mimeType, "image/")
}
