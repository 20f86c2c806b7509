package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/storefront/internal/imageproxy"
)

// mockImageSource はImageSourceのモック実装。
type mockImageSource struct {
	productImageFn func(ctx context.Context, productID string, index int) (*imageproxy.Image, error)
}

func (m *mockImageSource) ProductImage(ctx context.Context, productID string, index int) (*imageproxy.Image, error) {
	if m.productImageFn != nil {
		return m.productImageFn(ctx, productID, index)
	}
	return nil, imageproxy.ErrImageNotFound
}

func imageRequest(productID, index string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/images/"+productID+"/"+index, nil)
	return withChiURLParam(req, map[string]string{"productID": productID, "index": index})
}

func TestImageHandler_ServeImage_Success(t *testing.T) {
	src := &mockImageSource{
		productImageFn: func(ctx context.Context, productID string, index int) (*imageproxy.Image, error) {
			if productID != "p1" || index != 1 {
				t.Errorf("args = %s/%d", productID, index)
			}
			return &imageproxy.Image{Data: []byte("\x89PNG"), MIMEType: "image/png"}, nil
		},
	}
	h := NewImageHandler(src, "/auth/login")

	w := httptest.NewRecorder()
	h.ServeImage(w, imageRequest("p1", "1"))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cc := w.Header().Get("Cache-Control"); cc != imageCacheControl {
		t.Errorf("Cache-Control = %q", cc)
	}
	if w.Body.String() != "\x89PNG" {
		t.Errorf("body = %q", w.Body.String())
	}
}

func TestImageHandler_ServeImage_Errors(t *testing.T) {
	tests := []struct {
		name       string
		index      string
		err        error
		wantStatus int
	}{
		{name: "番号が数値でない", index: "x", wantStatus: http.StatusNotFound},
		{name: "番号が負", index: "-1", wantStatus: http.StatusNotFound},
		{name: "画像なし", index: "0", err: imageproxy.ErrImageNotFound, wantStatus: http.StatusNotFound},
		{name: "SSRFで拒否", index: "0", err: fmt.Errorf("%w: private ip", imageproxy.ErrBlocked), wantStatus: http.StatusNotFound},
		{name: "画像でない", index: "0", err: imageproxy.ErrNotImage, wantStatus: http.StatusNotFound},
		{name: "サイズ超過", index: "0", err: imageproxy.ErrTooLarge, wantStatus: http.StatusBadGateway},
		{name: "取得失敗", index: "0", err: fmt.Errorf("%w: status 500", imageproxy.ErrUpstream), wantStatus: http.StatusBadGateway},
		{name: "その他のエラー", index: "0", err: errors.New("dial tcp: timeout"), wantStatus: http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &mockImageSource{
				productImageFn: func(ctx context.Context, productID string, index int) (*imageproxy.Image, error) {
					return nil, tt.err
				},
			}
			h := NewImageHandler(src, "/auth/login")

			w := httptest.NewRecorder()
			h.ServeImage(w, imageRequest("p1", tt.index))

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}
