package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/storefront/internal/imageproxy"
	"github.com/hitoshi/storefront/internal/middleware"
	"github.com/hitoshi/storefront/internal/model"
)

// imageCacheControl は商品画像レスポンスのCache-Controlヘッダー値。
const imageCacheControl = "public, max-age=86400"

// ImageSource は商品画像の取得元。imageproxy.Proxyが実装する。
type ImageSource interface {
	ProductImage(ctx context.Context, productID string, index int) (*imageproxy.Image, error)
}

// ImageHandler は商品画像プロキシのHTTPハンドラー。
type ImageHandler struct {
	errorResponder
	images ImageSource
}

// NewImageHandler はImageHandlerを生成する。
func NewImageHandler(images ImageSource, loginPath string) *ImageHandler {
	return &ImageHandler{
		errorResponder: errorResponder{loginPath: loginPath},
		images:         images,
	}
}

// ServeImage は商品のindex番目の画像を返す。
// GET /images/{productID}/{index}
func (h *ImageHandler) ServeImage(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewImageNotFoundError())
		return
	}

	img, err := h.images.ProductImage(r.Context(), chi.URLParam(r, "productID"), index)
	switch {
	case err == nil:
	case errors.Is(err, imageproxy.ErrImageNotFound),
		errors.Is(err, imageproxy.ErrBlocked),
		errors.Is(err, imageproxy.ErrNotImage):
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewImageNotFoundError())
		return
	case errors.Is(err, imageproxy.ErrTooLarge), errors.Is(err, imageproxy.ErrUpstream):
		middleware.WriteErrorResponse(w, http.StatusBadGateway, model.NewUpstreamFailedError(""))
		return
	default:
		h.handleError(w, r, err, model.NewImageNotFoundError())
		return
	}

	w.Header().Set("Content-Type", img.MIMEType)
	w.Header().Set("Content-Length", strconv.Itoa(len(img.Data)))
	w.Header().Set("Cache-Control", imageCacheControl)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img.Data)
}
