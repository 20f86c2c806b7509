// Package handler はストアフロントのHTTPハンドラーとルーティングを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/hitoshi/storefront/internal/clientstate"
	"github.com/hitoshi/storefront/internal/middleware"
	"github.com/hitoshi/storefront/internal/model"
	"github.com/hitoshi/storefront/internal/storeapi"
)

// maxRequestBodySize はJSONリクエストボディの最大サイズ。
const maxRequestBodySize = 1 << 20

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// decodeJSON はリクエストボディをJSONとしてvにデコードする。
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	return json.NewDecoder(r.Body).Decode(v)
}

// currentClient はミドルウェアが格納したクライアントのストアを返す。
func currentClient(ctx context.Context) (*clientstate.Client, bool) {
	return clientstate.FromContext(ctx)
}

// errorResponder はストアAPIのエラーをHTTPレスポンスに変換する。
type errorResponder struct {
	loginPath string
}

// handleError はerrを適切なHTTPステータスとエラーコードに変換して書き込む。
// notFoundがnilでない場合、APIの404はnotFoundとして返す。
//
// APIの401（トークン期限切れを含む）は、この時点で認証ストアがクリア済みのため、
// ログイン画面への遷移を促す応答を返す。
func (e errorResponder) handleError(w http.ResponseWriter, r *http.Request, err error, notFound *model.APIError) {
	if errors.Is(err, storeapi.ErrUnauthorized) {
		middleware.WriteUnauthorized(w, r, e.loginPath, model.NewSessionExpiredError())
		return
	}

	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	var upstream *storeapi.Error
	if errors.As(err, &upstream) {
		switch {
		case upstream.StatusCode == http.StatusNotFound && notFound != nil:
			middleware.WriteErrorResponse(w, http.StatusNotFound, notFound)
		case upstream.StatusCode == http.StatusForbidden:
			middleware.WriteErrorResponse(w, http.StatusForbidden, model.NewForbiddenError())
		case upstream.StatusCode >= 400 && upstream.StatusCode < 500:
			// 入力内容に起因するエラーはAPIのdetailをそのまま返す
			middleware.WriteErrorResponse(w, upstream.StatusCode, model.NewUpstreamFailedError(upstream.Detail))
		default:
			slog.Error("store api error",
				slog.Int("status", upstream.StatusCode),
				slog.String("detail", upstream.Detail),
				slog.String("path", r.URL.Path),
			)
			middleware.WriteErrorResponse(w, http.StatusBadGateway, model.NewUpstreamFailedError(""))
		}
		return
	}

	if errors.Is(err, context.Canceled) {
		// クライアントが切断済みのため応答は届かない
		return
	}

	slog.Error("store api request failed",
		slog.String("error", err.Error()),
		slog.String("path", r.URL.Path),
	)
	middleware.WriteErrorResponse(w, http.StatusBadGateway, model.NewUpstreamFailedError(""))
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeInvalidRequest, model.ErrCodeValidationFailed,
		model.ErrCodeInvalidQuantity, model.ErrCodeCartEmpty, model.ErrCodeInvalidOrderStatus:
		return http.StatusBadRequest
	case model.ErrCodeProductNotFound, model.ErrCodeOrderNotFound, model.ErrCodeImageNotFound:
		return http.StatusNotFound
	case model.ErrCodeSessionExpired, model.ErrCodeLoginRequired, model.ErrCodeLoginFailed:
		return http.StatusUnauthorized
	case model.ErrCodeForbidden, model.ErrCodeCSRFFailed:
		return http.StatusForbidden
	case model.ErrCodeRegistrationFailed:
		return http.StatusBadRequest
	case model.ErrCodeUpstreamFailed:
		return http.StatusBadGateway
	case model.ErrCodeStorageUnavailable:
		return http.StatusServiceUnavailable
	case model.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// parsePagination はskip・limitクエリを読み取る。不正な値はエラーにする。
func parsePagination(r *http.Request) (storeapi.Pagination, bool) {
	var p storeapi.Pagination
	q := r.URL.Query()
	if v := q.Get("skip"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return p, false
		}
		p.Skip = n
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			return p, false
		}
		p.Limit = n
	}
	return p, true
}
