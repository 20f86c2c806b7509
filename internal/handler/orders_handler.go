package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/storefront/internal/catalog"
	"github.com/hitoshi/storefront/internal/middleware"
	"github.com/hitoshi/storefront/internal/model"
	"github.com/hitoshi/storefront/internal/storeapi"
)

// OrdersAPI はログイン中の会員の注文を取得するストアAPIの呼び出し。
type OrdersAPI interface {
	ListOrders(ctx context.Context, p storeapi.Pagination) ([]model.Order, error)
	GetOrder(ctx context.Context, id string) (*model.Order, error)
}

// OrdersHandler は注文履歴のHTTPハンドラー。
type OrdersHandler struct {
	errorResponder
	api OrdersAPI
}

// NewOrdersHandler はOrdersHandlerを生成する。
func NewOrdersHandler(api OrdersAPI, loginPath string) *OrdersHandler {
	return &OrdersHandler{
		errorResponder: errorResponder{loginPath: loginPath},
		api:            api,
	}
}

// orderView は注文に表示用の注文日を添えたレスポンス。
type orderView struct {
	model.Order
	CreatedAtDisplay string `json:"created_at_display,omitempty"`
}

func newOrderView(o model.Order, format func(time.Time) string) orderView {
	v := orderView{Order: o}
	if o.CreatedAt != nil && !o.CreatedAt.IsZero() {
		v.CreatedAtDisplay = format(o.CreatedAt.Time)
	}
	return v
}

// ListOrders は注文一覧を返す。注文日は日付のみ表示する。
// GET /api/orders?skip=&limit=
func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	p, ok := parsePagination(r)
	if !ok {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	orders, err := h.api.ListOrders(r.Context(), p)
	if err != nil {
		h.handleError(w, r, err, nil)
		return
	}
	views := make([]orderView, len(orders))
	for i, o := range orders {
		views[i] = newOrderView(o, catalog.FormatDate)
	}
	writeJSON(w, http.StatusOK, views)
}

// GetOrder は注文詳細を返す。注文日は時刻まで表示する。
// GET /api/orders/{id}
func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	order, err := h.api.GetOrder(r.Context(), id)
	if err != nil {
		h.handleError(w, r, err, model.NewOrderNotFoundError(id))
		return
	}
	writeJSON(w, http.StatusOK, newOrderView(*order, catalog.FormatDateTime))
}
