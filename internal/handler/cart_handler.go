package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/storefront/internal/cart"
	"github.com/hitoshi/storefront/internal/catalog"
	"github.com/hitoshi/storefront/internal/metrics"
	"github.com/hitoshi/storefront/internal/middleware"
	"github.com/hitoshi/storefront/internal/model"
)

// ProductGetter はカートに追加する商品の取得元。
// 価格はクライアントの送信値ではなくAPIの商品情報から取る。
type ProductGetter interface {
	GetProduct(ctx context.Context, id string) (*model.Product, error)
}

// CartHandler はカート操作のHTTPハンドラー。
type CartHandler struct {
	errorResponder
	products ProductGetter
	pricing  cart.PricingRules
	metrics  metrics.MetricsCollector
}

// NewCartHandler はCartHandlerを生成する。
func NewCartHandler(products ProductGetter, pricing cart.PricingRules, mc metrics.MetricsCollector, loginPath string) *CartHandler {
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &CartHandler{
		errorResponder: errorResponder{loginPath: loginPath},
		products:       products,
		pricing:        pricing,
		metrics:        mc,
	}
}

// cartItemResponse はカート明細のレスポンス。
type cartItemResponse struct {
	cart.LineItem
	UnitPrice float64 `json:"unit_price"`
	LineTotal float64 `json:"line_total"`
	ImageURL  string  `json:"image_url,omitempty"`
}

// cartSummaryResponse はカート画面の注文サマリー。
type cartSummaryResponse struct {
	ItemCount             int     `json:"item_count"`
	Subtotal              float64 `json:"subtotal"`
	Discount              float64 `json:"discount"`
	Total                 float64 `json:"total"`
	Shipping              float64 `json:"shipping"`
	Tax                   float64 `json:"tax"`
	GrandTotal            float64 `json:"grand_total"`
	FreeShippingRemaining float64 `json:"free_shipping_remaining"`
	GrandTotalDisplay     string  `json:"grand_total_display"`
}

// cartResponse はカートのレスポンス。
type cartResponse struct {
	Items   []cartItemResponse  `json:"items"`
	Summary cartSummaryResponse `json:"summary"`
}

// addItemRequest は商品追加リクエストのボディ。
type addItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// updateQuantityRequest は数量変更リクエストのボディ。
type updateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

// GetCart はカートの内容とサマリーを返す。
// GET /api/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	client, ok := currentClient(r.Context())
	if !ok {
		middleware.WriteInternalServerError(w)
		return
	}
	writeJSON(w, http.StatusOK, h.buildResponse(client.Cart.Snapshot()))
}

// AddItem は商品をカートに追加する。同じ商品がある場合は数量を加算する。
// POST /api/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	client, ok := currentClient(r.Context())
	if !ok {
		middleware.WriteInternalServerError(w)
		return
	}

	var req addItemRequest
	if err := decodeJSON(w, r, &req); err != nil || req.ProductID == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}
	if req.Quantity < 0 {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidQuantityError(req.Quantity))
		return
	}

	product, err := h.products.GetProduct(r.Context(), req.ProductID)
	if err != nil {
		h.handleError(w, r, err, model.NewProductNotFoundError(req.ProductID))
		return
	}

	if err := client.Cart.Add(r.Context(), *product, req.Quantity); err != nil {
		h.writeStorageError(w, client.ID, err)
		return
	}
	h.metrics.RecordCartMutation("add")

	writeJSON(w, http.StatusOK, h.buildResponse(client.Cart.Snapshot()))
}

// UpdateQuantity は商品の数量を変更する。0の場合は削除する。
// PUT /api/cart/items/{productID}
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	client, ok := currentClient(r.Context())
	if !ok {
		middleware.WriteInternalServerError(w)
		return
	}

	var req updateQuantityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}
	if req.Quantity < 0 {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidQuantityError(req.Quantity))
		return
	}

	if err := client.Cart.SetQuantity(r.Context(), chi.URLParam(r, "productID"), req.Quantity); err != nil {
		h.writeStorageError(w, client.ID, err)
		return
	}
	h.metrics.RecordCartMutation("set_quantity")

	writeJSON(w, http.StatusOK, h.buildResponse(client.Cart.Snapshot()))
}

// RemoveItem は商品をカートから削除する。
// DELETE /api/cart/items/{productID}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	client, ok := currentClient(r.Context())
	if !ok {
		middleware.WriteInternalServerError(w)
		return
	}

	if err := client.Cart.Remove(r.Context(), chi.URLParam(r, "productID")); err != nil {
		h.writeStorageError(w, client.ID, err)
		return
	}
	h.metrics.RecordCartMutation("remove")

	writeJSON(w, http.StatusOK, h.buildResponse(client.Cart.Snapshot()))
}

// ClearCart はカートを空にする。
// DELETE /api/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	client, ok := currentClient(r.Context())
	if !ok {
		middleware.WriteInternalServerError(w)
		return
	}

	if err := client.Cart.Clear(r.Context()); err != nil {
		h.writeStorageError(w, client.ID, err)
		return
	}
	h.metrics.RecordCartMutation("clear")

	writeJSON(w, http.StatusOK, h.buildResponse(client.Cart.Snapshot()))
}

// writeStorageError はスナップショットの保存失敗を503として返す。カートの状態は変更されていない。
func (h *CartHandler) writeStorageError(w http.ResponseWriter, clientID string, err error) {
	slog.Error("failed to persist cart",
		slog.String("client_id", clientID),
		slog.String("error", err.Error()),
	)
	middleware.WriteErrorResponse(w, http.StatusServiceUnavailable, model.NewStorageUnavailableError())
}

func (h *CartHandler) buildResponse(state cart.State) cartResponse {
	items := make([]cartItemResponse, 0, len(state.Items))
	for _, item := range state.Items {
		resp := cartItemResponse{
			LineItem:  item,
			UnitPrice: item.UnitPrice(),
			LineTotal: item.LineTotal(),
		}
		if len(item.Images) > 0 {
			resp.ImageURL = catalog.ImagePath(item.ProductID, 0)
		}
		items = append(items, resp)
	}

	sum := h.pricing.Summarize(state)
	return cartResponse{
		Items: items,
		Summary: cartSummaryResponse{
			ItemCount:             sum.ItemCount,
			Subtotal:              sum.Subtotal,
			Discount:              sum.Discount,
			Total:                 sum.Total,
			Shipping:              sum.Shipping,
			Tax:                   sum.Tax,
			GrandTotal:            sum.GrandTotal,
			FreeShippingRemaining: sum.FreeShippingRemaining,
			GrandTotalDisplay:     catalog.FormatCurrency(sum.GrandTotal),
		},
	}
}
