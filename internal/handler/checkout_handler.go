package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/hitoshi/storefront/internal/metrics"
	"github.com/hitoshi/storefront/internal/middleware"
	"github.com/hitoshi/storefront/internal/model"
	"github.com/hitoshi/storefront/internal/storeapi"
)

// CheckoutAPI は決済と注文作成に必要なストアAPIの呼び出し。
type CheckoutAPI interface {
	CreatePaymentIntent(ctx context.Context, in model.PaymentIntentRequest) (*model.PaymentIntent, error)
	CreateOrder(ctx context.Context, in model.OrderRequest) (*model.Order, error)
}

// CheckoutHandler はカートから決済インテントと注文を作成するHTTPハンドラー。
type CheckoutHandler struct {
	errorResponder
	api     CheckoutAPI
	metrics metrics.MetricsCollector
}

// NewCheckoutHandler はCheckoutHandlerを生成する。
func NewCheckoutHandler(api CheckoutAPI, mc metrics.MetricsCollector, loginPath string) *CheckoutHandler {
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &CheckoutHandler{
		errorResponder: errorResponder{loginPath: loginPath},
		api:            api,
		metrics:        mc,
	}
}

// paymentIntentRequest は決済インテント作成リクエストのボディ。
type paymentIntentRequest struct {
	ShippingAddress map[string]any `json:"shipping_address"`
}

// checkoutRequest は注文確定リクエストのボディ。
type checkoutRequest struct {
	ShippingAddress map[string]any `json:"shipping_address"`
	BillingAddress  map[string]any `json:"billing_address,omitempty"`
	Notes           string         `json:"notes,omitempty"`
	PaymentIntentID string         `json:"payment_intent_id,omitempty"`
}

// CreatePaymentIntent はカートの明細で決済インテントを作成する。金額はAPI側で計算される。
// POST /api/checkout/payment-intent
func (h *CheckoutHandler) CreatePaymentIntent(w http.ResponseWriter, r *http.Request) {
	client, ok := currentClient(r.Context())
	if !ok {
		middleware.WriteInternalServerError(w)
		return
	}

	var req paymentIntentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	state := client.Cart.Snapshot()
	if len(state.Items) == 0 {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewCartEmptyError())
		return
	}

	pi, err := h.api.CreatePaymentIntent(r.Context(), model.PaymentIntentRequest{
		Items:           state.OrderLines(),
		ShippingAddress: req.ShippingAddress,
	})
	if err != nil {
		h.handleError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, pi)
}

// PlaceOrder はカートの明細で注文を作成し、APIが注文を確定した後に注文した明細をカートから差し引く。
// 注文中に別のタブで追加された商品はカートに残る。
// Idempotency-Keyヘッダーがあればそのまま、なければ新しいキーでAPIへ送る。
// POST /api/checkout
func (h *CheckoutHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	client, ok := currentClient(r.Context())
	if !ok {
		middleware.WriteInternalServerError(w)
		return
	}

	var req checkoutRequest
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}
	if len(req.ShippingAddress) == 0 {
		middleware.WriteValidationError(w, map[string]string{"shipping_address": "配送先住所を入力してください。"})
		return
	}

	state := client.Cart.Snapshot()
	if len(state.Items) == 0 {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewCartEmptyError())
		return
	}

	key := r.Header.Get("Idempotency-Key")
	if _, err := uuid.Parse(key); err != nil {
		key = uuid.NewString()
	}
	ctx := storeapi.WithIdempotencyKey(r.Context(), key)

	lines := state.OrderLines()
	order, err := h.api.CreateOrder(ctx, model.OrderRequest{
		Items:           lines,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
		Notes:           req.Notes,
		PaymentIntentID: req.PaymentIntentID,
	})
	if err != nil {
		h.handleError(w, r, err, nil)
		return
	}

	// 注文は確定済みのため、カートの保存に失敗しても注文は返す
	if err := client.Cart.RemoveOrdered(r.Context(), lines); err != nil {
		slog.Error("failed to remove ordered items from cart",
			slog.String("client_id", client.ID),
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	} else {
		h.metrics.RecordCartMutation("checkout")
	}

	writeJSON(w, http.StatusCreated, order)
}
