package storeapi

import (
	"context"
	"net/http"
	"net/url"

	"github.com/hitoshi/storefront/internal/model"
)

// CreatePaymentIntent は決済インテントを作成し、API側で計算した金額を返す。
func (c *Client) CreatePaymentIntent(ctx context.Context, in model.PaymentIntentRequest) (*model.PaymentIntent, error) {
	var pi model.PaymentIntent
	if err := c.sendJSON(ctx, http.MethodPost, "/orders/create-payment-intent", in, &pi); err != nil {
		return nil, err
	}
	return &pi, nil
}

// CreateOrder は注文を作成する。
func (c *Client) CreateOrder(ctx context.Context, in model.OrderRequest) (*model.Order, error) {
	var o model.Order
	if err := c.sendJSON(ctx, http.MethodPost, "/orders/", in, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// ListOrders はログイン中の会員の注文一覧を返す。
func (c *Client) ListOrders(ctx context.Context, p Pagination) ([]model.Order, error) {
	q := url.Values{}
	p.apply(q)
	var orders []model.Order
	if err := c.getJSON(ctx, "/orders/", q, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// GetOrder は注文を1件返す。
func (c *Client) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	seg, err := idSegment(id)
	if err != nil {
		return nil, err
	}
	var o model.Order
	if err := c.getJSON(ctx, "/orders/"+seg, nil, &o); err != nil {
		return nil, err
	}
	return &o, nil
}
