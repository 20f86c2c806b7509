package storeapi

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/hitoshi/storefront/internal/model"
)

// DefaultLowStockThreshold は在庫僅少とみなす在庫数の既定値。
const DefaultLowStockThreshold = 10

// Dashboard は管理ダッシュボードの集計を返す。
func (c *Client) Dashboard(ctx context.Context) (*model.Dashboard, error) {
	var d model.Dashboard
	if err := c.getJSON(ctx, "/admin/dashboard", nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// AdminOrders は全会員の注文一覧を返す。statusが空の場合は絞り込まない。
func (c *Client) AdminOrders(ctx context.Context, p Pagination, status model.OrderStatus) ([]model.Order, error) {
	q := url.Values{}
	p.apply(q)
	if status != "" {
		q.Set("status", string(status))
	}
	var orders []model.Order
	if err := c.getJSON(ctx, "/admin/orders", q, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// UpdateOrderStatus は注文のステータス・追跡番号・メモを更新する。
func (c *Client) UpdateOrderStatus(ctx context.Context, id string, in model.OrderStatusUpdate) (*model.Order, error) {
	seg, err := idSegment(id)
	if err != nil {
		return nil, err
	}
	var o model.Order
	if err := c.sendJSON(ctx, http.MethodPut, "/admin/orders/"+seg+"/status", in, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// Users は会員一覧を返す。
func (c *Client) Users(ctx context.Context, p Pagination) ([]model.User, error) {
	q := url.Values{}
	p.apply(q)
	var users []model.User
	if err := c.getJSON(ctx, "/admin/users", q, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// LowStock は在庫数がthreshold未満の商品を返す。thresholdが0以下なら既定値を使う。
func (c *Client) LowStock(ctx context.Context, threshold int) (*model.LowStockReport, error) {
	if threshold <= 0 {
		threshold = DefaultLowStockThreshold
	}
	q := url.Values{"threshold": {strconv.Itoa(threshold)}}
	var report model.LowStockReport
	if err := c.getJSON(ctx, "/admin/products/low-stock", q, &report); err != nil {
		return nil, err
	}
	return &report, nil
}
