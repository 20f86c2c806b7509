package storeapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/hitoshi/storefront/internal/model"
)

// ProductFilter は商品一覧の絞り込み条件。ゼロ値の項目は送らない。
type ProductFilter struct {
	Pagination
	Search     string
	Category   string
	Brand      string
	MinPrice   *float64
	MaxPrice   *float64
	IsFeatured *bool
	InStock    bool
	SortBy     string // price | name | created_at
	SortOrder  string // asc | desc
}

// Validate はソート条件と価格範囲を検証する。
func (f ProductFilter) Validate() error {
	switch f.SortBy {
	case "", "price", "name", "created_at":
	default:
		return fmt.Errorf("sort_by must be one of price, name, created_at: %q", f.SortBy)
	}
	switch f.SortOrder {
	case "", "asc", "desc":
	default:
		return fmt.Errorf("sort_order must be asc or desc: %q", f.SortOrder)
	}
	if f.MinPrice != nil && *f.MinPrice < 0 {
		return fmt.Errorf("min_price must not be negative")
	}
	if f.MaxPrice != nil && *f.MaxPrice < 0 {
		return fmt.Errorf("max_price must not be negative")
	}
	if f.Limit > 100 {
		return fmt.Errorf("limit must not exceed 100")
	}
	return nil
}

// Values はクエリパラメータに変換する。
func (f ProductFilter) Values() url.Values {
	q := url.Values{}
	f.Pagination.apply(q)
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	if f.Category != "" {
		q.Set("category", f.Category)
	}
	if f.Brand != "" {
		q.Set("brand", f.Brand)
	}
	if f.MinPrice != nil {
		q.Set("min_price", strconv.FormatFloat(*f.MinPrice, 'f', -1, 64))
	}
	if f.MaxPrice != nil {
		q.Set("max_price", strconv.FormatFloat(*f.MaxPrice, 'f', -1, 64))
	}
	if f.IsFeatured != nil {
		q.Set("is_featured", strconv.FormatBool(*f.IsFeatured))
	}
	if f.InStock {
		q.Set("in_stock", "true")
	}
	if f.SortBy != "" {
		q.Set("sort_by", f.SortBy)
	}
	if f.SortOrder != "" {
		q.Set("sort_order", f.SortOrder)
	}
	return q
}

// ListProducts は条件に合う商品一覧を返す。
func (c *Client) ListProducts(ctx context.Context, f ProductFilter) ([]model.Product, error) {
	var products []model.Product
	if err := c.getJSON(ctx, "/products/", f.Values(), &products); err != nil {
		return nil, err
	}
	return products, nil
}

// GetProduct は商品を1件返す。
func (c *Client) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	seg, err := idSegment(id)
	if err != nil {
		return nil, err
	}
	var p model.Product
	if err := c.getJSON(ctx, "/products/"+seg, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateProduct は商品を作成する（管理者のみ）。
func (c *Client) CreateProduct(ctx context.Context, in model.ProductInput) (*model.Product, error) {
	var p model.Product
	if err := c.sendJSON(ctx, http.MethodPost, "/products/", in, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateProduct は商品を更新する（管理者のみ）。
func (c *Client) UpdateProduct(ctx context.Context, id string, in model.ProductInput) (*model.Product, error) {
	seg, err := idSegment(id)
	if err != nil {
		return nil, err
	}
	var p model.Product
	if err := c.sendJSON(ctx, http.MethodPut, "/products/"+seg, in, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// DeleteProduct は商品を削除する（管理者のみ）。
func (c *Client) DeleteProduct(ctx context.Context, id string) error {
	seg, err := idSegment(id)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodDelete, "/products/"+seg, nil, nil, "", nil)
}

// ListCategories はカテゴリ一覧を返す。
func (c *Client) ListCategories(ctx context.Context) ([]model.Category, error) {
	var categories []model.Category
	if err := c.getJSON(ctx, "/products/categories/", nil, &categories); err != nil {
		return nil, err
	}
	return categories, nil
}

// CreateCategory はカテゴリを作成する（管理者のみ）。
func (c *Client) CreateCategory(ctx context.Context, in model.Category) (*model.Category, error) {
	var cat model.Category
	if err := c.sendJSON(ctx, http.MethodPost, "/products/categories/", in, &cat); err != nil {
		return nil, err
	}
	return &cat, nil
}
