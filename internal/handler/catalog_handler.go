package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/storefront/internal/catalog"
	"github.com/hitoshi/storefront/internal/middleware"
	"github.com/hitoshi/storefront/internal/model"
	"github.com/hitoshi/storefront/internal/storeapi"
)

// CatalogAPI は商品閲覧に必要なストアAPIの呼び出し。
type CatalogAPI interface {
	ListProducts(ctx context.Context, f storeapi.ProductFilter) ([]model.Product, error)
	GetProduct(ctx context.Context, id string) (*model.Product, error)
	ListCategories(ctx context.Context) ([]model.Category, error)
}

// CatalogHandler は商品一覧・商品詳細・カテゴリのHTTPハンドラー。
type CatalogHandler struct {
	errorResponder
	api       CatalogAPI
	presenter *catalog.Presenter
}

// NewCatalogHandler はCatalogHandlerを生成する。
func NewCatalogHandler(api CatalogAPI, presenter *catalog.Presenter, loginPath string) *CatalogHandler {
	return &CatalogHandler{
		errorResponder: errorResponder{loginPath: loginPath},
		api:            api,
		presenter:      presenter,
	}
}

// ListProducts は商品一覧を返す。
// GET /api/products?skip=&limit=&search=&category=&brand=&min_price=&max_price=&is_featured=&in_stock=&sort_by=&sort_order=
func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	filter, ok := parseProductFilter(r)
	if !ok {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}
	if err := filter.Validate(); err != nil {
		apiErr := model.NewValidationFailedError()
		apiErr.Message = err.Error()
		middleware.WriteErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	products, err := h.api.ListProducts(r.Context(), filter)
	if err != nil {
		h.handleError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, h.presenter.Products(products))
}

// GetProduct は商品詳細を返す。
// GET /api/products/{id}
func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	product, err := h.api.GetProduct(r.Context(), id)
	if err != nil {
		h.handleError(w, r, err, model.NewProductNotFoundError(id))
		return
	}
	writeJSON(w, http.StatusOK, h.presenter.Product(*product))
}

// ListCategories はカテゴリ一覧を返す。
// GET /api/categories
func (h *CatalogHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.api.ListCategories(r.Context())
	if err != nil {
		h.handleError(w, r, err, nil)
		return
	}
	if categories == nil {
		categories = []model.Category{}
	}
	writeJSON(w, http.StatusOK, categories)
}

// parseProductFilter はクエリパラメータから絞り込み条件を読み取る。
// 数値・真偽値として解釈できない値がある場合はfalseを返す。
func parseProductFilter(r *http.Request) (storeapi.ProductFilter, bool) {
	q := r.URL.Query()
	p, ok := parsePagination(r)
	if !ok {
		return storeapi.ProductFilter{}, false
	}

	f := storeapi.ProductFilter{
		Pagination: p,
		Search:     q.Get("search"),
		Category:   q.Get("category"),
		Brand:      q.Get("brand"),
		SortBy:     q.Get("sort_by"),
		SortOrder:  q.Get("sort_order"),
	}

	for name, dst := range map[string]**float64{"min_price": &f.MinPrice, "max_price": &f.MaxPrice} {
		if v := q.Get(name); v != "" {
			n, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return f, false
			}
			*dst = &n
		}
	}
	if v := q.Get("is_featured"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, false
		}
		f.IsFeatured = &b
	}
	if v := q.Get("in_stock"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, false
		}
		f.InStock = b
	}
	return f, true
}
