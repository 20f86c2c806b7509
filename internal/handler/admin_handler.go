package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/storefront/internal/catalog"
	"github.com/hitoshi/storefront/internal/middleware"
	"github.com/hitoshi/storefront/internal/model"
	"github.com/hitoshi/storefront/internal/storeapi"
)

// AdminAPI は管理画面で使うストアAPIの呼び出し。
type AdminAPI interface {
	Dashboard(ctx context.Context) (*model.Dashboard, error)
	AdminOrders(ctx context.Context, p storeapi.Pagination, status model.OrderStatus) ([]model.Order, error)
	UpdateOrderStatus(ctx context.Context, id string, in model.OrderStatusUpdate) (*model.Order, error)
	Users(ctx context.Context, p storeapi.Pagination) ([]model.User, error)
	LowStock(ctx context.Context, threshold int) (*model.LowStockReport, error)
	CreateProduct(ctx context.Context, in model.ProductInput) (*model.Product, error)
	UpdateProduct(ctx context.Context, id string, in model.ProductInput) (*model.Product, error)
	DeleteProduct(ctx context.Context, id string) error
	CreateCategory(ctx context.Context, in model.Category) (*model.Category, error)
}

// AdminHandler は管理者向けのHTTPハンドラー。ルーティングで管理者権限を要求する前提。
type AdminHandler struct {
	errorResponder
	api AdminAPI
}

// NewAdminHandler はAdminHandlerを生成する。
func NewAdminHandler(api AdminAPI, loginPath string) *AdminHandler {
	return &AdminHandler{
		errorResponder: errorResponder{loginPath: loginPath},
		api:            api,
	}
}

// Dashboard は売上・件数の集計を返す。
// GET /api/admin/dashboard
func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.api.Dashboard(r.Context())
	if err != nil {
		h.handleError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// ListOrders は全会員の注文一覧を返す。
// GET /api/admin/orders?skip=&limit=&status=
func (h *AdminHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	p, ok := parsePagination(r)
	if !ok {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}
	status := model.OrderStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidOrderStatusError(string(status)))
		return
	}

	orders, err := h.api.AdminOrders(r.Context(), p, status)
	if err != nil {
		h.handleError(w, r, err, nil)
		return
	}
	if orders == nil {
		orders = []model.Order{}
	}
	writeJSON(w, http.StatusOK, orders)
}

// UpdateOrderStatus は注文のステータス・追跡番号・メモを更新する。
// PUT /api/admin/orders/{id}/status
func (h *AdminHandler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req model.OrderStatusUpdate
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}
	if req.Status != "" && !req.Status.Valid() {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidOrderStatusError(string(req.Status)))
		return
	}

	id := chi.URLParam(r, "id")
	order, err := h.api.UpdateOrderStatus(r.Context(), id, req)
	if err != nil {
		h.handleError(w, r, err, model.NewOrderNotFoundError(id))
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// ListUsers は会員一覧を返す。
// GET /api/admin/users?skip=&limit=
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	p, ok := parsePagination(r)
	if !ok {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	users, err := h.api.Users(r.Context(), p)
	if err != nil {
		h.handleError(w, r, err, nil)
		return
	}
	if users == nil {
		users = []model.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

// LowStock は在庫僅少の商品を返す。thresholdを省略した場合はAPIの既定値を使う。
// GET /api/admin/products/low-stock?threshold=
func (h *AdminHandler) LowStock(w http.ResponseWriter, r *http.Request) {
	threshold := storeapi.DefaultLowStockThreshold
	if v := r.URL.Query().Get("threshold"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
			return
		}
		threshold = n
	}

	report, err := h.api.LowStock(r.Context(), threshold)
	if err != nil {
		h.handleError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// CreateProduct は商品を作成する。slugが空の場合は商品名から生成する。
// POST /api/admin/products
func (h *AdminHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var in model.ProductInput
	if err := decodeJSON(w, r, &in); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}
	if fields := validateProductInput(in, true); fields != nil {
		middleware.WriteValidationError(w, fields)
		return
	}
	if in.Slug == nil || strings.TrimSpace(*in.Slug) == "" {
		slug := catalog.Slugify(*in.Name)
		in.Slug = &slug
	}

	product, err := h.api.CreateProduct(r.Context(), in)
	if err != nil {
		h.handleError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusCreated, product)
}

// UpdateProduct は指定された項目だけを更新する。
// PUT /api/admin/products/{id}
func (h *AdminHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	var in model.ProductInput
	if err := decodeJSON(w, r, &in); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}
	if fields := validateProductInput(in, false); fields != nil {
		middleware.WriteValidationError(w, fields)
		return
	}
	if in.Slug != nil && strings.TrimSpace(*in.Slug) == "" && in.Name != nil {
		slug := catalog.Slugify(*in.Name)
		in.Slug = &slug
	}

	id := chi.URLParam(r, "id")
	product, err := h.api.UpdateProduct(r.Context(), id, in)
	if err != nil {
		h.handleError(w, r, err, model.NewProductNotFoundError(id))
		return
	}
	writeJSON(w, http.StatusOK, product)
}

// DeleteProduct は商品を削除する。
// DELETE /api/admin/products/{id}
func (h *AdminHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.api.DeleteProduct(r.Context(), id); err != nil {
		h.handleError(w, r, err, model.NewProductNotFoundError(id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateCategory はカテゴリを作成する。slugが空の場合は名前から生成する。
// POST /api/admin/categories
func (h *AdminHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var in model.Category
	if err := decodeJSON(w, r, &in); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		middleware.WriteValidationError(w, map[string]string{"name": "名前を入力してください。"})
		return
	}
	if strings.TrimSpace(in.Slug) == "" {
		in.Slug = catalog.Slugify(in.Name)
	}

	category, err := h.api.CreateCategory(r.Context(), in)
	if err != nil {
		h.handleError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusCreated, category)
}

// validateProductInput は商品入力を検証する。createがtrueの場合は必須項目も確認する。
func validateProductInput(in model.ProductInput, create bool) map[string]string {
	fields := map[string]string{}
	if create {
		if in.Name == nil || strings.TrimSpace(*in.Name) == "" {
			fields["name"] = "名前を入力してください。"
		}
		if in.Price == nil {
			fields["price"] = "価格を入力してください。"
		}
	} else if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		fields["name"] = "名前を空にすることはできません。"
	}
	if in.Price != nil && *in.Price <= 0 {
		fields["price"] = "価格は0より大きい値を入力してください。"
	}
	if in.DiscountPrice != nil {
		switch {
		case *in.DiscountPrice < 0:
			fields["discount_price"] = "割引価格に負の値は指定できません。"
		case in.Price != nil && *in.DiscountPrice >= *in.Price:
			fields["discount_price"] = "割引価格は通常価格より低い値を入力してください。"
		}
	}
	if in.StockQuantity != nil && *in.StockQuantity < 0 {
		fields["stock_quantity"] = "在庫数に負の値は指定できません。"
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}
