package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/storefront/internal/auth"
	"github.com/hitoshi/storefront/internal/cart"
	"github.com/hitoshi/storefront/internal/clientstate"
	"github.com/hitoshi/storefront/internal/model"
	"github.com/hitoshi/storefront/internal/storeapi"
)

// --- モック定義 ---

// mockStoreAPI はStoreAPIのモック実装。未設定のメソッドはゼロ値を返す。
type mockStoreAPI struct {
	loginFn               func(ctx context.Context, email, password string) (*model.Token, error)
	registerFn            func(ctx context.Context, reg model.Registration) (*model.User, error)
	meFn                  func(ctx context.Context) (*model.User, error)
	listProductsFn        func(ctx context.Context, f storeapi.ProductFilter) ([]model.Product, error)
	getProductFn          func(ctx context.Context, id string) (*model.Product, error)
	listCategoriesFn      func(ctx context.Context) ([]model.Category, error)
	createPaymentIntentFn func(ctx context.Context, in model.PaymentIntentRequest) (*model.PaymentIntent, error)
	createOrderFn         func(ctx context.Context, in model.OrderRequest) (*model.Order, error)
	listOrdersFn          func(ctx context.Context, p storeapi.Pagination) ([]model.Order, error)
	getOrderFn            func(ctx context.Context, id string) (*model.Order, error)
	dashboardFn           func(ctx context.Context) (*model.Dashboard, error)
	adminOrdersFn         func(ctx context.Context, p storeapi.Pagination, status model.OrderStatus) ([]model.Order, error)
	updateOrderStatusFn   func(ctx context.Context, id string, in model.OrderStatusUpdate) (*model.Order, error)
	usersFn               func(ctx context.Context, p storeapi.Pagination) ([]model.User, error)
	lowStockFn            func(ctx context.Context, threshold int) (*model.LowStockReport, error)
	createProductFn       func(ctx context.Context, in model.ProductInput) (*model.Product, error)
	updateProductFn       func(ctx context.Context, id string, in model.ProductInput) (*model.Product, error)
	deleteProductFn       func(ctx context.Context, id string) error
	createCategoryFn      func(ctx context.Context, in model.Category) (*model.Category, error)
}

func (m *mockStoreAPI) Login(ctx context.Context, email, password string) (*model.Token, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, email, password)
	}
	return nil, nil
}

func (m *mockStoreAPI) Register(ctx context.Context, reg model.Registration) (*model.User, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, reg)
	}
	return nil, nil
}

func (m *mockStoreAPI) Me(ctx context.Context) (*model.User, error) {
	if m.meFn != nil {
		return m.meFn(ctx)
	}
	return nil, nil
}

func (m *mockStoreAPI) ListProducts(ctx context.Context, f storeapi.ProductFilter) ([]model.Product, error) {
	if m.listProductsFn != nil {
		return m.listProductsFn(ctx, f)
	}
	return nil, nil
}

func (m *mockStoreAPI) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	if m.getProductFn != nil {
		return m.getProductFn(ctx, id)
	}
	return nil, nil
}

func (m *mockStoreAPI) ListCategories(ctx context.Context) ([]model.Category, error) {
	if m.listCategoriesFn != nil {
		return m.listCategoriesFn(ctx)
	}
	return nil, nil
}

func (m *mockStoreAPI) CreatePaymentIntent(ctx context.Context, in model.PaymentIntentRequest) (*model.PaymentIntent, error) {
	if m.createPaymentIntentFn != nil {
		return m.createPaymentIntentFn(ctx, in)
	}
	return nil, nil
}

func (m *mockStoreAPI) CreateOrder(ctx context.Context, in model.OrderRequest) (*model.Order, error) {
	if m.createOrderFn != nil {
		return m.createOrderFn(ctx, in)
	}
	return nil, nil
}

func (m *mockStoreAPI) ListOrders(ctx context.Context, p storeapi.Pagination) ([]model.Order, error) {
	if m.listOrdersFn != nil {
		return m.listOrdersFn(ctx, p)
	}
	return nil, nil
}

func (m *mockStoreAPI) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	if m.getOrderFn != nil {
		return m.getOrderFn(ctx, id)
	}
	return nil, nil
}

func (m *mockStoreAPI) Dashboard(ctx context.Context) (*model.Dashboard, error) {
	if m.dashboardFn != nil {
		return m.dashboardFn(ctx)
	}
	return nil, nil
}

func (m *mockStoreAPI) AdminOrders(ctx context.Context, p storeapi.Pagination, status model.OrderStatus) ([]model.Order, error) {
	if m.adminOrdersFn != nil {
		return m.adminOrdersFn(ctx, p, status)
	}
	return nil, nil
}

func (m *mockStoreAPI) UpdateOrderStatus(ctx context.Context, id string, in model.OrderStatusUpdate) (*model.Order, error) {
	if m.updateOrderStatusFn != nil {
		return m.updateOrderStatusFn(ctx, id, in)
	}
	return nil, nil
}

func (m *mockStoreAPI) Users(ctx context.Context, p storeapi.Pagination) ([]model.User, error) {
	if m.usersFn != nil {
		return m.usersFn(ctx, p)
	}
	return nil, nil
}

func (m *mockStoreAPI) LowStock(ctx context.Context, threshold int) (*model.LowStockReport, error) {
	if m.lowStockFn != nil {
		return m.lowStockFn(ctx, threshold)
	}
	return nil, nil
}

func (m *mockStoreAPI) CreateProduct(ctx context.Context, in model.ProductInput) (*model.Product, error) {
	if m.createProductFn != nil {
		return m.createProductFn(ctx, in)
	}
	return nil, nil
}

func (m *mockStoreAPI) UpdateProduct(ctx context.Context, id string, in model.ProductInput) (*model.Product, error) {
	if m.updateProductFn != nil {
		return m.updateProductFn(ctx, id, in)
	}
	return nil, nil
}

func (m *mockStoreAPI) DeleteProduct(ctx context.Context, id string) error {
	if m.deleteProductFn != nil {
		return m.deleteProductFn(ctx, id)
	}
	return nil
}

func (m *mockStoreAPI) CreateCategory(ctx context.Context, in model.Category) (*model.Category, error) {
	if m.createCategoryFn != nil {
		return m.createCategoryFn(ctx, in)
	}
	return nil, nil
}

// compile-time interface check
var (
	_ StoreAPI = (*mockStoreAPI)(nil)
	_ StoreAPI = (*storeapi.Client)(nil)
)

// failingCartPersister は常に保存に失敗するcart.Persister。
type failingCartPersister struct{}

func (failingCartPersister) Save(ctx context.Context, state cart.State) error {
	return errors.New("storage down")
}

// --- テストヘルパー ---

// newTestClient は永続化しないストアを持つクライアントを返す。userがnilでなければログイン済みにする。
func newTestClient(t *testing.T, user *model.User) *clientstate.Client {
	t.Helper()
	c := &clientstate.Client{
		ID:   "client-1",
		Cart: cart.NewStore(cart.State{}, nil),
		Auth: auth.NewStore(auth.State{}, nil),
	}
	if user != nil {
		if err := c.Auth.SetAuth(context.Background(), *user, "token-1"); err != nil {
			t.Fatalf("SetAuth がエラーを返した: %v", err)
		}
	}
	return c
}

// withClient はテスト用にリクエストコンテキストにクライアントとセッションを注入する。
func withClient(r *http.Request, c *clientstate.Client) *http.Request {
	ctx := clientstate.WithClient(r.Context(), c)
	ctx = storeapi.WithSession(ctx, c.Auth)
	return r.WithContext(ctx)
}

// withChiURLParam はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParam(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	return r.WithContext(ctx)
}

// errorBody はエラーレスポンスのボディ。
type errorBody struct {
	Code     string            `json:"code"`
	Fields   map[string]string `json:"fields"`
	Redirect string            `json:"redirect"`
	Message  string            `json:"message"`
}

// parseErrorBody はレスポンスボディからエラーレスポンスをパースするヘルパー。
func parseErrorBody(t *testing.T, w *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("エラーレスポンスのデコードに失敗: %v", err)
	}
	return body
}

// decodeBody はレスポンスボディをvにデコードするヘルパー。
func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("レスポンスのデコードに失敗: %v", err)
	}
}

func testProduct(id string, price float64) *model.Product {
	return &model.Product{
		ID:            id,
		Name:          "Product " + id,
		Brand:         "Brand",
		Price:         model.Price(price),
		Images:        []string{"https://cdn.example.com/" + id + ".jpg"},
		StockQuantity: 10,
		IsActive:      true,
	}
}
