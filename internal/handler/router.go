package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/storefront/internal/cart"
	"github.com/hitoshi/storefront/internal/catalog"
	"github.com/hitoshi/storefront/internal/metrics"
	"github.com/hitoshi/storefront/internal/middleware"
)

// StoreAPI はハンドラーが使うストアAPIの呼び出しをまとめたもの。storeapi.Clientが実装する。
type StoreAPI interface {
	AuthAPI
	CatalogAPI
	CheckoutAPI
	OrdersAPI
	AdminAPI
}

// ClientStore はクライアント状態の読み込みとログイン時のID再発行を行う。clientstate.Managerが実装する。
type ClientStore interface {
	middleware.ClientLoader
	ClientRotator
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	CORSAllowedOrigin string
	HSTS              bool
	ClientCookie      middleware.ClientCookieConfig
	CSRF              middleware.CSRFConfig
	Clients           ClientStore
	RateLimiter       *middleware.RateLimiter
	LoginPath         string
	TrustProxyHeaders bool // trueの場合X-Forwarded-For等から接続元IPを決める

	// 監視
	HealthChecker   HealthChecker
	Metrics         metrics.MetricsCollector
	MetricsGatherer prometheus.Gatherer

	// ストアAPIと表示
	API       StoreAPI
	Presenter *catalog.Presenter
	Pricing   cart.PricingRules
	Images    ImageSource
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → (RealIP) → Recovery → SecurityHeaders → CORS → ClientID → Logging → RateLimit(General) → [RateLimit(Auth)] → ClientState → CSRF
//
// レート制限は接続元IPで数え、スナップショットを読み込むClientStateより前に置く。
// RealIPはTrustProxyHeadersがtrueの場合のみ使う。
// /health と /metrics はクライアント単位のミドルウェアの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	loginPath := deps.LoginPath
	if loginPath == "" {
		loginPath = middleware.DefaultLoginPath
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	if deps.TrustProxyHeaders {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.HSTS))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.API, deps.Clients, deps.ClientCookie, deps.Metrics, loginPath)
	cartHandler := NewCartHandler(deps.API, deps.Pricing, deps.Metrics, loginPath)
	catalogHandler := NewCatalogHandler(deps.API, deps.Presenter, loginPath)
	checkoutHandler := NewCheckoutHandler(deps.API, deps.Metrics, loginPath)
	ordersHandler := NewOrdersHandler(deps.API, loginPath)
	adminHandler := NewAdminHandler(deps.API, loginPath)
	imageHandler := NewImageHandler(deps.Images, loginPath)

	// --- クライアント状態を必要としないルート ---
	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsGatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.MetricsGatherer))
	}

	// --- クライアント単位のルート ---
	// ミドルウェアスタック: ClientID → Logging → RateLimit(General) → [RateLimit(Auth)] → ClientState → CSRF
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewClientIDMiddleware(deps.ClientCookie))
		r.Use(middleware.NewLoggingMiddleware(logger))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// ログイン・会員登録はスナップショットを読み込む前に接続元IPで制限する
		r.Group(func(r chi.Router) {
			r.Use(deps.RateLimiter.AuthMiddleware())
			r.Use(middleware.NewClientStateMiddleware(deps.Clients))
			r.Use(middleware.NewCSRFMiddleware(deps.CSRF))

			r.Post("/auth/login", authHandler.Login)
			r.Post("/auth/register", authHandler.Register)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.NewClientStateMiddleware(deps.Clients))
			r.Use(middleware.NewCSRFMiddleware(deps.CSRF))

			r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRF))

			// 認証
			r.Post("/auth/logout", authHandler.Logout)
			r.Get("/auth/session", authHandler.Session)
			r.With(middleware.NewRequireAuthMiddleware(loginPath)).Get("/auth/me", authHandler.Me)

			// カタログ
			r.Get("/api/products", catalogHandler.ListProducts)
			r.Get("/api/products/{id}", catalogHandler.GetProduct)
			r.Get("/api/categories", catalogHandler.ListCategories)
			r.Get("/images/{productID}/{index}", imageHandler.ServeImage)

			// カート
			r.Route("/api/cart", func(r chi.Router) {
				r.Get("/", cartHandler.GetCart)
				r.Delete("/", cartHandler.ClearCart)
				r.Post("/items", cartHandler.AddItem)
				r.Put("/items/{productID}", cartHandler.UpdateQuantity)
				r.Delete("/items/{productID}", cartHandler.RemoveItem)
			})

			// --- ログインが必要なルート ---
			r.Group(func(r chi.Router) {
				r.Use(middleware.NewRequireAuthMiddleware(loginPath))

				r.Post("/api/checkout/payment-intent", checkoutHandler.CreatePaymentIntent)
				r.Post("/api/checkout", checkoutHandler.PlaceOrder)

				r.Get("/api/orders", ordersHandler.ListOrders)
				r.Get("/api/orders/{id}", ordersHandler.GetOrder)
			})

			// --- 管理者ルート ---
			r.Route("/api/admin", func(r chi.Router) {
				r.Use(middleware.NewRequireAdminMiddleware(loginPath))

				r.Get("/dashboard", adminHandler.Dashboard)
				r.Get("/orders", adminHandler.ListOrders)
				r.Put("/orders/{id}/status", adminHandler.UpdateOrderStatus)
				r.Get("/users", adminHandler.ListUsers)
				r.Get("/products/low-stock", adminHandler.LowStock)
				r.Post("/products", adminHandler.CreateProduct)
				r.Put("/products/{id}", adminHandler.UpdateProduct)
				r.Delete("/products/{id}", adminHandler.DeleteProduct)
				r.Post("/categories", adminHandler.CreateCategory)
			})
		})
	})

	return r
}
