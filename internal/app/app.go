package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/storefront/internal/cart"
	"github.com/hitoshi/storefront/internal/catalog"
	"github.com/hitoshi/storefront/internal/clientstate"
	"github.com/hitoshi/storefront/internal/config"
	"github.com/hitoshi/storefront/internal/database"
	"github.com/hitoshi/storefront/internal/handler"
	"github.com/hitoshi/storefront/internal/imageproxy"
	"github.com/hitoshi/storefront/internal/logger"
	"github.com/hitoshi/storefront/internal/metrics"
	"github.com/hitoshi/storefront/internal/middleware"
	"github.com/hitoshi/storefront/internal/repository"
	"github.com/hitoshi/storefront/internal/security"
	"github.com/hitoshi/storefront/internal/storeapi"
	"github.com/hitoshi/storefront/internal/worker/cleanup"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	level := logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	level.Set(logger.ParseLevel(cfg.LogLevel))
	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("storage", cfg.StorageDriver),
		slog.String("api_base_url", cfg.APIBaseURL),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandCleanup:
		return runCleanup(cfg)
	default:
		return runServe(cfg)
	}
}

// storage はスナップショットの保存先と、その付随機能をまとめたもの。
type storage struct {
	repo   repository.SnapshotRepository
	purger repository.StalePurger // nilの場合はストレージ側で期限切れを管理する
	health handler.HealthChecker  // nilの場合はヘルスチェックでストレージを確認しない
	close  func() error
}

// pingFunc は関数をhandler.HealthCheckerとして扱うアダプタ。
type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

// openStorage は設定されたドライバーのスナップショットストレージを開き、疎通を確認する。
func openStorage(ctx context.Context, cfg *config.Config) (*storage, error) {
	switch cfg.StorageDriver {
	case config.StoragePostgres:
		db, err := database.Open(cfg.DatabaseURL, database.DefaultPoolConfig())
		if err != nil {
			return nil, err
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		repo := repository.NewPostgresSnapshotRepo(db)
		return &storage{repo: repo, purger: repo, health: pingFunc(db.PingContext), close: db.Close}, nil

	case config.StorageRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)
		repo := repository.NewRedisSnapshotRepo(client, cfg.ClientStorageRetention)
		if err := repo.Ping(ctx); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return &storage{repo: repo, health: repo, close: client.Close}, nil

	case config.StorageSQLite:
		db, err := repository.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		repo := repository.NewSQLiteSnapshotRepo(db)
		return &storage{repo: repo, purger: repo, health: pingFunc(db.PingContext), close: db.Close}, nil

	case config.StorageMemory:
		repo := repository.NewMemorySnapshotRepo()
		return &storage{repo: repo, purger: repo, close: func() error { return nil }}, nil

	default:
		return nil, fmt.Errorf("unsupported storage driver: %q", cfg.StorageDriver)
	}
}

// server はrunServeで起動する構成要素。
type server struct {
	handler     http.Handler
	clients     *clientstate.Manager
	rateLimiter *middleware.RateLimiter
	cleanup     *cleanup.CleanupJob
}

// newServer は全依存関係をワイヤリングしてserverを組み立てる。
func newServer(cfg *config.Config, st *storage, reg *prometheus.Registry) *server {
	log := slog.Default()

	// 1. メトリクス
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	mc := metrics.NewCollector(reg)

	// 2. クライアント状態
	clients := clientstate.NewManager(st.repo, mc)

	// 3. ストアAPIクライアント
	api := storeapi.NewClient(cfg.APIBaseURL, storeapi.NewHTTPClient(cfg.APITimeout, mc, log), log)

	// 4. 商品表示と画像プロキシ
	presenter := catalog.NewPresenter(security.NewDescriptionSanitizer(), catalog.DefaultExcerptLength)
	fetcher := imageproxy.NewFetcher(security.NewURLGuard(cfg.ImageAllowedHosts...), cfg.ImageTimeout, cfg.ImageMaxSize, log)
	images := imageproxy.NewProxy(api, fetcher)

	// 5. ルーター
	rateLimiter := middleware.NewRateLimiter(
		middleware.RateLimiterConfigPerMinute(cfg.RateLimitGeneral, cfg.RateLimitAuth),
	)

	deps := &handler.RouterDeps{
		Logger:            log,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		HSTS:              cfg.CookieSecure,
		ClientCookie: middleware.ClientCookieConfig{
			Secure: cfg.CookieSecure,
			Domain: cfg.CookieDomain,
			MaxAge: cfg.ClientCookieMaxAge,
		},
		CSRF: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		Clients:           clients,
		RateLimiter:       rateLimiter,
		LoginPath:         cfg.LoginPath,
		TrustProxyHeaders: cfg.TrustProxyHeaders,

		HealthChecker:   st.health,
		Metrics:         mc,
		MetricsGatherer: reg,

		API:       api,
		Presenter: presenter,
		Pricing: cart.PricingRules{
			FreeShippingThreshold: cfg.FreeShippingThreshold,
			FlatShippingFee:       cfg.FlatShippingFee,
			TaxRate:               cfg.TaxRate,
		},
		Images: images,
	}

	// 6. クリーンアップジョブ
	job := cleanup.NewCleanupJob(clients, st.purger, mc, log)
	if cfg.ClientIdleTTL > 0 {
		job.IdleTTL = cfg.ClientIdleTTL
	}
	if cfg.ClientStorageRetention > 0 {
		job.Retention = cfg.ClientStorageRetention
	}

	return &server{
		handler:     handler.NewRouter(deps),
		clients:     clients,
		rateLimiter: rateLimiter,
		cleanup:     job,
	}
}

// runServe はBFFサーバーモードで起動する。
// ストレージを開き、全依存関係をワイヤリングし、HTTPサーバーとクリーンアップジョブを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := openStorage(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer st.close()

	slog.Info("snapshot storage ready", slog.String("driver", cfg.StorageDriver))

	srv := newServer(cfg, st, prometheus.NewRegistry())
	defer srv.rateLimiter.Stop()

	interval := cfg.CleanupInterval
	if interval <= 0 {
		interval = time.Hour
	}
	go srv.cleanup.Start(ctx, interval)

	httpServer := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      srv.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("BFF server starting",
			slog.String("addr", httpServer.Addr),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-stop:
	case err := <-serveErr:
		return fmt.Errorf("server listen error: %w", err)
	}
	slog.Info("shutting down BFF server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("BFF server stopped gracefully",
		slog.Int("active_clients", srv.clients.Len()),
	)
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// PostgreSQL以外のドライバーではスキーマ管理が不要なため何もしない。
func runMigrate(cfg *config.Config) error {
	if cfg.StorageDriver != config.StoragePostgres {
		slog.Info("migrations skipped", slog.String("storage", cfg.StorageDriver))
		return nil
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully",
		slog.Uint64("schema_version", uint64(version)),
	)
	return nil
}

// runCleanup は保持期間を過ぎたスナップショットの削除を1回だけ実行する。
// メモリ上のクライアントはサーバープロセスが管理するため対象外。
func runCleanup(cfg *config.Config) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	st, err := openStorage(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer st.close()

	if st.purger == nil {
		slog.Info("cleanup skipped: storage expires snapshots itself",
			slog.String("storage", cfg.StorageDriver),
		)
		return nil
	}

	job := cleanup.NewCleanupJob(nil, st.purger, nil, slog.Default())
	if cfg.ClientStorageRetention > 0 {
		job.Retention = cfg.ClientStorageRetention
	}
	return job.Run(ctx)
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}

var _ handler.HealthChecker = pingFunc(nil)
