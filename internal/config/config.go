package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ストレージドライバー。クライアントのスナップショットの保存先を表す。
const (
	StoragePostgres = "postgres"
	StorageRedis    = "redis"
	StorageSQLite   = "sqlite"
	StorageMemory   = "memory"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Store API
	APIBaseURL string
	APITimeout time.Duration

	// Storage
	StorageDriver string
	DatabaseURL   string
	RedisURL      string
	SQLitePath    string

	// Server
	ServerPort    string
	PublicBaseURL string
	LoginPath     string

	// Cookie
	CookieSecure       bool
	CookieDomain       string
	ClientCookieMaxAge time.Duration

	// CORS
	CORSAllowedOrigin string

	// リバースプロキシのX-Forwarded-For等を接続元IPとして信頼するか
	TrustProxyHeaders bool

	// Client lifecycle
	ClientIdleTTL          time.Duration
	ClientStorageRetention time.Duration
	CleanupInterval        time.Duration

	// Rate Limit (req/min)
	RateLimitGeneral int
	RateLimitAuth    int

	// Image proxy
	ImageMaxSize      int64
	ImageTimeout      time.Duration
	ImageAllowedHosts []string

	// Pricing
	FreeShippingThreshold float64
	FlatShippingFee       float64
	TaxRate               float64

	// Logging
	LogLevel string
}

// Load は環境変数からConfigを読み込む。
// 選択したストレージに必要な環境変数が未設定の場合は、不足分をまとめてエラーとして返す。
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.StorageDriver = strings.ToLower(getEnvString("STORAGE_DRIVER", StoragePostgres))
	switch cfg.StorageDriver {
	case StoragePostgres, StorageRedis, StorageSQLite, StorageMemory:
	default:
		return nil, fmt.Errorf("unsupported STORAGE_DRIVER: %q", cfg.StorageDriver)
	}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" && cfg.StorageDriver == StoragePostgres {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.RedisURL = os.Getenv("REDIS_URL")
	if cfg.RedisURL == "" && cfg.StorageDriver == StorageRedis {
		missing = append(missing, "REDIS_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.APIBaseURL = getEnvString("API_BASE_URL", "http://localhost:8000/api/v1")
	cfg.APITimeout = getEnvDuration("API_TIMEOUT", 10*time.Second)
	cfg.SQLitePath = getEnvString("SQLITE_PATH", "storefront.db")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.PublicBaseURL = getEnvString("PUBLIC_BASE_URL", "http://localhost:8080")
	cfg.LoginPath = getEnvString("LOGIN_PATH", "/auth/login")
	cfg.CookieSecure = strings.HasPrefix(cfg.PublicBaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.ClientCookieMaxAge = getEnvDuration("CLIENT_COOKIE_MAX_AGE", 365*24*time.Hour)
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")
	cfg.TrustProxyHeaders = getEnvBool("TRUST_PROXY_HEADERS", false)
	cfg.ClientIdleTTL = getEnvDuration("CLIENT_IDLE_TTL", 30*time.Minute)
	cfg.ClientStorageRetention = getEnvDuration("CLIENT_STORAGE_RETENTION", 30*24*time.Hour)
	cfg.CleanupInterval = getEnvDuration("CLEANUP_INTERVAL", time.Hour)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitAuth = getEnvInt("RATE_LIMIT_AUTH", 10)
	cfg.ImageMaxSize = getEnvInt64("IMAGE_MAX_SIZE", 5242880)
	cfg.ImageTimeout = getEnvDuration("IMAGE_TIMEOUT", 10*time.Second)
	cfg.ImageAllowedHosts = getEnvList("IMAGE_ALLOWED_HOSTS")
	cfg.FreeShippingThreshold = getEnvFloat("FREE_SHIPPING_THRESHOLD", 100)
	cfg.FlatShippingFee = getEnvFloat("FLAT_SHIPPING_FEE", 10)
	cfg.TaxRate = getEnvFloat("TAX_RATE", 0.08)
	cfg.LogLevel = strings.ToLower(getEnvString("LOG_LEVEL", "info"))

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		return defaultVal
	}
	return f
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

// getEnvList はカンマ区切りの値を空要素を除いて返す。
func getEnvList(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
