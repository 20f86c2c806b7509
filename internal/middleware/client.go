// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/storefront/internal/clientstate"
	"github.com/hitoshi/storefront/internal/model"
	"github.com/hitoshi/storefront/internal/storeapi"
)

// clientCookieName はブラウザを識別するCookieの名前。
const clientCookieName = "sf_client_id"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// clientIDContextKey はリクエストコンテキストにクライアントIDを格納するためのキー。
var clientIDContextKey = contextKey("client_id")

// ClientCookieConfig はクライアントID Cookieの設定。
type ClientCookieConfig struct {
	Secure bool
	Domain string
	MaxAge time.Duration // 0の場合はセッションCookie
}

// NewClientIDMiddleware はクライアントID Cookieを読み取り、なければ発行するミドルウェアを返す。
// 形式が不正な値は破棄して新しいIDを発行する。
func NewClientIDMiddleware(config ClientCookieConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientID := ""
			if cookie, err := r.Cookie(clientCookieName); err == nil {
				if id, err := uuid.Parse(cookie.Value); err == nil {
					clientID = id.String()
				}
			}
			if clientID == "" {
				clientID = uuid.NewString()
			}

			// 有効期限を延長するため毎回設定し直す
			SetClientIDCookie(w, config, clientID)

			next.ServeHTTP(w, r.WithContext(ContextWithClientID(r.Context(), clientID)))
		})
	}
}

// SetClientIDCookie はクライアントID Cookieを設定する。
// 同じレスポンスで既に設定済みのクライアントID Cookieは置き換える。
func SetClientIDCookie(w http.ResponseWriter, config ClientCookieConfig, clientID string) {
	header := w.Header()
	if existing := header.Values("Set-Cookie"); len(existing) > 0 {
		header.Del("Set-Cookie")
		for _, v := range existing {
			if !strings.HasPrefix(v, clientCookieName+"=") {
				header.Add("Set-Cookie", v)
			}
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     clientCookieName,
		Value:    clientID,
		Path:     "/",
		Domain:   config.Domain,
		MaxAge:   int(config.MaxAge.Seconds()),
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClientIDFromContext はリクエストコンテキストからクライアントIDを取得する。
func ClientIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(clientIDContextKey).(string)
	return id, ok && id != ""
}

// ContextWithClientID はコンテキストにクライアントIDを注入する。
func ContextWithClientID(ctx context.Context, clientID string) context.Context {
	return context.WithValue(ctx, clientIDContextKey, clientID)
}

// ClientLoader はクライアントIDに対応するカート・認証ストアを返す。
// clientstate.Managerが実装する。
type ClientLoader interface {
	Get(ctx context.Context, clientID string) (*clientstate.Client, error)
}

// NewClientStateMiddleware はクライアントのストアを読み込み、リクエストコンテキストに格納するミドルウェアを返す。
// 認証ストアはストアAPI呼び出しのSessionとしても格納する。
// NewClientIDMiddlewareの後に配置する。
func NewClientStateMiddleware(loader ClientLoader) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientID, ok := ClientIDFromContext(r.Context())
			if !ok {
				WriteInternalServerError(w)
				return
			}

			client, err := loader.Get(r.Context(), clientID)
			if err != nil {
				slog.Error("failed to load client state",
					slog.String("client_id", clientID),
					slog.String("error", err.Error()),
				)
				WriteErrorResponse(w, http.StatusServiceUnavailable, model.NewStorageUnavailableError())
				return
			}

			ctx := clientstate.WithClient(r.Context(), client)
			ctx = storeapi.WithSession(ctx, client.Auth)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// NewRequireAuthMiddleware はログイン済みのクライアントのみ通過させるミドルウェアを返す。
func NewRequireAuthMiddleware(loginPath string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client, ok := clientstate.FromContext(r.Context())
			if !ok || !client.Auth.IsAuthenticated() {
				WriteUnauthorized(w, r, loginPath, model.NewLoginRequiredError())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// NewRequireAdminMiddleware は管理者のみ通過させるミドルウェアを返す。
// 未ログインの場合はログインを、ログイン済みで管理者でない場合は403を返す。
func NewRequireAdminMiddleware(loginPath string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client, ok := clientstate.FromContext(r.Context())
			if !ok || !client.Auth.IsAuthenticated() {
				WriteUnauthorized(w, r, loginPath, model.NewLoginRequiredError())
				return
			}
			if !client.Auth.IsAdmin() {
				WriteErrorResponse(w, http.StatusForbidden, model.NewForbiddenError())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
