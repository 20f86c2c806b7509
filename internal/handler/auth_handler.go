package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/storefront/internal/auth"
	"github.com/hitoshi/storefront/internal/clientstate"
	"github.com/hitoshi/storefront/internal/metrics"
	"github.com/hitoshi/storefront/internal/middleware"
	"github.com/hitoshi/storefront/internal/model"
	"github.com/hitoshi/storefront/internal/storeapi"
)

// AuthAPI は認証ハンドラーが必要とするストアAPIの呼び出し。
type AuthAPI interface {
	Login(ctx context.Context, email, password string) (*model.Token, error)
	Register(ctx context.Context, reg model.Registration) (*model.User, error)
	Me(ctx context.Context) (*model.User, error)
}

// ClientRotator はログイン時にクライアントの状態を新しいクライアントIDへ移す。
// clientstate.Managerが実装する。
type ClientRotator interface {
	Rotate(ctx context.Context, old *clientstate.Client) (*clientstate.Client, error)
}

// AuthHandler はログイン・会員登録・ログアウトのHTTPハンドラー。
type AuthHandler struct {
	errorResponder
	api     AuthAPI
	rotator ClientRotator
	cookie  middleware.ClientCookieConfig
	metrics metrics.MetricsCollector
}

// NewAuthHandler はAuthHandlerを生成する。
// rotatorがnilの場合はログイン時のクライアントIDの再発行を行わない。
func NewAuthHandler(api AuthAPI, rotator ClientRotator, cookie middleware.ClientCookieConfig, mc metrics.MetricsCollector, loginPath string) *AuthHandler {
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &AuthHandler{
		errorResponder: errorResponder{loginPath: loginPath},
		api:            api,
		rotator:        rotator,
		cookie:         cookie,
		metrics:        mc,
	}
}

// loginSuccessRedirect はログイン後の遷移先。
const loginSuccessRedirect = "/products"

// authResponse はログイン・会員登録のレスポンス。
type authResponse struct {
	User     model.User `json:"user"`
	Redirect string     `json:"redirect,omitempty"`
}

// sessionResponse は保存済みの認証状態のレスポンス。
type sessionResponse struct {
	Authenticated bool        `json:"authenticated"`
	IsAdmin       bool        `json:"is_admin"`
	User          *model.User `json:"user"`
}

// Login はメールアドレスとパスワードでログインし、トークンと会員情報を認証ストアに保存する。
// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	client, ok := currentClient(r.Context())
	if !ok {
		middleware.WriteInternalServerError(w)
		return
	}

	var form auth.LoginForm
	if !decodeForm(w, r, &form, func() {
		form.Email = r.PostFormValue("email")
		form.Password = r.PostFormValue("password")
	}) {
		return
	}
	form.Email = strings.TrimSpace(form.Email)
	if errs := auth.ValidateLogin(form); errs != nil {
		middleware.WriteValidationError(w, errs)
		return
	}

	// 保存済みのトークンは送らない。期限切れトークンがあってもログインできるようにする
	token, err := h.api.Login(storeapi.WithoutSession(r.Context()), form.Email, form.Password)
	if err != nil {
		var upstream *storeapi.Error
		if errors.As(err, &upstream) && (upstream.StatusCode == http.StatusUnauthorized || upstream.StatusCode == http.StatusBadRequest) {
			middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewLoginFailedError(upstream.Detail))
			return
		}
		h.handleError(w, r, err, nil)
		return
	}

	// ログイン前のクライアントIDは利用者が持ち込んだ可能性があるため、認証情報は新しいIDに結び付ける
	if h.rotator != nil {
		rotated, err := h.rotator.Rotate(r.Context(), client)
		if err != nil {
			slog.Error("failed to rotate client ID",
				slog.String("client_id", client.ID),
				slog.String("error", err.Error()),
			)
			middleware.WriteErrorResponse(w, http.StatusServiceUnavailable, model.NewStorageUnavailableError())
			return
		}
		middleware.SetClientIDCookie(w, h.cookie, rotated.ID)
		client = rotated
	}

	if err := client.Auth.SetAuth(r.Context(), token.User, token.AccessToken); err != nil {
		slog.Error("failed to persist auth state",
			slog.String("client_id", client.ID),
			slog.String("error", err.Error()),
		)
		middleware.WriteErrorResponse(w, http.StatusServiceUnavailable, model.NewStorageUnavailableError())
		return
	}

	if isFormPost(r) {
		http.Redirect(w, r, loginSuccessRedirect, http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusOK, authResponse{User: token.User, Redirect: loginSuccessRedirect})
}

// Register は会員登録を行う。登録後は自動ログインせず、ログイン画面へ誘導する。
// POST /auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var form auth.RegisterForm
	if !decodeForm(w, r, &form, func() {
		form.FullName = r.PostFormValue("full_name")
		form.Email = r.PostFormValue("email")
		form.Password = r.PostFormValue("password")
		form.ConfirmPassword = r.PostFormValue("confirm_password")
	}) {
		return
	}
	form.Email = strings.TrimSpace(form.Email)
	if errs := auth.ValidateRegister(form); errs != nil {
		middleware.WriteValidationError(w, errs)
		return
	}

	user, err := h.api.Register(storeapi.WithoutSession(r.Context()), model.Registration{
		Email:    form.Email,
		Password: form.Password,
		FullName: strings.TrimSpace(form.FullName),
	})
	if err != nil {
		var upstream *storeapi.Error
		if errors.As(err, &upstream) && upstream.StatusCode >= 400 && upstream.StatusCode < 500 {
			middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewRegistrationFailedError(upstream.Detail))
			return
		}
		h.handleError(w, r, err, nil)
		return
	}

	loginPath := h.loginPath
	if loginPath == "" {
		loginPath = middleware.DefaultLoginPath
	}
	if isFormPost(r) {
		http.Redirect(w, r, loginPath, http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusCreated, authResponse{User: *user, Redirect: loginPath})
}

// Logout は認証ストアをクリアする。未ログインでも成功する。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	client, ok := currentClient(r.Context())
	if !ok {
		middleware.WriteInternalServerError(w)
		return
	}

	wasAuthenticated := client.Auth.IsAuthenticated()
	if err := client.Auth.Logout(r.Context()); err != nil {
		// メモリ上の認証状態はクリア済み
		slog.Error("failed to clear auth snapshot",
			slog.String("client_id", client.ID),
			slog.String("error", err.Error()),
		)
	}
	if wasAuthenticated {
		h.metrics.RecordSessionRevoked(metrics.RevokeReasonLogout)
	}

	if isFormPost(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me はストアAPIから最新の会員情報を取得する。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.api.Me(r.Context())
	if err != nil {
		h.handleError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// Session は認証ストアに保存されている状態を返す。ストアAPIは呼び出さない。
// GET /auth/session
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	client, ok := currentClient(r.Context())
	if !ok {
		middleware.WriteInternalServerError(w)
		return
	}

	resp := sessionResponse{
		Authenticated: client.Auth.IsAuthenticated(),
		IsAdmin:       client.Auth.IsAdmin(),
	}
	if user, ok := client.Auth.User(); ok {
		resp.User = &user
	}
	writeJSON(w, http.StatusOK, resp)
}

// isFormPost はHTMLフォームからの送信かどうかを判定する。
func isFormPost(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded")
}

// decodeForm はJSONまたはフォーム形式のボディを読み取る。
// フォームの場合はfromFormで値を詰める。失敗時は400を書き込みfalseを返す。
func decodeForm(w http.ResponseWriter, r *http.Request, v any, fromForm func()) bool {
	if isFormPost(r) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		if err := r.ParseForm(); err != nil {
			middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
			return false
		}
		fromForm()
		return true
	}
	if err := decodeJSON(w, r, v); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return false
	}
	return true
}
