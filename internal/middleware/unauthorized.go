package middleware

import (
	"net/http"
	"strings"

	"github.com/hitoshi/storefront/internal/model"
)

// DefaultLoginPath はLOGIN_PATH未設定時のログイン画面のパス。
const DefaultLoginPath = "/auth/login"

// WantsHTML はリクエストがブラウザのページ遷移かどうかを判定する。
// fetch/XHRからのJSONリクエストはfalseになる。
func WantsHTML(r *http.Request) bool {
	if r.Header.Get("Sec-Fetch-Mode") == "navigate" {
		return true
	}
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "text/html") && !strings.Contains(accept, "application/json")
}

// WriteUnauthorized は認証切れ・未ログインの応答を書き込む。
// ページ遷移には303でログイン画面へリダイレクトし、
// JSONリクエストには401とリダイレクト先を返す。
func WriteUnauthorized(w http.ResponseWriter, r *http.Request, loginPath string, apiErr *model.APIError) {
	if loginPath == "" {
		loginPath = DefaultLoginPath
	}
	if WantsHTML(r) {
		http.Redirect(w, r, loginPath, http.StatusSeeOther)
		return
	}
	writeErrorBody(w, http.StatusUnauthorized, ErrorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
		Redirect: loginPath,
	})
}
