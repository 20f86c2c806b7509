// Package auth はクライアントごとの認証状態（会員情報とベアラートークン）を提供する。
//
// トークンが存在することが認証済みであることの唯一の条件となる。
// 状態はログインで作られ、ログアウトまたはAPIからの401で破棄される。
package auth

import "github.com/hitoshi/storefront/internal/model"

// State は認証状態。Userは表示用のスナップショットで、Tokenが認証の実体。
type State struct {
	User  *model.User `json:"user"`
	Token string      `json:"token"`
}

// WithAuth は会員情報とトークンを置き換えた状態を返す。
func (s State) WithAuth(user model.User, token string) State {
	u := user
	return State{User: &u, Token: token}
}

// Cleared は会員情報とトークンを破棄した状態を返す。
func (s State) Cleared() State {
	return State{}
}

// IsAuthenticated はトークンが存在するかを返す。
func (s State) IsAuthenticated() bool {
	return s.Token != ""
}

// IsAdmin は会員情報が存在し、管理者フラグが立っているかを返す。
func (s State) IsAdmin() bool {
	return s.User != nil && s.User.IsAdmin
}

func (s State) clone() State {
	if s.User == nil {
		return State{Token: s.Token}
	}
	u := *s.User
	return State{User: &u, Token: s.Token}
}
