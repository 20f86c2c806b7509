package storeapi

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/hitoshi/storefront/internal/model"
)

// Login はメールアドレスとパスワードでログインし、トークンと会員情報を返す。
// APIの仕様に合わせ、フォーム形式でusernameとしてメールアドレスを送る。
func (c *Client) Login(ctx context.Context, email, password string) (*model.Token, error) {
	form := url.Values{
		"username": {email},
		"password": {password},
	}
	var token model.Token
	err := c.do(ctx, http.MethodPost, "/auth/login", nil,
		strings.NewReader(form.Encode()), "application/x-www-form-urlencoded", &token)
	if err != nil {
		return nil, err
	}
	return &token, nil
}

// Register は会員登録を行い、作成された会員情報を返す。
func (c *Client) Register(ctx context.Context, reg model.Registration) (*model.User, error) {
	var user model.User
	if err := c.sendJSON(ctx, http.MethodPost, "/auth/register", reg, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Me はトークンに対応する会員情報を返す。
func (c *Client) Me(ctx context.Context) (*model.User, error) {
	var user model.User
	if err := c.getJSON(ctx, "/auth/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}
