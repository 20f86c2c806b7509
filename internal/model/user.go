package model

// User はストアAPIが返す会員情報を表す。
// 認証ストアにはこの値がそのままスナップショットとして保存される。
type User struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	FullName  string     `json:"full_name"`
	Phone     string     `json:"phone,omitempty"`
	IsAdmin   bool       `json:"is_admin"`
	IsActive  bool       `json:"is_active"`
	CreatedAt *Timestamp `json:"created_at,omitempty"`
}

// Token はログインAPIのレスポンスを表す。
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	User        User   `json:"user"`
}

// Registration は会員登録APIへ送る内容を表す。
type Registration struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}
