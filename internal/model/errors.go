// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, cart, catalog, order, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeValidationFailed   = "VALIDATION_FAILED"
	ErrCodeInvalidQuantity    = "INVALID_QUANTITY"
	ErrCodeProductNotFound    = "PRODUCT_NOT_FOUND"
	ErrCodeCartEmpty          = "CART_EMPTY"
	ErrCodeSessionExpired     = "SESSION_EXPIRED"
	ErrCodeLoginRequired      = "LOGIN_REQUIRED"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeUpstreamFailed     = "UPSTREAM_FAILED"
	ErrCodeLoginFailed        = "LOGIN_FAILED"
	ErrCodeRegistrationFailed = "REGISTRATION_FAILED"
	ErrCodeOrderNotFound      = "ORDER_NOT_FOUND"
	ErrCodeInvalidOrderStatus = "INVALID_ORDER_STATUS"
	ErrCodeImageNotFound      = "IMAGE_NOT_FOUND"
	ErrCodeStorageUnavailable = "STORAGE_UNAVAILABLE"
	ErrCodeCSRFFailed         = "CSRF_FAILED"
	ErrCodeRateLimited        = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// NewInvalidRequestError はリクエストボディの解析失敗エラーを生成する。
func NewInvalidRequestError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}

// NewValidationFailedError は入力検証エラーを生成する。
// 項目ごとのメッセージはレスポンスのfieldsで返す。
func NewValidationFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  "入力内容に誤りがあります。",
		Category: "validation",
		Action:   "各項目のエラーメッセージを確認して再度送信してください。",
	}
}

// NewInvalidQuantityError は数量が不正な場合のエラーを生成する。
func NewInvalidQuantityError(quantity int) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidQuantity,
		Message:  fmt.Sprintf("無効な数量です: %d", quantity),
		Category: "validation",
		Action:   "数量には1以上の整数を指定してください。",
	}
}

// NewProductNotFoundError は商品未検出エラーを生成する。
func NewProductNotFoundError(productID string) *APIError {
	return &APIError{
		Code:     ErrCodeProductNotFound,
		Message:  fmt.Sprintf("指定された商品が見つかりません: %s", productID),
		Category: "catalog",
		Action:   "商品一覧から商品を選び直してください。",
	}
}

// NewCartEmptyError はカートが空の状態で注文しようとした場合のエラーを生成する。
func NewCartEmptyError() *APIError {
	return &APIError{
		Code:     ErrCodeCartEmpty,
		Message:  "カートが空です。",
		Category: "cart",
		Action:   "商品をカートに追加してから注文してください。",
	}
}

// NewSessionExpiredError は認証切れ（APIの401またはトークン期限切れ）のエラーを生成する。
func NewSessionExpiredError() *APIError {
	return &APIError{
		Code:     ErrCodeSessionExpired,
		Message:  "ログインの有効期限が切れました。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewLoginRequiredError は未ログインで認証必須の操作を行った場合のエラーを生成する。
func NewLoginRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeLoginRequired,
		Message:  "ログインが必要です。",
		Category: "auth",
		Action:   "ログインしてから再度お試しください。",
	}
}

// NewForbiddenError は管理者権限のないユーザーが管理機能を利用した場合のエラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "この操作を行う権限がありません。",
		Category: "auth",
		Action:   "管理者アカウントでログインしてください。",
	}
}

// NewUpstreamFailedError はストアAPIの呼び出し失敗エラーを生成する。
// detailにはAPIが返したメッセージを渡す。空の場合は汎用メッセージを使用する。
func NewUpstreamFailedError(detail string) *APIError {
	msg := "ストアAPIの呼び出しに失敗しました。"
	if detail != "" {
		msg = fmt.Sprintf("ストアAPIの呼び出しに失敗しました: %s", detail)
	}
	return &APIError{
		Code:     ErrCodeUpstreamFailed,
		Message:  msg,
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewLoginFailedError はログイン失敗エラーを生成する。
func NewLoginFailedError(detail string) *APIError {
	if detail == "" {
		detail = "Login failed"
	}
	return &APIError{
		Code:     ErrCodeLoginFailed,
		Message:  detail,
		Category: "auth",
		Action:   "メールアドレスとパスワードを確認してください。",
	}
}

// NewRegistrationFailedError は会員登録失敗エラーを生成する。
func NewRegistrationFailedError(detail string) *APIError {
	if detail == "" {
		detail = "Registration failed"
	}
	return &APIError{
		Code:     ErrCodeRegistrationFailed,
		Message:  detail,
		Category: "auth",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewOrderNotFoundError は注文未検出エラーを生成する。
func NewOrderNotFoundError(orderID string) *APIError {
	return &APIError{
		Code:     ErrCodeOrderNotFound,
		Message:  fmt.Sprintf("指定された注文が見つかりません: %s", orderID),
		Category: "order",
		Action:   "注文IDを確認してください。",
	}
}

// NewInvalidOrderStatusError は注文ステータスが不正な場合のエラーを生成する。
func NewInvalidOrderStatusError(status string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidOrderStatus,
		Message:  fmt.Sprintf("無効な注文ステータスです: %s", status),
		Category: "validation",
		Action:   "pending、paid、processing、shipped、delivered、cancelled、refunded のいずれかを指定してください。",
	}
}

// NewImageNotFoundError は商品画像が取得できない場合のエラーを生成する。
func NewImageNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeImageNotFound,
		Message:  "商品画像を取得できませんでした。",
		Category: "catalog",
		Action:   "時間をおいて再度表示してください。",
	}
}

// NewStorageUnavailableError はクライアントストレージに到達できない場合のエラーを生成する。
func NewStorageUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeStorageUnavailable,
		Message:  "カート情報の保存先に接続できません。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewCSRFFailedError はCSRFトークンの検証失敗エラーを生成する。
func NewCSRFFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRFFailed,
		Message:  "CSRFトークンの検証に失敗しました。",
		Category: "auth",
		Action:   "ページを再読み込みしてから再度お試しください。",
	}
}

// NewRateLimitedError はレート制限超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "Retry-Afterヘッダーの秒数だけ待ってから再度お試しください。",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログにのみ記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
