package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenExpiry はJWTのexpクレームを返す。
// 署名は検証しない（検証はAPI側の責務）。JWTとして読めない場合やexpがない場合はfalseを返す。
func TokenExpiry(token string) (time.Time, bool) {
	if token == "" {
		return time.Time{}, false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// TokenExpired はトークンの有効期限がnowの時点で切れているかを返す。
// 有効期限が読み取れないトークンは期限切れとみなさず、判断をAPIに委ねる。
func TokenExpired(token string, now time.Time) bool {
	exp, ok := TokenExpiry(token)
	if !ok {
		return false
	}
	return !now.Before(exp)
}
