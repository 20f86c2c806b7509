package storeapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrUnauthorized はAPIが401を返したこと、または送信前にトークンの期限切れを検出したことを表す。
// この時点で認証ストアはすでにクリアされている。
var ErrUnauthorized = errors.New("store api: unauthorized")

// Error はAPIが2xx以外を返したことを表す。
type Error struct {
	StatusCode int
	Detail     string // APIの "detail"。取得できなければ空
}

// Error はerrorインターフェースを実装する。
func (e *Error) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("store api: status %d", e.StatusCode)
	}
	return fmt.Sprintf("store api: status %d: %s", e.StatusCode, e.Detail)
}

// Is は401の場合にErrUnauthorizedと一致する。
func (e *Error) Is(target error) bool {
	return target == ErrUnauthorized && e.StatusCode == http.StatusUnauthorized
}

// parseDetail はエラーレスポンスのdetailを取り出す。
// detailは文字列の場合と、入力検証エラーの配列（[{"loc": [...], "msg": "..."}]）の場合がある。
func parseDetail(body []byte) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Detail) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(payload.Detail, &s); err == nil {
		return s
	}

	var items []struct {
		Loc []any  `json:"loc"`
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(payload.Detail, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if len(it.Loc) > 0 {
				msgs = append(msgs, fmt.Sprintf("%v: %s", it.Loc[len(it.Loc)-1], it.Msg))
			} else {
				msgs = append(msgs, it.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}

	return ""
}
