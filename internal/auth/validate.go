package auth

import (
	"regexp"
	"strings"
	"unicode"
)

// MinPasswordLength は会員登録時のパスワードの最小文字数。
const MinPasswordLength = 8

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// FieldErrors は入力項目ごとの検証エラーメッセージ。キーはフォームの項目名。
type FieldErrors map[string]string

// LoginForm はログインフォームの入力。
type LoginForm struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterForm は会員登録フォームの入力。
type RegisterForm struct {
	FullName        string `json:"full_name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// ValidEmail はメールアドレスの形式が妥当かを返す。
func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// ValidateLogin はログインフォームを検証する。エラーがなければnilを返す。
func ValidateLogin(f LoginForm) FieldErrors {
	errs := FieldErrors{}
	validateEmail(errs, f.Email)
	if f.Password == "" {
		errs["password"] = "パスワードを入力してください。"
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// ValidateRegister は会員登録フォームを検証する。エラーがなければnilを返す。
// パスワードは8文字以上で、英大文字と数字をそれぞれ1文字以上含む必要がある。
func ValidateRegister(f RegisterForm) FieldErrors {
	errs := FieldErrors{}
	if strings.TrimSpace(f.FullName) == "" {
		errs["full_name"] = "氏名を入力してください。"
	}
	validateEmail(errs, f.Email)

	switch {
	case f.Password == "":
		errs["password"] = "パスワードを入力してください。"
	case len([]rune(f.Password)) < MinPasswordLength:
		errs["password"] = "パスワードは8文字以上で入力してください。"
	case !strings.ContainsFunc(f.Password, unicode.IsUpper):
		errs["password"] = "パスワードには英大文字を1文字以上含めてください。"
	case !strings.ContainsFunc(f.Password, unicode.IsDigit):
		errs["password"] = "パスワードには数字を1文字以上含めてください。"
	}

	if f.Password != f.ConfirmPassword {
		errs["confirm_password"] = "パスワードが一致しません。"
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

func validateEmail(errs FieldErrors, email string) {
	switch {
	case strings.TrimSpace(email) == "":
		errs["email"] = "メールアドレスを入力してください。"
	case !ValidEmail(email):
		errs["email"] = "メールアドレスの形式が正しくありません。"
	}
}
