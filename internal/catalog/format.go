// Package catalog は商品情報を画面表示向けに整形する。
package catalog

import (
	"math"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// 在庫状況の表示文言
const (
	StockOut = "Out of Stock"
	StockLow = "Low Stock"
	StockIn  = "In Stock"
)

// LowStockLevel はこの数量未満を在庫僅少として表示する。
const LowStockLevel = 5

// DefaultTruncateLength はTruncateの既定の最大文字数。
const DefaultTruncateLength = 100

var usPrinter = message.NewPrinter(language.AmericanEnglish)

// FormatCurrency は金額を米ドル表記（$1,234.50）に整形する。
func FormatCurrency(amount float64) string {
	if amount < 0 {
		return "-$" + usPrinter.Sprintf("%.2f", -amount)
	}
	return "$" + usPrinter.Sprintf("%.2f", amount)
}

// FormatDate は日付を "January 2, 2006" 形式に整形する。
func FormatDate(t time.Time) string {
	return t.Format("January 2, 2006")
}

// FormatDateTime は日時を "January 2, 2006 at 03:04 PM" 形式に整形する。
func FormatDateTime(t time.Time) string {
	return t.Format("January 2, 2006 at 03:04 PM")
}

// DiscountPercent は割引率（%）を四捨五入して返す。
// 割引価格がない、または通常価格以上の場合は0。
func DiscountPercent(original, discount float64) int {
	if discount <= 0 || original <= 0 || discount >= original {
		return 0
	}
	return int(math.Round((original - discount) / original * 100))
}

// StockStatus は在庫数から表示文言を返す。
func StockStatus(quantity int) string {
	switch {
	case quantity <= 0:
		return StockOut
	case quantity < LowStockLevel:
		return StockLow
	default:
		return StockIn
	}
}

// IsInStock は在庫があるかを返す。
func IsInStock(quantity int) bool {
	return quantity > 0
}

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	nonSlugChars  = regexp.MustCompile(`[^a-z0-9_\-]+`)
	hyphenRun     = regexp.MustCompile(`-{2,}`)
)

// stripMarks はアクセント記号を取り除く変換。
// transform.Transformerは状態を持つため呼び出しごとに生成する。
func stripMarks() transform.Transformer {
	return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}

// Slugify は名前からURL用のスラッグを生成する。
// アクセント付き文字は基底文字に置き換え、英数字・アンダースコア・ハイフン以外は除去する。
func Slugify(text string) string {
	s, _, err := transform.String(stripMarks(), text)
	if err != nil {
		s = text
	}
	s = strings.TrimSpace(strings.ToLower(s))
	s = whitespaceRun.ReplaceAllString(s, "-")
	s = nonSlugChars.ReplaceAllString(s, "")
	return hyphenRun.ReplaceAllString(s, "-")
}

// Truncate はテキストをlength文字で切り詰め、切り詰めた場合は "..." を付ける。
// lengthが0以下の場合はDefaultTruncateLengthを使う。
func Truncate(text string, length int) string {
	if length <= 0 {
		length = DefaultTruncateLength
	}
	if utf8.RuneCountInString(text) <= length {
		return text
	}
	return string([]rune(text)[:length]) + "..."
}
