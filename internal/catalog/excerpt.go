package catalog

import (
	"strings"

	"golang.org/x/net/html"
)

// skipContentTags は本文として扱わない要素。
var skipContentTags = map[string]bool{
	"script":   true,
	"style":    true,
	"template": true,
	"noscript": true,
}

// Excerpt はHTMLからテキストだけを取り出し、length文字に切り詰めた抜粋を返す。
// 連続する空白は1つにまとめる。
func Excerpt(rawHTML string, length int) string {
	return Truncate(plainText(rawHTML), length)
}

func plainText(rawHTML string) string {
	tokenizer := html.NewTokenizer(strings.NewReader(rawHTML))

	var b strings.Builder
	skipDepth := 0
	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			// io.EOFまたは解析エラー。ここまでのテキストを返す
			return strings.Join(strings.Fields(b.String()), " ")
		case html.StartTagToken:
			name, _ := tokenizer.TagName()
			if skipContentTags[string(name)] {
				skipDepth++
			}
			// ブロック要素の境目で単語が連結されないよう区切る
			b.WriteByte(' ')
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			if skipContentTags[string(name)] && skipDepth > 0 {
				skipDepth--
			}
			b.WriteByte(' ')
		case html.SelfClosingTagToken:
			b.WriteByte(' ')
		case html.TextToken:
			if skipDepth == 0 {
				b.Write(tokenizer.Text())
			}
		}
	}
}
