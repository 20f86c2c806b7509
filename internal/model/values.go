package model

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Price はストアAPIが返す金額を表す。
// APIはDecimalを文字列（"50.00"）で返すことがあるため、数値と文字列の両方を受け付ける。
// 丸めは表示時にのみ行い、ここでは保持しない。
type Price float64

// UnmarshalJSON は数値・文字列・nullのいずれの表現からも金額を読み取る。
func (p *Price) UnmarshalJSON(b []byte) error {
	s := string(bytes.TrimSpace(b))
	if s == "null" {
		*p = 0
		return nil
	}
	s = strings.Trim(s, `"`)
	if s == "" {
		*p = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid price %q: %w", s, err)
	}
	*p = Price(v)
	return nil
}

// Float64 は金額をfloat64で返す。
func (p Price) Float64() float64 {
	return float64(p)
}

// PriceOf はfloat64からPriceのポインタを生成する。
// 割引価格など省略可能な金額の組み立てに使う。
func PriceOf(v float64) *Price {
	p := Price(v)
	return &p
}

// naiveLayouts はタイムゾーンを含まない日時表現（APIのdatetime.utcnow由来）。
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Timestamp はストアAPIの日時を表す。
// タイムゾーンなしの値はUTCとして解釈する。
type Timestamp struct {
	time.Time
}

// UnmarshalJSON はRFC3339およびタイムゾーンなしの日時を受け付ける。
func (t *Timestamp) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(b)), `"`)
	if s == "" || s == "null" {
		t.Time = time.Time{}
		return nil
	}
	if v, err := time.Parse(time.RFC3339Nano, s); err == nil {
		t.Time = v
		return nil
	}
	for _, layout := range naiveLayouts {
		if v, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			t.Time = v
			return nil
		}
	}
	return fmt.Errorf("invalid timestamp %q", s)
}

// MarshalJSON はRFC3339形式で書き出す。ゼロ値はnullになる。
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.Time.IsZero() {
		return []byte("null"), nil
	}
	return []byte(strconv.Quote(t.Time.UTC().Format(time.RFC3339Nano))), nil
}
