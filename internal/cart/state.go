// Package cart はクライアントごとのショッピングカートを提供する。
//
// State は純粋な状態遷移（Add、Remove、SetQuantity、Clear）と派生値の計算を持ち、I/Oを行わない。
// Store は State を保持し、遷移のたびに Persister へスナップショットを書き出す。
package cart

import "github.com/hitoshi/storefront/internal/model"

// DefaultQuantity はAddで数量が指定されなかった場合の数量。
const DefaultQuantity = 1

// LineItem はカート内の1商品を表す。
// 商品情報は追加時点のスナップショットとして保持する。
type LineItem struct {
	ProductID     string   `json:"id"`
	Name          string   `json:"name"`
	Brand         string   `json:"brand"`
	Images        []string `json:"images,omitempty"`
	Price         float64  `json:"price"`
	DiscountPrice *float64 `json:"discount_price,omitempty"`
	Quantity      int      `json:"quantity"`
}

// HasDiscount は有効な割引価格が設定されているかを返す。
// 0の割引価格は未設定として扱う。
func (li LineItem) HasDiscount() bool {
	return li.DiscountPrice != nil && *li.DiscountPrice > 0
}

// UnitPrice は割引価格があれば割引価格、なければ通常価格を返す。
func (li LineItem) UnitPrice() float64 {
	if li.HasDiscount() {
		return *li.DiscountPrice
	}
	return li.Price
}

// LineTotal は割引適用後の小計を返す。
func (li LineItem) LineTotal() float64 {
	return li.UnitPrice() * float64(li.Quantity)
}

// NewLineItem は商品から数量付きのLineItemを生成する。
func NewLineItem(p model.Product, quantity int) LineItem {
	li := LineItem{
		ProductID: p.ID,
		Name:      p.Name,
		Brand:     p.Brand,
		Price:     p.Price.Float64(),
		Quantity:  quantity,
	}
	if len(p.Images) > 0 {
		li.Images = append([]string(nil), p.Images...)
	}
	if p.DiscountPrice != nil {
		d := p.DiscountPrice.Float64()
		li.DiscountPrice = &d
	}
	return li
}

// State はカートの状態。Itemsは追加順に並び、商品IDごとに高々1件。
// メソッドはレシーバを変更せず、新しいStateを返す。
type State struct {
	Items []LineItem `json:"items"`
}

// Add は商品を追加する。
// 同じ商品IDの明細があれば数量を加算し、なければ末尾に追加する。
// quantityが1未満の場合はDefaultQuantityとして扱う。上限は設けない。
func (s State) Add(p model.Product, quantity int) State {
	if quantity < 1 {
		quantity = DefaultQuantity
	}
	items := s.clone().Items
	for i := range items {
		if items[i].ProductID == p.ID {
			items[i].Quantity += quantity
			return State{Items: items}
		}
	}
	return State{Items: append(items, NewLineItem(p, quantity))}
}

// Remove は指定商品の明細を削除する。存在しない場合は何もしない。
func (s State) Remove(productID string) State {
	items := make([]LineItem, 0, len(s.Items))
	for _, item := range s.Items {
		if item.ProductID != productID {
			items = append(items, cloneItem(item))
		}
	}
	return State{Items: items}
}

// SetQuantity は指定商品の数量を置き換える。
// quantityが0以下の場合はRemoveと同じ。存在しない商品IDは無視する。
func (s State) SetQuantity(productID string, quantity int) State {
	if quantity <= 0 {
		return s.Remove(productID)
	}
	items := s.clone().Items
	for i := range items {
		if items[i].ProductID == productID {
			items[i].Quantity = quantity
		}
	}
	return State{Items: items}
}

// Clear は空のカートを返す。
func (s State) Clear() State {
	return State{Items: []LineItem{}}
}

// Find は指定商品の明細を返す。
func (s State) Find(productID string) (LineItem, bool) {
	for _, item := range s.Items {
		if item.ProductID == productID {
			return cloneItem(item), true
		}
	}
	return LineItem{}, false
}

// RemoveOrdered は注文した明細の数量だけカートから差し引く。
// 数量が0以下になった明細は削除する。注文後に追加された商品や増やした数量は残る。
func (s State) RemoveOrdered(lines []model.OrderLine) State {
	next := s.clone()
	for _, line := range lines {
		item, ok := next.Find(line.ProductID)
		if !ok {
			continue
		}
		next = next.SetQuantity(line.ProductID, item.Quantity-line.Quantity)
	}
	return next
}

// IsEmpty は明細が1件もないかを返す。
func (s State) IsEmpty() bool {
	return len(s.Items) == 0
}

// Total は割引適用後の合計金額を返す。丸めは行わない。
func (s State) Total() float64 {
	var total float64
	for _, item := range s.Items {
		total += item.LineTotal()
	}
	return total
}

// Subtotal は通常価格での合計金額を返す。
func (s State) Subtotal() float64 {
	var subtotal float64
	for _, item := range s.Items {
		subtotal += item.Price * float64(item.Quantity)
	}
	return subtotal
}

// Discount は割引額の合計を返す。
func (s State) Discount() float64 {
	var discount float64
	for _, item := range s.Items {
		if item.HasDiscount() {
			discount += (item.Price - *item.DiscountPrice) * float64(item.Quantity)
		}
	}
	return discount
}

// ItemCount は数量の合計を返す（商品の種類数ではない）。
func (s State) ItemCount() int {
	var count int
	for _, item := range s.Items {
		count += item.Quantity
	}
	return count
}

// OrderLines は注文APIへ送る明細を返す。
func (s State) OrderLines() []model.OrderLine {
	lines := make([]model.OrderLine, len(s.Items))
	for i, item := range s.Items {
		lines[i] = model.OrderLine{ProductID: item.ProductID, Quantity: item.Quantity}
	}
	return lines
}

// normalize は復元したスナップショットの不変条件を回復する。
// 数量1未満の明細を除き、同じ商品IDの明細は先頭にまとめて数量を合算する。
func (s State) normalize() State {
	items := make([]LineItem, 0, len(s.Items))
	index := make(map[string]int, len(s.Items))
	for _, item := range s.Items {
		if item.ProductID == "" || item.Quantity < 1 {
			continue
		}
		if i, ok := index[item.ProductID]; ok {
			items[i].Quantity += item.Quantity
			continue
		}
		index[item.ProductID] = len(items)
		items = append(items, cloneItem(item))
	}
	return State{Items: items}
}

func (s State) clone() State {
	items := make([]LineItem, len(s.Items))
	for i, item := range s.Items {
		items[i] = cloneItem(item)
	}
	return State{Items: items}
}

func cloneItem(item LineItem) LineItem {
	if item.Images != nil {
		item.Images = append([]string(nil), item.Images...)
	}
	if item.DiscountPrice != nil {
		d := *item.DiscountPrice
		item.DiscountPrice = &d
	}
	return item
}
