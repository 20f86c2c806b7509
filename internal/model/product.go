package model

// Product はストアAPIの商品を表す。
type Product struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Slug           string         `json:"slug"`
	Description    string         `json:"description,omitempty"`
	Brand          string         `json:"brand"`
	CategoryID     string         `json:"category_id"`
	Price          Price          `json:"price"`
	DiscountPrice  *Price         `json:"discount_price,omitempty"`
	Images         []string       `json:"images"`
	StockQuantity  int            `json:"stock_quantity"`
	IsFeatured     bool           `json:"is_featured"`
	IsActive       bool           `json:"is_active"`
	AdditionalInfo map[string]any `json:"additional_info,omitempty"`
	CreatedAt      *Timestamp     `json:"created_at,omitempty"`
}

// EffectivePrice は割引価格があれば割引価格、なければ通常価格を返す。
func (p Product) EffectivePrice() float64 {
	if p.DiscountPrice != nil && *p.DiscountPrice > 0 {
		return p.DiscountPrice.Float64()
	}
	return p.Price.Float64()
}

// ProductInput は商品の作成・更新でAPIへ送る内容を表す。
// 更新時は指定された項目のみを送るため、すべてポインタで保持する。
type ProductInput struct {
	Name           *string        `json:"name,omitempty"`
	Slug           *string        `json:"slug,omitempty"`
	Description    *string        `json:"description,omitempty"`
	Brand          *string        `json:"brand,omitempty"`
	CategoryID     *string        `json:"category_id,omitempty"`
	Price          *float64       `json:"price,omitempty"`
	DiscountPrice  *float64       `json:"discount_price,omitempty"`
	StockQuantity  *int           `json:"stock_quantity,omitempty"`
	Images         []string       `json:"images,omitempty"`
	IsFeatured     *bool          `json:"is_featured,omitempty"`
	IsActive       *bool          `json:"is_active,omitempty"`
	AdditionalInfo map[string]any `json:"additional_info,omitempty"`
}

// Category は商品カテゴリを表す。
type Category struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Slug     string `json:"slug"`
	Image    string `json:"image,omitempty"`
	ParentID string `json:"parent_id,omitempty"`
}

// LowStockReport は在庫僅少商品の一覧を表す。
type LowStockReport struct {
	Products  []Product `json:"products"`
	Count     int       `json:"count"`
	Threshold int       `json:"threshold"`
}
