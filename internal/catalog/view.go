package catalog

import (
	"fmt"

	"github.com/hitoshi/storefront/internal/model"
	"github.com/hitoshi/storefront/internal/security"
)

// DefaultExcerptLength は商品一覧で表示する説明文抜粋の長さ。
const DefaultExcerptLength = 120

// ProductView は画面表示用に整形した商品情報。
// APIの商品情報に割引率・在庫表示・サニタイズ済み説明文などを加える。
type ProductView struct {
	model.Product
	DiscountPercent int      `json:"discount_percent"`
	StockStatus     string   `json:"stock_status"`
	InStock         bool     `json:"in_stock"`
	DisplayPrice    string   `json:"display_price"`
	OriginalPrice   string   `json:"original_price,omitempty"`
	DescriptionHTML string   `json:"description_html"`
	Excerpt         string   `json:"excerpt"`
	ImageURLs       []string `json:"image_urls"`
}

// Presenter は商品情報をProductViewに変換する。
type Presenter struct {
	sanitizer     security.Sanitizer
	excerptLength int
}

// NewPresenter はPresenterを生成する。excerptLengthが0以下の場合はDefaultExcerptLengthを使う。
func NewPresenter(sanitizer security.Sanitizer, excerptLength int) *Presenter {
	if excerptLength <= 0 {
		excerptLength = DefaultExcerptLength
	}
	return &Presenter{sanitizer: sanitizer, excerptLength: excerptLength}
}

// Product は1件の商品を表示用に変換する。
// 画像URLは外部ホストを直接参照せず、画像プロキシのパスに置き換える。
func (p *Presenter) Product(prod model.Product) ProductView {
	v := ProductView{
		Product:      prod,
		StockStatus:  StockStatus(prod.StockQuantity),
		InStock:      IsInStock(prod.StockQuantity),
		DisplayPrice: FormatCurrency(prod.EffectivePrice()),
		Excerpt:      Excerpt(prod.Description, p.excerptLength),
		ImageURLs:    make([]string, len(prod.Images)),
	}
	if prod.DiscountPrice != nil {
		v.DiscountPercent = DiscountPercent(prod.Price.Float64(), prod.DiscountPrice.Float64())
	}
	if v.DiscountPercent > 0 {
		v.OriginalPrice = FormatCurrency(prod.Price.Float64())
	}
	if p.sanitizer != nil {
		v.DescriptionHTML = p.sanitizer.Sanitize(prod.Description)
	}
	for i := range prod.Images {
		v.ImageURLs[i] = ImagePath(prod.ID, i)
	}
	return v
}

// Products は商品一覧を表示用に変換する。
func (p *Presenter) Products(products []model.Product) []ProductView {
	views := make([]ProductView, 0, len(products))
	for _, prod := range products {
		views = append(views, p.Product(prod))
	}
	return views
}

// ImagePath は商品画像の画像プロキシ上のパスを返す。
func ImagePath(productID string, index int) string {
	return fmt.Sprintf("/images/%s/%d", productID, index)
}
