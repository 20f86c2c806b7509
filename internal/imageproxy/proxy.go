package imageproxy

import (
	"context"
	"errors"
	"fmt"

	"github.com/hitoshi/storefront/internal/model"
)

// ErrImageNotFound は指定された商品画像が存在しないことを表す。
var ErrImageNotFound = errors.New("product image not found")

// ProductSource は商品情報の取得元。storeapi.Clientが実装する。
type ProductSource interface {
	GetProduct(ctx context.Context, id string) (*model.Product, error)
}

// ImageFetcher は画像URLから画像を取得する。
type ImageFetcher interface {
	Fetch(ctx context.Context, imageURL string) (*Image, error)
}

// Proxy は商品IDと画像番号から商品画像を返す。
type Proxy struct {
	products ProductSource
	fetcher  ImageFetcher
}

// NewProxy はProxyを生成する。
func NewProxy(products ProductSource, fetcher ImageFetcher) *Proxy {
	return &Proxy{products: products, fetcher: fetcher}
}

// ProductImage は商品のindex番目の画像を取得する。
// 商品の取得に失敗した場合はそのエラーを返し、画像番号が範囲外の場合はErrImageNotFoundを返す。
func (p *Proxy) ProductImage(ctx context.Context, productID string, index int) (*Image, error) {
	product, err := p.products.GetProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to get product %s: %w", productID, err)
	}
	if index < 0 || index >= len(product.Images) || product.Images[index] == "" {
		return nil, ErrImageNotFound
	}
	return p.fetcher.Fetch(ctx, product.Images[index])
}

// compile-time interface check
var _ ImageFetcher = (*Fetcher)(nil)
