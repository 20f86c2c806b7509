package cart

// PricingRules は注文サマリーの送料・税率のルール。
type PricingRules struct {
	FreeShippingThreshold float64 // この金額以上で送料無料
	FlatShippingFee       float64 // 送料無料にならない場合の送料
	TaxRate               float64 // 割引適用後の合計に掛ける税率
}

// DefaultPricingRules はデフォルトのルールを返す。
// 100ドル以上で送料無料、それ以外は送料10ドル、税率8%。
func DefaultPricingRules() PricingRules {
	return PricingRules{
		FreeShippingThreshold: 100,
		FlatShippingFee:       10,
		TaxRate:               0.08,
	}
}

// Summary はカート画面の注文サマリー。金額は丸めていない。
type Summary struct {
	ItemCount             int
	Subtotal              float64
	Discount              float64
	Total                 float64
	Shipping              float64
	Tax                   float64
	GrandTotal            float64
	FreeShippingRemaining float64
}

// Summarize は状態から注文サマリーを計算する。
// 空のカートには送料をかけない。
func (r PricingRules) Summarize(s State) Summary {
	total := s.Total()
	sum := Summary{
		ItemCount: s.ItemCount(),
		Subtotal:  s.Subtotal(),
		Discount:  s.Discount(),
		Total:     total,
		Tax:       total * r.TaxRate,
	}
	if !s.IsEmpty() && total < r.FreeShippingThreshold {
		sum.Shipping = r.FlatShippingFee
		sum.FreeShippingRemaining = r.FreeShippingThreshold - total
	}
	sum.GrandTotal = total + sum.Shipping + sum.Tax
	return sum
}
