package cart

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/hitoshi/storefront/internal/model"
)

const epsilon = 1e-9

func product(id string, price float64, discount *float64) model.Product {
	p := model.Product{
		ID:     id,
		Name:   "Product " + id,
		Brand:  "Brand",
		Price:  model.Price(price),
		Images: []string{"https://cdn.example.com/" + id + ".jpg"},
	}
	if discount != nil {
		p.DiscountPrice = model.PriceOf(*discount)
	}
	return p
}

func ptr(v float64) *float64 { return &v }

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < epsilon
}

func TestState_Add_SameProductMergesQuantity(t *testing.T) {
	p := product("p1", 50, nil)

	var s State
	for _, q := range []int{1, 2, 3, 4} {
		s = s.Add(p, q)
	}

	if len(s.Items) != 1 {
		t.Fatalf("明細数 = %d, want 1", len(s.Items))
	}
	if s.Items[0].Quantity != 10 {
		t.Errorf("数量 = %d, want 10", s.Items[0].Quantity)
	}
}

func TestState_Add_KeepsInsertionOrder(t *testing.T) {
	var s State
	s = s.Add(product("p1", 10, nil), 1)
	s = s.Add(product("p2", 20, nil), 1)
	s = s.Add(product("p3", 30, nil), 1)
	s = s.Add(product("p1", 10, nil), 1)

	got := make([]string, len(s.Items))
	for i, item := range s.Items {
		got[i] = item.ProductID
	}
	want := []string{"p1", "p2", "p3"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("明細の順序が異なる (-want +got):\n%s", diff)
	}
}

func TestState_Add_NonPositiveQuantityUsesDefault(t *testing.T) {
	var s State
	s = s.Add(product("p1", 10, nil), 0)
	s = s.Add(product("p2", 10, nil), -3)

	for _, item := range s.Items {
		if item.Quantity != DefaultQuantity {
			t.Errorf("%s の数量 = %d, want %d", item.ProductID, item.Quantity, DefaultQuantity)
		}
	}
}

func TestState_Add_SnapshotsProduct(t *testing.T) {
	p := product("p2", 80, ptr(60))
	s := State{}.Add(p, 1)

	want := LineItem{
		ProductID:     "p2",
		Name:          "Product p2",
		Brand:         "Brand",
		Images:        []string{"https://cdn.example.com/p2.jpg"},
		Price:         80,
		DiscountPrice: ptr(60),
		Quantity:      1,
	}
	if diff := cmp.Diff(want, s.Items[0]); diff != "" {
		t.Errorf("スナップショットが異なる (-want +got):\n%s", diff)
	}
}

func TestState_Add_DoesNotMutateReceiver(t *testing.T) {
	before := State{}.Add(product("p1", 10, nil), 1)
	_ = before.Add(product("p1", 10, nil), 5)

	if before.Items[0].Quantity != 1 {
		t.Errorf("元の状態の数量 = %d, want 1", before.Items[0].Quantity)
	}
}

func TestState_SetQuantityZero_EquivalentToRemove(t *testing.T) {
	base := State{}.
		Add(product("p1", 10, nil), 2).
		Add(product("p2", 20, nil), 1)

	removed := base.Remove("p1")
	zeroed := base.SetQuantity("p1", 0)
	negative := base.SetQuantity("p1", -1)

	if diff := cmp.Diff(removed, zeroed); diff != "" {
		t.Errorf("SetQuantity(0) と Remove の結果が異なる (-remove +setQuantity):\n%s", diff)
	}
	if diff := cmp.Diff(removed, negative); diff != "" {
		t.Errorf("SetQuantity(-1) と Remove の結果が異なる (-remove +setQuantity):\n%s", diff)
	}
	if _, ok := zeroed.Find("p1"); ok {
		t.Error("p1 が残っている")
	}
}

func TestState_SetQuantity_ReplacesQuantity(t *testing.T) {
	s := State{}.Add(product("p1", 10, nil), 2).SetQuantity("p1", 7)

	item, ok := s.Find("p1")
	if !ok {
		t.Fatal("p1 が見つからない")
	}
	if item.Quantity != 7 {
		t.Errorf("数量 = %d, want 7", item.Quantity)
	}
}

func TestState_UnknownProductID_IsNoop(t *testing.T) {
	base := State{}.Add(product("p1", 10, nil), 2)

	if diff := cmp.Diff(base, base.Remove("unknown")); diff != "" {
		t.Errorf("Remove(unknown) で状態が変化した:\n%s", diff)
	}
	if diff := cmp.Diff(base, base.SetQuantity("unknown", 5)); diff != "" {
		t.Errorf("SetQuantity(unknown) で状態が変化した:\n%s", diff)
	}
}

func TestState_Clear(t *testing.T) {
	s := State{}.
		Add(product("p1", 10, nil), 2).
		Add(product("p2", 20, ptr(15)), 1).
		Clear()

	if s.ItemCount() != 0 {
		t.Errorf("ItemCount = %d, want 0", s.ItemCount())
	}
	if !s.IsEmpty() {
		t.Errorf("明細数 = %d, want 0", len(s.Items))
	}
}

func TestState_Totals_Example(t *testing.T) {
	s := State{}.
		Add(product("p1", 50, nil), 2).
		Add(product("p2", 80, ptr(60)), 1)

	if got := s.Subtotal(); !approxEqual(got, 180) {
		t.Errorf("Subtotal = %v, want 180", got)
	}
	if got := s.Discount(); !approxEqual(got, 20) {
		t.Errorf("Discount = %v, want 20", got)
	}
	if got := s.Total(); !approxEqual(got, 160) {
		t.Errorf("Total = %v, want 160", got)
	}
	if got := s.ItemCount(); got != 3 {
		t.Errorf("ItemCount = %d, want 3", got)
	}
}

func TestState_TotalEqualsSubtotalMinusDiscount(t *testing.T) {
	tests := []struct {
		name  string
		state State
	}{
		{"空のカート", State{}},
		{"割引なし", State{}.Add(product("a", 19.99, nil), 3)},
		{"割引あり", State{}.Add(product("a", 19.99, ptr(9.95)), 7)},
		{"混在", State{}.
			Add(product("a", 0.1, nil), 3).
			Add(product("b", 1234.56, ptr(999.99)), 2).
			Add(product("c", 5, ptr(0)), 4)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.state.Total()
			want := tt.state.Subtotal() - tt.state.Discount()
			if math.Abs(got-want) > 1e-6 {
				t.Errorf("Total = %v, Subtotal - Discount = %v", got, want)
			}
		})
	}
}

func TestState_ZeroDiscountPriceIsIgnored(t *testing.T) {
	s := State{}.Add(product("p1", 25, ptr(0)), 2)

	if got := s.Total(); !approxEqual(got, 50) {
		t.Errorf("Total = %v, want 50", got)
	}
	if got := s.Discount(); !approxEqual(got, 0) {
		t.Errorf("Discount = %v, want 0", got)
	}
}

func TestState_ItemCount_SumsQuantitiesNotProducts(t *testing.T) {
	s := State{}.
		Add(product("p1", 1, nil), 4).
		Add(product("p2", 1, nil), 6)

	if got := s.ItemCount(); got != 10 {
		t.Errorf("ItemCount = %d, want 10", got)
	}
}

func TestState_Normalize_RepairsSnapshot(t *testing.T) {
	s := State{Items: []LineItem{
		{ProductID: "p1", Price: 10, Quantity: 1},
		{ProductID: "p2", Price: 20, Quantity: 0},
		{ProductID: "p1", Price: 10, Quantity: 2},
		{ProductID: "", Price: 5, Quantity: 1},
	}}.normalize()

	want := State{Items: []LineItem{{ProductID: "p1", Price: 10, Quantity: 3}}}
	if diff := cmp.Diff(want, s); diff != "" {
		t.Errorf("正規化結果が異なる (-want +got):\n%s", diff)
	}
}

func TestState_OrderLines(t *testing.T) {
	s := State{}.
		Add(product("p1", 50, nil), 2).
		Add(product("p2", 80, ptr(60)), 1)

	want := []model.OrderLine{
		{ProductID: "p1", Quantity: 2},
		{ProductID: "p2", Quantity: 1},
	}
	if diff := cmp.Diff(want, s.OrderLines()); diff != "" {
		t.Errorf("OrderLines が異なる (-want +got):\n%s", diff)
	}
}

func TestState_RemoveOrdered(t *testing.T) {
	s := State{}.
		Add(product("p1", 50, nil), 3).
		Add(product("p2", 80, nil), 1).
		Add(product("p3", 20, nil), 2)

	got := s.RemoveOrdered([]model.OrderLine{
		{ProductID: "p1", Quantity: 2},
		{ProductID: "p2", Quantity: 1},
		{ProductID: "p9", Quantity: 1},
	})

	want := []model.OrderLine{
		{ProductID: "p1", Quantity: 1},
		{ProductID: "p3", Quantity: 2},
	}
	if diff := cmp.Diff(want, got.OrderLines()); diff != "" {
		t.Errorf("RemoveOrdered の結果が異なる (-want +got):\n%s", diff)
	}
	if s.ItemCount() != 6 {
		t.Errorf("レシーバが変更された: ItemCount = %d", s.ItemCount())
	}
}

func TestState_RemoveOrdered_QuantityBelowOrderedRemovesLine(t *testing.T) {
	s := State{}.Add(product("p1", 50, nil), 1)

	got := s.RemoveOrdered([]model.OrderLine{{ProductID: "p1", Quantity: 3}})
	if !got.IsEmpty() {
		t.Errorf("items = %+v, want empty", got.Items)
	}
}
