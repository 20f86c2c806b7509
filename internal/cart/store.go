package cart

import (
	"context"
	"fmt"
	"sync"

	"github.com/hitoshi/storefront/internal/model"
)

// Persister はカートのスナップショットを永続化するアダプタ。
// 差分ではなく状態全体を毎回上書きする。
type Persister interface {
	Save(ctx context.Context, state State) error
}

// Store はカートの状態コンテナ。
// 各操作は1つの同期的な状態遷移として適用され、途中の状態が他の操作から見えることはない。
// 遷移後のスナップショットを Persister に書き出し、書き出しに失敗した場合は遷移を適用しない。
type Store struct {
	mu        sync.Mutex
	state     State
	persister Persister
}

// NewStore は復元済みの状態からStoreを生成する。
// persisterがnilの場合は永続化を行わない。
func NewStore(initial State, persister Persister) *Store {
	return &Store{
		state:     initial.normalize(),
		persister: persister,
	}
}

// Add は商品をカートに追加する。
func (s *Store) Add(ctx context.Context, product model.Product, quantity int) error {
	return s.apply(ctx, func(st State) State {
		return st.Add(product, quantity)
	})
}

// Remove は商品をカートから削除する。存在しない商品IDは無視する。
func (s *Store) Remove(ctx context.Context, productID string) error {
	return s.apply(ctx, func(st State) State {
		return st.Remove(productID)
	})
}

// SetQuantity は商品の数量を変更する。0以下の場合は削除する。
func (s *Store) SetQuantity(ctx context.Context, productID string, quantity int) error {
	return s.apply(ctx, func(st State) State {
		return st.SetQuantity(productID, quantity)
	})
}

// RemoveOrdered は注文した明細をカートから差し引く。注文確定後に呼び出す。
func (s *Store) RemoveOrdered(ctx context.Context, lines []model.OrderLine) error {
	return s.apply(ctx, func(st State) State {
		return st.RemoveOrdered(lines)
	})
}

// Clear はカートを空にする。
func (s *Store) Clear(ctx context.Context) error {
	return s.apply(ctx, func(st State) State {
		return st.Clear()
	})
}

// Snapshot は現在の状態のコピーを返す。
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Total は割引適用後の合計金額を返す。
func (s *Store) Total() float64 {
	return s.Snapshot().Total()
}

// Subtotal は通常価格での合計金額を返す。
func (s *Store) Subtotal() float64 {
	return s.Snapshot().Subtotal()
}

// Discount は割引額の合計を返す。
func (s *Store) Discount() float64 {
	return s.Snapshot().Discount()
}

// ItemCount は数量の合計を返す。
func (s *Store) ItemCount() int {
	return s.Snapshot().ItemCount()
}

// apply は状態遷移を計算し、永続化に成功した場合のみ適用する。
func (s *Store) apply(ctx context.Context, transition func(State) State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := transition(s.state)
	if s.persister != nil {
		if err := s.persister.Save(ctx, next.clone()); err != nil {
			return fmt.Errorf("カートの保存に失敗しました: %w", err)
		}
	}
	s.state = next
	return nil
}
