package auth

import (
	"context"
	"fmt"
	"sync"

	"github.com/hitoshi/storefront/internal/model"
)

// Persister は認証状態のスナップショットを永続化するアダプタ。
type Persister interface {
	Save(ctx context.Context, state State) error
	Clear(ctx context.Context) error
}

// Store は認証状態のコンテナ。
// HTTPクライアントはここからトークンを読み、401を受けたときにLogoutを呼ぶ。
type Store struct {
	mu        sync.RWMutex
	state     State
	persister Persister
}

// NewStore は復元済みの状態からStoreを生成する。
// トークンのない状態に会員情報だけが残っている場合は未認証として扱い、会員情報も捨てる。
func NewStore(initial State, persister Persister) *Store {
	if !initial.IsAuthenticated() {
		initial = State{}
	}
	return &Store{
		state:     initial.clone(),
		persister: persister,
	}
}

// SetAuth はログイン成功時に会員情報とトークンを保存する。
// 永続化に失敗した場合は状態を変更しない。
func (s *Store) SetAuth(ctx context.Context, user model.User, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.state.WithAuth(user, token)
	if s.persister != nil {
		if err := s.persister.Save(ctx, next.clone()); err != nil {
			return fmt.Errorf("認証情報の保存に失敗しました: %w", err)
		}
	}
	s.state = next
	return nil
}

// Logout は会員情報とトークンを破棄し、永続化されたスナップショットを削除する。
// メモリ上の状態は削除の成否に関わらず破棄する。
func (s *Store) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = s.state.Cleared()
	if s.persister != nil {
		if err := s.persister.Clear(ctx); err != nil {
			return fmt.Errorf("認証情報の削除に失敗しました: %w", err)
		}
	}
	return nil
}

// Snapshot は現在の状態のコピーを返す。
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

// Token は現在のベアラートークンを返す。未認証なら空文字。
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Token
}

// User は現在の会員情報を返す。
func (s *Store) User() (model.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.User == nil {
		return model.User{}, false
	}
	return *s.state.User, true
}

// IsAuthenticated はトークンが存在するかを返す。
func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.IsAuthenticated()
}

// IsAdmin は管理者としてログインしているかを返す。
func (s *Store) IsAdmin() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.IsAdmin()
}
