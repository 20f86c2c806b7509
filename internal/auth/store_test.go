package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/hitoshi/storefront/internal/model"
)

// --- モック ---

type mockPersister struct {
	saved   []State
	cleared int
	saveFn  func(ctx context.Context, state State) error
	clearFn func(ctx context.Context) error
}

func (m *mockPersister) Save(ctx context.Context, state State) error {
	if m.saveFn != nil {
		if err := m.saveFn(ctx, state); err != nil {
			return err
		}
	}
	m.saved = append(m.saved, state)
	return nil
}

func (m *mockPersister) Clear(ctx context.Context) error {
	m.cleared++
	if m.clearFn != nil {
		return m.clearFn(ctx)
	}
	return nil
}

var _ Persister = (*mockPersister)(nil)

func testUser(admin bool) model.User {
	return model.User{ID: "u1", Email: "alice@example.com", FullName: "Alice", IsAdmin: admin}
}

// --- テスト ---

func TestStore_SetAuth_Authenticates(t *testing.T) {
	p := &mockPersister{}
	s := NewStore(State{}, p)

	if err := s.SetAuth(context.Background(), testUser(false), "tok"); err != nil {
		t.Fatalf("SetAuth がエラーを返した: %v", err)
	}

	if !s.IsAuthenticated() {
		t.Error("SetAuth 後に IsAuthenticated が false")
	}
	if s.IsAdmin() {
		t.Error("一般会員なのに IsAdmin が true")
	}
	if s.Token() != "tok" {
		t.Errorf("Token = %q, want tok", s.Token())
	}
	if len(p.saved) != 1 || p.saved[0].Token != "tok" || p.saved[0].User.Email != "alice@example.com" {
		t.Errorf("保存されたスナップショット = %+v", p.saved)
	}
}

func TestStore_SetAuth_AdminFlag(t *testing.T) {
	s := NewStore(State{}, nil)
	_ = s.SetAuth(context.Background(), testUser(true), "tok")

	if !s.IsAdmin() {
		t.Error("管理者なのに IsAdmin が false")
	}
}

func TestStore_Logout_ClearsAndRemovesSnapshot(t *testing.T) {
	p := &mockPersister{}
	s := NewStore(State{}, p)
	ctx := context.Background()
	_ = s.SetAuth(ctx, testUser(true), "tok")

	if err := s.Logout(ctx); err != nil {
		t.Fatalf("Logout がエラーを返した: %v", err)
	}

	if s.IsAuthenticated() {
		t.Error("Logout 後に IsAuthenticated が true")
	}
	if s.IsAdmin() {
		t.Error("Logout 後に IsAdmin が true")
	}
	if _, ok := s.User(); ok {
		t.Error("Logout 後に会員情報が残っている")
	}
	if p.cleared != 1 {
		t.Errorf("Clear 呼び出し回数 = %d, want 1", p.cleared)
	}
}

func TestStore_Logout_ClearsMemoryEvenIfStorageFails(t *testing.T) {
	clearErr := errors.New("storage down")
	p := &mockPersister{clearFn: func(context.Context) error { return clearErr }}
	s := NewStore(State{User: &model.User{ID: "u1"}, Token: "tok"}, p)

	err := s.Logout(context.Background())
	if !errors.Is(err, clearErr) {
		t.Fatalf("err = %v, want %v", err, clearErr)
	}
	if s.Token() != "" {
		t.Error("削除失敗時にトークンが残っている")
	}
}

func TestStore_SetAuth_SaveFailureKeepsPreviousState(t *testing.T) {
	saveErr := errors.New("storage down")
	p := &mockPersister{saveFn: func(context.Context, State) error { return saveErr }}
	s := NewStore(State{}, p)

	err := s.SetAuth(context.Background(), testUser(false), "tok")
	if !errors.Is(err, saveErr) {
		t.Fatalf("err = %v, want %v", err, saveErr)
	}
	if s.IsAuthenticated() {
		t.Error("保存失敗時に認証済みになった")
	}
}

func TestNewStore_RehydratesSnapshot(t *testing.T) {
	s := NewStore(State{User: &model.User{ID: "u1", IsAdmin: true}, Token: "tok"}, nil)

	if !s.IsAuthenticated() || !s.IsAdmin() {
		t.Error("復元した状態が認証済み管理者になっていない")
	}
}

func TestNewStore_UserWithoutTokenIsDropped(t *testing.T) {
	s := NewStore(State{User: &model.User{ID: "u1", IsAdmin: true}}, nil)

	if s.IsAuthenticated() {
		t.Error("トークンなしで IsAuthenticated が true")
	}
	if s.IsAdmin() {
		t.Error("トークンなしで IsAdmin が true")
	}
}

func TestStore_SnapshotIsCopy(t *testing.T) {
	s := NewStore(State{}, nil)
	_ = s.SetAuth(context.Background(), testUser(false), "tok")

	snap := s.Snapshot()
	snap.User.IsAdmin = true

	if s.IsAdmin() {
		t.Error("Snapshot の変更が Store に影響した")
	}
}
