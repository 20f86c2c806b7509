package clientstate

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/hitoshi/storefront/internal/model"
	"github.com/hitoshi/storefront/internal/repository"
)

// --- モック ---

// countingRepo はLoad呼び出し回数を数えるリポジトリ。
type countingRepo struct {
	repository.SnapshotRepository
	loads  atomic.Int32
	loadFn func(ctx context.Context, clientID, key string) ([]byte, error)
}

func (r *countingRepo) Load(ctx context.Context, clientID, key string) ([]byte, error) {
	r.loads.Add(1)
	if r.loadFn != nil {
		return r.loadFn(ctx, clientID, key)
	}
	return r.SnapshotRepository.Load(ctx, clientID, key)
}

// --- テスト ---

func TestManager_Get_StartsEmptyForNewClient(t *testing.T) {
	m := NewManager(repository.NewMemorySnapshotRepo(), nil)

	c, err := m.Get(context.Background(), "c1")
	if err != nil {
		t.Fatalf("Get がエラーを返した: %v", err)
	}
	if c.Cart.ItemCount() != 0 {
		t.Errorf("ItemCount = %d, want 0", c.Cart.ItemCount())
	}
	if c.Auth.IsAuthenticated() {
		t.Error("新規クライアントが認証済みになっている")
	}
}

func TestManager_Get_EmptyClientID(t *testing.T) {
	m := NewManager(repository.NewMemorySnapshotRepo(), nil)

	if _, err := m.Get(context.Background(), ""); err == nil {
		t.Error("空のクライアントIDでエラーが返されなかった")
	}
}

func TestManager_Get_ReturnsSameClient(t *testing.T) {
	m := NewManager(repository.NewMemorySnapshotRepo(), nil)
	ctx := context.Background()

	a, _ := m.Get(ctx, "c1")
	b, _ := m.Get(ctx, "c1")
	other, _ := m.Get(ctx, "c2")

	if a != b {
		t.Error("同じクライアントIDで別の Client が返された")
	}
	if a == other {
		t.Error("別のクライアントIDで同じ Client が返された")
	}
}

func TestManager_Get_RehydratesOnceUnderConcurrency(t *testing.T) {
	repo := &countingRepo{SnapshotRepository: repository.NewMemorySnapshotRepo()}
	release := make(chan struct{})
	repo.loadFn = func(ctx context.Context, clientID, key string) ([]byte, error) {
		<-release
		return nil, repository.ErrNotFound
	}
	m := NewManager(repo, nil)

	var wg sync.WaitGroup
	results := make([]*Client, 20)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := m.Get(context.Background(), "c1")
			if err != nil {
				t.Errorf("Get がエラーを返した: %v", err)
				return
			}
			results[i] = c
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	// cart-storage と auth-storage の2回
	if got := repo.loads.Load(); got != 2 {
		t.Errorf("Load 呼び出し回数 = %d, want 2", got)
	}
	for _, c := range results {
		if c != results[0] {
			t.Fatal("同時アクセスで異なる Client が生成された")
		}
	}
}

func TestManager_PersistsAndRehydrates(t *testing.T) {
	repo := repository.NewMemorySnapshotRepo()
	ctx := context.Background()

	first := NewManager(repo, nil)
	c, _ := first.Get(ctx, "c1")
	price := model.PriceOf(60)
	if err := c.Cart.Add(ctx, model.Product{ID: "p1", Name: "Shoe", Price: 80, DiscountPrice: price}, 2); err != nil {
		t.Fatalf("Add がエラーを返した: %v", err)
	}
	if err := c.Auth.SetAuth(ctx, model.User{ID: "u1", Email: "a@example.com", IsAdmin: true}, "tok"); err != nil {
		t.Fatalf("SetAuth がエラーを返した: %v", err)
	}

	// 再起動を想定して別のManagerで復元する
	second := NewManager(repo, nil)
	restored, err := second.Get(ctx, "c1")
	if err != nil {
		t.Fatalf("Get がエラーを返した: %v", err)
	}

	if diff := cmp.Diff(c.Cart.Snapshot(), restored.Cart.Snapshot()); diff != "" {
		t.Errorf("復元したカートが異なる (-before +after):\n%s", diff)
	}
	if !restored.Auth.IsAdmin() || restored.Auth.Token() != "tok" {
		t.Errorf("復元した認証状態 = %+v", restored.Auth.Snapshot())
	}
}

func TestManager_SnapshotFormat(t *testing.T) {
	repo := repository.NewMemorySnapshotRepo()
	ctx := context.Background()
	m := NewManager(repo, nil)

	c, _ := m.Get(ctx, "c1")
	_ = c.Cart.Add(ctx, model.Product{ID: "p1", Name: "Shoe", Brand: "B", Price: 50}, 1)

	data, err := repo.Load(ctx, "c1", CartStorageKey)
	if err != nil {
		t.Fatalf("スナップショットが保存されていない: %v", err)
	}

	var raw struct {
		State struct {
			Items []map[string]any `json:"items"`
		} `json:"state"`
		Version *int `json:"version"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("スナップショットの解析に失敗: %v", err)
	}
	if raw.Version == nil || *raw.Version != 0 {
		t.Errorf("version = %v, want 0", raw.Version)
	}
	if len(raw.State.Items) != 1 || raw.State.Items[0]["id"] != "p1" {
		t.Errorf("items = %v", raw.State.Items)
	}
}

func TestManager_LogoutRemovesAuthSnapshot(t *testing.T) {
	repo := repository.NewMemorySnapshotRepo()
	ctx := context.Background()
	m := NewManager(repo, nil)

	c, _ := m.Get(ctx, "c1")
	_ = c.Auth.SetAuth(ctx, model.User{ID: "u1"}, "tok")
	_ = c.Cart.Add(ctx, model.Product{ID: "p1", Price: 1}, 1)

	if err := c.Auth.Logout(ctx); err != nil {
		t.Fatalf("Logout がエラーを返した: %v", err)
	}

	if _, err := repo.Load(ctx, "c1", AuthStorageKey); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("auth-storage が残っている: err = %v", err)
	}
	if _, err := repo.Load(ctx, "c1", CartStorageKey); err != nil {
		t.Errorf("ログアウトで cart-storage が消えた: %v", err)
	}
}

func TestManager_CorruptSnapshotStartsEmpty(t *testing.T) {
	repo := repository.NewMemorySnapshotRepo()
	ctx := context.Background()
	_ = repo.Save(ctx, "c1", CartStorageKey, []byte(`{"state":{"items":"broken"`))

	m := NewManager(repo, nil)
	c, err := m.Get(ctx, "c1")
	if err != nil {
		t.Fatalf("Get がエラーを返した: %v", err)
	}
	if c.Cart.ItemCount() != 0 {
		t.Errorf("ItemCount = %d, want 0", c.Cart.ItemCount())
	}
}

func TestManager_StorageErrorIsReturned(t *testing.T) {
	storageErr := errors.New("connection refused")
	repo := &countingRepo{
		SnapshotRepository: repository.NewMemorySnapshotRepo(),
		loadFn: func(context.Context, string, string) ([]byte, error) {
			return nil, storageErr
		},
	}
	m := NewManager(repo, nil)

	if _, err := m.Get(context.Background(), "c1"); !errors.Is(err, storageErr) {
		t.Fatalf("err = %v, want %v", err, storageErr)
	}
	if m.Len() != 0 {
		t.Errorf("失敗したクライアントが保持されている: Len = %d", m.Len())
	}
}

func TestManager_EvictIdle(t *testing.T) {
	m := NewManager(repository.NewMemorySnapshotRepo(), nil)
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	m.now = func() time.Time { return base }
	_, _ = m.Get(ctx, "idle")
	m.now = func() time.Time { return base.Add(50 * time.Minute) }
	_, _ = m.Get(ctx, "active")

	m.now = func() time.Time { return base.Add(time.Hour) }
	evicted := m.EvictIdle(30 * time.Minute)

	if evicted != 1 {
		t.Errorf("解放数 = %d, want 1", evicted)
	}
	if m.Len() != 1 {
		t.Errorf("Len = %d, want 1", m.Len())
	}
}

func TestManager_Rotate_MovesStateToNewID(t *testing.T) {
	repo := repository.NewMemorySnapshotRepo()
	ctx := context.Background()
	m := NewManager(repo, nil)

	old, _ := m.Get(ctx, "planted-id")
	_ = old.Cart.Add(ctx, model.Product{ID: "p1", Name: "Shoe", Price: 50}, 2)
	_ = old.Auth.SetAuth(ctx, model.User{ID: "u1", Email: "a@example.com"}, "tok")

	rotated, err := m.Rotate(ctx, old)
	if err != nil {
		t.Fatalf("Rotate がエラーを返した: %v", err)
	}
	if rotated.ID == old.ID || rotated.ID == "" {
		t.Fatalf("新しいIDが発行されていない: %q", rotated.ID)
	}
	if diff := cmp.Diff(old.Cart.Snapshot(), rotated.Cart.Snapshot()); diff != "" {
		t.Errorf("カートが引き継がれていない (-old +new):\n%s", diff)
	}
	if rotated.Auth.Token() != "tok" {
		t.Errorf("Token = %q, want tok", rotated.Auth.Token())
	}

	for _, key := range []string{CartStorageKey, AuthStorageKey} {
		if _, err := repo.Load(ctx, old.ID, key); !errors.Is(err, repository.ErrNotFound) {
			t.Errorf("旧IDの %s が残っている: err = %v", key, err)
		}
		if _, err := repo.Load(ctx, rotated.ID, key); err != nil {
			t.Errorf("新IDの %s が保存されていない: %v", key, err)
		}
	}

	// 旧IDで再アクセスすると空の匿名クライアントになる
	again, err := m.Get(ctx, old.ID)
	if err != nil {
		t.Fatalf("Get がエラーを返した: %v", err)
	}
	if again == old || again.Auth.IsAuthenticated() || again.Cart.ItemCount() != 0 {
		t.Errorf("旧IDに状態が残っている: auth = %v, items = %d", again.Auth.IsAuthenticated(), again.Cart.ItemCount())
	}
	if got, _ := m.Get(ctx, rotated.ID); got != rotated {
		t.Error("新IDで Rotate の返した Client が取得できない")
	}
}

func TestManager_Rotate_AnonymousEmptyClientWritesNothing(t *testing.T) {
	repo := repository.NewMemorySnapshotRepo()
	ctx := context.Background()
	m := NewManager(repo, nil)

	old, _ := m.Get(ctx, "c1")
	rotated, err := m.Rotate(ctx, old)
	if err != nil {
		t.Fatalf("Rotate がエラーを返した: %v", err)
	}
	for _, key := range []string{CartStorageKey, AuthStorageKey} {
		if _, err := repo.Load(ctx, rotated.ID, key); !errors.Is(err, repository.ErrNotFound) {
			t.Errorf("空の %s が保存された: err = %v", key, err)
		}
	}
	if m.Len() != 1 {
		t.Errorf("Len = %d, want 1", m.Len())
	}
}

// saveFailingRepo はSaveが常に失敗するリポジトリ。
type saveFailingRepo struct {
	repository.SnapshotRepository
}

func (saveFailingRepo) Save(context.Context, string, string, []byte) error {
	return errors.New("disk full")
}

func TestManager_Rotate_SaveFailureKeepsOldClient(t *testing.T) {
	mem := repository.NewMemorySnapshotRepo()
	ctx := context.Background()
	_ = mem.Save(ctx, "c1", CartStorageKey, []byte(`{"state":{"items":[{"id":"p1","name":"Shoe","price":50,"quantity":1}]},"version":0}`))

	m := NewManager(saveFailingRepo{SnapshotRepository: mem}, nil)
	old, _ := m.Get(ctx, "c1")

	if _, err := m.Rotate(ctx, old); err == nil {
		t.Fatal("保存失敗時にエラーが返されなかった")
	}
	if got, _ := m.Get(ctx, "c1"); got != old {
		t.Error("失敗した Rotate で旧 Client が破棄された")
	}
	if _, err := mem.Load(ctx, "c1", CartStorageKey); err != nil {
		t.Errorf("失敗した Rotate で旧スナップショットが消えた: %v", err)
	}
}

func TestContext_RoundTrip(t *testing.T) {
	c := &Client{ID: "c1"}
	ctx := WithClient(context.Background(), c)

	got, ok := FromContext(ctx)
	if !ok || got != c {
		t.Error("コンテキストから Client を取得できない")
	}
	if _, ok := FromContext(context.Background()); ok {
		t.Error("空のコンテキストから Client が取得できた")
	}
}
