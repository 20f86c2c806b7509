// Package clientstate はブラウザクライアントごとのカートストアと認証ストアを管理する。
//
// クライアントのストアは最初のリクエストで一度だけスナップショットから復元され、
// 以後はメモリ上で保持される。一定時間アクセスのないクライアントはメモリから解放され、
// 次のアクセスで再び復元される。
package clientstate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/hitoshi/storefront/internal/auth"
	"github.com/hitoshi/storefront/internal/cart"
	"github.com/hitoshi/storefront/internal/metrics"
	"github.com/hitoshi/storefront/internal/repository"
)

// Client は1つのブラウザクライアントが持つ状態コンテナ。
type Client struct {
	ID   string
	Cart *cart.Store
	Auth *auth.Store

	lastSeen atomic.Int64
}

func (c *Client) touch(now time.Time) {
	c.lastSeen.Store(now.UnixNano())
}

// LastSeen は最後にアクセスされた時刻を返す。
func (c *Client) LastSeen() time.Time {
	return time.Unix(0, c.lastSeen.Load())
}

// Manager はクライアントIDごとのClientを保持する。
type Manager struct {
	repo    repository.SnapshotRepository
	metrics metrics.MetricsCollector

	mu      sync.Mutex
	clients map[string]*Client
	group   singleflight.Group
	now     func() time.Time
}

// NewManager はManagerを生成する。mcがnilの場合はメトリクスを記録しない。
func NewManager(repo repository.SnapshotRepository, mc metrics.MetricsCollector) *Manager {
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &Manager{
		repo:    repo,
		metrics: mc,
		clients: make(map[string]*Client),
		now:     time.Now,
	}
}

// Get はクライアントIDに対応するClientを返す。
// メモリ上になければスナップショットから復元する。同じクライアントへの同時リクエストでも復元は1回だけ行う。
func (m *Manager) Get(ctx context.Context, clientID string) (*Client, error) {
	if clientID == "" {
		return nil, errors.New("client ID is required")
	}

	if c := m.lookup(clientID); c != nil {
		return c, nil
	}

	v, err, _ := m.group.Do(clientID, func() (interface{}, error) {
		if c := m.lookup(clientID); c != nil {
			return c, nil
		}

		c, err := m.rehydrate(context.WithoutCancel(ctx), clientID)
		if err != nil {
			return nil, err
		}

		m.mu.Lock()
		m.clients[clientID] = c
		n := len(m.clients)
		m.mu.Unlock()

		m.metrics.SetActiveClients(n)
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Client), nil
}

func (m *Manager) lookup(clientID string) *Client {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.clients[clientID]
	if !ok {
		return nil
	}
	c.touch(m.now())
	return c
}

// rehydrate はスナップショットからClientを組み立てる。
// 壊れたスナップショットは破棄して空の状態から始める。ストレージ自体のエラーは返す。
func (m *Manager) rehydrate(ctx context.Context, clientID string) (*Client, error) {
	cartState, err := loadSnapshot[cart.State](ctx, m.repo, m.metrics, clientID, CartStorageKey)
	if err != nil {
		return nil, err
	}
	authState, err := loadSnapshot[auth.State](ctx, m.repo, m.metrics, clientID, AuthStorageKey)
	if err != nil {
		return nil, err
	}

	c := m.newClient(clientID, cartState, authState)

	slog.Debug("client state rehydrated",
		slog.String("client_id", clientID),
		slog.Int("cart_items", c.Cart.ItemCount()),
		slog.Bool("authenticated", c.Auth.IsAuthenticated()),
	)
	return c, nil
}

func (m *Manager) newClient(clientID string, cartState cart.State, authState auth.State) *Client {
	c := &Client{
		ID: clientID,
		Cart: cart.NewStore(cartState, &snapshotPersister[cart.State]{
			repo: m.repo, clientID: clientID, key: CartStorageKey, metrics: m.metrics,
		}),
		Auth: auth.NewStore(authState, &snapshotPersister[auth.State]{
			repo: m.repo, clientID: clientID, key: AuthStorageKey, metrics: m.metrics,
		}),
	}
	c.touch(m.now())
	return c
}

// Rotate はoldの状態をサーバーが新しく発行したクライアントIDへ移し、新しいClientを返す。
// 旧IDのスナップショットは削除し、旧IDで再アクセスしても空の状態から始まるようにする。
// ログイン時に呼び、利用者が持ち込んだIDに認証情報が結び付かないようにする。
func (m *Manager) Rotate(ctx context.Context, old *Client) (*Client, error) {
	ctx = context.WithoutCancel(ctx)
	c := m.newClient(uuid.NewString(), old.Cart.Snapshot(), old.Auth.Snapshot())

	if cartState := c.Cart.Snapshot(); !cartState.IsEmpty() {
		p := &snapshotPersister[cart.State]{repo: m.repo, clientID: c.ID, key: CartStorageKey, metrics: m.metrics}
		if err := p.Save(ctx, cartState); err != nil {
			return nil, fmt.Errorf("failed to move %s: %w", CartStorageKey, err)
		}
	}
	if authState := c.Auth.Snapshot(); authState.IsAuthenticated() {
		p := &snapshotPersister[auth.State]{repo: m.repo, clientID: c.ID, key: AuthStorageKey, metrics: m.metrics}
		if err := p.Save(ctx, authState); err != nil {
			return nil, fmt.Errorf("failed to move %s: %w", AuthStorageKey, err)
		}
	}

	m.mu.Lock()
	delete(m.clients, old.ID)
	m.clients[c.ID] = c
	n := len(m.clients)
	m.mu.Unlock()
	m.metrics.SetActiveClients(n)

	for _, key := range []string{CartStorageKey, AuthStorageKey} {
		if err := m.repo.Delete(ctx, old.ID, key); err != nil {
			m.metrics.RecordSnapshotFailure(key)
			slog.Warn("failed to delete rotated snapshot",
				slog.String("client_id", old.ID),
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
	}

	slog.Debug("client ID rotated",
		slog.String("old_client_id", old.ID),
		slog.String("client_id", c.ID),
	)
	return c, nil
}

func loadSnapshot[T any](ctx context.Context, repo repository.SnapshotRepository, mc metrics.MetricsCollector, clientID, key string) (T, error) {
	var zero T

	data, err := repo.Load(ctx, clientID, key)
	if errors.Is(err, repository.ErrNotFound) {
		return zero, nil
	}
	if err != nil {
		mc.RecordSnapshotFailure(key)
		return zero, fmt.Errorf("failed to load %s: %w", key, err)
	}

	state, err := decodeSnapshot[T](data)
	if err != nil {
		mc.RecordSnapshotFailure(key)
		slog.Warn("discarding corrupt snapshot",
			slog.String("client_id", clientID),
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return zero, nil
	}
	return state, nil
}

// EvictIdle は最後のアクセスからidle以上経過したClientをメモリから解放し、解放した数を返す。
// スナップショットは削除しない。
func (m *Manager) EvictIdle(idle time.Duration) int {
	threshold := m.now().Add(-idle)

	m.mu.Lock()
	evicted := 0
	for id, c := range m.clients {
		if c.LastSeen().Before(threshold) {
			delete(m.clients, id)
			evicted++
		}
	}
	n := len(m.clients)
	m.mu.Unlock()

	m.metrics.SetActiveClients(n)
	return evicted
}

// Len はメモリ上のClient数を返す。
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.clients)
}
