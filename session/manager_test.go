package session

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"storefront-svc/cart"
	"storefront-svc/models"
	"storefront-svc/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type countingRemote struct {
	fetches atomic.Int32
}

func (r *countingRemote) Fetch(_ context.Context, cpf string) (*models.CustomerData, error) {
	r.fetches.Add(1)
	return &models.CustomerData{CPF: cpf, Email: "remote@example.com"}, nil
}

func (r *countingRemote) Upsert(context.Context, models.CustomerData) error { return nil }

func TestGet_CachesPerID(t *testing.T) {
	m := NewManager(store.NewMemoryStore(), store.NewMemoryStore(), nil, nil, Config{}, zaptest.NewLogger(t))
	defer m.Close()
	ctx := context.Background()

	a := m.Get(ctx, "a")
	assert.Same(t, a, m.Get(ctx, "a"))
	assert.NotSame(t, a, m.Get(ctx, "b"))
	assert.Equal(t, 2, m.Len())
}

func TestGet_IsolatesSessions(t *testing.T) {
	durable := store.NewMemoryStore()
	m := NewManager(durable, store.NewMemoryStore(), nil, nil, Config{}, zaptest.NewLogger(t))
	defer m.Close()
	ctx := context.Background()

	p := models.Product{ID: "garrafa", Name: "Garrafa", Price: decimal.RequireFromString("56.00")}
	_, _, err := m.Get(ctx, "a").Cart.Apply(ctx, cart.Add(p, "", ""))
	require.NoError(t, err)

	assert.Empty(t, m.Get(ctx, "b").Cart.Snapshot().Items)
	_, err = durable.Get(ctx, "session:a:"+cart.KeyCart)
	assert.NoError(t, err)
}

func TestGet_ReloadsFromStoreAfterEviction(t *testing.T) {
	m := NewManager(store.NewMemoryStore(), store.NewMemoryStore(), nil, nil, Config{}, zaptest.NewLogger(t))
	defer m.Close()
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	p := models.Product{ID: "garrafa", Name: "Garrafa", Price: decimal.RequireFromString("56.00")}
	first := m.Get(ctx, "a")
	_, _, err := first.Cart.Apply(ctx, cart.Add(p, "", ""))
	require.NoError(t, err)

	now = now.Add(time.Hour)
	m.Get(ctx, "b")
	assert.Equal(t, 1, m.Evict(30*time.Minute))
	assert.Equal(t, 1, m.Len())

	second := m.Get(ctx, "a")
	assert.NotSame(t, first, second)
	assert.Len(t, second.Cart.Snapshot().Items, 1)
}

func TestGet_RefreshesCustomerInBackground(t *testing.T) {
	durable := store.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.SaveJSON(ctx, durable, "session:a:customer_data", models.CustomerData{Name: "Ana", CPF: "12345678909"}))

	remote := &countingRemote{}
	m := NewManager(durable, store.NewMemoryStore(), remote, nil, Config{RefreshTimeout: time.Second}, zaptest.NewLogger(t))
	s := m.Get(ctx, "a")
	m.Close()

	assert.Equal(t, int32(1), remote.fetches.Load())
	assert.Equal(t, "remote@example.com", s.Customer.Data().Email)
	assert.Equal(t, "Ana", s.Customer.Data().Name)
}

func TestCheckout_SharesEngines(t *testing.T) {
	m := NewManager(store.NewMemoryStore(), store.NewMemoryStore(), nil, nil, Config{}, zaptest.NewLogger(t))
	defer m.Close()

	s := m.Get(context.Background(), "a")
	cs := s.Checkout()
	assert.Equal(t, "a", cs.ID)
	assert.Same(t, s.Cart, cs.Cart)
	assert.Same(t, s.Coupons, cs.Coupons)
}

// gatedStore blocks reads under prefix until release is closed.
type gatedStore struct {
	*store.MemoryStore
	prefix  string
	release chan struct{}
}

func (g *gatedStore) Get(ctx context.Context, key string) (string, error) {
	if strings.HasPrefix(key, g.prefix) {
		<-g.release
	}
	return g.MemoryStore.Get(ctx, key)
}

func TestGet_SlowLoadDoesNotBlockOtherSessions(t *testing.T) {
	durable := &gatedStore{MemoryStore: store.NewMemoryStore(), prefix: "session:a:", release: make(chan struct{})}
	m := NewManager(durable, store.NewMemoryStore(), nil, nil, Config{}, zaptest.NewLogger(t))
	ctx := context.Background()

	loadedA := make(chan *Session)
	go func() { loadedA <- m.Get(ctx, "a") }()

	loadedB := make(chan *Session)
	go func() { loadedB <- m.Get(ctx, "b") }()

	select {
	case s := <-loadedB:
		assert.Equal(t, "b", s.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("session b waited for session a to load")
	}

	close(durable.release)
	assert.Equal(t, "a", (<-loadedA).ID)
	m.Close()
}

func TestGet_ConcurrentFirstRequestsShareSession(t *testing.T) {
	m := NewManager(store.NewMemoryStore(), store.NewMemoryStore(), nil, nil, Config{}, zaptest.NewLogger(t))
	defer m.Close()
	ctx := context.Background()

	got := make([]*Session, 8)
	var wg sync.WaitGroup
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = m.Get(ctx, "a")
		}(i)
	}
	wg.Wait()

	for _, s := range got {
		assert.Same(t, got[0], s)
	}
	assert.Equal(t, 1, m.Len())
}
