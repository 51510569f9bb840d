package session

import (
	"context"
	"sync"
	"time"

	"storefront-svc/cart"
	"storefront-svc/checkout"
	"storefront-svc/coupon"
	"storefront-svc/customer"
	"storefront-svc/orders"
	"storefront-svc/store"
	"storefront-svc/syncqueue"

	"go.uber.org/zap"
)

const DefaultRefreshTimeout = 5 * time.Second

// Session bundles the engines that make up one shopper's state.
type Session struct {
	ID       string
	Cart     *cart.Engine
	Coupons  *coupon.Engine
	Customer *customer.Store
	Orders   *orders.History
	Durable  store.Store
	Scratch  store.Store

	lastSeen time.Time
}

// Checkout exposes the session to the checkout service.
func (s *Session) Checkout() checkout.Session {
	return checkout.Session{
		ID:       s.ID,
		Cart:     s.Cart,
		Coupons:  s.Coupons,
		Customer: s.Customer,
		Orders:   s.Orders,
		Durable:  s.Durable,
		Scratch:  s.Scratch,
	}
}

type Config struct {
	RefreshTimeout time.Duration
	// CouponOptions are passed to every coupon engine; tests use them to
	// inject a clock.
	CouponOptions []coupon.Option
}

// Manager builds sessions on first use and keeps them until they go idle.
type Manager struct {
	durable store.Store
	scratch store.Store
	remote  customer.Remote
	queue   syncqueue.Queue
	cfg     Config
	logger  *zap.Logger
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
	wg       sync.WaitGroup
}

func NewManager(durable, scratch store.Store, remote customer.Remote, queue syncqueue.Queue, cfg Config, logger *zap.Logger) *Manager {
	if cfg.RefreshTimeout <= 0 {
		cfg.RefreshTimeout = DefaultRefreshTimeout
	}
	return &Manager{
		durable:  durable,
		scratch:  scratch,
		remote:   remote,
		queue:    queue,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Get returns the session for id, loading it from the store the first time.
// Loading happens outside the registry lock; when two requests race on a new
// id, the first one stored wins and the other copy is discarded.
func (m *Manager) Get(ctx context.Context, id string) *Session {
	m.mu.Lock()
	if s, ok := m.sessions[id]; ok {
		s.lastSeen = m.now()
		m.mu.Unlock()
		return s
	}
	m.mu.Unlock()

	s := m.load(ctx, id)

	m.mu.Lock()
	if existing, ok := m.sessions[id]; ok {
		existing.lastSeen = m.now()
		m.mu.Unlock()
		s.Coupons.Close()
		return existing
	}
	s.lastSeen = m.now()
	m.sessions[id] = s
	if !m.closed {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			refreshCtx, cancel := context.WithTimeout(context.Background(), m.cfg.RefreshTimeout)
			defer cancel()
			s.Customer.Refresh(refreshCtx)
		}()
	}
	m.mu.Unlock()
	return s
}

func (m *Manager) load(ctx context.Context, id string) *Session {
	durable := store.Namespace(m.durable, "session:"+id+":")
	logger := m.logger.With(zap.String("session_id", id))
	s := &Session{
		ID:       id,
		Cart:     cart.NewEngine(ctx, durable, logger),
		Coupons:  coupon.NewEngine(ctx, durable, logger, m.cfg.CouponOptions...),
		Customer: customer.NewStore(ctx, durable, m.remote, m.queue, logger),
		Orders:   orders.NewHistory(durable, logger),
		Durable:  durable,
		Scratch:  store.Namespace(m.scratch, "scratch:"+id+":"),
	}
	logger.Debug("Session loaded")
	return s
}

// Len is the number of sessions held in memory.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Evict drops sessions not used within idle. Their state stays in the store
// and is reloaded on the next request.
func (m *Manager) Evict(idle time.Duration) int {
	cutoff := m.now().Add(-idle)

	m.mu.Lock()
	var stale []*Session
	for id, s := range m.sessions {
		if s.lastSeen.Before(cutoff) {
			stale = append(stale, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range stale {
		s.Coupons.Close()
	}
	if len(stale) > 0 {
		m.logger.Info("Evicted idle sessions", zap.Int("count", len(stale)))
	}
	return len(stale)
}

// StartJanitor evicts idle sessions every interval until ctx is done.
func (m *Manager) StartJanitor(ctx context.Context, interval, idle time.Duration) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Evict(idle)
			}
		}
	}()
}

// Close stops every coupon countdown and waits for background refreshes.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Coupons.Close()
	}
	m.wg.Wait()
}
