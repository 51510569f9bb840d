package coupon

import (
	"context"
	"slices"
	"sync"
	"time"

	"storefront-svc/middleware"
	"storefront-svc/models"
	"storefront-svc/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	KeyCoupons              = "coupons"
	KeyActiveCoupon         = "activeCoupon"
	KeyHasCompletedPurchase = "hasCompletedPurchase"

	ActivationWindow = 15 * time.Minute
)

type Option func(*Engine)

// WithClock replaces time.Now for expiry arithmetic.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithTickInterval(d time.Duration) Option {
	return func(e *Engine) { e.tickInterval = d }
}

// WithExpiryHook is called, under the engine lock, once per coupon that runs out.
func WithExpiryHook(fn func(models.Coupon)) Option {
	return func(e *Engine) { e.onExpire = fn }
}

// Engine owns the coupon catalog of one session and at most one activated
// coupon. While a coupon is activated a countdown goroutine ticks until the
// coupon expires, the activation is replaced, or the engine is closed.
type Engine struct {
	mu           sync.Mutex
	kv           store.Store
	logger       *zap.Logger
	now          func() time.Time
	tickInterval time.Duration
	onExpire     func(models.Coupon)

	coupons   []models.Coupon
	active    *models.Coupon
	remaining time.Duration

	// generation invalidates ticks from a countdown that has been replaced.
	generation uint64
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	closed     bool
}

func NewEngine(ctx context.Context, kv store.Store, logger *zap.Logger, opts ...Option) *Engine {
	e := &Engine{
		kv:           kv,
		logger:       logger,
		now:          time.Now,
		tickInterval: time.Second,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.load(ctx)
	return e
}

func (e *Engine) load(ctx context.Context) {
	e.coupons = DefaultCatalog()
	if persisted, ok := store.LoadJSON[[]models.Coupon](ctx, e.kv, KeyCoupons, e.logger); ok {
		for _, p := range persisted {
			if i := e.indexOf(p.ID); i >= 0 {
				e.coupons[i].IsActivated = p.IsActivated
				e.coupons[i].ExpiresAt = p.ExpiresAt
			}
		}
	}

	saved, ok := store.LoadJSON[models.Coupon](ctx, e.kv, KeyActiveCoupon, e.logger)
	restorable := ok && e.indexOf(saved.ID) >= 0 &&
		(saved.ExpiresAt == nil || saved.ExpiresAt.After(e.now()))
	if ok && !restorable {
		e.logger.Info("Discarding expired active coupon", zap.String("coupon_id", saved.ID))
	}

	dirty := false
	for i := range e.coupons {
		keep := restorable && e.coupons[i].ID == saved.ID
		if keep {
			e.coupons[i].IsActivated = true
			e.coupons[i].ExpiresAt = saved.ExpiresAt
			continue
		}
		if e.coupons[i].IsActivated || e.coupons[i].ExpiresAt != nil {
			e.coupons[i].IsActivated = false
			e.coupons[i].ExpiresAt = nil
			dirty = true
		}
	}
	if dirty {
		e.persistCatalog(ctx)
	}

	if !restorable {
		if ok {
			if err := e.kv.Remove(ctx, KeyActiveCoupon); err != nil {
				e.logger.Warn("Failed to clear active coupon", zap.Error(err))
			}
		}
		return
	}

	active := e.coupons[e.indexOf(saved.ID)]
	e.active = &active
	if active.ExpiresAt != nil {
		e.remaining = active.ExpiresAt.Sub(e.now())
	}
	e.startCountdown()
}

func (e *Engine) indexOf(id string) int {
	return slices.IndexFunc(e.coupons, func(c models.Coupon) bool { return c.ID == id })
}

// Activate makes the coupon with id the only activated one for the next
// ActivationWindow. Unknown or retired coupons are ignored.
func (e *Engine) Activate(ctx context.Context, id string) (models.Coupon, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	idx := e.indexOf(id)
	if idx < 0 || !e.coupons[idx].IsActive {
		e.logger.Debug("Ignoring activation of unknown coupon", zap.String("coupon_id", id))
		return models.Coupon{}, false
	}

	expiresAt := e.now().Add(ActivationWindow)
	for i := range e.coupons {
		e.coupons[i].IsActivated = false
		e.coupons[i].ExpiresAt = nil
	}
	e.coupons[idx].IsActivated = true
	e.coupons[idx].ExpiresAt = &expiresAt

	active := e.coupons[idx]
	e.active = &active
	e.remaining = ActivationWindow

	e.persistCatalog(ctx)
	if err := store.SaveJSON(ctx, e.kv, KeyActiveCoupon, active); err != nil {
		e.logger.Error("Failed to persist active coupon", zap.Error(err))
	}
	e.startCountdown()

	middleware.RecordCouponEvent("activated")
	e.logger.Info("Coupon activated",
		zap.String("coupon_id", active.ID),
		zap.String("code", active.Code),
		zap.Time("expires_at", expiresAt),
	)
	return active, true
}

func (e *Engine) Deactivate(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.deactivate(ctx, "deactivated")
}

func (e *Engine) deactivate(ctx context.Context, reason string) bool {
	e.stopCountdown()
	e.remaining = 0
	if e.active == nil {
		return false
	}

	id := e.active.ID
	if i := e.indexOf(id); i >= 0 {
		e.coupons[i].IsActivated = false
		e.coupons[i].ExpiresAt = nil
	}
	e.active = nil

	e.persistCatalog(ctx)
	if err := e.kv.Remove(ctx, KeyActiveCoupon); err != nil {
		e.logger.Error("Failed to clear active coupon", zap.Error(err))
	}

	middleware.RecordCouponEvent(reason)
	e.logger.Info("Coupon deactivated", zap.String("coupon_id", id), zap.String("reason", reason))
	return true
}

// Applicable returns the activated coupon if it may be applied to orderTotal.
func (e *Engine) Applicable(ctx context.Context, orderTotal decimal.Decimal) *models.Coupon {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.active == nil {
		return nil
	}
	if e.active.ExpiresAt != nil && !e.now().Before(*e.active.ExpiresAt) {
		return nil
	}

	c := *e.active
	if c.ID == FirstPurchaseCouponID {
		if orderTotal.IsPositive() && e.isFirstPurchase(ctx) {
			return &c
		}
		return nil
	}
	if orderTotal.GreaterThanOrEqual(c.MinOrder) {
		return &c
	}
	return nil
}

func (e *Engine) IsFirstPurchase(ctx context.Context) bool {
	return e.isFirstPurchase(ctx)
}

func (e *Engine) isFirstPurchase(ctx context.Context) bool {
	done, err := store.Flag(ctx, e.kv, KeyHasCompletedPurchase)
	if err != nil {
		e.logger.Warn("Failed to read purchase marker, assuming first purchase", zap.Error(err))
		return true
	}
	return !done
}

func (e *Engine) MarkPurchaseCompleted(ctx context.Context) {
	if err := store.SetFlag(ctx, e.kv, KeyHasCompletedPurchase); err != nil {
		e.logger.Error("Failed to persist purchase marker", zap.Error(err))
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active != nil && e.active.ID == FirstPurchaseCouponID {
		e.deactivate(ctx, "deactivated")
	}
}

func (e *Engine) Coupons() []models.Coupon {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.coupons)
}

// Active returns the activated coupon, if any, and the time left on it as of
// the last tick.
func (e *Engine) Active() (*models.Coupon, time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active == nil {
		return nil, 0
	}
	c := *e.active
	return &c, e.remaining
}

// Close stops the countdown and waits for it to exit.
func (e *Engine) Close() {
	e.mu.Lock()
	e.closed = true
	e.stopCountdown()
	e.mu.Unlock()
	e.wg.Wait()
}

func (e *Engine) persistCatalog(ctx context.Context) {
	if err := store.SaveJSON(ctx, e.kv, KeyCoupons, e.coupons); err != nil {
		e.logger.Error("Failed to persist coupons", zap.Error(err))
	}
}

func (e *Engine) stopCountdown() {
	e.generation++
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
}

func (e *Engine) startCountdown() {
	e.stopCountdown()
	if e.closed || e.active == nil || e.active.ExpiresAt == nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	gen := e.generation

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ticker := time.NewTicker(e.tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if e.tick(gen) {
					return
				}
			}
		}
	}()
}

// tick recomputes the remaining time and expires the coupon at zero. It
// reports whether the countdown is finished.
func (e *Engine) tick(gen uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if gen != e.generation || e.active == nil || e.active.ExpiresAt == nil {
		return true
	}

	remaining := e.active.ExpiresAt.Sub(e.now())
	if remaining < 0 {
		remaining = 0
	}
	e.remaining = remaining
	if remaining > 0 {
		return false
	}

	expired := *e.active
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	e.deactivate(ctx, "expired")
	if e.onExpire != nil {
		e.onExpire(expired)
	}
	return true
}
