package cart

import (
	"context"
	"slices"
	"sync"

	"storefront-svc/middleware"
	"storefront-svc/store"

	"go.uber.org/zap"
)

const (
	KeyCart     = "cart"
	KeyOpenCart = "openCart"
)

// Change describes the automatic gift adjustment made by a mutation.
type Change struct {
	GiftAdded   bool `json:"giftAdded"`
	GiftRemoved bool `json:"giftRemoved"`
}

// Engine owns one cart. Every mutation runs reduce, gift reconciliation and
// persistence under the same lock.
type Engine struct {
	mu     sync.Mutex
	kv     store.Store
	logger *zap.Logger
	state  State
}

func NewEngine(ctx context.Context, kv store.Store, logger *zap.Logger) *Engine {
	e := &Engine{kv: kv, logger: logger}
	if s, ok := store.LoadJSON[State](ctx, kv, KeyCart, logger); ok {
		// Repair records written before a threshold change or by hand.
		e.state = ReconcileGift(s)
	}
	return e
}

func (e *Engine) Snapshot() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return State{Items: slices.Clone(e.state.Items)}
}

func (e *Engine) Apply(ctx context.Context, ev Event) (State, Change, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	next, err := Reduce(e.state, ev)
	if err != nil {
		e.logger.Info("Cart mutation refused",
			zap.String("event", ev.Kind.String()),
			zap.String("product_id", ev.ProductID),
			zap.Error(err),
		)
		return e.state, Change{}, err
	}
	next = ReconcileGift(next)

	change := Change{
		GiftAdded:   !e.state.HasGift() && next.HasGift(),
		GiftRemoved: e.state.HasGift() && !next.HasGift() && ev.Kind != EventClear,
	}
	if change.GiftAdded {
		middleware.RecordGiftChange("added")
		e.logger.Info("Gift added to cart", zap.String("subtotal", next.TotalPrice().String()))
	}
	if change.GiftRemoved {
		middleware.RecordGiftChange("removed")
		e.logger.Info("Gift removed from cart", zap.String("subtotal", next.TotalPrice().String()))
	}

	e.state = next
	if err := store.SaveJSON(ctx, e.kv, KeyCart, e.state); err != nil {
		e.logger.Error("Failed to persist cart", zap.Error(err))
	}
	return State{Items: slices.Clone(e.state.Items)}, change, nil
}

// ConsumeOpenCart reports whether a caller asked for the cart to be opened on
// next load, clearing the request.
func (e *Engine) ConsumeOpenCart(ctx context.Context) bool {
	open, err := store.ConsumeFlag(ctx, e.kv, KeyOpenCart)
	if err != nil {
		e.logger.Warn("Failed to consume openCart flag", zap.Error(err))
	}
	return open
}

func (e *Engine) RequestOpenCart(ctx context.Context) {
	if err := store.SetFlag(ctx, e.kv, KeyOpenCart); err != nil {
		e.logger.Warn("Failed to set openCart flag", zap.Error(err))
	}
}
