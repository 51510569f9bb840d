package orders

import (
	"context"
	"slices"
	"strings"
	"sync"

	"storefront-svc/models"
	"storefront-svc/store"

	"go.uber.org/zap"
)

func Key(cpf string) string {
	return "orders_" + cpf
}

type View struct {
	models.Order
	Bucket models.OrderBucket `json:"bucket"`
}

// History reads and appends the per-cpf order collection. Appends are
// serialized so the duplicate check and the write act as one step.
type History struct {
	mu     sync.Mutex
	kv     store.Store
	logger *zap.Logger
}

func NewHistory(kv store.Store, logger *zap.Logger) *History {
	return &History{kv: kv, logger: logger}
}

// List returns the customer's orders, newest first.
func (h *History) List(ctx context.Context, cpf string) []View {
	if cpf == "" {
		return []View{}
	}
	list, _ := store.LoadJSON[[]models.Order](ctx, h.kv, Key(cpf), h.logger)

	slices.SortStableFunc(list, func(a, b models.Order) int {
		return b.Date.Compare(a.Date)
	})

	views := make([]View, 0, len(list))
	for _, o := range list {
		views = append(views, View{Order: o, Bucket: Bucket(o.Status)})
	}
	return views
}

// Append records order unless one with the same number is already present.
// It reports whether the order was added.
func (h *History) Append(ctx context.Context, order models.Order) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	key := Key(order.CPF)
	list, _ := store.LoadJSON[[]models.Order](ctx, h.kv, key, h.logger)
	if slices.ContainsFunc(list, func(o models.Order) bool { return o.OrderNumber == order.OrderNumber }) {
		return false, nil
	}

	list = append(list, order)
	if err := store.SaveJSON(ctx, h.kv, key, list); err != nil {
		return false, err
	}
	h.logger.Info("Order recorded",
		zap.String("order_number", order.OrderNumber),
		zap.String("status", order.Status),
	)
	return true, nil
}

// Bucket maps a free-form order status onto the three displayed stages.
func Bucket(status string) models.OrderBucket {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "delivered", "entregue":
		return models.OrderBucketDelivered
	case "shipped", "enviado", "in_transit", "em_transito":
		return models.OrderBucketShipped
	default:
		return models.OrderBucketPreparing
	}
}
