package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront-svc/cart"
	"storefront-svc/middleware"
	"storefront-svc/models"
	"storefront-svc/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	KeyLastOrder          = "lastOrder"
	KeyPendingTransaction = "pendingTransactionId"
	KeyFreeShipping       = "freeShippingFromThankYou"

	PaymentMethodPix = "pix"
	StatusPreparing  = "preparing"
)

var (
	ErrEmptyCart          = errors.New("cart is empty")
	ErrCustomerIncomplete = errors.New("customer name and cpf are required for pix")
	ErrCheckoutFailed     = errors.New("checkout failed")
)

const (
	noticeVerifyFailed = "Não foi possível verificar o pagamento agora. Tente novamente em instantes."
	noticeExpired      = "O código PIX expirou. Gere um novo pagamento para concluir a compra."
	noticePending      = "Ainda não recebemos a confirmação do pagamento."
)

type Gateway interface {
	CreateTransaction(ctx context.Context, req models.CreateTransactionRequest) (*models.CreateTransactionResponse, error)
	OrderStatus(ctx context.Context, transactionID string) (models.GatewayStatus, error)
}

type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}

type Cart interface {
	Snapshot() cart.State
	Apply(ctx context.Context, ev cart.Event) (cart.State, cart.Change, error)
}

type Coupons interface {
	Applicable(ctx context.Context, orderTotal decimal.Decimal) *models.Coupon
	MarkPurchaseCompleted(ctx context.Context)
}

type Customer interface {
	Data() models.CustomerData
	HasCPF() bool
}

type OrderBook interface {
	Append(ctx context.Context, order models.Order) (bool, error)
}

// Session is the per-session state a checkout reads and updates. Scratch
// holds values that only live as long as the browsing session.
type Session struct {
	ID       string
	Cart     Cart
	Coupons  Coupons
	Customer Customer
	Orders   OrderBook
	Durable  store.Store
	Scratch  store.Store
}

type Quote struct {
	Subtotal     decimal.Decimal `json:"subtotal"`
	Discount     decimal.Decimal `json:"discount"`
	Total        decimal.Decimal `json:"total"`
	Coupon       *models.Coupon  `json:"coupon,omitempty"`
	FreeShipping bool            `json:"freeShipping"`
}

type PixCheckout struct {
	OrderNumber   string            `json:"orderNumber"`
	TransactionID string            `json:"transactionId"`
	Pix           models.PixPayload `json:"pix"`
	Quote
}

type Confirmation struct {
	Status        models.PaymentStatus `json:"status"`
	TransactionID string               `json:"transactionId,omitempty"`
	Source        string               `json:"source,omitempty"`
	Notice        string               `json:"notice,omitempty"`
	Order         *models.LastOrder    `json:"order,omitempty"`
}

type Service struct {
	gateway   Gateway
	publisher Publisher
	logger    *zap.Logger
	now       func() time.Time
}

func NewService(gateway Gateway, publisher Publisher, logger *zap.Logger) *Service {
	return &Service{
		gateway:   gateway,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Quote prices the current cart with the applicable coupon.
func (s *Service) Quote(ctx context.Context, sess Session) Quote {
	subtotal := sess.Cart.Snapshot().TotalPrice()
	q := Quote{Subtotal: subtotal, Discount: decimal.Zero, Total: subtotal}
	if c := sess.Coupons.Applicable(ctx, subtotal); c != nil {
		q.Coupon = c
		q.Discount = c.Discount(subtotal)
		q.Total = subtotal.Sub(q.Discount)
	}
	free, err := store.Flag(ctx, sess.Durable, KeyFreeShipping)
	if err != nil {
		s.logger.Warn("Failed to read free shipping flag", zap.Error(err))
	}
	q.FreeShipping = free
	return q
}

// CreatePix opens a PIX charge for the current cart. Every gateway failure
// is returned wrapped in ErrCheckoutFailed.
func (s *Service) CreatePix(ctx context.Context, sess Session) (*PixCheckout, error) {
	ctx, span := otel.Tracer("storefront-service").Start(ctx, "checkout.CreatePix")
	defer span.End()

	state := sess.Cart.Snapshot()
	if state.TotalItems() == 0 {
		return nil, ErrEmptyCart
	}
	if !sess.Customer.HasCPF() {
		return nil, ErrCustomerIncomplete
	}
	customer := sess.Customer.Data()
	quote := s.Quote(ctx, sess)
	orderNumber := newOrderNumber()

	req := models.CreateTransactionRequest{
		Customer: models.TransactionCustomer{
			Name:    customer.Name,
			Email:   customer.Email,
			Phone:   customer.Phone,
			CPF:     customer.CPF,
			Address: customer.Address,
		},
		TotalPrice: quote.Total,
		Metadata: map[string]string{
			"orderNumber":  orderNumber,
			"sessionId":    sess.ID,
			"subtotal":     quote.Subtotal.StringFixed(2),
			"discount":     quote.Discount.StringFixed(2),
			"freeShipping": fmt.Sprintf("%t", quote.FreeShipping),
		},
	}
	if quote.Coupon != nil {
		req.Metadata["couponCode"] = quote.Coupon.Code
	}
	for _, it := range state.Items {
		if it.IsGift {
			continue
		}
		req.Items = append(req.Items, models.TransactionItem{
			Name:     itemName(it),
			Price:    it.Price,
			Quantity: it.Quantity,
		})
	}

	span.SetAttributes(
		attribute.String("order.number", orderNumber),
		attribute.String("order.total", quote.Total.String()),
	)

	resp, err := s.gateway.CreateTransaction(ctx, req)
	if err != nil {
		span.RecordError(err)
		s.logger.Error("Failed to create PIX transaction",
			zap.String("order_number", orderNumber),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %w", ErrCheckoutFailed, err)
	}

	last := models.LastOrder{
		OrderNumber:   orderNumber,
		TransactionID: resp.TransactionID,
		Items:         state.Items,
		Subtotal:      quote.Subtotal,
		Discount:      quote.Discount,
		TotalPrice:    quote.Total,
		FreeShipping:  quote.FreeShipping,
		Customer:      customer,
		Pix:           *resp.Pix,
		CreatedAt:     s.now().UTC(),
	}
	if quote.Coupon != nil {
		last.CouponCode = quote.Coupon.Code
	}

	if err := store.SaveJSON(ctx, sess.Durable, KeyLastOrder, last); err != nil {
		s.logger.Error("Failed to persist last order", zap.Error(err))
	}
	if err := sess.Scratch.Set(ctx, KeyPendingTransaction, resp.TransactionID); err != nil {
		s.logger.Warn("Failed to persist pending transaction", zap.Error(err))
	}
	if quote.FreeShipping {
		if err := sess.Durable.Remove(ctx, KeyFreeShipping); err != nil {
			s.logger.Warn("Failed to clear free shipping flag", zap.Error(err))
		}
	}

	s.publish(ctx, "order_created", last)
	s.logger.Info("PIX checkout created",
		zap.String("order_number", orderNumber),
		zap.String("transaction_id", resp.TransactionID),
		zap.String("total", quote.Total.String()),
	)

	return &PixCheckout{
		OrderNumber:   orderNumber,
		TransactionID: resp.TransactionID,
		Pix:           *resp.Pix,
		Quote:         quote,
	}, nil
}

// Confirm settles the payment status shown after checkout. The transaction id
// comes from navTransactionID, then the session scratch space, then the last
// order; the status always comes from a fresh gateway query.
func (s *Service) Confirm(ctx context.Context, sess Session, navTransactionID string) Confirmation {
	ctx, span := otel.Tracer("storefront-service").Start(ctx, "checkout.Confirm")
	defer span.End()

	v := NewVerification()
	last, hasLast := store.LoadJSON[models.LastOrder](ctx, sess.Durable, KeyLastOrder, s.logger)

	txID, source := strings.TrimSpace(navTransactionID), "navigation"
	if txID == "" {
		pending, err := sess.Scratch.Get(ctx, KeyPendingTransaction)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			s.logger.Warn("Failed to read pending transaction", zap.Error(err))
		}
		txID, source = pending, "session"
	}
	if txID == "" && hasLast {
		txID, source = last.TransactionID, "lastOrder"
	}

	if txID == "" {
		status := v.Resolve(models.PaymentStatusPending)
		middleware.RecordPaymentVerification(string(status))
		return Confirmation{Status: status}
	}
	span.SetAttributes(attribute.String("transaction.id", txID), attribute.String("transaction.source", source))

	c := Confirmation{TransactionID: txID, Source: source}
	if hasLast && last.TransactionID == txID {
		c.Order = &last
	}

	gatewayStatus, err := s.gateway.OrderStatus(ctx, txID)
	if err != nil {
		span.RecordError(err)
		s.logger.Warn("Payment verification failed",
			zap.String("transaction_id", txID),
			zap.Error(err),
		)
		c.Status = v.Resolve(models.PaymentStatusError)
		c.Notice = noticeVerifyFailed
	} else {
		c.Status = v.Resolve(MapGatewayStatus(gatewayStatus))
		switch c.Status {
		case models.PaymentStatusExpired:
			c.Notice = noticeExpired
		case models.PaymentStatusPending:
			c.Notice = noticePending
		}
	}

	middleware.RecordPaymentVerification(string(c.Status))
	span.SetAttributes(attribute.String("payment.status", string(c.Status)))

	// A paid transaction from another session is reported but not claimed.
	if c.Status == models.PaymentStatusPaid && c.Order != nil {
		s.completePurchase(ctx, sess, txID, c.Order)
	}
	return c
}

// completePurchase runs once per order: a repeated confirmation finds the
// order already recorded and leaves the current cart alone.
func (s *Service) completePurchase(ctx context.Context, sess Session, txID string, last *models.LastOrder) {
	sess.Coupons.MarkPurchaseCompleted(ctx)
	if err := sess.Scratch.Remove(ctx, KeyPendingTransaction); err != nil {
		s.logger.Warn("Failed to clear pending transaction", zap.Error(err))
	}
	if last.Customer.CPF == "" {
		return
	}

	added, err := sess.Orders.Append(ctx, models.Order{
		OrderNumber:   last.OrderNumber,
		Items:         last.Items,
		TotalPrice:    last.TotalPrice,
		PaymentMethod: PaymentMethodPix,
		Date:          s.now().UTC(),
		Status:        StatusPreparing,
		CPF:           last.Customer.CPF,
	})
	if err != nil {
		s.logger.Error("Failed to record order", zap.String("order_number", last.OrderNumber), zap.Error(err))
		return
	}
	if !added {
		return
	}

	if _, _, err := sess.Cart.Apply(ctx, cart.Clear()); err != nil {
		s.logger.Warn("Failed to clear cart after purchase", zap.Error(err))
	}
	if err := store.SetFlag(ctx, sess.Durable, KeyFreeShipping); err != nil {
		s.logger.Warn("Failed to set free shipping flag", zap.Error(err))
	}
	s.publish(ctx, "order_paid", *last)
	s.logger.Info("Purchase completed",
		zap.String("order_number", last.OrderNumber),
		zap.String("transaction_id", txID),
	)
}

func (s *Service) publish(ctx context.Context, eventType string, last models.LastOrder) {
	if s.publisher == nil {
		return
	}
	event := models.OrderEvent{
		OrderNumber:   last.OrderNumber,
		TransactionID: last.TransactionID,
		CPF:           last.Customer.CPF,
		TotalPrice:    last.TotalPrice,
		Items:         len(last.Items),
		EventType:     eventType,
	}
	if err := s.publisher.Publish(ctx, last.OrderNumber, event); err != nil {
		// Don't fail the checkout, but log the error
		s.logger.Error("Failed to publish order event", zap.String("event_type", eventType), zap.Error(err))
	}
}

func itemName(it models.CartItem) string {
	var variant []string
	if it.SelectedSize != "" {
		variant = append(variant, it.SelectedSize)
	}
	if it.SelectedColor != "" {
		variant = append(variant, it.SelectedColor)
	}
	if len(variant) == 0 {
		return it.Name
	}
	return it.Name + " (" + strings.Join(variant, ", ") + ")"
}

func newOrderNumber() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "PED" + strings.ToUpper(id[:10])
}
