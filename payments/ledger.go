package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"storefront-svc/middleware"
	"storefront-svc/models"
	"storefront-svc/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrNotFound          = errors.New("transaction not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidAmount     = errors.New("transaction amount must be positive")
)

const DefaultExpiry = 30 * time.Minute

var transitions = map[models.GatewayStatus][]models.GatewayStatus{
	models.GatewayStatusWaitingPayment: {
		models.GatewayStatusPaid,
		models.GatewayStatusExpired,
		models.GatewayStatusCancelled,
	},
	models.GatewayStatusPaid: {
		models.GatewayStatusRefunded,
	},
}

func canTransition(from, to models.GatewayStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Publisher emits payment events; nil disables publishing.
type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}

type Merchant struct {
	PixKey string
	Name   string
	City   string
}

// Validate reports whether charges for this merchant can be encoded.
func (m Merchant) Validate() error {
	_, err := BRCode{Key: m.PixKey, MerchantName: m.Name, MerchantCity: m.City}.Encode()
	return err
}

// Ledger is the authoritative record of PIX charges. Webhooks move a charge
// through its lifecycle and the order-status endpoint reads it back.
type Ledger struct {
	mu        sync.Mutex
	kv        store.Store
	merchant  Merchant
	expiry    time.Duration
	publisher Publisher
	logger    *zap.Logger
	now       func() time.Time
}

func NewLedger(kv store.Store, merchant Merchant, publisher Publisher, logger *zap.Logger) *Ledger {
	return &Ledger{
		kv:        kv,
		merchant:  merchant,
		expiry:    DefaultExpiry,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

func key(id string) string {
	return "transaction:" + id
}

func (l *Ledger) Create(ctx context.Context, req models.CreateTransactionRequest) (models.Transaction, error) {
	if !req.TotalPrice.IsPositive() {
		return models.Transaction{}, ErrInvalidAmount
	}

	now := l.now().UTC()
	id := uuid.NewString()
	expiresAt := now.Add(l.expiry)
	code, err := BRCode{
		Key:          l.merchant.PixKey,
		MerchantName: l.merchant.Name,
		MerchantCity: l.merchant.City,
		Amount:       req.TotalPrice,
		TxID:         id,
	}.Encode()
	if err != nil {
		return models.Transaction{}, fmt.Errorf("failed to build pix code: %w", err)
	}

	tx := models.Transaction{
		ID:       id,
		Status:   models.GatewayStatusWaitingPayment,
		Amount:   req.TotalPrice,
		Customer: req.Customer,
		Items:    req.Items,
		Metadata: req.Metadata,
		Pix: models.PixPayload{
			QRCode:    code,
			CopyPaste: code,
			ExpiresAt: &expiresAt,
		},
		ExpiresAt: expiresAt,
		CreatedAt: now,
		UpdatedAt: now,
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := store.SaveJSON(ctx, l.kv, key(id), tx); err != nil {
		return models.Transaction{}, fmt.Errorf("failed to store transaction: %w", err)
	}

	l.logger.Info("PIX transaction created",
		zap.String("transaction_id", id),
		zap.String("amount", req.TotalPrice.String()),
	)
	return tx, nil
}

// Get returns the transaction, expiring it first if its window has passed.
func (l *Ledger) Get(ctx context.Context, id string) (models.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	tx, err := l.load(ctx, id)
	if err != nil {
		return models.Transaction{}, err
	}
	if tx.Status == models.GatewayStatusWaitingPayment && !l.now().Before(tx.ExpiresAt) {
		tx, err = l.transition(ctx, tx, models.GatewayStatusExpired)
		if err != nil {
			return models.Transaction{}, err
		}
	}
	return tx, nil
}

// ApplyWebhook moves the transaction to status. Repeating the current status
// is a no-op so that redelivered webhooks are harmless.
func (l *Ledger) ApplyWebhook(ctx context.Context, id string, status models.GatewayStatus) (models.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	tx, err := l.load(ctx, id)
	if err != nil {
		return models.Transaction{}, err
	}
	if tx.Status == status {
		l.logger.Info("Duplicate payment webhook ignored", zap.String("transaction_id", id), zap.String("status", string(status)))
		return tx, nil
	}
	if !canTransition(tx.Status, status) {
		return tx, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, tx.Status, status)
	}
	return l.transition(ctx, tx, status)
}

func (l *Ledger) load(ctx context.Context, id string) (models.Transaction, error) {
	raw, err := l.kv.Get(ctx, key(id))
	if errors.Is(err, store.ErrNotFound) {
		return models.Transaction{}, ErrNotFound
	}
	if err != nil {
		return models.Transaction{}, fmt.Errorf("failed to read transaction: %w", err)
	}
	var tx models.Transaction
	if err := json.Unmarshal([]byte(raw), &tx); err != nil {
		return models.Transaction{}, fmt.Errorf("failed to decode transaction %s: %w", id, err)
	}
	return tx, nil
}

func (l *Ledger) transition(ctx context.Context, tx models.Transaction, status models.GatewayStatus) (models.Transaction, error) {
	from := tx.Status
	tx.Status = status
	tx.UpdatedAt = l.now().UTC()
	if err := store.SaveJSON(ctx, l.kv, key(tx.ID), tx); err != nil {
		return models.Transaction{}, fmt.Errorf("failed to store transaction: %w", err)
	}

	middleware.RecordPaymentProcessed(string(status))
	l.logger.Info("Payment status updated",
		zap.String("transaction_id", tx.ID),
		zap.String("from", string(from)),
		zap.String("to", string(status)),
	)

	if l.publisher != nil {
		event := models.PaymentEvent{
			TransactionID: tx.ID,
			Amount:        tx.Amount,
			Status:        status,
			EventType:     eventType(status),
		}
		if err := l.publisher.Publish(ctx, tx.ID, event); err != nil {
			l.logger.Error("Failed to publish payment event", zap.String("transaction_id", tx.ID), zap.Error(err))
		}
	}
	return tx, nil
}

func eventType(status models.GatewayStatus) string {
	switch status {
	case models.GatewayStatusPaid:
		return "payment_success"
	case models.GatewayStatusExpired:
		return "payment_expired"
	case models.GatewayStatusRefunded:
		return "payment_refunded"
	default:
		return "payment_cancelled"
	}
}
