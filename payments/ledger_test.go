package payments

import (
	"context"
	"strings"
	"testing"
	"time"

	"storefront-svc/models"
	"storefront-svc/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type recordingPublisher struct {
	events []models.PaymentEvent
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, event any) error {
	p.events = append(p.events, event.(models.PaymentEvent))
	return nil
}

func newTestLedger(t *testing.T) (*Ledger, *recordingPublisher, *time.Time) {
	t.Helper()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	pub := &recordingPublisher{}
	l := NewLedger(store.NewMemoryStore(), Merchant{PixKey: "loja@example.com", Name: "Loja", City: "SAO PAULO"}, pub, zaptest.NewLogger(t))
	l.now = func() time.Time { return now }
	return l, pub, &now
}

func createRequest(total string) models.CreateTransactionRequest {
	return models.CreateTransactionRequest{
		Customer:   models.TransactionCustomer{Name: "Ana", CPF: "12345678909"},
		Items:      []models.TransactionItem{{Name: "Garrafa", Price: decimal.RequireFromString(total), Quantity: 1}},
		TotalPrice: decimal.RequireFromString(total),
	}
}

func TestLedger_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	l, _, _ := newTestLedger(t)

	tx, err := l.Create(ctx, createRequest("56.00"))
	require.NoError(t, err)
	assert.Equal(t, models.GatewayStatusWaitingPayment, tx.Status)
	assert.True(t, strings.HasPrefix(tx.Pix.CopyPaste, "000201"))
	assert.Contains(t, tx.Pix.CopyPaste, "540556.00")

	got, err := l.Get(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, tx.ID, got.ID)
	assert.Equal(t, models.GatewayStatusWaitingPayment, got.Status)
}

func TestLedger_CreateRejectsZeroAmount(t *testing.T) {
	l, _, _ := newTestLedger(t)
	_, err := l.Create(context.Background(), createRequest("0"))
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestLedger_GetUnknown(t *testing.T) {
	l, _, _ := newTestLedger(t)
	_, err := l.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLedger_ExpiresLazily(t *testing.T) {
	ctx := context.Background()
	l, pub, now := newTestLedger(t)
	tx, err := l.Create(ctx, createRequest("10"))
	require.NoError(t, err)

	*now = now.Add(DefaultExpiry)
	got, err := l.Get(ctx, tx.ID)

	require.NoError(t, err)
	assert.Equal(t, models.GatewayStatusExpired, got.Status)
	require.Len(t, pub.events, 1)
	assert.Equal(t, "payment_expired", pub.events[0].EventType)
}

func TestLedger_ApplyWebhook(t *testing.T) {
	ctx := context.Background()
	l, pub, _ := newTestLedger(t)
	tx, err := l.Create(ctx, createRequest("10"))
	require.NoError(t, err)

	paid, err := l.ApplyWebhook(ctx, tx.ID, models.GatewayStatusPaid)
	require.NoError(t, err)
	assert.Equal(t, models.GatewayStatusPaid, paid.Status)

	again, err := l.ApplyWebhook(ctx, tx.ID, models.GatewayStatusPaid)
	require.NoError(t, err)
	assert.Equal(t, models.GatewayStatusPaid, again.Status)
	assert.Len(t, pub.events, 1, "redelivery publishes nothing")

	_, err = l.ApplyWebhook(ctx, tx.ID, models.GatewayStatusExpired)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	refunded, err := l.ApplyWebhook(ctx, tx.ID, models.GatewayStatusRefunded)
	require.NoError(t, err)
	assert.Equal(t, models.GatewayStatusRefunded, refunded.Status)
}

func TestLedger_ApplyWebhookUnknown(t *testing.T) {
	l, _, _ := newTestLedger(t)
	_, err := l.ApplyWebhook(context.Background(), "missing", models.GatewayStatusPaid)
	assert.ErrorIs(t, err, ErrNotFound)
}
