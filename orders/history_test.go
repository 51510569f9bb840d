package orders

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"storefront-svc/models"
	"storefront-svc/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func order(number string, date time.Time, status string) models.Order {
	return models.Order{
		OrderNumber:   number,
		TotalPrice:    decimal.NewFromInt(100),
		PaymentMethod: "pix",
		Date:          date,
		Status:        status,
		CPF:           "12345678909",
	}
}

func TestHistory_ListSortsNewestFirst(t *testing.T) {
	ctx := context.Background()
	h := NewHistory(store.NewMemoryStore(), zaptest.NewLogger(t))
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	for _, o := range []models.Order{
		order("A", base, "paid"),
		order("C", base.Add(48*time.Hour), "delivered"),
		order("B", base.Add(24*time.Hour), "shipped"),
	} {
		_, err := h.Append(ctx, o)
		require.NoError(t, err)
	}

	got := h.List(ctx, "12345678909")

	require.Len(t, got, 3)
	assert.Equal(t, "C", got[0].OrderNumber)
	assert.Equal(t, models.OrderBucketDelivered, got[0].Bucket)
	assert.Equal(t, "B", got[1].OrderNumber)
	assert.Equal(t, models.OrderBucketShipped, got[1].Bucket)
	assert.Equal(t, "A", got[2].OrderNumber)
	assert.Equal(t, models.OrderBucketPreparing, got[2].Bucket)
}

func TestHistory_AppendIsIdempotent(t *testing.T) {
	ctx := context.Background()
	h := NewHistory(store.NewMemoryStore(), zaptest.NewLogger(t))
	o := order("A", time.Now(), "paid")

	added, err := h.Append(ctx, o)
	require.NoError(t, err)
	assert.True(t, added)
	added, err = h.Append(ctx, o)
	require.NoError(t, err)
	assert.False(t, added)

	assert.Len(t, h.List(ctx, o.CPF), 1)
}

func TestHistory_KeyedByCPF(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryStore()
	h := NewHistory(kv, zaptest.NewLogger(t))
	_, err := h.Append(ctx, order("A", time.Now(), "paid"))
	require.NoError(t, err)

	_, err = kv.Get(ctx, "orders_12345678909")
	assert.NoError(t, err)
	assert.Empty(t, h.List(ctx, "98765432100"))
	assert.Empty(t, h.List(ctx, ""))
}

func TestHistory_CorruptRecordIsCleared(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryStore()
	require.NoError(t, kv.Set(ctx, Key("1"), `{"oops":`))
	h := NewHistory(kv, zaptest.NewLogger(t))

	assert.Empty(t, h.List(ctx, "1"))
	_, err := kv.Get(ctx, Key("1"))
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestBucket(t *testing.T) {
	tests := map[string]models.OrderBucket{
		"delivered":  models.OrderBucketDelivered,
		"Entregue":   models.OrderBucketDelivered,
		"shipped":    models.OrderBucketShipped,
		" enviado ":  models.OrderBucketShipped,
		"preparing":  models.OrderBucketPreparing,
		"paid":       models.OrderBucketPreparing,
		"":           models.OrderBucketPreparing,
		"whatever??": models.OrderBucketPreparing,
	}
	for status, want := range tests {
		assert.Equal(t, want, Bucket(status), status)
	}
}

type slowStore struct {
	*store.MemoryStore
	delay time.Duration
}

func (s slowStore) Get(ctx context.Context, key string) (string, error) {
	time.Sleep(s.delay)
	return s.MemoryStore.Get(ctx, key)
}

func TestHistory_ConcurrentAppendSameOrder(t *testing.T) {
	ctx := context.Background()
	h := NewHistory(slowStore{MemoryStore: store.NewMemoryStore(), delay: 2 * time.Millisecond}, zaptest.NewLogger(t))
	now := time.Now()

	var added atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := h.Append(ctx, order("PED1", now, "preparing"))
			assert.NoError(t, err)
			if ok {
				added.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), added.Load())
	assert.Len(t, h.List(ctx, "12345678909"), 1)
}

func TestHistory_ConcurrentAppendKeepsEveryOrder(t *testing.T) {
	ctx := context.Background()
	h := NewHistory(slowStore{MemoryStore: store.NewMemoryStore(), delay: 2 * time.Millisecond}, zaptest.NewLogger(t))
	now := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := h.Append(ctx, order(fmt.Sprintf("PED%d", i), now.Add(time.Duration(i)*time.Minute), "preparing"))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Len(t, h.List(ctx, "12345678909"), 8)
}
