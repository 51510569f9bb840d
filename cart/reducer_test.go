package cart

import (
	"math/rand"
	"testing"

	"storefront-svc/catalog"
	"storefront-svc/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func product(id, price string) models.Product {
	return models.Product{ID: id, Name: id, Price: decimal.RequireFromString(price)}
}

// apply runs the reducer and the gift post-step the way the engine does.
func apply(t *testing.T, s State, e Event) State {
	t.Helper()
	next, err := Reduce(s, e)
	require.NoError(t, err)
	return ReconcileGift(next)
}

func giftLines(s State) int {
	n := 0
	for _, it := range s.Items {
		if it.IsGift {
			n++
			if it.ID != catalog.GiftProductID {
				return -1
			}
		}
	}
	return n
}

func TestReduce_IdenticalAddsMergeIntoOneLine(t *testing.T) {
	p := product("camiseta", "10")
	s := State{}
	for i := 0; i < 7; i++ {
		s = apply(t, s, Add(p, "M", "Preto"))
	}

	require.Len(t, s.Items, 1)
	assert.Equal(t, 7, s.Items[0].Quantity)
}

func TestReduce_VariantsAreSeparateLines(t *testing.T) {
	p := product("camiseta", "10")
	s := State{}
	s = apply(t, s, Add(p, "M", "Preto"))
	s = apply(t, s, Add(p, "G", "Preto"))
	s = apply(t, s, Add(p, "M", "Branco"))
	s = apply(t, s, Add(p, "M", "Preto"))

	require.Len(t, s.Items, 3)
	assert.Equal(t, 2, s.Items[0].Quantity)
	assert.Equal(t, 4, s.TotalItems())
}

func TestReduce_DoesNotMutateInput(t *testing.T) {
	s := apply(t, State{}, Add(product("a", "10"), "", ""))
	_ = apply(t, s, SetQuantity("a", 5))

	assert.Equal(t, 1, s.Items[0].Quantity)
}

func TestReduce_SetQuantityZeroRemoves(t *testing.T) {
	s := apply(t, State{}, Add(product("a", "10"), "", ""))
	s = apply(t, s, Add(product("b", "10"), "", ""))
	s = apply(t, s, SetQuantity("a", 0))

	require.Len(t, s.Items, 1)
	assert.Equal(t, "b", s.Items[0].ID)
}

func TestReduce_GiftIsLocked(t *testing.T) {
	s := apply(t, State{}, Add(product("tenis", "120"), "", ""))
	require.True(t, s.HasGift())

	for _, e := range []Event{
		Remove(catalog.GiftProductID),
		SetQuantity(catalog.GiftProductID, 3),
		SetQuantity(catalog.GiftProductID, 0),
		Add(catalog.Gift(), "", ""),
	} {
		next, err := Reduce(s, e)
		assert.ErrorIs(t, err, ErrGiftLocked, e.Kind.String())
		assert.Equal(t, s, next)
	}
}

func TestReduce_ClearRemovesGift(t *testing.T) {
	s := apply(t, State{}, Add(product("tenis", "120"), "", ""))
	s = apply(t, s, Clear())

	assert.Empty(t, s.Items)
}

func TestTotals_ExcludeGift(t *testing.T) {
	s := apply(t, State{}, Add(product("tenis", "119.90"), "", ""))

	assert.True(t, s.HasGift())
	assert.Equal(t, 1, s.TotalItems())
	assert.True(t, s.TotalPrice().Equal(decimal.RequireFromString("119.90")))
}

func TestReconcileGift_Idempotent(t *testing.T) {
	s := apply(t, State{}, Add(product("tenis", "150"), "", ""))
	once := ReconcileGift(s)
	twice := ReconcileGift(once)

	assert.Equal(t, once, twice)
	assert.Equal(t, 1, giftLines(twice))
}

func TestReconcileGift_CollapsesDuplicateGifts(t *testing.T) {
	gift := models.CartItem{Product: catalog.Gift(), Quantity: 1, IsGift: true}
	s := State{Items: []models.CartItem{
		{Product: product("tenis", "150"), Quantity: 1},
		gift, gift,
	}}

	assert.Equal(t, 1, giftLines(ReconcileGift(s)))
}

func TestGiftScenario_CrossingThresholdBothWays(t *testing.T) {
	s := apply(t, State{}, Add(product("camiseta", "39.00"), "M", "Preto"))
	s = apply(t, s, Add(product("garrafa", "56.00"), "", ""))
	assert.False(t, s.HasGift())

	s = apply(t, s, Add(product("capinha", "5.00"), "", ""))
	assert.True(t, s.TotalPrice().Equal(decimal.NewFromInt(100)))
	assert.Equal(t, 1, giftLines(s))

	s = apply(t, s, Remove("capinha"))
	assert.True(t, s.TotalPrice().Equal(decimal.NewFromInt(95)))
	assert.False(t, s.HasGift())
	require.Len(t, s.Items, 2)
	assert.Equal(t, "camiseta", s.Items[0].ID)
	assert.Equal(t, "garrafa", s.Items[1].ID)
}

func TestGiftInvariant_RandomSequences(t *testing.T) {
	products := []models.Product{
		product("a", "5"), product("b", "39"), product("c", "61"), product("d", "99.99"),
	}
	ids := []string{"a", "b", "c", "d", catalog.GiftProductID}
	rng := rand.New(rand.NewSource(42))

	for run := 0; run < 50; run++ {
		s := State{}
		for step := 0; step < 40; step++ {
			var e Event
			switch rng.Intn(4) {
			case 0, 1:
				e = Add(products[rng.Intn(len(products))], "", "")
			case 2:
				e = Remove(ids[rng.Intn(len(ids))])
			case 3:
				e = SetQuantity(ids[rng.Intn(len(ids))], rng.Intn(4)-1)
			}

			next, err := Reduce(s, e)
			if err != nil {
				assert.ErrorIs(t, err, ErrGiftLocked)
				assert.Equal(t, s, next)
			}
			s = ReconcileGift(next)

			want := s.TotalPrice().GreaterThanOrEqual(GiftThreshold)
			if want {
				require.Equal(t, 1, giftLines(s), "run %d step %d", run, step)
			} else {
				require.Equal(t, 0, giftLines(s), "run %d step %d", run, step)
			}
		}
	}
}
