package cart

import (
	"errors"
	"slices"

	"storefront-svc/catalog"
	"storefront-svc/models"

	"github.com/shopspring/decimal"
)

// GiftThreshold is the non-gift subtotal at which the gift is granted.
var GiftThreshold = decimal.NewFromInt(100)

var ErrGiftLocked = errors.New("gift item cannot be changed")

type EventKind int

const (
	EventAdd EventKind = iota
	EventRemove
	EventSetQuantity
	EventClear
)

func (k EventKind) String() string {
	switch k {
	case EventAdd:
		return "add"
	case EventRemove:
		return "remove"
	case EventSetQuantity:
		return "set_quantity"
	case EventClear:
		return "clear"
	}
	return "unknown"
}

type Event struct {
	Kind      EventKind
	Product   models.Product
	Size      string
	Color     string
	ProductID string
	Quantity  int
}

func Add(p models.Product, size, color string) Event {
	return Event{Kind: EventAdd, Product: p, Size: size, Color: color}
}

func Remove(productID string) Event {
	return Event{Kind: EventRemove, ProductID: productID}
}

func SetQuantity(productID string, quantity int) Event {
	return Event{Kind: EventSetQuantity, ProductID: productID, Quantity: quantity}
}

func Clear() Event {
	return Event{Kind: EventClear}
}

type State struct {
	Items []models.CartItem `json:"items"`
}

// TotalItems sums quantities of non-gift lines.
func (s State) TotalItems() int {
	n := 0
	for _, it := range s.Items {
		if !it.IsGift {
			n += it.Quantity
		}
	}
	return n
}

// TotalPrice sums price times quantity of non-gift lines.
func (s State) TotalPrice() decimal.Decimal {
	total := decimal.Zero
	for _, it := range s.Items {
		if !it.IsGift {
			total = total.Add(it.LineTotal())
		}
	}
	return total
}

func (s State) HasGift() bool {
	return slices.ContainsFunc(s.Items, func(it models.CartItem) bool { return it.IsGift })
}

func (s State) targetsGift(productID string) bool {
	for _, it := range s.Items {
		if it.ID == productID {
			return it.IsGift
		}
	}
	return false
}

// Reduce applies e to s and returns the new state. The input is never mutated.
// Events aimed at the gift line return ErrGiftLocked with s unchanged.
func Reduce(s State, e Event) (State, error) {
	items := slices.Clone(s.Items)

	switch e.Kind {
	case EventAdd:
		if e.Product.ID == catalog.GiftProductID {
			return s, ErrGiftLocked
		}
		for i, it := range items {
			if !it.IsGift && it.SameLine(e.Product.ID, e.Size, e.Color) {
				items[i].Quantity++
				return State{Items: items}, nil
			}
		}
		items = append(items, models.CartItem{
			Product:       e.Product,
			Quantity:      1,
			SelectedSize:  e.Size,
			SelectedColor: e.Color,
		})
		return State{Items: items}, nil

	case EventRemove:
		if s.targetsGift(e.ProductID) {
			return s, ErrGiftLocked
		}
		items = slices.DeleteFunc(items, func(it models.CartItem) bool {
			return !it.IsGift && it.ID == e.ProductID
		})
		return State{Items: items}, nil

	case EventSetQuantity:
		if s.targetsGift(e.ProductID) {
			return s, ErrGiftLocked
		}
		if e.Quantity <= 0 {
			return Reduce(s, Remove(e.ProductID))
		}
		for i, it := range items {
			if !it.IsGift && it.ID == e.ProductID {
				items[i].Quantity = e.Quantity
			}
		}
		return State{Items: items}, nil

	case EventClear:
		return State{}, nil
	}

	return s, nil
}

// ReconcileGift adds or drops the gift line so that exactly one exists iff the
// non-gift subtotal reaches GiftThreshold.
func ReconcileGift(s State) State {
	want := s.TotalPrice().GreaterThanOrEqual(GiftThreshold)

	gifts := 0
	for _, it := range s.Items {
		if it.IsGift {
			gifts++
		}
	}
	if want && gifts == 1 || !want && gifts == 0 {
		return s
	}

	items := slices.DeleteFunc(slices.Clone(s.Items), func(it models.CartItem) bool { return it.IsGift })
	if want {
		items = append(items, models.CartItem{
			Product:  catalog.Gift(),
			Quantity: 1,
			IsGift:   true,
		})
	}
	return State{Items: items}
}
