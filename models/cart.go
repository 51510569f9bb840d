package models

import "github.com/shopspring/decimal"

type CartItem struct {
	Product
	Quantity      int    `json:"quantity"`
	SelectedSize  string `json:"selectedSize,omitempty"`
	SelectedColor string `json:"selectedColor,omitempty"`
	IsGift        bool   `json:"isGift,omitempty"`
}

// SameLine reports whether the item has the given merge identity.
func (i CartItem) SameLine(productID, size, color string) bool {
	return i.ID == productID && i.SelectedSize == size && i.SelectedColor == color
}

func (i CartItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type AddCartItemRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Size      string `json:"size"`
	Color     string `json:"color"`
}

type UpdateQuantityRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}
