package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Coupon struct {
	ID              string          `json:"id"`
	Code            string          `json:"code"`
	Description     string          `json:"description"`
	DiscountPercent int             `json:"discountPercent"`
	FixedDiscount   decimal.Decimal `json:"fixedDiscount"`
	MinOrder        decimal.Decimal `json:"minOrder"`
	ExpiresAt       *time.Time      `json:"expiresAt"`
	IsActive        bool            `json:"isActive"`
	IsActivated     bool            `json:"isActivated"`
}

// Discount is the amount taken off total, never more than total.
func (c Coupon) Discount(total decimal.Decimal) decimal.Decimal {
	if !total.IsPositive() {
		return decimal.Zero
	}
	var off decimal.Decimal
	if c.DiscountPercent > 0 {
		off = total.Mul(decimal.NewFromInt(int64(c.DiscountPercent))).Div(decimal.NewFromInt(100)).Round(2)
	} else {
		off = c.FixedDiscount
	}
	if off.GreaterThan(total) {
		return total
	}
	return off
}
