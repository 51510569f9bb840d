package coupon

import (
	"storefront-svc/models"

	"github.com/shopspring/decimal"
)

// FirstPurchaseCouponID is reserved for the fixed-amount first purchase discount.
const FirstPurchaseCouponID = "1"

func DefaultCatalog() []models.Coupon {
	return []models.Coupon{
		{
			ID:            FirstPurchaseCouponID,
			Code:          "PRIMEIRACOMPRA",
			Description:   "R$ 10 de desconto na sua primeira compra",
			FixedDiscount: decimal.NewFromInt(10),
			MinOrder:      decimal.Zero,
			IsActive:      true,
		},
		{
			ID:              "2",
			Code:            "BEMVINDO10",
			Description:     "10% de desconto em compras acima de R$ 50",
			DiscountPercent: 10,
			MinOrder:        decimal.NewFromInt(50),
			IsActive:        true,
		},
		{
			ID:              "3",
			Code:            "SUPER15",
			Description:     "15% de desconto em compras acima de R$ 100",
			DiscountPercent: 15,
			MinOrder:        decimal.NewFromInt(100),
			IsActive:        true,
		},
		{
			ID:              "4",
			Code:            "VIP20",
			Description:     "20% de desconto em compras acima de R$ 200",
			DiscountPercent: 20,
			MinOrder:        decimal.NewFromInt(200),
			IsActive:        true,
		},
		{
			ID:              "5",
			Code:            "BLACK30",
			Description:     "30% de desconto na Black Friday",
			DiscountPercent: 30,
			MinOrder:        decimal.NewFromInt(150),
			IsActive:        false,
		},
	}
}
