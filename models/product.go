package models

import "github.com/shopspring/decimal"

func init() {
	// Prices travel as JSON numbers, matching what the storefront persisted.
	decimal.MarshalJSONWithoutQuotes = true
}

type Product struct {
	ID            string           `json:"id"`
	Name          string           `json:"name"`
	Description   string           `json:"description,omitempty"`
	Price         decimal.Decimal  `json:"price"`
	OriginalPrice *decimal.Decimal `json:"originalPrice,omitempty"`
	Image         string           `json:"image,omitempty"`
	Category      string           `json:"category,omitempty"`
	Sizes         []string         `json:"sizes,omitempty"`
	Colors        []string         `json:"colors,omitempty"`
}
