package catalog

import (
	"errors"
	"slices"

	"storefront-svc/models"

	"github.com/shopspring/decimal"
)

const GiftProductID = "gift-mini-kit-canetas"

var (
	ErrProductNotFound = errors.New("product not found")
	ErrSizeRequired    = errors.New("size selection required")
	ErrColorRequired   = errors.New("color selection required")
	ErrInvalidSize     = errors.New("size not offered for product")
	ErrInvalidColor    = errors.New("color not offered for product")
)

type Catalog struct {
	products []models.Product
	byID     map[string]models.Product
}

func New(products []models.Product) *Catalog {
	c := &Catalog{
		products: products,
		byID:     make(map[string]models.Product, len(products)),
	}
	for _, p := range products {
		c.byID[p.ID] = p
	}
	return c
}

func Default() *Catalog {
	return New(seedProducts())
}

func (c *Catalog) All() []models.Product {
	return slices.Clone(c.products)
}

func (c *Catalog) Get(id string) (models.Product, error) {
	p, ok := c.byID[id]
	if !ok {
		return models.Product{}, ErrProductNotFound
	}
	return p, nil
}

// Gift is the product injected into carts that reach the gift threshold.
func Gift() models.Product {
	return models.Product{
		ID:          GiftProductID,
		Name:        "Mini Kit Canetas",
		Description: "Brinde para compras acima de R$ 100",
		Price:       decimal.Zero,
		Image:       "/images/gift-mini-kit-canetas.jpg",
		Category:    "brinde",
	}
}

// ValidateSelection checks that a variant was picked wherever the product offers one.
func ValidateSelection(p models.Product, size, color string) error {
	if len(p.Sizes) > 0 {
		if size == "" {
			return ErrSizeRequired
		}
		if !slices.Contains(p.Sizes, size) {
			return ErrInvalidSize
		}
	}
	if len(p.Colors) > 0 {
		if color == "" {
			return ErrColorRequired
		}
		if !slices.Contains(p.Colors, color) {
			return ErrInvalidColor
		}
	}
	return nil
}

func price(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func pricePtr(s string) *decimal.Decimal {
	d := price(s)
	return &d
}

func seedProducts() []models.Product {
	return []models.Product{
		{
			ID:            "camiseta-oversized",
			Name:          "Camiseta Oversized Algodão",
			Description:   "Camiseta oversized 100% algodão",
			Price:         price("39.00"),
			OriginalPrice: pricePtr("79.90"),
			Image:         "/images/camiseta-oversized.jpg",
			Category:      "roupas",
			Sizes:         []string{"P", "M", "G", "GG"},
			Colors:        []string{"Preto", "Branco", "Bege"},
		},
		{
			ID:            "fone-bluetooth",
			Name:          "Fone Bluetooth TWS",
			Description:   "Fone sem fio com estojo de carregamento",
			Price:         price("61.00"),
			OriginalPrice: pricePtr("129.90"),
			Image:         "/images/fone-bluetooth.jpg",
			Category:      "eletronicos",
			Colors:        []string{"Preto", "Branco"},
		},
		{
			ID:          "garrafa-termica",
			Name:        "Garrafa Térmica 500ml",
			Description: "Mantém a temperatura por 12 horas",
			Price:       price("56.00"),
			Image:       "/images/garrafa-termica.jpg",
			Category:    "casa",
		},
		{
			ID:            "kit-skincare",
			Name:          "Kit Skincare Facial",
			Description:   "Limpeza, tônico e hidratante",
			Price:         price("89.90"),
			OriginalPrice: pricePtr("149.90"),
			Image:         "/images/kit-skincare.jpg",
			Category:      "beleza",
		},
		{
			ID:          "tenis-casual",
			Name:        "Tênis Casual Confort",
			Description: "Solado em EVA e cabedal respirável",
			Price:       price("119.90"),
			Image:       "/images/tenis-casual.jpg",
			Category:    "calcados",
			Sizes:       []string{"36", "37", "38", "39", "40", "41", "42"},
		},
		{
			ID:          "capinha-celular",
			Name:        "Capinha Anti-impacto",
			Description: "Proteção com bordas elevadas",
			Price:       price("5.00"),
			Image:       "/images/capinha-celular.jpg",
			Category:    "acessorios",
		},
	}
}
