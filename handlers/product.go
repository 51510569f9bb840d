package handlers

import (
	"errors"
	"net/http"

	"storefront-svc/catalog"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type ProductHandler struct {
	catalog *catalog.Catalog
	logger  *zap.Logger
}

func NewProductHandler(c *catalog.Catalog, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		catalog: c,
		logger:  logger,
	}
}

func (h *ProductHandler) GetProducts(c *gin.Context) {
	_, span := otel.Tracer("storefront-service").Start(c.Request.Context(), "GetProducts")
	defer span.End()

	products := h.catalog.All()
	span.SetAttributes(attribute.Int("products.count", len(products)))
	c.JSON(http.StatusOK, products)
}

// GetProduct redirects unknown ids back to the listing.
func (h *ProductHandler) GetProduct(c *gin.Context) {
	_, span := otel.Tracer("storefront-service").Start(c.Request.Context(), "GetProduct")
	defer span.End()

	id := c.Param("id")
	span.SetAttributes(attribute.String("product.id", id))

	p, err := h.catalog.Get(id)
	if errors.Is(err, catalog.ErrProductNotFound) {
		h.logger.Debug("Unknown product requested", zap.String("product_id", id))
		c.Redirect(http.StatusFound, "/products")
		return
	}
	c.JSON(http.StatusOK, p)
}
