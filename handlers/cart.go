package handlers

import (
	"errors"
	"net/http"

	"storefront-svc/cart"
	"storefront-svc/catalog"
	"storefront-svc/models"
	"storefront-svc/session"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const noticeGiftLocked = "O brinde é adicionado automaticamente e não pode ser alterado."

type cartResponse struct {
	Items         []models.CartItem `json:"items"`
	TotalItems    int               `json:"totalItems"`
	TotalPrice    decimal.Decimal   `json:"totalPrice"`
	HasGift       bool              `json:"hasGift"`
	GiftThreshold decimal.Decimal   `json:"giftThreshold"`
	Open          bool              `json:"open,omitempty"`
	Change        *cart.Change      `json:"change,omitempty"`
}

func newCartResponse(s cart.State) cartResponse {
	items := s.Items
	if items == nil {
		items = []models.CartItem{}
	}
	return cartResponse{
		Items:         items,
		TotalItems:    s.TotalItems(),
		TotalPrice:    s.TotalPrice(),
		HasGift:       s.HasGift(),
		GiftThreshold: cart.GiftThreshold,
	}
}

type CartHandler struct {
	sessions *session.Manager
	catalog  *catalog.Catalog
	logger   *zap.Logger
}

func NewCartHandler(sessions *session.Manager, c *catalog.Catalog, logger *zap.Logger) *CartHandler {
	return &CartHandler{
		sessions: sessions,
		catalog:  c,
		logger:   logger,
	}
}

// GetCart returns the cart and consumes a pending request to open it.
func (h *CartHandler) GetCart(c *gin.Context) {
	sess := currentSession(c, h.sessions)
	resp := newCartResponse(sess.Cart.Snapshot())
	resp.Open = sess.Cart.ConsumeOpenCart(c.Request.Context())
	c.JSON(http.StatusOK, resp)
}

func (h *CartHandler) AddItem(c *gin.Context) {
	_, span := otel.Tracer("storefront-service").Start(c.Request.Context(), "AddCartItem")
	defer span.End()

	var req models.AddCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	span.SetAttributes(attribute.String("product.id", req.ProductID))

	p, err := h.catalog.Get(req.ProductID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		return
	}
	if err := catalog.ValidateSelection(p, req.Size, req.Color); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sess := currentSession(c, h.sessions)
	h.apply(c, sess, cart.Add(p, req.Size, req.Color))
}

func (h *CartHandler) UpdateQuantity(c *gin.Context) {
	var req models.UpdateQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sess := currentSession(c, h.sessions)
	h.apply(c, sess, cart.SetQuantity(c.Param("productId"), *req.Quantity))
}

func (h *CartHandler) RemoveItem(c *gin.Context) {
	sess := currentSession(c, h.sessions)
	h.apply(c, sess, cart.Remove(c.Param("productId")))
}

func (h *CartHandler) ClearCart(c *gin.Context) {
	sess := currentSession(c, h.sessions)
	h.apply(c, sess, cart.Clear())
}

func (h *CartHandler) OpenCart(c *gin.Context) {
	sess := currentSession(c, h.sessions)
	sess.Cart.RequestOpenCart(c.Request.Context())
	c.Status(http.StatusNoContent)
}

func (h *CartHandler) apply(c *gin.Context, sess *session.Session, ev cart.Event) {
	state, change, err := sess.Cart.Apply(c.Request.Context(), ev)
	if errors.Is(err, cart.ErrGiftLocked) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "notice": noticeGiftLocked})
		return
	}
	if err != nil {
		h.logger.Error("Cart update failed", zap.String("event", ev.Kind.String()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	resp := newCartResponse(state)
	if change.GiftAdded || change.GiftRemoved {
		resp.Change = &change
	}
	c.JSON(http.StatusOK, resp)
}
