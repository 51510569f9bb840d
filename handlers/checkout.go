package handlers

import (
	"errors"
	"net/http"

	"storefront-svc/checkout"
	"storefront-svc/middleware"
	"storefront-svc/session"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type CheckoutHandler struct {
	sessions *session.Manager
	service  *checkout.Service
	logger   *zap.Logger
}

func NewCheckoutHandler(sessions *session.Manager, service *checkout.Service, logger *zap.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		sessions: sessions,
		service:  service,
		logger:   logger,
	}
}

func (h *CheckoutHandler) CreatePix(c *gin.Context) {
	sess := currentSession(c, h.sessions)
	out, err := h.service.CreatePix(c.Request.Context(), sess.Checkout())
	switch {
	case err == nil:
		c.JSON(http.StatusCreated, out)
	case errors.Is(err, checkout.ErrEmptyCart):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, checkout.ErrCustomerIncomplete):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		traceID := middleware.GetTraceID(c.Request.Context())
		h.logger.Error("PIX checkout failed", zap.String("trace_id", traceID), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{
			"error":  "Payment provider unavailable",
			"notice": "Não foi possível gerar o PIX. Tente novamente.",
		})
	}
}

// GetConfirmation always answers 200; the outcome is in the status field.
func (h *CheckoutHandler) GetConfirmation(c *gin.Context) {
	sess := currentSession(c, h.sessions)
	c.JSON(http.StatusOK, h.service.Confirm(c.Request.Context(), sess.Checkout(), c.Query("transactionId")))
}
