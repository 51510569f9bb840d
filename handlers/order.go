package handlers

import (
	"net/http"

	"storefront-svc/orders"
	"storefront-svc/session"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type OrderHandler struct {
	sessions *session.Manager
	logger   *zap.Logger
}

func NewOrderHandler(sessions *session.Manager, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{
		sessions: sessions,
		logger:   logger,
	}
}

// GetOrders lists the history for the customer's cpf, newest first.
func (h *OrderHandler) GetOrders(c *gin.Context) {
	sess := currentSession(c, h.sessions)
	cpf := sess.Customer.Data().CPF
	if cpf == "" {
		c.JSON(http.StatusOK, gin.H{"orders": []orders.View{}})
		return
	}

	views := sess.Orders.List(c.Request.Context(), cpf)
	if views == nil {
		views = []orders.View{}
	}
	c.JSON(http.StatusOK, gin.H{"orders": views})
}
