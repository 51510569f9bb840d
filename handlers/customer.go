package handlers

import (
	"net/http"

	"storefront-svc/models"
	"storefront-svc/session"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type CustomerHandler struct {
	sessions *session.Manager
	logger   *zap.Logger
}

func NewCustomerHandler(sessions *session.Manager, logger *zap.Logger) *CustomerHandler {
	return &CustomerHandler{
		sessions: sessions,
		logger:   logger,
	}
}

type customerResponse struct {
	Customer models.CustomerData `json:"customer"`
	// Ready reports whether a PIX checkout can be started.
	Ready bool `json:"ready"`
}

func (h *CustomerHandler) GetCustomer(c *gin.Context) {
	sess := currentSession(c, h.sessions)
	c.JSON(http.StatusOK, customerResponse{
		Customer: sess.Customer.Data(),
		Ready:    sess.Customer.HasCPF(),
	})
}

func (h *CustomerHandler) UpdateCustomer(c *gin.Context) {
	var patch models.CustomerPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sess := currentSession(c, h.sessions)
	data := sess.Customer.Save(c.Request.Context(), patch)
	c.JSON(http.StatusOK, customerResponse{
		Customer: data,
		Ready:    sess.Customer.HasCPF(),
	})
}
