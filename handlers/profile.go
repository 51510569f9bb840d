package handlers

import (
	"net/http"

	"storefront-svc/customer"
	"storefront-svc/models"
	"storefront-svc/store"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ProfileHandler serves the remote customer profile API that
// customer.HTTPRemote talks to.
type ProfileHandler struct {
	kv     store.Store
	logger *zap.Logger
}

func NewProfileHandler(kv store.Store, logger *zap.Logger) *ProfileHandler {
	return &ProfileHandler{
		kv:     kv,
		logger: logger,
	}
}

func (h *ProfileHandler) GetProfile(c *gin.Context) {
	cpf := customer.NormalizeCPF(c.Param("cpf"))
	data, ok := store.LoadJSON[models.CustomerData](c.Request.Context(), h.kv, cpf, h.logger)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Customer not found"})
		return
	}
	c.JSON(http.StatusOK, data)
}

func (h *ProfileHandler) PutProfile(c *gin.Context) {
	cpf := customer.NormalizeCPF(c.Param("cpf"))
	if cpf == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cpf is required"})
		return
	}

	var data models.CustomerData
	if err := c.ShouldBindJSON(&data); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	data.CPF = cpf

	if err := store.SaveJSON(c.Request.Context(), h.kv, cpf, data); err != nil {
		h.logger.Error("Failed to store customer profile", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, data)
}
