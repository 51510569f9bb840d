package handlers

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"storefront-svc/middleware"
	"storefront-svc/models"
	"storefront-svc/payments"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const WebhookSecretHeader = "X-Webhook-Secret"

// PaymentHandler exposes the payment ledger with the gateway's wire format.
// With a non-empty webhookSecret, webhooks must carry it in
// WebhookSecretHeader.
type PaymentHandler struct {
	ledger        *payments.Ledger
	webhookSecret string
	logger        *zap.Logger
}

func NewPaymentHandler(ledger *payments.Ledger, webhookSecret string, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		ledger:        ledger,
		webhookSecret: webhookSecret,
		logger:        logger,
	}
}

func (h *PaymentHandler) CreatePix(c *gin.Context) {
	ctx, span := otel.Tracer("storefront-service").Start(c.Request.Context(), "CreatePixTransaction")
	defer span.End()

	var req models.CreateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.CreateTransactionResponse{Error: err.Error()})
		return
	}

	tx, err := h.ledger.Create(ctx, req)
	if errors.Is(err, payments.ErrInvalidAmount) {
		c.JSON(http.StatusBadRequest, models.CreateTransactionResponse{Error: err.Error()})
		return
	}
	if err != nil {
		span.RecordError(err)
		traceID := middleware.GetTraceID(ctx)
		h.logger.Error("Failed to create transaction", zap.String("trace_id", traceID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, models.CreateTransactionResponse{Error: "Internal server error"})
		return
	}

	span.SetAttributes(attribute.String("transaction.id", tx.ID))
	pix := tx.Pix
	c.JSON(http.StatusOK, models.CreateTransactionResponse{
		Success:       true,
		TransactionID: tx.ID,
		Pix:           &pix,
	})
}

func (h *PaymentHandler) GetOrderStatus(c *gin.Context) {
	id := c.Query("transactionId")
	if id == "" {
		c.JSON(http.StatusBadRequest, models.OrderStatusResponse{Error: "transactionId is required"})
		return
	}

	tx, err := h.ledger.Get(c.Request.Context(), id)
	if errors.Is(err, payments.ErrNotFound) {
		c.JSON(http.StatusNotFound, models.OrderStatusResponse{TransactionID: id, Error: err.Error()})
		return
	}
	if err != nil {
		h.logger.Error("Failed to load transaction", zap.String("transaction_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, models.OrderStatusResponse{TransactionID: id, Error: "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, models.OrderStatusResponse{
		Success:       true,
		TransactionID: tx.ID,
		Status:        tx.Status,
	})
}

func (h *PaymentHandler) Webhook(c *gin.Context) {
	if h.webhookSecret != "" {
		got := c.GetHeader(WebhookSecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.webhookSecret)) != 1 {
			h.logger.Warn("Webhook rejected", zap.String("client_ip", c.ClientIP()))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid webhook secret"})
			return
		}
	}

	var req models.WebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tx, err := h.ledger.ApplyWebhook(c.Request.Context(), req.TransactionID, req.Status)
	switch {
	case errors.Is(err, payments.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, payments.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case err != nil:
		h.logger.Error("Failed to apply webhook", zap.String("transaction_id", req.TransactionID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	default:
		c.JSON(http.StatusOK, models.OrderStatusResponse{
			Success:       true,
			TransactionID: tx.ID,
			Status:        tx.Status,
		})
	}
}
