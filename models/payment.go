package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus is what the confirmation page shows.
type PaymentStatus string

const (
	PaymentStatusChecking PaymentStatus = "checking"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusExpired  PaymentStatus = "expired"
	PaymentStatusError    PaymentStatus = "error"
)

// GatewayStatus is the gateway's own transaction status.
type GatewayStatus string

const (
	GatewayStatusWaitingPayment GatewayStatus = "WAITING_PAYMENT"
	GatewayStatusPaid           GatewayStatus = "PAID"
	GatewayStatusExpired        GatewayStatus = "EXPIRED"
	GatewayStatusCancelled      GatewayStatus = "CANCELLED"
	GatewayStatusRefunded       GatewayStatus = "REFUNDED"
)

type TransactionCustomer struct {
	Name    string `json:"name" binding:"required"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	CPF     string `json:"cpf" binding:"required"`
	Address string `json:"address"`
}

type TransactionItem struct {
	Name     string          `json:"name" binding:"required"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity" binding:"required,gt=0"`
}

type CreateTransactionRequest struct {
	Customer   TransactionCustomer `json:"customer" binding:"required"`
	Items      []TransactionItem   `json:"items" binding:"required,min=1,dive"`
	TotalPrice decimal.Decimal     `json:"totalPrice"`
	Metadata   map[string]string   `json:"metadata"`
}

type PixPayload struct {
	QRCode    string     `json:"qrCode"`
	CopyPaste string     `json:"copyPaste"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

type CreateTransactionResponse struct {
	Success       bool        `json:"success"`
	TransactionID string      `json:"transactionId,omitempty"`
	Pix           *PixPayload `json:"pix,omitempty"`
	Error         string      `json:"error,omitempty"`
}

type OrderStatusResponse struct {
	Success       bool          `json:"success"`
	TransactionID string        `json:"transactionId,omitempty"`
	Status        GatewayStatus `json:"status,omitempty"`
	Error         string        `json:"error,omitempty"`
}

type WebhookRequest struct {
	TransactionID string        `json:"transactionId" binding:"required"`
	Status        GatewayStatus `json:"status" binding:"required"`
}

// Transaction is the gateway-side record of a PIX charge.
type Transaction struct {
	ID        string              `json:"id"`
	Status    GatewayStatus       `json:"status"`
	Amount    decimal.Decimal     `json:"amount"`
	Customer  TransactionCustomer `json:"customer"`
	Items     []TransactionItem   `json:"items"`
	Metadata  map[string]string   `json:"metadata,omitempty"`
	Pix       PixPayload          `json:"pix"`
	ExpiresAt time.Time           `json:"expiresAt"`
	CreatedAt time.Time           `json:"createdAt"`
	UpdatedAt time.Time           `json:"updatedAt"`
}

type PaymentEvent struct {
	TransactionID string          `json:"transaction_id"`
	Amount        decimal.Decimal `json:"amount"`
	Status        GatewayStatus   `json:"status"`
	EventType     string          `json:"event_type"` // payment_success, payment_expired, payment_cancelled
}
