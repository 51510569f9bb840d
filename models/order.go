package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderBucket string

const (
	OrderBucketPreparing OrderBucket = "preparing"
	OrderBucketShipped   OrderBucket = "shipped"
	OrderBucketDelivered OrderBucket = "delivered"
)

type Order struct {
	OrderNumber   string          `json:"orderNumber"`
	Items         []CartItem      `json:"items"`
	TotalPrice    decimal.Decimal `json:"totalPrice"`
	PaymentMethod string          `json:"paymentMethod"`
	Date          time.Time       `json:"date"`
	Status        string          `json:"status"`
	CPF           string          `json:"cpf"`
}

// LastOrder is the durable record of the most recent checkout.
type LastOrder struct {
	OrderNumber   string          `json:"orderNumber"`
	TransactionID string          `json:"transactionId"`
	Items         []CartItem      `json:"items"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Discount      decimal.Decimal `json:"discount"`
	TotalPrice    decimal.Decimal `json:"totalPrice"`
	CouponCode    string          `json:"couponCode,omitempty"`
	FreeShipping  bool            `json:"freeShipping"`
	Customer      CustomerData    `json:"customer"`
	Pix           PixPayload      `json:"pix"`
	CreatedAt     time.Time       `json:"createdAt"`
}

type OrderEvent struct {
	OrderNumber   string          `json:"order_number"`
	TransactionID string          `json:"transaction_id"`
	CPF           string          `json:"cpf"`
	TotalPrice    decimal.Decimal `json:"total_price"`
	Items         int             `json:"items"`
	EventType     string          `json:"event_type"` // order_created, order_paid
}
