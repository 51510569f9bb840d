package checkout

import (
	"sync"

	"storefront-svc/models"
)

// Verification is the status of one confirmation attempt. It starts as
// checking and accepts exactly one resolution.
type Verification struct {
	mu     sync.Mutex
	status models.PaymentStatus
}

func NewVerification() *Verification {
	return &Verification{status: models.PaymentStatusChecking}
}

// Resolve settles the verification and returns the settled status, which is
// the first resolution ever given.
func (v *Verification) Resolve(status models.PaymentStatus) models.PaymentStatus {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.status == models.PaymentStatusChecking && status != models.PaymentStatusChecking {
		v.status = status
	}
	return v.status
}

func (v *Verification) Status() models.PaymentStatus {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.status
}

// MapGatewayStatus converts the gateway's status into what the customer sees.
// Only PAID yields paid.
func MapGatewayStatus(s models.GatewayStatus) models.PaymentStatus {
	switch s {
	case models.GatewayStatusPaid:
		return models.PaymentStatusPaid
	case models.GatewayStatusExpired:
		return models.PaymentStatusExpired
	default:
		return models.PaymentStatusPending
	}
}
