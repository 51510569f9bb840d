package handlers

import (
	"net/http"

	"storefront-svc/models"
	"storefront-svc/session"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type CouponHandler struct {
	sessions *session.Manager
	logger   *zap.Logger
}

func NewCouponHandler(sessions *session.Manager, logger *zap.Logger) *CouponHandler {
	return &CouponHandler{
		sessions: sessions,
		logger:   logger,
	}
}

type couponsResponse struct {
	Coupons          []models.Coupon `json:"coupons"`
	Active           *models.Coupon  `json:"active"`
	RemainingSeconds int             `json:"remainingSeconds"`
}

func (h *CouponHandler) GetCoupons(c *gin.Context) {
	sess := currentSession(c, h.sessions)
	active, remaining := sess.Coupons.Active()
	c.JSON(http.StatusOK, couponsResponse{
		Coupons:          sess.Coupons.Coupons(),
		Active:           active,
		RemainingSeconds: int(remaining.Seconds()),
	})
}

// ActivateCoupon answers 404 for unknown or unavailable coupons.
func (h *CouponHandler) ActivateCoupon(c *gin.Context) {
	sess := currentSession(c, h.sessions)
	coupon, ok := sess.Coupons.Activate(c.Request.Context(), c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Coupon not available"})
		return
	}
	active, remaining := sess.Coupons.Active()
	if active == nil {
		active = &coupon
	}
	c.JSON(http.StatusOK, couponsResponse{
		Coupons:          sess.Coupons.Coupons(),
		Active:           active,
		RemainingSeconds: int(remaining.Seconds()),
	})
}

func (h *CouponHandler) DeactivateCoupon(c *gin.Context) {
	sess := currentSession(c, h.sessions)
	sess.Coupons.Deactivate(c.Request.Context())
	c.Status(http.StatusNoContent)
}

func (h *CouponHandler) GetApplicable(c *gin.Context) {
	total, err := decimal.NewFromString(c.Query("total"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "total must be a number"})
		return
	}

	sess := currentSession(c, h.sessions)
	coupon := sess.Coupons.Applicable(c.Request.Context(), total)
	discount := decimal.Zero
	if coupon != nil {
		discount = coupon.Discount(total)
	}
	c.JSON(http.StatusOK, gin.H{"coupon": coupon, "discount": discount})
}
