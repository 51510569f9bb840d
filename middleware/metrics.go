package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	couponEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coupon_events_total",
			Help: "Coupon activations, deactivations and expirations",
		},
		[]string{"event"},
	)

	giftChangesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cart_gift_changes_total",
			Help: "Gift items added to or removed from carts",
		},
		[]string{"action"},
	)

	paymentVerificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_verifications_total",
			Help: "Payment confirmations by resolved status",
		},
		[]string{"status"},
	)

	paymentProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_processed_total",
			Help: "Total number of payment webhooks applied",
		},
		[]string{"status"},
	)

	syncTasksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_tasks_total",
			Help: "Outbound sync tasks by kind and result",
		},
		[]string{"kind", "result"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpRequestDuration)
	prometheus.MustRegister(couponEventsTotal)
	prometheus.MustRegister(giftChangesTotal)
	prometheus.MustRegister(paymentVerificationsTotal)
	prometheus.MustRegister(paymentProcessedTotal)
	prometheus.MustRegister(syncTasksTotal)
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		duration := time.Since(start).Seconds()

		httpRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

func RecordCouponEvent(event string) {
	couponEventsTotal.WithLabelValues(event).Inc()
}

func RecordGiftChange(action string) {
	giftChangesTotal.WithLabelValues(action).Inc()
}

func RecordPaymentVerification(status string) {
	paymentVerificationsTotal.WithLabelValues(status).Inc()
}

func RecordPaymentProcessed(status string) {
	paymentProcessedTotal.WithLabelValues(status).Inc()
}

func RecordSyncTask(kind, result string) {
	syncTasksTotal.WithLabelValues(kind, result).Inc()
}
