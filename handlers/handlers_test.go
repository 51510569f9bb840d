package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"storefront-svc/catalog"
	"storefront-svc/middleware"
	"storefront-svc/session"
	"storefront-svc/store"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

const testSessionID = "0b6f1d7e-3a4c-4f5e-9d2a-1c2b3d4e5f60"

func newTestSessions(t *testing.T) *session.Manager {
	t.Helper()
	m := session.NewManager(store.NewMemoryStore(), store.NewMemoryStore(), nil, nil, session.Config{}, zaptest.NewLogger(t))
	t.Cleanup(m.Close)
	return m
}

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.SessionMiddleware(3600))
	return router
}

func setupStorefrontTest(t *testing.T) (*gin.Engine, *session.Manager) {
	t.Helper()
	sessions := newTestSessions(t)
	router := newTestRouter()
	registerStorefront(router, sessions, zaptest.NewLogger(t))
	return router, sessions
}

func registerStorefront(router *gin.Engine, sessions *session.Manager, logger *zap.Logger) {
	products := NewProductHandler(catalog.Default(), logger)
	router.GET("/products", products.GetProducts)
	router.GET("/products/:id", products.GetProduct)

	carts := NewCartHandler(sessions, catalog.Default(), logger)
	router.GET("/cart", carts.GetCart)
	router.POST("/cart/items", carts.AddItem)
	router.PATCH("/cart/items/:productId", carts.UpdateQuantity)
	router.DELETE("/cart/items/:productId", carts.RemoveItem)
	router.DELETE("/cart", carts.ClearCart)
	router.POST("/cart/open", carts.OpenCart)

	coupons := NewCouponHandler(sessions, logger)
	router.GET("/coupons", coupons.GetCoupons)
	router.POST("/coupons/:id/activate", coupons.ActivateCoupon)
	router.DELETE("/coupons/active", coupons.DeactivateCoupon)
	router.GET("/coupons/applicable", coupons.GetApplicable)

	customers := NewCustomerHandler(sessions, logger)
	router.GET("/customer", customers.GetCustomer)
	router.PATCH("/customer", customers.UpdateCustomer)

	orderHandler := NewOrderHandler(sessions, logger)
	router.GET("/orders", orderHandler.GetOrders)
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.SessionHeader, testSessionID)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealthCheck(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/health", HealthCheck)

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	expectedBody := `{"service":"storefront-service","status":"healthy"}`
	if w.Body.String() != expectedBody {
		t.Errorf("Expected body %s, got %s", expectedBody, w.Body.String())
	}
}
