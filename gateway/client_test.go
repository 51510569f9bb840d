package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"storefront-svc/circuitbreaker"
	"storefront-svc/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	logger := zaptest.NewLogger(t)
	return NewClient(srv.URL, 2*time.Second, circuitbreaker.NewCircuitBreaker("gateway", 5, time.Minute, logger), logger)
}

func sampleRequest() models.CreateTransactionRequest {
	return models.CreateTransactionRequest{
		Customer:   models.TransactionCustomer{Name: "Ana Souza", CPF: "12345678909"},
		Items:      []models.TransactionItem{{Name: "Garrafa", Price: decimal.NewFromInt(56), Quantity: 1}},
		TotalPrice: decimal.NewFromInt(56),
		Metadata:   map[string]string{"orderNumber": "PED-1"},
	}
}

func TestCreateTransaction_Success(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/create-pix", r.URL.Path)

		var req models.CreateTransactionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "12345678909", req.Customer.CPF)
		assert.True(t, req.TotalPrice.Equal(decimal.NewFromInt(56)))
		assert.Equal(t, "PED-1", req.Metadata["orderNumber"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"transactionId":"tx-1","pix":{"qrCode":"qr","copyPaste":"000201"}}`))
	})

	resp, err := client.CreateTransaction(context.Background(), sampleRequest())

	require.NoError(t, err)
	assert.Equal(t, "tx-1", resp.TransactionID)
	assert.Equal(t, "000201", resp.Pix.CopyPaste)
}

func TestCreateTransaction_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"server error", http.StatusBadGateway, `{}`, ErrRequestFailed},
		{"rejected", http.StatusOK, `{"success":false,"error":"cpf invalido"}`, ErrRejected},
		{"missing transaction id", http.StatusOK, `{"success":true,"pix":{"copyPaste":"x"}}`, ErrMalformedResponse},
		{"missing pix", http.StatusOK, `{"success":true,"transactionId":"tx"}`, ErrMalformedResponse},
		{"not json", http.StatusOK, `<html>`, ErrMalformedResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			resp, err := client.CreateTransaction(context.Background(), sampleRequest())

			assert.Nil(t, resp)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestOrderStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/order-status", r.URL.Path)
		assert.Equal(t, "tx 1", r.URL.Query().Get("transactionId"))
		_, _ = w.Write([]byte(`{"success":true,"status":"WAITING_PAYMENT"}`))
	})

	status, err := client.OrderStatus(context.Background(), "tx 1")

	require.NoError(t, err)
	assert.Equal(t, models.GatewayStatusWaitingPayment, status)
}

func TestOrderStatus_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"not found", http.StatusNotFound, `{"success":false}`, ErrRequestFailed},
		{"unsuccessful", http.StatusOK, `{"success":false,"error":"unknown"}`, ErrRejected},
		{"no status", http.StatusOK, `{"success":true}`, ErrMalformedResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := client.OrderStatus(context.Background(), "tx")
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestOrderStatus_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	logger := zaptest.NewLogger(t)
	client := NewClient(url, time.Second, circuitbreaker.NewCircuitBreaker("gateway", 5, time.Minute, logger), logger)

	_, err := client.OrderStatus(context.Background(), "tx")

	assert.ErrorIs(t, err, ErrRequestFailed)
}

func TestClient_BreakerOpensOnRepeatedFailures(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()
	logger := zaptest.NewLogger(t)
	client := NewClient(srv.URL, time.Second, circuitbreaker.NewCircuitBreaker("gateway", 2, time.Minute, logger), logger)

	for i := 0; i < 2; i++ {
		_, err := client.OrderStatus(context.Background(), "tx")
		assert.ErrorIs(t, err, ErrRequestFailed)
	}
	_, err := client.OrderStatus(context.Background(), "tx")

	assert.ErrorIs(t, err, circuitbreaker.ErrCircuitOpen)
	assert.Equal(t, 2, calls)
}
