package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"storefront-svc/circuitbreaker"
	"storefront-svc/models"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
)

var (
	ErrRequestFailed     = errors.New("gateway request failed")
	ErrRejected          = errors.New("gateway rejected request")
	ErrMalformedResponse = errors.New("malformed gateway response")
)

const maxBodyBytes = 1 << 20

type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *circuitbreaker.CircuitBreaker
	logger     *zap.Logger
}

func NewClient(baseURL string, timeout time.Duration, breaker *circuitbreaker.CircuitBreaker, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		breaker:    breaker,
		logger:     logger,
	}
}

// CreateTransaction asks the gateway for a PIX charge. A response without a
// transaction id or a PIX code is treated as a failure.
func (c *Client) CreateTransaction(ctx context.Context, req models.CreateTransactionRequest) (*models.CreateTransactionResponse, error) {
	ctx, span := otel.Tracer("storefront-service").Start(ctx, "gateway.CreateTransaction")
	defer span.End()
	span.SetAttributes(
		attribute.Int("items.count", len(req.Items)),
		attribute.String("total_price", req.TotalPrice.String()),
	)

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal transaction: %w", err)
	}

	var resp models.CreateTransactionResponse
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/api/create-pix", body, &resp); err != nil {
		span.RecordError(err)
		return nil, err
	}
	if !resp.Success {
		err := fmt.Errorf("%w: %s", ErrRejected, resp.Error)
		span.RecordError(err)
		return nil, err
	}
	if resp.TransactionID == "" || resp.Pix == nil || resp.Pix.CopyPaste == "" {
		span.RecordError(ErrMalformedResponse)
		return nil, fmt.Errorf("%w: missing transaction id or pix payload", ErrMalformedResponse)
	}

	span.SetAttributes(attribute.String("transaction.id", resp.TransactionID))
	return &resp, nil
}

// OrderStatus fetches the authoritative status of a transaction.
func (c *Client) OrderStatus(ctx context.Context, transactionID string) (models.GatewayStatus, error) {
	ctx, span := otel.Tracer("storefront-service").Start(ctx, "gateway.OrderStatus")
	defer span.End()
	span.SetAttributes(attribute.String("transaction.id", transactionID))

	endpoint := c.baseURL + "/api/order-status?" + url.Values{"transactionId": {transactionID}}.Encode()

	var resp models.OrderStatusResponse
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		span.RecordError(err)
		return "", err
	}
	if !resp.Success {
		err := fmt.Errorf("%w: %s", ErrRejected, resp.Error)
		span.RecordError(err)
		return "", err
	}
	if resp.Status == "" {
		return "", fmt.Errorf("%w: missing status", ErrMalformedResponse)
	}

	span.SetAttributes(attribute.String("transaction.status", string(resp.Status)))
	return resp.Status, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body []byte, out any) error {
	return c.breaker.Execute(ctx, func() error {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrRequestFailed, err)
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.logger.Warn("Gateway call failed",
				zap.String("method", method),
				zap.String("endpoint", endpoint),
				zap.Error(err),
			)
			return fmt.Errorf("%w: %w", ErrRequestFailed, err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return fmt.Errorf("%w: reading body: %v", ErrRequestFailed, err)
		}

		c.logger.Debug("Gateway call",
			zap.String("method", method),
			zap.String("endpoint", endpoint),
			zap.Int("status", resp.StatusCode),
			zap.Duration("latency", time.Since(start)),
		)

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("%w: status %d", ErrRequestFailed, resp.StatusCode)
		}
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		return nil
	})
}
