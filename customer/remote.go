package customer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"storefront-svc/circuitbreaker"
	"storefront-svc/models"
	"storefront-svc/syncqueue"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
)

var ErrRemoteFailed = errors.New("remote profile request failed")

// HTTPRemote talks to the profile service at {baseURL}/api/customers/{cpf}.
type HTTPRemote struct {
	baseURL    string
	httpClient *http.Client
	breaker    *circuitbreaker.CircuitBreaker
	logger     *zap.Logger
}

func NewHTTPRemote(baseURL string, timeout time.Duration, breaker *circuitbreaker.CircuitBreaker, logger *zap.Logger) *HTTPRemote {
	return &HTTPRemote{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		breaker:    breaker,
		logger:     logger,
	}
}

func (r *HTTPRemote) endpoint(cpf string) string {
	return r.baseURL + "/api/customers/" + url.PathEscape(cpf)
}

func (r *HTTPRemote) Fetch(ctx context.Context, cpf string) (*models.CustomerData, error) {
	ctx, span := otel.Tracer("storefront-service").Start(ctx, "customer.Fetch")
	defer span.End()

	var out *models.CustomerData
	err := r.breaker.Execute(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.endpoint(cpf), nil)
		if err != nil {
			return err
		}
		otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

		resp, err := r.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrRemoteFailed, err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return nil
		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			return fmt.Errorf("%w: status %d", ErrRemoteFailed, resp.StatusCode)
		}

		var data models.CustomerData
		if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
			return fmt.Errorf("%w: decoding profile: %v", ErrRemoteFailed, err)
		}
		out = &data
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return out, nil
}

func (r *HTTPRemote) Upsert(ctx context.Context, data models.CustomerData) error {
	ctx, span := otel.Tracer("storefront-service").Start(ctx, "customer.Upsert")
	defer span.End()

	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}

	err = r.breaker.Execute(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPut, r.endpoint(data.CPF), bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

		resp, err := r.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrRemoteFailed, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("%w: status %d", ErrRemoteFailed, resp.StatusCode)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
	}
	return err
}

// SyncHandler applies customer.upsert tasks against remote.
func SyncHandler(remote Remote, logger *zap.Logger) syncqueue.Handler {
	return func(ctx context.Context, task syncqueue.Task) error {
		if task.Kind != SyncKindUpsert {
			logger.Debug("Ignoring sync task", zap.String("kind", task.Kind))
			return nil
		}
		var data models.CustomerData
		if err := json.Unmarshal(task.Payload, &data); err != nil {
			// Malformed payloads are not retryable.
			logger.Error("Dropping malformed customer sync task", zap.String("task_id", task.ID), zap.Error(err))
			return nil
		}
		if err := remote.Upsert(ctx, data); err != nil {
			return err
		}
		logger.Info("Customer profile synced", zap.String("task_id", task.ID), zap.String("cpf", maskCPF(data.CPF)))
		return nil
	}
}
