package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"storefront-svc/middleware"
	"storefront-svc/syncqueue"

	"github.com/IBM/sarama"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

func InitConsumer(broker string, logger *zap.Logger) (sarama.Consumer, error) {
	config := sarama.NewConfig()
	config.Consumer.Return.Errors = true
	config.Consumer.Retry.Backoff = 1 * time.Second

	consumer, err := sarama.NewConsumer([]string{broker}, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka consumer: %w", err)
	}

	logger.Info("Kafka consumer initialized", zap.String("broker", broker))
	return consumer, nil
}

type RetryPolicy struct {
	MaxRetries int
	Backoff    syncqueue.Backoff
}

// StartConsumer drains sync tasks from topic until ctx is cancelled.
func StartConsumer(ctx context.Context, consumer sarama.Consumer, topic string, handler syncqueue.Handler, policy RetryPolicy, logger *zap.Logger) error {
	partitionConsumer, err := consumer.ConsumePartition(topic, 0, sarama.OffsetNewest)
	if err != nil {
		return fmt.Errorf("failed to consume partition: %w", err)
	}
	defer partitionConsumer.Close()

	logger.Info("Kafka consumer started", zap.String("topic", topic))

	for {
		select {
		case <-ctx.Done():
			logger.Info("Kafka consumer stopped", zap.String("topic", topic))
			return nil
		case message := <-partitionConsumer.Messages():
			if message == nil {
				continue
			}
			if err := handleMessage(ctx, message, handler, policy, logger); err != nil {
				logger.Error("Failed to handle message after retries", zap.Error(err))
			}
		case err := <-partitionConsumer.Errors():
			if err != nil {
				logger.Error("Kafka consumer error", zap.Error(err))
			}
		}
	}
}

func handleMessage(ctx context.Context, message *sarama.ConsumerMessage, handler syncqueue.Handler, policy RetryPolicy, logger *zap.Logger) error {
	carrier := saramaHeaderCarrierConsumer(message.Headers)
	ctx = otel.GetTextMapPropagator().Extract(ctx, carrier)

	ctx, span := otel.Tracer("storefront-service").Start(ctx, "ProcessSyncTask")
	defer span.End()

	var task syncqueue.Task
	if err := json.Unmarshal(message.Value, &task); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to unmarshal task: %w", err)
	}

	span.SetAttributes(
		attribute.String("task.id", task.ID),
		attribute.String("task.kind", task.Kind),
	)
	logger.Info("Received sync task",
		zap.String("trace_id", middleware.GetTraceID(ctx)),
		zap.String("task_id", task.ID),
		zap.String("kind", task.Kind),
		zap.Int64("offset", message.Offset),
	)

	if err := syncqueue.Process(ctx, task, handler, policy.MaxRetries, policy.Backoff, logger); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// saramaHeaderCarrierConsumer implements the TextMapCarrier interface for Kafka headers (for consumer)
type saramaHeaderCarrierConsumer []*sarama.RecordHeader

func (c saramaHeaderCarrierConsumer) Get(key string) string {
	for _, h := range c {
		if string(h.Key) == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c saramaHeaderCarrierConsumer) Set(key, value string) {
	// Not needed for extraction
}

func (c saramaHeaderCarrierConsumer) Keys() []string {
	keys := make([]string, len(c))
	for i, h := range c {
		keys[i] = string(h.Key)
	}
	return keys
}
