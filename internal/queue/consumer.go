package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kursadbilgin/outbound-shipments/internal/observability"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	deliveryAcked        = "acked"
	deliveryRejected     = "rejected"
	deliveryRequeued     = "requeued"
	deliveryDeadLettered = "dead_lettered"
)

// RabbitMQConsumer decodes tracking updates and settles each delivery. A
// delivery whose handler fails is requeued once; if it fails again on
// redelivery it is rejected so the broker moves it to the dead-letter queue.
type RabbitMQConsumer struct {
	client   *RabbitMQ
	prefetch int
	logger   *zap.Logger
	metrics  *observability.Metrics
}

func NewRabbitMQConsumer(client *RabbitMQ, prefetch int, logger *zap.Logger) *RabbitMQConsumer {
	if prefetch < 1 {
		prefetch = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RabbitMQConsumer{
		client:   client,
		prefetch: prefetch,
		logger:   logger,
	}
}

func (c *RabbitMQConsumer) SetMetrics(metrics *observability.Metrics) {
	if c == nil {
		return
	}
	c.metrics = metrics
}

func (c *RabbitMQConsumer) Consume(ctx context.Context, queue string, handler MessageHandler) error {
	if c == nil || c.client == nil {
		return fmt.Errorf("consumer is not initialized")
	}
	if queue == "" {
		return fmt.Errorf("queue name is required")
	}
	if handler == nil {
		return fmt.Errorf("message handler is required")
	}

	backoff := reconnectBackoff
	for {
		err := c.consumeOnce(ctx, queue, handler)
		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			backoff = reconnectBackoff
			continue
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (c *RabbitMQConsumer) consumeOnce(ctx context.Context, queue string, handler MessageHandler) error {
	ch, err := c.client.channel(ctx)
	if err != nil {
		return err
	}
	defer ch.Close() //nolint:errcheck // best-effort channel close

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set qos: %w", err)
	}

	deliveries, err := ch.Consume(
		queue,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to consume queue %q: %w", queue, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}

			if err := c.handleDelivery(ctx, d, handler); err != nil {
				return err
			}
		}
	}
}

func (c *RabbitMQConsumer) handleDelivery(ctx context.Context, d amqp.Delivery, handler MessageHandler) error {
	var msg TrackingUpdateMessage
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		c.logger.Warn("rejecting message: invalid JSON",
			zap.Error(err),
			zap.String("routingKey", d.RoutingKey),
			zap.String("messageId", d.MessageId),
		)
		return c.settle(d, deliveryRejected)
	}

	if msg.MessageID == "" {
		msg.MessageID = d.MessageId
	}
	if msg.CorrelationID == "" {
		msg.CorrelationID = d.CorrelationId
	}

	if err := msg.Validate(); err != nil {
		c.logger.Warn("rejecting message: validation failed",
			zap.Error(err),
			zap.String("trackingNumber", msg.TrackingNumber),
			zap.String("messageId", msg.MessageID),
		)
		return c.settle(d, deliveryRejected)
	}

	if err := handler(ctx, msg); err != nil {
		if d.Redelivered {
			c.logger.Error("dead-lettering message: handler failed on redelivery",
				zap.Error(err),
				zap.String("trackingNumber", msg.TrackingNumber),
				zap.String("messageId", msg.MessageID),
				zap.String("correlationId", msg.CorrelationID),
			)
			return c.settle(d, deliveryDeadLettered)
		}

		c.logger.Warn("requeueing message: handler failed",
			zap.Error(err),
			zap.String("trackingNumber", msg.TrackingNumber),
			zap.String("messageId", msg.MessageID),
			zap.String("correlationId", msg.CorrelationID),
		)
		return c.settle(d, deliveryRequeued)
	}

	return c.settle(d, deliveryAcked)
}

func (c *RabbitMQConsumer) settle(d amqp.Delivery, outcome string) error {
	var err error
	switch outcome {
	case deliveryAcked:
		err = d.Ack(false)
	case deliveryRequeued:
		err = d.Nack(false, true)
	default:
		err = d.Reject(false)
	}
	if err != nil {
		return fmt.Errorf("failed to settle delivery as %s: %w", outcome, err)
	}

	c.metrics.IncDelivery(outcome)
	return nil
}

func (c *RabbitMQConsumer) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}
