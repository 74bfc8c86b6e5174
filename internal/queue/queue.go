package queue

import (
	"context"
	"fmt"
)

// Message is a broker payload that can describe itself for AMQP headers.
type Message interface {
	Validate() error
	messageID() string
	correlationID() string
}

// Publisher publishes shipment messages to a queue.
type Publisher interface {
	Publish(ctx context.Context, queue string, msg Message) error
	Close() error
}

// MessageHandler handles a consumed tracking update.
type MessageHandler func(ctx context.Context, msg TrackingUpdateMessage) error

// Consumer consumes tracking updates from a queue.
type Consumer interface {
	Consume(ctx context.Context, queue string, handler MessageHandler) error
	Close() error
}

const (
	// EventsQueue receives shipment lifecycle events for downstream consumers.
	EventsQueue = "outbound_shipments.events"
	// TrackingQueue receives carrier tracking updates applied by the worker.
	TrackingQueue = "outbound_shipments.tracking"
)

// DLQName returns the dead-letter queue name for a work queue.
func DLQName(queue string) string {
	return fmt.Sprintf("dlq.%s", queue)
}

// WorkQueueNames returns all declared work queues.
func WorkQueueNames() []string {
	return []string{EventsQueue, TrackingQueue}
}

// deadLettered lists the work queues whose rejected messages are kept.
// Events are fire-and-forget.
var deadLettered = []string{TrackingQueue}

// HasDLQ reports whether queue dead-letters rejected messages.
func HasDLQ(queue string) bool {
	for _, q := range deadLettered {
		if q == queue {
			return true
		}
	}
	return false
}
