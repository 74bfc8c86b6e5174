package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kursadbilgin/outbound-shipments/internal/domain"
	amqp "github.com/rabbitmq/amqp091-go"
)

func TestQueueNames(t *testing.T) {
	work := WorkQueueNames()
	if len(work) != 2 {
		t.Fatalf("WorkQueueNames len = %d, want 2", len(work))
	}

	expected := map[string]struct{}{
		"outbound_shipments.events":   {},
		"outbound_shipments.tracking": {},
	}
	for _, name := range work {
		if _, ok := expected[name]; !ok {
			t.Fatalf("unexpected queue name: %s", name)
		}
	}

	if got := DLQName(TrackingQueue); got != "dlq.outbound_shipments.tracking" {
		t.Fatalf("DLQName(tracking) = %q, want dlq.outbound_shipments.tracking", got)
	}
}

func TestQueueArgs(t *testing.T) {
	args := queueArgs(TrackingQueue)
	if args["x-dead-letter-exchange"] != dlxExchangeName || args["x-dead-letter-routing-key"] != TrackingQueue {
		t.Fatalf("tracking args = %v", args)
	}
	if !HasDLQ(TrackingQueue) {
		t.Fatal("tracking queue should be dead-lettered")
	}

	if args := queueArgs(EventsQueue); args != nil {
		t.Fatalf("events args = %v, want nil", args)
	}
	if HasDLQ(EventsQueue) {
		t.Fatal("events queue should not be dead-lettered")
	}
}

func TestShipmentEventValidate(t *testing.T) {
	s := &domain.OutboundShipment{ID: 7, TrackingNumber: "1Z999", Carrier: "UPS", Status: domain.StatusShipped}

	event := NewShipmentEvent(EventShipmentCreated, s, "cid-1")
	if err := event.Validate(); err != nil {
		t.Fatalf("Validate() unexpected error: %v", err)
	}
	if event.EventID == "" {
		t.Fatal("expected generated event id")
	}
	if event.messageID() != event.EventID || event.correlationID() != "cid-1" {
		t.Fatalf("headers = (%q, %q)", event.messageID(), event.correlationID())
	}
	if event.ShipmentID != 7 || event.TrackingNumber != "1Z999" {
		t.Fatalf("event payload = %+v", event)
	}

	event.Type = EventType("shipment.deleted")
	if err := event.Validate(); err == nil {
		t.Fatal("expected error for unknown event type")
	}

	event.Type = EventShipmentUpdated
	event.TrackingNumber = ""
	if err := event.Validate(); err == nil {
		t.Fatal("expected error for empty tracking number")
	}
}

func TestTrackingUpdateMessageValidate(t *testing.T) {
	delivered := domain.TrackingDelivered

	tests := []struct {
		name    string
		msg     TrackingUpdateMessage
		wantErr bool
	}{
		{
			name: "valid",
			msg:  TrackingUpdateMessage{TrackingNumber: "9400", TrackingStatus: &delivered},
		},
		{
			name:    "missing tracking number",
			msg:     TrackingUpdateMessage{TrackingStatus: &delivered},
			wantErr: true,
		},
		{
			name:    "no fields",
			msg:     TrackingUpdateMessage{TrackingNumber: "9400"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestTrackingUpdateMessageUpdate(t *testing.T) {
	status := domain.StatusDelivered
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	msg := TrackingUpdateMessage{TrackingNumber: "9400", Status: &status, DeliveredTime: &at}

	update := msg.Update()
	if update.Status == nil || *update.Status != status {
		t.Fatalf("Status = %v, want %q", update.Status, status)
	}
	if update.DeliveredTime == nil || !update.DeliveredTime.Equal(at) {
		t.Fatalf("DeliveredTime = %v, want %s", update.DeliveredTime, at)
	}
	if update.TrackingStatus != nil || update.ETA != nil {
		t.Fatal("unset fields should stay nil")
	}
}

type recordingAcknowledger struct {
	acked    int
	nacked   int
	requeued bool
	rejected int
}

func (a *recordingAcknowledger) Ack(uint64, bool) error {
	a.acked++
	return nil
}

func (a *recordingAcknowledger) Nack(_ uint64, _ bool, requeue bool) error {
	a.nacked++
	a.requeued = requeue
	return nil
}

func (a *recordingAcknowledger) Reject(uint64, bool) error {
	a.rejected++
	return nil
}

func TestConsumerHandleDelivery(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		handlerErr  error
		redelivered bool
		wantCalled  bool
		wantAck     int
		wantNack    int
		wantReject  int
	}{
		{
			name:       "valid message is acked",
			body:       `{"trackingNumber":"9400","trackingStatus":"TRANSIT"}`,
			wantCalled: true,
			wantAck:    1,
		},
		{
			name:       "invalid json is rejected",
			body:       `{not json`,
			wantReject: 1,
		},
		{
			name:       "empty update is rejected",
			body:       `{"trackingNumber":"9400"}`,
			wantReject: 1,
		},
		{
			name:       "handler error is requeued",
			body:       `{"trackingNumber":"9400","status":"Shipped"}`,
			handlerErr: errors.New("db down"),
			wantCalled: true,
			wantNack:   1,
		},
		{
			name:        "handler error on redelivery is dead-lettered",
			body:        `{"trackingNumber":"9400","status":"Shipped"}`,
			handlerErr:  errors.New("db down"),
			redelivered: true,
			wantCalled:  true,
			wantReject:  1,
		},
		{
			name:        "redelivered message that succeeds is acked",
			body:        `{"trackingNumber":"9400","status":"Shipped"}`,
			redelivered: true,
			wantCalled:  true,
			wantAck:     1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			consumer := NewRabbitMQConsumer(nil, 1, nil)
			ack := &recordingAcknowledger{}
			delivery := amqp.Delivery{
				Acknowledger:  ack,
				Body:          []byte(tt.body),
				MessageId:     "m-1",
				CorrelationId: "cid-1",
				Redelivered:   tt.redelivered,
			}

			called := false
			err := consumer.handleDelivery(context.Background(), delivery, func(_ context.Context, msg TrackingUpdateMessage) error {
				called = true
				if msg.MessageID != "m-1" || msg.CorrelationID != "cid-1" {
					t.Fatalf("headers not copied: %+v", msg)
				}
				return tt.handlerErr
			})
			if err != nil {
				t.Fatalf("handleDelivery() error = %v", err)
			}

			if called != tt.wantCalled {
				t.Fatalf("handler called = %v, want %v", called, tt.wantCalled)
			}
			if ack.acked != tt.wantAck || ack.nacked != tt.wantNack || ack.rejected != tt.wantReject {
				t.Fatalf("ack=%d nack=%d reject=%d, want %d/%d/%d",
					ack.acked, ack.nacked, ack.rejected, tt.wantAck, tt.wantNack, tt.wantReject)
			}
			if tt.wantNack > 0 && !ack.requeued {
				t.Fatal("nack should requeue")
			}
		})
	}
}
