package queue

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/outbound-shipments/internal/domain"
)

type EventType string

const (
	EventShipmentCreated         EventType = "shipment.created"
	EventShipmentUpdated         EventType = "shipment.updated"
	EventShipmentTrackingUpdated EventType = "shipment.tracking_updated"
)

func (t EventType) IsValid() bool {
	switch t {
	case EventShipmentCreated, EventShipmentUpdated, EventShipmentTrackingUpdated:
		return true
	default:
		return false
	}
}

// ShipmentEvent is published after a shipment row changes.
type ShipmentEvent struct {
	EventID        string    `json:"eventId"`
	Type           EventType `json:"type"`
	CorrelationID  string    `json:"correlationId,omitempty"`
	OccurredAt     time.Time `json:"occurredAt"`
	ShipmentID     int32     `json:"shipmentId"`
	TrackingNumber string    `json:"trackingNumber"`
	Carrier        string    `json:"carrier,omitempty"`
	Status         string    `json:"status,omitempty"`
	TrackingStatus string    `json:"trackingStatus,omitempty"`
}

// NewShipmentEvent builds an event for s with a fresh event id.
func NewShipmentEvent(eventType EventType, s *domain.OutboundShipment, correlationID string) ShipmentEvent {
	return ShipmentEvent{
		EventID:        uuid.NewString(),
		Type:           eventType,
		CorrelationID:  correlationID,
		OccurredAt:     time.Now().UTC(),
		ShipmentID:     s.ID,
		TrackingNumber: s.TrackingNumber,
		Carrier:        s.Carrier,
		Status:         s.Status,
		TrackingStatus: s.TrackingStatus,
	}
}

func (e ShipmentEvent) Validate() error {
	if strings.TrimSpace(e.EventID) == "" {
		return fmt.Errorf("eventId is required")
	}
	if !e.Type.IsValid() {
		return fmt.Errorf("invalid event type %q", e.Type)
	}
	if strings.TrimSpace(e.TrackingNumber) == "" {
		return fmt.Errorf("trackingNumber is required")
	}
	return nil
}

func (e ShipmentEvent) messageID() string     { return e.EventID }
func (e ShipmentEvent) correlationID() string { return e.CorrelationID }

// TrackingUpdateMessage is a carrier tracking update addressed by tracking
// number. Absent fields are left untouched on the shipment.
type TrackingUpdateMessage struct {
	MessageID      string     `json:"messageId,omitempty"`
	CorrelationID  string     `json:"correlationId,omitempty"`
	TrackingNumber string     `json:"trackingNumber"`
	Status         *string    `json:"status,omitempty"`
	TrackingStatus *string    `json:"trackingStatus,omitempty"`
	TrackingLink   *string    `json:"trackingLink,omitempty"`
	ShippedTime    *time.Time `json:"shippedTime,omitempty"`
	DeliveredTime  *time.Time `json:"deliveredTime,omitempty"`
	ETA            *time.Time `json:"eta,omitempty"`
	Messages       *string    `json:"messages,omitempty"`
}

func (m TrackingUpdateMessage) Validate() error {
	if strings.TrimSpace(m.TrackingNumber) == "" {
		return fmt.Errorf("trackingNumber is required")
	}
	if m.Update().IsEmpty() {
		return fmt.Errorf("tracking update for %q carries no fields", m.TrackingNumber)
	}
	return nil
}

// Update converts the message into the domain update it describes.
func (m TrackingUpdateMessage) Update() domain.TrackingUpdate {
	return domain.TrackingUpdate{
		Status:         m.Status,
		TrackingStatus: m.TrackingStatus,
		TrackingLink:   m.TrackingLink,
		ShippedTime:    m.ShippedTime,
		DeliveredTime:  m.DeliveredTime,
		ETA:            m.ETA,
		Messages:       m.Messages,
	}
}

func (m TrackingUpdateMessage) messageID() string     { return m.MessageID }
func (m TrackingUpdateMessage) correlationID() string { return m.CorrelationID }
