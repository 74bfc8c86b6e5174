package domain

import (
	"fmt"
	"strings"
	"time"
)

// OutboundShipment is a single outbound package tracked from label purchase to delivery.
type OutboundShipment struct {
	ID int32

	Name     string
	Contents string

	Street1          string
	Street2          string
	City             string
	State            string
	Zipcode          string
	Country          string
	AddressFormatted string

	Email string
	Phone string

	Status            string
	Carrier           string
	TrackingNumber    string
	TrackingLink      string
	OxideTrackingLink string
	TrackingStatus    string
	LabelLink         string

	ReprintLabel           bool
	ResendEmailToRecipient bool
	SchedulePickup         bool
	Cost                   float64
	PickupDate             *time.Time

	CreatedTime   time.Time
	ShippedTime   *time.Time
	DeliveredTime *time.Time
	ETA           *time.Time

	ShippoID         string
	Messages         string
	Notes            string
	GeocodeCache     string
	AirtableRecordID string
}

// Validate checks the fields a caller must always supply. Address, contact and
// link fields are free text and are not checked.
func (s *OutboundShipment) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if strings.TrimSpace(s.TrackingNumber) == "" {
		return fmt.Errorf("%w: tracking number is required", ErrValidation)
	}
	if s.CreatedTime.IsZero() {
		return fmt.Errorf("%w: created time is required", ErrValidation)
	}
	return nil
}

// IsSyncedToAirtable reports whether the row already has an Airtable record.
func (s *OutboundShipment) IsSyncedToAirtable() bool {
	return strings.TrimSpace(s.AirtableRecordID) != ""
}

// FlagsUpdate changes the workflow flags of a shipment. Nil fields are left
// untouched; ClearPickupDate sets pickup_date back to NULL.
type FlagsUpdate struct {
	ReprintLabel           *bool
	ResendEmailToRecipient *bool
	SchedulePickup         *bool
	PickupDate             *time.Time
	ClearPickupDate        bool
}

func (f FlagsUpdate) IsEmpty() bool {
	return f.ReprintLabel == nil &&
		f.ResendEmailToRecipient == nil &&
		f.SchedulePickup == nil &&
		f.PickupDate == nil &&
		!f.ClearPickupDate
}

// Validate rejects updates that both set and clear the pickup date.
func (f FlagsUpdate) Validate() error {
	if f.PickupDate != nil && f.ClearPickupDate {
		return fmt.Errorf("%w: pickup date cannot be set and cleared at once", ErrValidation)
	}
	return nil
}
