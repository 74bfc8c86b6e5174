package repository

import (
	"time"

	"github.com/kursadbilgin/outbound-shipments/internal/domain"
)

// OutboundShipmentModel is the persistence model for the outbound_shipments table.
type OutboundShipmentModel struct {
	ID                     int32      `gorm:"primaryKey;autoIncrement"`
	Name                   string     `gorm:"type:text;not null"`
	Contents               string     `gorm:"type:text;not null"`
	Street1                string     `gorm:"column:street_1;type:text;not null"`
	Street2                string     `gorm:"column:street_2;type:text;not null"`
	City                   string     `gorm:"type:text;not null"`
	State                  string     `gorm:"type:text;not null"`
	Zipcode                string     `gorm:"type:text;not null"`
	Country                string     `gorm:"type:text;not null"`
	AddressFormatted       string     `gorm:"type:text;not null"`
	Email                  string     `gorm:"type:text;not null"`
	Phone                  string     `gorm:"type:text;not null"`
	Status                 string     `gorm:"type:text;not null"`
	Carrier                string     `gorm:"type:text;not null"`
	TrackingNumber         string     `gorm:"type:text;not null;unique"`
	TrackingLink           string     `gorm:"type:text;not null"`
	OxideTrackingLink      string     `gorm:"type:text;not null"`
	TrackingStatus         string     `gorm:"type:text;not null"`
	LabelLink              string     `gorm:"type:text;not null"`
	ReprintLabel           bool       `gorm:"not null;default:false"`
	ResendEmailToRecipient bool       `gorm:"not null;default:false"`
	Cost                   float64    `gorm:"type:real;not null;default:0"`
	SchedulePickup         bool       `gorm:"not null;default:false"`
	PickupDate             *time.Time `gorm:"type:date"`
	CreatedTime            time.Time  `gorm:"not null"`
	ShippedTime            *time.Time
	DeliveredTime          *time.Time
	ETA                    *time.Time `gorm:"column:eta"`
	ShippoID               string     `gorm:"type:text;not null"`
	Messages               string     `gorm:"type:text;not null"`
	Notes                  string     `gorm:"type:text;not null"`
	GeocodeCache           string     `gorm:"type:text;not null"`
	AirtableRecordID       string     `gorm:"type:text;not null;default:''"`
}

func (OutboundShipmentModel) TableName() string {
	return "outbound_shipments"
}

// mutableColumns are written by Update. id and airtable_record_id are never
// part of an update; only MarkAirtableSynced writes the record id.
var mutableColumns = []string{
	"name", "contents",
	"street_1", "street_2", "city", "state", "zipcode", "country", "address_formatted",
	"email", "phone",
	"status", "carrier", "tracking_number", "tracking_link", "oxide_tracking_link",
	"tracking_status", "label_link",
	"reprint_label", "resend_email_to_recipient", "cost", "schedule_pickup", "pickup_date",
	"created_time", "shipped_time", "delivered_time", "eta",
	"shippo_id", "messages", "notes", "geocode_cache",
}

// AirtableSyncStateModel remembers what was last pushed to Airtable for a
// shipment, so unchanged rows are not sent again.
type AirtableSyncStateModel struct {
	ShipmentID  int32     `gorm:"primaryKey;autoIncrement:false"`
	Fingerprint string    `gorm:"type:text;not null"`
	SyncedAt    time.Time `gorm:"not null"`
}

func (AirtableSyncStateModel) TableName() string {
	return "outbound_shipment_airtable_sync"
}

func shipmentModelFromDomain(s *domain.OutboundShipment) *OutboundShipmentModel {
	if s == nil {
		return nil
	}

	return &OutboundShipmentModel{
		ID:                     s.ID,
		Name:                   s.Name,
		Contents:               s.Contents,
		Street1:                s.Street1,
		Street2:                s.Street2,
		City:                   s.City,
		State:                  s.State,
		Zipcode:                s.Zipcode,
		Country:                s.Country,
		AddressFormatted:       s.AddressFormatted,
		Email:                  s.Email,
		Phone:                  s.Phone,
		Status:                 s.Status,
		Carrier:                s.Carrier,
		TrackingNumber:         s.TrackingNumber,
		TrackingLink:           s.TrackingLink,
		OxideTrackingLink:      s.OxideTrackingLink,
		TrackingStatus:         s.TrackingStatus,
		LabelLink:              s.LabelLink,
		ReprintLabel:           s.ReprintLabel,
		ResendEmailToRecipient: s.ResendEmailToRecipient,
		Cost:                   s.Cost,
		SchedulePickup:         s.SchedulePickup,
		PickupDate:             s.PickupDate,
		CreatedTime:            s.CreatedTime,
		ShippedTime:            s.ShippedTime,
		DeliveredTime:          s.DeliveredTime,
		ETA:                    s.ETA,
		ShippoID:               s.ShippoID,
		Messages:               s.Messages,
		Notes:                  s.Notes,
		GeocodeCache:           s.GeocodeCache,
		AirtableRecordID:       s.AirtableRecordID,
	}
}

func shipmentModelToDomain(m *OutboundShipmentModel) *domain.OutboundShipment {
	if m == nil {
		return nil
	}

	return &domain.OutboundShipment{
		ID:                     m.ID,
		Name:                   m.Name,
		Contents:               m.Contents,
		Street1:                m.Street1,
		Street2:                m.Street2,
		City:                   m.City,
		State:                  m.State,
		Zipcode:                m.Zipcode,
		Country:                m.Country,
		AddressFormatted:       m.AddressFormatted,
		Email:                  m.Email,
		Phone:                  m.Phone,
		Status:                 m.Status,
		Carrier:                m.Carrier,
		TrackingNumber:         m.TrackingNumber,
		TrackingLink:           m.TrackingLink,
		OxideTrackingLink:      m.OxideTrackingLink,
		TrackingStatus:         m.TrackingStatus,
		LabelLink:              m.LabelLink,
		ReprintLabel:           m.ReprintLabel,
		ResendEmailToRecipient: m.ResendEmailToRecipient,
		Cost:                   m.Cost,
		SchedulePickup:         m.SchedulePickup,
		PickupDate:             m.PickupDate,
		CreatedTime:            m.CreatedTime,
		ShippedTime:            m.ShippedTime,
		DeliveredTime:          m.DeliveredTime,
		ETA:                    m.ETA,
		ShippoID:               m.ShippoID,
		Messages:               m.Messages,
		Notes:                  m.Notes,
		GeocodeCache:           m.GeocodeCache,
		AirtableRecordID:       m.AirtableRecordID,
	}
}

func shipmentModelsToDomain(models []OutboundShipmentModel) []domain.OutboundShipment {
	shipments := make([]domain.OutboundShipment, 0, len(models))
	for i := range models {
		shipments = append(shipments, *shipmentModelToDomain(&models[i]))
	}
	return shipments
}
