package airtable

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kursadbilgin/outbound-shipments/internal/domain"
)

const dateLayout = "2006-01-02"

// ColumnTrackingNumber is the column that identifies a shipment in Airtable.
const ColumnTrackingNumber = "Tracking number"

// ShipmentFields maps a shipment to the columns of the Outbound Shipments table.
// Unset timestamps are omitted so Airtable keeps the cell empty.
func ShipmentFields(s *domain.OutboundShipment) Fields {
	if s == nil {
		return nil
	}

	fields := Fields{
		"Name":                      s.Name,
		"Contents":                  s.Contents,
		"Street 1":                  s.Street1,
		"Street 2":                  s.Street2,
		"City":                      s.City,
		"State":                     s.State,
		"Zipcode":                   s.Zipcode,
		"Country":                   s.Country,
		"Address formatted":         s.AddressFormatted,
		"Email":                     s.Email,
		"Phone":                     s.Phone,
		"Status":                    s.Status,
		"Carrier":                   s.Carrier,
		ColumnTrackingNumber:        s.TrackingNumber,
		"Tracking link":             s.TrackingLink,
		"Oxide tracking link":       s.OxideTrackingLink,
		"Tracking status":           s.TrackingStatus,
		"Label link":                s.LabelLink,
		"Reprint label":             s.ReprintLabel,
		"Resend email to recipient": s.ResendEmailToRecipient,
		"Cost":                      s.Cost,
		"Schedule pickup":           s.SchedulePickup,
		"Created time":              formatTime(s.CreatedTime),
		"Shippo ID":                 s.ShippoID,
		"Messages":                  s.Messages,
		"Notes":                     s.Notes,
	}

	if s.PickupDate != nil {
		fields["Pickup date"] = s.PickupDate.UTC().Format(dateLayout)
	}
	setTime(fields, "Shipped time", s.ShippedTime)
	setTime(fields, "Delivered time", s.DeliveredTime)
	setTime(fields, "ETA", s.ETA)

	return fields
}

func setTime(fields Fields, column string, t *time.Time) {
	if t == nil || t.IsZero() {
		return
	}
	fields[column] = formatTime(*t)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// Fingerprint hashes fields so a caller can tell whether a row changed since it
// was last pushed. Map keys are marshaled in sorted order.
func Fingerprint(fields Fields) (string, error) {
	payload, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("failed to encode airtable fields: %w", err)
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}
