package airtable

import (
	"testing"
	"time"

	"github.com/kursadbilgin/outbound-shipments/internal/domain"
)

func TestShipmentFields(t *testing.T) {
	t.Parallel()

	pickup := time.Date(2024, 8, 2, 0, 0, 0, 0, time.UTC)
	shipped := time.Date(2024, 8, 3, 15, 4, 5, 0, time.FixedZone("PDT", -7*3600))
	s := &domain.OutboundShipment{
		Name:           "Jane Doe",
		TrackingNumber: "9400",
		Carrier:        "USPS",
		ReprintLabel:   true,
		Cost:           8.4,
		PickupDate:     &pickup,
		CreatedTime:    time.Date(2024, 8, 1, 9, 0, 0, 0, time.UTC),
		ShippedTime:    &shipped,
	}

	fields := ShipmentFields(s)

	if fields["Tracking number"] != "9400" || fields["Carrier"] != "USPS" {
		t.Fatalf("fields = %v", fields)
	}
	if fields["Reprint label"] != true || fields["Cost"] != 8.4 {
		t.Fatalf("flag/cost fields = %v / %v", fields["Reprint label"], fields["Cost"])
	}
	if fields["Pickup date"] != "2024-08-02" {
		t.Fatalf("Pickup date = %v", fields["Pickup date"])
	}
	if fields["Created time"] != "2024-08-01T09:00:00Z" {
		t.Fatalf("Created time = %v", fields["Created time"])
	}
	if fields["Shipped time"] != "2024-08-03T22:04:05Z" {
		t.Fatalf("Shipped time = %v, want UTC", fields["Shipped time"])
	}
	if _, ok := fields["Delivered time"]; ok {
		t.Fatal("unset delivered time should be omitted")
	}
	if _, ok := fields["ETA"]; ok {
		t.Fatal("unset eta should be omitted")
	}

	if ShipmentFields(nil) != nil {
		t.Fatal("nil shipment should map to nil fields")
	}
}

func TestFingerprintTracksFieldChanges(t *testing.T) {
	t.Parallel()

	s := &domain.OutboundShipment{
		Name:           "Jane Doe",
		TrackingNumber: "9400",
		Status:         domain.StatusLabelCreated,
		CreatedTime:    time.Date(2024, 8, 1, 9, 0, 0, 0, time.UTC),
	}

	first, err := Fingerprint(ShipmentFields(s))
	if err != nil {
		t.Fatalf("Fingerprint() error = %v", err)
	}
	again, err := Fingerprint(ShipmentFields(s))
	if err != nil {
		t.Fatalf("Fingerprint() error = %v", err)
	}
	if first != again {
		t.Fatalf("fingerprint not stable: %s vs %s", first, again)
	}

	s.Status = domain.StatusShipped
	changed, err := Fingerprint(ShipmentFields(s))
	if err != nil {
		t.Fatalf("Fingerprint() error = %v", err)
	}
	if changed == first {
		t.Fatal("fingerprint should change when a field changes")
	}
}
