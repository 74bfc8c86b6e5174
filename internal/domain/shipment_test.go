package domain

import (
	"errors"
	"testing"
	"time"
)

func TestOutboundShipmentValidate(t *testing.T) {
	t.Parallel()

	base := OutboundShipment{
		Name:           "Jane Doe",
		TrackingNumber: "1Z999AA10123456784",
		CreatedTime:    time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	}

	tests := []struct {
		name    string
		mutate  func(*OutboundShipment)
		wantErr bool
	}{
		{
			name:   "valid shipment",
			mutate: func(s *OutboundShipment) {},
		},
		{
			name: "empty address is allowed",
			mutate: func(s *OutboundShipment) {
				s.Street1 = ""
				s.Email = ""
			},
		},
		{
			name: "missing name",
			mutate: func(s *OutboundShipment) {
				s.Name = "  "
			},
			wantErr: true,
		},
		{
			name: "missing tracking number",
			mutate: func(s *OutboundShipment) {
				s.TrackingNumber = ""
			},
			wantErr: true,
		},
		{
			name: "missing created time",
			mutate: func(s *OutboundShipment) {
				s.CreatedTime = time.Time{}
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			current := base
			tt.mutate(&current)

			err := current.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("Validate() error = %v, want ErrValidation", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Validate() unexpected error = %v", err)
			}
		})
	}
}

func TestSentinelErrorsWrapCategories(t *testing.T) {
	t.Parallel()

	if !errors.Is(ErrDuplicateTrackingNumber, ErrConflict) {
		t.Fatal("ErrDuplicateTrackingNumber should wrap ErrConflict")
	}
	if !errors.Is(ErrRequiredColumn, ErrValidation) {
		t.Fatal("ErrRequiredColumn should wrap ErrValidation")
	}
}

func TestUpdatesIsEmpty(t *testing.T) {
	t.Parallel()

	if !(TrackingUpdate{}).IsEmpty() {
		t.Fatal("zero TrackingUpdate should be empty")
	}
	status := TrackingDelivered
	if (TrackingUpdate{TrackingStatus: &status}).IsEmpty() {
		t.Fatal("TrackingUpdate with tracking status should not be empty")
	}

	if !(FlagsUpdate{}).IsEmpty() {
		t.Fatal("zero FlagsUpdate should be empty")
	}
	reprint := false
	if (FlagsUpdate{ReprintLabel: &reprint}).IsEmpty() {
		t.Fatal("FlagsUpdate with explicit false should not be empty")
	}
	if (FlagsUpdate{ClearPickupDate: true}).IsEmpty() {
		t.Fatal("FlagsUpdate clearing the pickup date should not be empty")
	}
}

func TestFlagsUpdateValidate(t *testing.T) {
	t.Parallel()

	pickup := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)

	if err := (FlagsUpdate{PickupDate: &pickup}).Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if err := (FlagsUpdate{ClearPickupDate: true}).Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	err := (FlagsUpdate{PickupDate: &pickup, ClearPickupDate: true}).Validate()
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("Validate() error = %v, want ErrValidation", err)
	}
}

func TestIsSyncedToAirtable(t *testing.T) {
	t.Parallel()

	if (&OutboundShipment{}).IsSyncedToAirtable() {
		t.Fatal("empty record id should not count as synced")
	}
	if (&OutboundShipment{AirtableRecordID: "  "}).IsSyncedToAirtable() {
		t.Fatal("blank record id should not count as synced")
	}
	if !(&OutboundShipment{AirtableRecordID: "recABC"}).IsSyncedToAirtable() {
		t.Fatal("record id should count as synced")
	}
}

func TestKnownStatuses(t *testing.T) {
	t.Parallel()

	if !IsKnownStatus(" shipped ") {
		t.Fatal("IsKnownStatus(shipped) = false, want true")
	}
	if IsKnownStatus("teleported") {
		t.Fatal("IsKnownStatus(teleported) = true, want false")
	}
	if !IsKnownTrackingStatus("delivered") {
		t.Fatal("IsKnownTrackingStatus(delivered) = false, want true")
	}
	if IsKnownTrackingStatus("Shipped") {
		t.Fatal("IsKnownTrackingStatus(Shipped) = true, want false")
	}
}
