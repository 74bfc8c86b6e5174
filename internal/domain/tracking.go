package domain

import "time"

// TrackingUpdate carries carrier-reported progress for a shipment. Only non-nil
// fields are written.
type TrackingUpdate struct {
	Status         *string
	TrackingStatus *string
	TrackingLink   *string
	ShippedTime    *time.Time
	DeliveredTime  *time.Time
	ETA            *time.Time
	Messages       *string
}

func (u TrackingUpdate) IsEmpty() bool {
	return u.Status == nil &&
		u.TrackingStatus == nil &&
		u.TrackingLink == nil &&
		u.ShippedTime == nil &&
		u.DeliveredTime == nil &&
		u.ETA == nil &&
		u.Messages == nil
}
