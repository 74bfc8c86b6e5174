package domain

import "strings"

// Well-known workflow statuses. The status column is free text, so other
// values are stored as given.
const (
	StatusQueued         = "Queued"
	StatusLabelCreated   = "Label created"
	StatusLabelPrinted   = "Label printed"
	StatusShipped        = "Shipped"
	StatusDelivered      = "Delivered"
	StatusReturned       = "Returned"
	StatusPickedUp       = "Picked up"
	StatusWaitingPickup  = "Waiting for pickup"
	StatusDeliveryFailed = "Failure"
)

// Tracking states as reported by Shippo.
const (
	TrackingPreTransit = "PRE_TRANSIT"
	TrackingTransit    = "TRANSIT"
	TrackingDelivered  = "DELIVERED"
	TrackingReturned   = "RETURNED"
	TrackingFailure    = "FAILURE"
	TrackingUnknown    = "UNKNOWN"
)

var knownStatuses = []string{
	StatusQueued,
	StatusLabelCreated,
	StatusLabelPrinted,
	StatusShipped,
	StatusDelivered,
	StatusReturned,
	StatusPickedUp,
	StatusWaitingPickup,
	StatusDeliveryFailed,
}

var knownTrackingStatuses = []string{
	TrackingPreTransit,
	TrackingTransit,
	TrackingDelivered,
	TrackingReturned,
	TrackingFailure,
	TrackingUnknown,
}

// IsKnownStatus reports whether s matches a well-known workflow status, ignoring case.
func IsKnownStatus(s string) bool {
	return containsFold(knownStatuses, s)
}

// IsKnownTrackingStatus reports whether s matches a Shippo tracking state, ignoring case.
func IsKnownTrackingStatus(s string) bool {
	return containsFold(knownTrackingStatuses, s)
}

func containsFold(values []string, s string) bool {
	s = strings.TrimSpace(s)
	for _, v := range values {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
