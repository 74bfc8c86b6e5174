package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrValidation = errors.New("validation failed")
)

var (
	// ErrDuplicateTrackingNumber is returned when a write collides with the
	// unique tracking_number constraint.
	ErrDuplicateTrackingNumber = fmt.Errorf("%w: tracking number already exists", ErrConflict)

	// ErrRequiredColumn is returned when the store rejects a NULL in a required column.
	ErrRequiredColumn = fmt.Errorf("%w: required column is missing", ErrValidation)
)
