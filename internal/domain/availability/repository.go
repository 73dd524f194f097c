package availability

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines the persistence contract for property-night inventory.
type Repository interface {
	// FindRange retrieves the nights for a property over [checkIn, checkOut).
	FindRange(ctx context.Context, propertyID uuid.UUID, checkIn, checkOut time.Time) ([]Night, error)

	// Hold marks the nights in [checkIn, checkOut) unavailable. It fails if
	// any night in the range is already unavailable.
	Hold(ctx context.Context, propertyID uuid.UUID, checkIn, checkOut time.Time) error

	// Release marks the nights in [checkIn, checkOut) available again.
	Release(ctx context.Context, propertyID uuid.UUID, checkIn, checkOut time.Time) error
}
