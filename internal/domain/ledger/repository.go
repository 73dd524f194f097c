package ledger

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the persistence contract for the transaction ledger.
type Repository interface {
	// Append persists a new ledger entry.
	Append(ctx context.Context, tx *Transaction) error

	// FindByGatewayRef retrieves a ledger entry by its gateway transaction
	// reference, or a NotFoundError if none exists.
	FindByGatewayRef(ctx context.Context, provider, gatewayRef string) (*Transaction, error)

	// ListByBooking retrieves all ledger entries for a booking, oldest first.
	ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]*Transaction, error)
}
