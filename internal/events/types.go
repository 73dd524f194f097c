package events

import (
	"time"

	"github.com/google/uuid"
)

// Topics the booking service produces to and consumes from.
const (
	TopicBookingEvents = "booking.events"
	TopicPaymentEvents = "payment.events"
)

// Event types published on booking.events.
const (
	BookingRequested = "booking.requested"
	BookingAccepted  = "booking.accepted"
	BookingRejected  = "booking.rejected"
	BookingConfirmed = "booking.confirmed"
	BookingCancelled = "booking.cancelled"
	BookingExpired   = "booking.expired"
	BookingRefunded  = "booking.refunded"
)

// Event types consumed from payment.events. These are PSP notifications
// relayed through the webhook gateway onto the bus.
const (
	PaymentCaptured        = "payment.captured"
	PaymentRefundCompleted = "payment.refund.completed"
)

// BookingLifecycleEvent is the shared payload for booking.events entries.
type BookingLifecycleEvent struct {
	BookingID     uuid.UUID `json:"booking_id"`
	BookingNumber string    `json:"booking_number"`
	PropertyID    uuid.UUID `json:"property_id"`
	GuestID       uuid.UUID `json:"guest_id"`
	HostID        uuid.UUID `json:"host_id"`
	Status        string    `json:"status"`
	PaymentStatus string    `json:"payment_status"`
	AmountCents   int64     `json:"amount_cents,omitempty"`
	Currency      string    `json:"currency"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// PaymentCapturedEvent is the relayed notification of a settled capture.
type PaymentCapturedEvent struct {
	BookingID    uuid.UUID `json:"booking_id"`
	Provider     string    `json:"provider"`
	GatewayTxnID string    `json:"gateway_txn_id"`
	AmountCents  int64     `json:"amount_cents"`
	Currency     string    `json:"currency"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// RefundCompletedEvent is the relayed notification of a settled refund.
type RefundCompletedEvent struct {
	BookingID    uuid.UUID `json:"booking_id"`
	Provider     string    `json:"provider"`
	GatewayTxnID string    `json:"gateway_txn_id"`
	AmountCents  int64     `json:"amount_cents"`
	Currency     string    `json:"currency"`
	OccurredAt   time.Time `json:"occurred_at"`
}
