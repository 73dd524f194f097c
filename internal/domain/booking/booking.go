package booking

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/nuzul-stays/service-booking/internal/domain"
)

const bookingNumberChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// Booking is the aggregate root for the booking domain. It owns both the
// lifecycle status and the payment status; every mutation goes through a
// method that enforces the transition rules.
type Booking struct {
	id            uuid.UUID
	bookingNumber string
	propertyID    uuid.UUID
	guestID       uuid.UUID
	hostID        uuid.UUID

	checkIn  time.Time
	checkOut time.Time

	status        BookingStatus
	paymentStatus PaymentStatus

	totalPriceCents int64
	amountPaidCents int64
	currency        string

	holdExpiresAt    *time.Time
	paymentProvider  string
	paymentReference string

	cancellationPolicy CancellationPolicy
	refundAmountCents  int64
	refundedAt         *time.Time
	refundReason       string

	confirmedAt *time.Time
	checkedInAt *time.Time
	completedAt *time.Time
	cancelledAt *time.Time
	cancelledBy *uuid.UUID
	cancelNote  string

	guestCount int
	notes      string

	version   int64
	createdAt time.Time
	updatedAt time.Time
}

// generateBookingNumber creates a booking number in the format "BK-XXXXXX".
func generateBookingNumber() (string, error) {
	result := make([]byte, 6)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(bookingNumberChars))))
		if err != nil {
			return "", fmt.Errorf("failed to generate booking number: %w", err)
		}
		result[i] = bookingNumberChars[n.Int64()]
	}
	return "BK-" + string(result), nil
}

// NewBooking creates a new Booking aggregate with status=pending.
func NewBooking(
	propertyID uuid.UUID,
	guestID uuid.UUID,
	hostID uuid.UUID,
	checkIn time.Time,
	checkOut time.Time,
	totalPriceCents int64,
	currency string,
	policy CancellationPolicy,
	guestCount int,
	notes string,
) (*Booking, error) {
	if propertyID == uuid.Nil {
		return nil, domain.NewValidationError("property ID is required")
	}
	if guestID == uuid.Nil {
		return nil, domain.NewValidationError("guest ID is required")
	}
	if hostID == uuid.Nil {
		return nil, domain.NewValidationError("host ID is required")
	}
	if guestID == hostID {
		return nil, domain.NewValidationError("guest cannot book their own property")
	}
	if !checkOut.After(checkIn) {
		return nil, domain.NewValidationError("check-out must be after check-in")
	}
	if checkIn.Before(startOfDay(time.Now().UTC())) {
		return nil, domain.NewValidationError("check-in cannot be in the past")
	}
	if totalPriceCents <= 0 {
		return nil, domain.NewValidationError("total price must be positive")
	}
	if !policy.IsValid() {
		return nil, domain.NewValidationError(fmt.Sprintf("invalid cancellation policy: %s", policy))
	}
	if guestCount < 1 {
		return nil, domain.NewValidationError("guest count must be at least 1")
	}

	bookingNumber, err := generateBookingNumber()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &Booking{
		id:                 uuid.New(),
		bookingNumber:      bookingNumber,
		propertyID:         propertyID,
		guestID:            guestID,
		hostID:             hostID,
		checkIn:            checkIn,
		checkOut:           checkOut,
		status:             StatusPending,
		paymentStatus:      PaymentPending,
		totalPriceCents:    totalPriceCents,
		currency:           currency,
		cancellationPolicy: policy,
		guestCount:         guestCount,
		notes:              notes,
		version:            1,
		createdAt:          now,
		updatedAt:          now,
	}, nil
}

// Reconstruct rebuilds a Booking from persistence data (no validation).
func Reconstruct(
	id uuid.UUID,
	bookingNumber string,
	propertyID, guestID, hostID uuid.UUID,
	checkIn, checkOut time.Time,
	status BookingStatus,
	paymentStatus PaymentStatus,
	totalPriceCents, amountPaidCents int64,
	currency string,
	holdExpiresAt *time.Time,
	paymentProvider, paymentReference string,
	policy CancellationPolicy,
	refundAmountCents int64,
	refundedAt *time.Time,
	refundReason string,
	confirmedAt, checkedInAt, completedAt, cancelledAt *time.Time,
	cancelledBy *uuid.UUID,
	cancelNote string,
	guestCount int,
	notes string,
	version int64,
	createdAt, updatedAt time.Time,
) *Booking {
	return &Booking{
		id:                 id,
		bookingNumber:      bookingNumber,
		propertyID:         propertyID,
		guestID:            guestID,
		hostID:             hostID,
		checkIn:            checkIn,
		checkOut:           checkOut,
		status:             status,
		paymentStatus:      paymentStatus,
		totalPriceCents:    totalPriceCents,
		amountPaidCents:    amountPaidCents,
		currency:           currency,
		holdExpiresAt:      holdExpiresAt,
		paymentProvider:    paymentProvider,
		paymentReference:   paymentReference,
		cancellationPolicy: policy,
		refundAmountCents:  refundAmountCents,
		refundedAt:         refundedAt,
		refundReason:       refundReason,
		confirmedAt:        confirmedAt,
		checkedInAt:        checkedInAt,
		completedAt:        completedAt,
		cancelledAt:        cancelledAt,
		cancelledBy:        cancelledBy,
		cancelNote:         cancelNote,
		guestCount:         guestCount,
		notes:              notes,
		version:            version,
		createdAt:          createdAt,
		updatedAt:          updatedAt,
	}
}

// --- Getters ---

// ID returns the booking's unique identifier.
func (b *Booking) ID() uuid.UUID { return b.id }

// BookingNumber returns the human-readable booking number.
func (b *Booking) BookingNumber() string { return b.bookingNumber }

// PropertyID returns the booked property's identifier.
func (b *Booking) PropertyID() uuid.UUID { return b.propertyID }

// GuestID returns the booking guest's user ID.
func (b *Booking) GuestID() uuid.UUID { return b.guestID }

// HostID returns the property host's user ID.
func (b *Booking) HostID() uuid.UUID { return b.hostID }

// CheckIn returns the check-in date.
func (b *Booking) CheckIn() time.Time { return b.checkIn }

// CheckOut returns the check-out date.
func (b *Booking) CheckOut() time.Time { return b.checkOut }

// Status returns the current booking status.
func (b *Booking) Status() BookingStatus { return b.status }

// PaymentStatus returns the current payment status.
func (b *Booking) PaymentStatus() PaymentStatus { return b.paymentStatus }

// TotalPriceCents returns the total price in cents.
func (b *Booking) TotalPriceCents() int64 { return b.totalPriceCents }

// AmountPaidCents returns the amount collected so far in cents.
func (b *Booking) AmountPaidCents() int64 { return b.amountPaidCents }

// RemainingBalanceCents returns the uncollected portion of the total price.
func (b *Booking) RemainingBalanceCents() int64 { return b.totalPriceCents - b.amountPaidCents }

// Currency returns the currency code.
func (b *Booking) Currency() string { return b.currency }

// HoldExpiresAt returns the payment-hold deadline, or nil if no hold is active.
func (b *Booking) HoldExpiresAt() *time.Time { return b.holdExpiresAt }

// PaymentProvider returns the gateway that holds the current payment order.
func (b *Booking) PaymentProvider() string { return b.paymentProvider }

// PaymentReference returns the most recent gateway order reference.
func (b *Booking) PaymentReference() string { return b.paymentReference }

// CancellationPolicy returns the refund tier attached to the booking.
func (b *Booking) CancellationPolicy() CancellationPolicy { return b.cancellationPolicy }

// RefundAmountCents returns the refunded amount in cents.
func (b *Booking) RefundAmountCents() int64 { return b.refundAmountCents }

// RefundedAt returns the refund timestamp, or nil if no refund was issued.
func (b *Booking) RefundedAt() *time.Time { return b.refundedAt }

// RefundReason returns the recorded refund reason.
func (b *Booking) RefundReason() string { return b.refundReason }

// ConfirmedAt returns the confirmation timestamp.
func (b *Booking) ConfirmedAt() *time.Time { return b.confirmedAt }

// CheckedInAt returns the check-in timestamp.
func (b *Booking) CheckedInAt() *time.Time { return b.checkedInAt }

// CompletedAt returns the completion timestamp.
func (b *Booking) CompletedAt() *time.Time { return b.completedAt }

// CancelledAt returns the cancellation timestamp.
func (b *Booking) CancelledAt() *time.Time { return b.cancelledAt }

// CancelledBy returns the user who cancelled the booking, or nil.
func (b *Booking) CancelledBy() *uuid.UUID { return b.cancelledBy }

// CancelNote returns the cancellation reason.
func (b *Booking) CancelNote() string { return b.cancelNote }

// GuestCount returns the number of guests on the booking.
func (b *Booking) GuestCount() int { return b.guestCount }

// Notes returns any additional notes for the booking.
func (b *Booking) Notes() string { return b.notes }

// Version returns the entity version for optimistic locking.
func (b *Booking) Version() int64 { return b.version }

// CreatedAt returns the creation timestamp.
func (b *Booking) CreatedAt() time.Time { return b.createdAt }

// UpdatedAt returns the last-updated timestamp.
func (b *Booking) UpdatedAt() time.Time { return b.updatedAt }

// --- Behavior ---

// Accept transitions the booking from pending to awaiting_payment and places
// a payment hold that expires after holdTTL.
func (b *Booking) Accept(holdTTL time.Duration) error {
	if !b.status.CanTransitionTo(StatusAwaitingPayment) {
		return domain.NewInvalidStateError(string(b.status), string(StatusAwaitingPayment))
	}
	if holdTTL <= 0 {
		return domain.NewValidationError("hold TTL must be positive")
	}
	now := time.Now().UTC()
	deadline := now.Add(holdTTL)
	b.status = StatusAwaitingPayment
	b.holdExpiresAt = &deadline
	b.updatedAt = now
	return nil
}

// Reject transitions the booking from pending to rejected.
func (b *Booking) Reject() error {
	if !b.status.CanTransitionTo(StatusRejected) {
		return domain.NewInvalidStateError(string(b.status), string(StatusRejected))
	}
	b.status = StatusRejected
	b.updatedAt = time.Now().UTC()
	return nil
}

// HoldExpired reports whether the payment hold deadline has passed. The
// boundary is inclusive: a hold expiring exactly at now is expired.
func (b *Booking) HoldExpired(now time.Time) bool {
	return b.status == StatusAwaitingPayment &&
		b.holdExpiresAt != nil &&
		!b.holdExpiresAt.After(now)
}

// Expire transitions an awaiting_payment booking whose hold deadline has
// passed to expired/failed.
func (b *Booking) Expire(now time.Time) error {
	if !b.status.CanTransitionTo(StatusExpired) {
		return domain.NewInvalidStateError(string(b.status), string(StatusExpired))
	}
	if b.holdExpiresAt == nil {
		return domain.NewStateError("booking has no payment hold to expire")
	}
	if b.holdExpiresAt.After(now) {
		return domain.NewStateError("payment hold has not expired yet")
	}
	b.status = StatusExpired
	b.paymentStatus = PaymentFailed
	b.updatedAt = time.Now().UTC()
	return nil
}

// SetPaymentReference records the gateway order created for this booking.
// The previous reference is overwritten: last writer wins.
func (b *Booking) SetPaymentReference(provider, reference string) {
	b.paymentProvider = provider
	b.paymentReference = reference
	b.updatedAt = time.Now().UTC()
}

// ApplyPayment records a captured payment of amountCents. The applied amount
// is capped at the remaining balance so amountPaid never exceeds totalPrice.
// A first successful capture confirms an awaiting_payment booking. Returns
// the amount actually applied.
func (b *Booking) ApplyPayment(amountCents int64) (int64, error) {
	if amountCents <= 0 {
		return 0, domain.NewValidationError("payment amount must be positive")
	}
	if b.status.IsTerminal() {
		return 0, domain.NewStateError(fmt.Sprintf("no payment transitions permitted on %s booking", b.status))
	}

	applied := amountCents
	if remaining := b.RemainingBalanceCents(); applied > remaining {
		applied = remaining
	}
	if applied < 0 {
		applied = 0
	}

	now := time.Now().UTC()
	b.amountPaidCents += applied
	if b.amountPaidCents >= b.totalPriceCents {
		b.paymentStatus = PaymentPaid
	} else {
		b.paymentStatus = PaymentPartiallyPaid
	}

	if b.status == StatusAwaitingPayment {
		b.status = StatusConfirmed
		b.confirmedAt = &now
		b.holdExpiresAt = nil
	}
	b.updatedAt = now
	return applied, nil
}

// RecordPaymentFailure marks the pending payment as failed. When the gateway
// explicitly denied the payment the booking itself is cancelled; otherwise
// the booking status is left unchanged so the guest can retry.
func (b *Booking) RecordPaymentFailure(denied bool) error {
	if b.status.IsTerminal() {
		return domain.NewStateError(fmt.Sprintf("no payment transitions permitted on %s booking", b.status))
	}
	if b.paymentStatus.CanTransitionTo(PaymentFailed) {
		b.paymentStatus = PaymentFailed
	}
	now := time.Now().UTC()
	if denied && b.status.CanBeCancelled() {
		b.status = StatusCancelled
		b.cancelledAt = &now
		b.cancelNote = "payment denied by gateway"
	}
	b.updatedAt = now
	return nil
}

// MarkPaymentPending records that the gateway reported the payment as still
// in flight. The booking status is left unchanged.
func (b *Booking) MarkPaymentPending() error {
	if b.status.IsTerminal() {
		return domain.NewStateError(fmt.Sprintf("no payment transitions permitted on %s booking", b.status))
	}
	if b.paymentStatus == PaymentFailed || b.paymentStatus == PaymentPending {
		b.paymentStatus = PaymentPending
	}
	b.updatedAt = time.Now().UTC()
	return nil
}

// MarkCheckedIn transitions the booking from confirmed to checked_in.
func (b *Booking) MarkCheckedIn() error {
	if !b.status.CanTransitionTo(StatusCheckedIn) {
		return domain.NewInvalidStateError(string(b.status), string(StatusCheckedIn))
	}
	now := time.Now().UTC()
	b.status = StatusCheckedIn
	b.checkedInAt = &now
	b.updatedAt = now
	return nil
}

// Complete transitions the booking from checked_in to completed.
func (b *Booking) Complete() error {
	if !b.status.CanTransitionTo(StatusCompleted) {
		return domain.NewInvalidStateError(string(b.status), string(StatusCompleted))
	}
	now := time.Now().UTC()
	b.status = StatusCompleted
	b.completedAt = &now
	b.updatedAt = now
	return nil
}

// Cancel transitions the booking to cancelled and records the refund that was
// issued, if any. refundCents must not exceed the amount collected.
func (b *Booking) Cancel(cancelledBy uuid.UUID, reason string, refundCents int64) error {
	if !b.status.CanBeCancelled() {
		return domain.NewInvalidStateError(string(b.status), string(StatusCancelled))
	}
	if refundCents < 0 {
		return domain.NewValidationError("refund amount cannot be negative")
	}
	if refundCents > b.amountPaidCents {
		return domain.NewValidationError("refund amount exceeds amount paid")
	}

	now := time.Now().UTC()
	b.status = StatusCancelled
	b.cancelledAt = &now
	b.cancelledBy = &cancelledBy
	b.cancelNote = reason
	b.holdExpiresAt = nil

	if refundCents > 0 {
		b.refundAmountCents = refundCents
		b.refundedAt = &now
		b.refundReason = reason
		if refundCents >= b.amountPaidCents {
			b.paymentStatus = PaymentRefunded
		} else {
			b.paymentStatus = PaymentPartiallyRefunded
		}
	}
	b.updatedAt = now
	return nil
}

// IncrementVersion bumps the version for optimistic locking.
func (b *Booking) IncrementVersion() {
	b.version++
	b.updatedAt = time.Now().UTC()
}

// Nights returns the number of nights covered by [checkIn, checkOut).
func (b *Booking) Nights() int {
	return int(b.checkOut.Sub(b.checkIn).Hours() / 24)
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
