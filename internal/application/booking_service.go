package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nuzul-stays/service-booking/internal/auth"
	"github.com/nuzul-stays/service-booking/internal/domain"
	"github.com/nuzul-stays/service-booking/internal/domain/availability"
	bookingDomain "github.com/nuzul-stays/service-booking/internal/domain/booking"
	"github.com/nuzul-stays/service-booking/internal/domain/ledger"
	"github.com/nuzul-stays/service-booking/internal/events"
	"github.com/nuzul-stays/service-booking/internal/gateway"
)

// EventPublisher is the subset of the Kafka producer the services need.
type EventPublisher interface {
	PublishEvent(ctx context.Context, topic, key string, event *events.CloudEvent) error
}

// CreateBookingRequest holds the data needed to request a new booking.
type CreateBookingRequest struct {
	PropertyID         uuid.UUID `json:"property_id" binding:"required"`
	HostID             uuid.UUID `json:"host_id" binding:"required"`
	CheckIn            time.Time `json:"check_in" binding:"required"`
	CheckOut           time.Time `json:"check_out" binding:"required"`
	GuestCount         int       `json:"guest_count" binding:"required"`
	CancellationPolicy string    `json:"cancellation_policy" binding:"required"`
	Notes              string    `json:"notes"`
}

// BookingDTO is the response representation of a booking.
type BookingDTO struct {
	ID                 uuid.UUID  `json:"id"`
	BookingNumber      string     `json:"booking_number"`
	PropertyID         uuid.UUID  `json:"property_id"`
	GuestID            uuid.UUID  `json:"guest_id"`
	HostID             uuid.UUID  `json:"host_id"`
	CheckIn            time.Time  `json:"check_in"`
	CheckOut           time.Time  `json:"check_out"`
	Status             string     `json:"status"`
	PaymentStatus      string     `json:"payment_status"`
	TotalPriceCents    int64      `json:"total_price_cents"`
	AmountPaidCents    int64      `json:"amount_paid_cents"`
	Currency           string     `json:"currency"`
	HoldExpiresAt      *time.Time `json:"hold_expires_at,omitempty"`
	PaymentProvider    string     `json:"payment_provider,omitempty"`
	PaymentReference   string     `json:"payment_reference,omitempty"`
	CancellationPolicy string     `json:"cancellation_policy"`
	RefundAmountCents  int64      `json:"refund_amount_cents,omitempty"`
	RefundedAt         *time.Time `json:"refunded_at,omitempty"`
	RefundReason       string     `json:"refund_reason,omitempty"`
	ConfirmedAt        *time.Time `json:"confirmed_at,omitempty"`
	CheckedInAt        *time.Time `json:"checked_in_at,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	CancelledBy        *uuid.UUID `json:"cancelled_by,omitempty"`
	CancelNote         string     `json:"cancel_note,omitempty"`
	GuestCount         int        `json:"guest_count"`
	Notes              string     `json:"notes,omitempty"`
	Version            int64      `json:"version"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// BookingService is the application service orchestrating booking use cases.
type BookingService struct {
	bookings     bookingDomain.Repository
	availability availability.Repository
	transactions ledger.Repository
	refunds      bookingDomain.RefundCalculator
	gateways     *gateway.Registry
	producer     EventPublisher
	holdTTL      time.Duration
	logger       *zap.Logger
}

// NewBookingService creates a new BookingService.
func NewBookingService(
	bookings bookingDomain.Repository,
	avail availability.Repository,
	transactions ledger.Repository,
	refunds bookingDomain.RefundCalculator,
	gateways *gateway.Registry,
	producer EventPublisher,
	holdTTL time.Duration,
	logger *zap.Logger,
) *BookingService {
	return &BookingService{
		bookings:     bookings,
		availability: avail,
		transactions: transactions,
		refunds:      refunds,
		gateways:     gateways,
		producer:     producer,
		holdTTL:      holdTTL,
		logger:       logger,
	}
}

// CreateBooking prices the stay off the availability calendar and creates a
// pending booking for the guest.
func (s *BookingService) CreateBooking(ctx context.Context, guestID uuid.UUID, req CreateBookingRequest) (*BookingDTO, error) {
	policy := bookingDomain.CancellationPolicy(req.CancellationPolicy)
	if !policy.IsValid() {
		return nil, domain.NewValidationError(fmt.Sprintf("invalid cancellation policy: %s", req.CancellationPolicy))
	}

	nights, err := s.availability.FindRange(ctx, req.PropertyID, req.CheckIn, req.CheckOut)
	if err != nil {
		return nil, err
	}

	wanted := availability.NightsIn(req.CheckIn, req.CheckOut)
	if len(nights) < len(wanted) {
		return nil, domain.NewValidationError("property has no calendar for part of the requested dates")
	}

	var totalCents int64
	for _, night := range nights {
		if !night.Available {
			return nil, domain.NewStateError(fmt.Sprintf("property is not available on %s", night.Date.Format("2006-01-02")))
		}
		totalCents += night.PriceCents
	}

	bk, err := bookingDomain.NewBooking(
		req.PropertyID,
		guestID,
		req.HostID,
		req.CheckIn,
		req.CheckOut,
		totalCents,
		domain.CurrencyQAR,
		policy,
		req.GuestCount,
		req.Notes,
	)
	if err != nil {
		return nil, err
	}

	if err := s.bookings.Save(ctx, bk); err != nil {
		return nil, fmt.Errorf("failed to save booking: %w", err)
	}

	s.publishLifecycle(ctx, events.BookingRequested, bk)

	result := toBookingDTO(bk)
	return &result, nil
}

// AcceptBooking moves a pending booking to awaiting_payment, places the
// payment hold and takes the nights off the calendar.
func (s *BookingService) AcceptBooking(ctx context.Context, hostID, bookingID uuid.UUID) (*BookingDTO, error) {
	bk, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if bk.HostID() != hostID {
		return nil, domain.NewForbiddenError("booking does not belong to this host")
	}

	if err := bk.Accept(s.holdTTL); err != nil {
		return nil, err
	}

	if err := s.availability.Hold(ctx, bk.PropertyID(), bk.CheckIn(), bk.CheckOut()); err != nil {
		return nil, err
	}

	bk.IncrementVersion()
	if err := s.bookings.Update(ctx, bk); err != nil {
		// The nights were already taken; put them back so a lost
		// optimistic race does not strand inventory.
		if relErr := s.availability.Release(ctx, bk.PropertyID(), bk.CheckIn(), bk.CheckOut()); relErr != nil {
			s.logger.Error("failed to release nights after update conflict",
				zap.String("booking_id", bk.ID().String()),
				zap.Error(relErr),
			)
		}
		return nil, err
	}

	s.publishLifecycle(ctx, events.BookingAccepted, bk)

	result := toBookingDTO(bk)
	return &result, nil
}

// RejectBooking declines a pending booking.
func (s *BookingService) RejectBooking(ctx context.Context, hostID, bookingID uuid.UUID) (*BookingDTO, error) {
	bk, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if bk.HostID() != hostID {
		return nil, domain.NewForbiddenError("booking does not belong to this host")
	}

	if err := bk.Reject(); err != nil {
		return nil, err
	}

	bk.IncrementVersion()
	if err := s.bookings.Update(ctx, bk); err != nil {
		return nil, err
	}

	s.publishLifecycle(ctx, events.BookingRejected, bk)

	result := toBookingDTO(bk)
	return &result, nil
}

// CheckInBooking marks a confirmed booking as checked in.
func (s *BookingService) CheckInBooking(ctx context.Context, hostID, bookingID uuid.UUID) (*BookingDTO, error) {
	bk, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if bk.HostID() != hostID {
		return nil, domain.NewForbiddenError("booking does not belong to this host")
	}

	if err := bk.MarkCheckedIn(); err != nil {
		return nil, err
	}

	bk.IncrementVersion()
	if err := s.bookings.Update(ctx, bk); err != nil {
		return nil, err
	}

	result := toBookingDTO(bk)
	return &result, nil
}

// CompleteBooking finalizes a checked-in booking after the stay ends.
func (s *BookingService) CompleteBooking(ctx context.Context, hostID, bookingID uuid.UUID) (*BookingDTO, error) {
	bk, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if bk.HostID() != hostID {
		return nil, domain.NewForbiddenError("booking does not belong to this host")
	}

	if err := bk.Complete(); err != nil {
		return nil, err
	}

	bk.IncrementVersion()
	if err := s.bookings.Update(ctx, bk); err != nil {
		return nil, err
	}

	result := toBookingDTO(bk)
	return &result, nil
}

// CancelBooking cancels a booking on behalf of the guest or the host. The
// refund is computed from the cancellation policy when the guest cancels;
// a host cancellation refunds everything collected.
func (s *BookingService) CancelBooking(ctx context.Context, actorID uuid.UUID, role string, bookingID uuid.UUID, reason string) (*BookingDTO, error) {
	bk, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	switch {
	case role == auth.RoleAdmin:
	case actorID == bk.GuestID(), actorID == bk.HostID():
	default:
		return nil, domain.NewForbiddenError("booking does not belong to this user")
	}

	// Refunds go out before the state change, so reject uncancellable
	// bookings before touching the gateway.
	if !bk.Status().CanBeCancelled() {
		return nil, domain.NewInvalidStateError(string(bk.Status()), string(bookingDomain.StatusCancelled))
	}

	var refundCents int64
	if bk.AmountPaidCents() > 0 {
		if actorID == bk.GuestID() && role != auth.RoleAdmin {
			refundCents, err = s.refunds.Calculate(bookingDomain.RefundParams{
				Policy:           bk.CancellationPolicy(),
				DaysUntilCheckIn: bookingDomain.DaysUntilCheckIn(bk.CheckIn(), time.Now().UTC()),
				TotalPriceCents:  bk.TotalPriceCents(),
			})
			if err != nil {
				return nil, err
			}
			if refundCents > bk.AmountPaidCents() {
				refundCents = bk.AmountPaidCents()
			}
			if refundCents == 0 {
				return nil, domain.NewStateError("no refund available under the cancellation policy")
			}
		} else {
			// Host or admin cancellations return everything collected.
			refundCents = bk.AmountPaidCents()
		}
	}

	if refundCents > 0 {
		if err := s.issueRefund(ctx, bk, refundCents, reason); err != nil {
			return nil, err
		}
	}

	if err := bk.Cancel(actorID, reason, refundCents); err != nil {
		return nil, err
	}

	bk.IncrementVersion()
	if err := s.bookings.Update(ctx, bk); err != nil {
		return nil, err
	}

	// Nights are only consumed once a hold is placed; release is a no-op
	// for bookings cancelled while still pending.
	if err := s.availability.Release(ctx, bk.PropertyID(), bk.CheckIn(), bk.CheckOut()); err != nil {
		s.logger.Error("failed to release nights for cancelled booking",
			zap.String("booking_id", bk.ID().String()),
			zap.Error(err),
		)
	}

	s.publishLifecycle(ctx, events.BookingCancelled, bk)

	result := toBookingDTO(bk)
	return &result, nil
}

// issueRefund sends the refund to the gateway that captured the original
// payment and appends the refund ledger entry. The booking is not mutated
// when the gateway call fails.
func (s *BookingService) issueRefund(ctx context.Context, bk *bookingDomain.Booking, refundCents int64, reason string) error {
	capture, err := s.latestCapture(ctx, bk.ID())
	if err != nil {
		return err
	}

	gw, err := s.gateways.Get(capture.Provider)
	if err != nil {
		return err
	}

	refund, err := gw.Refund(ctx, gateway.RefundRequest{
		GatewayRef:  capture.GatewayRef,
		AmountCents: refundCents,
		Currency:    bk.Currency(),
		Reason:      reason,
	})
	if err != nil {
		return err
	}

	entry, err := ledger.NewTransaction(
		bk.ID(),
		ledger.TypeRefund,
		ledger.StatusRefunded,
		refundCents,
		bk.Currency(),
		capture.Provider,
		refund.RefundID,
	)
	if err != nil {
		return err
	}
	if err := s.transactions.Append(ctx, entry); err != nil {
		return fmt.Errorf("failed to append refund ledger entry: %w", err)
	}

	s.publishLifecycle(ctx, events.BookingRefunded, bk)
	return nil
}

// latestCapture finds the most recent settled reservation payment.
func (s *BookingService) latestCapture(ctx context.Context, bookingID uuid.UUID) (*ledger.Transaction, error) {
	entries, err := s.transactions.ListByBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Type == ledger.TypeReservation && entries[i].Status == ledger.StatusPaid {
			return entries[i], nil
		}
	}
	return nil, domain.NewStateError("booking has no settled payment to refund")
}

// GetBooking retrieves a single booking visible to the caller.
func (s *BookingService) GetBooking(ctx context.Context, actorID uuid.UUID, role string, bookingID uuid.UUID) (*BookingDTO, error) {
	bk, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if role != auth.RoleAdmin && actorID != bk.GuestID() && actorID != bk.HostID() {
		return nil, domain.NewForbiddenError("booking does not belong to this user")
	}
	result := toBookingDTO(bk)
	return &result, nil
}

// GetGuestBookings retrieves paginated bookings created by a guest.
func (s *BookingService) GetGuestBookings(ctx context.Context, guestID uuid.UUID, page, limit int) (*domain.PaginatedResult[BookingDTO], error) {
	bookings, total, err := s.bookings.FindByGuestID(ctx, guestID, page, limit)
	if err != nil {
		return nil, err
	}
	result := domain.NewPaginatedResult(toBookingDTOs(bookings), total, page, limit)
	return &result, nil
}

// GetHostBookings retrieves paginated bookings for a host's properties.
func (s *BookingService) GetHostBookings(ctx context.Context, hostID uuid.UUID, page, limit int) (*domain.PaginatedResult[BookingDTO], error) {
	bookings, total, err := s.bookings.FindByHostID(ctx, hostID, page, limit)
	if err != nil {
		return nil, err
	}
	result := domain.NewPaginatedResult(toBookingDTOs(bookings), total, page, limit)
	return &result, nil
}

// --- Admin methods ---

// BookingStatsDTO holds booking statistics for the admin dashboard.
type BookingStatsDTO struct {
	TotalBookings int64            `json:"total_bookings"`
	ByStatus      map[string]int64 `json:"by_status"`
}

// ListAllBookings returns a paginated list of all bookings (admin).
func (s *BookingService) ListAllBookings(ctx context.Context, page, limit int) ([]BookingDTO, int64, error) {
	bookings, total, err := s.bookings.ListAll(ctx, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list bookings: %w", err)
	}
	return toBookingDTOs(bookings), total, nil
}

// GetBookingStats returns aggregate booking statistics (admin).
func (s *BookingService) GetBookingStats(ctx context.Context) (*BookingStatsDTO, error) {
	counts, err := s.bookings.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get booking stats: %w", err)
	}

	var total int64
	for _, c := range counts {
		total += c
	}
	return &BookingStatsDTO{TotalBookings: total, ByStatus: counts}, nil
}

// --- Helpers ---

func (s *BookingService) publishLifecycle(ctx context.Context, eventType string, bk *bookingDomain.Booking) {
	evt := events.BookingLifecycleEvent{
		BookingID:     bk.ID(),
		BookingNumber: bk.BookingNumber(),
		PropertyID:    bk.PropertyID(),
		GuestID:       bk.GuestID(),
		HostID:        bk.HostID(),
		Status:        string(bk.Status()),
		PaymentStatus: string(bk.PaymentStatus()),
		AmountCents:   bk.AmountPaidCents(),
		Currency:      bk.Currency(),
		OccurredAt:    time.Now().UTC(),
	}

	cloudEvent, err := events.NewCloudEvent("service-booking", eventType, evt)
	if err != nil {
		s.logger.Error("failed to create cloud event",
			zap.String("event_type", eventType),
			zap.Error(err),
		)
		return
	}

	if err := s.producer.PublishEvent(ctx, events.TopicBookingEvents, bk.ID().String(), cloudEvent); err != nil {
		s.logger.Error("failed to publish event",
			zap.String("event_type", eventType),
			zap.Error(err),
		)
	}
}

func toBookingDTO(bk *bookingDomain.Booking) BookingDTO {
	return BookingDTO{
		ID:                 bk.ID(),
		BookingNumber:      bk.BookingNumber(),
		PropertyID:         bk.PropertyID(),
		GuestID:            bk.GuestID(),
		HostID:             bk.HostID(),
		CheckIn:            bk.CheckIn(),
		CheckOut:           bk.CheckOut(),
		Status:             string(bk.Status()),
		PaymentStatus:      string(bk.PaymentStatus()),
		TotalPriceCents:    bk.TotalPriceCents(),
		AmountPaidCents:    bk.AmountPaidCents(),
		Currency:           bk.Currency(),
		HoldExpiresAt:      bk.HoldExpiresAt(),
		PaymentProvider:    bk.PaymentProvider(),
		PaymentReference:   bk.PaymentReference(),
		CancellationPolicy: string(bk.CancellationPolicy()),
		RefundAmountCents:  bk.RefundAmountCents(),
		RefundedAt:         bk.RefundedAt(),
		RefundReason:       bk.RefundReason(),
		ConfirmedAt:        bk.ConfirmedAt(),
		CheckedInAt:        bk.CheckedInAt(),
		CompletedAt:        bk.CompletedAt(),
		CancelledAt:        bk.CancelledAt(),
		CancelledBy:        bk.CancelledBy(),
		CancelNote:         bk.CancelNote(),
		GuestCount:         bk.GuestCount(),
		Notes:              bk.Notes(),
		Version:            bk.Version(),
		CreatedAt:          bk.CreatedAt(),
		UpdatedAt:          bk.UpdatedAt(),
	}
}

func toBookingDTOs(bookings []*bookingDomain.Booking) []BookingDTO {
	dtos := make([]BookingDTO, len(bookings))
	for i, bk := range bookings {
		dtos[i] = toBookingDTO(bk)
	}
	return dtos
}
