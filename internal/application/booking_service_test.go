package application

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nuzul-stays/service-booking/internal/auth"
	"github.com/nuzul-stays/service-booking/internal/domain"
	bookingDomain "github.com/nuzul-stays/service-booking/internal/domain/booking"
	"github.com/nuzul-stays/service-booking/internal/events"
	"github.com/nuzul-stays/service-booking/internal/gateway"
)

type bookingFixture struct {
	service      *BookingService
	bookings     *fakeBookingRepo
	availability *fakeAvailabilityRepo
	transactions *fakeLedger
	gw           *fakeGateway
	publisher    *fakePublisher

	propertyID uuid.UUID
	guestID    uuid.UUID
	hostID     uuid.UUID
	checkIn    time.Time
	checkOut   time.Time
}

func newBookingFixture(t *testing.T) *bookingFixture {
	t.Helper()

	f := &bookingFixture{
		bookings:     newFakeBookingRepo(),
		availability: newFakeAvailabilityRepo(),
		transactions: newFakeLedger(),
		gw:           newFakeGateway(gateway.ProviderSadad),
		publisher:    newFakePublisher(),
		propertyID:   uuid.New(),
		guestID:      uuid.New(),
		hostID:       uuid.New(),
	}
	f.checkIn = time.Now().UTC().AddDate(0, 0, 10).Truncate(24 * time.Hour)
	f.checkOut = f.checkIn.AddDate(0, 0, 3)
	f.availability.seed(f.propertyID, f.checkIn, f.checkOut, 100_00)

	f.service = NewBookingService(
		f.bookings,
		f.availability,
		f.transactions,
		bookingDomain.NewTieredRefundCalculator(),
		gateway.NewRegistry(f.gw),
		f.publisher,
		30*time.Minute,
		zap.NewNop(),
	)
	return f
}

func (f *bookingFixture) createBooking(t *testing.T) *BookingDTO {
	t.Helper()
	dto, err := f.service.CreateBooking(context.Background(), f.guestID, CreateBookingRequest{
		PropertyID:         f.propertyID,
		HostID:             f.hostID,
		CheckIn:            f.checkIn,
		CheckOut:           f.checkOut,
		GuestCount:         2,
		CancellationPolicy: string(bookingDomain.PolicyModerate),
	})
	require.NoError(t, err)
	return dto
}

func TestBookingService_CreateBooking(t *testing.T) {
	f := newBookingFixture(t)

	dto := f.createBooking(t)

	assert.Equal(t, "pending", dto.Status)
	assert.Equal(t, int64(300_00), dto.TotalPriceCents, "price is the sum of the calendar nights")
	assert.Equal(t, domain.CurrencyQAR, dto.Currency)
	assert.Contains(t, f.publisher.eventTypes(), events.BookingRequested)
}

func TestBookingService_CreateBooking_UnavailableNight(t *testing.T) {
	f := newBookingFixture(t)

	// Take one night out of the middle of the range.
	require.NoError(t, f.availability.Hold(context.Background(), f.propertyID, f.checkIn.AddDate(0, 0, 1), f.checkIn.AddDate(0, 0, 2)))

	_, err := f.service.CreateBooking(context.Background(), f.guestID, CreateBookingRequest{
		PropertyID:         f.propertyID,
		HostID:             f.hostID,
		CheckIn:            f.checkIn,
		CheckOut:           f.checkOut,
		GuestCount:         2,
		CancellationPolicy: string(bookingDomain.PolicyModerate),
	})
	var stateErr *domain.InvalidStateError
	assert.ErrorAs(t, err, &stateErr)
}

func TestBookingService_CreateBooking_NoCalendar(t *testing.T) {
	f := newBookingFixture(t)

	_, err := f.service.CreateBooking(context.Background(), f.guestID, CreateBookingRequest{
		PropertyID:         uuid.New(), // no seeded nights
		HostID:             f.hostID,
		CheckIn:            f.checkIn,
		CheckOut:           f.checkOut,
		GuestCount:         2,
		CancellationPolicy: string(bookingDomain.PolicyModerate),
	})
	var valErr *domain.ValidationError
	assert.ErrorAs(t, err, &valErr)
}

func TestBookingService_AcceptBooking(t *testing.T) {
	f := newBookingFixture(t)
	dto := f.createBooking(t)

	accepted, err := f.service.AcceptBooking(context.Background(), f.hostID, dto.ID)
	require.NoError(t, err)

	assert.Equal(t, "awaiting_payment", accepted.Status)
	assert.NotNil(t, accepted.HoldExpiresAt)
	assert.False(t, f.availability.available(f.propertyID, f.checkIn), "accepted booking consumes the nights")
	assert.Contains(t, f.publisher.eventTypes(), events.BookingAccepted)
}

func TestBookingService_AcceptBooking_WrongHost(t *testing.T) {
	f := newBookingFixture(t)
	dto := f.createBooking(t)

	_, err := f.service.AcceptBooking(context.Background(), uuid.New(), dto.ID)
	var forbidden *domain.ForbiddenError
	assert.ErrorAs(t, err, &forbidden)
}

func TestBookingService_AcceptBooking_ConflictReleasesNights(t *testing.T) {
	f := newBookingFixture(t)
	dto := f.createBooking(t)
	f.bookings.conflictOn[dto.ID] = true

	_, err := f.service.AcceptBooking(context.Background(), f.hostID, dto.ID)
	var conflict *domain.ConflictError
	require.ErrorAs(t, err, &conflict)

	assert.True(t, f.availability.available(f.propertyID, f.checkIn), "lost race puts the nights back")
}

func TestBookingService_RejectBooking(t *testing.T) {
	f := newBookingFixture(t)
	dto := f.createBooking(t)

	rejected, err := f.service.RejectBooking(context.Background(), f.hostID, dto.ID)
	require.NoError(t, err)
	assert.Equal(t, "rejected", rejected.Status)
	assert.Contains(t, f.publisher.eventTypes(), events.BookingRejected)
}

// acceptAndPay walks a booking to confirmed with the given capture amount.
func (f *bookingFixture) acceptAndPay(t *testing.T, bookingID uuid.UUID, amountCents int64, gatewayRef string) {
	t.Helper()
	ctx := context.Background()

	_, err := f.service.AcceptBooking(ctx, f.hostID, bookingID)
	require.NoError(t, err)

	bk, err := f.bookings.FindByID(ctx, bookingID)
	require.NoError(t, err)
	_, err = bk.ApplyPayment(amountCents)
	require.NoError(t, err)
	bk.IncrementVersion()
	require.NoError(t, f.bookings.Update(ctx, bk))

	entry, err := newPaidEntry(bookingID, amountCents, f.gw.name, gatewayRef)
	require.NoError(t, err)
	require.NoError(t, f.transactions.Append(ctx, entry))
}

func TestBookingService_CancelBooking_GuestPolicyRefund(t *testing.T) {
	f := newBookingFixture(t)
	dto := f.createBooking(t)
	f.acceptAndPay(t, dto.ID, 300_00, "TX-1")

	// Check-in is 10 days out; moderate policy refunds 100% at >=5 days.
	cancelled, err := f.service.CancelBooking(context.Background(), f.guestID, auth.RoleGuest, dto.ID, "plans changed")
	require.NoError(t, err)

	assert.Equal(t, "cancelled", cancelled.Status)
	assert.Equal(t, "refunded", cancelled.PaymentStatus)
	assert.Equal(t, int64(300_00), cancelled.RefundAmountCents)

	require.Len(t, f.gw.refunds, 1)
	assert.Equal(t, int64(300_00), f.gw.refunds[0].AmountCents)
	assert.Equal(t, "TX-1", f.gw.refunds[0].GatewayRef)

	assert.True(t, f.availability.available(f.propertyID, f.checkIn), "cancellation releases the nights")
	assert.Contains(t, f.publisher.eventTypes(), events.BookingRefunded)
	assert.Contains(t, f.publisher.eventTypes(), events.BookingCancelled)
}

func TestBookingService_CancelBooking_HostFullRefund(t *testing.T) {
	f := newBookingFixture(t)
	dto := f.createBooking(t)
	f.acceptAndPay(t, dto.ID, 180_00, "TX-2")

	cancelled, err := f.service.CancelBooking(context.Background(), f.hostID, auth.RoleHost, dto.ID, "double booked")
	require.NoError(t, err)

	// The host refunds whatever was collected, not the policy amount.
	assert.Equal(t, int64(180_00), cancelled.RefundAmountCents)
	require.Len(t, f.gw.refunds, 1)
	assert.Equal(t, int64(180_00), f.gw.refunds[0].AmountCents)
}

func TestBookingService_CancelBooking_NoRefundStillCancels(t *testing.T) {
	f := newBookingFixture(t)

	// Booking with nothing collected yet: cancel skips the gateway entirely.
	dto := f.createBooking(t)
	cancelled, err := f.service.CancelBooking(context.Background(), f.guestID, auth.RoleGuest, dto.ID, "changed my mind")
	require.NoError(t, err)

	assert.Equal(t, "cancelled", cancelled.Status)
	assert.Zero(t, cancelled.RefundAmountCents)
	assert.Empty(t, f.gw.refunds)
}

func TestBookingService_CancelBooking_PolicyRefundZeroAborts(t *testing.T) {
	f := newBookingFixture(t)
	now := time.Now().UTC()
	confirmed := now.Add(-48 * time.Hour)
	id := uuid.New()

	// Paid booking already past check-in: the moderate policy yields nothing.
	bk := bookingDomain.Reconstruct(
		id, "BK-LATE01",
		f.propertyID, f.guestID, f.hostID,
		now.Add(-2*time.Hour), now.AddDate(0, 0, 3),
		bookingDomain.StatusConfirmed,
		bookingDomain.PaymentPaid,
		300_00, 300_00,
		domain.CurrencyQAR,
		nil,
		"sadad", "SDD-LATE-1",
		bookingDomain.PolicyModerate,
		0, nil, "",
		&confirmed, nil, nil, nil,
		nil, "",
		2, "",
		2,
		now, now,
	)
	require.NoError(t, f.bookings.Save(context.Background(), bk))

	_, err := f.service.CancelBooking(context.Background(), f.guestID, auth.RoleGuest, id, "changed my mind")
	var stateErr *domain.InvalidStateError
	require.ErrorAs(t, err, &stateErr)
	assert.Contains(t, err.Error(), "no refund available")

	// No gateway call, and the booking is left exactly as it was.
	assert.Empty(t, f.gw.refunds)
	got, err := f.bookings.FindByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, bookingDomain.StatusConfirmed, got.Status())
	assert.Equal(t, bookingDomain.PaymentPaid, got.PaymentStatus())
}

func TestBookingService_CancelBooking_GatewayFailureAborts(t *testing.T) {
	f := newBookingFixture(t)
	dto := f.createBooking(t)
	f.acceptAndPay(t, dto.ID, 300_00, "TX-3")
	f.gw.failRefund = true

	_, err := f.service.CancelBooking(context.Background(), f.guestID, auth.RoleGuest, dto.ID, "plans changed")
	var gwErr *domain.GatewayError
	require.ErrorAs(t, err, &gwErr)

	// The booking stays confirmed when the refund could not be sent.
	bk, err := f.bookings.FindByID(context.Background(), dto.ID)
	require.NoError(t, err)
	assert.Equal(t, bookingDomain.StatusConfirmed, bk.Status())
}

func TestBookingService_CancelBooking_Stranger(t *testing.T) {
	f := newBookingFixture(t)
	dto := f.createBooking(t)

	_, err := f.service.CancelBooking(context.Background(), uuid.New(), auth.RoleGuest, dto.ID, "nope")
	var forbidden *domain.ForbiddenError
	assert.ErrorAs(t, err, &forbidden)
}

func TestBookingService_GetBooking_Visibility(t *testing.T) {
	f := newBookingFixture(t)
	dto := f.createBooking(t)
	ctx := context.Background()

	_, err := f.service.GetBooking(ctx, f.guestID, auth.RoleGuest, dto.ID)
	assert.NoError(t, err)

	_, err = f.service.GetBooking(ctx, f.hostID, auth.RoleHost, dto.ID)
	assert.NoError(t, err)

	_, err = f.service.GetBooking(ctx, uuid.New(), auth.RoleAdmin, dto.ID)
	assert.NoError(t, err, "admins see everything")

	_, err = f.service.GetBooking(ctx, uuid.New(), auth.RoleGuest, dto.ID)
	var forbidden *domain.ForbiddenError
	assert.ErrorAs(t, err, &forbidden)
}

func TestBookingService_GetBookingStats(t *testing.T) {
	f := newBookingFixture(t)
	f.createBooking(t)
	dto := f.createBooking(t)
	_, err := f.service.RejectBooking(context.Background(), f.hostID, dto.ID)
	require.NoError(t, err)

	stats, err := f.service.GetBookingStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalBookings)
	assert.Equal(t, int64(1), stats.ByStatus["pending"])
	assert.Equal(t, int64(1), stats.ByStatus["rejected"])
}
