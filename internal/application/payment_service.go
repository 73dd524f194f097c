package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nuzul-stays/service-booking/internal/auth"
	"github.com/nuzul-stays/service-booking/internal/cache"
	"github.com/nuzul-stays/service-booking/internal/domain"
	bookingDomain "github.com/nuzul-stays/service-booking/internal/domain/booking"
	"github.com/nuzul-stays/service-booking/internal/domain/ledger"
	"github.com/nuzul-stays/service-booking/internal/events"
	"github.com/nuzul-stays/service-booking/internal/gateway"
)

// Processed callback keys are kept long enough to outlive any provider retry
// schedule; the ledger's unique gateway reference backs this up permanently.
const callbackKeyTTL = 72 * time.Hour

// PaymentResult is the response of checkout and pay-balance operations.
type PaymentResult struct {
	PaymentURL            string `json:"paymentUrl"`
	PaymentOrderID        string `json:"paymentOrderId"`
	RemainingBalanceCents int64  `json:"remainingBalance"`
}

// RefundResult is the response of the refund operation.
type RefundResult struct {
	RefundID    string `json:"id"`
	AmountCents int64  `json:"amount"`
	Status      string `json:"status"`
}

// CallbackOutcome tells the callback handler which result page to send the
// guest to.
type CallbackOutcome struct {
	BookingID uuid.UUID
	Status    gateway.CallbackStatus
	Replay    bool
}

// PaymentService orchestrates gateway orders, refunds and the normalization
// of asynchronous gateway callbacks into booking state transitions.
type PaymentService struct {
	bookings     bookingDomain.Repository
	transactions ledger.Repository
	refunds      bookingDomain.RefundCalculator
	gateways     *gateway.Registry
	idempotency  cache.IdempotencyStore
	producer     EventPublisher
	logger       *zap.Logger
}

// NewPaymentService creates a new PaymentService.
func NewPaymentService(
	bookings bookingDomain.Repository,
	transactions ledger.Repository,
	refunds bookingDomain.RefundCalculator,
	gateways *gateway.Registry,
	idempotency cache.IdempotencyStore,
	producer EventPublisher,
	logger *zap.Logger,
) *PaymentService {
	return &PaymentService{
		bookings:     bookings,
		transactions: transactions,
		refunds:      refunds,
		gateways:     gateways,
		idempotency:  idempotency,
		producer:     producer,
		logger:       logger,
	}
}

// Checkout creates the initial payment order for an accepted booking. A
// depositPercent between 1 and 99 creates a partial order; 0 or 100 means
// the full amount.
func (s *PaymentService) Checkout(ctx context.Context, guestID, bookingID uuid.UUID, provider string, depositPercent int) (*PaymentResult, error) {
	if depositPercent < 0 || depositPercent > 100 {
		return nil, domain.NewValidationError("deposit percent must be between 0 and 100")
	}

	bk, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if bk.GuestID() != guestID {
		return nil, domain.NewForbiddenError("booking does not belong to this user")
	}
	if bk.Status() != bookingDomain.StatusAwaitingPayment {
		return nil, domain.NewStateError(fmt.Sprintf("booking is not awaiting payment (status: %s)", bk.Status()))
	}
	if bk.HoldExpired(time.Now().UTC()) {
		return nil, domain.NewStateError("payment hold has expired")
	}

	amountCents := bk.TotalPriceCents()
	if depositPercent > 0 && depositPercent < 100 {
		amountCents = bk.TotalPriceCents() * int64(depositPercent) / 100
	}
	if amountCents <= 0 {
		return nil, domain.NewValidationError("deposit amount rounds to zero")
	}

	orderID := fmt.Sprintf("%s_res_%d", bk.ID(), time.Now().Unix())
	return s.createOrder(ctx, bk, provider, orderID, amountCents)
}

// PayBalance creates a gateway order for the uncollected remainder of a
// partially paid booking.
func (s *PaymentService) PayBalance(ctx context.Context, guestID, bookingID uuid.UUID, provider string) (*PaymentResult, error) {
	bk, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if bk.GuestID() != guestID {
		return nil, domain.NewForbiddenError("booking does not belong to this user")
	}
	if bk.Status().IsTerminal() {
		return nil, domain.NewStateError(fmt.Sprintf("no payments permitted on %s booking", bk.Status()))
	}
	if bk.PaymentStatus() == bookingDomain.PaymentPaid {
		return nil, domain.NewStateError("booking has already been fully paid")
	}
	if bk.PaymentStatus() != bookingDomain.PaymentPartiallyPaid {
		return nil, domain.NewStateError(fmt.Sprintf("booking is not partially paid (payment status: %s)", bk.PaymentStatus()))
	}

	remaining := bk.RemainingBalanceCents()
	if remaining <= 0 {
		return nil, domain.NewStateError("booking has already been fully paid")
	}

	orderID := fmt.Sprintf("%s_balance_%d", bk.ID(), time.Now().Unix())
	return s.createOrder(ctx, bk, provider, orderID, remaining)
}

// createOrder dispatches to the gateway and stores the new order reference on
// the booking. A gateway failure leaves the booking untouched.
func (s *PaymentService) createOrder(ctx context.Context, bk *bookingDomain.Booking, provider, orderID string, amountCents int64) (*PaymentResult, error) {
	gw, err := s.gateways.Get(provider)
	if err != nil {
		return nil, err
	}

	order, err := gw.CreateOrder(ctx, gateway.OrderRequest{
		OrderID:     orderID,
		BookingID:   bk.ID(),
		AmountCents: amountCents,
		Currency:    bk.Currency(),
		Description: fmt.Sprintf("Nuzul stay %s", bk.BookingNumber()),
	})
	if err != nil {
		return nil, err
	}

	bk.SetPaymentReference(gw.Name(), order.GatewayRef)
	bk.IncrementVersion()
	if err := s.bookings.Update(ctx, bk); err != nil {
		return nil, err
	}

	s.logger.Info("payment order created",
		zap.String("booking_id", bk.ID().String()),
		zap.String("provider", gw.Name()),
		zap.String("order_id", orderID),
		zap.Int64("amount_cents", amountCents),
	)

	return &PaymentResult{
		PaymentURL:            order.PaymentURL,
		PaymentOrderID:        orderID,
		RemainingBalanceCents: bk.RemainingBalanceCents(),
	}, nil
}

// RefundBooking issues a refund outside of cancellation. Hosts and admins
// may pass an override amount that bypasses the policy calculation; a policy
// result of zero aborts rather than sending a zero-amount gateway call.
func (s *PaymentService) RefundBooking(ctx context.Context, actorID uuid.UUID, role string, bookingID uuid.UUID, reason string, overrideCents *int64) (*RefundResult, error) {
	bk, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if role != auth.RoleAdmin && actorID != bk.HostID() {
		return nil, domain.NewForbiddenError("only the host or an admin may issue refunds")
	}
	if bk.AmountPaidCents() <= 0 {
		return nil, domain.NewStateError("booking has no collected payment to refund")
	}

	var refundCents int64
	if overrideCents != nil {
		refundCents = *overrideCents
		if refundCents <= 0 {
			return nil, domain.NewValidationError("refund amount must be positive")
		}
		if refundCents > bk.AmountPaidCents() {
			return nil, domain.NewValidationError("refund amount exceeds amount paid")
		}
	} else {
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
	}

	capture, err := s.latestCapture(ctx, bk.ID())
	if err != nil {
		return nil, err
	}
	gw, err := s.gateways.Get(capture.Provider)
	if err != nil {
		return nil, err
	}

	refund, err := gw.Refund(ctx, gateway.RefundRequest{
		GatewayRef:  capture.GatewayRef,
		AmountCents: refundCents,
		Currency:    bk.Currency(),
		Reason:      reason,
	})
	if err != nil {
		return nil, err
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
		return nil, err
	}
	if err := s.transactions.Append(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to append refund ledger entry: %w", err)
	}

	if err := bk.Cancel(actorID, reason, refundCents); err != nil {
		return nil, err
	}
	bk.IncrementVersion()
	if err := s.bookings.Update(ctx, bk); err != nil {
		return nil, err
	}

	s.publishRefunded(ctx, bk, refundCents)

	return &RefundResult{
		RefundID:    refund.RefundID,
		AmountCents: refundCents,
		Status:      refund.Status,
	}, nil
}

// latestCapture finds the most recent settled reservation payment.
func (s *PaymentService) latestCapture(ctx context.Context, bookingID uuid.UUID) (*ledger.Transaction, error) {
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

// ProcessCallback translates a normalized gateway callback into booking and
// payment state transitions. The gateway transaction id is an idempotency
// key: redelivery of an already-processed event is a no-op.
func (s *PaymentService) ProcessCallback(ctx context.Context, cb gateway.CallbackResult) (*CallbackOutcome, error) {
	bookingID, err := gateway.BookingIDFromOrderID(cb.OrderID)
	if err != nil {
		return nil, err
	}

	idemKey := fmt.Sprintf("callback:%s:%s", cb.Provider, cb.GatewayTxnID)
	claimed, err := s.idempotency.Claim(ctx, idemKey, callbackKeyTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to check idempotency key: %w", err)
	}
	if !claimed {
		s.logger.Info("duplicate gateway callback ignored",
			zap.String("provider", cb.Provider),
			zap.String("gateway_txn_id", cb.GatewayTxnID),
		)
		return &CallbackOutcome{BookingID: bookingID, Status: cb.Status, Replay: true}, nil
	}

	bk, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	switch cb.Status {
	case gateway.CallbackSuccess:
		err = s.applyCapture(ctx, bk, cb)
	case gateway.CallbackFailure:
		err = s.applyFailure(ctx, bk, cb)
	case gateway.CallbackPending:
		err = s.applyPending(ctx, bk)
	default:
		err = domain.NewValidationError(fmt.Sprintf("unknown callback status: %s", cb.Status))
	}
	if err != nil {
		return nil, err
	}

	return &CallbackOutcome{BookingID: bk.ID(), Status: cb.Status}, nil
}

func (s *PaymentService) applyCapture(ctx context.Context, bk *bookingDomain.Booking, cb gateway.CallbackResult) error {
	applied, err := bk.ApplyPayment(cb.AmountCents)
	if err != nil {
		return err
	}

	bk.IncrementVersion()
	if err := s.bookings.Update(ctx, bk); err != nil {
		return err
	}

	entry, err := ledger.NewTransaction(
		bk.ID(),
		ledger.TypeReservation,
		ledger.StatusPaid,
		applied,
		bk.Currency(),
		cb.Provider,
		cb.GatewayTxnID,
	)
	if err != nil {
		return err
	}
	if err := s.transactions.Append(ctx, entry); err != nil {
		return fmt.Errorf("failed to append capture ledger entry: %w", err)
	}

	s.publishConfirmed(ctx, bk, applied)

	s.logger.Info("payment captured",
		zap.String("booking_id", bk.ID().String()),
		zap.String("provider", cb.Provider),
		zap.Int64("amount_cents", applied),
		zap.String("payment_status", string(bk.PaymentStatus())),
	)
	return nil
}

func (s *PaymentService) applyFailure(ctx context.Context, bk *bookingDomain.Booking, cb gateway.CallbackResult) error {
	if err := bk.RecordPaymentFailure(cb.Denied); err != nil {
		return err
	}

	bk.IncrementVersion()
	if err := s.bookings.Update(ctx, bk); err != nil {
		return err
	}

	entry, err := ledger.NewTransaction(
		bk.ID(),
		ledger.TypeReservation,
		ledger.StatusFailed,
		cb.AmountCents,
		bk.Currency(),
		cb.Provider,
		cb.GatewayTxnID,
	)
	if err != nil {
		return err
	}
	if err := s.transactions.Append(ctx, entry); err != nil {
		return fmt.Errorf("failed to append failure ledger entry: %w", err)
	}

	s.logger.Warn("payment failed",
		zap.String("booking_id", bk.ID().String()),
		zap.String("provider", cb.Provider),
		zap.Bool("denied", cb.Denied),
	)
	return nil
}

func (s *PaymentService) applyPending(ctx context.Context, bk *bookingDomain.Booking) error {
	if err := bk.MarkPaymentPending(); err != nil {
		return err
	}
	bk.IncrementVersion()
	return s.bookings.Update(ctx, bk)
}

func (s *PaymentService) publishConfirmed(ctx context.Context, bk *bookingDomain.Booking, amountCents int64) {
	evt := events.BookingLifecycleEvent{
		BookingID:     bk.ID(),
		BookingNumber: bk.BookingNumber(),
		PropertyID:    bk.PropertyID(),
		GuestID:       bk.GuestID(),
		HostID:        bk.HostID(),
		Status:        string(bk.Status()),
		PaymentStatus: string(bk.PaymentStatus()),
		AmountCents:   amountCents,
		Currency:      bk.Currency(),
		OccurredAt:    time.Now().UTC(),
	}
	s.publish(ctx, events.BookingConfirmed, bk.ID().String(), evt)
}

func (s *PaymentService) publishRefunded(ctx context.Context, bk *bookingDomain.Booking, amountCents int64) {
	evt := events.BookingLifecycleEvent{
		BookingID:     bk.ID(),
		BookingNumber: bk.BookingNumber(),
		PropertyID:    bk.PropertyID(),
		GuestID:       bk.GuestID(),
		HostID:        bk.HostID(),
		Status:        string(bk.Status()),
		PaymentStatus: string(bk.PaymentStatus()),
		AmountCents:   amountCents,
		Currency:      bk.Currency(),
		OccurredAt:    time.Now().UTC(),
	}
	s.publish(ctx, events.BookingRefunded, bk.ID().String(), evt)
}

func (s *PaymentService) publish(ctx context.Context, eventType, key string, data interface{}) {
	cloudEvent, err := events.NewCloudEvent("service-booking", eventType, data)
	if err != nil {
		s.logger.Error("failed to create cloud event",
			zap.String("event_type", eventType),
			zap.Error(err),
		)
		return
	}
	if err := s.producer.PublishEvent(ctx, events.TopicBookingEvents, key, cloudEvent); err != nil {
		s.logger.Error("failed to publish event",
			zap.String("event_type", eventType),
			zap.Error(err),
		)
	}
}
