package application

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/nuzul-stays/service-booking/internal/domain"
	"github.com/nuzul-stays/service-booking/internal/domain/availability"
	bookingDomain "github.com/nuzul-stays/service-booking/internal/domain/booking"
	"github.com/nuzul-stays/service-booking/internal/events"
)

// SweepDetail records the outcome for a single booking in a sweep run.
type SweepDetail struct {
	BookingID     string `json:"bookingId"`
	BookingNumber string `json:"bookingNumber"`
	Released      bool   `json:"released"`
}

// SweepResult summarizes one hold-expiry sweep.
type SweepResult struct {
	ExpiredCount int           `json:"expiredCount"`
	Details      []SweepDetail `json:"details"`
}

// CleanupService expires bookings whose payment hold has lapsed and returns
// their nights to the availability calendar.
type CleanupService struct {
	bookings     bookingDomain.Repository
	availability availability.Repository
	producer     EventPublisher
	logger       *zap.Logger
}

// NewCleanupService creates a new CleanupService.
func NewCleanupService(
	bookings bookingDomain.Repository,
	avail availability.Repository,
	producer EventPublisher,
	logger *zap.Logger,
) *CleanupService {
	return &CleanupService{
		bookings:     bookings,
		availability: avail,
		producer:     producer,
		logger:       logger,
	}
}

// ExpireStaleHolds finds every awaiting-payment booking whose hold deadline
// has passed and expires it. The status write happens first; releasing the
// nights is best effort and a failure there never rolls the booking back.
// A version conflict on an individual booking means someone else (usually a
// late payment callback) got there first, so that booking is skipped.
func (s *CleanupService) ExpireStaleHolds(ctx context.Context) (*SweepResult, error) {
	now := time.Now().UTC()

	stale, err := s.bookings.FindExpiredHolds(ctx, now)
	if err != nil {
		return nil, err
	}

	result := &SweepResult{Details: []SweepDetail{}}
	for _, bk := range stale {
		if err := s.expireOne(ctx, bk, now, result); err != nil {
			s.logger.Error("failed to expire booking",
				zap.String("booking_id", bk.ID().String()),
				zap.Error(err),
			)
		}
	}

	if result.ExpiredCount > 0 {
		s.logger.Info("hold-expiry sweep finished",
			zap.Int("expired", result.ExpiredCount),
			zap.Int("candidates", len(stale)),
		)
	}
	return result, nil
}

func (s *CleanupService) expireOne(ctx context.Context, bk *bookingDomain.Booking, now time.Time, result *SweepResult) error {
	if err := bk.Expire(now); err != nil {
		return err
	}
	bk.IncrementVersion()

	if err := s.bookings.Update(ctx, bk); err != nil {
		var conflict *domain.ConflictError
		if errors.As(err, &conflict) {
			s.logger.Info("booking changed during sweep, skipping",
				zap.String("booking_id", bk.ID().String()),
			)
			return nil
		}
		return err
	}

	detail := SweepDetail{
		BookingID:     bk.ID().String(),
		BookingNumber: bk.BookingNumber(),
	}

	if err := s.availability.Release(ctx, bk.PropertyID(), bk.CheckIn(), bk.CheckOut()); err != nil {
		s.logger.Error("failed to release nights for expired booking",
			zap.String("booking_id", bk.ID().String()),
			zap.Error(err),
		)
	} else {
		detail.Released = true
	}

	result.ExpiredCount++
	result.Details = append(result.Details, detail)

	s.publishExpired(ctx, bk)
	return nil
}

func (s *CleanupService) publishExpired(ctx context.Context, bk *bookingDomain.Booking) {
	evt := events.BookingLifecycleEvent{
		BookingID:     bk.ID(),
		BookingNumber: bk.BookingNumber(),
		PropertyID:    bk.PropertyID(),
		GuestID:       bk.GuestID(),
		HostID:        bk.HostID(),
		Status:        string(bk.Status()),
		PaymentStatus: string(bk.PaymentStatus()),
		Currency:      bk.Currency(),
		OccurredAt:    time.Now().UTC(),
	}

	cloudEvent, err := events.NewCloudEvent("service-booking", events.BookingExpired, evt)
	if err != nil {
		s.logger.Error("failed to create cloud event", zap.Error(err))
		return
	}
	if err := s.producer.PublishEvent(ctx, events.TopicBookingEvents, bk.ID().String(), cloudEvent); err != nil {
		s.logger.Error("failed to publish booking.expired", zap.Error(err))
	}
}
