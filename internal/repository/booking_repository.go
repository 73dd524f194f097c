package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nuzul-stays/service-booking/internal/domain"
	bookingDomain "github.com/nuzul-stays/service-booking/internal/domain/booking"
)

// BookingModel is the GORM model for the bookings table.
type BookingModel struct {
	ID                 uuid.UUID  `gorm:"type:uuid;primaryKey"`
	BookingNumber      string     `gorm:"uniqueIndex;not null;size:20"`
	PropertyID         uuid.UUID  `gorm:"type:uuid;index;not null"`
	GuestID            uuid.UUID  `gorm:"type:uuid;index;not null"`
	HostID             uuid.UUID  `gorm:"type:uuid;index;not null"`
	CheckIn            time.Time  `gorm:"not null;index"`
	CheckOut           time.Time  `gorm:"not null"`
	Status             string     `gorm:"not null;size:30;index"`
	PaymentStatus      string     `gorm:"not null;size:30;index"`
	TotalPriceCents    int64      `gorm:"not null"`
	AmountPaidCents    int64      `gorm:"not null;default:0"`
	Currency           string     `gorm:"not null;size:3;default:'QAR'"`
	HoldExpiresAt      *time.Time `gorm:"index"`
	PaymentProvider    string     `gorm:"size:20"`
	PaymentReference   string     `gorm:"size:100;index"`
	CancellationPolicy string     `gorm:"not null;size:20"`
	RefundAmountCents  int64      `gorm:"not null;default:0"`
	RefundedAt         *time.Time `gorm:""`
	RefundReason       string     `gorm:"size:500"`
	ConfirmedAt        *time.Time `gorm:""`
	CheckedInAt        *time.Time `gorm:""`
	CompletedAt        *time.Time `gorm:""`
	CancelledAt        *time.Time `gorm:""`
	CancelledBy        *uuid.UUID `gorm:"type:uuid"`
	CancelNote         string     `gorm:"size:500"`
	GuestCount         int        `gorm:"not null;default:1"`
	Notes              string     `gorm:"size:1000"`
	Version            int64      `gorm:"not null;default:1"`
	CreatedAt          time.Time  `gorm:"not null"`
	UpdatedAt          time.Time  `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (BookingModel) TableName() string {
	return "bookings"
}

// GormBookingRepository is the GORM-based implementation of booking.Repository.
type GormBookingRepository struct {
	db *gorm.DB
}

// NewGormBookingRepository creates a new GormBookingRepository.
func NewGormBookingRepository(db *gorm.DB) *GormBookingRepository {
	return &GormBookingRepository{db: db}
}

// FindByID retrieves a booking by its unique identifier.
func (r *GormBookingRepository) FindByID(ctx context.Context, id uuid.UUID) (*bookingDomain.Booking, error) {
	var model BookingModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Booking", id.String())
		}
		return nil, fmt.Errorf("failed to find booking by ID: %w", err)
	}
	return toDomainBooking(&model)
}

// FindByNumber retrieves a booking by its booking number.
func (r *GormBookingRepository) FindByNumber(ctx context.Context, number string) (*bookingDomain.Booking, error) {
	var model BookingModel
	if err := r.db.WithContext(ctx).Where("booking_number = ?", number).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Booking", number)
		}
		return nil, fmt.Errorf("failed to find booking by number: %w", err)
	}
	return toDomainBooking(&model)
}

// FindByGuestID retrieves bookings for a specific guest with pagination.
func (r *GormBookingRepository) FindByGuestID(ctx context.Context, guestID uuid.UUID, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	return r.findPaged(ctx, page, limit, "guest_id = ?", guestID)
}

// FindByHostID retrieves bookings on a specific host's properties with pagination.
func (r *GormBookingRepository) FindByHostID(ctx context.Context, hostID uuid.UUID, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	return r.findPaged(ctx, page, limit, "host_id = ?", hostID)
}

func (r *GormBookingRepository) findPaged(ctx context.Context, page, limit int, query string, args ...interface{}) ([]*bookingDomain.Booking, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&BookingModel{}).Where(query, args...).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count bookings: %w", err)
	}

	var models []BookingModel
	offset := (page - 1) * limit
	if err := r.db.WithContext(ctx).
		Where(query, args...).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to find bookings: %w", err)
	}

	bookings := make([]*bookingDomain.Booking, len(models))
	for i, m := range models {
		bk, err := toDomainBooking(&m)
		if err != nil {
			return nil, 0, err
		}
		bookings[i] = bk
	}
	return bookings, total, nil
}

// FindExpiredHolds retrieves awaiting-payment bookings whose hold deadline is
// at or before the given instant.
func (r *GormBookingRepository) FindExpiredHolds(ctx context.Context, now time.Time) ([]*bookingDomain.Booking, error) {
	var models []BookingModel
	if err := r.db.WithContext(ctx).
		Where("status = ? AND hold_expires_at IS NOT NULL AND hold_expires_at <= ?", string(bookingDomain.StatusAwaitingPayment), now).
		Order("hold_expires_at ASC").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to find expired holds: %w", err)
	}

	bookings := make([]*bookingDomain.Booking, len(models))
	for i, m := range models {
		bk, err := toDomainBooking(&m)
		if err != nil {
			return nil, err
		}
		bookings[i] = bk
	}
	return bookings, nil
}

// Save persists a new booking.
func (r *GormBookingRepository) Save(ctx context.Context, bk *bookingDomain.Booking) error {
	if err := r.db.WithContext(ctx).Create(toBookingModel(bk)).Error; err != nil {
		return fmt.Errorf("failed to save booking: %w", err)
	}
	return nil
}

// Update persists changes to an existing booking with optimistic locking.
func (r *GormBookingRepository) Update(ctx context.Context, bk *bookingDomain.Booking) error {
	model := toBookingModel(bk)

	// Only update if the version matches (current version - 1 since
	// IncrementVersion was called before persisting).
	expectedVersion := bk.Version() - 1
	result := r.db.WithContext(ctx).
		Model(&BookingModel{}).
		Where("id = ? AND version = ?", model.ID, expectedVersion).
		Updates(map[string]interface{}{
			"status":              model.Status,
			"payment_status":      model.PaymentStatus,
			"amount_paid_cents":   model.AmountPaidCents,
			"hold_expires_at":     model.HoldExpiresAt,
			"payment_provider":    model.PaymentProvider,
			"payment_reference":   model.PaymentReference,
			"refund_amount_cents": model.RefundAmountCents,
			"refunded_at":         model.RefundedAt,
			"refund_reason":       model.RefundReason,
			"confirmed_at":        model.ConfirmedAt,
			"checked_in_at":       model.CheckedInAt,
			"completed_at":        model.CompletedAt,
			"cancelled_at":        model.CancelledAt,
			"cancelled_by":        model.CancelledBy,
			"cancel_note":         model.CancelNote,
			"notes":               model.Notes,
			"version":             model.Version,
			"updated_at":          model.UpdatedAt,
		})

	if result.Error != nil {
		return fmt.Errorf("failed to update booking: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewConflictError("booking was modified by another transaction")
	}
	return nil
}

// ListAll retrieves all bookings with pagination (admin).
func (r *GormBookingRepository) ListAll(ctx context.Context, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&BookingModel{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count bookings: %w", err)
	}

	var models []BookingModel
	offset := (page - 1) * limit
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list bookings: %w", err)
	}

	bookings := make([]*bookingDomain.Booking, len(models))
	for i, m := range models {
		bk, err := toDomainBooking(&m)
		if err != nil {
			return nil, 0, err
		}
		bookings[i] = bk
	}
	return bookings, total, nil
}

// CountByStatus returns booking counts grouped by status (admin).
func (r *GormBookingRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	type statusCount struct {
		Status string
		Count  int64
	}
	var results []statusCount
	if err := r.db.WithContext(ctx).Model(&BookingModel{}).
		Select("status, count(*) as count").
		Group("status").
		Find(&results).Error; err != nil {
		return nil, fmt.Errorf("failed to count by status: %w", err)
	}

	counts := make(map[string]int64)
	for _, sc := range results {
		counts[sc.Status] = sc.Count
	}
	return counts, nil
}

// --- Conversion Helpers ---

func toBookingModel(bk *bookingDomain.Booking) *BookingModel {
	return &BookingModel{
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

func toDomainBooking(m *BookingModel) (*bookingDomain.Booking, error) {
	status, err := bookingDomain.ParseBookingStatus(m.Status)
	if err != nil {
		return nil, err
	}
	paymentStatus, err := bookingDomain.ParsePaymentStatus(m.PaymentStatus)
	if err != nil {
		return nil, err
	}

	policy := bookingDomain.CancellationPolicy(m.CancellationPolicy)
	if !policy.IsValid() {
		return nil, fmt.Errorf("unknown cancellation policy: %s", m.CancellationPolicy)
	}

	return bookingDomain.Reconstruct(
		m.ID,
		m.BookingNumber,
		m.PropertyID,
		m.GuestID,
		m.HostID,
		m.CheckIn,
		m.CheckOut,
		status,
		paymentStatus,
		m.TotalPriceCents,
		m.AmountPaidCents,
		m.Currency,
		m.HoldExpiresAt,
		m.PaymentProvider,
		m.PaymentReference,
		policy,
		m.RefundAmountCents,
		m.RefundedAt,
		m.RefundReason,
		m.ConfirmedAt,
		m.CheckedInAt,
		m.CompletedAt,
		m.CancelledAt,
		m.CancelledBy,
		m.CancelNote,
		m.GuestCount,
		m.Notes,
		m.Version,
		m.CreatedAt,
		m.UpdatedAt,
	), nil
}
