package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nuzul-stays/service-booking/internal/domain"
	"github.com/nuzul-stays/service-booking/internal/domain/availability"
)

// AvailabilityModel is the GORM model for the property_nights table.
type AvailabilityModel struct {
	PropertyID uuid.UUID `gorm:"type:uuid;primaryKey"`
	Date       time.Time `gorm:"type:date;primaryKey"`
	Available  bool      `gorm:"not null;default:true"`
	PriceCents int64     `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (AvailabilityModel) TableName() string {
	return "property_nights"
}

// GormAvailabilityRepository is the GORM-based implementation of
// availability.Repository.
type GormAvailabilityRepository struct {
	db *gorm.DB
}

// NewGormAvailabilityRepository creates a new GormAvailabilityRepository.
func NewGormAvailabilityRepository(db *gorm.DB) *GormAvailabilityRepository {
	return &GormAvailabilityRepository{db: db}
}

// FindRange retrieves the nights for a property over [checkIn, checkOut).
func (r *GormAvailabilityRepository) FindRange(ctx context.Context, propertyID uuid.UUID, checkIn, checkOut time.Time) ([]availability.Night, error) {
	var models []AvailabilityModel
	if err := r.db.WithContext(ctx).
		Where("property_id = ? AND date >= ? AND date < ?", propertyID, checkIn, checkOut).
		Order("date ASC").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to find nights: %w", err)
	}

	nights := make([]availability.Night, len(models))
	for i, m := range models {
		nights[i] = availability.Night{
			PropertyID: m.PropertyID,
			Date:       m.Date,
			Available:  m.Available,
			PriceCents: m.PriceCents,
		}
	}
	return nights, nil
}

// Hold marks the nights in [checkIn, checkOut) unavailable. The whole range
// is taken in one transaction; any night already held fails the hold.
func (r *GormAvailabilityRepository) Hold(ctx context.Context, propertyID uuid.UUID, checkIn, checkOut time.Time) error {
	nights := availability.NightsIn(checkIn, checkOut)

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&AvailabilityModel{}).
			Where("property_id = ? AND date >= ? AND date < ? AND available = true", propertyID, checkIn, checkOut).
			Updates(map[string]interface{}{
				"available":  false,
				"updated_at": time.Now().UTC(),
			})
		if result.Error != nil {
			return fmt.Errorf("failed to hold nights: %w", result.Error)
		}
		if result.RowsAffected != int64(len(nights)) {
			return domain.NewConflictError("one or more nights are no longer available")
		}
		return nil
	})
}

// Release marks the nights in [checkIn, checkOut) available again.
func (r *GormAvailabilityRepository) Release(ctx context.Context, propertyID uuid.UUID, checkIn, checkOut time.Time) error {
	result := r.db.WithContext(ctx).Model(&AvailabilityModel{}).
		Where("property_id = ? AND date >= ? AND date < ?", propertyID, checkIn, checkOut).
		Updates(map[string]interface{}{
			"available":  true,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to release nights: %w", result.Error)
	}
	return nil
}
