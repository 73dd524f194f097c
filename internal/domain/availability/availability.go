package availability

import (
	"time"

	"github.com/google/uuid"
)

// Night is one property-night of inventory. A booking hold consumes the
// nights in [checkIn, checkOut); expiry or cancellation releases them.
type Night struct {
	PropertyID uuid.UUID `json:"property_id"`
	Date       time.Time `json:"date"`
	Available  bool      `json:"available"`
	PriceCents int64     `json:"price_cents"`
}

// NightsIn expands a [checkIn, checkOut) range into its per-night dates.
func NightsIn(checkIn, checkOut time.Time) []time.Time {
	var dates []time.Time
	for d := truncateToDay(checkIn); d.Before(truncateToDay(checkOut)); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
	}
	return dates
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
