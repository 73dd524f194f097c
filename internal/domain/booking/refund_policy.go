package booking

import (
	"fmt"
	"time"
)

// CancellationPolicy is the refund tier attached to a booking at creation time.
type CancellationPolicy string

const (
	PolicyFlexible    CancellationPolicy = "flexible"
	PolicyModerate    CancellationPolicy = "moderate"
	PolicyStrict      CancellationPolicy = "strict"
	PolicySuperStrict CancellationPolicy = "super_strict"
)

// IsValid returns true if the cancellation policy is recognized.
func (p CancellationPolicy) IsValid() bool {
	switch p {
	case PolicyFlexible, PolicyModerate, PolicyStrict, PolicySuperStrict:
		return true
	}
	return false
}

// RefundCalculator defines the interface for computing cancellation refunds.
type RefundCalculator interface {
	// Calculate returns the refund amount in cents for the given parameters.
	Calculate(params RefundParams) (int64, error)
}

// RefundParams holds the inputs for refund calculation.
type RefundParams struct {
	Policy           CancellationPolicy
	DaysUntilCheckIn int
	TotalPriceCents  int64
}

// TieredRefundCalculator implements the marketplace's standard refund tiers.
type TieredRefundCalculator struct{}

// NewTieredRefundCalculator creates a new TieredRefundCalculator.
func NewTieredRefundCalculator() *TieredRefundCalculator {
	return &TieredRefundCalculator{}
}

// Calculate computes the refund in cents by tiered thresholds:
//   - flexible:     100% if >=1 day out, else 0%
//   - moderate:     100% if >=5 days, 50% if >=1 day, else 0%
//   - strict:       100% if >=14 days, 50% if >=7 days, else 0%
//   - super_strict: 100% if >=30 days, 50% if >=14 days, else 0%
func (c *TieredRefundCalculator) Calculate(params RefundParams) (int64, error) {
	if params.TotalPriceCents < 0 {
		return 0, fmt.Errorf("total price cannot be negative")
	}

	percent, err := refundPercent(params.Policy, params.DaysUntilCheckIn)
	if err != nil {
		return 0, err
	}

	return params.TotalPriceCents * int64(percent) / 100, nil
}

// refundPercent returns the refund percentage for a policy and lead time.
func refundPercent(policy CancellationPolicy, daysUntilCheckIn int) (int, error) {
	switch policy {
	case PolicyFlexible:
		if daysUntilCheckIn >= 1 {
			return 100, nil
		}
		return 0, nil
	case PolicyModerate:
		switch {
		case daysUntilCheckIn >= 5:
			return 100, nil
		case daysUntilCheckIn >= 1:
			return 50, nil
		}
		return 0, nil
	case PolicyStrict:
		switch {
		case daysUntilCheckIn >= 14:
			return 100, nil
		case daysUntilCheckIn >= 7:
			return 50, nil
		}
		return 0, nil
	case PolicySuperStrict:
		switch {
		case daysUntilCheckIn >= 30:
			return 100, nil
		case daysUntilCheckIn >= 14:
			return 50, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("unknown cancellation policy: %s", policy)
	}
}

// DaysUntilCheckIn returns the number of whole-or-partial days between now
// and check-in, rounded up. A check-in in the past yields a negative count.
func DaysUntilCheckIn(checkIn, now time.Time) int {
	diff := checkIn.Sub(now)
	days := diff.Hours() / 24
	ceil := int(days)
	if days > float64(ceil) {
		ceil++
	}
	return ceil
}
