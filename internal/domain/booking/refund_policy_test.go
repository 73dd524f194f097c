package booking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTieredRefundCalculator(t *testing.T) {
	calc := NewTieredRefundCalculator()

	tests := []struct {
		name   string
		policy CancellationPolicy
		days   int
		total  int64
		want   int64
	}{
		{"flexible full refund a day out", PolicyFlexible, 1, 1000_00, 1000_00},
		{"flexible nothing on the day", PolicyFlexible, 0, 1000_00, 0},

		{"moderate full refund at 6 days", PolicyModerate, 6, 1000_00, 1000_00},
		{"moderate full refund at 5 days", PolicyModerate, 5, 1000_00, 1000_00},
		{"moderate half refund at 3 days", PolicyModerate, 3, 1000_00, 500_00},
		{"moderate half refund at 1 day", PolicyModerate, 1, 1000_00, 500_00},
		{"moderate nothing on the day", PolicyModerate, 0, 1000_00, 0},

		{"strict full refund at 14 days", PolicyStrict, 14, 1000_00, 1000_00},
		{"strict half refund at 7 days", PolicyStrict, 7, 1000_00, 500_00},
		{"strict nothing at 6 days", PolicyStrict, 6, 1000_00, 0},

		{"super_strict full refund at 30 days", PolicySuperStrict, 30, 1000_00, 1000_00},
		{"super_strict half refund at 14 days", PolicySuperStrict, 14, 1000_00, 500_00},
		{"super_strict nothing at 13 days", PolicySuperStrict, 13, 1000_00, 0},

		{"past check-in refunds nothing", PolicyFlexible, -2, 1000_00, 0},
		{"half of odd amount rounds down", PolicyModerate, 3, 99, 49},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := calc.Calculate(RefundParams{
				Policy:           tt.policy,
				DaysUntilCheckIn: tt.days,
				TotalPriceCents:  tt.total,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTieredRefundCalculator_Errors(t *testing.T) {
	calc := NewTieredRefundCalculator()

	_, err := calc.Calculate(RefundParams{Policy: "lenient", DaysUntilCheckIn: 5, TotalPriceCents: 100})
	assert.Error(t, err)

	_, err = calc.Calculate(RefundParams{Policy: PolicyFlexible, DaysUntilCheckIn: 5, TotalPriceCents: -1})
	assert.Error(t, err)
}

func TestDaysUntilCheckIn(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		checkIn time.Time
		want    int
	}{
		{"exactly 3 days", now.AddDate(0, 0, 3), 3},
		{"partial day rounds up", now.Add(36 * time.Hour), 2},
		{"under a day rounds up to 1", now.Add(6 * time.Hour), 1},
		{"same instant", now, 0},
		{"in the past", now.AddDate(0, 0, -2), -2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DaysUntilCheckIn(tt.checkIn, now))
		})
	}
}
