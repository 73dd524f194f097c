package booking

import "fmt"

// PaymentStatus tracks how much of a booking's total price has been
// collected or returned.
type PaymentStatus string

const (
	PaymentPending           PaymentStatus = "pending"
	PaymentPartiallyPaid     PaymentStatus = "partially_paid"
	PaymentPaid              PaymentStatus = "paid"
	PaymentFailed            PaymentStatus = "failed"
	PaymentRefunded          PaymentStatus = "refunded"
	PaymentPartiallyRefunded PaymentStatus = "partially_refunded"
)

// validPaymentTransitions defines the payment state machine. A failed capture
// may be retried, so failed is not terminal for capture transitions.
var validPaymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending:           {PaymentPartiallyPaid, PaymentPaid, PaymentFailed},
	PaymentPartiallyPaid:     {PaymentPaid, PaymentFailed, PaymentRefunded, PaymentPartiallyRefunded},
	PaymentPaid:              {PaymentRefunded, PaymentPartiallyRefunded},
	PaymentFailed:            {PaymentPending, PaymentPartiallyPaid, PaymentPaid},
	PaymentRefunded:          {},
	PaymentPartiallyRefunded: {PaymentRefunded},
}

// IsValid returns true if the payment status is recognized.
func (p PaymentStatus) IsValid() bool {
	_, exists := validPaymentTransitions[p]
	return exists
}

// CanTransitionTo returns true if a transition to the target payment status is allowed.
func (p PaymentStatus) CanTransitionTo(target PaymentStatus) bool {
	allowed, exists := validPaymentTransitions[p]
	if !exists {
		return false
	}
	for _, t := range allowed {
		if t == target {
			return true
		}
	}
	return false
}

// IsSettled returns true if the booking has collected enough to be confirmed.
func (p PaymentStatus) IsSettled() bool {
	return p == PaymentPaid || p == PaymentPartiallyPaid
}

// String returns the string representation of the payment status.
func (p PaymentStatus) String() string {
	return string(p)
}

// ParsePaymentStatus converts a string to a PaymentStatus, returning an error if invalid.
func ParsePaymentStatus(s string) (PaymentStatus, error) {
	status := PaymentStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid payment status: %s", s)
	}
	return status, nil
}
