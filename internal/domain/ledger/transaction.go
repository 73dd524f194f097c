package ledger

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TransactionType distinguishes money collected from money returned.
type TransactionType string

const (
	TypeReservation TransactionType = "reservation"
	TypeRefund      TransactionType = "refund"
)

// IsValid returns true if the transaction type is recognized.
func (t TransactionType) IsValid() bool {
	return t == TypeReservation || t == TypeRefund
}

// TransactionStatus is the settlement outcome of a ledger entry.
type TransactionStatus string

const (
	StatusPaid     TransactionStatus = "paid"
	StatusFailed   TransactionStatus = "failed"
	StatusRefunded TransactionStatus = "refunded"
)

// IsValid returns true if the transaction status is recognized.
func (s TransactionStatus) IsValid() bool {
	return s == StatusPaid || s == StatusFailed || s == StatusRefunded
}

// Transaction is an append-only ledger entry tied to a booking. Entries are
// never mutated after creation except for async status confirmation.
type Transaction struct {
	ID          uuid.UUID
	BookingID   uuid.UUID
	Type        TransactionType
	Status      TransactionStatus
	AmountCents int64
	Currency    string
	Provider    string
	GatewayRef  string
	CreatedAt   time.Time
}

// NewTransaction creates a ledger entry for a gateway outcome.
func NewTransaction(
	bookingID uuid.UUID,
	txType TransactionType,
	status TransactionStatus,
	amountCents int64,
	currency, provider, gatewayRef string,
) (*Transaction, error) {
	if bookingID == uuid.Nil {
		return nil, fmt.Errorf("booking ID is required")
	}
	if !txType.IsValid() {
		return nil, fmt.Errorf("invalid transaction type: %s", txType)
	}
	if !status.IsValid() {
		return nil, fmt.Errorf("invalid transaction status: %s", status)
	}
	if amountCents < 0 {
		return nil, fmt.Errorf("transaction amount cannot be negative")
	}
	if provider == "" {
		return nil, fmt.Errorf("provider is required")
	}

	return &Transaction{
		ID:          uuid.New(),
		BookingID:   bookingID,
		Type:        txType,
		Status:      status,
		AmountCents: amountCents,
		Currency:    currency,
		Provider:    provider,
		GatewayRef:  gatewayRef,
		CreatedAt:   time.Now().UTC(),
	}, nil
}
