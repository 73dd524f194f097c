// Package gateway contains the payment-provider adapters. Each adapter turns
// the provider's order/refund API and its asynchronous callbacks into the
// service's neutral types; the booking state machine never sees provider
// specifics.
package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/nuzul-stays/service-booking/internal/domain"
)

// Provider names accepted in API requests.
const (
	ProviderSadad  = "sadad"
	ProviderPayPal = "paypal"
)

// OrderRequest describes a payment order to create with a provider.
type OrderRequest struct {
	// OrderID is the deterministic merchant-side order id, e.g.
	// "<bookingID>_balance_<unix>". It round-trips through the provider and
	// comes back on the callback.
	OrderID     string
	BookingID   uuid.UUID
	AmountCents int64
	Currency    string
	Description string
}

// Order is the provider's answer to a created payment order.
type Order struct {
	OrderID    string
	GatewayRef string
	PaymentURL string
}

// RefundRequest describes a refund against a previously captured payment.
type RefundRequest struct {
	GatewayRef  string
	AmountCents int64
	Currency    string
	Reason      string
}

// Refund is the provider's answer to a refund request.
type Refund struct {
	RefundID string
	Status   string
}

// PaymentGateway is the adapter contract each provider implements.
type PaymentGateway interface {
	// Name returns the provider identifier.
	Name() string

	// CreateOrder creates a payment order and returns the redirect URL the
	// guest completes payment at.
	CreateOrder(ctx context.Context, req OrderRequest) (*Order, error)

	// Refund returns captured funds to the guest.
	Refund(ctx context.Context, req RefundRequest) (*Refund, error)
}

// CallbackStatus is the normalized outcome of a provider callback.
type CallbackStatus string

const (
	CallbackSuccess CallbackStatus = "success"
	CallbackFailure CallbackStatus = "failure"
	CallbackPending CallbackStatus = "pending"
)

// CallbackResult is a provider callback reduced to the fields the booking
// state machine acts on.
type CallbackResult struct {
	Provider     string
	OrderID      string
	GatewayTxnID string
	Status       CallbackStatus
	// Denied is set when the provider explicitly rejected the payment, as
	// opposed to a transient failure.
	Denied      bool
	AmountCents int64
	Currency    string
}

// BookingIDFromOrderID recovers the booking id from a merchant order id of
// the form "<bookingID>_<kind>_<ts>".
func BookingIDFromOrderID(orderID string) (uuid.UUID, error) {
	idPart, _, found := strings.Cut(orderID, "_")
	if !found {
		idPart = orderID
	}
	id, err := uuid.Parse(idPart)
	if err != nil {
		return uuid.Nil, domain.NewValidationError(fmt.Sprintf("malformed order id: %s", orderID))
	}
	return id, nil
}

// Registry resolves a provider name to its adapter.
type Registry struct {
	gateways map[string]PaymentGateway
}

// NewRegistry creates a Registry over the given adapters.
func NewRegistry(gateways ...PaymentGateway) *Registry {
	m := make(map[string]PaymentGateway, len(gateways))
	for _, g := range gateways {
		m[g.Name()] = g
	}
	return &Registry{gateways: m}
}

// Get returns the adapter for the provider, or a ValidationError for an
// unknown name.
func (r *Registry) Get(provider string) (PaymentGateway, error) {
	g, ok := r.gateways[strings.ToLower(provider)]
	if !ok {
		return nil, domain.NewValidationError(fmt.Sprintf("unsupported payment provider: %s", provider))
	}
	return g, nil
}
