package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nuzul-stays/service-booking/internal/domain"
	"github.com/nuzul-stays/service-booking/internal/domain/availability"
	bookingDomain "github.com/nuzul-stays/service-booking/internal/domain/booking"
	"github.com/nuzul-stays/service-booking/internal/domain/ledger"
	"github.com/nuzul-stays/service-booking/internal/events"
	"github.com/nuzul-stays/service-booking/internal/gateway"
)

// --- booking repository fake ---

type fakeBookingRepo struct {
	mu       sync.Mutex
	bookings map[uuid.UUID]*bookingDomain.Booking
	versions map[uuid.UUID]int64

	// conflictOn forces ConflictError on the next Update of the given booking.
	conflictOn map[uuid.UUID]bool
}

func newFakeBookingRepo() *fakeBookingRepo {
	return &fakeBookingRepo{
		bookings:   make(map[uuid.UUID]*bookingDomain.Booking),
		versions:   make(map[uuid.UUID]int64),
		conflictOn: make(map[uuid.UUID]bool),
	}
}

func (r *fakeBookingRepo) FindByID(_ context.Context, id uuid.UUID) (*bookingDomain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	bk, ok := r.bookings[id]
	if !ok {
		return nil, domain.NewNotFoundError("Booking", id.String())
	}
	return bk, nil
}

func (r *fakeBookingRepo) FindByNumber(_ context.Context, number string) (*bookingDomain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, bk := range r.bookings {
		if bk.BookingNumber() == number {
			return bk, nil
		}
	}
	return nil, domain.NewNotFoundError("Booking", number)
}

func (r *fakeBookingRepo) FindByGuestID(_ context.Context, guestID uuid.UUID, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*bookingDomain.Booking
	for _, bk := range r.bookings {
		if bk.GuestID() == guestID {
			out = append(out, bk)
		}
	}
	return out, int64(len(out)), nil
}

func (r *fakeBookingRepo) FindByHostID(_ context.Context, hostID uuid.UUID, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*bookingDomain.Booking
	for _, bk := range r.bookings {
		if bk.HostID() == hostID {
			out = append(out, bk)
		}
	}
	return out, int64(len(out)), nil
}

func (r *fakeBookingRepo) FindExpiredHolds(_ context.Context, now time.Time) ([]*bookingDomain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*bookingDomain.Booking
	for _, bk := range r.bookings {
		if bk.HoldExpired(now) {
			out = append(out, bk)
		}
	}
	return out, nil
}

func (r *fakeBookingRepo) ListAll(_ context.Context, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*bookingDomain.Booking
	for _, bk := range r.bookings {
		out = append(out, bk)
	}
	return out, int64(len(out)), nil
}

func (r *fakeBookingRepo) CountByStatus(_ context.Context) (map[string]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[string]int64)
	for _, bk := range r.bookings {
		counts[string(bk.Status())]++
	}
	return counts, nil
}

func (r *fakeBookingRepo) Save(_ context.Context, bk *bookingDomain.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bookings[bk.ID()] = bk
	r.versions[bk.ID()] = bk.Version()
	return nil
}

func (r *fakeBookingRepo) Update(_ context.Context, bk *bookingDomain.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conflictOn[bk.ID()] {
		delete(r.conflictOn, bk.ID())
		return domain.NewConflictError("booking was modified by another transaction")
	}
	stored, ok := r.versions[bk.ID()]
	if !ok {
		return domain.NewNotFoundError("Booking", bk.ID().String())
	}
	if stored != bk.Version()-1 {
		return domain.NewConflictError("booking was modified by another transaction")
	}
	r.bookings[bk.ID()] = bk
	r.versions[bk.ID()] = bk.Version()
	return nil
}

// --- availability repository fake ---

type nightKey struct {
	property uuid.UUID
	date     string
}

type fakeAvailabilityRepo struct {
	mu     sync.Mutex
	nights map[nightKey]*availability.Night

	failRelease bool
	failHold    bool
}

func newFakeAvailabilityRepo() *fakeAvailabilityRepo {
	return &fakeAvailabilityRepo{nights: make(map[nightKey]*availability.Night)}
}

func (r *fakeAvailabilityRepo) seed(propertyID uuid.UUID, checkIn, checkOut time.Time, priceCents int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, date := range availability.NightsIn(checkIn, checkOut) {
		r.nights[nightKey{propertyID, date.Format("2006-01-02")}] = &availability.Night{
			PropertyID: propertyID,
			Date:       date,
			Available:  true,
			PriceCents: priceCents,
		}
	}
}

func (r *fakeAvailabilityRepo) available(propertyID uuid.UUID, date time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.nights[nightKey{propertyID, date.Format("2006-01-02")}]
	return ok && n.Available
}

func (r *fakeAvailabilityRepo) FindRange(_ context.Context, propertyID uuid.UUID, checkIn, checkOut time.Time) ([]availability.Night, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []availability.Night
	for _, date := range availability.NightsIn(checkIn, checkOut) {
		if n, ok := r.nights[nightKey{propertyID, date.Format("2006-01-02")}]; ok {
			out = append(out, *n)
		}
	}
	return out, nil
}

func (r *fakeAvailabilityRepo) Hold(_ context.Context, propertyID uuid.UUID, checkIn, checkOut time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failHold {
		return domain.NewConflictError("one or more nights are no longer available")
	}
	for _, date := range availability.NightsIn(checkIn, checkOut) {
		n, ok := r.nights[nightKey{propertyID, date.Format("2006-01-02")}]
		if !ok || !n.Available {
			return domain.NewConflictError("one or more nights are no longer available")
		}
	}
	for _, date := range availability.NightsIn(checkIn, checkOut) {
		r.nights[nightKey{propertyID, date.Format("2006-01-02")}].Available = false
	}
	return nil
}

func (r *fakeAvailabilityRepo) Release(_ context.Context, propertyID uuid.UUID, checkIn, checkOut time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failRelease {
		return fmt.Errorf("availability store unavailable")
	}
	for _, date := range availability.NightsIn(checkIn, checkOut) {
		if n, ok := r.nights[nightKey{propertyID, date.Format("2006-01-02")}]; ok {
			n.Available = true
		}
	}
	return nil
}

// --- ledger fake ---

type fakeLedger struct {
	mu      sync.Mutex
	entries []*ledger.Transaction
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{}
}

func (l *fakeLedger) Append(_ context.Context, tx *ledger.Transaction) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e.Provider == tx.Provider && e.GatewayRef == tx.GatewayRef && tx.GatewayRef != "" {
			return domain.NewConflictError("ledger entry already recorded for this gateway reference")
		}
	}
	l.entries = append(l.entries, tx)
	return nil
}

func (l *fakeLedger) FindByGatewayRef(_ context.Context, provider, ref string) (*ledger.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e.Provider == provider && e.GatewayRef == ref {
			return e, nil
		}
	}
	return nil, domain.NewNotFoundError("Transaction", ref)
}

func (l *fakeLedger) ListByBooking(_ context.Context, bookingID uuid.UUID) ([]*ledger.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*ledger.Transaction
	for _, e := range l.entries {
		if e.BookingID == bookingID {
			out = append(out, e)
		}
	}
	return out, nil
}

// --- gateway fake ---

type fakeGateway struct {
	name string

	mu          sync.Mutex
	orders      []gateway.OrderRequest
	refunds     []gateway.RefundRequest
	failCreate  bool
	failRefund  bool
	nextOrderID int
}

func newFakeGateway(name string) *fakeGateway {
	return &fakeGateway{name: name}
}

func (g *fakeGateway) Name() string { return g.name }

func (g *fakeGateway) CreateOrder(_ context.Context, req gateway.OrderRequest) (*gateway.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failCreate {
		return nil, domain.NewGatewayError(g.name, "gateway unavailable", nil)
	}
	g.orders = append(g.orders, req)
	g.nextOrderID++
	return &gateway.Order{
		OrderID:    req.OrderID,
		GatewayRef: fmt.Sprintf("%s-ref-%d", g.name, g.nextOrderID),
		PaymentURL: fmt.Sprintf("https://%s.example.com/pay/%s", g.name, req.OrderID),
	}, nil
}

func (g *fakeGateway) Refund(_ context.Context, req gateway.RefundRequest) (*gateway.Refund, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failRefund {
		return nil, domain.NewGatewayError(g.name, "refund rejected", nil)
	}
	g.refunds = append(g.refunds, req)
	return &gateway.Refund{
		RefundID: fmt.Sprintf("%s-refund-%d", g.name, len(g.refunds)),
		Status:   "COMPLETED",
	}, nil
}

// --- idempotency store fake ---

type fakeIdempotencyStore struct {
	mu     sync.Mutex
	claims map[string]bool
}

func newFakeIdempotencyStore() *fakeIdempotencyStore {
	return &fakeIdempotencyStore{claims: make(map[string]bool)}
}

func (s *fakeIdempotencyStore) Claim(_ context.Context, key string, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.claims[key] {
		return false, nil
	}
	s.claims[key] = true
	return true, nil
}

// newPaidEntry builds a settled reservation ledger entry for test seeding.
func newPaidEntry(bookingID uuid.UUID, amountCents int64, provider, gatewayRef string) (*ledger.Transaction, error) {
	return ledger.NewTransaction(bookingID, ledger.TypeReservation, ledger.StatusPaid, amountCents, domain.CurrencyQAR, provider, gatewayRef)
}

// --- event publisher fake ---

type publishedEvent struct {
	Topic string
	Key   string
	Event *events.CloudEvent
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{}
}

func (p *fakePublisher) PublishEvent(_ context.Context, topic, key string, event *events.CloudEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{Topic: topic, Key: key, Event: event})
	return nil
}

func (p *fakePublisher) eventTypes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Event.Type
	}
	return out
}
