package pms

import (
	"context"
	"fmt"
	"sync"
)

// Mock implements API for testing. Bookings and availability are seeded by
// tests; writes are recorded for assertions.
type Mock struct {
	mu           sync.Mutex
	bookings     map[string]*Booking // keyed by canonical (digits-only-prefix-stripped) id
	availability []Availability
	created      []SameDayBooking
	cancelled    []string
	supplements  map[string]Supplement
	failNext     error
}

// NewMock returns an empty Mock.
func NewMock() *Mock {
	return &Mock{
		bookings:    make(map[string]*Booking),
		supplements: make(map[string]Supplement),
	}
}

// SeedBooking registers a booking retrievable by the given id.
func (m *Mock) SeedBooking(id string, b *Booking) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bookings[letterPrefixRe.ReplaceAllString(id, "")] = b
}

// SeedAvailability sets today's availability.
func (m *Mock) SeedAvailability(a []Availability) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.availability = a
}

// FailNext makes the next call return err once.
func (m *Mock) FailNext(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = err
}

func (m *Mock) takeFailure() error {
	err := m.failNext
	m.failNext = nil
	return err
}

// GetBooking looks up a seeded booking.
func (m *Mock) GetBooking(ctx context.Context, id string) (*Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return nil, err
	}
	b, ok := m.bookings[letterPrefixRe.ReplaceAllString(id, "")]
	if !ok {
		return nil, ErrNotFound
	}
	return b, nil
}

// SearchBookings returns seeded bookings whose name or phone matches.
func (m *Mock) SearchBookings(ctx context.Context, name, phone string) ([]Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return nil, err
	}
	var out []Booking
	for _, b := range m.bookings {
		if (name != "" && b.GuestName == name) || (phone != "" && b.ContactPhone == phone) {
			out = append(out, *b)
		}
	}
	return out, nil
}

// TodayAvailability returns the seeded availability.
func (m *Mock) TodayAvailability(ctx context.Context) ([]Availability, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return nil, err
	}
	return m.availability, nil
}

// CreateSameDay records the booking and echoes its item id as temp id.
// Like the real PMS it upserts by order and item id, so repeated pushes of
// the same item keep the latest snapshot.
func (m *Mock) CreateSameDay(ctx context.Context, b SameDayBooking) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return "", err
	}
	replaced := false
	for i := range m.created {
		if m.created[i].OrderID == b.OrderID && m.created[i].ItemID == b.ItemID {
			m.created[i] = b
			replaced = true
			break
		}
	}
	if !replaced {
		m.created = append(m.created, b)
	}
	if b.ItemID != "" {
		return b.ItemID, nil
	}
	return fmt.Sprintf("T%s", b.OrderID), nil
}

// CancelSameDay records the cancellation.
func (m *Mock) CancelSameDay(ctx context.Context, tempOrderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}
	m.cancelled = append(m.cancelled, tempOrderID)
	return nil
}

// UpdateSupplement records the supplement keyed by order id.
func (m *Mock) UpdateSupplement(ctx context.Context, orderID string, s Supplement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}
	m.supplements[orderID] = s
	return nil
}

// --- Test helpers ---

// Created returns a copy of all same-day writes, in order.
func (m *Mock) Created() []SameDayBooking {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SameDayBooking, len(m.created))
	copy(out, m.created)
	return out
}

// CreatedItem returns the latest same-day write for an order/item pair.
func (m *Mock) CreatedItem(orderID, itemID string) (SameDayBooking, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.created {
		if b.OrderID == orderID && b.ItemID == itemID {
			return b, true
		}
	}
	return SameDayBooking{}, false
}

// CancelledIDs returns the ids passed to CancelSameDay.
func (m *Mock) CancelledIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.cancelled))
	copy(out, m.cancelled)
	return out
}

// SupplementFor returns the last supplement written for an order id.
func (m *Mock) SupplementFor(orderID string) (Supplement, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.supplements[orderID]
	return s, ok
}
