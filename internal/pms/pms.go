// Package pms talks to the back-office Property Management System over
// HTTP. The PMS is authoritative for inventory and reservations; everything
// here is read-or-relay, never a second source of truth.
package pms

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"
)

// ErrNotFound is returned when the PMS does not know the booking.
var ErrNotFound = errors.New("pms: booking not found")

var letterPrefixRe = regexp.MustCompile(`^[A-Z]+`)

// Booking is the PMS view of one reservation.
type Booking struct {
	BookingID      string `json:"booking_id"`
	OTABookingID   string `json:"ota_booking_id"`
	GuestName      string `json:"guest_name"`
	GuestLastName  string `json:"guest_last_name"`
	GuestFirstName string `json:"guest_first_name"`
	ContactPhone   string `json:"contact_phone"`
	CheckInDate    string `json:"check_in_date"`
	CheckOutDate   string `json:"check_out_date"`
	Nights         int    `json:"nights"`
	StatusCode     string `json:"status_code"`
	StatusName     string `json:"status_name"`
	Remarks        string `json:"remarks"`
	Rooms          []Room `json:"rooms"`
}

// Room is one room line on a booking.
type Room struct {
	RoomTypeCode string `json:"room_type_code"`
	RoomTypeName string `json:"room_type_name"`
	Count        int    `json:"count"`
}

// Cancelled reports whether the booking is in a cancelled state.
func (b *Booking) Cancelled() bool {
	return strings.TrimSpace(b.StatusCode) == "D" || strings.Contains(b.StatusName, "取消")
}

// Availability is today's sellable count for one room type.
type Availability struct {
	RoomTypeCode   string `json:"room_type_code"`
	AvailableCount int    `json:"available_count"`
	Price          int    `json:"price"`
}

// SameDayBooking is the draft/commit payload for a same-day reservation.
// OrderID is caller-supplied and makes the create idempotent.
type SameDayBooking struct {
	OrderID         string `json:"order_id"`
	ItemID          string `json:"item_id"`
	RoomTypeCode    string `json:"room_type_code"`
	RoomTypeName    string `json:"room_type_name"`
	RoomCount       int    `json:"room_count"`
	BedType         string `json:"bed_type,omitempty"`
	SpecialRequests string `json:"special_requests,omitempty"`
	Nights          int    `json:"nights"`
	GuestName       string `json:"guest_name"`
	Phone           string `json:"phone"`
	ArrivalTime     string `json:"arrival_time"`
	Status          string `json:"status"` // incomplete, pending, committed, interrupted
	LineUserID      string `json:"line_user_id"`
	LineDisplayName string `json:"line_display_name,omitempty"`
}

// Supplement carries the guest-provided fields written back onto an order.
type Supplement struct {
	ConfirmedPhone      string   `json:"confirmed_phone,omitempty"`
	ArrivalTime         string   `json:"arrival_time,omitempty"`
	AIExtractedRequests []string `json:"ai_extracted_requests,omitempty"`
	LineName            string   `json:"line_name,omitempty"`
}

// API is the PMS surface the flows depend on. Production uses Client; tests
// use Mock.
type API interface {
	GetBooking(ctx context.Context, id string) (*Booking, error)
	SearchBookings(ctx context.Context, name, phone string) ([]Booking, error)
	TodayAvailability(ctx context.Context) ([]Availability, error)
	CreateSameDay(ctx context.Context, b SameDayBooking) (string, error)
	CancelSameDay(ctx context.Context, tempOrderID string) error
	UpdateSupplement(ctx context.Context, orderID string, s Supplement) error
}

// DefaultTimeout bounds every PMS call unless overridden.
const DefaultTimeout = 5 * time.Second
