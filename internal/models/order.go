package models

import "time"

// GuestOrder mirrors a committed PMS order locally, merged with the
// guest-provided supplement. Rows are written under the internal order id;
// when the order carries an OTA booking id a second alias row points at the
// same data so either key resolves it.
type GuestOrder struct {
	OrderID       string `gorm:"primaryKey;size:64"`
	OTABookingID  string `gorm:"size:64;index"`
	TenantID      string `gorm:"size:64;index"`
	LineUserID    string `gorm:"size:64;index"`
	LineName      string `gorm:"size:128"`
	GuestName     string `gorm:"size:128"`
	Phone         string `gorm:"size:32"`
	CheckIn       string `gorm:"size:10"` // YYYY-MM-DD
	CheckOut      string `gorm:"size:10"`
	Nights        int
	RoomType      string `gorm:"size:128"` // "<zh-name> x<count>" joined over codes
	Breakfast     string `gorm:"size:16"`  // 含早餐 / 不含早餐
	BookingSource string `gorm:"size:32"`
	Status        string `gorm:"size:16;default:active"`
	Remarks       string `gorm:"type:text"`

	// Supplement: locally owned, never sourced from the PMS.
	ConfirmedPhone  string `gorm:"size:32"`
	ArrivalTime     string `gorm:"size:64"`
	SpecialRequests string `gorm:"type:text"` // entries "[MM/DD HH:MM] text", newline-joined
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// SameDayItem is one committed room entry of a same-day booking. Composite
// bookings share an anchor order id and differ in the -k item suffix.
type SameDayItem struct {
	ItemID       string `gorm:"primaryKey;size:32"` // "<order_id>-<k>"
	OrderID      string `gorm:"size:32;index;not null"`
	TenantID     string `gorm:"size:64;index"`
	LineUserID   string `gorm:"size:64;index"`
	RoomTypeCode string `gorm:"size:4;not null"`
	RoomTypeName string `gorm:"size:32"`
	RoomCount    int    `gorm:"default:1"`
	BedType      string `gorm:"size:32"`
	Price        int
	GuestName    string `gorm:"size:128"`
	Phone        string `gorm:"size:32"`
	ArrivalTime  string `gorm:"size:64"`
	Requests     string `gorm:"type:text"`
	Status       string `gorm:"size:16;default:incomplete;index"` // incomplete, pending, committed, interrupted, cancelled
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
