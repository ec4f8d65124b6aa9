package models

import "time"

// PendingGuest parks guest-provided slots when the supplied order id cannot
// (yet) be resolved against the PMS. Matched on a later lookup whose resolved
// OTA booking id contains ProvidedOrderID.
type PendingGuest struct {
	UserID          string `gorm:"primaryKey;size:64"`
	ProvidedOrderID string `gorm:"primaryKey;size:64"`
	TenantID        string `gorm:"size:64;index"`
	GuestName       string `gorm:"size:128"`
	Phone           string `gorm:"size:32"`
	ArrivalTime     string `gorm:"size:64"`
	SpecialRequests string `gorm:"type:text"`
	Status          string `gorm:"size:16;default:pending;index"` // pending, matched
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
