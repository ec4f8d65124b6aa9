package models

import "time"

// MessageLog is one line of the conversation transcript, kept for staff
// review in the back office.
type MessageLog struct {
	ID            uint   `gorm:"primaryKey;autoIncrement"`
	TenantID      string `gorm:"size:64;index"`
	UserID        string `gorm:"size:64;index"`
	Direction     string `gorm:"size:8;not null"` // in, out
	Kind          string `gorm:"size:16"`         // text, image, audio, sticker
	Text          string `gorm:"type:text"`
	State         string `gorm:"size:64"` // session state after handling
	CorrelationID string `gorm:"size:36;index"`
	CreatedAt     time.Time
}
