package models

import "time"

// SchemaVersion is the session snapshot schema understood by this build.
// Bump only on incompatible field changes; additive fields keep the version.
const SchemaVersion = "2"

// Session is the durable per-user conversation snapshot. Exactly one row
// exists per (tenant, user); the in-memory cache in internal/session is a
// pure read-through over this table.
type Session struct {
	TenantID             string `gorm:"primaryKey;size:64"`
	UserID               string `gorm:"primaryKey;size:64"`
	SchemaVersion        string `gorm:"size:8;not null"`
	State                string `gorm:"size:64;not null;default:idle"` // "<flow>.<substate>", bare "idle"
	Data                 string `gorm:"type:text"`                     // JSON slot bag
	PendingIntent        string `gorm:"size:32"`
	PendingIntentMessage string `gorm:"type:text"`
	DisplayName          string `gorm:"size:128"`
	CreatedAt            time.Time
	UpdatedAt            time.Time
}
