package models

import "time"

// Job statuses.
const (
	JobPending   = "pending"
	JobRunning   = "running"
	JobCompleted = "completed"
	JobFailed    = "failed"
	JobCancelled = "cancelled"
)

// Job is one durable scheduler row. At most one pending job shares an
// idempotency key; Schedule enforces this at creation time.
type Job struct {
	JobID          string    `gorm:"primaryKey;size:36"`
	JobType        string    `gorm:"size:64;not null;index"`
	TenantID       string    `gorm:"size:64;index"`
	RunAt          time.Time `gorm:"index"`
	Payload        string    `gorm:"type:text"` // JSON
	Status         string    `gorm:"size:16;default:pending;index"`
	RetryCount     int       `gorm:"default:0"`
	MaxRetries     int       `gorm:"default:3"`
	RetryDelaySecs int       `gorm:"default:60"`
	IdempotencyKey string    `gorm:"size:128;index"`
	LastError      string    `gorm:"type:text"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
