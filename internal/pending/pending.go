// Package pending parks guest slots when the supplied order id cannot yet
// be resolved against the PMS, and matches them back once it can.
package pending

import (
	"fmt"
	"strings"
	"time"

	"github.com/ktwhotel/concierge/internal/models"
	"gorm.io/gorm"
)

// Retention is how long an unmatched row survives before the purge.
const Retention = 7 * 24 * time.Hour

// StoreOpts configures a Store.
type StoreOpts struct {
	DB       *gorm.DB
	TenantID string
	Now      func() time.Time
}

// Store is the pending-guest table.
type Store struct {
	db       *gorm.DB
	tenantID string
	now      func() time.Time
}

// NewStore validates opts and returns a Store.
func NewStore(opts StoreOpts) (*Store, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("pending: db is required")
	}
	if opts.TenantID == "" {
		return nil, fmt.Errorf("pending: tenant id is required")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{db: opts.DB, tenantID: opts.TenantID, now: opts.Now}, nil
}

// Park upserts a pending row for (user, provided id).
func (s *Store) Park(userID, providedOrderID, guestName, phone, arrivalTime, specialRequests string) error {
	if userID == "" || providedOrderID == "" {
		return fmt.Errorf("pending: user id and provided order id are required")
	}
	now := s.now()
	row := models.PendingGuest{
		UserID:          userID,
		ProvidedOrderID: providedOrderID,
		TenantID:        s.tenantID,
		GuestName:       guestName,
		Phone:           phone,
		ArrivalTime:     arrivalTime,
		SpecialRequests: specialRequests,
		Status:          "pending",
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.db.Save(&row).Error; err != nil {
		return fmt.Errorf("pending: park %s:%s: %w", userID, providedOrderID, err)
	}
	return nil
}

// Find returns the pending rows for a user, newest first.
func (s *Store) Find(userID string) ([]models.PendingGuest, error) {
	var rows []models.PendingGuest
	err := s.db.Where("user_id = ? AND status = ?", userID, "pending").
		Order("updated_at DESC").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("pending: find for %s: %w", userID, err)
	}
	return rows, nil
}

// Match consumes the user's pending rows whose provided id appears inside
// the resolved OTA booking id, returning the consumed rows so the caller
// can merge their slots into the supplement.
func (s *Store) Match(userID, otaBookingID string) ([]models.PendingGuest, error) {
	if otaBookingID == "" {
		return nil, nil
	}
	rows, err := s.Find(userID)
	if err != nil {
		return nil, err
	}
	var matched []models.PendingGuest
	for _, row := range rows {
		if !strings.Contains(otaBookingID, row.ProvidedOrderID) {
			continue
		}
		err := s.db.Model(&models.PendingGuest{}).
			Where("user_id = ? AND provided_order_id = ?", row.UserID, row.ProvidedOrderID).
			Updates(map[string]interface{}{"status": "matched", "updated_at": s.now()}).Error
		if err != nil {
			return nil, fmt.Errorf("pending: mark matched %s:%s: %w", row.UserID, row.ProvidedOrderID, err)
		}
		matched = append(matched, row)
	}
	return matched, nil
}

// Purge deletes pending rows older than Retention. Runs at startup and on
// the periodic sweep.
func (s *Store) Purge() (int64, error) {
	cutoff := s.now().Add(-Retention)
	res := s.db.Where("status = ? AND updated_at < ?", "pending", cutoff).
		Delete(&models.PendingGuest{})
	if res.Error != nil {
		return 0, fmt.Errorf("pending: purge: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Unmatched returns every pending row, for the retry sweep.
func (s *Store) Unmatched() ([]models.PendingGuest, error) {
	var rows []models.PendingGuest
	err := s.db.Where("status = ?", "pending").Order("updated_at").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("pending: list unmatched: %w", err)
	}
	return rows, nil
}
