package orders

import (
	"fmt"
	"time"

	"github.com/ktwhotel/concierge/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StampRequest prefixes a special request with its receipt time, the shape
// the back office expects.
func StampRequest(req string, at time.Time) string {
	return fmt.Sprintf("[%s] %s", at.Format("01/02 15:04"), req)
}

// SaveLog upserts the local mirror of a confirmed order. When the order has
// an OTA id a second alias row is written under the cleaned OTA id so either
// key resolves it.
func SaveLog(db *gorm.DB, row models.GuestOrder) error {
	if row.OrderID == "" {
		return fmt.Errorf("orders: order id is required")
	}
	upsert := clause.OnConflict{
		Columns:   []clause.Column{{Name: "order_id"}},
		UpdateAll: true,
	}
	if err := db.Clauses(upsert).Create(&row).Error; err != nil {
		return fmt.Errorf("orders: save log %s: %w", row.OrderID, err)
	}
	if row.OTABookingID != "" {
		alias := row
		alias.OrderID = CleanOTAID(row.OTABookingID)
		if alias.OrderID != "" && alias.OrderID != row.OrderID {
			if err := db.Clauses(upsert).Create(&alias).Error; err != nil {
				return fmt.Errorf("orders: save alias %s: %w", alias.OrderID, err)
			}
		}
	}
	return nil
}

// FindLog resolves a local order row by internal id or cleaned OTA id.
func FindLog(db *gorm.DB, id string) (*models.GuestOrder, error) {
	var row models.GuestOrder
	err := db.Where("order_id = ? OR ota_booking_id = ?", id, id).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("orders: find log %s: %w", id, err)
	}
	return &row, nil
}
