package core

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/robfig/cron/v3"

	"github.com/ktwhotel/concierge/internal/chat"
	"github.com/ktwhotel/concierge/internal/models"
	"github.com/ktwhotel/concierge/internal/pending"
	"github.com/ktwhotel/concierge/internal/pms"
	"github.com/ktwhotel/concierge/internal/scheduler"
)

// RegisterReminders binds the reminder job types to chat pushes. The push
// is the whole job; a failed push retries on the engine's schedule.
func RegisterReminders(engine *scheduler.Engine, adapter chat.Adapter, reviewLink string) {
	render := map[string]func(scheduler.ReminderPayload) string{
		scheduler.JobCheckInReminder:  scheduler.CheckInMessage,
		scheduler.JobCheckOutReminder: scheduler.CheckOutMessage,
		scheduler.JobReviewRequest: func(p scheduler.ReminderPayload) string {
			return scheduler.ReviewMessage(p, reviewLink)
		},
	}
	for jobType, message := range render {
		message := message
		engine.RegisterHandler(jobType, func(ctx context.Context, job *models.Job) error {
			var p scheduler.ReminderPayload
			if err := json.Unmarshal([]byte(job.Payload), &p); err != nil {
				return fmt.Errorf("core: decode reminder payload: %w", err)
			}
			if p.UserID == "" {
				return fmt.Errorf("core: reminder payload has no user")
			}
			return adapter.Push(ctx, p.UserID, message(p))
		})
	}
}

// RetryPending returns the sweep hook that retries parked order lookups.
// OTA bookings sync into the PMS with a delay; a row that now resolves is
// merged into the order's supplement and the guest is told it arrived.
func RetryPending(api pms.API, store *pending.Store, adapter chat.Adapter) func(ctx context.Context, rows []models.PendingGuest) {
	return func(ctx context.Context, rows []models.PendingGuest) {
		for _, row := range rows {
			b, err := api.GetBooking(ctx, row.ProvidedOrderID)
			if err == pms.ErrNotFound {
				continue
			}
			if err != nil {
				log.Printf("core: retry pending %s: %v", row.ProvidedOrderID, err)
				continue
			}
			key := b.OTABookingID
			if key == "" {
				key = b.BookingID
			}
			matched, err := store.Match(row.UserID, key)
			if err != nil {
				log.Printf("core: match pending %s: %v", row.ProvidedOrderID, err)
				continue
			}
			if len(matched) == 0 {
				continue
			}
			sup := pms.Supplement{
				ConfirmedPhone: row.Phone,
				ArrivalTime:    row.ArrivalTime,
			}
			if row.SpecialRequests != "" {
				sup.AIExtractedRequests = []string{row.SpecialRequests}
			}
			if err := api.UpdateSupplement(ctx, b.BookingID, sup); err != nil {
				log.Printf("core: supplement %s: %v", b.BookingID, err)
				continue
			}
			msg := fmt.Sprintf("好消息！您先前查詢的訂單 %s 已經同步進系統了，留言的需求也幫您登記上去囉 😊", row.ProvidedOrderID)
			if err := adapter.Push(ctx, row.UserID, msg); err != nil {
				log.Printf("core: notify pending %s: %v", row.UserID, err)
			}
		}
	}
}

// StartSweeps schedules the periodic maintenance work: purging stale
// pending-guest rows and retrying unmatched ones against the PMS. Both
// also run once at startup so a restart never skips a day.
func StartSweeps(ctx context.Context, store *pending.Store, retry func(ctx context.Context, rows []models.PendingGuest)) (*cron.Cron, error) {
	sweep := func() {
		if n, err := store.Purge(); err != nil {
			log.Printf("core: purge pending guests: %v", err)
		} else if n > 0 {
			log.Printf("core: purged %d stale pending guests", n)
		}
		if retry == nil {
			return
		}
		rows, err := store.Unmatched()
		if err != nil {
			log.Printf("core: list unmatched pending guests: %v", err)
			return
		}
		if len(rows) > 0 {
			retry(ctx, rows)
		}
	}
	sweep()

	c := cron.New()
	if _, err := c.AddFunc("0 * * * *", sweep); err != nil {
		return nil, fmt.Errorf("core: schedule sweep: %w", err)
	}
	c.Start()
	return c, nil
}
