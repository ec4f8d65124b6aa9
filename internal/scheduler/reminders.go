package scheduler

import (
	"fmt"
	"time"
)

// Trigger specs live here, next to the engine but owned by the flows that
// schedule them: when a reminder fires and what it says.

// Reminder job types.
const (
	JobCheckInReminder  = "check_in_reminder"
	JobCheckOutReminder = "check_out_reminder"
	JobReviewRequest    = "review_request"
)

// ReminderPayload is the JSON payload stored on reminder jobs.
type ReminderPayload struct {
	UserID    string `json:"user_id"`
	OrderID   string `json:"order_id"`
	GuestName string `json:"guest_name"`
	CheckIn   string `json:"check_in"`
	CheckOut  string `json:"check_out"`
	RoomType  string `json:"room_type"`
	RoomCount int    `json:"room_count"`
}

// IdempotencyKey builds the reminder dedup key. Keyed by date so re-running
// a commit on the same day never schedules a second send.
func IdempotencyKey(tenantID, userID, kind, date string) string {
	return fmt.Sprintf("%s:%s:%s:%s", tenantID, userID, kind, date)
}

// CheckInReminderAt is the day before check-in, at 14:00 local.
func CheckInReminderAt(checkIn time.Time) time.Time {
	d := checkIn.AddDate(0, 0, -1)
	return time.Date(d.Year(), d.Month(), d.Day(), 14, 0, 0, 0, checkIn.Location())
}

// CheckOutReminderAt is the day before check-out, at 18:00 local.
func CheckOutReminderAt(checkOut time.Time) time.Time {
	d := checkOut.AddDate(0, 0, -1)
	return time.Date(d.Year(), d.Month(), d.Day(), 18, 0, 0, 0, checkOut.Location())
}

// ReviewRequestAt is the day after check-out, at 10:00 local.
func ReviewRequestAt(checkOut time.Time) time.Time {
	d := checkOut.AddDate(0, 0, 1)
	return time.Date(d.Year(), d.Month(), d.Day(), 10, 0, 0, 0, checkOut.Location())
}

// CheckInMessage renders the day-before check-in reminder.
func CheckInMessage(p ReminderPayload) string {
	name := p.GuestName
	if name == "" {
		name = "貴賓"
	}
	count := p.RoomCount
	if count == 0 {
		count = 1
	}
	return fmt.Sprintf(`🏨 入住提醒

親愛的 %s，

明天就要入住啦！🎉

📅 入住日期：%s
📅 退房日期：%s
🏠 房型：%s
🔢 數量：%d 間

請問您預計幾點抵達呢？
可以直接在這裡回覆，我幫您記錄！

若有任何問題，歡迎隨時詢問 💬`, name, p.CheckIn, p.CheckOut, p.RoomType, count)
}

// CheckOutMessage renders the day-before check-out reminder.
func CheckOutMessage(p ReminderPayload) string {
	name := p.GuestName
	if name == "" {
		name = "貴賓"
	}
	return fmt.Sprintf(`🏨 退房提醒

親愛的 %s，

明天 11:00 前退房喔！

如需延遲退房請提前告知 💬

感謝您的入住，祝旅途愉快！🎉`, name)
}

// ReviewMessage renders the post-stay review request.
func ReviewMessage(p ReminderPayload, reviewLink string) string {
	name := p.GuestName
	if name == "" {
		name = "貴賓"
	}
	return fmt.Sprintf(`⭐ 感謝入住！

親愛的 %s，

感謝您選擇我們的飯店！

希望您度過了愉快的時光 🎉

如果方便的話，請給我們一個評價
讓我們更進步！

👉 Google 評論：%s

感謝您的支持！💕`, name, reviewLink)
}
