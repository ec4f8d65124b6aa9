package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/ktwhotel/concierge/internal/intent"
	"github.com/ktwhotel/concierge/internal/mail"
	"github.com/ktwhotel/concierge/internal/models"
	"github.com/ktwhotel/concierge/internal/orders"
	"github.com/ktwhotel/concierge/internal/pms"
	"github.com/ktwhotel/concierge/internal/privacy"
	"github.com/ktwhotel/concierge/internal/scheduler"
	"github.com/ktwhotel/concierge/internal/session"
)

// OrderQuery walks a guest through confirming an existing order and
// collecting the supplement slots: phone, arrival time, special requests.
type OrderQuery struct {
	deps Deps
}

// NewOrderQuery validates deps and returns the machine.
func NewOrderQuery(deps Deps) (*OrderQuery, error) {
	if err := deps.Validate(); err != nil {
		return nil, err
	}
	return &OrderQuery{deps: deps}, nil
}

// Start begins a lookup for a guest-supplied order id while the session is
// idle (or restarts one mid-flow when the guest switches orders).
func (f *OrderQuery) Start(ctx context.Context, s *session.Session, rawID string) Result {
	orderID := intent.ExtractOrderNumber(rawID)
	if orderID == "" {
		orderID = strings.TrimSpace(rawID)
	}
	if err := privacy.CheckInput(orderID); err != nil {
		return Result{Reply: privacy.Apology}
	}

	view, err := f.lookup(ctx, orderID)
	if err == pms.ErrNotFound {
		if perr := f.deps.Pending.Park(s.UserID, orderID, s.DisplayName, "", "", ""); perr != nil {
			log.Printf("order_query: park pending %s: %v", orderID, perr)
		}
		s.State = session.Idle
		return Result{Reply: orders.NotFound(orderID)}
	}
	if err != nil {
		log.Printf("order_query: lookup %s: %v", orderID, err)
		return Result{Reply: "不好意思，系統忙碌中，請稍候再試一次。"}
	}

	if err := privacy.CheckCheckIn(view.CheckIn, f.deps.Now()); err != nil {
		s.State = session.Idle
		return Result{Reply: privacy.Apology}
	}
	if view.Cancelled {
		s.State = session.Idle
		return Result{Reply: orders.Cancelled(f.deps.FrontDesk)}
	}

	s.State = StConfirming
	s.Set("order_id", orderID)
	s.Set("pms_id", view.OrderID)
	s.Set("ota_id", view.OTABookingID)
	s.Set("guest_name", view.GuestName)
	s.Set("phone_on_file", view.Phone)
	s.Set("check_in", view.CheckIn)
	s.Set("check_out", view.CheckOut)
	s.Set("nights", view.Nights)
	s.Set("room_type", view.RoomType)
	s.Set("remarks", view.Remarks)
	s.Set("special_requests", []string{})

	return Result{Reply: orders.ConfirmPrompt(orders.Format(view, orderID))}
}

// lookup resolves the id against the PMS, falling back to the mail archive
// for long or non-numeric ids. Reads are retried once; they are idempotent.
func (f *OrderQuery) lookup(ctx context.Context, orderID string) (orders.View, error) {
	booking, err := f.deps.PMS.GetBooking(ctx, orderID)
	if err != nil && err != pms.ErrNotFound {
		booking, err = f.deps.PMS.GetBooking(ctx, orderID)
	}
	if err == nil {
		return viewFromBooking(booking), nil
	}
	if err != pms.ErrNotFound {
		return orders.View{}, err
	}

	digits := intent.CanonicalOrderID(orderID)
	if f.deps.Mail == nil || (len(orderID) < 10 && digits == orderID) {
		return orders.View{}, pms.ErrNotFound
	}
	msg, merr := f.deps.Mail.Search(ctx, orderID)
	if merr != nil {
		log.Printf("order_query: mail search %s: %v", orderID, merr)
		return orders.View{}, pms.ErrNotFound
	}
	if msg == nil {
		return orders.View{}, pms.ErrNotFound
	}
	return viewFromMail(orderID, msg), nil
}

func viewFromBooking(b *pms.Booking) orders.View {
	var codes []string
	for _, r := range b.Rooms {
		count := r.Count
		if count == 0 {
			count = 1
		}
		for i := 0; i < count; i++ {
			codes = append(codes, r.RoomTypeCode)
		}
	}
	return orders.View{
		OrderID:      b.BookingID,
		OTABookingID: strings.TrimSpace(b.OTABookingID),
		GuestName:    orders.FullName(b.GuestLastName, b.GuestFirstName, b.GuestName),
		Phone:        orders.NormalizePhone(b.ContactPhone),
		CheckIn:      b.CheckInDate,
		CheckOut:     b.CheckOutDate,
		Nights:       b.Nights,
		RoomType:     orders.MergeRoomTypes(codes),
		Remarks:      b.Remarks,
		Cancelled:    b.Cancelled(),
	}
}

// viewFromMail builds a best-effort view from an archive hit. Mail bodies
// carry much less structure than the PMS; absent fields render as 未提供.
func viewFromMail(orderID string, m *mail.Message) orders.View {
	return orders.View{
		OrderID:      orderID,
		OTABookingID: "",
		GuestName:    "",
		Phone:        m.Phone,
		Remarks:      m.Subject + " " + m.Body,
	}
}

// Handle processes one message while the flow is active.
func (f *OrderQuery) Handle(ctx context.Context, s *session.Session, msg string) Result {
	switch s.State {
	case StConfirming:
		return f.handleConfirming(ctx, s, msg)
	case StCollectingPhone:
		return f.handleCollectingPhone(ctx, s, msg)
	case StCollectingArrival:
		return f.handleCollectingArrival(ctx, s, msg)
	case StCollectingSpecial:
		return f.handleCollectingSpecial(ctx, s, msg)
	default:
		return Result{}
	}
}

func (f *OrderQuery) handleConfirming(ctx context.Context, s *session.Session, msg string) Result {
	current := s.GetString("order_id")

	if intent.HasOrderNumber(msg) && intent.IsNewOrderQuery(msg, current) {
		return f.Start(ctx, s, msg)
	}
	if intent.IsRejection(msg) {
		f.reset(s)
		return Result{Reply: "好的，請再提供一次正確的訂單編號，我幫您重新查詢。"}
	}
	if req := intent.ExtractSpecialRequest(msg); req != "" && !intent.IsConfirmation(msg) {
		f.appendRequest(s, req)
		return Result{Reply: "好的，已為您記錄需求：" + req + "\n\n請問這筆訂單資訊正確嗎？"}
	}
	if r, ok := f.noteForeignIntent(s, msg); ok {
		return r
	}
	if intent.IsConfirmation(msg) {
		s.State = StCollectingPhone
		if phone := s.GetString("phone_on_file"); phone != "" {
			return Result{Reply: fmt.Sprintf("謝謝您的確認！\n\n系統顯示您的聯絡電話為 %s，請問正確嗎？\n正確請回覆「是」，或直接提供新的電話號碼。", phone)}
		}
		return Result{Reply: "謝謝您的確認！\n\n請提供您的聯絡電話，方便入住當天聯繫您。"}
	}
	return Result{Reply: "請問這筆訂單資訊正確嗎？正確請回覆「是」，有誤請回覆「不是」。"}
}

func (f *OrderQuery) handleCollectingPhone(ctx context.Context, s *session.Session, msg string) Result {
	current := s.GetString("order_id")

	if phone := intent.ExtractPhone(msg, true); phone != "" {
		s.Set("phone", phone)
		s.State = StCollectingArrival
		return Result{Reply: "已記錄您的電話 ✅\n\n請問您預計幾點抵達飯店呢？（例如：下午3點、晚上7點）"}
	}
	if intent.IsConfirmation(msg) {
		if phone := s.GetString("phone_on_file"); phone != "" {
			s.Set("phone", phone)
			s.State = StCollectingArrival
			return Result{Reply: "好的，電話確認無誤 ✅\n\n請問您預計幾點抵達飯店呢？（例如：下午3點、晚上7點）"}
		}
	}
	// a different order id mid-collection parks the intent; the phone
	// still has to come first
	if intent.IsNewOrderQuery(msg, current) {
		newID := intent.ExtractOrderNumber(msg)
		s.PendingIntent = OrderQueryFlow
		s.PendingIntentMessage = msg
		return Result{Reply: fmt.Sprintf("好的，您想查詢訂單 %s。\n\n我們先完成目前這筆的資料確認，稍後立刻為您查詢！\n\n請先提供您的聯絡電話。", newID)}
	}
	// a digit run that does not name another order is ambiguous between
	// the current order id and a mistyped phone; ask before assuming
	if intent.IsPossibleOrderNumber(msg) {
		clean := strings.TrimSpace(msg)
		return Result{Reply: fmt.Sprintf("請問 %s 是訂單編號還是電話號碼呢？\n\n如果是電話，台灣手機應為 09 開頭共 10 碼；如果您想查詢另一筆訂單，請先告訴我。", clean)}
	}
	if r, ok := f.noteForeignIntent(s, msg); ok {
		return r
	}
	return Result{Reply: "不好意思，這個電話格式看起來不太對。\n\n請提供台灣手機（09 開頭 10 碼）或市話號碼。"}
}

func (f *OrderQuery) handleCollectingArrival(ctx context.Context, s *session.Session, msg string) Result {
	if intent.IsNewOrderQuery(msg, s.GetString("order_id")) {
		s.PendingIntent = OrderQueryFlow
		s.PendingIntentMessage = msg
		return Result{Reply: "好的，稍後為您查詢另一筆訂單。\n\n請先告訴我您預計幾點抵達呢？"}
	}
	if r, ok := f.noteForeignIntent(s, msg); ok {
		return r
	}
	if !intent.IsValidTimeFormat(msg) {
		return Result{Reply: "不好意思，我沒看懂這個時間。\n\n請告訴我大概幾點抵達，例如：下午3點、19:00、馬上到。"}
	}
	if intent.IsVagueTime(msg) {
		return Result{Reply: "好的！請問大約幾點呢？例如：下午3點、晚上7點。"}
	}
	s.Set("arrival_time", strings.TrimSpace(msg))
	s.State = StCollectingSpecial
	return Result{Reply: "已記錄您的抵達時間 ✅\n\n請問還有什麼特殊需求嗎？（例如：嬰兒床、高樓層、停車位）\n沒有的話請回覆「沒有」。"}
}

func (f *OrderQuery) handleCollectingSpecial(ctx context.Context, s *session.Session, msg string) Result {
	if intent.IsNone(msg) {
		return f.complete(ctx, s)
	}
	req := intent.ExtractSpecialRequest(msg)
	if req == "" {
		req = strings.TrimSpace(msg)
	}
	f.appendRequest(s, req)
	return Result{Reply: "已記錄：" + req + " ✅\n\n還有其他需求嗎？沒有的話請回覆「沒有」。"}
}

// complete commits the supplement, merges any pending-guest slots, writes
// the local log, schedules reminders, and emits the fixed closure.
func (f *OrderQuery) complete(ctx context.Context, s *session.Session) Result {
	now := f.deps.Now()
	pmsID := s.GetString("pms_id")
	otaID := s.GetString("ota_id")
	displayID := s.GetString("order_id")
	phone := s.GetString("phone")
	arrival := s.GetString("arrival_time")
	requests := s.GetStrings("special_requests")

	// slots parked under an earlier unresolved id belong on this order
	if matched, err := f.deps.Pending.Match(s.UserID, otaID); err != nil {
		log.Printf("order_query: match pending for %s: %v", s.UserID, err)
	} else {
		for _, row := range matched {
			if phone == "" {
				phone = row.Phone
			}
			if arrival == "" {
				arrival = row.ArrivalTime
			}
			if row.SpecialRequests != "" {
				requests = append(requests, row.SpecialRequests)
			}
		}
	}

	supplement := pms.Supplement{
		ConfirmedPhone:      phone,
		ArrivalTime:         arrival,
		AIExtractedRequests: requests,
		LineName:            s.DisplayName,
	}
	if err := f.deps.PMS.UpdateSupplement(ctx, pmsID, supplement); err != nil {
		log.Printf("order_query: update supplement %s: %v", pmsID, err)
	}

	row := models.GuestOrder{
		OrderID:         pmsID,
		OTABookingID:    otaID,
		TenantID:        f.deps.TenantID,
		LineUserID:      s.UserID,
		LineName:        s.DisplayName,
		GuestName:       s.GetString("guest_name"),
		Phone:           s.GetString("phone_on_file"),
		CheckIn:         s.GetString("check_in"),
		CheckOut:        s.GetString("check_out"),
		Nights:          intFromSlot(s.Data["nights"]),
		RoomType:        s.GetString("room_type"),
		BookingSource:   orders.DetectBookingSource(s.GetString("remarks"), otaID, ""),
		Status:          "active",
		Remarks:         s.GetString("remarks"),
		ConfirmedPhone:  phone,
		ArrivalTime:     arrival,
		SpecialRequests: strings.Join(requests, "\n"),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := orders.SaveLog(f.deps.DB, row); err != nil {
		log.Printf("order_query: save log %s: %v", pmsID, err)
	}

	f.scheduleReminders(s, row)

	reply := orders.Closure(displayID, row.CheckIn, phone, arrival, strings.Join(requests, "、"))
	if decoration := f.weatherLine(ctx, row.CheckIn); decoration != "" {
		reply += "\n\n" + decoration
	}
	s.Data = map[string]interface{}{}
	return Result{Reply: finishPending(s, reply)}
}

func (f *OrderQuery) scheduleReminders(s *session.Session, row models.GuestOrder) {
	if f.deps.Engine == nil {
		return
	}
	now := f.deps.Now()
	payload := scheduler.ReminderPayload{
		UserID:    s.UserID,
		OrderID:   row.OrderID,
		GuestName: row.GuestName,
		CheckIn:   row.CheckIn,
		CheckOut:  row.CheckOut,
		RoomType:  row.RoomType,
		RoomCount: 1,
	}
	encoded := encodePayload(payload)

	if ci, err := time.ParseInLocation("2006-01-02", row.CheckIn, now.Location()); err == nil {
		runAt := scheduler.CheckInReminderAt(ci)
		if runAt.After(now) {
			key := scheduler.IdempotencyKey(f.deps.TenantID, s.UserID, scheduler.JobCheckInReminder, row.CheckIn)
			if _, err := f.deps.Engine.Schedule(scheduler.JobCheckInReminder, f.deps.TenantID, runAt, encoded, key, scheduler.ScheduleOpts{}); err != nil {
				log.Printf("order_query: schedule check-in reminder: %v", err)
			}
		}
	}
	co, err := time.ParseInLocation("2006-01-02", row.CheckOut, now.Location())
	if err != nil {
		return
	}
	if runAt := scheduler.CheckOutReminderAt(co); runAt.After(now) {
		key := scheduler.IdempotencyKey(f.deps.TenantID, s.UserID, scheduler.JobCheckOutReminder, row.CheckOut)
		if _, err := f.deps.Engine.Schedule(scheduler.JobCheckOutReminder, f.deps.TenantID, runAt, encoded, key, scheduler.ScheduleOpts{}); err != nil {
			log.Printf("order_query: schedule check-out reminder: %v", err)
		}
	}
	if runAt := scheduler.ReviewRequestAt(co); runAt.After(now) {
		key := scheduler.IdempotencyKey(f.deps.TenantID, s.UserID, scheduler.JobReviewRequest, row.CheckOut)
		if _, err := f.deps.Engine.Schedule(scheduler.JobReviewRequest, f.deps.TenantID, runAt, encoded, key, scheduler.ScheduleOpts{}); err != nil {
			log.Printf("order_query: schedule review request: %v", err)
		}
	}
}

// weatherLine decorates the closure with the check-in forecast. Weather is
// never load bearing; any failure yields an empty string.
func (f *OrderQuery) weatherLine(ctx context.Context, checkIn string) string {
	if f.deps.Weather == nil || checkIn == "" {
		return ""
	}
	fc, err := f.deps.Weather.Forecast(ctx, checkIn)
	if err != nil {
		return ""
	}
	return "🌤️ 溫馨提醒：入住當天 " + fc.Line()
}

// noteForeignIntent parks a booking intent raised mid-query without
// switching flows.
func (f *OrderQuery) noteForeignIntent(s *session.Session, msg string) (Result, bool) {
	if s.PendingIntent != "" || !intent.IsBookingIntent(msg) || intent.IsQueryIntent(msg) {
		return Result{}, false
	}
	if !intent.IsSameDayIntent(msg) {
		return Result{}, false
	}
	s.PendingIntent = SameDayFlow
	s.PendingIntentMessage = msg
	return Result{Reply: "收到！您想加訂今晚的房間，這筆訂單確認完成後，我立刻為您處理 🙌\n\n我們先繼續目前的確認流程。"}, true
}

func (f *OrderQuery) appendRequest(s *session.Session, req string) {
	stamped := orders.StampRequest(req, f.deps.Now())
	s.Set("special_requests", append(s.GetStrings("special_requests"), stamped))
}

func (f *OrderQuery) reset(s *session.Session) {
	s.State = session.Idle
	s.Data = map[string]interface{}{}
}

func intFromSlot(v interface{}) int {
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	}
	return 0
}

func encodePayload(p scheduler.ReminderPayload) string {
	buf, err := json.Marshal(p)
	if err != nil {
		return "{}"
	}
	return string(buf)
}
