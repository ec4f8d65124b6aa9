package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/ktwhotel/concierge/internal/intent"
	"github.com/ktwhotel/concierge/internal/models"
	"github.com/ktwhotel/concierge/internal/orders"
	"github.com/ktwhotel/concierge/internal/pms"
	"github.com/ktwhotel/concierge/internal/rooms"
	"github.com/ktwhotel/concierge/internal/scheduler"
	"github.com/ktwhotel/concierge/internal/session"
)

// Same-day bookings close at 22:00; later arrivals go through the front desk.
const sameDayCutoffHour = 22

var (
	todayWords     = []string{"今天", "今日", "當日", "當天", "現在", "馬上"}
	futureDayWords = []string{"明天", "明日", "後天", "大後天"}

	dateSlashRe2 = regexp.MustCompile(`\b\d{1,2}/\d{1,2}\b`)
	dateCJKRe    = regexp.MustCompile(`\d{1,2}月\d{1,2}日?`)
	dateISORe2   = regexp.MustCompile(`\b\d{4}/\d{1,2}/\d{1,2}\b`)

	// both match after numeral conversion, so 兩間雙人房 arrives as 2間雙人房;
	// guests write the count on either side of the room word
	roomPickRe    = regexp.MustCompile(`(\d+)\s*間?\s*(雙人房|雙人|2人|三人房|三人|3人|四人房|四人|4人)`)
	roomPickRevRe = regexp.MustCompile(`(雙人房|雙人|2人|三人房|三人|3人|四人房|四人|4人)\s*(\d+)\s*間?`)
	roomWordRe    = regexp.MustCompile(`(雙人房|雙人|2人|三人房|三人|3人|四人房|四人|4人)`)
	sdPhoneRe     = regexp.MustCompile(`0\d{7,14}`)
	sdMobileRe    = regexp.MustCompile(`^09\d{8}$`)
	arrivalSegRe  = regexp.MustCompile(`(上午|中午|下午|晚上|傍晚|凌晨)?\s*\d{1,2}\s*(點半|點\d{1,2}分|點|:\d{2})`)
	nameRe        = regexp.MustCompile(`^[\p{Han}A-Za-z·]{2,10}$`)
	digitRunRe    = regexp.MustCompile(`\d+`)

	softExitWords = []string{
		"不用了", "算了", "先不用", "我再想想", "下次好了", "下次再", "改天",
		"不需要", "暫時不用", "先這樣", "沒事了", "取消好了",
	}
)

// sdEntry is one room line of the draft, serialized into the session.
type sdEntry struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	Count    int    `json:"count"`
	Price    int    `json:"price"`
	Capacity int    `json:"capacity"`
	Bed      string `json:"bed"`
	Upgraded bool   `json:"upgraded,omitempty"`
}

// SameDay walks a guest through booking tonight's stay: date check, room
// pick against live availability, bed choice, contact slots, confirm, and
// the PMS commit.
type SameDay struct {
	deps Deps
}

// NewSameDay validates deps and returns the machine.
func NewSameDay(deps Deps) (*SameDay, error) {
	if err := deps.Validate(); err != nil {
		return nil, err
	}
	return &SameDay{deps: deps}, nil
}

// Start opens the flow from an idle session.
func (f *SameDay) Start(ctx context.Context, s *session.Session, msg string) Result {
	now := f.deps.Now()
	if now.Hour() >= sameDayCutoffHour {
		s.State = session.Idle
		return Result{Reply: fmt.Sprintf("不好意思，線上當日預訂已於 22:00 截止 🙏\n\n今晚如需住宿，請直接來電櫃檯 %s 為您安排。", f.deps.FrontDesk)}
	}
	s.State = StAskDate
	s.Set("anchor", "WI"+now.Format("01021504"))
	r := f.handleAskDate(ctx, s, msg)
	if r.Reply != "" {
		return r
	}
	return Result{Reply: "您好！請問是要預訂「今天晚上」的住宿嗎？\n\n是的話請回覆「今天」，其他日期請提供日期，我幫您看看 😊"}
}

// Handle processes one message while the flow is active.
func (f *SameDay) Handle(ctx context.Context, s *session.Session, msg string) Result {
	if s.State != StCollectArrival && f.isSoftExit(msg) {
		return f.interrupt(ctx, s, "好的，沒問題！\n\n如果晚點想訂房，隨時跟我說 😊")
	}
	switch s.State {
	case StAskDate:
		if r := f.handleAskDate(ctx, s, msg); r.Reply != "" {
			return r
		}
		return Result{Reply: "請問是要預訂今天晚上的住宿嗎？是的話請回覆「今天」。"}
	case StShowRooms, StCollectRoom:
		return f.handleCollectRoom(ctx, s, msg)
	case StCollectCount:
		return f.handleCollectCount(ctx, s, msg)
	case StCollectBed:
		return f.handleCollectBed(ctx, s, msg)
	case StCollectName:
		return f.handleContact(ctx, s, msg)
	case StCollectPhone:
		return f.handleCollectPhone(ctx, s, msg)
	case StCollectArrival:
		return f.handleCollectArrival(ctx, s, msg)
	case StCollectRequests:
		return f.handleCollectRequests(ctx, s, msg)
	case StConfirm:
		return f.handleConfirm(ctx, s, msg)
	default:
		return Result{}
	}
}

func (f *SameDay) handleAskDate(ctx context.Context, s *session.Session, msg string) Result {
	if r, ok := f.parkQuery(s, msg); ok {
		return r
	}
	normalized := intent.ConvertNumerals(msg)
	if containsAnyWord(normalized, futureDayWords) ||
		dateISORe2.MatchString(normalized) || dateSlashRe2.MatchString(normalized) ||
		dateCJKRe.MatchString(normalized) {
		s.State = session.Idle
		return Result{Reply: fmt.Sprintf("未來日期的訂房請透過官網預訂，可以看到完整房型與優惠價格：\n%s\n\n今晚臨時需要住宿的話，再跟我說「今天」就可以囉 😊", f.deps.BookingURL)}
	}
	if containsAnyWord(normalized, todayWords) {
		return f.showRooms(ctx, s)
	}
	return Result{}
}

// showRooms lists tonight's sellable rooms from live availability.
func (f *SameDay) showRooms(ctx context.Context, s *session.Session) Result {
	avail, err := f.deps.PMS.TodayAvailability(ctx)
	if err != nil {
		avail, err = f.deps.PMS.TodayAvailability(ctx)
	}
	if err != nil {
		log.Printf("same_day: availability: %v", err)
		s.State = session.Idle
		return Result{Reply: fmt.Sprintf("不好意思，目前查不到今晚的空房狀況 🙏\n\n請直接來電櫃檯 %s 為您確認。", f.deps.FrontDesk)}
	}

	counts := map[string]int{}
	prices := map[string]int{}
	for _, a := range avail {
		counts[a.RoomTypeCode] = a.AvailableCount
		if a.Price > 0 {
			prices[a.RoomTypeCode] = a.Price
		}
	}
	s.Set("avail", encodeIntMap(counts))
	s.Set("prices", encodeIntMap(prices))

	var lines []string
	for _, r := range rooms.SameDay {
		if f.familyAvailable(counts, r.Capacity) <= 0 {
			continue
		}
		lines = append(lines, fmt.Sprintf("🛏️ %s NT$ %s/晚（可住%d人）", r.Name, formatPrice(f.priceOf(prices, r)), r.Capacity))
	}
	if len(lines) == 0 {
		s.State = session.Idle
		return Result{Reply: fmt.Sprintf("不好意思，今晚已經客滿了 🙏\n\n您可以來電櫃檯 %s 候補，或透過官網預訂其他日期。", f.deps.FrontDesk)}
	}

	s.State = StCollectRoom
	// open an identity-only draft so the back office sees the conversation
	// even if the guest never picks a room
	f.relayDraft(ctx, s, "incomplete")
	return Result{Reply: "今晚尚有以下房型可供預訂：\n\n" + strings.Join(lines, "\n") +
		"\n\n請問您需要哪種房型、幾間呢？\n（例如：雙人房2間、四人房1間，也可以一次訂多種房型）"}
}

func (f *SameDay) handleCollectRoom(ctx context.Context, s *session.Session, msg string) Result {
	if r, ok := f.parkQuery(s, msg); ok {
		return r
	}
	normalized := intent.ConvertNumerals(msg)

	var entries []sdEntry
	matched := map[int]bool{}
	add := func(countStr, word string) {
		count := atoiSafe(countStr)
		capacity := capacityOfWord(word)
		if count <= 0 || capacity == 0 || matched[capacity] {
			return
		}
		matched[capacity] = true
		if sell := rooms.BySellableCapacity(capacity); sell != nil {
			entries = append(entries, f.newEntry(s, sell, count))
		}
	}
	for _, m := range roomPickRe.FindAllStringSubmatch(normalized, -1) {
		add(m[1], m[2])
	}
	for _, m := range roomPickRevRe.FindAllStringSubmatch(normalized, -1) {
		add(m[2], m[1])
	}
	if len(entries) == 0 {
		// a bare room-type word means one room of it
		if w := roomWordRe.FindString(normalized); w != "" {
			if sell := rooms.BySellableCapacity(capacityOfWord(w)); sell != nil {
				s.Set("picked_code", sell.Code)
				s.State = StCollectCount
				return Result{Reply: fmt.Sprintf("好的，%s！請問需要幾間呢？", sell.Name)}
			}
		}
		return Result{Reply: "不好意思，我沒看懂您要的房型 🙏\n\n請告訴我房型和間數，例如：雙人房2間、四人房1間。"}
	}
	return f.acceptEntries(ctx, s, entries)
}

func (f *SameDay) handleCollectCount(ctx context.Context, s *session.Session, msg string) Result {
	normalized := intent.ConvertNumerals(msg)
	count := atoiSafe(strings.TrimSpace(digitRunRe.FindString(normalized)))
	if count <= 0 {
		return Result{Reply: "請問需要幾間呢？直接回覆數字就可以囉。"}
	}
	code := s.GetString("picked_code")
	var sell *rooms.Sellable
	for i := range rooms.SameDay {
		if rooms.SameDay[i].Code == code {
			sell = &rooms.SameDay[i]
		}
	}
	if sell == nil {
		s.State = StCollectRoom
		return Result{Reply: "不好意思，請再選一次房型，例如：雙人房2間。"}
	}
	return f.acceptEntries(ctx, s, []sdEntry{f.newEntry(s, sell, count)})
}

// acceptEntries runs the shared volume and inventory checks, persists the
// draft, and moves on to bed selection.
func (f *SameDay) acceptEntries(ctx context.Context, s *session.Session, entries []sdEntry) Result {
	total := 0
	for _, e := range entries {
		total += e.Count
	}
	if total >= 5 {
		s.State = session.Idle
		return Result{Reply: fmt.Sprintf("一次預訂 5 間以上屬於團體訂房，建議透過官網或來電洽詢，能為您爭取更好的價格：\n%s\n\n櫃檯電話 %s", f.deps.BookingURL, f.deps.FrontDesk)}
	}

	counts := decodeIntMap(s.GetString("avail"))
	upgraded := false
	for i, e := range entries {
		exact := counts[e.Code]
		if e.Count <= exact {
			continue
		}
		if e.Count <= f.familyAvailable(counts, e.Capacity) {
			entries[i].Upgraded = true
			upgraded = true
			continue
		}
		have := f.familyAvailable(counts, e.Capacity)
		if have <= 0 {
			return Result{Reply: fmt.Sprintf("不好意思，今晚 %s 已經客滿了 🙏\n\n要不要看看其他房型呢？", e.Name)}
		}
		return Result{Reply: fmt.Sprintf("不好意思，今晚 %s 只剩 %d 間 🙏\n\n請問 %d 間可以嗎？或是搭配其他房型？", e.Name, have, have)}
	}

	saveEntries(s, entries)
	f.saveDraft(ctx, s, "incomplete")

	prefix := ""
	if upgraded {
		prefix = "今晚部分房間將以同價格升等為更高樓層房型 ✨\n\n"
	}
	s.Set("bed_idx", 0)
	s.State = StCollectBed
	return Result{Reply: prefix + f.bedPrompt(entries[0])}
}

func (f *SameDay) bedPrompt(e sdEntry) string {
	sell := rooms.BySellableCapacity(e.Capacity)
	if sell == nil || len(sell.Beds) == 0 {
		return ""
	}
	var opts []string
	for i, b := range sell.Beds {
		opts = append(opts, fmt.Sprintf("%d. %s", i+1, b))
	}
	return fmt.Sprintf("請問 %s 的床型要選哪一種呢？\n%s\n\n回覆編號或床型名稱都可以。", e.Name, strings.Join(opts, "\n"))
}

func (f *SameDay) handleCollectBed(ctx context.Context, s *session.Session, msg string) Result {
	entries := loadEntries(s)
	idx := intFromSlot(s.Data["bed_idx"])
	if idx >= len(entries) {
		return f.contactPrompt(s)
	}
	sell := rooms.BySellableCapacity(entries[idx].Capacity)
	if sell == nil {
		return f.contactPrompt(s)
	}

	// match before and after numeral conversion: bed names themselves carry
	// Chinese numerals (一大床), while picks may arrive as digits
	raw := strings.TrimSpace(msg)
	clean := strings.TrimSpace(intent.ConvertNumerals(raw))
	picked := ""
	for i, b := range sell.Beds {
		if clean == fmt.Sprintf("%d", i+1) || strings.Contains(raw, b) ||
			strings.Contains(clean, intent.ConvertNumerals(b)) {
			picked = b
			break
		}
	}
	if picked == "" {
		return Result{Reply: f.bedPrompt(entries[idx])}
	}

	entries[idx].Bed = picked
	saveEntries(s, entries)
	for next := idx + 1; next < len(entries); next++ {
		if rooms.BySellableCapacity(entries[next].Capacity) != nil {
			s.Set("bed_idx", next)
			return Result{Reply: fmt.Sprintf("%s 選 %s ✅\n\n", entries[idx].Name, picked) + f.bedPrompt(entries[next])}
		}
	}
	return f.contactPrompt(s)
}

func (f *SameDay) contactPrompt(s *session.Session) Result {
	s.State = StCollectName
	return Result{Reply: "好的，床型都記下了 ✅\n\n請提供訂房大名、聯絡電話與預計抵達時間。\n（例如：王小明 0912345678 晚上7點）"}
}

// handleContact accepts any combination of name, phone, and arrival time in
// one message and asks only for what is still missing.
func (f *SameDay) handleContact(ctx context.Context, s *session.Session, msg string) Result {
	if r, ok := f.parkQuery(s, msg); ok {
		return r
	}
	f.absorbContact(s, msg)
	return f.nextContactStep(s)
}

// absorbContact pulls phone, arrival, and name out of a free-form message.
func (f *SameDay) absorbContact(s *session.Session, msg string) {
	normalized := intent.ConvertNumerals(strings.NewReplacer("-", "", "(", "", ")", "").Replace(msg))

	rest := normalized
	if s.GetString("phone") == "" && s.GetString("pending_phone") == "" {
		if p := sdPhoneRe.FindString(rest); p != "" {
			if sdMobileRe.MatchString(p) {
				s.Set("phone", p)
			} else {
				s.Set("pending_phone", p)
			}
			rest = strings.Replace(rest, p, " ", 1)
		}
	}
	if s.GetString("arrival_time") == "" && s.GetString("arrival_raw") == "" {
		if seg := arrivalSegRe.FindString(rest); seg != "" {
			s.Set("arrival_raw", strings.TrimSpace(seg))
			rest = strings.Replace(rest, seg, " ", 1)
		}
	}
	if s.GetString("guest_name") == "" {
		for _, tok := range strings.Fields(rest) {
			tok = strings.Trim(tok, ",，、。!！?？")
			if nameRe.MatchString(tok) && !roomWordRe.MatchString(tok) {
				s.Set("guest_name", tok)
				break
			}
		}
	}
}

func (f *SameDay) nextContactStep(s *session.Session) Result {
	if s.GetString("guest_name") == "" {
		s.State = StCollectName
		return Result{Reply: "請問訂房大名是？"}
	}
	if pending := s.GetString("pending_phone"); pending != "" {
		s.State = StCollectPhone
		return Result{Reply: fmt.Sprintf("請問 %s 是您的聯絡電話嗎？\n\n是的話請回覆「是」，或直接提供手機號碼。", pending)}
	}
	if s.GetString("phone") == "" {
		s.State = StCollectPhone
		return Result{Reply: "請問您的聯絡電話是？（台灣手機 09 開頭 10 碼）"}
	}
	if raw := s.GetString("arrival_raw"); raw != "" {
		s.State = StCollectArrival
		return f.handleCollectArrival(context.Background(), s, raw)
	}
	if s.GetString("arrival_time") == "" {
		s.State = StCollectArrival
		return Result{Reply: "請問您預計幾點抵達飯店呢？（例如：下午3點、晚上7點）"}
	}
	s.State = StCollectRequests
	return Result{Reply: "都記下了 ✅\n\n請問還有什麼特殊需求嗎？（例如：嬰兒床、高樓層）\n沒有的話請回覆「沒有」。"}
}

func (f *SameDay) handleCollectPhone(ctx context.Context, s *session.Session, msg string) Result {
	if pending := s.GetString("pending_phone"); pending != "" {
		if intent.IsConfirmation(msg) {
			s.Set("phone", pending)
			s.Set("pending_phone", "")
			return f.nextContactStep(s)
		}
		if intent.IsRejection(msg) {
			s.Set("pending_phone", "")
			return Result{Reply: "好的，請提供正確的聯絡電話。"}
		}
	}
	normalized := strings.NewReplacer("-", "", " ", "").Replace(msg)
	if p := sdPhoneRe.FindString(normalized); p != "" {
		if sdMobileRe.MatchString(p) {
			s.Set("phone", p)
			s.Set("pending_phone", "")
			return f.nextContactStep(s)
		}
		s.Set("pending_phone", p)
		return Result{Reply: fmt.Sprintf("請問 %s 是您的聯絡電話嗎？\n\n是的話請回覆「是」，或直接提供手機號碼。", p)}
	}
	return Result{Reply: "不好意思，這個電話格式看起來不太對 🙏\n\n請提供台灣手機（09 開頭 10 碼）或市話號碼。"}
}

func (f *SameDay) handleCollectArrival(ctx context.Context, s *session.Session, msg string) Result {
	s.Set("arrival_raw", "")
	a := intent.EvaluateArrival(msg, f.deps.Now())
	if a.Reject != "" {
		return f.interrupt(ctx, s, fmt.Sprintf("不好意思，%s 🙏\n\n如有需要請來電櫃檯 %s 為您安排。", a.Reject, f.deps.FrontDesk))
	}
	if a.Vague || (!a.Soon && a.Hour < 0) {
		return Result{Reply: "好的！請問大約幾點呢？例如：下午3點、晚上7點。"}
	}
	s.Set("arrival_time", a.Raw)
	f.saveDraft(ctx, s, "pending")
	s.State = StCollectRequests
	return Result{Reply: "已記錄您的抵達時間 ✅\n\n請問還有什麼特殊需求嗎？（例如：嬰兒床、高樓層）\n沒有的話請回覆「沒有」。"}
}

func (f *SameDay) handleCollectRequests(ctx context.Context, s *session.Session, msg string) Result {
	if !intent.IsNone(msg) {
		req := intent.ExtractSpecialRequest(msg)
		if req == "" {
			req = strings.TrimSpace(msg)
		}
		s.Set("requests", append(s.GetStrings("requests"), req))
	}
	s.State = StConfirm
	return Result{Reply: f.summary(s) + "\n\n確認預訂請回覆「1」，取消請回覆「2」。"}
}

func (f *SameDay) handleConfirm(ctx context.Context, s *session.Session, msg string) Result {
	clean := strings.TrimSpace(msg)
	switch {
	case clean == "1" || intent.IsConfirmation(msg):
		return f.commit(ctx, s)
	case clean == "2" || intent.IsRejection(msg):
		f.saveDraft(ctx, s, "cancelled")
		s.State = session.Idle
		s.Data = map[string]interface{}{}
		return Result{Reply: "好的，已為您取消這次預訂 👌\n\n隨時歡迎再跟我訂房！"}
	default:
		return Result{Reply: "請回覆「1」確認預訂，或「2」取消。"}
	}
}

func (f *SameDay) summary(s *session.Session) string {
	entries := loadEntries(s)
	var roomLines []string
	total := 0
	for _, e := range entries {
		line := fmt.Sprintf("%s x%d", e.Name, e.Count)
		if e.Bed != "" {
			line += fmt.Sprintf("（%s）", e.Bed)
		}
		roomLines = append(roomLines, line)
		total += e.Price * e.Count
	}
	requests := strings.Join(s.GetStrings("requests"), "、")
	if requests == "" {
		requests = "無"
	}
	return fmt.Sprintf("請確認您的預訂內容：\n\n🏨 房型：%s\n👤 訂房大名：%s\n📞 聯絡電話：%s\n🕐 預計抵達：%s\n📝 特殊需求：%s\n💰 房價合計：NT$ %s（現場付款）",
		strings.Join(roomLines, "、"), s.GetString("guest_name"), s.GetString("phone"),
		s.GetString("arrival_time"), requests, formatPrice(total))
}

// commit creates one PMS booking per room entry. The caller-supplied item
// id makes the retry safe.
func (f *SameDay) commit(ctx context.Context, s *session.Session) Result {
	anchor := s.GetString("anchor")
	entries := loadEntries(s)
	name := s.GetString("guest_name")
	phone := s.GetString("phone")
	arrival := s.GetString("arrival_time")
	requests := strings.Join(s.GetStrings("requests"), "、")
	now := f.deps.Now()

	total := 0
	for k, e := range entries {
		itemID := fmt.Sprintf("%s-%d", anchor, k+1)
		payload := pms.SameDayBooking{
			OrderID:         anchor,
			ItemID:          itemID,
			RoomTypeCode:    e.Code,
			RoomTypeName:    e.Name,
			RoomCount:       e.Count,
			BedType:         e.Bed,
			SpecialRequests: requests,
			Nights:          1,
			GuestName:       name,
			Phone:           phone,
			ArrivalTime:     arrival,
			Status:          "committed",
			LineUserID:      s.UserID,
			LineDisplayName: s.DisplayName,
		}
		_, err := f.deps.PMS.CreateSameDay(ctx, payload)
		if err != nil {
			_, err = f.deps.PMS.CreateSameDay(ctx, payload)
		}
		if err != nil {
			log.Printf("same_day: commit %s: %v", itemID, err)
			f.saveDraft(ctx, s, "interrupted")
			s.State = session.Idle
			return Result{Reply: fmt.Sprintf("不好意思，預訂送出時發生問題 🙏\n\n您的資料已保留，請來電櫃檯 %s，報上大名即可完成預訂。", f.deps.FrontDesk)}
		}
		total += e.Price * e.Count
	}
	f.saveDraft(ctx, s, "committed")

	checkIn := now.Format("2006-01-02")
	checkOut := now.AddDate(0, 0, 1).Format("2006-01-02")
	var codes []string
	for _, e := range entries {
		for i := 0; i < e.Count; i++ {
			codes = append(codes, e.Code)
		}
	}
	row := models.GuestOrder{
		OrderID:         anchor,
		TenantID:        f.deps.TenantID,
		LineUserID:      s.UserID,
		LineName:        s.DisplayName,
		GuestName:       name,
		Phone:           phone,
		CheckIn:         checkIn,
		CheckOut:        checkOut,
		Nights:          1,
		RoomType:        orders.MergeRoomTypes(codes),
		BookingSource:   "LINE當日預訂",
		Status:          "active",
		ConfirmedPhone:  phone,
		ArrivalTime:     arrival,
		SpecialRequests: requests,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := orders.SaveLog(f.deps.DB, row); err != nil {
		log.Printf("same_day: save log %s: %v", anchor, err)
	}
	f.scheduleReview(s, row)

	reply := fmt.Sprintf("🎉 預訂成功！\n\n%s\n📋 訂單編號：%s\n\n⚠️ 當日預訂注意事項\n• 入住時間為 15:00 後，退房時間為隔日 11:00 前\n• 請於預計抵達時間前往櫃檯辦理入住，房費於現場支付\n• 如需取消或變更，請來電櫃檯 %s\n\n期待您今晚的光臨！",
		f.summary(s), anchor, f.deps.FrontDesk)
	s.Data = map[string]interface{}{}
	return Result{Reply: finishPending(s, reply)}
}

func (f *SameDay) scheduleReview(s *session.Session, row models.GuestOrder) {
	if f.deps.Engine == nil {
		return
	}
	now := f.deps.Now()
	co, err := time.ParseInLocation("2006-01-02", row.CheckOut, now.Location())
	if err != nil {
		return
	}
	payload := encodePayload(scheduler.ReminderPayload{
		UserID:    s.UserID,
		OrderID:   row.OrderID,
		GuestName: row.GuestName,
		CheckIn:   row.CheckIn,
		CheckOut:  row.CheckOut,
		RoomType:  row.RoomType,
	})
	key := scheduler.IdempotencyKey(f.deps.TenantID, s.UserID, scheduler.JobReviewRequest, row.CheckOut)
	if _, err := f.deps.Engine.Schedule(scheduler.JobReviewRequest, f.deps.TenantID, scheduler.ReviewRequestAt(co), payload, key, scheduler.ScheduleOpts{}); err != nil {
		log.Printf("same_day: schedule review request: %v", err)
	}
}

// interrupt keeps the draft recoverable and closes the conversation.
func (f *SameDay) interrupt(ctx context.Context, s *session.Session, reply string) Result {
	if len(loadEntries(s)) > 0 {
		f.saveDraft(ctx, s, "interrupted")
	} else if s.GetString("anchor") != "" && s.State != StAskDate {
		f.relayDraft(ctx, s, "interrupted")
	}
	s.State = session.Idle
	s.Data = map[string]interface{}{}
	return Result{Reply: reply}
}

// saveDraft mirrors the current entries into same-day item rows and relays
// the snapshot to the PMS.
func (f *SameDay) saveDraft(ctx context.Context, s *session.Session, status string) {
	anchor := s.GetString("anchor")
	if anchor == "" {
		return
	}
	defer f.relayDraft(ctx, s, status)
	if err := f.deps.DB.Where("order_id = ?", anchor).Delete(&models.SameDayItem{}).Error; err != nil {
		log.Printf("same_day: clear draft %s: %v", anchor, err)
		return
	}
	now := f.deps.Now()
	for k, e := range loadEntries(s) {
		row := models.SameDayItem{
			ItemID:       fmt.Sprintf("%s-%d", anchor, k+1),
			OrderID:      anchor,
			TenantID:     f.deps.TenantID,
			LineUserID:   s.UserID,
			RoomTypeCode: e.Code,
			RoomTypeName: e.Name,
			RoomCount:    e.Count,
			BedType:      e.Bed,
			Price:        e.Price,
			GuestName:    s.GetString("guest_name"),
			Phone:        s.GetString("phone"),
			ArrivalTime:  s.GetString("arrival_time"),
			Requests:     strings.Join(s.GetStrings("requests"), "、"),
			Status:       status,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := f.deps.DB.Create(&row).Error; err != nil {
			log.Printf("same_day: save draft %s: %v", row.ItemID, err)
		}
	}
}

// relayDraft pushes the draft snapshot to the PMS so the back office can
// watch a booking take shape, or stall, as the guest types. Before any room
// is picked the snapshot is identity only. Best effort; the item ids make
// each push an upsert on the PMS side.
func (f *SameDay) relayDraft(ctx context.Context, s *session.Session, status string) {
	anchor := s.GetString("anchor")
	if anchor == "" {
		return
	}
	base := pms.SameDayBooking{
		OrderID:         anchor,
		Nights:          1,
		GuestName:       s.GetString("guest_name"),
		Phone:           s.GetString("phone"),
		ArrivalTime:     s.GetString("arrival_time"),
		SpecialRequests: strings.Join(s.GetStrings("requests"), "、"),
		Status:          status,
		LineUserID:      s.UserID,
		LineDisplayName: s.DisplayName,
	}
	entries := loadEntries(s)
	payloads := make([]pms.SameDayBooking, 0, len(entries)+1)
	if len(entries) == 0 {
		p := base
		p.ItemID = anchor + "-1"
		payloads = append(payloads, p)
	}
	for k, e := range entries {
		p := base
		p.ItemID = fmt.Sprintf("%s-%d", anchor, k+1)
		p.RoomTypeCode = e.Code
		p.RoomTypeName = e.Name
		p.RoomCount = e.Count
		p.BedType = e.Bed
		payloads = append(payloads, p)
	}
	for _, p := range payloads {
		if _, err := f.deps.PMS.CreateSameDay(ctx, p); err != nil {
			log.Printf("same_day: relay draft %s: %v", p.ItemID, err)
		}
	}
}

// parkQuery records an order-query intent raised mid-booking for later.
func (f *SameDay) parkQuery(s *session.Session, msg string) (Result, bool) {
	if s.PendingIntent != "" {
		return Result{}, false
	}
	if !intent.HasOrderNumber(msg) && !intent.IsQueryIntent(msg) {
		return Result{}, false
	}
	s.PendingIntent = OrderQueryFlow
	s.PendingIntentMessage = msg
	return Result{Reply: "收到！我們先完成目前的訂房流程，結束後立刻幫您查詢訂單 🙌"}, true
}

func (f *SameDay) isSoftExit(msg string) bool {
	clean := strings.TrimSpace(msg)
	for _, w := range softExitWords {
		if strings.Contains(clean, w) {
			return true
		}
	}
	return false
}

func (f *SameDay) newEntry(s *session.Session, sell *rooms.Sellable, count int) sdEntry {
	prices := decodeIntMap(s.GetString("prices"))
	return sdEntry{
		Code:     sell.Code,
		Name:     sell.Name,
		Count:    count,
		Price:    f.priceOf(prices, *sell),
		Capacity: sell.Capacity,
	}
}

func (f *SameDay) priceOf(prices map[string]int, sell rooms.Sellable) int {
	if p, ok := prices[sell.Code]; ok && p > 0 {
		return p
	}
	return sell.Price
}

// familyAvailable sums availability over the upgrade family for a capacity,
// keeping accessible rooms out of the general pool.
func (f *SameDay) familyAvailable(counts map[string]int, capacity int) int {
	total := 0
	for _, code := range rooms.UpgradeFamilies[capacity] {
		if rooms.Accessible[code] {
			continue
		}
		total += counts[code]
	}
	return total
}

func capacityOfWord(w string) int {
	switch {
	case strings.Contains(w, "雙") || strings.Contains(w, "2"):
		return 2
	case strings.Contains(w, "三") || strings.Contains(w, "3"):
		return 3
	case strings.Contains(w, "四") || strings.Contains(w, "4"):
		return 4
	}
	return 0
}

func containsAnyWord(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func atoiSafe(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
		if n > 99 {
			return 99
		}
	}
	return n
}

// formatPrice renders 2800 as "2,800".
func formatPrice(n int) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

func saveEntries(s *session.Session, entries []sdEntry) {
	buf, err := json.Marshal(entries)
	if err != nil {
		return
	}
	s.Set("entries", string(buf))
}

func loadEntries(s *session.Session) []sdEntry {
	raw := s.GetString("entries")
	if raw == "" {
		return nil
	}
	var entries []sdEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil
	}
	return entries
}

func encodeIntMap(m map[string]int) string {
	buf, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return string(buf)
}

func decodeIntMap(raw string) map[string]int {
	m := map[string]int{}
	if raw != "" {
		_ = json.Unmarshal([]byte(raw), &m)
	}
	return m
}
