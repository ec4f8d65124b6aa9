package flow

import (
	"context"
	"strings"
	"testing"

	"github.com/ktwhotel/concierge/internal/orders"
	"github.com/ktwhotel/concierge/internal/pms"
	"github.com/ktwhotel/concierge/internal/session"
	"github.com/ktwhotel/concierge/internal/weather"
)

func seedStandardBooking(env *testEnv) {
	env.pms.SeedBooking("1671721966", &pms.Booking{
		BookingID:    "1671721966",
		OTABookingID: "RMAG250277285",
		GuestName:    "王小明",
		ContactPhone: "0287654321",
		CheckInDate:  "2026-08-31",
		CheckOutDate: "2026-09-01",
		Nights:       1,
		StatusCode:   "N",
		Remarks:      "Agoda 訂單",
		Rooms:        []pms.Room{{RoomTypeCode: "SD", Count: 1}},
	})
}

func TestOrderQueryHappyPath(t *testing.T) {
	env := newTestEnv(t)
	seedStandardBooking(env)
	env.deps.Weather = &weather.Mock{ByDate: map[string]*weather.Forecast{
		"2026-08-31": {Date: "2026-08-31", Weather: "多雲時晴", MinTemp: "26", MaxTemp: "32", RainPct: "30"},
	}}
	f, err := NewOrderQuery(env.deps)
	if err != nil {
		t.Fatalf("NewOrderQuery: %v", err)
	}
	ctx := context.Background()
	s := newTestSession()

	r := f.Start(ctx, s, "1671721966")
	if !strings.Contains(r.Reply, "我幫您找到了這筆訂單") {
		t.Fatalf("Start reply = %q", r.Reply)
	}
	if s.State != StConfirming {
		t.Fatalf("state = %q, want %q", s.State, StConfirming)
	}

	r = f.Handle(ctx, s, "是")
	if s.State != StCollectingPhone {
		t.Fatalf("state = %q, want %q", s.State, StCollectingPhone)
	}
	if !strings.Contains(r.Reply, "0287654321") {
		t.Errorf("phone prompt missing phone on file: %q", r.Reply)
	}

	r = f.Handle(ctx, s, "0912345678")
	if s.State != StCollectingArrival {
		t.Fatalf("state = %q, want %q", s.State, StCollectingArrival)
	}

	r = f.Handle(ctx, s, "晚上7點")
	if s.State != StCollectingSpecial {
		t.Fatalf("state = %q, want %q", s.State, StCollectingSpecial)
	}

	r = f.Handle(ctx, s, "沒有")
	if s.State != session.Idle {
		t.Errorf("state = %q, want idle", s.State)
	}
	if !strings.Contains(r.Reply, "已為您完成預訂資訊確認") {
		t.Errorf("closure missing: %q", r.Reply)
	}
	if !strings.Contains(r.Reply, "溫馨提醒") || !strings.Contains(r.Reply, "多雲時晴") {
		t.Errorf("closure missing weather line: %q", r.Reply)
	}

	sup, ok := env.pms.SupplementFor("1671721966")
	if !ok {
		t.Fatal("no supplement written")
	}
	if sup.ConfirmedPhone != "0912345678" || sup.ArrivalTime != "晚上7點" {
		t.Errorf("supplement = %+v", sup)
	}
	if sup.LineName != "小明" {
		t.Errorf("supplement LineName = %q", sup.LineName)
	}

	// the local log resolves by either id
	row, err := orders.FindLog(env.db, "250277285")
	if err != nil {
		t.Fatalf("FindLog: %v", err)
	}
	if row == nil || row.ConfirmedPhone != "0912345678" {
		t.Errorf("log row = %+v", row)
	}

	// check-in, check-out, and review jobs all land in the future
	if n := env.jobCount(t, ""); n != 3 {
		t.Errorf("scheduled jobs = %d, want 3", n)
	}
}

func TestOrderQueryCancelledOrder(t *testing.T) {
	env := newTestEnv(t)
	env.pms.SeedBooking("1671721966", &pms.Booking{
		BookingID:    "1671721966",
		GuestName:    "王小明",
		CheckInDate:  "2026-08-31",
		CheckOutDate: "2026-09-01",
		StatusCode:   "D",
	})
	f, _ := NewOrderQuery(env.deps)
	s := newTestSession()

	r := f.Start(context.Background(), s, "1671721966")
	if !strings.Contains(r.Reply, "已取消") || !strings.Contains(r.Reply, "08-8821234") {
		t.Errorf("cancelled reply = %q", r.Reply)
	}
	if s.State != session.Idle {
		t.Errorf("state = %q, want idle", s.State)
	}
}

func TestOrderQueryNotFoundParksThenMergesOnMatch(t *testing.T) {
	env := newTestEnv(t)
	f, _ := NewOrderQuery(env.deps)
	ctx := context.Background()
	s := newTestSession()

	r := f.Start(ctx, s, "250277285")
	if !strings.Contains(r.Reply, "找不到訂單編號 250277285") {
		t.Fatalf("not-found reply = %q", r.Reply)
	}
	rows, err := env.deps.Pending.Find(s.UserID)
	if err != nil {
		t.Fatalf("pending Find: %v", err)
	}
	if len(rows) != 1 || rows[0].ProvidedOrderID != "250277285" {
		t.Fatalf("pending rows = %+v", rows)
	}

	// slots gathered before the id could be resolved
	if err := env.deps.Pending.Park(s.UserID, "250277285", "小明", "", "", "需要嬰兒床"); err != nil {
		t.Fatalf("Park: %v", err)
	}

	// the order shows up in the PMS later, under its internal id
	seedStandardBooking(env)
	f.Start(ctx, s, "1671721966")
	f.Handle(ctx, s, "是")
	f.Handle(ctx, s, "0912345678")
	f.Handle(ctx, s, "晚上7點")
	f.Handle(ctx, s, "沒有")

	sup, ok := env.pms.SupplementFor("1671721966")
	if !ok {
		t.Fatal("no supplement written")
	}
	found := false
	for _, req := range sup.AIExtractedRequests {
		if strings.Contains(req, "嬰兒床") {
			found = true
		}
	}
	if !found {
		t.Errorf("parked request not merged: %+v", sup.AIExtractedRequests)
	}

	rows, _ = env.deps.Pending.Find(s.UserID)
	if len(rows) != 0 {
		t.Errorf("pending rows after match = %+v", rows)
	}
}

func TestOrderQueryPhoneDisambiguation(t *testing.T) {
	env := newTestEnv(t)
	seedStandardBooking(env)
	f, _ := NewOrderQuery(env.deps)
	ctx := context.Background()
	s := newTestSession()

	f.Start(ctx, s, "1671721966")
	f.Handle(ctx, s, "是")

	// re-sending the current id is not a new query; ask what it is
	r := f.Handle(ctx, s, "1671721966")
	if !strings.Contains(r.Reply, "是訂單編號還是電話號碼") {
		t.Errorf("disambiguation reply = %q", r.Reply)
	}
	if s.State != StCollectingPhone {
		t.Errorf("state = %q, want %q", s.State, StCollectingPhone)
	}
	if s.PendingIntent != "" {
		t.Errorf("ambiguous digits parked an intent: %q", s.PendingIntent)
	}

	r = f.Handle(ctx, s, "0912345678")
	if s.State != StCollectingArrival {
		t.Errorf("state = %q, want %q", s.State, StCollectingArrival)
	}
}

func TestOrderQueryBareDigitsMidPhoneParkNewOrder(t *testing.T) {
	env := newTestEnv(t)
	seedStandardBooking(env)
	f, _ := NewOrderQuery(env.deps)
	ctx := context.Background()
	s := newTestSession()

	f.Start(ctx, s, "1671721966")
	f.Handle(ctx, s, "是")

	r := f.Handle(ctx, s, "250277285")
	if s.PendingIntent != OrderQueryFlow {
		t.Fatalf("PendingIntent = %q, want %q", s.PendingIntent, OrderQueryFlow)
	}
	if s.PendingIntentMessage != "250277285" {
		t.Errorf("PendingIntentMessage = %q, want %q", s.PendingIntentMessage, "250277285")
	}
	if !strings.Contains(r.Reply, "先完成目前這筆") || !strings.Contains(r.Reply, "聯絡電話") {
		t.Errorf("park reply = %q", r.Reply)
	}
	if s.State != StCollectingPhone {
		t.Errorf("state = %q, want %q", s.State, StCollectingPhone)
	}
}

func TestOrderQueryNewOrderMidPhoneParksAndResumes(t *testing.T) {
	env := newTestEnv(t)
	seedStandardBooking(env)
	f, _ := NewOrderQuery(env.deps)
	ctx := context.Background()
	s := newTestSession()

	f.Start(ctx, s, "1671721966")
	f.Handle(ctx, s, "是")

	r := f.Handle(ctx, s, "幫我查另一筆訂單 1755443322")
	if !strings.Contains(r.Reply, "1755443322") || !strings.Contains(r.Reply, "先完成目前這筆") {
		t.Fatalf("park reply = %q", r.Reply)
	}
	if s.PendingIntent != OrderQueryFlow {
		t.Fatalf("PendingIntent = %q, want %q", s.PendingIntent, OrderQueryFlow)
	}
	if s.State != StCollectingPhone {
		t.Fatalf("state = %q, want %q", s.State, StCollectingPhone)
	}

	f.Handle(ctx, s, "0912345678")
	f.Handle(ctx, s, "晚上7點")
	r = f.Handle(ctx, s, "沒有")

	if !strings.Contains(r.Reply, "查詢訂單") || !strings.Contains(r.Reply, "━━") {
		t.Errorf("closure missing resume prompt: %q", r.Reply)
	}
	if s.PendingIntent != "" || s.State != session.Idle {
		t.Errorf("pending intent not consumed: %q / %q", s.PendingIntent, s.State)
	}
}

func TestOrderQueryBookingIntentMidConfirmResumesIntoBooking(t *testing.T) {
	env := newTestEnv(t)
	seedStandardBooking(env)
	f, _ := NewOrderQuery(env.deps)
	ctx := context.Background()
	s := newTestSession()

	f.Start(ctx, s, "1671721966")
	r := f.Handle(ctx, s, "今晚想加訂一間房")
	if !strings.Contains(r.Reply, "先繼續目前的確認流程") {
		t.Fatalf("park reply = %q", r.Reply)
	}
	if s.PendingIntent != SameDayFlow {
		t.Fatalf("PendingIntent = %q, want %q", s.PendingIntent, SameDayFlow)
	}

	f.Handle(ctx, s, "是")
	f.Handle(ctx, s, "0912345678")
	f.Handle(ctx, s, "晚上7點")
	r = f.Handle(ctx, s, "沒有")

	if !strings.Contains(r.Reply, "加訂需求") {
		t.Errorf("closure missing resume prompt: %q", r.Reply)
	}
	if s.State != StAskDate {
		t.Errorf("state = %q, want %q", s.State, StAskDate)
	}
}

func TestOrderQuerySpecialRequestDuringConfirm(t *testing.T) {
	env := newTestEnv(t)
	seedStandardBooking(env)
	f, _ := NewOrderQuery(env.deps)
	ctx := context.Background()
	s := newTestSession()

	f.Start(ctx, s, "1671721966")
	r := f.Handle(ctx, s, "我需要嬰兒床")
	if !strings.Contains(r.Reply, "已為您記錄需求") {
		t.Fatalf("request reply = %q", r.Reply)
	}
	if s.State != StConfirming {
		t.Fatalf("state = %q, want %q", s.State, StConfirming)
	}

	f.Handle(ctx, s, "是")
	f.Handle(ctx, s, "0912345678")
	f.Handle(ctx, s, "晚上7點")
	f.Handle(ctx, s, "沒有")

	sup, _ := env.pms.SupplementFor("1671721966")
	if len(sup.AIExtractedRequests) != 1 || !strings.Contains(sup.AIExtractedRequests[0], "嬰兒床") {
		t.Errorf("requests = %+v", sup.AIExtractedRequests)
	}
	// requests carry the capture timestamp
	if !strings.Contains(sup.AIExtractedRequests[0], "[08/30 10:00]") {
		t.Errorf("request not stamped: %q", sup.AIExtractedRequests[0])
	}
}

func TestOrderQueryRejectionResets(t *testing.T) {
	env := newTestEnv(t)
	seedStandardBooking(env)
	f, _ := NewOrderQuery(env.deps)
	ctx := context.Background()
	s := newTestSession()

	f.Start(ctx, s, "1671721966")
	r := f.Handle(ctx, s, "不是")
	if s.State != session.Idle {
		t.Errorf("state = %q, want idle", s.State)
	}
	if !strings.Contains(r.Reply, "重新查詢") {
		t.Errorf("reset reply = %q", r.Reply)
	}
}

func TestOrderQueryRetriesLookupOnce(t *testing.T) {
	env := newTestEnv(t)
	seedStandardBooking(env)
	env.pms.FailNext(context.DeadlineExceeded)
	f, _ := NewOrderQuery(env.deps)
	s := newTestSession()

	r := f.Start(context.Background(), s, "1671721966")
	if !strings.Contains(r.Reply, "我幫您找到了這筆訂單") {
		t.Errorf("retry did not recover: %q", r.Reply)
	}
}

func TestOrderQueryShortDigitsBlocked(t *testing.T) {
	env := newTestEnv(t)
	f, _ := NewOrderQuery(env.deps)
	s := newTestSession()

	r := f.Start(context.Background(), s, "1234")
	if !strings.Contains(r.Reply, "請您確認訂單編號後再試一次") {
		t.Errorf("blocked reply = %q", r.Reply)
	}
	rows, err := env.deps.Pending.Find(s.UserID)
	if err != nil {
		t.Fatalf("pending Find: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("blocked input was parked: %+v", rows)
	}
}
