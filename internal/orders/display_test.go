package orders

import (
	"strings"
	"testing"
)

func TestCleanOTAID(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{"RMAG12345", "12345"},
		{"RMPGP250277285", "250277285"},
		{"1671721966", "1671721966"},
	}
	for _, tt := range tests {
		if got := CleanOTAID(tt.id); got != tt.want {
			t.Errorf("CleanOTAID(%q) = %q, want %q", tt.id, got, tt.want)
		}
	}
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"0912345678", "0912345678"},
		{"0912-345-678", "0912345678"},
		{"886912345678", "0912345678"}, // rebuilt from the last nine digits
		{"+886 912 345 678", "0912345678"},
		{"12", "12"}, // too short to rebuild, returned as-is
	}
	for _, tt := range tests {
		if got := NormalizePhone(tt.raw); got != tt.want {
			t.Errorf("NormalizePhone(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestDetectBookingSource(t *testing.T) {
	tests := []struct {
		remarks string
		otaID   string
		want    string
	}{
		{"官網訂購", "", "官網"},
		{"", "RMPGP12345", "官網"},
		{"", "RMAG12345", "Agoda"},
		{"Booking.com reservation", "", "Booking"},
		{"", "RMBK9987", "Booking"},
		{"expedia 訂單", "", "Expedia"},
		{"trip.com", "", "Trip.com"},
		{"電話訂房", "", "其他"},
	}
	for _, tt := range tests {
		if got := DetectBookingSource(tt.remarks, tt.otaID, ""); got != tt.want {
			t.Errorf("DetectBookingSource(%q, %q) = %q, want %q", tt.remarks, tt.otaID, got, tt.want)
		}
	}
}

func TestMergeRoomTypes(t *testing.T) {
	tests := []struct {
		codes []string
		want  string
	}{
		{[]string{"SD"}, "標準雙人房 x1"},
		{[]string{"SD", "SD"}, "標準雙人房 x2"},
		{[]string{"SD", "SQ", "SD"}, "標準雙人房 x2、標準四人房 x1"},
		{[]string{"ZZ"}, "ZZ x1"}, // unknown code falls back to itself
		{nil, ""},
	}
	for _, tt := range tests {
		if got := MergeRoomTypes(tt.codes); got != tt.want {
			t.Errorf("MergeRoomTypes(%v) = %q, want %q", tt.codes, got, tt.want)
		}
	}
}

func TestDisplayID(t *testing.T) {
	v := View{OrderID: "1671721966", OTABookingID: "RMAG250277285"}
	if got := DisplayID(v, "250277285"); got != "250277285" {
		t.Errorf("DisplayID with matching OTA id = %q, want 250277285", got)
	}
	if got := DisplayID(v, "1671721966"); got != "1671721966" {
		t.Errorf("DisplayID with internal id = %q, want 1671721966", got)
	}
	if got := DisplayID(View{OrderID: "555666777"}, "555666777"); got != "555666777" {
		t.Errorf("DisplayID without OTA id = %q, want 555666777", got)
	}
}

func TestFormat(t *testing.T) {
	v := View{
		OrderID:   "1671721966",
		GuestName: "王小明",
		Phone:     "0912345678",
		CheckIn:   "2026-09-01",
		CheckOut:  "2026-09-03",
		Nights:    2,
		RoomType:  "標準雙人房 x1",
		Remarks:   "官網訂購 不含早",
	}
	got := Format(v, "1671721966")

	lines := strings.Split(got, "\n")
	if len(lines) != 8 {
		t.Fatalf("Format returned %d lines, want 8:\n%s", len(lines), got)
	}
	wantLines := []string{
		"訂單來源: 官網",
		"預約編號: 1671721966",
		"訂房人姓名: 王小明",
		"聯絡電話: 0912345678",
		"入住日期: 2026-09-01",
		"退房日期: 2026-09-03 (共 2 晚)",
		"房型: 標準雙人房 x1",
		"早餐: 不含早餐",
	}
	for i, want := range wantLines {
		if lines[i] != want {
			t.Errorf("line %d = %q, want %q", i+1, lines[i], want)
		}
	}
}

func TestFormatMissingFields(t *testing.T) {
	got := Format(View{OrderID: "99999"}, "99999")
	for _, want := range []string{"訂房人姓名: 未提供", "聯絡電話: 未提供", "房型: 未知", "早餐: 含早餐"} {
		if !strings.Contains(got, want) {
			t.Errorf("Format missing %q in:\n%s", want, got)
		}
	}
}

func TestFullName(t *testing.T) {
	if got := FullName("王", "小明", "fallback"); got != "王小明" {
		t.Errorf("FullName = %q, want 王小明", got)
	}
	if got := FullName("", "", "林大華"); got != "林大華" {
		t.Errorf("FullName fallback = %q, want 林大華", got)
	}
}

func TestClosureDefaultsSpecial(t *testing.T) {
	got := Closure("12345", "2026-09-01", "0912345678", "晚上7點", "")
	if !strings.Contains(got, "特殊需求: 無") {
		t.Error("Closure should default empty special requests to 無")
	}
	if !strings.Contains(got, "環保政策提醒") || !strings.Contains(got, "停車流程提醒") {
		t.Error("Closure should carry the policy blocks")
	}
}

func TestResumeMessage(t *testing.T) {
	if got := ResumeMessage("same_day_booking"); !strings.Contains(got, "加訂需求") {
		t.Errorf("ResumeMessage(same_day_booking) = %q", got)
	}
	if got := ResumeMessage("order_query"); !strings.Contains(got, "查詢訂單") {
		t.Errorf("ResumeMessage(order_query) = %q", got)
	}
	if got := ResumeMessage("other"); got != "" {
		t.Errorf("ResumeMessage(other) = %q, want empty", got)
	}
}
