package intent

import (
	"testing"
	"time"
)

func TestConvertNumerals(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"下午三點", "下午3點"},
		{"晚上十二點", "晚上12點"},
		{"十一點", "11點"},
		{"十點", "10點"},
		{"兩間雙人房", "2間雙人房"},
		{"19:00", "19:00"},
	}
	for _, tt := range tests {
		if got := ConvertNumerals(tt.in); got != tt.want {
			t.Errorf("ConvertNumerals(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsValidTimeFormat(t *testing.T) {
	tests := []struct {
		msg  string
		want bool
	}{
		{"下午3點", true},
		{"晚上七點", true},
		{"19:00", true},
		{"等一下", true},
		{"馬上到", true},
		{"大約5點左右", true},
		{"250277285", false}, // order id, 8+ digits
		{"0912345678", false},
		{"12/25", false}, // date literal
		{"2025-12-25", false},
		{"好的", false},
	}
	for _, tt := range tests {
		if got := IsValidTimeFormat(tt.msg); got != tt.want {
			t.Errorf("IsValidTimeFormat(%q) = %v, want %v", tt.msg, got, tt.want)
		}
	}
}

func TestIsVagueTime(t *testing.T) {
	tests := []struct {
		msg  string
		want bool
	}{
		{"下午", true},
		{"晚上", true},
		{"下午3點", false},
		{"晚上七點", false}, // numeral converts before the check
		{"馬上", false},   // soon counts as concrete
		{"", true},
	}
	for _, tt := range tests {
		if got := IsVagueTime(tt.msg); got != tt.want {
			t.Errorf("IsVagueTime(%q) = %v, want %v", tt.msg, got, tt.want)
		}
	}
}

func TestEvaluateArrival(t *testing.T) {
	now := time.Date(2026, 8, 30, 10, 0, 0, 0, time.Local)

	tests := []struct {
		msg        string
		wantHour   int
		wantSoon   bool
		wantVague  bool
		wantReject bool
	}{
		{"晚上7點", 19, false, false, false},
		{"下午3點", 15, false, false, false},
		{"晚上十點", 22, false, false, true}, // 22:00 cutoff
		{"凌晨2點", 2, false, false, true},
		{"明天下午", -1, false, false, true},
		{"馬上", -1, true, false, false},
		{"30分鐘後", -1, true, false, false},
		{"下午", -1, false, true, false},
		{"早上8點", 8, false, false, true}, // already past 10:00
		{"19:30", 19, false, false, false},
	}
	for _, tt := range tests {
		a := EvaluateArrival(tt.msg, now)
		if a.Soon != tt.wantSoon || a.Vague != tt.wantVague || (a.Reject != "") != tt.wantReject {
			t.Errorf("EvaluateArrival(%q) = %+v, want soon=%v vague=%v reject=%v",
				tt.msg, a, tt.wantSoon, tt.wantVague, tt.wantReject)
		}
		if !tt.wantSoon && !tt.wantVague && !tt.wantReject && a.Hour != tt.wantHour {
			t.Errorf("EvaluateArrival(%q).Hour = %d, want %d", tt.msg, a.Hour, tt.wantHour)
		}
	}
}
