package privacy

import (
	"testing"
	"time"
)

func TestCheckInput(t *testing.T) {
	tests := []struct {
		identifier string
		wantBlock  bool
	}{
		{"1671721966", false},
		{"RMAG12345", false},
		{"12/25", true},      // date literal
		{"2025-12-25", true}, // ISO date literal
		{"1234", true},       // fewer than five digits
		{"王小明", true},        // no digits at all
		{"abc99999", false},
	}
	for _, tt := range tests {
		err := CheckInput(tt.identifier)
		if (err != nil) != tt.wantBlock {
			t.Errorf("CheckInput(%q) = %v, want blocked=%v", tt.identifier, err, tt.wantBlock)
		}
		if err != nil && err != ErrBlocked {
			t.Errorf("CheckInput(%q) = %v, want ErrBlocked", tt.identifier, err)
		}
	}
}

func TestCheckCheckIn(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.Local)

	tests := []struct {
		checkIn   string
		wantBlock bool
	}{
		{"2026-08-30", false},
		{"2026-09-15", false}, // future stays pass
		{"2026-08-26", false}, // inside the five-day window
		{"2026-08-20", true},  // historical
		{"", false},           // absent dates are not the gate's problem
		{"not-a-date", false},
	}
	for _, tt := range tests {
		err := CheckCheckIn(tt.checkIn, now)
		if (err != nil) != tt.wantBlock {
			t.Errorf("CheckCheckIn(%q) = %v, want blocked=%v", tt.checkIn, err, tt.wantBlock)
		}
	}
}
