package pending

import (
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ktwhotel/concierge/internal/models"
)

func newPendingTestStore(t *testing.T, now *time.Time) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&models.PendingGuest{}); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	st, err := NewStore(StoreOpts{
		DB:       db,
		TenantID: "ktw",
		Now:      func() time.Time { return *now },
	})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return st
}

func TestParkUpserts(t *testing.T) {
	now := time.Date(2026, 8, 30, 10, 0, 0, 0, time.Local)
	st := newPendingTestStore(t, &now)

	if err := st.Park("U1", "250277285", "王小明", "", "", ""); err != nil {
		t.Fatalf("Park: %v", err)
	}
	// Same (user, id) with richer slots replaces the row rather than adding one.
	if err := st.Park("U1", "250277285", "王小明", "0912345678", "19:00", "嬰兒床"); err != nil {
		t.Fatalf("Park again: %v", err)
	}

	rows, err := st.Find("U1")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("Find rows = %d, want 1", len(rows))
	}
	if rows[0].Phone != "0912345678" || rows[0].SpecialRequests != "嬰兒床" {
		t.Errorf("row = %+v, want refreshed slots", rows[0])
	}
	if rows[0].TenantID != "ktw" {
		t.Errorf("TenantID = %q, want ktw", rows[0].TenantID)
	}
}

func TestParkRequiresUserAndOrderID(t *testing.T) {
	now := time.Date(2026, 8, 30, 10, 0, 0, 0, time.Local)
	st := newPendingTestStore(t, &now)

	if err := st.Park("", "250277285", "", "", "", ""); err == nil {
		t.Error("Park accepted empty user id")
	}
	if err := st.Park("U1", "", "", "", "", ""); err == nil {
		t.Error("Park accepted empty order id")
	}
}

func TestMatchConsumesContainedIDs(t *testing.T) {
	now := time.Date(2026, 8, 30, 10, 0, 0, 0, time.Local)
	st := newPendingTestStore(t, &now)

	if err := st.Park("U1", "250277285", "王小明", "0912345678", "19:00", "嬰兒床"); err != nil {
		t.Fatalf("Park: %v", err)
	}
	if err := st.Park("U1", "999999999", "", "", "", ""); err != nil {
		t.Fatalf("Park: %v", err)
	}

	matched, err := st.Match("U1", "RMAG250277285")
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if len(matched) != 1 {
		t.Fatalf("matched = %d rows, want 1", len(matched))
	}
	if matched[0].ProvidedOrderID != "250277285" || matched[0].Phone != "0912345678" {
		t.Errorf("matched row = %+v", matched[0])
	}

	// The consumed row no longer shows up; the unrelated one does.
	rows, err := st.Find("U1")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(rows) != 1 || rows[0].ProvidedOrderID != "999999999" {
		t.Errorf("remaining rows = %+v", rows)
	}
}

func TestMatchEmptyOTAIsNoop(t *testing.T) {
	now := time.Date(2026, 8, 30, 10, 0, 0, 0, time.Local)
	st := newPendingTestStore(t, &now)

	if err := st.Park("U1", "250277285", "", "", "", ""); err != nil {
		t.Fatalf("Park: %v", err)
	}
	matched, err := st.Match("U1", "")
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if matched != nil {
		t.Errorf("matched = %v, want nil", matched)
	}
}

func TestPurgeDropsOnlyStaleRows(t *testing.T) {
	now := time.Date(2026, 8, 30, 10, 0, 0, 0, time.Local)
	st := newPendingTestStore(t, &now)

	if err := st.Park("U1", "111111111", "", "", "", ""); err != nil {
		t.Fatalf("Park: %v", err)
	}
	now = now.Add(Retention + time.Hour)
	if err := st.Park("U2", "222222222", "", "", "", ""); err != nil {
		t.Fatalf("Park: %v", err)
	}

	n, err := st.Purge()
	if err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if n != 1 {
		t.Errorf("Purge = %d rows, want 1", n)
	}
	rows, err := st.Unmatched()
	if err != nil {
		t.Fatalf("Unmatched: %v", err)
	}
	if len(rows) != 1 || rows[0].UserID != "U2" {
		t.Errorf("surviving rows = %+v", rows)
	}
}

func TestUnmatchedSkipsMatched(t *testing.T) {
	now := time.Date(2026, 8, 30, 10, 0, 0, 0, time.Local)
	st := newPendingTestStore(t, &now)

	if err := st.Park("U1", "250277285", "", "", "", ""); err != nil {
		t.Fatalf("Park: %v", err)
	}
	if err := st.Park("U2", "333333333", "", "", "", ""); err != nil {
		t.Fatalf("Park: %v", err)
	}
	if _, err := st.Match("U1", "RMAG250277285"); err != nil {
		t.Fatalf("Match: %v", err)
	}

	rows, err := st.Unmatched()
	if err != nil {
		t.Fatalf("Unmatched: %v", err)
	}
	if len(rows) != 1 || rows[0].UserID != "U2" {
		t.Errorf("Unmatched = %+v, want only U2", rows)
	}
}
