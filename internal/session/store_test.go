package session

import (
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ktwhotel/concierge/internal/models"
)

func openSessionTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&models.Session{}); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return db
}

func newTestStore(t *testing.T, now *time.Time) *Store {
	t.Helper()
	st, err := NewStore(StoreOpts{
		DB:  openSessionTestDB(t),
		Now: func() time.Time { return *now },
	})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return st
}

func TestLoadMissingReturnsFreshIdle(t *testing.T) {
	now := time.Date(2026, 8, 30, 10, 0, 0, 0, time.Local)
	st := newTestStore(t, &now)

	s, err := st.Load("ktw", "U1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.State != Idle {
		t.Errorf("State = %q, want %q", s.State, Idle)
	}
	if s.SchemaVersion != models.SchemaVersion {
		t.Errorf("SchemaVersion = %q, want %q", s.SchemaVersion, models.SchemaVersion)
	}
	if len(s.Data) != 0 {
		t.Errorf("Data = %v, want empty", s.Data)
	}

	// A missing row is not created by Load alone.
	var count int64
	st.db.Model(&models.Session{}).Count(&count)
	if count != 0 {
		t.Errorf("rows after Load = %d, want 0", count)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	now := time.Date(2026, 8, 30, 10, 0, 0, 0, time.Local)
	st := newTestStore(t, &now)

	s, _ := st.Load("ktw", "U1")
	s.State = "order_query.confirming"
	s.Set("order_id", "1671721966")
	s.Set("requests", []string{"嬰兒床", "停車位"})
	s.PendingIntent = "same_day_booking"
	s.PendingIntentMessage = "我想訂今天的房"
	s.DisplayName = "王小明"
	if err := st.Save(s); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := st.Load("ktw", "U1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.State != "order_query.confirming" {
		t.Errorf("State = %q", got.State)
	}
	if got.Flow() != "order_query" {
		t.Errorf("Flow = %q, want order_query", got.Flow())
	}
	if got.GetString("order_id") != "1671721966" {
		t.Errorf("order_id = %q", got.GetString("order_id"))
	}
	reqs := got.GetStrings("requests")
	if len(reqs) != 2 || reqs[0] != "嬰兒床" || reqs[1] != "停車位" {
		t.Errorf("requests = %v", reqs)
	}
	if got.PendingIntent != "same_day_booking" || got.PendingIntentMessage != "我想訂今天的房" {
		t.Errorf("pending = %q / %q", got.PendingIntent, got.PendingIntentMessage)
	}
	if got.DisplayName != "王小明" {
		t.Errorf("DisplayName = %q", got.DisplayName)
	}
}

func TestSaveUpdatedAtStrictlyIncreases(t *testing.T) {
	now := time.Date(2026, 8, 30, 10, 0, 0, 0, time.Local)
	st := newTestStore(t, &now)

	s, _ := st.Load("ktw", "U1")
	if err := st.Save(s); err != nil {
		t.Fatalf("Save: %v", err)
	}
	first := s.UpdatedAt

	// Clock does not advance; the store still bumps the stamp.
	if err := st.Save(s); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !s.UpdatedAt.After(first) {
		t.Errorf("UpdatedAt = %v, want after %v", s.UpdatedAt, first)
	}
	if got := s.UpdatedAt.Sub(first); got != time.Millisecond {
		t.Errorf("stalled-clock bump = %v, want 1ms", got)
	}
}

func TestLoadExpiresStaleNonIdle(t *testing.T) {
	now := time.Date(2026, 8, 30, 10, 0, 0, 0, time.Local)
	st := newTestStore(t, &now)

	s, _ := st.Load("ktw", "U1")
	s.State = "same_day_booking.confirm"
	s.Set("anchor", "WI08300945")
	s.PendingIntent = "order_query"
	s.PendingIntentMessage = "1671721966"
	if err := st.Save(s); err != nil {
		t.Fatalf("Save: %v", err)
	}

	now = now.Add(IdleTimeout + time.Minute)
	got, err := st.Load("ktw", "U1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.State != Idle {
		t.Errorf("State = %q, want %q", got.State, Idle)
	}
	if got.PendingIntent != "" || got.PendingIntentMessage != "" {
		t.Errorf("pending intent survived expiry: %q / %q", got.PendingIntent, got.PendingIntentMessage)
	}
	// Slot data is kept for audit; only the state collapses.
	if got.GetString("anchor") != "WI08300945" {
		t.Errorf("anchor = %q", got.GetString("anchor"))
	}

	// Expiry is read-side only; the row still holds the old state.
	var row models.Session
	if err := st.db.Where("tenant_id = ? AND user_id = ?", "ktw", "U1").First(&row).Error; err != nil {
		t.Fatalf("read row: %v", err)
	}
	if row.State != "same_day_booking.confirm" {
		t.Errorf("persisted State = %q, want same_day_booking.confirm", row.State)
	}
}

func TestLoadKeepsFreshNonIdle(t *testing.T) {
	now := time.Date(2026, 8, 30, 10, 0, 0, 0, time.Local)
	st := newTestStore(t, &now)

	s, _ := st.Load("ktw", "U1")
	s.State = "order_query.collecting_phone"
	if err := st.Save(s); err != nil {
		t.Fatalf("Save: %v", err)
	}

	now = now.Add(IdleTimeout - time.Minute)
	got, _ := st.Load("ktw", "U1")
	if got.State != "order_query.collecting_phone" {
		t.Errorf("State = %q, want order_query.collecting_phone", got.State)
	}
}

func TestDeleteResets(t *testing.T) {
	now := time.Date(2026, 8, 30, 10, 0, 0, 0, time.Local)
	st := newTestStore(t, &now)

	s, _ := st.Load("ktw", "U1")
	s.State = "cancel_booking.pick"
	if err := st.Save(s); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := st.Delete("ktw", "U1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	got, _ := st.Load("ktw", "U1")
	if got.State != Idle {
		t.Errorf("State after delete = %q, want %q", got.State, Idle)
	}
}

func TestSnapshotRestore(t *testing.T) {
	now := time.Date(2026, 8, 30, 10, 0, 0, 0, time.Local)
	st := newTestStore(t, &now)

	s, _ := st.Load("ktw", "U1")
	s.State = "order_query.confirming"
	s.Set("order_id", "1671721966")
	if err := st.Save(s); err != nil {
		t.Fatalf("Save: %v", err)
	}

	snap, err := st.Snapshot("ktw", "U1")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.State != "order_query.confirming" {
		t.Errorf("snapshot State = %q", snap.State)
	}

	if err := st.Delete("ktw", "U1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := st.Restore(snap); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	got, _ := st.Load("ktw", "U1")
	if got.GetString("order_id") != "1671721966" {
		t.Errorf("order_id after restore = %q", got.GetString("order_id"))
	}
}

func TestRestoreRejectsNewerSchema(t *testing.T) {
	now := time.Date(2026, 8, 30, 10, 0, 0, 0, time.Local)
	st := newTestStore(t, &now)

	err := st.Restore(&models.Session{
		TenantID:      "ktw",
		UserID:        "U1",
		SchemaVersion: "99",
		State:         Idle,
	})
	if err == nil {
		t.Fatal("Restore accepted a newer schema snapshot")
	}
}

func TestLockSameKeySameMutex(t *testing.T) {
	now := time.Date(2026, 8, 30, 10, 0, 0, 0, time.Local)
	st := newTestStore(t, &now)

	a := st.Lock("ktw", "U1")
	b := st.Lock("ktw", "U1")
	if a != b {
		t.Error("Lock returned distinct mutexes for one key")
	}
	if c := st.Lock("ktw", "U2"); c == a {
		t.Error("Lock shared a mutex across keys")
	}
}
