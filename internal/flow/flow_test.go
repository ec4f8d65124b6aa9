package flow

import (
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ktwhotel/concierge/internal/mail"
	"github.com/ktwhotel/concierge/internal/models"
	"github.com/ktwhotel/concierge/internal/pending"
	"github.com/ktwhotel/concierge/internal/pms"
	"github.com/ktwhotel/concierge/internal/scheduler"
	"github.com/ktwhotel/concierge/internal/session"
	"github.com/ktwhotel/concierge/internal/weather"
)

// testEnv bundles the mocked dependency set shared by the flow tests. The
// clock is a plain field so tests can move it.
type testEnv struct {
	deps Deps
	db   *gorm.DB
	pms  *pms.Mock
	now  time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	err = db.AutoMigrate(
		&models.GuestOrder{},
		&models.SameDayItem{},
		&models.PendingGuest{},
		&models.Job{},
	)
	if err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	env := &testEnv{
		db:  db,
		pms: pms.NewMock(),
		now: time.Date(2026, 8, 30, 10, 0, 0, 0, time.Local),
	}
	nowFn := func() time.Time { return env.now }

	pend, err := pending.NewStore(pending.StoreOpts{DB: db, TenantID: "ktw", Now: nowFn})
	if err != nil {
		t.Fatalf("pending.NewStore: %v", err)
	}
	engine, err := scheduler.NewEngine(scheduler.EngineOpts{DB: db, Now: nowFn})
	if err != nil {
		t.Fatalf("scheduler.NewEngine: %v", err)
	}

	env.deps = Deps{
		DB:         db,
		PMS:        env.pms,
		Mail:       &mail.MockSearcher{},
		Weather:    &weather.Mock{ByDate: map[string]*weather.Forecast{}},
		Pending:    pend,
		Engine:     engine,
		TenantID:   "ktw",
		FrontDesk:  "08-8821234",
		BookingURL: "https://booking.ktwhotel.example/rooms",
		ReviewLink: "https://g.page/ktwhotel/review",
		Now:        nowFn,
	}
	return env
}

func newTestSession() *session.Session {
	return &session.Session{
		TenantID:    "ktw",
		UserID:      "Uabc123",
		State:       session.Idle,
		Data:        map[string]interface{}{},
		DisplayName: "小明",
	}
}

func (env *testEnv) jobCount(t *testing.T, jobType string) int64 {
	t.Helper()
	var n int64
	q := env.db.Model(&models.Job{})
	if jobType != "" {
		q = q.Where("job_type = ?", jobType)
	}
	if err := q.Count(&n).Error; err != nil {
		t.Fatalf("count jobs: %v", err)
	}
	return n
}

func (env *testEnv) itemsFor(t *testing.T, anchor string) []models.SameDayItem {
	t.Helper()
	var items []models.SameDayItem
	if err := env.db.Where("order_id = ?", anchor).Order("item_id").Find(&items).Error; err != nil {
		t.Fatalf("load items: %v", err)
	}
	return items
}
