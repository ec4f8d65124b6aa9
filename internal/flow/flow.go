// Package flow holds the conversation finite-state machines. Each machine
// consumes one message plus the current session and produces a reply, slot
// mutations, external calls, and side-effect scheduling. Reply text is never
// derived from model output; the LLM lives on the fallback path only.
package flow

import (
	"fmt"
	"time"

	"github.com/ktwhotel/concierge/internal/mail"
	"github.com/ktwhotel/concierge/internal/orders"
	"github.com/ktwhotel/concierge/internal/pending"
	"github.com/ktwhotel/concierge/internal/pms"
	"github.com/ktwhotel/concierge/internal/scheduler"
	"github.com/ktwhotel/concierge/internal/session"
	"github.com/ktwhotel/concierge/internal/weather"
	"gorm.io/gorm"
)

// Flow ids, persisted as the prefix of session states.
const (
	OrderQueryFlow = "order_query"
	SameDayFlow    = "same_day_booking"
	CancelFlow     = "cancel_booking"
)

// Order-query states.
const (
	StConfirming        = "order_query.confirming"
	StCollectingPhone   = "order_query.collecting_phone"
	StCollectingArrival = "order_query.collecting_arrival"
	StCollectingSpecial = "order_query.collecting_special"
)

// Same-day-booking states.
const (
	StAskDate         = "same_day_booking.ask_date"
	StShowRooms       = "same_day_booking.show_rooms"
	StCollectRoom     = "same_day_booking.collect_room"
	StCollectCount    = "same_day_booking.collect_count"
	StCollectBed      = "same_day_booking.collect_bed"
	StCollectName     = "same_day_booking.collect_name"
	StCollectPhone    = "same_day_booking.collect_phone"
	StCollectArrival  = "same_day_booking.collect_arrival"
	StCollectRequests = "same_day_booking.collect_requests"
	StConfirm         = "same_day_booking.confirm"
)

// Cancellation subflow states.
const (
	StCancelPick    = "cancel_booking.pick"
	StCancelConfirm = "cancel_booking.confirm"
)

// Result is what a machine hands back to the router.
type Result struct {
	Reply string
}

// Deps is the shared dependency bundle injected into every machine. Tests
// build their own with mocks.
type Deps struct {
	DB         *gorm.DB
	PMS        pms.API
	Mail       mail.Searcher
	Weather    weather.Client
	Pending    *pending.Store
	Engine     *scheduler.Engine
	TenantID   string
	FrontDesk  string
	BookingURL string
	ReviewLink string
	Now        func() time.Time
}

// Validate checks the required dependencies. Mail, Weather, and Engine are
// optional; their features degrade when absent.
func (d *Deps) Validate() error {
	if d.DB == nil {
		return fmt.Errorf("flow: db is required")
	}
	if d.PMS == nil {
		return fmt.Errorf("flow: pms client is required")
	}
	if d.Pending == nil {
		return fmt.Errorf("flow: pending store is required")
	}
	if d.TenantID == "" {
		return fmt.Errorf("flow: tenant id is required")
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return nil
}

// finishPending appends the cross-flow resume prompt when the finished flow
// carried a pending intent, moving the session to the pending flow's entry
// point. Flows needing user-provided seed data land back on idle.
func finishPending(s *session.Session, reply string) string {
	if s.PendingIntent == "" {
		s.State = session.Idle
		return reply
	}
	intent := s.PendingIntent
	s.PendingIntent = ""
	s.PendingIntentMessage = ""
	switch intent {
	case SameDayFlow:
		s.State = StAskDate
	default:
		s.State = session.Idle
	}
	return reply + "\n\n" + orders.ResumeMessage(intent)
}
