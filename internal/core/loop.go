// Package core runs the conversation loop: one inbound event in, one reply
// out, with the session locked for the duration.
package core

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ktwhotel/concierge/internal/chat"
	"github.com/ktwhotel/concierge/internal/models"
	"github.com/ktwhotel/concierge/internal/router"
	"github.com/ktwhotel/concierge/internal/session"
)

// Vision reads uploaded images; optional.
type Vision interface {
	// ExtractOrderID returns the order id in a booking screenshot, "" when
	// the image carries none.
	ExtractOrderID(ctx context.Context, data []byte, format string) (string, error)
	DescribeImage(ctx context.Context, data []byte, format string) (string, error)
}

// Opts configures a Loop.
type Opts struct {
	Chat     chat.Adapter
	Sessions *session.Store
	Router   *router.Router
	DB       *gorm.DB
	TenantID string
	Vision   Vision           // optional
	Now      func() time.Time // defaults to time.Now
}

// Loop consumes inbound chat events and drives the router.
type Loop struct {
	chat     chat.Adapter
	sessions *session.Store
	router   *router.Router
	db       *gorm.DB
	tenantID string
	vision   Vision
	now      func() time.Time
}

// New validates opts and returns a Loop.
func New(opts Opts) (*Loop, error) {
	if opts.Chat == nil {
		return nil, fmt.Errorf("core: chat adapter is required")
	}
	if opts.Sessions == nil {
		return nil, fmt.Errorf("core: session store is required")
	}
	if opts.Router == nil {
		return nil, fmt.Errorf("core: router is required")
	}
	if opts.DB == nil {
		return nil, fmt.Errorf("core: db is required")
	}
	if opts.TenantID == "" {
		return nil, fmt.Errorf("core: tenant id is required")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Loop{
		chat:     opts.Chat,
		sessions: opts.Sessions,
		router:   opts.Router,
		db:       opts.DB,
		tenantID: opts.TenantID,
		vision:   opts.Vision,
		now:      opts.Now,
	}, nil
}

// Run processes events until the context is cancelled or the adapter closes.
func (l *Loop) Run(ctx context.Context) error {
	events, err := l.chat.Listen(ctx)
	if err != nil {
		return fmt.Errorf("core: listen: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			l.HandleEvent(ctx, ev)
		}
	}
}

// HandleEvent processes one inbound event end to end. Exported so the
// webhook handler can call it synchronously.
func (l *Loop) HandleEvent(ctx context.Context, ev chat.Inbound) {
	correlationID := uuid.NewString()

	mu := l.sessions.Lock(l.tenantID, ev.UserID)
	mu.Lock()
	defer mu.Unlock()

	s, err := l.sessions.Load(l.tenantID, ev.UserID)
	if err != nil {
		log.Printf("core: load session %s: %v [%s]", ev.UserID, err, correlationID)
		return
	}
	if s.DisplayName == "" {
		if name, err := l.chat.Profile(ctx, ev.UserID); err == nil && name != "" {
			s.DisplayName = name
		}
	}

	reply := l.handle(ctx, s, ev, correlationID)
	if reply == "" {
		return
	}

	l.logMessage(ev, s, reply, correlationID)
	if err := l.sessions.Save(s); err != nil {
		log.Printf("core: save session %s: %v [%s]", ev.UserID, err, correlationID)
	}
	l.send(ctx, ev, reply, correlationID)
}

// handle routes by event kind. A panic anywhere in a flow resets the
// session so the user is never stuck in a broken state.
func (l *Loop) handle(ctx context.Context, s *session.Session, ev chat.Inbound, correlationID string) (reply string) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("core: panic handling %s: %v [%s]", ev.UserID, r, correlationID)
			s.State = session.Idle
			s.Data = map[string]interface{}{}
			s.PendingIntent = ""
			s.PendingIntentMessage = ""
			reply = "不好意思，系統發生了一點狀況 🙏 請再說一次您的需求。"
		}
	}()

	switch ev.Kind {
	case chat.KindText:
		out, err := l.router.Route(ctx, s, ev.Text)
		if err != nil {
			log.Printf("core: route %s: %v [%s]", ev.UserID, err, correlationID)
			return "不好意思，我現在有點忙不過來，請稍候再試一次 🙏"
		}
		return out
	case chat.KindImage:
		if l.vision == nil {
			return "收到您的圖片了！如果有訂房問題，直接打字告訴我就可以囉 😊"
		}
		if id, err := l.vision.ExtractOrderID(ctx, ev.ImageBytes, "jpeg"); err == nil && id != "" {
			s.Set(router.VisionOrderHintSlot, id)
			return fmt.Sprintf("我在圖片裡看到訂單編號 %s，需要幫您查詢這筆訂單嗎？", id)
		}
		out, err := l.vision.DescribeImage(ctx, ev.ImageBytes, "jpeg")
		if err != nil {
			log.Printf("core: vision %s: %v [%s]", ev.UserID, err, correlationID)
			return "收到您的圖片了！如果有訂房問題，直接打字告訴我就可以囉 😊"
		}
		return out
	case chat.KindAudio:
		return "不好意思，我目前還聽不懂語音訊息 🙏 請用文字告訴我您的需求。"
	case chat.KindSticker:
		return "😊"
	default:
		return ""
	}
}

// send replies with the event's token and falls back to push when the
// token has expired.
func (l *Loop) send(ctx context.Context, ev chat.Inbound, reply, correlationID string) {
	if ev.ReplyToken != "" {
		err := l.chat.Reply(ctx, ev.ReplyToken, reply)
		if err == nil {
			return
		}
		log.Printf("core: reply %s: %v [%s]", ev.UserID, err, correlationID)
	}
	if err := l.chat.Push(ctx, ev.UserID, reply); err != nil {
		log.Printf("core: push %s: %v [%s]", ev.UserID, err, correlationID)
	}
}

// logMessage appends the exchange to the transcript, best effort.
func (l *Loop) logMessage(ev chat.Inbound, s *session.Session, reply, correlationID string) {
	now := l.now()
	rows := []models.MessageLog{
		{
			TenantID:      l.tenantID,
			UserID:        ev.UserID,
			Direction:     "in",
			Kind:          ev.Kind,
			Text:          ev.Text,
			State:         s.State,
			CorrelationID: correlationID,
			CreatedAt:     now,
		},
		{
			TenantID:      l.tenantID,
			UserID:        ev.UserID,
			Direction:     "out",
			Kind:          chat.KindText,
			Text:          reply,
			State:         s.State,
			CorrelationID: correlationID,
			CreatedAt:     now,
		},
	}
	if err := l.db.Create(&rows).Error; err != nil {
		log.Printf("core: message log %s: %v [%s]", ev.UserID, err, correlationID)
	}
}
