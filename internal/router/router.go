// Package router decides which conversation flow owns each inbound message.
package router

import (
	"context"
	"fmt"

	"github.com/ktwhotel/concierge/internal/flow"
	"github.com/ktwhotel/concierge/internal/intent"
	"github.com/ktwhotel/concierge/internal/session"
)

// VisionOrderHintSlot holds an order id read out of an uploaded image. The
// hint is one-shot: the next text message consumes it, and only a
// confirmation turns it into a query.
const VisionOrderHintSlot = "vision_order_hint"

// Responder is the fallthrough for messages no flow claims, normally the
// LLM concierge. A nil responder yields the static help reply.
type Responder interface {
	Respond(ctx context.Context, s *session.Session, msg string) (string, error)
}

// Opts configures a Router.
type Opts struct {
	OrderQuery *flow.OrderQuery
	SameDay    *flow.SameDay
	Cancel     *flow.Cancel
	Fallback   Responder // optional
}

// Router dispatches messages in fixed priority order:
//
//  1. a session already inside a flow stays with that flow
//  2. an idle session with an order number starts an order query
//  3. a confirmed vision hint starts an order query on the extracted id
//  4. an idle session with a cancel intent starts the cancel subflow
//  5. an idle session with a same-day booking intent starts the booking
//  6. everything else falls through to the responder
type Router struct {
	orderQuery *flow.OrderQuery
	sameDay    *flow.SameDay
	cancel     *flow.Cancel
	fallback   Responder
}

// New validates opts and returns a Router.
func New(opts Opts) (*Router, error) {
	if opts.OrderQuery == nil {
		return nil, fmt.Errorf("router: order query flow is required")
	}
	if opts.SameDay == nil {
		return nil, fmt.Errorf("router: same-day flow is required")
	}
	if opts.Cancel == nil {
		return nil, fmt.Errorf("router: cancel flow is required")
	}
	return &Router{
		orderQuery: opts.OrderQuery,
		sameDay:    opts.SameDay,
		cancel:     opts.Cancel,
		fallback:   opts.Fallback,
	}, nil
}

// Route handles one text message against the session and returns the reply.
// The caller persists the session afterwards.
func (r *Router) Route(ctx context.Context, s *session.Session, msg string) (string, error) {
	switch s.Flow() {
	case flow.OrderQueryFlow:
		return r.orderQuery.Handle(ctx, s, msg).Reply, nil
	case flow.SameDayFlow:
		return r.sameDay.Handle(ctx, s, msg).Reply, nil
	case flow.CancelFlow:
		return r.cancel.Handle(ctx, s, msg).Reply, nil
	}

	if intent.HasOrderNumber(msg) {
		delete(s.Data, VisionOrderHintSlot)
		return r.orderQuery.Start(ctx, s, msg).Reply, nil
	}
	if hint := s.GetString(VisionOrderHintSlot); hint != "" {
		delete(s.Data, VisionOrderHintSlot)
		if intent.IsConfirmation(msg) {
			return r.orderQuery.Start(ctx, s, hint).Reply, nil
		}
	}
	if intent.IsCancelIntent(msg) {
		return r.cancel.Start(ctx, s).Reply, nil
	}
	if intent.IsBookingIntent(msg) && !intent.IsQueryIntent(msg) {
		return r.sameDay.Start(ctx, s, msg).Reply, nil
	}
	if intent.IsQueryIntent(msg) {
		return "您好！請提供訂單編號，我幫您查詢訂單資訊 😊", nil
	}

	if r.fallback != nil {
		return r.fallback.Respond(ctx, s, msg)
	}
	return "您好！我是飯店小幫手 🏨\n\n您可以：\n• 傳訂單編號查詢訂單\n• 跟我說「我要訂今晚的房間」\n• 查詢天氣或設施資訊", nil
}
