// Package chat bridges the concierge to the messaging platform. The core
// only ever sees Inbound/Outbound messages and a profile lookup; platform
// specifics stay behind the Adapter interface.
package chat

import (
	"context"
	"time"
)

// Inbound message kinds.
const (
	KindText    = "text"
	KindImage   = "image"
	KindAudio   = "audio"
	KindSticker = "sticker"
)

// Adapter is the platform surface the core depends on.
type Adapter interface {
	// Listen returns the channel of inbound messages. The channel is
	// closed when the context is cancelled or the adapter is closed.
	Listen(ctx context.Context) (<-chan Inbound, error)

	// Reply answers an inbound message using its reply token. Tokens are
	// single-use and short-lived; fall back to Push when one has expired.
	Reply(ctx context.Context, replyToken, text string) error

	// Push sends an unsolicited message to a user (reminders, resumes).
	Push(ctx context.Context, userID, text string) error

	// Profile fetches the user's display name, best effort.
	Profile(ctx context.Context, userID string) (string, error)

	// Close gracefully shuts down the adapter.
	Close() error
}

// Inbound is one event received from the platform.
type Inbound struct {
	Kind       string // text, image, audio, sticker
	UserID     string
	Text       string
	ImageBytes []byte
	AudioBytes []byte
	ReplyToken string
	Timestamp  time.Time
}
