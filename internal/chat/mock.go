package chat

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Sent records one outbound message for test assertions.
type Sent struct {
	UserID     string
	ReplyToken string
	Text       string
}

// Mock implements Adapter for testing. It records sent messages and lets
// tests feed inbound events through SimulateInbound.
type Mock struct {
	mu       sync.Mutex
	closed   bool
	inbound  chan Inbound
	sent     []Sent
	profiles map[string]string
}

// NewMock creates a Mock with a buffered inbound channel.
func NewMock() *Mock {
	return &Mock{
		inbound:  make(chan Inbound, 100),
		profiles: make(map[string]string),
	}
}

// Listen returns the inbound channel.
func (m *Mock) Listen(ctx context.Context) (<-chan Inbound, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, fmt.Errorf("mock adapter: closed")
	}
	return m.inbound, nil
}

// Reply records the reply.
func (m *Mock) Reply(ctx context.Context, replyToken, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, Sent{ReplyToken: replyToken, Text: text})
	return nil
}

// Push records the push.
func (m *Mock) Push(ctx context.Context, userID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, Sent{UserID: userID, Text: text})
	return nil
}

// Profile returns a pre-set display name.
func (m *Mock) Profile(ctx context.Context, userID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name, ok := m.profiles[userID]
	if !ok {
		return "", fmt.Errorf("mock adapter: no profile for %s", userID)
	}
	return name, nil
}

// Close shuts the mock down and closes the inbound channel.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	close(m.inbound)
	return nil
}

// --- Test helpers ---

// SetProfile pre-populates a display name.
func (m *Mock) SetProfile(userID, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[userID] = name
}

// SimulateInbound feeds a message in as if the platform delivered it.
func (m *Mock) SimulateInbound(msg Inbound) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	if msg.Kind == "" {
		msg.Kind = KindText
	}
	m.inbound <- msg
}

// LastSent returns the most recent outbound message.
func (m *Mock) LastSent() (Sent, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return Sent{}, false
	}
	return m.sent[len(m.sent)-1], true
}

// AllSent returns a copy of everything sent.
func (m *Mock) AllSent() []Sent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Sent, len(m.sent))
	copy(out, m.sent)
	return out
}
