package chat

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// WebhookOpts configures the platform webhook adapter.
type WebhookOpts struct {
	ChannelSecret string // HMAC key for webhook signature validation
	AccessToken   string // bearer token for the platform messaging API
	APIBase       string // messaging API base, e.g. https://api.line.me/v2/bot
	Timeout       time.Duration
}

// Webhook is the production adapter: inbound messages arrive on a signed
// webhook, outbound replies go through the platform messaging API.
type Webhook struct {
	secret  []byte
	token   string
	apiBase string
	http    *http.Client
	inbound chan Inbound
	closed  chan struct{}
}

// NewWebhook validates opts and returns a Webhook adapter.
func NewWebhook(opts WebhookOpts) (*Webhook, error) {
	if opts.ChannelSecret == "" {
		return nil, fmt.Errorf("chat: channel secret is required")
	}
	if opts.AccessToken == "" {
		return nil, fmt.Errorf("chat: access token is required")
	}
	if opts.APIBase == "" {
		return nil, fmt.Errorf("chat: API base is required")
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Webhook{
		secret:  []byte(opts.ChannelSecret),
		token:   opts.AccessToken,
		apiBase: strings.TrimRight(opts.APIBase, "/"),
		http:    &http.Client{Timeout: timeout},
		inbound: make(chan Inbound, 100),
		closed:  make(chan struct{}),
	}, nil
}

// Listen returns the inbound channel fed by Handler.
func (w *Webhook) Listen(ctx context.Context) (<-chan Inbound, error) {
	return w.inbound, nil
}

type webhookEvent struct {
	Type    string `json:"type"`
	Message struct {
		ID   string `json:"id"`
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"message"`
	Source struct {
		UserID string `json:"userId"`
	} `json:"source"`
	ReplyToken string `json:"replyToken"`
	Timestamp  int64  `json:"timestamp"`
}

// Handler is the gin endpoint the platform calls. Bad signatures get a 403
// and the body is dropped.
func (w *Webhook) Handler(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.Status(http.StatusBadRequest)
		return
	}
	if !w.validSignature(body, c.GetHeader("X-Line-Signature")) {
		c.Status(http.StatusForbidden)
		return
	}
	var payload struct {
		Events []webhookEvent `json:"events"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		c.Status(http.StatusBadRequest)
		return
	}
	for _, ev := range payload.Events {
		if ev.Type != "message" {
			continue
		}
		msg := Inbound{
			UserID:     ev.Source.UserID,
			ReplyToken: ev.ReplyToken,
			Timestamp:  time.UnixMilli(ev.Timestamp),
		}
		switch ev.Message.Type {
		case "text":
			msg.Kind = KindText
			msg.Text = ev.Message.Text
		case "image":
			msg.Kind = KindImage
			msg.ImageBytes = w.fetchContent(c.Request.Context(), ev.Message.ID)
		case "audio":
			msg.Kind = KindAudio
			msg.AudioBytes = w.fetchContent(c.Request.Context(), ev.Message.ID)
		case "sticker":
			msg.Kind = KindSticker
		default:
			continue
		}
		select {
		case w.inbound <- msg:
		case <-w.closed:
			c.Status(http.StatusServiceUnavailable)
			return
		}
	}
	c.Status(http.StatusOK)
}

func (w *Webhook) validSignature(body []byte, signature string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, w.secret)
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// fetchContent downloads image/audio bytes for a message id. Failures are
// logged and produce a nil payload; the core treats that as unprocessable.
func (w *Webhook) fetchContent(ctx context.Context, messageID string) []byte {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.apiBase+"/message/"+messageID+"/content", nil)
	if err != nil {
		return nil
	}
	req.Header.Set("Authorization", "Bearer "+w.token)
	resp, err := w.http.Do(req)
	if err != nil {
		log.Printf("chat: fetch content %s: %v", messageID, err)
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		log.Printf("chat: fetch content %s: status %d", messageID, resp.StatusCode)
		return nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Printf("chat: read content %s: %v", messageID, err)
		return nil
	}
	return data
}

func (w *Webhook) post(ctx context.Context, path string, payload interface{}) error {
	buf, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("chat: marshal %s payload: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.apiBase+path, bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("chat: build %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+w.token)
	resp, err := w.http.Do(req)
	if err != nil {
		return fmt.Errorf("chat: %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("chat: %s: status %d", path, resp.StatusCode)
	}
	return nil
}

type textMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Reply answers via the reply token.
func (w *Webhook) Reply(ctx context.Context, replyToken, text string) error {
	return w.post(ctx, "/message/reply", map[string]interface{}{
		"replyToken": replyToken,
		"messages":   []textMessage{{Type: "text", Text: text}},
	})
}

// Push sends an unsolicited message.
func (w *Webhook) Push(ctx context.Context, userID, text string) error {
	return w.post(ctx, "/message/push", map[string]interface{}{
		"to":       userID,
		"messages": []textMessage{{Type: "text", Text: text}},
	})
}

// Profile fetches the user's display name.
func (w *Webhook) Profile(ctx context.Context, userID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.apiBase+"/profile/"+userID, nil)
	if err != nil {
		return "", fmt.Errorf("chat: build profile request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+w.token)
	resp, err := w.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat: profile %s: %w", userID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("chat: profile %s: status %d", userID, resp.StatusCode)
	}
	var out struct {
		DisplayName string `json:"displayName"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("chat: decode profile %s: %w", userID, err)
	}
	return out.DisplayName, nil
}

// Close stops accepting inbound events.
func (w *Webhook) Close() error {
	select {
	case <-w.closed:
		return nil
	default:
	}
	close(w.closed)
	close(w.inbound)
	return nil
}
