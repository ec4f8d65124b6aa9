// Package mail searches the hotel's booking-mail archive, the fallback when
// the PMS cannot resolve an OTA id that only ever arrived by email.
package mail

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// Message is the best-scoring archive hit for an order id.
type Message struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
	From    string `json:"from"`
	Phone   string `json:"phone,omitempty"`
}

// Searcher finds at most one archive message for an order id. A nil message
// with nil error means no hit.
type Searcher interface {
	Search(ctx context.Context, orderID string) (*Message, error)
}

// ArchiveOpts configures the HTTP archive client.
type ArchiveOpts struct {
	BaseURL string
	Token   string // bearer token for the archive service
	Timeout time.Duration
}

// Archive is the production Searcher over the mail-archive HTTP service.
type Archive struct {
	baseURL string
	http    *http.Client
}

// NewArchive validates opts and returns an Archive. The token is wrapped in
// an oauth2 static source so the transport handles auth headers.
func NewArchive(opts ArchiveOpts) (*Archive, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("mail: base URL is required")
	}
	if opts.Token == "" {
		return nil, fmt.Errorf("mail: token is required")
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token})
	client := oauth2.NewClient(context.Background(), src)
	client.Timeout = timeout
	return &Archive{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		http:    client,
	}, nil
}

// Search returns the single best hit for the order id, or nil when the
// archive has none.
func (a *Archive) Search(ctx context.Context, orderID string) (*Message, error) {
	q := url.Values{"order_id": {orderID}, "limit": {"1"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/search?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("mail: build request: %w", err)
	}
	resp, err := a.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mail: search %s: %w", orderID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("mail: search %s: status %d", orderID, resp.StatusCode)
	}
	var out struct {
		Messages []Message `json:"messages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("mail: decode search result: %w", err)
	}
	if len(out.Messages) == 0 {
		return nil, nil
	}
	return &out.Messages[0], nil
}

// MockSearcher is a test Searcher seeded with canned hits.
type MockSearcher struct {
	Hits map[string]*Message
	Err  error
}

// Search returns the seeded hit for the id.
func (m *MockSearcher) Search(ctx context.Context, orderID string) (*Message, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Hits[orderID], nil
}
