package pms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ClientOpts configures the HTTP client.
type ClientOpts struct {
	BaseURL string
	Timeout time.Duration // zero means DefaultTimeout
}

// Client is the production PMS client.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient validates opts and returns a Client.
func NewClient(opts ClientOpts) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("pms: base URL is required")
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}) (*envelope, int, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, 0, fmt.Errorf("pms: marshal request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("pms: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("pms: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil && resp.StatusCode < 300 {
		return nil, resp.StatusCode, fmt.Errorf("pms: decode %s: %w", path, err)
	}
	return &env, resp.StatusCode, nil
}

// GetBooking fetches one booking. The OTA letter prefix, if any, is stripped
// before the lookup so guests can paste ids verbatim.
func (c *Client) GetBooking(ctx context.Context, id string) (*Booking, error) {
	clean := letterPrefixRe.ReplaceAllString(strings.TrimSpace(id), "")
	env, status, err := c.do(ctx, http.MethodGet, "/api/bookings/"+url.PathEscape(clean), nil)
	if err != nil {
		return nil, err
	}
	// only a definite miss maps to not-found; a failing backend must surface
	// as a transport error so the caller retries instead of parking the guest
	switch {
	case status == http.StatusNotFound:
		return nil, ErrNotFound
	case status >= 300:
		return nil, fmt.Errorf("pms: get booking %s: status %d", clean, status)
	case env == nil || !env.Success:
		return nil, ErrNotFound
	}
	var b Booking
	if err := json.Unmarshal(env.Data, &b); err != nil {
		return nil, fmt.Errorf("pms: decode booking %s: %w", clean, err)
	}
	return &b, nil
}

// SearchBookings looks bookings up by guest name or phone. At least one
// argument is required.
func (c *Client) SearchBookings(ctx context.Context, name, phone string) ([]Booking, error) {
	if name == "" && phone == "" {
		return nil, fmt.Errorf("pms: name or phone is required")
	}
	q := url.Values{}
	if name != "" {
		q.Set("name", name)
	}
	if phone != "" {
		q.Set("phone", phone)
	}
	env, status, err := c.do(ctx, http.MethodGet, "/api/bookings/search?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	if status >= 300 || env == nil || !env.Success {
		return nil, fmt.Errorf("pms: search bookings: status %d", status)
	}
	var list []Booking
	if err := json.Unmarshal(env.Data, &list); err != nil {
		return nil, fmt.Errorf("pms: decode search result: %w", err)
	}
	return list, nil
}

// TodayAvailability returns today's sellable room types.
func (c *Client) TodayAvailability(ctx context.Context) ([]Availability, error) {
	env, status, err := c.do(ctx, http.MethodGet, "/api/rooms/today-availability", nil)
	if err != nil {
		return nil, err
	}
	if status >= 300 || env == nil || !env.Success {
		return nil, fmt.Errorf("pms: today availability: status %d", status)
	}
	var data struct {
		Date               string         `json:"date"`
		AvailableRoomTypes []Availability `json:"available_room_types"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("pms: decode availability: %w", err)
	}
	return data.AvailableRoomTypes, nil
}

// CreateSameDay creates or updates a same-day booking row and returns the
// back-office temp order id. Idempotent by b.OrderID/b.ItemID.
func (c *Client) CreateSameDay(ctx context.Context, b SameDayBooking) (string, error) {
	env, status, err := c.do(ctx, http.MethodPost, "/api/bookings/same-day", b)
	if err != nil {
		return "", err
	}
	if status >= 300 || env == nil || !env.Success {
		return "", fmt.Errorf("pms: create same-day booking: status %d", status)
	}
	var data struct {
		TempOrderID string `json:"temp_order_id"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return "", fmt.Errorf("pms: decode same-day result: %w", err)
	}
	return data.TempOrderID, nil
}

// CancelSameDay cancels a same-day draft or booking.
func (c *Client) CancelSameDay(ctx context.Context, tempOrderID string) error {
	env, status, err := c.do(ctx, http.MethodPatch, "/api/bookings/same-day/"+url.PathEscape(tempOrderID)+"/cancel", nil)
	if err != nil {
		return err
	}
	if status >= 300 || env == nil || !env.Success {
		return fmt.Errorf("pms: cancel same-day booking %s: status %d", tempOrderID, status)
	}
	return nil
}

// UpdateSupplement persists guest-provided fields onto an existing order.
func (c *Client) UpdateSupplement(ctx context.Context, orderID string, s Supplement) error {
	env, status, err := c.do(ctx, http.MethodPatch, "/api/supplements/"+url.PathEscape(orderID), s)
	if err != nil {
		return err
	}
	if status >= 300 || env == nil || !env.Success {
		return fmt.Errorf("pms: update supplement %s: status %d", orderID, status)
	}
	return nil
}
