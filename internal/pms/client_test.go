package pms

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewClient(ClientOpts{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestGetBookingStripsLetterPrefix(t *testing.T) {
	var gotPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"success":true,"data":{"booking_id":"1671721966","guest_name":"王小明"}}`))
	})

	b, err := c.GetBooking(context.Background(), "WE1671721966")
	if err != nil {
		t.Fatalf("GetBooking: %v", err)
	}
	if gotPath != "/api/bookings/1671721966" {
		t.Errorf("request path = %q, want /api/bookings/1671721966", gotPath)
	}
	if b.BookingID != "1671721966" || b.GuestName != "王小明" {
		t.Errorf("booking = %+v, want id 1671721966 guest 王小明", b)
	}
}

func TestGetBookingNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"success":false,"error":{"code":"not_found"}}`))
	})

	if _, err := c.GetBooking(context.Background(), "1671721966"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetBooking on 404 = %v, want ErrNotFound", err)
	}
}

func TestGetBookingFailedEnvelopeIsNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false,"error":{"code":"not_found","message":"no such booking"}}`))
	})

	if _, err := c.GetBooking(context.Background(), "1671721966"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetBooking on failed envelope = %v, want ErrNotFound", err)
	}
}

func TestGetBookingServerErrorIsNotNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("upstream timeout"))
	})

	_, err := c.GetBooking(context.Background(), "1671721966")
	if err == nil {
		t.Fatal("GetBooking on 500 returned nil error")
	}
	if errors.Is(err, ErrNotFound) {
		t.Errorf("GetBooking on 500 = ErrNotFound, want transport error")
	}
}
