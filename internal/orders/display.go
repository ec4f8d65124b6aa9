// Package orders renders PMS order data for guests and normalizes the
// identifiers and phone numbers that arrive with it.
package orders

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ktwhotel/concierge/internal/rooms"
)

var (
	otaLetterRe = regexp.MustCompile(`^[A-Z]+`)
	mobileRe    = regexp.MustCompile(`09\d{8}`)
	nonDigitRe  = regexp.MustCompile(`\D`)
)

// View is the logical order composed from the PMS row, ready for display.
type View struct {
	OrderID       string // internal PMS id
	OTABookingID  string // may carry an OTA letter prefix
	GuestName     string
	Phone         string
	CheckIn       string
	CheckOut      string
	Nights        int
	RoomType      string // "<zh-name> x<count>" joined over distinct codes
	Breakfast     string
	BookingSource string
	Remarks       string
	Cancelled     bool
}

// CleanOTAID strips the OTA letter prefix for display (RMAG12345 → 12345).
func CleanOTAID(id string) string {
	return otaLetterRe.ReplaceAllString(id, "")
}

// NormalizePhone extracts the first Taiwanese mobile from the raw PMS
// contact field; failing that it rebuilds one from the last nine digits.
func NormalizePhone(raw string) string {
	clean := strings.NewReplacer(" ", "", "-", "").Replace(raw)
	if p := mobileRe.FindString(clean); p != "" {
		return p
	}
	digits := nonDigitRe.ReplaceAllString(clean, "")
	if len(digits) >= 9 {
		return "0" + digits[len(digits)-9:]
	}
	return raw
}

// DetectBookingSource classifies where an order came from by scanning the
// remarks, OTA id, and mail subject. First match wins.
func DetectBookingSource(remarks, otaID, subject string) string {
	blob := strings.ToLower(remarks + " " + otaID + " " + subject)
	switch {
	case strings.Contains(blob, "官網"), strings.Contains(blob, "網路訂房"),
		strings.Contains(blob, "線上訂購"), strings.Contains(blob, "rmpgp"):
		return "官網"
	case strings.Contains(blob, "agoda"), strings.Contains(blob, "rmag"):
		return "Agoda"
	case strings.Contains(blob, "booking.com"), strings.Contains(blob, "booking"),
		strings.Contains(blob, "rmbk"):
		return "Booking"
	case strings.Contains(blob, "expedia"):
		return "Expedia"
	case strings.Contains(blob, "trip.com"), strings.Contains(blob, "ctrip"):
		return "Trip.com"
	default:
		return "其他"
	}
}

// Breakfast reads the remarks for an exclusion marker.
func Breakfast(remarks string) string {
	if strings.Contains(remarks, "不含早") || strings.Contains(remarks, "無早") {
		return "不含早餐"
	}
	return "含早餐"
}

// MergeRoomTypes renders "<zh-name> x<count>" per distinct code, preserving
// first-seen order.
func MergeRoomTypes(codes []string) string {
	counts := map[string]int{}
	var order []string
	for _, c := range codes {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if counts[c] == 0 {
			order = append(order, c)
		}
		counts[c]++
	}
	var parts []string
	for _, c := range order {
		parts = append(parts, fmt.Sprintf("%s x%d", rooms.Name(c), counts[c]))
	}
	return strings.Join(parts, "、")
}

// DisplayID picks the id shown to the guest: the cleaned OTA id when the
// order has one and it matches what the guest typed, else the internal id.
func DisplayID(v View, userSupplied string) string {
	if v.OTABookingID != "" && userSupplied != "" && strings.Contains(v.OTABookingID, userSupplied) {
		return CleanOTAID(v.OTABookingID)
	}
	if v.OTABookingID != "" && userSupplied == "" {
		return CleanOTAID(v.OTABookingID)
	}
	return v.OrderID
}

// Format renders the fixed eight-line order block. The field order is load
// bearing; the back office parses it.
func Format(v View, userSupplied string) string {
	var b strings.Builder
	b.WriteString("訂單來源: " + DetectBookingSource(v.Remarks, v.OTABookingID, "") + "\n")
	b.WriteString("預約編號: " + DisplayID(v, userSupplied) + "\n")
	b.WriteString("訂房人姓名: " + orDefault(v.GuestName, "未提供") + "\n")
	b.WriteString("聯絡電話: " + orDefault(v.Phone, "未提供") + "\n")
	b.WriteString("入住日期: " + orDefault(v.CheckIn, "未提供") + "\n")
	if v.CheckOut != "" && v.Nights > 0 {
		b.WriteString(fmt.Sprintf("退房日期: %s (共 %d 晚)\n", v.CheckOut, v.Nights))
	} else {
		b.WriteString("退房日期: " + orDefault(v.CheckOut, "未提供") + "\n")
	}
	b.WriteString("房型: " + orDefault(v.RoomType, "未知") + "\n")
	b.WriteString("早餐: " + Breakfast(v.Remarks))
	return b.String()
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

// FullName joins the PMS surname/given-name pair when both are present.
func FullName(lastName, firstName, fallback string) string {
	last := strings.TrimSpace(lastName)
	first := strings.TrimSpace(firstName)
	if last != "" && first != "" {
		return last + first
	}
	return fallback
}
