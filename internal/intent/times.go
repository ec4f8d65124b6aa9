package intent

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	dateSlashRe = regexp.MustCompile(`\d{1,2}/\d{1,2}`)
	dateISORe   = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)
	clockRe     = regexp.MustCompile(`\d{1,2}:\d{2}`)
	hourRe      = regexp.MustCompile(`(\d{1,2})\s*[點:：時]`)
	pmHourRe    = regexp.MustCompile(`下午\s*(\d{1,2})`)
	eveHourRe   = regexp.MustCompile(`晚上\s*(\d{1,2})`)
	minutesRe   = regexp.MustCompile(`(\d+)\s*分鐘後`)
)

var (
	timeKeywords = []string{
		"點", "時", ":",
		"上午", "下午", "中午", "晚上", "傍晚", "早上", "凌晨",
		"等一下", "等下", "馬上", "待會", "稍候", "稍後", "現在",
		"左右", "前後", "大約", "約",
	}
	vagueBands   = []string{"下午", "上午", "晚上", "傍晚", "早上", "中午", "凌晨"}
	specificIdx  = []string{"點", "時", ":"}
	soonKeywords = []string{"等一下", "馬上", "待會", "稍後", "現在", "快到"}
	nextDayWords = []string{"明天", "明日"}
)

// numeral replacements, tens first so 十二 becomes 12 and not 10二.
var numeralReplacer = strings.NewReplacer(
	"十二", "12", "十一", "11", "十", "10",
	"零", "0", "〇", "0", "一", "1", "二", "2", "兩", "2",
	"三", "3", "四", "4", "五", "5", "六", "6", "七", "7",
	"八", "8", "九", "9",
)

// ConvertNumerals rewrites Chinese numerals to Arabic digits, so 下午三點
// parses the same as 下午3點.
func ConvertNumerals(s string) string {
	return numeralReplacer.Replace(s)
}

// IsValidTimeFormat reports whether the message looks like an arrival time.
// Long pure-digit runs (possible order ids) and date literals are never
// times.
func IsValidTimeFormat(s string) bool {
	clean := strings.TrimSpace(s)
	digits := nonDigitRe.ReplaceAllString(clean, "")
	if len(digits) >= 8 {
		return false
	}
	if dateSlashRe.MatchString(clean) || dateISORe.MatchString(clean) {
		return false
	}
	// match on the raw text first so 等一下 is not mangled into 等1下
	if containsAny(clean, timeKeywords) {
		return true
	}
	normalized := ConvertNumerals(clean)
	if containsAny(normalized, timeKeywords) {
		return true
	}
	return clockRe.MatchString(normalized)
}

// IsVagueTime reports whether the message names a time-of-day band without
// a concrete hour. Soon-phrases (馬上, 待會...) count as concrete.
func IsVagueTime(s string) bool {
	if s == "" {
		return true
	}
	normalized := ConvertNumerals(s)
	if containsAny(normalized, soonKeywords) {
		return false
	}
	return containsAny(normalized, vagueBands) && !containsAny(normalized, specificIdx)
}

// Arrival is the outcome of evaluating a same-day arrival time.
type Arrival struct {
	Raw    string
	Hour   int    // 24h resolved hour, -1 when unknown
	Soon   bool   // 馬上 / 待會 style phrases
	Vague  bool   // band without an hour, re-prompt
	Reject string // non-empty when the time cannot be accepted today
}

// EvaluateArrival validates an arrival-time phrase for a same-day stay.
// Rejections: next-day references, times resolving to 22:00 or later or to
// the small hours, and morning hours already passed today.
func EvaluateArrival(s string, now time.Time) Arrival {
	a := Arrival{Raw: strings.TrimSpace(s), Hour: -1}
	normalized := ConvertNumerals(a.Raw)

	if containsAny(normalized, nextDayWords) {
		a.Reject = "明天入住請透過官網預訂"
		return a
	}
	if containsAny(normalized, soonKeywords) || minutesRe.MatchString(normalized) {
		a.Soon = true
		return a
	}

	hour := -1
	if m := eveHourRe.FindStringSubmatch(normalized); m != nil {
		hour, _ = strconv.Atoi(m[1])
		if hour < 12 {
			hour += 12
		}
	} else if m := pmHourRe.FindStringSubmatch(normalized); m != nil {
		hour, _ = strconv.Atoi(m[1])
		if hour < 12 {
			hour += 12
		}
	} else if m := hourRe.FindStringSubmatch(normalized); m != nil {
		hour, _ = strconv.Atoi(m[1])
		// bare small hour in the evening reads as PM
		if hour < 12 && containsAny(normalized, []string{"晚", "傍晚"}) {
			hour += 12
		}
	} else if m := clockRe.FindString(normalized); m != "" {
		hour, _ = strconv.Atoi(strings.SplitN(m, ":", 2)[0])
	}

	if hour < 0 {
		a.Vague = true
		return a
	}

	a.Hour = hour
	switch {
	case hour >= 22 || hour == 0:
		a.Reject = "抱歉，當日預訂最晚須於 22:00 前抵達"
	case hour >= 1 && hour <= 5:
		a.Reject = "抱歉，凌晨時段無法受理當日入住"
	case hour < now.Hour() && hour < 12:
		a.Reject = "這個時間今天已經過了，請確認抵達時間"
	}
	return a
}
