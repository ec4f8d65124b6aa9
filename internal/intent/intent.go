// Package intent classifies guest messages: order ids, phones, times,
// flow-start intents. All functions are pure; no I/O, no state.
package intent

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	mobileRe    = regexp.MustCompile(`09\d{8}`)
	orderRe     = regexp.MustCompile(`\b[1-9]\d{4,9}\b`)
	landlineRe  = regexp.MustCompile(`0[2-8]\d{7,8}`)
	laxPhoneRe  = regexp.MustCompile(`\d{8,}`)
	otaPrefixRe = regexp.MustCompile(`^(RMPGP|RMAG|RMBK|RM[A-Z]{2})`)
	nonDigitRe  = regexp.MustCompile(`\D`)
	digitsRe    = regexp.MustCompile(`^\d+$`)
	edgeTrimRe  = regexp.MustCompile(`^[\s,，、]+|[\s,，、]+$`)
)

var (
	bookingKeywords = []string{
		"訂房", "預訂", "今天住", "今日住", "有房", "還有房",
		"空房", "想住", "要住", "可以住", "今天訂", "今日訂",
		"今天", "今日", "明天", "明日",
		"加訂", "加定", "多訂", "再訂", "多一間", "再一間",
	}
	sameDayKeywords = []string{"今天", "今日", "今晚", "現在"}
	queryKeywords   = []string{
		"查訂單", "查詢訂單", "我有訂", "確認訂單", "我的訂單",
		"我訂了", "已經訂", "訂單狀態", "訂單資訊",
	}
	cancelKeywords = []string{
		"取消", "不要", "算了", "放棄", "不訂", "不定",
		"退訂", "退房", "取消訂房", "取消預訂",
	}
	politeWords = []string{
		"謝謝", "感謝", "謝了", "辛苦", "麻煩", "拜託", "多謝", "3q", "thanks", "thank",
	}
	confirmKeywords = []string{"是", "對", "沒錯", "正確", "確認", "yes", "好", "ok"}
	rejectKeywords  = []string{"不是", "錯", "不對", "不正確", "no"}
	noKeywords      = []string{"沒有", "無", "不用", "no", "沒", "不需要"}

	specialKeywords = []string{
		"嬰兒床", "嬰兒澡盆", "消毒鍋", "奶瓶消毒", "澡盆",
		"嬰兒", "寶寶", "小孩",
		"高樓層", "低樓層", "安靜", "禁菸", "禁煙", "吸菸", "吸煙",
		"靠近", "鄰近", "同樓層", "隔壁", "附近", "旁邊",
		"相鄰", "連通", "面海", "海景", "窗戶",
		"大床", "小床", "雙人床", "單人床", "加床", "併床",
		"兩張床", "一張床", "床型",
		"停車", "車位", "停車場",
		"寵物", "狗", "貓", "毛小孩",
		"提前", "提早", "晚退", "延遲退房", "late checkout",
		"需要", "希望", "能否", "可以嗎", "可不可以", "幫忙", "安排",
	}
)

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// HasOrderNumber reports whether the message carries an order id: a 5-10
// digit run with a non-zero leading digit. A message with a 09xxxxxxxx
// mobile anywhere in it never counts; phones win.
func HasOrderNumber(m string) bool {
	if mobileRe.MatchString(m) {
		return false
	}
	return orderRe.MatchString(m)
}

// IsPossibleOrderNumber reports whether the whole trimmed message could be
// an order id: all digits, at least 5, not zero-leading. Phones all start
// with 0 in Taiwan, so a non-zero lead means "not a phone".
func IsPossibleOrderNumber(m string) bool {
	clean := strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(m))
	if !digitsRe.MatchString(clean) {
		return false
	}
	return len(clean) >= 5 && clean[0] != '0'
}

// ExtractOrderNumber returns the first order-id run in the message, or "".
// Unlike HasOrderNumber it still extracts when a mobile is also present,
// skipping the phone itself.
func ExtractOrderNumber(m string) string {
	if mobileRe.MatchString(m) {
		stripped := mobileRe.ReplaceAllString(m, " ")
		return orderRe.FindString(stripped)
	}
	return orderRe.FindString(m)
}

// CanonicalOrderID strips OTA letter prefixes and non-digits so ids from
// different sources compare equal.
func CanonicalOrderID(id string) string {
	if id == "" {
		return ""
	}
	return nonDigitRe.ReplaceAllString(otaPrefixRe.ReplaceAllString(id, ""), "")
}

// IsNewOrderQuery reports whether the message names an order id different
// from the one currently in flight.
func IsNewOrderQuery(m, currentOrderID string) bool {
	newID := ExtractOrderNumber(m)
	if newID == "" {
		return false
	}
	if currentOrderID == "" {
		return true
	}
	return CanonicalOrderID(newID) != CanonicalOrderID(currentOrderID)
}

// ExtractPhone pulls a Taiwanese phone out of the message. Strict mode
// accepts only 09xxxxxxxx mobiles or 0[2-8] landlines; lax mode falls back
// to any run of 8+ digits. Returns "" when nothing matches.
func ExtractPhone(m string, strict bool) string {
	clean := strings.NewReplacer(" ", "", "-", "", "+", "").Replace(m)
	if p := mobileRe.FindString(clean); p != "" {
		return p
	}
	if strict {
		return landlineRe.FindString(clean)
	}
	return laxPhoneRe.FindString(clean)
}

// IsPhoneNumber reports whether the message contains a strict-format phone.
func IsPhoneNumber(m string) bool { return ExtractPhone(m, true) != "" }

// IsConfirmation detects yes-answers. Politeness words suppress the match
// so a closing 謝謝 is not mistaken for agreement; a keyword inside a short
// message (10 runes or fewer) also counts.
func IsConfirmation(m string) bool {
	lower := strings.ToLower(strings.TrimSpace(m))
	if containsAny(lower, politeWords) {
		return false
	}
	for _, kw := range confirmKeywords {
		if lower == kw {
			return true
		}
	}
	if utf8.RuneCountInString(m) <= 10 {
		return containsAny(lower, confirmKeywords)
	}
	return false
}

// IsRejection detects no-answers, same containment rule as IsConfirmation.
func IsRejection(m string) bool {
	lower := strings.ToLower(strings.TrimSpace(m))
	for _, kw := range rejectKeywords {
		if lower == kw {
			return true
		}
	}
	if utf8.RuneCountInString(m) <= 10 {
		return containsAny(lower, rejectKeywords)
	}
	return false
}

// IsNone detects "no more / nothing" answers in slot-collection prompts.
func IsNone(m string) bool {
	return containsAny(strings.ToLower(strings.TrimSpace(m)), noKeywords)
}

// IsBookingIntent detects an intent to book a room.
func IsBookingIntent(m string) bool { return containsAny(m, bookingKeywords) }

// IsSameDayIntent detects an explicit today/tonight emphasis.
func IsSameDayIntent(m string) bool { return containsAny(m, sameDayKeywords) }

// IsQueryIntent detects an intent to look up an existing order.
func IsQueryIntent(m string) bool { return containsAny(m, queryKeywords) }

// IsCancelIntent detects cancellation language.
func IsCancelIntent(m string) bool { return containsAny(m, cancelKeywords) }

// IsSpecialRequest reports whether the message reads like a facility or
// room preference.
func IsSpecialRequest(m string) bool { return containsAny(m, specialKeywords) }

// ExtractSpecialRequest returns the request text with any embedded order id
// removed and edge punctuation trimmed. Returns "" when the message is not
// a special request at all.
func ExtractSpecialRequest(m string) string {
	if !IsSpecialRequest(m) {
		return ""
	}
	clean := orderRe.ReplaceAllString(m, "")
	clean = edgeTrimRe.ReplaceAllString(clean, "")
	clean = strings.TrimSpace(clean)
	if clean == "" {
		return m
	}
	return clean
}
