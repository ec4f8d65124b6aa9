// Package privacy gates guest-data lookups. Nothing leaves the system for
// an identifier the guest did not actually supply, and stale orders are not
// disclosed at all.
package privacy

import (
	"errors"
	"regexp"
	"time"
)

// ErrBlocked marks a lookup the gate refused. Callers reply with the fixed
// apology and never retry.
var ErrBlocked = errors.New("privacy: lookup blocked")

// Apology is the only text sent for a blocked or unresolvable lookup.
const Apology = "不好意思，我找不到這筆訂單的資料。請您確認訂單編號後再試一次，或直接聯繫櫃檯，謝謝！"

var (
	dateSlashRe = regexp.MustCompile(`\d{1,2}/\d{1,2}`)
	dateISORe   = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)
	nonDigitRe  = regexp.MustCompile(`\D`)
)

// HistoricalWindow is how far back a check-in may lie before the order is
// treated as historical and blocked.
const HistoricalWindow = 5 * 24 * time.Hour

// CheckInput validates a raw identifier before any PMS or mail lookup.
// Date literals are never identifiers, and anything with fewer than five
// digits is too weak to justify disclosure.
func CheckInput(identifier string) error {
	if dateSlashRe.MatchString(identifier) || dateISORe.MatchString(identifier) {
		return ErrBlocked
	}
	digits := nonDigitRe.ReplaceAllString(identifier, "")
	if len(digits) < 5 {
		return ErrBlocked
	}
	return nil
}

// CheckCheckIn blocks orders whose check-in lies more than HistoricalWindow
// in the past, regardless of how well the identifier matched.
func CheckCheckIn(checkIn string, now time.Time) error {
	if checkIn == "" {
		return nil
	}
	ci, err := time.ParseInLocation("2006-01-02", checkIn, now.Location())
	if err != nil {
		return nil
	}
	if now.Sub(ci) > HistoricalWindow {
		return ErrBlocked
	}
	return nil
}

// SystemPrompt is prepended to every LLM conversation. It confines the
// model to relayed tool output so it cannot invent order contents.
const SystemPrompt = `你是墾丁 KTW 飯店的 LINE 客服助理。

規則：
1. 訂單資料只能來自工具回傳的內容，絕對不可以自行編造訂單細節。
2. 工具回傳 not_found 或 blocked 時，只能照固定道歉語回覆，不得猜測。
3. 不可以透露與本次查詢無關的任何客人資料。
4. 回覆使用繁體中文，語氣親切簡潔。`
