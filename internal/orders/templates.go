package orders

import "fmt"

// Templates below are fixed guest-facing copy. Wording is agreed with the
// front desk; change only together with them.

// ConfirmPrompt wraps the order block in the found-it question.
func ConfirmPrompt(details string) string {
	return "📋 我幫您找到了這筆訂單：\n\n" + details + "\n\n請問是這筆訂單嗎？"
}

// NotFound is sent when neither the PMS nor the mail archive resolves an id.
func NotFound(orderID string) string {
	return fmt.Sprintf("抱歉，找不到訂單編號 %s。\n\n請確認是否輸入正確？您可以再提供一次訂單編號，或傳送訂單截圖讓我幫您查詢。", orderID)
}

// Cancelled is the full-stop reply for a cancelled order.
func Cancelled(frontDesk string) string {
	return "⚠️ 訂單狀態：已取消\n\n此訂單已經取消，無法辦理入住。\n如有疑問，請聯繫櫃檯：" + frontDesk
}

// Closure is the fixed completion block for a confirmed order query.
func Closure(orderID, checkIn, phone, arrival, special string) string {
	if special == "" {
		special = "無"
	}
	return fmt.Sprintf(`✅ 已為您完成預訂資訊確認！

📋 預訂摘要：
• 訂單編號: %s
• 入住日期: %s
• 聯絡電話: %s
• 預計抵達: %s
• 特殊需求: %s

📌 環保政策提醒:
配合減塑／環保政策，我們旅館目前不提供任何一次性備品（如小包裝牙刷、牙膏、刮鬍刀、拖鞋等）。

房內仍提供可重複使用的洗沐用品（大瓶裝或壁掛式洗髮乳、沐浴乳）與毛巾等基本用品。

若您習慣使用自己的盥洗用品，建議旅途前記得自備。

謝謝您的理解與配合，一起為環保盡一份心力 🌱

🅿️ 停車流程提醒:
為了讓您的入住流程更順暢，請於抵達當日先至櫃檯辦理入住登記，之後我們的櫃檯人員將會協助引導您前往停車位置 🅿️

感謝您的配合，我們期待為您提供舒適的入住體驗。`, orderID, checkIn, phone, arrival, special)
}

// ResumeMessage is appended when a finished flow hands over to the one the
// guest asked about mid-stream.
func ResumeMessage(pendingIntent string) string {
	switch pendingIntent {
	case "same_day_booking":
		return "━━━━━━━━━━━━━━━\n🔔 您剛剛提到的「加訂需求」，現在立刻為您處理！\n\n請問您今天想再加訂什麼房型呢？"
	case "order_query":
		return "━━━━━━━━━━━━━━━\n🔔 您剛剛提到的「查詢訂單」，現在可以為您處理囉！\n\n請提供您的訂單編號或訂房截圖。"
	default:
		return ""
	}
}
