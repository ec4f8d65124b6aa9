package flow

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/ktwhotel/concierge/internal/intent"
	"github.com/ktwhotel/concierge/internal/models"
	"github.com/ktwhotel/concierge/internal/session"
)

// Cancel lets a guest cancel a same-day booking made through the chat.
// Official-channel orders stay with the front desk.
type Cancel struct {
	deps Deps
}

// NewCancel validates deps and returns the machine.
func NewCancel(deps Deps) (*Cancel, error) {
	if err := deps.Validate(); err != nil {
		return nil, err
	}
	return &Cancel{deps: deps}, nil
}

// cancellable are the item statuses a guest may still cancel.
var cancellable = []string{"pending", "committed", "interrupted"}

// Start lists the guest's cancellable same-day items.
func (f *Cancel) Start(ctx context.Context, s *session.Session) Result {
	items, err := f.openItems(s)
	if err != nil {
		log.Printf("cancel: list items for %s: %v", s.UserID, err)
		return Result{Reply: "不好意思，系統忙碌中，請稍候再試一次。"}
	}
	if len(items) == 0 {
		s.State = session.Idle
		return Result{Reply: fmt.Sprintf("您目前沒有透過 LINE 訂的當日預訂可以取消 🙏\n\n如果是官網或訂房網的訂單，請來電櫃檯 %s 為您處理。", f.deps.FrontDesk)}
	}
	if len(items) == 1 {
		s.State = StCancelConfirm
		s.Set("cancel_item", items[0].ItemID)
		return Result{Reply: fmt.Sprintf("您要取消這筆當日預訂嗎？\n\n%s\n\n確認取消請回覆「1」，保留請回覆「2」。", itemLine(items[0]))}
	}

	var lines []string
	for i, it := range items {
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, itemLine(it)))
	}
	s.State = StCancelPick
	return Result{Reply: "您有以下當日預訂，請問要取消哪一筆呢？\n\n" + strings.Join(lines, "\n") + "\n\n請回覆編號。"}
}

// Handle processes one message while the subflow is active.
func (f *Cancel) Handle(ctx context.Context, s *session.Session, msg string) Result {
	switch s.State {
	case StCancelPick:
		return f.handlePick(ctx, s, msg)
	case StCancelConfirm:
		return f.handleConfirm(ctx, s, msg)
	default:
		return Result{}
	}
}

func (f *Cancel) handlePick(ctx context.Context, s *session.Session, msg string) Result {
	if intent.IsRejection(msg) || intent.IsNone(msg) {
		s.State = session.Idle
		s.Data = map[string]interface{}{}
		return Result{Reply: "好的，訂單都為您保留著 👌"}
	}
	items, err := f.openItems(s)
	if err != nil || len(items) == 0 {
		s.State = session.Idle
		return Result{Reply: "這些預訂目前無法取消，請來電櫃檯 " + f.deps.FrontDesk + " 為您處理。"}
	}
	pick := atoiSafe(strings.TrimSpace(intent.ConvertNumerals(msg)))
	if pick < 1 || pick > len(items) {
		return Result{Reply: fmt.Sprintf("請回覆 1 到 %d 之間的編號喔。", len(items))}
	}
	it := items[pick-1]
	s.State = StCancelConfirm
	s.Set("cancel_item", it.ItemID)
	return Result{Reply: fmt.Sprintf("您要取消這筆當日預訂嗎？\n\n%s\n\n確認取消請回覆「1」，保留請回覆「2」。", itemLine(it))}
}

func (f *Cancel) handleConfirm(ctx context.Context, s *session.Session, msg string) Result {
	clean := strings.TrimSpace(msg)
	if clean == "2" || intent.IsRejection(msg) {
		s.State = session.Idle
		s.Data = map[string]interface{}{}
		return Result{Reply: "好的，訂單為您保留著，期待您的光臨 😊"}
	}
	if clean != "1" && !intent.IsConfirmation(msg) {
		return Result{Reply: "請回覆「1」確認取消，或「2」保留訂單。"}
	}

	itemID := s.GetString("cancel_item")
	var item models.SameDayItem
	if err := f.deps.DB.Where("item_id = ?", itemID).First(&item).Error; err != nil {
		s.State = session.Idle
		return Result{Reply: "不好意思，找不到這筆預訂了，請來電櫃檯 " + f.deps.FrontDesk + " 確認。"}
	}

	// only committed items exist on the PMS side; drafts are local
	if item.Status == "committed" {
		err := f.deps.PMS.CancelSameDay(ctx, item.ItemID)
		if err != nil {
			err = f.deps.PMS.CancelSameDay(ctx, item.ItemID)
		}
		if err != nil {
			log.Printf("cancel: pms cancel %s: %v", item.ItemID, err)
			s.State = session.Idle
			return Result{Reply: "不好意思，取消時發生問題 🙏\n\n請來電櫃檯 " + f.deps.FrontDesk + "，馬上為您處理。"}
		}
	}
	if err := f.deps.DB.Model(&models.SameDayItem{}).Where("item_id = ?", itemID).
		Update("status", "cancelled").Error; err != nil {
		log.Printf("cancel: mark item %s: %v", itemID, err)
	}
	f.closeOrderIfDone(item.OrderID)

	s.State = session.Idle
	s.Data = map[string]interface{}{}
	return Result{Reply: fmt.Sprintf("已為您取消 ✅\n\n%s\n\n期待下次為您服務！", itemLine(item))}
}

// closeOrderIfDone marks the anchor order cancelled once no open item remains.
func (f *Cancel) closeOrderIfDone(orderID string) {
	var open int64
	if err := f.deps.DB.Model(&models.SameDayItem{}).
		Where("order_id = ? AND status IN ?", orderID, cancellable).
		Count(&open).Error; err != nil || open > 0 {
		return
	}
	if err := f.deps.DB.Model(&models.GuestOrder{}).Where("order_id = ?", orderID).
		Update("status", "cancelled").Error; err != nil {
		log.Printf("cancel: mark order %s: %v", orderID, err)
	}
}

func (f *Cancel) openItems(s *session.Session) ([]models.SameDayItem, error) {
	var items []models.SameDayItem
	err := f.deps.DB.
		Where("tenant_id = ? AND line_user_id = ? AND status IN ?", f.deps.TenantID, s.UserID, cancellable).
		Order("created_at").
		Find(&items).Error
	return items, err
}

func itemLine(it models.SameDayItem) string {
	line := fmt.Sprintf("📋 %s：%s x%d", it.ItemID, it.RoomTypeName, it.RoomCount)
	if it.BedType != "" {
		line += fmt.Sprintf("（%s）", it.BedType)
	}
	return line
}
