// Package llm is the fallthrough concierge: questions no flow claims go to
// Gemini, with hotel tools attached. Mutating tools either write a bounded
// supplement or hand the conversation back to a flow; the model never
// commits a booking from its own arguments.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/ktwhotel/concierge/internal/intent"
	"github.com/ktwhotel/concierge/internal/pms"
	"github.com/ktwhotel/concierge/internal/privacy"
	"github.com/ktwhotel/concierge/internal/session"
	"github.com/ktwhotel/concierge/internal/weather"
)

// toolRounds bounds the function-calling loop per message.
const toolRounds = 3

// Opts configures the concierge.
type Opts struct {
	APIKey      string
	Model       string // default gemini-2.0-flash
	VisionModel string // defaults to Model
	PMS         pms.API
	Weather     weather.Client // optional

	// StartBooking flips the session into the same-day booking flow and
	// returns the flow's opening message. Optional; without it the booking
	// tool reports itself unavailable.
	StartBooking func(ctx context.Context, s *session.Session) (string, error)
}

// Concierge answers free-form guest questions.
type Concierge struct {
	client       *genai.Client
	model        *genai.GenerativeModel
	vision       *genai.GenerativeModel
	pms          pms.API
	weather      weather.Client
	startBooking func(ctx context.Context, s *session.Session) (string, error)
}

// New connects to Gemini and declares the hotel tools.
func New(ctx context.Context, opts Opts) (*Concierge, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("llm: api key is required")
	}
	if opts.PMS == nil {
		return nil, fmt.Errorf("llm: pms client is required")
	}
	if opts.Model == "" {
		opts.Model = "gemini-2.0-flash"
	}
	if opts.VisionModel == "" {
		opts.VisionModel = opts.Model
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(opts.APIKey))
	if err != nil {
		return nil, fmt.Errorf("llm: create client: %w", err)
	}

	model := client.GenerativeModel(opts.Model)
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(privacy.SystemPrompt)}}
	model.Tools = hotelTools()

	vision := client.GenerativeModel(opts.VisionModel)
	vision.SystemInstruction = model.SystemInstruction

	return &Concierge{
		client:       client,
		model:        model,
		vision:       vision,
		pms:          opts.PMS,
		weather:      opts.Weather,
		startBooking: opts.StartBooking,
	}, nil
}

// Close releases the underlying connection.
func (c *Concierge) Close() {
	if c.client != nil {
		c.client.Close()
	}
}

func hotelTools() []*genai.Tool {
	return []*genai.Tool{{
		FunctionDeclarations: []*genai.FunctionDeclaration{
			{
				Name:        "check_order_status",
				Description: "查詢訂單目前的狀態（是否有效、入住日期）。只回傳狀態，不回傳個資。",
				Parameters: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"order_id": {Type: genai.TypeString, Description: "訂單編號"},
					},
					Required: []string{"order_id"},
				},
			},
			{
				Name:        "update_guest_info",
				Description: "把客人提供的聯絡電話、抵達時間或特殊需求補充到訂單上。",
				Parameters: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"order_id":        {Type: genai.TypeString, Description: "訂單編號"},
						"phone":           {Type: genai.TypeString, Description: "聯絡電話"},
						"arrival_time":    {Type: genai.TypeString, Description: "預計抵達時間"},
						"special_request": {Type: genai.TypeString, Description: "特殊需求"},
					},
					Required: []string{"order_id"},
				},
			},
			{
				Name:        "check_today_availability",
				Description: "查詢今晚尚有空房的房型與價格。",
			},
			{
				Name:        "create_same_day_booking",
				Description: "為客人開始今晚的當日訂房流程。呼叫後請將 reply_to_guest 的內容原封不動回覆給客人。",
			},
			{
				Name:        "get_weather_forecast",
				Description: "查詢指定日期的天氣預報。",
				Parameters: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"date": {Type: genai.TypeString, Description: "日期，格式 YYYY-MM-DD"},
					},
					Required: []string{"date"},
				},
			},
			{
				Name:        "get_weekly_forecast",
				Description: "查詢未來一週的天氣預報。",
			},
		},
	}}
}

// Respond answers one free-form message, resolving tool calls as they come.
func (c *Concierge) Respond(ctx context.Context, s *session.Session, msg string) (string, error) {
	cs := c.model.StartChat()
	resp, err := cs.SendMessage(ctx, genai.Text(msg))
	if err != nil {
		return "", fmt.Errorf("llm: generate: %w", err)
	}

	for round := 0; round < toolRounds; round++ {
		calls := functionCalls(resp)
		if len(calls) == 0 {
			break
		}
		var results []genai.Part
		for _, call := range calls {
			results = append(results, genai.FunctionResponse{
				Name:     call.Name,
				Response: c.dispatch(ctx, s, call),
			})
		}
		resp, err = cs.SendMessage(ctx, results...)
		if err != nil {
			return "", fmt.Errorf("llm: tool round: %w", err)
		}
	}
	text := responseText(resp)
	if text == "" {
		return "", fmt.Errorf("llm: empty response")
	}
	return text, nil
}

// orderIDPrompt keeps the vision reply to a single line so the id can be
// parsed out mechanically.
const orderIDPrompt = "如果這張圖片是訂房確認信或訂單截圖，請只回覆圖中的訂單編號（5到10位數字）。如果看不到訂單編號，請回覆 NONE。"

// ExtractOrderID pulls an order id out of an uploaded screenshot, "" when
// the image carries none.
func (c *Concierge) ExtractOrderID(ctx context.Context, data []byte, format string) (string, error) {
	if format == "" {
		format = "jpeg"
	}
	resp, err := c.vision.GenerateContent(ctx,
		genai.Text(orderIDPrompt),
		genai.ImageData(format, data))
	if err != nil {
		return "", fmt.Errorf("llm: extract order id: %w", err)
	}
	text := strings.TrimSpace(responseText(resp))
	if text == "" || strings.Contains(text, "NONE") {
		return "", nil
	}
	return intent.ExtractOrderNumber(text), nil
}

// DescribeImage runs the vision model over an uploaded photo.
func (c *Concierge) DescribeImage(ctx context.Context, data []byte, format string) (string, error) {
	if format == "" {
		format = "jpeg"
	}
	resp, err := c.vision.GenerateContent(ctx,
		genai.Text("請用繁體中文簡短描述這張圖片，並判斷是否與訂房或飯店相關。"),
		genai.ImageData(format, data))
	if err != nil {
		return "", fmt.Errorf("llm: describe image: %w", err)
	}
	text := responseText(resp)
	if text == "" {
		return "", fmt.Errorf("llm: empty vision response")
	}
	return text, nil
}

// dispatch runs one tool call. Results are plain maps; errors come back as
// a message for the model to relay.
func (c *Concierge) dispatch(ctx context.Context, s *session.Session, call genai.FunctionCall) map[string]any {
	switch call.Name {
	case "check_order_status":
		return c.orderStatus(ctx, stringArg(call.Args, "order_id"))
	case "update_guest_info":
		return c.updateGuestInfo(ctx, call.Args)
	case "check_today_availability":
		return c.todayAvailability(ctx)
	case "create_same_day_booking":
		return c.startBookingFlow(ctx, s)
	case "get_weather_forecast":
		return c.forecast(ctx, stringArg(call.Args, "date"))
	case "get_weekly_forecast":
		return c.weekly(ctx)
	default:
		return map[string]any{"error": "unknown function"}
	}
}

// orderStatus returns only status facts; guest identity stays out of the
// model context.
func (c *Concierge) orderStatus(ctx context.Context, orderID string) map[string]any {
	if err := privacy.CheckInput(orderID); err != nil {
		return map[string]any{"error": "invalid order id"}
	}
	b, err := c.pms.GetBooking(ctx, orderID)
	if err == pms.ErrNotFound {
		return map[string]any{"found": false}
	}
	if err != nil {
		log.Printf("llm: order status %s: %v", orderID, err)
		return map[string]any{"error": "lookup failed"}
	}
	return map[string]any{
		"found":     true,
		"cancelled": b.Cancelled(),
		"check_in":  b.CheckInDate,
		"check_out": b.CheckOutDate,
		"nights":    b.Nights,
	}
}

func (c *Concierge) updateGuestInfo(ctx context.Context, args map[string]any) map[string]any {
	orderID := stringArg(args, "order_id")
	if err := privacy.CheckInput(orderID); err != nil {
		return map[string]any{"error": "invalid order id"}
	}
	sup := pms.Supplement{
		ConfirmedPhone: stringArg(args, "phone"),
		ArrivalTime:    stringArg(args, "arrival_time"),
	}
	if req := stringArg(args, "special_request"); req != "" {
		sup.AIExtractedRequests = []string{req}
	}
	if sup.ConfirmedPhone == "" && sup.ArrivalTime == "" && len(sup.AIExtractedRequests) == 0 {
		return map[string]any{"error": "nothing to update"}
	}
	if err := c.pms.UpdateSupplement(ctx, orderID, sup); err != nil {
		log.Printf("llm: update guest info %s: %v", orderID, err)
		return map[string]any{"error": "update failed"}
	}
	return map[string]any{"updated": true}
}

// startBookingFlow hands the conversation to the booking flow. The session
// state flips here, so the guest's next message goes straight to the flow.
func (c *Concierge) startBookingFlow(ctx context.Context, s *session.Session) map[string]any {
	if c.startBooking == nil {
		return map[string]any{"error": "booking flow unavailable"}
	}
	first, err := c.startBooking(ctx, s)
	if err != nil {
		log.Printf("llm: start booking: %v", err)
		return map[string]any{"error": "booking flow unavailable"}
	}
	return map[string]any{"started": true, "reply_to_guest": first}
}

func (c *Concierge) todayAvailability(ctx context.Context) map[string]any {
	avail, err := c.pms.TodayAvailability(ctx)
	if err != nil {
		log.Printf("llm: availability: %v", err)
		return map[string]any{"error": "lookup failed"}
	}
	buf, _ := json.Marshal(avail)
	return map[string]any{"available_room_types": json.RawMessage(buf)}
}

func (c *Concierge) forecast(ctx context.Context, date string) map[string]any {
	if c.weather == nil {
		return map[string]any{"error": "weather unavailable"}
	}
	fc, err := c.weather.Forecast(ctx, date)
	if err != nil {
		return map[string]any{"error": "forecast unavailable"}
	}
	return map[string]any{"date": fc.Date, "summary": fc.Line()}
}

func (c *Concierge) weekly(ctx context.Context) map[string]any {
	if c.weather == nil {
		return map[string]any{"error": "weather unavailable"}
	}
	fcs, err := c.weather.Weekly(ctx)
	if err != nil {
		return map[string]any{"error": "forecast unavailable"}
	}
	var lines []string
	for _, fc := range fcs {
		lines = append(lines, fc.Date+" "+fc.Line())
	}
	return map[string]any{"days": lines}
}

func functionCalls(resp *genai.GenerateContentResponse) []genai.FunctionCall {
	var calls []genai.FunctionCall
	if resp == nil {
		return nil
	}
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if fc, ok := part.(genai.FunctionCall); ok {
				calls = append(calls, fc)
			}
		}
	}
	return calls
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var out string
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			out += string(txt)
		}
	}
	return out
}

func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}
