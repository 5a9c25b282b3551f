package notify

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"tradebot/internal/types"
)

const telegramAPIBase = "https://api.telegram.org"

// Telegram delivers domain events to the authorized operator chat. Delivery
// is fire and forget; a failed send is logged and dropped, never retried,
// so a Telegram outage cannot stall the trading loop.
type Telegram struct {
	client      *resty.Client
	token       string
	chatID      int64
	asset       string
	quote       string
	qtyDecimals int32
	prcDecimals int32
	maWindow    int
	logger      *slog.Logger
}

// NewTelegram creates the operator notifier.
func NewTelegram(token string, chatID int64, asset, quote string, qtyDecimals, prcDecimals int32, maWindow int, logger *slog.Logger) *Telegram {
	client := resty.New().
		SetBaseURL(telegramAPIBase).
		SetTimeout(10 * time.Second)

	return &Telegram{
		client:      client,
		token:       token,
		chatID:      chatID,
		asset:       asset,
		quote:       quote,
		qtyDecimals: qtyDecimals,
		prcDecimals: prcDecimals,
		maWindow:    maWindow,
		logger:      logger,
	}
}

func (t *Telegram) Publish(e Event) {
	if !e.Alert {
		return
	}
	text, html := t.format(e)
	if text == "" {
		return
	}
	t.Send(text, html, e.Silent)
}

// Send posts one message to the operator chat.
func (t *Telegram) Send(text string, html, silent bool) {
	body := map[string]interface{}{
		"chat_id":              t.chatID,
		"text":                 text,
		"disable_notification": silent,
	}
	if html {
		body["parse_mode"] = "HTML"
	}

	resp, err := t.client.R().
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(fmt.Sprintf("/bot%s/sendMessage", t.token))
	if err != nil {
		t.logger.Error("[TELEGRAM] Failed to send message", "error", err)
		return
	}
	if resp.IsError() {
		t.logger.Error("[TELEGRAM] Send rejected",
			"status", resp.StatusCode(), "body", resp.String())
	}
}

func (t *Telegram) format(e Event) (text string, html bool) {
	switch e.Type {
	case OrderPlaced:
		return fmt.Sprintf("New %s order for %s %s at %s %s created (#%d)",
			e.Kind,
			types.FormatQty(e.Qty, t.qtyDecimals), t.asset,
			types.FormatPrice(e.Price, t.prcDecimals), t.quote,
			e.OrderID), false

	case OrderCancelled:
		return fmt.Sprintf("%s order #%d has been cancelled",
			capitalize(e.Kind.String()), e.OrderID), false

	case OrderPartiallyFilled:
		fraction := 0.0
		if e.OrigQty > 0 {
			fraction = 100.0 * e.ExecQty / e.OrigQty
		}
		return fmt.Sprintf("%s order #%d has been partially filled: %s %s for %s %s (%.1f%%)",
			capitalize(e.Kind.String()), e.OrderID,
			types.FormatQty(e.ExecQty, t.qtyDecimals), t.asset,
			types.FormatPrice(e.CumQuote, t.prcDecimals), t.quote,
			fraction), false

	case OrderFilled:
		return fmt.Sprintf("%s order #%d has been filled for %s %s!",
			capitalize(e.Kind.String()), e.OrderID,
			types.FormatPrice(e.CumQuote, t.prcDecimals), t.quote), false

	case UnexpectedStatus:
		return fmt.Sprintf("Warning: %s order #%d returned status %s",
			e.Kind, e.OrderID, e.Status), false

	case SignalActivated:
		return fmt.Sprintf("%s signal activated! Shadow limit currently at %s %s",
			capitalize(e.Kind.String()),
			types.FormatPrice(e.TargetPrice, t.prcDecimals), t.quote), false

	case SignalDeactivated:
		return fmt.Sprintf("%s signal deactivated", capitalize(e.Kind.String())), false

	case StopLossUpdated:
		return fmt.Sprintf("Updating stop-loss level to %s %s",
			types.FormatPrice(e.Level, t.prcDecimals), t.quote), false

	case StopLossHit:
		return fmt.Sprintf("Stop-loss has been hit at %s %s!\nTrading paused until %s",
			types.FormatPrice(e.Level, t.prcDecimals), t.quote,
			e.ResumeAt.Format("2006-01-02 15:04 (MST)")), false

	case Prediction:
		maLine := fmt.Sprintf("<b>Prediction MA%d:</b> warming up", t.maWindow)
		if e.ScoreMAReady {
			maLine = fmt.Sprintf("<b>Prediction MA%d:</b> %+.3f%%", t.maWindow, e.ScoreMA)
		}
		return fmt.Sprintf("<b>High:</b> %s %s\n<b>Low:</b> %s %s\n<b>Close:</b> %s %s\n<b>Prediction:</b> %+.3f%%\n%s",
			types.FormatPrice(e.High, t.prcDecimals), t.quote,
			types.FormatPrice(e.Low, t.prcDecimals), t.quote,
			types.FormatPrice(e.Close, t.prcDecimals), t.quote,
			e.Score, maLine), true

	case Warning, CommandReply:
		return e.Message, false
	}
	return "", false
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
