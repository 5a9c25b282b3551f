package notify

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"tradebot/internal/types"
)

type captureSink struct {
	events []Event
}

func (c *captureSink) Publish(e Event) {
	c.events = append(c.events, e)
}

func TestDispatcherFansOut(t *testing.T) {
	a := &captureSink{}
	b := &captureSink{}
	d := NewDispatcher(a)
	d.Register(b)

	d.Publish(Event{Type: OrderFilled, OrderID: 42})

	assert.Len(t, a.events, 1)
	assert.Len(t, b.events, 1)
	assert.Equal(t, int64(42), b.events[0].OrderID)
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		text   string
		ok     bool
		action types.CommandAction
		arg    string
	}{
		{"/enable", true, types.CmdEnableTrading, ""},
		{"/mode v04", true, types.CmdSwitchMode, "v04"},
		{"/MODE V04", true, types.CmdSwitchMode, "v04"},
		{"/mode@trade_bot v01", true, types.CmdSwitchMode, "v01"},
		{"/sl_disable", true, types.CmdDisableStopLoss, ""},
		{"  /price  ", true, types.CmdPriceInfo, ""},
		{"/unknown", false, 0, ""},
		{"hello", false, 0, ""},
		{"/", false, 0, ""},
		{"", false, 0, ""},
	}

	for _, tt := range tests {
		cmd, ok := parseCommand(tt.text)
		assert.Equal(t, tt.ok, ok, "text %q", tt.text)
		if ok {
			assert.Equal(t, tt.action, cmd.Action, "text %q", tt.text)
			assert.Equal(t, tt.arg, cmd.Arg, "text %q", tt.text)
		}
	}
}

func TestTelegramFormats(t *testing.T) {
	tg := NewTelegram("token", 1, "BTC", "USDT", 5, 2, 2,
		slog.New(slog.NewTextHandler(io.Discard, nil)))

	tests := []struct {
		name string
		ev   Event
		want string
		html bool
	}{
		{
			name: "order placed",
			ev:   Event{Type: OrderPlaced, Kind: types.KindBuy, OrderID: 7, Qty: 0.123456, Price: 43000.555},
			want: "New buy order for 0.12345 BTC at 43000.56 USDT created (#7)",
		},
		{
			name: "stoploss cancelled",
			ev:   Event{Type: OrderCancelled, Kind: types.KindStopLoss, OrderID: 9},
			want: "Stop-loss order #9 has been cancelled",
		},
		{
			name: "partial fill",
			ev: Event{Type: OrderPartiallyFilled, Kind: types.KindBuy, OrderID: 3,
				OrigQty: 1.0, ExecQty: 0.3, CumQuote: 12900.0},
			want: "Buy order #3 has been partially filled: 0.30000 BTC for 12900.00 USDT (30.0%)",
		},
		{
			name: "filled",
			ev:   Event{Type: OrderFilled, Kind: types.KindOCOSell, OrderID: 5, CumQuote: 44100.0},
			want: "OCO sell order #5 has been filled for 44100.00 USDT!",
		},
		{
			name: "unexpected status",
			ev:   Event{Type: UnexpectedStatus, Kind: types.KindSell, OrderID: 4, Status: "PENDING_CANCEL"},
			want: "Warning: sell order #4 returned status PENDING_CANCEL",
		},
		{
			name: "signal activated",
			ev:   Event{Type: SignalActivated, Kind: types.KindBuy, TargetPrice: 42800.0},
			want: "Buy signal activated! Shadow limit currently at 42800.00 USDT",
		},
		{
			name: "stoploss hit",
			ev: Event{Type: StopLossHit, Level: 42100.0,
				ResumeAt: time.Date(2026, 8, 28, 18, 30, 0, 0, time.UTC)},
			want: "Stop-loss has been hit at 42100.00 USDT!\nTrading paused until 2026-08-28 18:30 (UTC)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, html := tg.format(tt.ev)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.html, html)
		})
	}
}

func TestTelegramPredictionFormatIsHTML(t *testing.T) {
	tg := NewTelegram("token", 1, "BTC", "USDT", 5, 2, 2,
		slog.New(slog.NewTextHandler(io.Discard, nil)))

	got, html := tg.format(Event{
		Type: Prediction, High: 43500, Low: 43000, Close: 43200,
		Score: 0.512, ScoreMA: 0.4049, ScoreMAReady: true,
	})
	assert.True(t, html)
	assert.Contains(t, got, "<b>Prediction:</b> +0.512%")
	assert.Contains(t, got, "<b>Prediction MA2:</b> +0.405%")
}
