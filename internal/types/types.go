package types

import (
	"time"
)

// OrderKind identifies one of the managed order roles. The OCO variants are
// the sell and stop-loss roles when both legs belong to one exchange-side
// order group.
type OrderKind int

const (
	KindBuy OrderKind = iota
	KindSell
	KindStopLoss
	KindOCOSell
	KindOCOStopLoss
)

// String returns the human-readable order name used in notifications.
func (k OrderKind) String() string {
	switch k {
	case KindBuy:
		return "buy"
	case KindSell:
		return "sell"
	case KindStopLoss:
		return "stop-loss"
	case KindOCOSell:
		return "OCO sell"
	case KindOCOStopLoss:
		return "OCO stop-loss"
	}
	return "unknown"
}

// Slot maps an order kind to the slot that tracks it. The OCO variants share
// the plain sell and stop-loss slots.
func (k OrderKind) Slot() SlotID {
	switch k {
	case KindSell, KindOCOSell:
		return SlotSell
	case KindStopLoss, KindOCOStopLoss:
		return SlotStopLoss
	default:
		return SlotBuy
	}
}

// SlotID identifies one of the three persisted order slots.
type SlotID int

const (
	SlotBuy SlotID = iota
	SlotSell
	SlotStopLoss
)

func (s SlotID) String() string {
	switch s {
	case SlotSell:
		return "sell"
	case SlotStopLoss:
		return "stop-loss"
	default:
		return "buy"
	}
}

// Side represents buy or sell
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// OrderStatus mirrors the exchange's order status strings.
type OrderStatus string

const (
	StatusNew             OrderStatus = "NEW"
	StatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	StatusFilled          OrderStatus = "FILLED"
	StatusCanceled        OrderStatus = "CANCELED"
	StatusRejected        OrderStatus = "REJECTED"
	StatusExpired         OrderStatus = "EXPIRED"
)

// Terminal reports whether the status ends the order's life on the exchange.
func (s OrderStatus) Terminal() bool {
	switch s {
	case StatusFilled, StatusCanceled, StatusRejected, StatusExpired:
		return true
	}
	return false
}

// Known reports whether the status is one the state machine understands.
// Anything else is alerted as unexpected and otherwise ignored.
func (s OrderStatus) Known() bool {
	switch s {
	case StatusNew, StatusPartiallyFilled, StatusFilled,
		StatusCanceled, StatusRejected, StatusExpired:
		return true
	}
	return false
}

// Tick is one kline update from the market stream. Closed marks the candle
// closing tick; intermediate ticks carry the running values.
type Tick struct {
	OpenTime  time.Time `json:"open_time"`
	EventTime time.Time `json:"event_time"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
	Closed    bool      `json:"closed"`
}

// Candle represents a closed OHLCV candle in market history.
type Candle struct {
	OpenTime time.Time `json:"open_time"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   float64   `json:"volume"`
}

// CommandAction enumerates the operator command surface.
type CommandAction int

const (
	CmdEnableTrading CommandAction = iota
	CmdDisableTrading
	CmdEnableStopLoss
	CmdDisableStopLoss
	CmdCancelOrders
	CmdResetFlags
	CmdSwitchMode
	CmdPriceInfo
	CmdHelp
	CmdRestart
)

// OperatorCommand is a command from the authorized operator, delivered to the
// engine through the same input channel as market ticks.
type OperatorCommand struct {
	Action CommandAction
	Arg    string
}

// Event is the unified event type for the engine's fan-in channel.
type Event struct {
	Tick    *Tick
	Command *OperatorCommand
}
