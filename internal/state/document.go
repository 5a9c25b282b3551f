package state

import (
	"fmt"
	"time"

	"tradebot/internal/types"
)

// timestampLayout is the on-disk textual form for wall-clock timers, with an
// explicit zone offset so the document is portable across host timezones.
const timestampLayout = "2006-01-02 15:04:05 -0700"

// Timestamp is a wall-clock time that serializes to a fixed textual layout.
// The zero value serializes as the empty string.
type Timestamp struct {
	time.Time
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte(`""`), nil
	}
	return []byte(`"` + t.Format(timestampLayout) + `"`), nil
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == `""` || s == "null" {
		t.Time = time.Time{}
		return nil
	}
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("timestamp is not a string: %s", s)
	}
	parsed, err := time.Parse(timestampLayout, s[1:len(s)-1])
	if err != nil {
		return fmt.Errorf("parsing timestamp: %w", err)
	}
	t.Time = parsed
	return nil
}

// Slot tracks one managed order role. Quantities keep the exchange's string
// form so a saved document reloads byte for byte.
type Slot struct {
	Active      bool              `json:"order_active"`
	ID          int64             `json:"order_id"`
	Price       string            `json:"order_price"`
	Status      types.OrderStatus `json:"order_status"`
	OrigQty     string            `json:"original_qty"`
	ExecutedQty string            `json:"executed_qty"`
	CumQuoteQty string            `json:"cum_quote_qty"`
}

// Clear archives the slot after a terminal status. The id and last status
// stay behind for inspection; ids are never reused.
func (s *Slot) Clear() {
	s.Active = false
}

// Signal is one side's shadow-limit signal state. PriceDelta is the decay
// amplitude frozen at activation time.
type Signal struct {
	Flag       bool    `json:"signal_flag"`
	Time       float64 `json:"signal_time"`
	Price      float64 `json:"signal_price"`
	PriceDelta float64 `json:"price_delta"`
}

// Request is intent to place an order, distinct from an order live on the
// exchange.
type Request struct {
	Flag        bool    `json:"order_req_flag"`
	TargetPrice float64 `json:"target_price"`
}

// Balances is the last known account balance for one asset.
type Balances struct {
	Free   string `json:"free"`
	Locked string `json:"locked"`
}

// Document is the durable trading state. It is the single source of truth
// across restarts; exchange queries update fields of existing slots but never
// fabricate one.
type Document struct {
	Mode            string `json:"mode"`
	TradingEnabled  bool   `json:"trading_enabled"`
	StoplossEnabled bool   `json:"stoploss_enabled"`

	PositionOpen bool `json:"position_open"`
	PositionFull bool `json:"position_full"`

	Asset Balances `json:"asset_balance"`
	Quote Balances `json:"quote_balance"`

	BuySignal  Signal `json:"buy_signal"`
	SellSignal Signal `json:"sell_signal"`

	BuyReq      Request `json:"buy_req"`
	SellReq     Request `json:"sell_req"`
	StoplossReq Request `json:"stoploss_req"`

	BuyOrder      Slot `json:"buy_order"`
	SellOrder     Slot `json:"sell_order"`
	StoplossOrder Slot `json:"stoploss_order"`

	StoplossIsOCO bool  `json:"stoploss_is_oco"`
	OCOListID     int64 `json:"oco_list_id"`

	// OrderTimeout is a unix-seconds deadline; no order placement is
	// attempted before it passes.
	OrderTimeout       float64   `json:"order_timeout"`
	StoplossHitTimeout Timestamp `json:"stoploss_hit_timeout"`
	StoplossLevel      float64   `json:"stoploss_level"`

	LastPrice float64 `json:"last_price"`
}

// NewDocument returns the state for a fresh start with no position.
func NewDocument(mode string) *Document {
	return &Document{
		Mode:            mode,
		TradingEnabled:  false,
		StoplossEnabled: true,
	}
}

// Slot returns the slot for one order role.
func (d *Document) Slot(id types.SlotID) *Slot {
	switch id {
	case types.SlotBuy:
		return &d.BuyOrder
	case types.SlotSell:
		return &d.SellOrder
	case types.SlotStopLoss:
		return &d.StoplossOrder
	}
	panic(fmt.Sprintf("unknown slot %d", id))
}

// Request returns the order-request intent for one order role.
func (d *Document) Request(id types.SlotID) *Request {
	switch id {
	case types.SlotBuy:
		return &d.BuyReq
	case types.SlotSell:
		return &d.SellReq
	case types.SlotStopLoss:
		return &d.StoplossReq
	}
	panic(fmt.Sprintf("unknown slot %d", id))
}

// Signal returns one side's signal state.
func (d *Document) Signal(side types.Side) *Signal {
	if side == types.SideBuy {
		return &d.BuySignal
	}
	return &d.SellSignal
}

// SellSideBusy reports whether any sell-side activity is pending or live:
// an active sell order, a sell request, or an armed sell signal.
func (d *Document) SellSideBusy() bool {
	return d.SellOrder.Active || d.SellReq.Flag || d.SellSignal.Flag
}
