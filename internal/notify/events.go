package notify

import (
	"log/slog"
	"time"

	"tradebot/internal/types"
)

// EventType enumerates the domain events the trading engine emits.
type EventType int

const (
	OrderPlaced EventType = iota
	OrderCancelled
	OrderPartiallyFilled
	OrderFilled
	UnexpectedStatus
	SignalActivated
	SignalDeactivated
	StopLossUpdated
	StopLossHit
	Prediction
	Warning
	CommandReply
)

func (t EventType) String() string {
	switch t {
	case OrderPlaced:
		return "order_placed"
	case OrderCancelled:
		return "order_cancelled"
	case OrderPartiallyFilled:
		return "order_partially_filled"
	case OrderFilled:
		return "order_filled"
	case UnexpectedStatus:
		return "unexpected_status"
	case SignalActivated:
		return "signal_activated"
	case SignalDeactivated:
		return "signal_deactivated"
	case StopLossUpdated:
		return "stoploss_updated"
	case StopLossHit:
		return "stoploss_hit"
	case Prediction:
		return "prediction"
	case Warning:
		return "warning"
	case CommandReply:
		return "command_reply"
	}
	return "unknown"
}

// Event is one domain event. The engine only produces these; consumers
// (operator notifications, journaling, metrics) never feed anything back.
// Alert=false suppresses operator delivery entirely (the event still reaches
// journaling and metrics); Silent=true delivers without an audible ping.
type Event struct {
	Type   EventType
	Alert  bool
	Silent bool

	// Order events
	Kind     types.OrderKind
	OrderID  int64
	Status   types.OrderStatus
	Qty      float64
	Price    float64
	OrigQty  float64
	ExecQty  float64
	CumQuote float64

	// Signal / stop-loss events
	TargetPrice float64
	Level       float64
	ResumeAt    time.Time

	// Prediction events
	High         float64
	Low          float64
	Close        float64
	Score        float64
	ScoreMA      float64
	ScoreMAReady bool

	// Warnings and command replies
	Message string
}

// Sink consumes domain events. Publish must not block the trading loop for
// longer than one network call and must never return control-flow decisions.
type Sink interface {
	Publish(Event)
}

// Dispatcher fans one event out to every registered sink in order.
type Dispatcher struct {
	sinks []Sink
}

func NewDispatcher(sinks ...Sink) *Dispatcher {
	return &Dispatcher{sinks: sinks}
}

// Register adds a sink.
func (d *Dispatcher) Register(s Sink) {
	d.sinks = append(d.sinks, s)
}

func (d *Dispatcher) Publish(e Event) {
	for _, s := range d.sinks {
		s.Publish(e)
	}
}

// LogSink writes every event to the structured log.
type LogSink struct {
	Logger *slog.Logger
}

func (l *LogSink) Publish(e Event) {
	l.Logger.Info("[NOTIFY] "+e.Type.String(),
		"kind", e.Kind.String(),
		"order_id", e.OrderID,
		"alert", e.Alert,
		"message", e.Message,
	)
}
