// Package metrics exposes Prometheus metrics the bot updates during
// operation:
//   - bot_orders_placed_total{kind}    – orders placed per order role
//   - bot_orders_cancelled_total{kind} – cancellations per order role
//   - bot_orders_filled_total{kind}    – fills per order role
//   - bot_signals_total{kind,state}    – shadow signal activations/deactivations
//   - bot_stoploss_hits_total          – protective order fills
//   - bot_last_price                   – last observed trade price (gauge)
//   - bot_prediction_score             – smoothed prediction score (gauge)
//   - bot_stoploss_level               – current protective level (gauge)
//   - bot_ticks_total                  – market ticks processed
//
// Registered in init() and served at /metrics by the status server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"tradebot/internal/notify"
)

var (
	ordersPlaced = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_orders_placed_total",
			Help: "Orders placed per order role",
		},
		[]string{"kind"},
	)

	ordersCancelled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_orders_cancelled_total",
			Help: "Orders cancelled per order role",
		},
		[]string{"kind"},
	)

	ordersFilled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_orders_filled_total",
			Help: "Orders filled per order role",
		},
		[]string{"kind"},
	)

	signals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_signals_total",
			Help: "Shadow signal activations and deactivations",
		},
		[]string{"kind", "state"},
	)

	stoplossHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bot_stoploss_hits_total",
			Help: "Protective order fills",
		},
	)

	lastPrice = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bot_last_price",
			Help: "Last observed trade price",
		},
	)

	predictionScore = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bot_prediction_score",
			Help: "Smoothed prediction score",
		},
	)

	stoplossLevel = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bot_stoploss_level",
			Help: "Current protective stop level",
		},
	)

	ticksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bot_ticks_total",
			Help: "Market ticks processed",
		},
	)
)

func init() {
	prometheus.MustRegister(ordersPlaced, ordersCancelled, ordersFilled)
	prometheus.MustRegister(signals, stoplossHits)
	prometheus.MustRegister(lastPrice, predictionScore, stoplossLevel, ticksTotal)
}

// ObserveTick records one processed market tick and its price.
func ObserveTick(price float64) {
	ticksTotal.Inc()
	lastPrice.Set(price)
}

// Sink adapts domain events onto the Prometheus counters.
type Sink struct{}

func (Sink) Publish(e notify.Event) {
	kind := e.Kind.String()
	switch e.Type {
	case notify.OrderPlaced:
		ordersPlaced.WithLabelValues(kind).Inc()
	case notify.OrderCancelled:
		ordersCancelled.WithLabelValues(kind).Inc()
	case notify.OrderFilled:
		ordersFilled.WithLabelValues(kind).Inc()
	case notify.SignalActivated:
		signals.WithLabelValues(kind, "activated").Inc()
	case notify.SignalDeactivated:
		signals.WithLabelValues(kind, "deactivated").Inc()
	case notify.StopLossHit:
		stoplossHits.Inc()
	case notify.StopLossUpdated:
		stoplossLevel.Set(e.Level)
	case notify.Prediction:
		if e.ScoreMAReady {
			predictionScore.Set(e.ScoreMA)
		}
	}
}
