package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"tradebot/internal/config"
	"tradebot/internal/exchange"
	"tradebot/internal/market"
	"tradebot/internal/notify"
	"tradebot/internal/predict"
	"tradebot/internal/state"
	"tradebot/internal/types"
)

// Engine owns all trading state mutations. Market ticks and operator
// commands arrive on one channel and are processed sequentially, so slot
// transitions never race; exchange calls block the loop but carry per-call
// timeouts.
type Engine struct {
	cfg       *config.Config
	store     *state.Store
	gateway   exchange.Gateway
	history   *market.History
	predictor predict.Predictor
	smoother  *predict.Smoother
	events    notify.Sink
	logger    *slog.Logger

	eventChan chan types.Event
	interval  time.Duration

	// shutdown requests a clean process exit (restart, mode switch, stale
	// feed). The process supervisor restarts the bot, which resumes through
	// recovery.
	shutdown func(reason string)
	now      func() time.Time

	lastSnapshot        market.Snapshot
	tickCounter         int
	lastOrderUpdateTick int
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the engine's wall clock.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithShutdown sets the callback for clean-exit requests.
func WithShutdown(fn func(reason string)) Option {
	return func(e *Engine) { e.shutdown = fn }
}

// New creates the engine. history must already hold the bootstrap candles.
func New(
	cfg *config.Config,
	store *state.Store,
	gateway exchange.Gateway,
	history *market.History,
	predictor predict.Predictor,
	events notify.Sink,
	logger *slog.Logger,
	opts ...Option,
) (*Engine, error) {
	interval, err := parseInterval(cfg.Interval)
	if err != nil {
		return nil, err
	}
	if history.Len() == 0 {
		return nil, fmt.Errorf("candle history is empty")
	}

	e := &Engine{
		cfg:                 cfg,
		store:               store,
		gateway:             gateway,
		history:             history,
		predictor:           predictor,
		smoother:            predict.NewSmoother(cfg.PredictionMAWindow),
		events:              events,
		logger:              logger,
		eventChan:           make(chan types.Event, 256),
		interval:            interval,
		shutdown:            func(string) {},
		now:                 time.Now,
		lastOrderUpdateTick: -1,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.lastSnapshot = history.Snapshot()
	return e, nil
}

// Events returns the channel that feeds the engine. The market streamer and
// the command poller both write here.
func (e *Engine) Events() chan<- types.Event {
	return e.eventChan
}

// Run processes events until the context is cancelled, then flushes state.
func (e *Engine) Run(ctx context.Context) {
	e.logger.Info("[ENGINE] Event loop started",
		"symbol", e.cfg.Symbol(), "interval", e.cfg.Interval)

	for {
		select {
		case <-ctx.Done():
			if err := e.store.ForceFlush(); err != nil {
				e.logger.Error("[ENGINE] Final state flush failed", "error", err)
			} else {
				e.logger.Info("[ENGINE] Final state saved on shutdown")
			}
			return
		case ev := <-e.eventChan:
			switch {
			case ev.Tick != nil:
				e.handleTick(ctx, ev.Tick)
			case ev.Command != nil:
				e.handleCommand(ctx, ev.Command)
			}
			if err := e.store.FlushIfDirty(); err != nil {
				e.logger.Error("[ENGINE] State flush failed", "error", err)
			}
		}
	}
}

func (e *Engine) publish(ev notify.Event) {
	e.events.Publish(ev)
}

func (e *Engine) unixNow() float64 {
	return float64(e.now().UnixNano()) / 1e9
}

// parseInterval converts an exchange kline interval string to a duration.
func parseInterval(s string) (time.Duration, error) {
	if len(s) < 2 {
		return 0, fmt.Errorf("invalid kline interval %q", s)
	}
	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid kline interval %q", s)
	}
	switch s[len(s)-1] {
	case 'm':
		return time.Duration(n) * time.Minute, nil
	case 'h':
		return time.Duration(n) * time.Hour, nil
	case 'd':
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return 0, fmt.Errorf("invalid kline interval %q", s)
}
