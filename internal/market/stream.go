package market

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2"

	"tradebot/internal/types"
)

// Streamer feeds kline ticks from the exchange websocket into the engine's
// event channel. There is no auto-reconnect: losing the stream means the
// local candle history can silently go stale, so a disconnect is reported as
// fatal and an external supervisor restarts the process through recovery.
type Streamer struct {
	symbol    string
	interval  string
	eventChan chan<- types.Event
	logger    *slog.Logger
	stopC     chan struct{}
}

// NewStreamer creates a kline streamer for one symbol.
func NewStreamer(symbol, interval string, eventChan chan<- types.Event, logger *slog.Logger) *Streamer {
	return &Streamer{
		symbol:    symbol,
		interval:  interval,
		eventChan: eventChan,
		logger:    logger,
	}
}

// Start connects the websocket. The returned channel delivers exactly one
// error when the stream fails or disconnects.
func (s *Streamer) Start(ctx context.Context) (<-chan error, error) {
	fatalC := make(chan error, 1)

	handler := func(event *binance.WsKlineEvent) {
		tick, err := parseWsKline(event)
		if err != nil {
			s.logger.Error("[MARKET] Failed to parse kline event",
				"symbol", s.symbol, "error", err)
			return
		}

		select {
		case s.eventChan <- types.Event{Tick: tick}:
		case <-ctx.Done():
		}
	}

	errHandler := func(err error) {
		s.logger.Error("[MARKET] WebSocket error", "symbol", s.symbol, "error", err)
		select {
		case fatalC <- fmt.Errorf("kline stream error for %s: %w", s.symbol, err):
		default:
		}
	}

	doneC, stopC, err := binance.WsKlineServe(strings.ToLower(s.symbol), s.interval, handler, errHandler)
	if err != nil {
		return nil, fmt.Errorf("failed to connect kline stream for %s: %w", s.symbol, err)
	}
	s.stopC = stopC

	s.logger.Info("[MARKET] Kline stream connected",
		"symbol", s.symbol, "interval", s.interval)

	go func() {
		<-doneC
		select {
		case fatalC <- fmt.Errorf("kline stream for %s disconnected", s.symbol):
		default:
		}
	}()

	return fatalC, nil
}

// Stop closes the websocket.
func (s *Streamer) Stop() {
	if s.stopC != nil {
		close(s.stopC)
		s.stopC = nil
	}
}

func parseWsKline(event *binance.WsKlineEvent) (*types.Tick, error) {
	k := event.Kline

	open, err := strconv.ParseFloat(k.Open, 64)
	if err != nil {
		return nil, fmt.Errorf("bad open %q: %w", k.Open, err)
	}
	high, err := strconv.ParseFloat(k.High, 64)
	if err != nil {
		return nil, fmt.Errorf("bad high %q: %w", k.High, err)
	}
	low, err := strconv.ParseFloat(k.Low, 64)
	if err != nil {
		return nil, fmt.Errorf("bad low %q: %w", k.Low, err)
	}
	cls, err := strconv.ParseFloat(k.Close, 64)
	if err != nil {
		return nil, fmt.Errorf("bad close %q: %w", k.Close, err)
	}
	volume, err := strconv.ParseFloat(k.Volume, 64)
	if err != nil {
		return nil, fmt.Errorf("bad volume %q: %w", k.Volume, err)
	}

	return &types.Tick{
		OpenTime:  time.UnixMilli(k.StartTime),
		EventTime: time.UnixMilli(event.Time),
		Open:      open,
		High:      high,
		Low:       low,
		Close:     cls,
		Volume:    volume,
		Closed:    k.IsFinal,
	}, nil
}

// Bootstrap fetches historical closed candles over REST to warm up indicator
// history before the stream starts. The most recent kline is dropped when it
// is still open.
func Bootstrap(ctx context.Context, symbol, interval string, limit int) ([]types.Candle, error) {
	client := binance.NewClient("", "") // Public endpoint, no auth needed

	klines, err := client.NewKlinesService().
		Symbol(symbol).
		Interval(interval).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get klines for %s: %w", symbol, err)
	}

	now := time.Now()
	result := make([]types.Candle, 0, len(klines))
	for _, k := range klines {
		if time.UnixMilli(k.CloseTime).After(now) {
			continue
		}
		open, _ := strconv.ParseFloat(k.Open, 64)
		high, _ := strconv.ParseFloat(k.High, 64)
		low, _ := strconv.ParseFloat(k.Low, 64)
		cls, _ := strconv.ParseFloat(k.Close, 64)
		volume, _ := strconv.ParseFloat(k.Volume, 64)

		result = append(result, types.Candle{
			OpenTime: time.UnixMilli(k.OpenTime),
			Open:     open,
			High:     high,
			Low:      low,
			Close:    cls,
			Volume:   volume,
		})
	}

	return result, nil
}
