package market

import (
	"fmt"
	"time"

	"tradebot/internal/types"
)

// defaultCapacity bounds how many closed candles are retained. Indicator
// lookbacks top out around 100, so this leaves ample warm-up.
const defaultCapacity = 1000

// Snapshot is the indicator view of history after the most recent close.
type Snapshot struct {
	OpenTime time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64

	EMA5   float64
	EMA10  float64
	EMA21  float64
	EMA34  float64
	ATR10  float64
	ATR100 float64
	RSI14  float64
}

// History is a bounded buffer of closed candles with indicator snapshots.
// It is owned by the engine loop and not safe for concurrent use.
type History struct {
	candles  []types.Candle
	capacity int
}

// NewHistory creates a history preloaded with bootstrap candles.
func NewHistory(candles []types.Candle) *History {
	h := &History{capacity: defaultCapacity}
	for _, c := range candles {
		h.Append(c)
	}
	return h
}

// Append adds a closed candle, evicting the oldest when over capacity.
func (h *History) Append(c types.Candle) {
	h.candles = append(h.candles, c)
	if len(h.candles) > h.capacity {
		h.candles = h.candles[len(h.candles)-h.capacity:]
	}
}

// Len returns the number of retained candles.
func (h *History) Len() int {
	return len(h.candles)
}

// Last returns the most recent closed candle.
func (h *History) Last() types.Candle {
	return h.candles[len(h.candles)-1]
}

// Snapshot computes indicators over current history.
func (h *History) Snapshot() Snapshot {
	last := h.Last()
	closes := make([]float64, len(h.candles))
	for i, c := range h.candles {
		closes[i] = c.Close
	}

	return Snapshot{
		OpenTime: last.OpenTime,
		Open:     last.Open,
		High:     last.High,
		Low:      last.Low,
		Close:    last.Close,
		Volume:   last.Volume,
		EMA5:     EMA(closes, 5),
		EMA10:    EMA(closes, 10),
		EMA21:    EMA(closes, 21),
		EMA34:    EMA(closes, 34),
		ATR10:    ATR(h.candles, 10),
		ATR100:   ATR(h.candles, 100),
		RSI14:    RSI(closes, 14),
	}
}

// Features builds the normalized model input for a strategy mode. Moving
// averages are expressed relative to the close so the model is scale-free.
func (s Snapshot) Features(mode string) ([]float64, error) {
	switch mode {
	case "v01":
		return []float64{
			(s.EMA5/s.Close - 1.0) * 100.0,
			(s.EMA10/s.Close - 1.0) * 100.0,
			(s.EMA21/s.Close - 1.0) * 100.0,
			(s.EMA34/s.Close - 1.0) * 100.0,
			(s.ATR10/s.Close - 1.0) * 100.0,
		}, nil
	case "v04":
		return []float64{
			s.EMA10/s.Close - 1.0,
			s.EMA21/s.Close - 1.0,
			s.ATR10 / s.Close,
			s.ATR100 / s.Close,
			s.RSI14 / 100.0,
		}, nil
	}
	return nil, fmt.Errorf("unknown strategy mode %q", mode)
}
