package market

import (
	"math"
	"testing"
	"time"

	"tradebot/internal/types"
)

func TestSMA(t *testing.T) {
	tests := []struct {
		name     string
		values   []float64
		period   int
		expected float64
	}{
		{
			name:     "Not enough data",
			values:   []float64{1, 2, 3},
			period:   5,
			expected: 2.0, // Average of available
		},
		{
			name:     "Exact period",
			values:   []float64{1, 2, 3, 4, 5},
			period:   5,
			expected: 3.0,
		},
		{
			name:     "More data than period",
			values:   []float64{1, 2, 3, 4, 5, 6, 7},
			period:   5,
			expected: 5.0, // (3+4+5+6+7)/5 = 25/5 = 5
		},
		{
			name:     "Empty",
			values:   []float64{},
			period:   5,
			expected: 0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SMA(tt.values, tt.period)
			if math.Abs(got-tt.expected) > 0.0001 {
				t.Errorf("SMA() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestEMA(t *testing.T) {
	tests := []struct {
		name     string
		values   []float64
		period   int
		expected float64
	}{
		{
			name:     "Not enough data",
			values:   []float64{1, 2, 3},
			period:   5,
			expected: 2.0, // Average of available
		},
		{
			name:   "Simple calculation",
			values: []float64{1, 2, 3, 4, 5},
			period: 3,
			// Multiplier = 2/4 = 0.5
			// First SMA (1,2,3) = 2.0
			// Next val 4: (4 - 2.0) * 0.5 + 2.0 = 3.0
			// Next val 5: (5 - 3.0) * 0.5 + 3.0 = 4.0
			expected: 4.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EMA(tt.values, tt.period)
			if math.Abs(got-tt.expected) > 0.0001 {
				t.Errorf("EMA() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestRSIExtremes(t *testing.T) {
	rising := make([]float64, 20)
	for i := range rising {
		rising[i] = 100 + float64(i)
	}
	if got := RSI(rising, 14); got != 100 {
		t.Errorf("RSI(rising) = %v, want 100", got)
	}

	falling := make([]float64, 20)
	for i := range falling {
		falling[i] = 100 - float64(i)
	}
	if got := RSI(falling, 14); got > 1 {
		t.Errorf("RSI(falling) = %v, want near 0", got)
	}

	if got := RSI([]float64{1, 2, 3}, 14); got != 50 {
		t.Errorf("RSI(short) = %v, want neutral 50", got)
	}
}

func TestATRConstantRange(t *testing.T) {
	// Candles with constant high-low spread and no gaps have ATR equal to
	// the spread.
	candles := make([]types.Candle, 20)
	for i := range candles {
		candles[i] = types.Candle{High: 105, Low: 100, Close: 102}
	}
	if got := ATR(candles, 10); math.Abs(got-5.0) > 0.0001 {
		t.Errorf("ATR() = %v, want 5.0", got)
	}

	if got := ATR(candles[:5], 10); got != 0 {
		t.Errorf("ATR(short) = %v, want 0", got)
	}
}

func TestHistoryEvictsOldest(t *testing.T) {
	h := NewHistory(nil)
	h.capacity = 5

	base := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 8; i++ {
		h.Append(types.Candle{OpenTime: base.Add(time.Duration(i) * time.Hour), Close: float64(i)})
	}

	if h.Len() != 5 {
		t.Fatalf("Len() = %d, want 5", h.Len())
	}
	if h.Last().Close != 7 {
		t.Errorf("Last().Close = %v, want 7", h.Last().Close)
	}
}

func TestSnapshotFeaturesPerMode(t *testing.T) {
	candles := make([]types.Candle, 120)
	base := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	for i := range candles {
		price := 100.0 + math.Sin(float64(i)/10.0)*5.0
		candles[i] = types.Candle{
			OpenTime: base.Add(time.Duration(i) * time.Hour),
			Open:     price,
			High:     price + 1,
			Low:      price - 1,
			Close:    price,
			Volume:   10,
		}
	}
	snap := NewHistory(candles).Snapshot()

	for _, mode := range []string{"v01", "v04"} {
		feats, err := snap.Features(mode)
		if err != nil {
			t.Fatalf("Features(%s) error: %v", mode, err)
		}
		if len(feats) != 5 {
			t.Errorf("Features(%s) len = %d, want 5", mode, len(feats))
		}
		for i, f := range feats {
			if math.IsNaN(f) || math.IsInf(f, 0) {
				t.Errorf("Features(%s)[%d] = %v", mode, i, f)
			}
		}
	}

	if _, err := snap.Features("v99"); err == nil {
		t.Error("Features(v99) should fail for unknown mode")
	}
}
