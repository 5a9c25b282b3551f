package market

import (
	"math"

	"tradebot/internal/types"
)

// EMA calculates Exponential Moving Average
func EMA(values []float64, period int) float64 {
	if len(values) < period {
		return average(values)
	}

	multiplier := 2.0 / float64(period+1)
	ema := average(values[:period]) // Start with SMA

	for i := period; i < len(values); i++ {
		ema = (values[i]-ema)*multiplier + ema
	}

	return ema
}

// SMA calculates Simple Moving Average
func SMA(values []float64, period int) float64 {
	if len(values) < period {
		return average(values)
	}
	return average(values[len(values)-period:])
}

// RSI calculates Relative Strength Index
// period is typically 14
func RSI(closes []float64, period int) float64 {
	if len(closes) < period+1 {
		return 50 // Not enough data, return neutral
	}

	gains := make([]float64, 0, len(closes)-1)
	losses := make([]float64, 0, len(closes)-1)

	for i := 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gains = append(gains, change)
			losses = append(losses, 0)
		} else {
			gains = append(gains, 0)
			losses = append(losses, -change)
		}
	}

	avgGain := average(gains[:period])
	avgLoss := average(losses[:period])

	// Wilder's smoothing
	for i := period; i < len(gains); i++ {
		avgGain = (avgGain*(float64(period)-1) + gains[i]) / float64(period)
		avgLoss = (avgLoss*(float64(period)-1) + losses[i]) / float64(period)
	}

	if avgLoss == 0 {
		return 100
	}

	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// ATR calculates Average True Range over candles
func ATR(candles []types.Candle, period int) float64 {
	if len(candles) < period+1 {
		return 0
	}

	trueRanges := make([]float64, 0, len(candles)-1)

	for i := 1; i < len(candles); i++ {
		high := candles[i].High
		low := candles[i].Low
		prevClose := candles[i-1].Close

		tr := math.Max(high-low, math.Max(math.Abs(high-prevClose), math.Abs(low-prevClose)))
		trueRanges = append(trueRanges, tr)
	}

	// Wilder's smoothing
	atr := average(trueRanges[:period])
	for i := period; i < len(trueRanges); i++ {
		atr = (atr*(float64(period)-1) + trueRanges[i]) / float64(period)
	}

	return atr
}

func average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
