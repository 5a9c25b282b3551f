package engine

import "math"

// decayTimeUnit is the decay reference period in seconds. Decay factors are
// expressed per hour.
const decayTimeUnit = 3600.0

// TimeDecay shrinks a signal amplitude exponentially with elapsed time. The
// first half time-unit after activation is grace time with no decay, so a
// signal does not start converging before the market has had a chance to
// reach it.
func TimeDecay(amplitude, decayFactor, elapsed float64) float64 {
	if elapsed > 0.5*decayTimeUnit {
		elapsed -= 0.5 * decayTimeUnit
	} else {
		elapsed = 0
	}
	return amplitude / math.Exp(math.Log(decayFactor)*elapsed/decayTimeUnit)
}

// PriceDelta maps a volatility measure to a signal amplitude through a
// quadratic with per-side coefficients.
func PriceDelta(volatility, a, b, c float64) float64 {
	return a*volatility*volatility + b*volatility + c
}

// StopLossLevel derives a protective level from a price base (typically a
// moving average), a volatility distance, and a percentage offset.
func StopLossLevel(base, distance, distanceFactor, pctOffset float64) float64 {
	return (base - distanceFactor*distance) * (1.0 - pctOffset/100.0)
}
