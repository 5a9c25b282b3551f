package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTimeDecayGracePeriod(t *testing.T) {
	// No decay during the first half hour after activation.
	assert.Equal(t, 5.0, TimeDecay(5.0, 2.0, 0))
	assert.Equal(t, 5.0, TimeDecay(5.0, 2.0, 1800))
}

func TestTimeDecayHalvesPerUnit(t *testing.T) {
	// Half an hour of grace, then one full hour at factor 2 halves the
	// amplitude.
	assert.InDelta(t, 2.5, TimeDecay(5.0, 2.0, 5400), 1e-9)
	assert.InDelta(t, 1.25, TimeDecay(5.0, 2.0, 9000), 1e-9)
}

func TestTimeDecayConvergesToZero(t *testing.T) {
	prev := TimeDecay(5.0, 2.0, 0)
	for _, elapsed := range []float64{3600, 7200, 36000, 360000} {
		cur := TimeDecay(5.0, 2.0, elapsed)
		assert.Less(t, cur, prev)
		prev = cur
	}
	assert.Less(t, TimeDecay(5.0, 2.0, 3.6e6), 1e-9)
}

func TestPriceDelta(t *testing.T) {
	assert.InDelta(t, 5.0, PriceDelta(123.0, 0, 0, 5.0), 1e-9)
	assert.InDelta(t, 2*9+3*3+1, PriceDelta(3.0, 2, 3, 1), 1e-9)
}

func TestStopLossLevel(t *testing.T) {
	// (100 - 2*1) * (1 - 15/100) = 83.3
	assert.InDelta(t, 83.3, StopLossLevel(100, 1, 2, 15), 1e-9)
	// Zero offset keeps the raw distance-adjusted base.
	assert.InDelta(t, 98.0, StopLossLevel(100, 1, 2, 0), 1e-9)
}
