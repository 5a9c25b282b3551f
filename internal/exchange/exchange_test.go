package exchange

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradebot/internal/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAPIErrorClassification(t *testing.T) {
	tests := []struct {
		name        string
		err         *APIError
		invalidQty  bool
		ocoRejected bool
	}{
		{
			name:       "invalid quantity",
			err:        &APIError{Code: -1013, Message: "Invalid quantity."},
			invalidQty: true,
		},
		{
			name:        "oco price relationship",
			err:         &APIError{Code: -2010, Message: "The relationship of the prices for the orders is not correct."},
			ocoRejected: true,
		},
		{
			name: "insufficient balance is not benign",
			err:  &APIError{Code: -2010, Message: "Account has insufficient balance for requested action."},
		},
		{
			name: "other -1013 message is not benign",
			err:  &APIError{Code: -1013, Message: "Filter failure: PRICE_FILTER"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.invalidQty, tt.err.InvalidQuantity())
			assert.Equal(t, tt.ocoRejected, tt.err.OCOPriceInvalid())
		})
	}
}

func TestAsAPIErrorUnwrapsChains(t *testing.T) {
	inner := &APIError{Code: -1013, Message: "Invalid quantity."}
	wrapped := fmt.Errorf("placing sell: %w", inner)

	got, ok := AsAPIError(wrapped)
	require.True(t, ok)
	assert.True(t, got.InvalidQuantity())

	_, ok = AsAPIError(fmt.Errorf("plain failure"))
	assert.False(t, ok)
}

func TestSplitOCOByType(t *testing.T) {
	stop := Order{ID: 2, Type: StopLossLimitType, Price: "95.00"}
	limit := Order{ID: 1, Type: "LIMIT_MAKER", Price: "105.00"}

	for _, reports := range [][]Order{{limit, stop}, {stop, limit}} {
		gotStop, gotLimit, err := SplitOCO(reports)
		require.NoError(t, err)
		assert.Equal(t, int64(2), gotStop.ID)
		assert.Equal(t, int64(1), gotLimit.ID)
	}
}

func TestSplitOCORejectsMalformedReports(t *testing.T) {
	stop := Order{ID: 2, Type: StopLossLimitType}
	limit := Order{ID: 1, Type: "LIMIT_MAKER"}

	for _, reports := range [][]Order{
		{limit, limit},
		{stop, stop},
		{stop},
		nil,
	} {
		_, _, err := SplitOCO(reports)
		assert.ErrorIs(t, err, ErrOCOLegMismatch)
	}
}

func TestMockOCOCancelAcceptsEitherLeg(t *testing.T) {
	ctx := context.Background()

	for _, legIdx := range []int{0, 1} {
		m := NewMockGateway(testLogger(), WithStopLegFirst())
		oco, err := m.PlaceOCOSell(ctx, 1.0, 105.0, 95.0)
		require.NoError(t, err)

		legs := []int64{oco.Limit.ID, oco.Stop.ID}
		res, err := m.CancelOCO(ctx, legs[legIdx])
		require.NoError(t, err)

		assert.Equal(t, types.StatusCanceled, res.Limit.Status)
		assert.Equal(t, types.StatusCanceled, res.Stop.Status)
		assert.Equal(t, oco.ListID, res.ListID)
	}
}

func TestMockFailNextIsOneShot(t *testing.T) {
	ctx := context.Background()
	m := NewMockGateway(testLogger())
	m.FailNext(&APIError{Code: -2010, Message: "The relationship of the prices for the orders is not correct."})

	_, err := m.PlaceOCOSell(ctx, 1.0, 105.0, 95.0)
	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.True(t, apiErr.OCOPriceInvalid())

	o, err := m.PlaceLimit(ctx, types.SideSell, 1.0, 105.0)
	require.NoError(t, err)
	assert.Equal(t, types.StatusNew, o.Status)
}
