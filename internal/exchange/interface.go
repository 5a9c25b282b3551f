package exchange

import (
	"context"
	"errors"
	"fmt"

	"tradebot/internal/types"
)

// Exchange error codes for rejections the trading logic treats as expected.
// These match the numeric codes the exchange returns; anything else is an
// unexpected failure and gets surfaced to the operator.
const (
	CodeInvalidMessage   = -1013
	CodeNewOrderRejected = -2010
)

const (
	msgInvalidQuantity    = "Invalid quantity."
	msgOCOPricesIncorrect = "The relationship of the prices for the orders is not correct."
)

// ErrOCOLegMismatch is returned when a paired-order response does not contain
// exactly one stop-limit leg. Guessing which report is which would corrupt
// both slots, so this is treated as fatal by the reconciliation logic.
var ErrOCOLegMismatch = errors.New("exchange: OCO response lacks exactly one stop-limit leg")

// APIError is a classified exchange rejection carrying the exchange's numeric
// error code.
type APIError struct {
	Code    int64
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("exchange error code=%d, msg=%s", e.Code, e.Message)
}

// InvalidQuantity reports the benign "order too small after rounding"
// rejection.
func (e *APIError) InvalidQuantity() bool {
	return e.Code == CodeInvalidMessage && e.Message == msgInvalidQuantity
}

// OCOPriceInvalid reports the benign "OCO price ordering rejected" rejection,
// which callers fall back from by placing a plain sell.
func (e *APIError) OCOPriceInvalid() bool {
	return e.Code == CodeNewOrderRejected && e.Message == msgOCOPricesIncorrect
}

// AsAPIError extracts a classified exchange error, if err carries one.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// StopLossLimitType is the exchange order type string that identifies the
// protective leg in a paired-order response.
const StopLossLimitType = "STOP_LOSS_LIMIT"

// Order is a normalized exchange order snapshot. Quantities stay in the
// exchange's string form so the persisted document round-trips byte-stable.
type Order struct {
	ID          int64
	ListID      int64
	ClientID    string
	Type        string
	Price       string
	Status      types.OrderStatus
	OrigQty     string
	ExecutedQty string
	CumQuoteQty string
}

// OCOOrders holds the two legs of a paired order, already split by type.
type OCOOrders struct {
	ListID int64
	Limit  Order
	Stop   Order
}

// Balance is one asset's account balance as reported by the exchange.
type Balance struct {
	Asset  string `json:"asset"`
	Free   string `json:"free"`
	Locked string `json:"locked"`
}

// Gateway is the thin typed wrapper around the exchange API. Calls block up
// to the configured per-call timeout and are never retried internally; retry
// is a higher-level decision.
type Gateway interface {
	// PlaceLimit places a limit order on the given side.
	PlaceLimit(ctx context.Context, side types.Side, qty, price float64) (*Order, error)

	// PlaceStopLimit places a sell stop-loss-limit order with stop and limit
	// price both at the given level.
	PlaceStopLimit(ctx context.Context, qty, price float64) (*Order, error)

	// PlaceOCOSell places a paired limit sell + stop-loss-limit order.
	PlaceOCOSell(ctx context.Context, qty, price, stopPrice float64) (*OCOOrders, error)

	// Cancel cancels a single order by id.
	Cancel(ctx context.Context, orderID int64) (*Order, error)

	// CancelOCO cancels a paired order; one call cancels both legs and
	// returns both reports.
	CancelOCO(ctx context.Context, listID int64) (*OCOOrders, error)

	// GetOrder queries the current state of an order by id.
	GetOrder(ctx context.Context, orderID int64) (*Order, error)

	// AssetBalance returns the free/locked balance for one asset.
	AssetBalance(ctx context.Context, asset string) (*Balance, error)
}

// SplitOCO splits a paired-order report list into the stop leg and the limit
// leg by order type. The exchange does not guarantee leg order, so position
// in the list means nothing.
func SplitOCO(reports []Order) (stop, limit Order, err error) {
	stopIdx := -1
	for i, r := range reports {
		if r.Type == StopLossLimitType {
			if stopIdx >= 0 {
				return Order{}, Order{}, ErrOCOLegMismatch
			}
			stopIdx = i
		}
	}
	if stopIdx < 0 || len(reports) != 2 {
		return Order{}, Order{}, ErrOCOLegMismatch
	}
	return reports[stopIdx], reports[1-stopIdx], nil
}
