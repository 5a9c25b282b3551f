package exchange

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/google/uuid"

	"tradebot/internal/types"
)

// BinanceGateway implements Gateway against the Binance spot API.
type BinanceGateway struct {
	client      *binance.Client
	symbol      string
	qtyDecimals int32
	prcDecimals int32
	timeout     time.Duration
	logger      *slog.Logger
}

// NewBinanceGateway creates a gateway for one trading symbol. Quantity and
// price decimals come from the symbol's exchange filters and are fixed for
// the life of the process.
func NewBinanceGateway(apiKey, secretKey, symbol string, qtyDecimals, prcDecimals int32, timeout time.Duration, logger *slog.Logger) *BinanceGateway {
	return &BinanceGateway{
		client:      binance.NewClient(apiKey, secretKey),
		symbol:      symbol,
		qtyDecimals: qtyDecimals,
		prcDecimals: prcDecimals,
		timeout:     timeout,
		logger:      logger,
	}
}

func (g *BinanceGateway) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, g.timeout)
}

func newClientOrderID() string {
	return "bot-" + uuid.NewString()
}

func (g *BinanceGateway) PlaceLimit(ctx context.Context, side types.Side, qty, price float64) (*Order, error) {
	ctx, cancel := g.callCtx(ctx)
	defer cancel()

	qtyStr := types.FormatQty(qty, g.qtyDecimals)
	prcStr := types.FormatPrice(price, g.prcDecimals)
	clientID := newClientOrderID()

	g.logger.Info("[EXCHANGE] Placing limit order",
		"side", side, "qty", qtyStr, "price", prcStr, "client_id", clientID)

	resp, err := g.client.NewCreateOrderService().
		Symbol(g.symbol).
		Side(binance.SideType(side)).
		Type(binance.OrderTypeLimit).
		TimeInForce(binance.TimeInForceTypeGTC).
		Quantity(qtyStr).
		Price(prcStr).
		NewClientOrderID(clientID).
		Do(ctx)
	if err != nil {
		return nil, normalizeErr(err)
	}

	return &Order{
		ID:          resp.OrderID,
		ClientID:    resp.ClientOrderID,
		Type:        string(resp.Type),
		Price:       resp.Price,
		Status:      types.OrderStatus(resp.Status),
		OrigQty:     resp.OrigQuantity,
		ExecutedQty: resp.ExecutedQuantity,
		CumQuoteQty: resp.CummulativeQuoteQuantity,
	}, nil
}

// PlaceStopLimit places a sell stop-loss-limit order. The exchange's create
// response for this order type omits price and quantity fields, so those are
// filled from the request and the status is reported as NEW.
func (g *BinanceGateway) PlaceStopLimit(ctx context.Context, qty, price float64) (*Order, error) {
	ctx, cancel := g.callCtx(ctx)
	defer cancel()

	qtyStr := types.FormatQty(qty, g.qtyDecimals)
	prcStr := types.FormatPrice(price, g.prcDecimals)
	clientID := newClientOrderID()

	g.logger.Info("[EXCHANGE] Placing stop-loss order",
		"qty", qtyStr, "price", prcStr, "client_id", clientID)

	resp, err := g.client.NewCreateOrderService().
		Symbol(g.symbol).
		Side(binance.SideTypeSell).
		Type(binance.OrderTypeStopLossLimit).
		TimeInForce(binance.TimeInForceTypeGTC).
		Quantity(qtyStr).
		Price(prcStr).
		StopPrice(prcStr).
		NewClientOrderID(clientID).
		Do(ctx)
	if err != nil {
		return nil, normalizeErr(err)
	}

	return &Order{
		ID:          resp.OrderID,
		ClientID:    resp.ClientOrderID,
		Type:        string(binance.OrderTypeStopLossLimit),
		Price:       prcStr,
		Status:      types.StatusNew,
		OrigQty:     qtyStr,
		ExecutedQty: types.FormatQty(0, g.qtyDecimals),
		CumQuoteQty: types.FormatPrice(0, g.prcDecimals),
	}, nil
}

func (g *BinanceGateway) PlaceOCOSell(ctx context.Context, qty, price, stopPrice float64) (*OCOOrders, error) {
	ctx, cancel := g.callCtx(ctx)
	defer cancel()

	qtyStr := types.FormatQty(qty, g.qtyDecimals)
	prcStr := types.FormatPrice(price, g.prcDecimals)
	stopStr := types.FormatPrice(stopPrice, g.prcDecimals)

	g.logger.Info("[EXCHANGE] Placing OCO sell",
		"qty", qtyStr, "price", prcStr, "stop_price", stopStr)

	resp, err := g.client.NewCreateOCOService().
		Symbol(g.symbol).
		Side(binance.SideTypeSell).
		Quantity(qtyStr).
		Price(prcStr).
		StopPrice(stopStr).
		StopLimitPrice(stopStr).
		StopLimitTimeInForce(binance.TimeInForceTypeGTC).
		Do(ctx)
	if err != nil {
		return nil, normalizeErr(err)
	}

	reports := make([]Order, 0, len(resp.OrderReports))
	for _, r := range resp.OrderReports {
		reports = append(reports, ocoReportToOrder(r))
	}
	stop, limit, err := SplitOCO(reports)
	if err != nil {
		return nil, fmt.Errorf("OCO place response for list %d: %w", resp.OrderListID, err)
	}
	return &OCOOrders{ListID: resp.OrderListID, Limit: limit, Stop: stop}, nil
}

func (g *BinanceGateway) Cancel(ctx context.Context, orderID int64) (*Order, error) {
	ctx, cancel := g.callCtx(ctx)
	defer cancel()

	g.logger.Info("[EXCHANGE] Cancelling order", "order_id", orderID)

	resp, err := g.client.NewCancelOrderService().
		Symbol(g.symbol).
		OrderID(orderID).
		Do(ctx)
	if err != nil {
		return nil, normalizeErr(err)
	}

	return &Order{
		ID:          resp.OrderID,
		ClientID:    resp.ClientOrderID,
		Type:        string(resp.Type),
		Price:       resp.Price,
		Status:      types.OrderStatus(resp.Status),
		OrigQty:     resp.OrigQuantity,
		ExecutedQty: resp.ExecutedQuantity,
		CumQuoteQty: resp.CummulativeQuoteQuantity,
	}, nil
}

func (g *BinanceGateway) CancelOCO(ctx context.Context, listID int64) (*OCOOrders, error) {
	ctx, cancel := g.callCtx(ctx)
	defer cancel()

	g.logger.Info("[EXCHANGE] Cancelling OCO list", "list_id", listID)

	resp, err := g.client.NewCancelOCOService().
		Symbol(g.symbol).
		OrderListID(listID).
		Do(ctx)
	if err != nil {
		return nil, normalizeErr(err)
	}

	reports := make([]Order, 0, len(resp.OrderReports))
	for _, r := range resp.OrderReports {
		reports = append(reports, ocoReportToOrder(r))
	}
	stop, limit, err := SplitOCO(reports)
	if err != nil {
		return nil, fmt.Errorf("OCO cancel response for list %d: %w", listID, err)
	}
	return &OCOOrders{ListID: resp.OrderListID, Limit: limit, Stop: stop}, nil
}

func (g *BinanceGateway) GetOrder(ctx context.Context, orderID int64) (*Order, error) {
	ctx, cancel := g.callCtx(ctx)
	defer cancel()

	resp, err := g.client.NewGetOrderService().
		Symbol(g.symbol).
		OrderID(orderID).
		Do(ctx)
	if err != nil {
		return nil, normalizeErr(err)
	}

	return &Order{
		ID:          resp.OrderID,
		ListID:      resp.OrderListId,
		ClientID:    resp.ClientOrderID,
		Type:        string(resp.Type),
		Price:       resp.Price,
		Status:      types.OrderStatus(resp.Status),
		OrigQty:     resp.OrigQuantity,
		ExecutedQty: resp.ExecutedQuantity,
		CumQuoteQty: resp.CummulativeQuoteQuantity,
	}, nil
}

func (g *BinanceGateway) AssetBalance(ctx context.Context, asset string) (*Balance, error) {
	ctx, cancel := g.callCtx(ctx)
	defer cancel()

	acct, err := g.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return nil, normalizeErr(err)
	}
	for _, b := range acct.Balances {
		if b.Asset == asset {
			return &Balance{Asset: b.Asset, Free: b.Free, Locked: b.Locked}, nil
		}
	}
	return nil, fmt.Errorf("asset %s not present in account", asset)
}

func ocoReportToOrder(r *binance.OCOOrderReport) Order {
	return Order{
		ID:          r.OrderID,
		ListID:      r.OrderListID,
		ClientID:    r.ClientOrderID,
		Type:        string(r.Type),
		Price:       r.Price,
		Status:      types.OrderStatus(r.Status),
		OrigQty:     r.OrigQuantity,
		ExecutedQty: r.ExecutedQuantity,
		CumQuoteQty: r.CummulativeQuoteQuantity,
	}
}

// normalizeErr converts the client library's API error into this package's
// classified form so callers never import the exchange SDK.
func normalizeErr(err error) error {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		return &APIError{Code: apiErr.Code, Message: apiErr.Message}
	}
	return err
}
