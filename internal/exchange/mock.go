package exchange

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"tradebot/internal/types"
)

// MockGateway implements Gateway for testing without real exchange calls.
// Orders are held in memory with NEW status until a test scripts a status
// transition via SetStatus.
type MockGateway struct {
	logger      *slog.Logger
	mu          sync.Mutex
	free        map[string]float64
	locked      map[string]float64
	orders      map[int64]*Order
	listOf      map[int64]int64 // leg order id -> list id
	legs        map[int64][]int64
	orderIDSeq  atomic.Int64
	listIDSeq   atomic.Int64
	nextErr     error
	stopFirst   bool
	qtyDecimals int32
	prcDecimals int32

	// CancelCalls counts Cancel and CancelOCO invocations.
	CancelCalls int
}

// MockGatewayOption configures the mock gateway
type MockGatewayOption func(*MockGateway)

// WithMockBalance sets the initial free balance for an asset
func WithMockBalance(asset string, free float64) MockGatewayOption {
	return func(m *MockGateway) {
		m.free[asset] = free
	}
}

// WithMockDecimals sets quantity/price formatting precision
func WithMockDecimals(qty, price int32) MockGatewayOption {
	return func(m *MockGateway) {
		m.qtyDecimals = qty
		m.prcDecimals = price
	}
}

// WithStopLegFirst makes OCO responses list the stop leg before the limit
// leg, exercising callers that must not depend on report order
func WithStopLegFirst() MockGatewayOption {
	return func(m *MockGateway) {
		m.stopFirst = true
	}
}

// NewMockGateway creates a new mock gateway for testing
func NewMockGateway(logger *slog.Logger, opts ...MockGatewayOption) *MockGateway {
	m := &MockGateway{
		logger:      logger,
		free:        make(map[string]float64),
		locked:      make(map[string]float64),
		orders:      make(map[int64]*Order),
		listOf:      make(map[int64]int64),
		legs:        make(map[int64][]int64),
		qtyDecimals: 5,
		prcDecimals: 2,
	}

	for _, opt := range opts {
		opt(m)
	}

	if len(m.free) == 0 {
		m.free["USDT"] = 10000.0
		m.free["BTC"] = 1.0
	}

	return m
}

// FailNext makes the next order call return err instead of succeeding.
func (m *MockGateway) FailNext(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextErr = err
}

// SetStatus scripts a status transition on an order along with its fill
// progress.
func (m *MockGateway) SetStatus(orderID int64, status types.OrderStatus, execQty, cumQuote float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		panic(fmt.Sprintf("mock: unknown order %d", orderID))
	}
	o.Status = status
	o.ExecutedQty = types.FormatQty(execQty, m.qtyDecimals)
	o.CumQuoteQty = types.FormatPrice(cumQuote, m.prcDecimals)
}

// SetBalance overwrites an asset's free/locked balance.
func (m *MockGateway) SetBalance(asset string, free, locked float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.free[asset] = free
	m.locked[asset] = locked
}

// Order returns a copy of a stored order for assertions.
func (m *MockGateway) Order(orderID int64) (Order, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return Order{}, false
	}
	return *o, true
}

func (m *MockGateway) takeErr() error {
	err := m.nextErr
	m.nextErr = nil
	return err
}

func (m *MockGateway) newOrder(typ string, status types.OrderStatus, qty, price float64) *Order {
	id := m.orderIDSeq.Add(1)
	o := &Order{
		ID:          id,
		ClientID:    fmt.Sprintf("mock-%d", id),
		Type:        typ,
		Price:       types.FormatPrice(price, m.prcDecimals),
		Status:      status,
		OrigQty:     types.FormatQty(qty, m.qtyDecimals),
		ExecutedQty: types.FormatQty(0, m.qtyDecimals),
		CumQuoteQty: types.FormatPrice(0, m.prcDecimals),
	}
	m.orders[id] = o
	return o
}

func (m *MockGateway) PlaceLimit(ctx context.Context, side types.Side, qty, price float64) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.takeErr(); err != nil {
		m.logger.Error("[MOCK] Order failed (configured)", "side", side, "error", err)
		return nil, err
	}

	o := m.newOrder("LIMIT", types.StatusNew, qty, price)
	m.logger.Info("[MOCK] Limit order placed",
		"order_id", o.ID, "side", side, "qty", o.OrigQty, "price", o.Price)
	cp := *o
	return &cp, nil
}

func (m *MockGateway) PlaceStopLimit(ctx context.Context, qty, price float64) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.takeErr(); err != nil {
		m.logger.Error("[MOCK] Stop-loss order failed (configured)", "error", err)
		return nil, err
	}

	o := m.newOrder(StopLossLimitType, types.StatusNew, qty, price)
	m.logger.Info("[MOCK] Stop-loss order placed",
		"order_id", o.ID, "qty", o.OrigQty, "price", o.Price)
	cp := *o
	return &cp, nil
}

func (m *MockGateway) PlaceOCOSell(ctx context.Context, qty, price, stopPrice float64) (*OCOOrders, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.takeErr(); err != nil {
		m.logger.Error("[MOCK] OCO sell failed (configured)", "error", err)
		return nil, err
	}

	listID := m.listIDSeq.Add(1)
	limit := m.newOrder("LIMIT_MAKER", types.StatusNew, qty, price)
	stop := m.newOrder(StopLossLimitType, types.StatusNew, qty, stopPrice)
	limit.ListID = listID
	stop.ListID = listID
	m.listOf[limit.ID] = listID
	m.listOf[stop.ID] = listID
	m.legs[listID] = []int64{limit.ID, stop.ID}

	m.logger.Info("[MOCK] OCO sell placed",
		"list_id", listID, "limit_id", limit.ID, "stop_id", stop.ID)

	reports := []Order{*limit, *stop}
	if m.stopFirst {
		reports[0], reports[1] = reports[1], reports[0]
	}
	stopLeg, limitLeg, err := SplitOCO(reports)
	if err != nil {
		return nil, err
	}
	return &OCOOrders{ListID: listID, Limit: limitLeg, Stop: stopLeg}, nil
}

func (m *MockGateway) Cancel(ctx context.Context, orderID int64) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CancelCalls++

	if err := m.takeErr(); err != nil {
		return nil, err
	}

	o, ok := m.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("mock: unknown order %d", orderID)
	}
	if o.Status == types.StatusNew || o.Status == types.StatusPartiallyFilled {
		o.Status = types.StatusCanceled
	}
	m.logger.Info("[MOCK] Order cancelled", "order_id", orderID)
	cp := *o
	return &cp, nil
}

// CancelOCO accepts either the list id or one of its leg order ids; a single
// call cancels both legs.
func (m *MockGateway) CancelOCO(ctx context.Context, listID int64) (*OCOOrders, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CancelCalls++

	if err := m.takeErr(); err != nil {
		return nil, err
	}

	if mapped, ok := m.listOf[listID]; ok {
		if _, isList := m.legs[listID]; !isList {
			listID = mapped
		}
	}
	legIDs, ok := m.legs[listID]
	if !ok {
		return nil, fmt.Errorf("mock: unknown OCO list %d", listID)
	}

	reports := make([]Order, 0, 2)
	for _, id := range legIDs {
		o := m.orders[id]
		if o.Status == types.StatusNew || o.Status == types.StatusPartiallyFilled {
			o.Status = types.StatusCanceled
		}
		reports = append(reports, *o)
	}
	if m.stopFirst {
		reports[0], reports[1] = reports[1], reports[0]
	}

	m.logger.Info("[MOCK] OCO list cancelled", "list_id", listID)

	stopLeg, limitLeg, err := SplitOCO(reports)
	if err != nil {
		return nil, err
	}
	return &OCOOrders{ListID: listID, Limit: limitLeg, Stop: stopLeg}, nil
}

func (m *MockGateway) GetOrder(ctx context.Context, orderID int64) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.takeErr(); err != nil {
		return nil, err
	}

	o, ok := m.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("mock: unknown order %d", orderID)
	}
	cp := *o
	return &cp, nil
}

func (m *MockGateway) AssetBalance(ctx context.Context, asset string) (*Balance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return &Balance{
		Asset:  asset,
		Free:   types.FormatQty(m.free[asset], m.qtyDecimals),
		Locked: types.FormatQty(m.locked[asset], m.qtyDecimals),
	}, nil
}
