package engine

import (
	"context"
	"fmt"
	"strconv"

	"tradebot/internal/exchange"
	"tradebot/internal/notify"
	"tradebot/internal/state"
	"tradebot/internal/types"
)

func parseQty(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

// slotKind maps a slot to its order kind, upgraded to the OCO variant when
// the sell and stop slots are legs of one order group.
func (e *Engine) slotKind(id types.SlotID, isOCO bool) types.OrderKind {
	switch id {
	case types.SlotBuy:
		return types.KindBuy
	case types.SlotSell:
		if isOCO {
			return types.KindOCOSell
		}
		return types.KindSell
	default:
		if isOCO {
			return types.KindOCOStopLoss
		}
		return types.KindStopLoss
	}
}

func applyOrder(s *state.Slot, o *exchange.Order) {
	s.Active = true
	s.ID = o.ID
	s.Price = o.Price
	s.Status = o.Status
	s.OrigQty = o.OrigQty
	s.ExecutedQty = o.ExecutedQty
	s.CumQuoteQty = o.CumQuoteQty
}

func (e *Engine) updateAssetBalance(ctx context.Context) error {
	bal, err := e.gateway.AssetBalance(ctx, e.cfg.Asset)
	if err != nil {
		e.logger.Error("[ENGINE] Failed to update asset balance", "error", err)
		return err
	}
	e.store.Mutate(func(d *state.Document) {
		d.Asset = state.Balances{Free: bal.Free, Locked: bal.Locked}
	})
	return nil
}

func (e *Engine) updateQuoteBalance(ctx context.Context) error {
	bal, err := e.gateway.AssetBalance(ctx, e.cfg.QuoteAsset)
	if err != nil {
		e.logger.Error("[ENGINE] Failed to update quote balance", "error", err)
		return err
	}
	e.store.Mutate(func(d *state.Document) {
		d.Quote = state.Balances{Free: bal.Free, Locked: bal.Locked}
	})
	return nil
}

// placeWarning surfaces an unexpected placement failure to the operator.
// Benign rejections (quantity too small, OCO price ordering) stay silent;
// the caller still sees them through the returned error.
func (e *Engine) placeWarning(kind types.OrderKind, err error) {
	if apiErr, ok := exchange.AsAPIError(err); ok {
		if apiErr.InvalidQuantity() {
			return
		}
		if kind == types.KindOCOSell && apiErr.OCOPriceInvalid() {
			return
		}
	}
	e.publish(notify.Event{
		Type:    notify.Warning,
		Alert:   true,
		Kind:    kind,
		Message: fmt.Sprintf("Warning: exception during attempt to place a %s order\n%v", kind, err),
	})
}

func (e *Engine) placeBuy(ctx context.Context, qty, price float64) (types.OrderStatus, error) {
	order, err := e.gateway.PlaceLimit(ctx, types.SideBuy, qty, price)
	if err != nil {
		e.publish(notify.Event{
			Type:    notify.Warning,
			Alert:   true,
			Kind:    types.KindBuy,
			Message: fmt.Sprintf("Warning: exception during attempt to place a buy order\n%v", err),
		})
		return "", err
	}

	e.store.Mutate(func(d *state.Document) {
		applyOrder(&d.BuyOrder, order)
	})
	e.publish(notify.Event{
		Type: notify.OrderPlaced, Alert: true,
		Kind: types.KindBuy, OrderID: order.ID, Qty: qty, Price: price,
	})
	return order.Status, nil
}

func (e *Engine) placeSell(ctx context.Context, qty, price float64) (types.OrderStatus, error) {
	order, err := e.gateway.PlaceLimit(ctx, types.SideSell, qty, price)
	if err != nil {
		e.placeWarning(types.KindSell, err)
		return "", err
	}

	e.store.Mutate(func(d *state.Document) {
		d.StoplossIsOCO = false
		applyOrder(&d.SellOrder, order)
	})
	e.publish(notify.Event{
		Type: notify.OrderPlaced, Alert: true,
		Kind: types.KindSell, OrderID: order.ID, Qty: qty, Price: price,
	})
	return order.Status, nil
}

func (e *Engine) placeStopLoss(ctx context.Context, qty, price float64) (types.OrderStatus, error) {
	order, err := e.gateway.PlaceStopLimit(ctx, qty, price)
	if err != nil {
		e.placeWarning(types.KindStopLoss, err)
		return "", err
	}

	e.store.Mutate(func(d *state.Document) {
		d.StoplossIsOCO = false
		applyOrder(&d.StoplossOrder, order)
	})
	e.publish(notify.Event{
		Type: notify.OrderPlaced, Alert: true, Silent: true,
		Kind: types.KindStopLoss, OrderID: order.ID, Qty: qty, Price: price,
	})
	return order.Status, nil
}

func (e *Engine) placeOCOSell(ctx context.Context, qty, price, slPrice float64) (types.OrderStatus, error) {
	oco, err := e.gateway.PlaceOCOSell(ctx, qty, price, slPrice)
	if err != nil {
		e.placeWarning(types.KindOCOSell, err)
		return "", err
	}

	e.store.Mutate(func(d *state.Document) {
		d.StoplossIsOCO = true
		d.OCOListID = oco.ListID
		applyOrder(&d.SellOrder, &oco.Limit)
		applyOrder(&d.StoplossOrder, &oco.Stop)
	})
	e.publish(notify.Event{
		Type: notify.OrderPlaced, Alert: true,
		Kind: types.KindOCOSell, OrderID: oco.Limit.ID, Qty: qty, Price: price,
	})
	return oco.Limit.Status, nil
}

// checkOrder queries the exchange for one slot's order and folds the result
// into the document: slot fields, position flags, and, under OCO pairing,
// the partner leg's active flag. Partner clearing applies on every terminal
// or fill status except CANCELED; a cancel observed on one leg goes through
// the paired-cancel path which updates both legs itself.
func (e *Engine) checkOrder(ctx context.Context, id types.SlotID) (old, cur types.OrderStatus, oldExec, newExec float64, err error) {
	doc := e.store.Snapshot()
	slot := doc.Slot(id)
	if !slot.Active {
		return "", "", 0, 0, fmt.Errorf("check %s order: %w", id, ErrInvalidSlotState)
	}

	old = slot.Status
	oldExec = parseQty(slot.ExecutedQty)

	order, err := e.gateway.GetOrder(ctx, slot.ID)
	if err != nil {
		e.logger.Error("[ENGINE] Order status check failed",
			"slot", id.String(), "order_id", slot.ID, "error", err)
		return old, "", oldExec, oldExec, err
	}

	e.store.Mutate(func(d *state.Document) {
		s := d.Slot(id)
		s.Status = order.Status
		s.OrigQty = order.OrigQty
		s.ExecutedQty = order.ExecutedQty
		s.CumQuoteQty = order.CumQuoteQty

		switch id {
		case types.SlotBuy:
			if order.Status == types.StatusPartiallyFilled || order.Status == types.StatusFilled {
				d.PositionOpen = true
				if order.Status == types.StatusFilled {
					d.PositionFull = true
				}
			}
		default:
			if order.Status == types.StatusPartiallyFilled || order.Status == types.StatusFilled {
				d.PositionFull = false
				if order.Status == types.StatusFilled {
					d.PositionOpen = false
				}
			}
			if d.StoplossIsOCO && partnerClearing(order.Status) {
				if id == types.SlotSell {
					d.StoplossOrder.Clear()
				} else {
					d.SellOrder.Clear()
				}
			}
		}

		if order.Status.Terminal() {
			s.Clear()
		}
	})

	return old, order.Status, oldExec, parseQty(order.ExecutedQty), nil
}

// partnerClearing reports whether a status observed on one OCO leg also
// deactivates the partner leg.
func partnerClearing(s types.OrderStatus) bool {
	switch s {
	case types.StatusPartiallyFilled, types.StatusFilled, types.StatusRejected, types.StatusExpired:
		return true
	}
	return false
}

// processStatus emits the operator-facing events for a status transition and
// reports whether the executed quantity increased by rounded comparison.
func (e *Engine) processStatus(ctx context.Context, id types.SlotID, old, cur types.OrderStatus, oldExec, newExec float64, updateBalances bool) bool {
	doc := e.store.Snapshot()
	kind := e.slotKind(id, doc.StoplossIsOCO)
	slot := doc.Slot(id)

	execIncreased := types.RoundDown(newExec, e.cfg.QtyDecimals) > types.RoundDown(oldExec, e.cfg.QtyDecimals)

	switch {
	case cur == types.StatusFilled:
		if old != types.StatusFilled {
			e.publish(notify.Event{
				Type: notify.OrderFilled, Alert: true,
				Kind: kind, OrderID: slot.ID,
				CumQuote: parseQty(slot.CumQuoteQty),
			})
		}
		if updateBalances {
			e.updateAssetBalance(ctx)
			e.updateQuoteBalance(ctx)
		}
	case cur == types.StatusPartiallyFilled:
		if execIncreased {
			e.publish(notify.Event{
				Type: notify.OrderPartiallyFilled, Alert: true,
				Kind: kind, OrderID: slot.ID,
				OrigQty:  parseQty(slot.OrigQty),
				ExecQty:  newExec,
				CumQuote: parseQty(slot.CumQuoteQty),
			})
			if updateBalances {
				e.updateAssetBalance(ctx)
				e.updateQuoteBalance(ctx)
			}
		}
	case cur != "" && cur != types.StatusNew:
		e.publish(notify.Event{
			Type: notify.UnexpectedStatus, Alert: true,
			Kind: kind, OrderID: slot.ID, Status: cur,
		})
	}

	return execIncreased
}

// checkAndProcess runs a status check on a slot and reports whether holdings
// increased since the last check.
func (e *Engine) checkAndProcess(ctx context.Context, id types.SlotID, updateBalances bool) bool {
	old, newStatus, oldExec, newExec, err := e.checkOrder(ctx, id)
	if err != nil {
		return false
	}
	return e.processStatus(ctx, id, old, newStatus, oldExec, newExec, updateBalances)
}

// cancelPaired cancels both legs of the OCO group with one exchange call and
// updates both slots from the returned reports. kind tags which leg the
// cancellation logically targeted.
func (e *Engine) cancelPaired(ctx context.Context, kind types.OrderKind, alert bool) (types.OrderStatus, error) {
	doc := e.store.Snapshot()

	oco, err := e.gateway.CancelOCO(ctx, doc.OCOListID)
	if err != nil {
		e.publish(notify.Event{
			Type:    notify.Warning,
			Alert:   true,
			Kind:    kind,
			Message: fmt.Sprintf("Warning: exception during attempt to cancel %s order\n%v", kind, err),
		})
		return "", err
	}

	e.store.Mutate(func(d *state.Document) {
		d.SellOrder.Active = false
		d.SellOrder.Status = oco.Limit.Status
		d.SellOrder.OrigQty = oco.Limit.OrigQty
		d.SellOrder.ExecutedQty = oco.Limit.ExecutedQty
		d.StoplossOrder.Active = false
		d.StoplossOrder.Status = oco.Stop.Status
		d.StoplossOrder.OrigQty = oco.Stop.OrigQty
		d.StoplossOrder.ExecutedQty = oco.Stop.ExecutedQty
	})

	var targetID int64
	var status types.OrderStatus
	if kind == types.KindOCOStopLoss {
		targetID, status = oco.Stop.ID, oco.Stop.Status
	} else {
		targetID, status = oco.Limit.ID, oco.Limit.Status
	}

	e.publish(notify.Event{
		Type: notify.OrderCancelled, Alert: alert,
		Silent: kind == types.KindOCOStopLoss,
		Kind:   kind, OrderID: targetID,
	})
	return status, nil
}

func (e *Engine) cancelBuy(ctx context.Context, alert bool) (types.OrderStatus, error) {
	doc := e.store.Snapshot()
	if !doc.BuyOrder.Active {
		return "", fmt.Errorf("cancel buy order: %w", ErrInvalidSlotState)
	}

	order, err := e.gateway.Cancel(ctx, doc.BuyOrder.ID)
	if err != nil {
		e.publish(notify.Event{
			Type:    notify.Warning,
			Alert:   true,
			Kind:    types.KindBuy,
			Message: fmt.Sprintf("Warning: exception during attempt to cancel buy order #%d\n%v", doc.BuyOrder.ID, err),
		})
		return "", err
	}

	e.store.Mutate(func(d *state.Document) {
		d.BuyOrder.Active = false
		d.BuyOrder.Status = order.Status
		d.BuyOrder.OrigQty = order.OrigQty
		d.BuyOrder.ExecutedQty = order.ExecutedQty
	})
	e.publish(notify.Event{
		Type: notify.OrderCancelled, Alert: alert,
		Kind: types.KindBuy, OrderID: order.ID,
	})
	return order.Status, nil
}

// cancelSell cancels the sell slot, routing through the paired path when the
// order is one leg of a live OCO group.
func (e *Engine) cancelSell(ctx context.Context, alert bool) (types.OrderStatus, error) {
	doc := e.store.Snapshot()
	if !doc.SellOrder.Active {
		return "", fmt.Errorf("cancel sell order: %w", ErrInvalidSlotState)
	}
	if doc.StoplossIsOCO && doc.StoplossOrder.Active {
		return e.cancelPaired(ctx, types.KindOCOSell, alert)
	}

	order, err := e.gateway.Cancel(ctx, doc.SellOrder.ID)
	if err != nil {
		e.publish(notify.Event{
			Type:    notify.Warning,
			Alert:   true,
			Kind:    types.KindSell,
			Message: fmt.Sprintf("Warning: exception during attempt to cancel sell order #%d\n%v", doc.SellOrder.ID, err),
		})
		return "", err
	}

	e.store.Mutate(func(d *state.Document) {
		d.SellOrder.Active = false
		d.SellOrder.Status = order.Status
		d.SellOrder.OrigQty = order.OrigQty
		d.SellOrder.ExecutedQty = order.ExecutedQty
	})
	e.publish(notify.Event{
		Type: notify.OrderCancelled, Alert: alert,
		Kind: types.KindSell, OrderID: order.ID,
	})
	return order.Status, nil
}

// cancelStopLoss mirrors cancelSell for the protective slot. Stop-loss
// cancellations are silent by default.
func (e *Engine) cancelStopLoss(ctx context.Context, alert bool) (types.OrderStatus, error) {
	doc := e.store.Snapshot()
	if !doc.StoplossOrder.Active {
		return "", fmt.Errorf("cancel stop-loss order: %w", ErrInvalidSlotState)
	}
	if doc.StoplossIsOCO && doc.SellOrder.Active {
		return e.cancelPaired(ctx, types.KindOCOStopLoss, alert)
	}

	order, err := e.gateway.Cancel(ctx, doc.StoplossOrder.ID)
	if err != nil {
		e.publish(notify.Event{
			Type:    notify.Warning,
			Alert:   true,
			Kind:    types.KindStopLoss,
			Message: fmt.Sprintf("Warning: exception during attempt to cancel stop-loss order #%d\n%v", doc.StoplossOrder.ID, err),
		})
		return "", err
	}

	e.store.Mutate(func(d *state.Document) {
		d.StoplossOrder.Active = false
		d.StoplossOrder.Status = order.Status
		d.StoplossOrder.OrigQty = order.OrigQty
		d.StoplossOrder.ExecutedQty = order.ExecutedQty
	})
	e.publish(notify.Event{
		Type: notify.OrderCancelled, Alert: alert, Silent: true,
		Kind: types.KindStopLoss, OrderID: order.ID,
	})
	return order.Status, nil
}

// placeAndProcess places an order for one role and folds the immediate
// response into state. An OCO rejection for bad price ordering falls back to
// a plain sell. Returns false only for the quantity-too-small rejection,
// which arms the retry cooldown and leaves the request flag set; any other
// failure drops the intent after the operator warning.
func (e *Engine) placeAndProcess(ctx context.Context, kind types.OrderKind, qty, price float64) bool {
	var status types.OrderStatus
	var err error
	var id types.SlotID

	switch kind {
	case types.KindBuy:
		id = types.SlotBuy
		status, err = e.placeBuy(ctx, qty, price)
	case types.KindSell:
		id = types.SlotSell
		status, err = e.placeSell(ctx, qty, price)
	case types.KindStopLoss:
		id = types.SlotStopLoss
		doc := e.store.Snapshot()
		status, err = e.placeStopLoss(ctx, qty, doc.StoplossLevel)
	case types.KindOCOSell:
		id = types.SlotSell
		doc := e.store.Snapshot()
		status, err = e.placeOCOSell(ctx, qty, price, doc.StoplossLevel)
		if apiErr, ok := exchange.AsAPIError(err); ok && apiErr.OCOPriceInvalid() {
			return e.placeAndProcess(ctx, types.KindSell, qty, price)
		}
	default:
		e.logger.Error("[ENGINE] Unexpected order kind in placement", "kind", kind.String())
		return false
	}

	if err == nil {
		doc := e.store.Snapshot()
		e.processStatus(ctx, id, types.StatusNew, status, 0, parseQty(doc.Slot(id).ExecutedQty), false)
		return true
	}

	if apiErr, ok := exchange.AsAPIError(err); ok && apiErr.InvalidQuantity() {
		e.setOrderTimeout()
		return false
	}
	return true
}

func (e *Engine) setOrderTimeout() {
	deadline := float64(e.now().UnixNano())/1e9 + e.cfg.OrderTimeoutSeconds
	e.store.Mutate(func(d *state.Document) {
		d.OrderTimeout = deadline
	})
}
