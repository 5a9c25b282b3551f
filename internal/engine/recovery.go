package engine

import (
	"context"

	"tradebot/internal/state"
	"tradebot/internal/types"
)

// Recover reconciles persisted state with the exchange after a restart.
// Orders may have filled, been cancelled, or partially executed while the
// process was down; balances are re-read and each active slot is checked
// before the first tick is processed.
func (e *Engine) Recover(ctx context.Context) error {
	e.logger.Info("[ENGINE] Recovering state from exchange")

	doc := e.store.Snapshot()
	balanceBefore := types.RoundDown(
		parseQty(doc.Asset.Free)+parseQty(doc.Asset.Locked), e.cfg.QtyDecimals)

	if err := e.updateAssetBalance(ctx); err != nil {
		return err
	}
	if err := e.updateQuoteBalance(ctx); err != nil {
		return err
	}

	doc = e.store.Snapshot()
	balanceAfter := types.RoundDown(
		parseQty(doc.Asset.Free)+parseQty(doc.Asset.Locked), e.cfg.QtyDecimals)

	for _, id := range []types.SlotID{types.SlotBuy, types.SlotSell, types.SlotStopLoss} {
		cur := e.store.Snapshot()
		if !cur.Slot(id).Active {
			continue
		}
		if _, _, _, _, err := e.checkOrder(ctx, id); err != nil {
			return err
		}
	}

	// Holdings grew while the bot was down (a buy filled offline); any
	// surviving protective order is undersized and must be replaced.
	doc = e.store.Snapshot()
	if doc.TradingEnabled && doc.StoplossEnabled &&
		doc.StoplossOrder.Active && balanceAfter > balanceBefore {
		if _, err := e.cancelStopLoss(ctx, true); err != nil {
			return err
		}
		stopActive := e.store.Snapshot().StoplossOrder.Active
		e.store.Mutate(func(d *state.Document) {
			d.StoplossReq.Flag = !stopActive
		})
	}

	return e.store.ForceFlush()
}
