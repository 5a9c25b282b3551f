package engine

import (
	"context"

	"tradebot/internal/market"
	"tradebot/internal/metrics"
	"tradebot/internal/notify"
	"tradebot/internal/state"
	"tradebot/internal/types"
)

// handleTick is the reconciliation step. Every tick updates the last price
// and checks for a protective-level breach; what happens next depends on
// whether the tick closes a candle.
func (e *Engine) handleTick(ctx context.Context, tick *types.Tick) {
	e.tickCounter++
	metrics.ObserveTick(tick.Close)

	e.store.Mutate(func(d *state.Document) {
		d.LastPrice = tick.Close
	})

	doc := e.store.Snapshot()
	if doc.StoplossOrder.Active && tick.Low <= doc.StoplossLevel {
		lastOpen := e.history.Last().OpenTime
		if e.cfg.SLTimeoutEnabled && !lastOpen.Before(doc.StoplossHitTimeout.Time) {
			e.armStoplossCooldown(lastOpen)
		}
		e.checkAndProcess(ctx, types.SlotStopLoss, true)
	}

	switch {
	case tick.Closed:
		e.handleCandleClose(ctx, tick)

	case tick.EventTime.After(e.history.Last().OpenTime.Add(2 * e.interval)):
		// The closing tick for the last candle never arrived; history is
		// stale and every indicator downstream of it would be wrong.
		e.publish(notify.Event{
			Type:    notify.Warning,
			Alert:   true,
			Message: "Connection failed: missed last closing tick",
		})
		e.shutdown("missed closing tick")

	case e.tickCounter%e.cfg.TicksBetweenOrderUpdates == 0 &&
		(doc.BuyOrder.Active || doc.SellOrder.Active):
		e.periodicOrderCheck(ctx)

	case doc.TradingEnabled:
		e.intraCandleStep(ctx, tick)
	}

	// Self-heal: an open position with protection enabled must never sit
	// without a protective order or some sell-side activity in flight.
	doc = e.store.Snapshot()
	if doc.StoplossEnabled && doc.PositionOpen &&
		!doc.SellSideBusy() && !doc.StoplossOrder.Active && !doc.StoplossReq.Flag {
		e.store.Mutate(func(d *state.Document) {
			d.StoplossReq.Flag = true
		})
	}
}

// handleCandleClose folds the finished candle into history, refreshes the
// prediction, and acts on the directional score.
func (e *Engine) handleCandleClose(ctx context.Context, tick *types.Tick) {
	slAdjustmentReq := false

	// Catch up on order state unless the periodic check ran on the
	// previous tick.
	if e.tickCounter != e.lastOrderUpdateTick+1 {
		doc := e.store.Snapshot()
		if doc.BuyOrder.Active {
			holdingsIncreased := e.checkAndProcess(ctx, types.SlotBuy, false)
			if doc.StoplossEnabled && holdingsIncreased {
				slAdjustmentReq = true
			}
		} else if doc.SellOrder.Active {
			e.checkAndProcess(ctx, types.SlotSell, false)
		}
	}
	e.tickCounter = 1

	e.history.Append(types.Candle{
		OpenTime: tick.OpenTime,
		Open:     tick.Open,
		High:     tick.High,
		Low:      tick.Low,
		Close:    tick.Close,
		Volume:   tick.Volume,
	})
	snap := e.history.Snapshot()
	e.lastSnapshot = snap

	doc := e.store.Snapshot()
	score, scoreMA, ready, ok := e.runPrediction(snap, doc.Mode)
	if ok {
		e.publish(notify.Event{
			Type: notify.Prediction, Alert: true, Silent: true,
			High: snap.High, Low: snap.Low, Close: snap.Close,
			Score: score, ScoreMA: scoreMA, ScoreMAReady: ready,
		})
	}

	inCooldown := e.cfg.SLTimeoutEnabled && snap.OpenTime.Before(doc.StoplossHitTimeout.Time)
	if !doc.TradingEnabled || inCooldown {
		return
	}

	if doc.PositionOpen && doc.StoplossEnabled {
		slAdjustmentReq = e.updateStoplossLevel(snap.EMA10, snap.ATR10, overrideGreater)
	}

	if ready && ok {
		switch {
		case scoreMA < -e.cfg.SignalThreshold:
			slAdjustmentReq = e.applySellPressure(ctx, snap, slAdjustmentReq)
		case scoreMA > e.cfg.SignalThreshold:
			slAdjustmentReq = e.applyBuyPressure(ctx, snap, slAdjustmentReq)
		}
	}

	if slAdjustmentReq {
		e.moveProtectiveOrder(ctx)
	}
}

func (e *Engine) runPrediction(snap market.Snapshot, mode string) (score, scoreMA float64, ready, ok bool) {
	feats, err := snap.Features(mode)
	if err != nil {
		e.logger.Error("[ENGINE] Feature build failed", "mode", mode, "error", err)
		return 0, 0, false, false
	}
	score, err = e.predictor.Predict(feats)
	if err != nil {
		e.logger.Error("[ENGINE] Prediction failed", "error", err)
		return 0, 0, false, false
	}
	scoreMA, ready = e.smoother.Update(score)
	return score, scoreMA, ready, true
}

// applySellPressure tears down buy-side activity and, when holding a
// position, converts it into sell-side intent.
func (e *Engine) applySellPressure(ctx context.Context, snap market.Snapshot, slAdjustmentReq bool) bool {
	doc := e.store.Snapshot()

	if doc.BuySignal.Flag {
		e.deactivateSignal(types.SideBuy)
	}
	if doc.BuyReq.Flag {
		e.store.Mutate(func(d *state.Document) {
			d.BuyReq.Flag = false
		})
	}
	if doc.BuyOrder.Active {
		e.cancelBuy(ctx, true)
	}

	doc = e.store.Snapshot()
	if doc.PositionOpen && !doc.SellSideBusy() {
		if doc.StoplossOrder.Active {
			e.cancelStopLoss(ctx, true)
		} else if doc.StoplossReq.Flag {
			e.store.Mutate(func(d *state.Document) {
				d.StoplossReq.Flag = false
			})
		}
		e.updateAssetBalance(ctx)
		if e.cfg.ShadowLimitEnabled {
			e.activateSignal(types.SideSell, snap.Close, snap.ATR10)
		} else {
			e.store.Mutate(func(d *state.Document) {
				d.SellReq.Flag = true
				d.SellReq.TargetPrice = snap.Close
			})
		}
		slAdjustmentReq = false
	}
	return slAdjustmentReq
}

// applyBuyPressure tears down sell-side activity on an open position and
// arms a new entry while the position is not yet full.
func (e *Engine) applyBuyPressure(ctx context.Context, snap market.Snapshot, slAdjustmentReq bool) bool {
	doc := e.store.Snapshot()

	if doc.PositionOpen && doc.SellSideBusy() {
		if doc.SellSignal.Flag {
			e.deactivateSignal(types.SideSell)
		}
		if doc.SellReq.Flag {
			e.store.Mutate(func(d *state.Document) {
				d.SellReq.Flag = false
			})
		}
		if doc.SellOrder.Active {
			e.cancelSell(ctx, true)
		}
		if doc.StoplossEnabled {
			stillActive := e.store.Snapshot().StoplossOrder.Active
			e.store.Mutate(func(d *state.Document) {
				d.StoplossReq.Flag = !stillActive
			})
		}
		slAdjustmentReq = false
	}

	doc = e.store.Snapshot()
	if !doc.PositionFull && !doc.BuyOrder.Active && !doc.BuyReq.Flag && !doc.BuySignal.Flag {
		e.updateQuoteBalance(ctx)
		if e.cfg.ShadowLimitEnabled {
			e.activateSignal(types.SideBuy, snap.Close, snap.ATR10)
		} else {
			e.store.Mutate(func(d *state.Document) {
				d.BuyReq.Flag = true
				d.BuyReq.TargetPrice = snap.Close
			})
		}
		if doc.PositionOpen && doc.StoplossEnabled && !slAdjustmentReq {
			slAdjustmentReq = e.updateStoplossLevel(snap.EMA10, snap.ATR10, overrideNotEqual)
		}
	}
	return slAdjustmentReq
}

// moveProtectiveOrder cancels a live protective order whose level has moved
// and re-arms the matching request flag so the next eligible tick re-places
// it at the new level.
func (e *Engine) moveProtectiveOrder(ctx context.Context) {
	doc := e.store.Snapshot()
	if !doc.StoplossOrder.Active {
		return
	}

	if doc.StoplossIsOCO && doc.SellOrder.Active {
		e.cancelStopLoss(ctx, false)
		sellActive := e.store.Snapshot().SellOrder.Active
		e.store.Mutate(func(d *state.Document) {
			d.SellReq.Flag = !sellActive
		})
		return
	}

	e.cancelStopLoss(ctx, false)
	stopActive := e.store.Snapshot().StoplossOrder.Active
	e.store.Mutate(func(d *state.Document) {
		d.StoplossReq.Flag = !stopActive
	})
}

// periodicOrderCheck polls the live entry or exit order between candle
// closes.
func (e *Engine) periodicOrderCheck(ctx context.Context) {
	e.lastOrderUpdateTick = e.tickCounter
	doc := e.store.Snapshot()

	if doc.BuyOrder.Active {
		holdingsIncreased := e.checkAndProcess(ctx, types.SlotBuy, true)
		if holdingsIncreased && doc.TradingEnabled && doc.StoplossEnabled {
			// Holdings grew while a protective order sized for the old
			// quantity is (possibly) live; replace it.
			cur := e.store.Snapshot()
			if cur.StoplossOrder.Active {
				e.cancelStopLoss(ctx, true)
			}
			stopActive := e.store.Snapshot().StoplossOrder.Active
			e.store.Mutate(func(d *state.Document) {
				d.StoplossReq.Flag = !stopActive
			})
		}
	} else if doc.SellOrder.Active {
		e.checkAndProcess(ctx, types.SlotSell, true)
	}
}

// intraCandleStep advances shadow-limit decay and attempts at most one
// placement per request flag once the retry cooldown has passed.
func (e *Engine) intraCandleStep(ctx context.Context, tick *types.Tick) {
	e.updateSignalTargets(tick.Close)

	doc := e.store.Snapshot()
	if e.unixNow() <= doc.OrderTimeout {
		return
	}

	switch {
	case doc.BuyReq.Flag:
		quoteFree := types.RoundDown(parseQty(doc.Quote.Free), e.cfg.PriceDecimals)
		qty := quoteFree / doc.BuyReq.TargetPrice
		success := e.placeAndProcess(ctx, types.KindBuy, qty, doc.BuyReq.TargetPrice)
		e.store.Mutate(func(d *state.Document) {
			d.BuyReq.Flag = !success
		})
		if success && doc.StoplossEnabled {
			e.updateStoplossLevel(e.lastSnapshot.EMA10, e.lastSnapshot.ATR10, overrideNotEqual)
		}

	case doc.SellReq.Flag:
		qty := parseQty(doc.Asset.Free)
		var success bool
		if doc.StoplossEnabled && tick.Close < doc.SellReq.TargetPrice {
			success = e.placeAndProcess(ctx, types.KindOCOSell, qty, doc.SellReq.TargetPrice)
		} else {
			success = e.placeAndProcess(ctx, types.KindSell, qty, doc.SellReq.TargetPrice)
		}
		e.store.Mutate(func(d *state.Document) {
			d.SellReq.Flag = !success
		})

	case doc.StoplossReq.Flag:
		e.updateAssetBalance(ctx)
		cur := e.store.Snapshot()
		success := e.placeAndProcess(ctx, types.KindStopLoss, parseQty(cur.Asset.Free), cur.StoplossLevel)
		e.store.Mutate(func(d *state.Document) {
			d.StoplossReq.Flag = !success
		})
	}
}
