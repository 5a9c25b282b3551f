package engine

import (
	"tradebot/internal/notify"
	"tradebot/internal/state"
	"tradebot/internal/types"
)

// activateSignal arms one side's shadow-limit signal at the current price.
// The decay amplitude is computed from volatility once, at activation, and
// stays frozen while the target converges back toward the signal price.
func (e *Engine) activateSignal(side types.Side, price, volatility float64) {
	var delta float64
	var kind types.OrderKind
	if side == types.SideBuy {
		delta = PriceDelta(volatility, e.cfg.BuyDeltaA, e.cfg.BuyDeltaB, e.cfg.BuyDeltaC)
		kind = types.KindBuy
	} else {
		delta = PriceDelta(volatility, e.cfg.SellDeltaA, e.cfg.SellDeltaB, e.cfg.SellDeltaC)
		kind = types.KindSell
	}

	now := float64(e.now().UnixNano()) / 1e9
	e.store.Mutate(func(d *state.Document) {
		sig := d.Signal(side)
		sig.Flag = true
		sig.Time = now
		sig.Price = price
		sig.PriceDelta = delta
	})

	target := price - delta
	if side == types.SideSell {
		target = price + delta
	}
	e.publish(notify.Event{
		Type: notify.SignalActivated, Alert: true,
		Kind: kind, TargetPrice: target,
	})
}

func (e *Engine) deactivateSignal(side types.Side) {
	kind := types.KindBuy
	if side == types.SideSell {
		kind = types.KindSell
	}
	e.store.Mutate(func(d *state.Document) {
		d.Signal(side).Flag = false
	})
	e.publish(notify.Event{
		Type: notify.SignalDeactivated, Alert: true, Silent: true,
		Kind: kind,
	})
}

// updateSignalTargets recomputes both sides' decayed targets and converts a
// crossed signal into an order request. The frozen target price carries over
// to the request so placement happens at the level that triggered it.
func (e *Engine) updateSignalTargets(closePrice float64) {
	now := float64(e.now().UnixNano()) / 1e9
	doc := e.store.Snapshot()

	if doc.BuySignal.Flag {
		delta := TimeDecay(doc.BuySignal.PriceDelta, e.cfg.DeltaDecayFactor, now-doc.BuySignal.Time)
		target := types.RoundPrice(doc.BuySignal.Price-delta, e.cfg.PriceDecimals)
		e.store.Mutate(func(d *state.Document) {
			d.BuyReq.TargetPrice = target
			if closePrice <= target {
				d.BuySignal.Flag = false
				d.BuyReq.Flag = true
			}
		})
	} else if doc.SellSignal.Flag {
		delta := TimeDecay(doc.SellSignal.PriceDelta, e.cfg.DeltaDecayFactor, now-doc.SellSignal.Time)
		target := types.RoundPrice(doc.SellSignal.Price+delta, e.cfg.PriceDecimals)
		e.store.Mutate(func(d *state.Document) {
			d.SellReq.TargetPrice = target
			if closePrice >= target {
				d.SellSignal.Flag = false
				d.SellReq.Flag = true
			}
		})
	}
}
