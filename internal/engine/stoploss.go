package engine

import (
	"time"

	"tradebot/internal/notify"
	"tradebot/internal/state"
	"tradebot/internal/types"
)

// Stop-level override policies. Ratchet only ever raises the level; replace
// also allows lowering it, used when a fresh entry resets protection.
const (
	overrideGreater  = "greater"
	overrideNotEqual = "not_equal"
)

// updateStoplossLevel recomputes the protective level from the price base and
// volatility distance, applies the override policy, and reports whether the
// stored level changed.
func (e *Engine) updateStoplossLevel(base, distance float64, policy string) bool {
	level := types.RoundPrice(
		StopLossLevel(base, distance, e.cfg.SLATRFactor, e.cfg.SLPctOffset),
		e.cfg.PriceDecimals,
	)

	doc := e.store.Snapshot()
	var conditionMet bool
	switch policy {
	case overrideGreater:
		conditionMet = level > doc.StoplossLevel
	case overrideNotEqual:
		conditionMet = level != doc.StoplossLevel
	}
	if !conditionMet {
		return false
	}

	e.store.Mutate(func(d *state.Document) {
		d.StoplossLevel = level
	})
	e.publish(notify.Event{
		Type: notify.StopLossUpdated, Alert: true, Silent: true,
		Level: level,
	})
	return true
}

// armStoplossCooldown starts the no-entry window after a protective level
// breach. The caller only invokes this when the previous window has expired,
// so repeated breach ticks inside one cooldown never push the deadline out.
func (e *Engine) armStoplossCooldown(from time.Time) {
	deadline := from.Add(time.Duration(e.cfg.SLTimeoutHours) * time.Hour)
	doc := e.store.Snapshot()

	e.store.Mutate(func(d *state.Document) {
		d.StoplossHitTimeout = state.Timestamp{Time: deadline}
	})
	// The deadline compares against candle open times, so trading actually
	// resumes one interval later.
	e.publish(notify.Event{
		Type: notify.StopLossHit, Alert: true,
		Level:    doc.StoplossLevel,
		ResumeAt: deadline.Add(e.interval),
	})
}
