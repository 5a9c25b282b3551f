package engine

import (
	"context"
	"fmt"

	"tradebot/internal/notify"
	"tradebot/internal/state"
	"tradebot/internal/types"
)

var availableModes = []string{"v01", "v04"}

// handleCommand applies an operator command inside the event loop, so
// command side effects are serialized with tick processing.
func (e *Engine) handleCommand(ctx context.Context, cmd *types.OperatorCommand) {
	switch cmd.Action {
	case types.CmdEnableTrading:
		e.store.Mutate(func(d *state.Document) { d.TradingEnabled = true })
		e.reply("Trading has been enabled")

	case types.CmdDisableTrading:
		e.store.Mutate(func(d *state.Document) { d.TradingEnabled = false })
		e.reply("Trading has been disabled")

	case types.CmdEnableStopLoss:
		e.store.Mutate(func(d *state.Document) { d.StoplossEnabled = true })
		e.reply("Stop-loss has been enabled")

	case types.CmdDisableStopLoss:
		e.store.Mutate(func(d *state.Document) { d.StoplossEnabled = false })
		e.reply("Stop-loss has been disabled")

	case types.CmdCancelOrders:
		doc := e.store.Snapshot()
		if doc.BuyOrder.Active {
			e.cancelBuy(ctx, true)
		}
		if doc.SellOrder.Active {
			e.cancelSell(ctx, true)
		}
		if e.store.Snapshot().StoplossOrder.Active {
			e.cancelStopLoss(ctx, true)
		}

	case types.CmdResetFlags:
		e.store.Mutate(func(d *state.Document) {
			d.BuySignal.Flag = false
			d.SellReq.Flag = false
			d.StoplossReq.Flag = false
		})
		e.reply("Flags have been reset")

	case types.CmdSwitchMode:
		e.switchMode(cmd.Arg)

	case types.CmdPriceInfo:
		doc := e.store.Snapshot()
		e.reply(fmt.Sprintf("Current price: %s %s",
			types.FormatPrice(doc.LastPrice, e.cfg.PriceDecimals), e.cfg.QuoteAsset))

	case types.CmdHelp:
		e.reply("Available commands: " + notify.CommandList())

	case types.CmdRestart:
		e.reply("Restarting script...")
		e.shutdown("operator restart")

	default:
		e.logger.Warn("[ENGINE] Unknown operator command", "action", int(cmd.Action))
	}
}

// switchMode persists the new mode and restarts. A restart is required
// because the prediction model and feature set are loaded per mode.
func (e *Engine) switchMode(arg string) {
	if arg == "" {
		e.reply(fmt.Sprintf("Current mode: %s", e.store.Snapshot().Mode))
		return
	}

	valid := false
	for _, m := range availableModes {
		if arg == m {
			valid = true
			break
		}
	}
	if !valid {
		e.reply("Argument not recognized. Available modes: v01, v04")
		return
	}

	if arg == e.store.Snapshot().Mode {
		e.reply(fmt.Sprintf("Mode %s is already active", arg))
		return
	}

	e.store.Mutate(func(d *state.Document) { d.Mode = arg })
	e.reply(fmt.Sprintf("Switching mode to %s...", arg))
	e.shutdown("mode switch")
}

func (e *Engine) reply(msg string) {
	e.logger.Info("[ENGINE] " + msg)
	e.publish(notify.Event{Type: notify.CommandReply, Alert: true, Message: msg})
}
