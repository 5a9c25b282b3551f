package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"tradebot/internal/types"
)

// Command names exposed to the operator.
var commandActions = map[string]types.CommandAction{
	"enable":     types.CmdEnableTrading,
	"disable":    types.CmdDisableTrading,
	"sl_enable":  types.CmdEnableStopLoss,
	"sl_disable": types.CmdDisableStopLoss,
	"cancel":     types.CmdCancelOrders,
	"resetflags": types.CmdResetFlags,
	"mode":       types.CmdSwitchMode,
	"price":      types.CmdPriceInfo,
	"help":       types.CmdHelp,
	"restart":    types.CmdRestart,
}

// CommandList returns the command names for the help reply, in a stable
// order.
func CommandList() string {
	return "enable, disable, sl_enable, sl_disable, cancel, resetflags, restart, mode, price, help"
}

type tgUpdate struct {
	UpdateID int64 `json:"update_id"`
	Message  *struct {
		Text string `json:"text"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
	} `json:"message"`
}

type tgUpdatesResponse struct {
	OK     bool       `json:"ok"`
	Result []tgUpdate `json:"result"`
}

// Poller long-polls the Telegram getUpdates endpoint and feeds parsed
// operator commands into the engine's event channel. Commands from any chat
// other than the authorized one are dropped without a reply.
type Poller struct {
	client    *resty.Client
	token     string
	chatID    int64
	eventChan chan<- types.Event
	logger    *slog.Logger
	offset    int64
}

// NewPoller creates the command poller.
func NewPoller(token string, chatID int64, eventChan chan<- types.Event, logger *slog.Logger) *Poller {
	client := resty.New().
		SetBaseURL(telegramAPIBase).
		SetTimeout(60 * time.Second)

	return &Poller{
		client:    client,
		token:     token,
		chatID:    chatID,
		eventChan: eventChan,
		logger:    logger,
	}
}

// Run polls until the context is cancelled.
func (p *Poller) Run(ctx context.Context) {
	p.logger.Info("[TELEGRAM] Command poller started", "chat_id", p.chatID)
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("[TELEGRAM] Command poller stopped")
			return
		default:
		}

		updates, err := p.fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Error("[TELEGRAM] getUpdates failed", "error", err)
			select {
			case <-time.After(5 * time.Second):
			case <-ctx.Done():
			}
			continue
		}

		for _, u := range updates {
			p.offset = u.UpdateID + 1
			p.handle(ctx, u)
		}
	}
}

func (p *Poller) fetch(ctx context.Context) ([]tgUpdate, error) {
	var out tgUpdatesResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"offset":          fmt.Sprintf("%d", p.offset),
			"timeout":         "50",
			"allowed_updates": `["message"]`,
		}).
		SetResult(&out).
		Get(fmt.Sprintf("/bot%s/getUpdates", p.token))
	if err != nil {
		return nil, err
	}
	if resp.IsError() || !out.OK {
		return nil, fmt.Errorf("getUpdates returned status %d", resp.StatusCode())
	}
	return out.Result, nil
}

func (p *Poller) handle(ctx context.Context, u tgUpdate) {
	if u.Message == nil || u.Message.Chat.ID != p.chatID {
		return
	}

	cmd, ok := parseCommand(u.Message.Text)
	if !ok {
		return
	}

	p.logger.Info("[TELEGRAM] Operator command received", "text", u.Message.Text)
	select {
	case p.eventChan <- types.Event{Command: &cmd}:
	case <-ctx.Done():
	}
}

// parseCommand maps "/name arg" to an operator command. Unknown commands and
// plain text are ignored.
func parseCommand(text string) (types.OperatorCommand, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return types.OperatorCommand{}, false
	}

	fields := strings.Fields(text[1:])
	if len(fields) == 0 {
		return types.OperatorCommand{}, false
	}

	name := strings.ToLower(fields[0])
	// "/mode@my_bot arg" form used in group chats
	if i := strings.IndexByte(name, '@'); i >= 0 {
		name = name[:i]
	}

	action, ok := commandActions[name]
	if !ok {
		return types.OperatorCommand{}, false
	}

	cmd := types.OperatorCommand{Action: action}
	if len(fields) > 1 {
		cmd.Arg = strings.ToLower(fields[1])
	}
	return cmd, true
}
