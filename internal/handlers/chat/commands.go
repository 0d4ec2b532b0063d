package handlers

import (
	"context"

	api "github.com/OvyFlash/telegram-bot-api"

	"github.com/guardbot/guardbot/internal/bot"
	"github.com/guardbot/guardbot/internal/handlers/base"
)

// Commands answers operator-defined canned commands from the CommandSet
// snapshot. Anything it does not recognize falls through to the next handler.
type Commands struct {
	*base.BaseHandler
	commands *bot.CommandSet
}

func NewCommands(s bot.Service, commands *bot.CommandSet) *Commands {
	return &Commands{
		BaseHandler: base.NewBaseHandler(s, "Commands"),
		commands:    commands,
	}
}

func (c *Commands) Handle(ctx context.Context, u *api.Update, chat *api.Chat, user *api.User) (bool, error) {
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	default:
	}

	if u == nil {
		return false, base.ErrNilUpdate
	}
	msg := u.Message
	if msg == nil || !msg.IsCommand() {
		return true, nil
	}
	if err := c.ValidateUpdate(u, chat, user); err != nil {
		return false, err
	}

	response, ok := c.commands.Lookup(msg.Command())
	if !ok {
		return true, nil
	}

	reply := api.NewMessage(chat.ID, response)
	reply.ReplyParameters.AllowSendingWithoutReply = true
	reply.ReplyParameters.MessageID = msg.MessageID
	reply.ReplyParameters.ChatID = chat.ID
	reply.MessageThreadID = msg.MessageThreadID
	if _, err := c.GetService().GetBot().Send(reply); err != nil {
		c.GetLogger().WithError(err).Warn("cant send command response")
	}
	return false, nil
}
