package handlers

import (
	"context"

	api "github.com/OvyFlash/telegram-bot-api"

	"github.com/guardbot/guardbot/internal/bot"
)

// TelegramGateway executes moderation side effects against the Bot API.
type TelegramGateway struct {
	bot *api.BotAPI
}

func NewTelegramGateway(botAPI *api.BotAPI) *TelegramGateway {
	return &TelegramGateway{bot: botAPI}
}

func (t *TelegramGateway) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	return bot.DeleteChatMessage(ctx, t.bot, chatID, messageID)
}

func (t *TelegramGateway) BanUser(ctx context.Context, chatID int64, userID int64) error {
	return bot.BanUserFromChat(ctx, t.bot, userID, chatID, 0)
}

func (t *TelegramGateway) SendMessage(ctx context.Context, chatID int64, content string) error {
	return bot.SendChatMessage(ctx, t.bot, chatID, content)
}
