package notify

import (
	"context"
	"fmt"

	"SignalPulse/internal/domain/models"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type telegramSender interface {
	Send(c tgbot.Chattable) (tgbot.Message, error)
}

// TelegramDispatcher posts alerts to a Telegram chat.
type TelegramDispatcher struct {
	bot    telegramSender
	chatID int64
	title  string
}

// NewTelegramDispatcher authenticates the bot token against the Telegram API.
func NewTelegramDispatcher(token string, chatID int64, title string) (*TelegramDispatcher, error) {
	bot, err := tgbot.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return &TelegramDispatcher{bot: bot, chatID: chatID, title: title}, nil
}

func (d *TelegramDispatcher) Dispatch(ctx context.Context, sig models.Signal) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbot.NewMessage(d.chatID, fmt.Sprintf("%s\n%s", d.title, Body(sig)))
	msg.DisableWebPagePreview = true
	if _, err := d.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}
