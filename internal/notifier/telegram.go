package notifier

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"coinsentinel/internal/watchlist"
)

var ErrInvalidChatID = errors.New("notifier: subscriber is not a telegram chat id")

// Sender is the subset of *tgbotapi.BotAPI used for delivery.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram delivers Markdown messages to chats. It never retries; a failed
// delivery is picked up by the next scheduled run.
type Telegram struct {
	bot Sender
}

func NewTelegram(bot Sender) *Telegram {
	return &Telegram{bot: bot}
}

func (t *Telegram) Send(ctx context.Context, sub watchlist.Subscriber, text string) error {
	chatID, err := strconv.ParseInt(string(sub), 10, 64)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidChatID, sub)
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.DisableWebPagePreview = true

	// BotAPI.Send has no context; bound the wait here and let the HTTP
	// client timeout reap the request.
	done := make(chan error, 1)
	go func() {
		_, err := t.bot.Send(msg)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send to %s: %w", sub, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("send to %s: %w", sub, ctx.Err())
	}
}
