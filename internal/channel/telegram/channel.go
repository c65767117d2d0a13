// Package telegram adapts the pipeline's channel contract onto the
// Telegram Bot API.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/reelcast/reelcast/internal/relay"
)

// Channel implements relay.Channel against one Telegram channel.
type Channel struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	logger *zap.Logger
}

// New authorizes the bot and builds a Channel.
func New(token string, chatID int64, logger *zap.Logger) (*Channel, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("authorize bot: %w", err)
	}
	logger.Info("telegram bot authorized", zap.String("username", bot.Self.UserName))
	return &Channel{
		bot:    bot,
		chatID: chatID,
		logger: logger,
	}, nil
}

// Bot exposes the underlying client for the command listener.
func (c *Channel) Bot() *tgbotapi.BotAPI {
	return c.bot
}

// Send delivers one message, with photo when an image payload is attached.
// Telegram flood control is surfaced as *relay.RateLimitError so the
// publisher can back off.
func (c *Channel) Send(ctx context.Context, msg relay.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var payload tgbotapi.Chattable
	if len(msg.Image) > 0 {
		photo := tgbotapi.NewPhoto(c.chatID, tgbotapi.FileBytes{Name: "thumb.jpg", Bytes: msg.Image})
		photo.Caption = msg.Caption
		photo.ParseMode = tgbotapi.ModeHTML
		payload = photo
	} else {
		text := tgbotapi.NewMessage(c.chatID, msg.Caption)
		text.ParseMode = tgbotapi.ModeHTML
		text.DisableWebPagePreview = true
		payload = text
	}

	if _, err := c.bot.Send(payload); err != nil {
		return classifySendError(err)
	}
	return nil
}

// classifySendError maps Telegram flood control onto the pipeline's
// rate-limit error; everything else stays a plain failure.
func classifySendError(err error) error {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
		return &relay.RateLimitError{RetryAfter: time.Duration(apiErr.RetryAfter) * time.Second}
	}
	return fmt.Errorf("send message: %w", err)
}
