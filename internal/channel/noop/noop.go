// Package noop provides a channel that logs instead of delivering, for
// development without Telegram credentials.
package noop

import (
	"context"

	"go.uber.org/zap"

	"github.com/reelcast/reelcast/internal/relay"
)

// Channel implements relay.Channel by logging the rendered message.
type Channel struct {
	logger *zap.Logger
}

// New creates a Channel.
func New(logger *zap.Logger) *Channel {
	return &Channel{logger: logger}
}

// Send logs the message and reports success.
func (c *Channel) Send(ctx context.Context, msg relay.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.logger.Info("message discarded by no-op channel",
		zap.Int("caption_bytes", len(msg.Caption)),
		zap.Int("image_bytes", len(msg.Image)),
	)
	return nil
}
