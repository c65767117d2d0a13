// Package publisher renders items and drives delivery through the channel,
// owning all pacing and backoff behavior.
package publisher

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/reelcast/reelcast/internal/metrics"
	"github.com/reelcast/reelcast/internal/relay"
)

// Config controls publisher pacing.
type Config struct {
	// PostDelay is the fixed pause after every delivered post, independent
	// of channel-level rate limiting.
	PostDelay time.Duration
	// FailureCooldown is the pause after a plain delivery failure.
	FailureCooldown time.Duration
}

// Publisher executes one publish attempt per item: render, attach
// thumbnail, deliver.
type Publisher struct {
	channel relay.Channel
	images  relay.ImageFetcher
	cfg     Config
	logger  *zap.Logger
	sleep   func(ctx context.Context, d time.Duration)
}

// New constructs a Publisher.
func New(channel relay.Channel, images relay.ImageFetcher, cfg Config, logger *zap.Logger) *Publisher {
	return &Publisher{
		channel: channel,
		images:  images,
		cfg:     cfg,
		logger:  logger,
		sleep:   interruptibleSleep,
	}
}

// Publish attempts delivery of one item. It never records or prunes; the
// caller owns those steps so that a failure here leaves the item eligible
// for the next cycle.
func (p *Publisher) Publish(ctx context.Context, item relay.Item) relay.PublishOutcome {
	msg := relay.Message{Caption: renderCaption(item)}

	if item.ThumbURL != "" {
		img, err := p.images.Fetch(ctx, item.ThumbURL)
		if err != nil {
			// Expected degraded behavior: post text-only.
			p.logger.Warn("thumbnail fetch failed, posting text-only",
				zap.String("key", item.NaturalKey()),
				zap.Error(err),
			)
		} else {
			msg.Image = img
		}
	}

	err := p.channel.Send(ctx, msg)
	if err == nil {
		metrics.ObservePost(string(relay.PublishDelivered))
		p.logger.Info("item delivered", zap.String("key", item.NaturalKey()))
		p.sleep(ctx, p.cfg.PostDelay)
		return relay.PublishOutcome{Status: relay.PublishDelivered}
	}

	var rateLimit *relay.RateLimitError
	if errors.As(err, &rateLimit) {
		metrics.ObservePost(string(relay.PublishRateLimited))
		metrics.ObserveRateLimitWait(rateLimit.RetryAfter.Seconds())
		p.logger.Warn("channel rate limit hit",
			zap.String("key", item.NaturalKey()),
			zap.Duration("retry_after", rateLimit.RetryAfter),
		)
		p.sleep(ctx, rateLimit.RetryAfter+time.Second)
		return relay.PublishOutcome{Status: relay.PublishRateLimited, RetryAfter: rateLimit.RetryAfter}
	}

	metrics.ObservePost(string(relay.PublishFailed))
	p.logger.Error("delivery failed", zap.String("key", item.NaturalKey()), zap.Error(err))
	p.sleep(ctx, p.cfg.FailureCooldown)
	return relay.PublishOutcome{Status: relay.PublishFailed, Err: err}
}

// interruptibleSleep waits for d, returning early on shutdown.
func interruptibleSleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
