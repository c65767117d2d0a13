package telegram

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/reelcast/reelcast/internal/relay"
	"github.com/reelcast/reelcast/internal/release"
)

// Releaser runs one manual release cycle.
type Releaser interface {
	Release(ctx context.Context, count int) (relay.ReleaseReport, error)
	Status(ctx context.Context) (release.Status, error)
}

// Listener answers interactive bot commands. It is an operational surface
// only; the publishing pipeline never depends on it.
type Listener struct {
	bot       *tgbotapi.BotAPI
	releaser  Releaser
	batchSize int
	schedule  []relay.ScheduleEntry
	logger    *zap.Logger
}

// NewListener constructs a Listener on the channel's bot client.
func NewListener(ch *Channel, releaser Releaser, batchSize int, schedule []relay.ScheduleEntry, logger *zap.Logger) *Listener {
	return &Listener{
		bot:       ch.Bot(),
		releaser:  releaser,
		batchSize: batchSize,
		schedule:  schedule,
		logger:    logger,
	}
}

// Run polls for commands until the context finishes.
func (l *Listener) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := l.bot.GetUpdatesChan(u)

	go func() {
		<-ctx.Done()
		l.bot.StopReceivingUpdates()
	}()

	for update := range updates {
		if update.Message == nil || !update.Message.IsCommand() {
			continue
		}
		l.handle(ctx, update.Message)
	}
}

func (l *Listener) handle(ctx context.Context, msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start":
		l.reply(msg.Chat.ID, l.scheduleText())
	case "status":
		st, err := l.releaser.Status(ctx)
		if err != nil {
			l.reply(msg.Chat.ID, fmt.Sprintf("Status unavailable: %s", escapeStatus(err.Error())))
			return
		}
		l.reply(msg.Chat.ID, statusText(st))
	case "postnow":
		l.reply(msg.Chat.ID, fmt.Sprintf("Releasing next %d items...", l.batchSize))
		report, err := l.releaser.Release(ctx, l.batchSize)
		if err != nil {
			l.reply(msg.Chat.ID, fmt.Sprintf("Release failed: %s", escapeStatus(err.Error())))
			return
		}
		l.reply(msg.Chat.ID, fmt.Sprintf(
			"Done: %d delivered, %d failed, %d duplicates.",
			report.Delivered, report.Failed, report.Duplicates,
		))
	}
}

func (l *Listener) scheduleText() string {
	var b strings.Builder
	b.WriteString("<b>Auto Posting Bot</b>\n\nSchedule:\n")
	for _, e := range l.schedule {
		switch e.Action {
		case relay.ActionHarvest:
			fmt.Fprintf(&b, "%02d:%02d - harvest next page\n", e.Hour, e.Minute)
		case relay.ActionReleaseN:
			fmt.Fprintf(&b, "%02d:%02d - %d posts\n", e.Hour, e.Minute, e.Count)
		case relay.ActionReleaseAll:
			fmt.Fprintf(&b, "%02d:%02d - all remaining\n", e.Hour, e.Minute)
		}
	}
	return b.String()
}

func statusText(st release.Status) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>Unposted items:</b> %d\n\n", st.Unposted)
	for i, title := range st.SampleTitles {
		fmt.Fprintf(&b, "%d. %s\n", i+1, escapeStatus(title))
	}
	if st.LastFailure != "" {
		fmt.Fprintf(&b, "\nLast failure: %s", escapeStatus(st.LastFailure))
	}
	return b.String()
}

func escapeStatus(s string) string {
	return strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;").Replace(s)
}

func (l *Listener) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := l.bot.Send(msg); err != nil {
		l.logger.Warn("command reply failed", zap.Error(err))
	}
}
