// Package collyextractor implements the source extractor using gocolly.
package collyextractor

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/reelcast/reelcast/internal/relay"
)

// Config controls collector behavior.
type Config struct {
	BaseURL   string // printf template with one %d page slot
	UserAgent string
	Timeout   time.Duration
}

// Extractor implements relay.Extractor by scraping the source's paginated
// listing and each item's detail page.
type Extractor struct {
	cfg           Config
	baseCollector *colly.Collector
	logger        *zap.Logger
}

var thumbSizeSuffix = regexp.MustCompile(`-\d+x\d+`)

// New builds an Extractor.
func New(cfg Config, logger *zap.Logger) *Extractor {
	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = true
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	c.SetRequestTimeout(timeout)

	return &Extractor{
		cfg:           cfg,
		baseCollector: c,
		logger:        logger,
	}
}

// Extract scrapes one listing page. An empty page yields a nil snapshot and
// a nil error so the caller does not advance its page cursor.
func (e *Extractor) Extract(ctx context.Context, page int) (*relay.Snapshot, error) {
	url := fmt.Sprintf(e.cfg.BaseURL, page)
	e.logger.Info("scraping listing page", zap.Int("page", page), zap.String("url", url))

	snap := &relay.Snapshot{Page: page}
	collector := e.baseCollector.Clone()

	collector.OnHTML("div.grid-container div.gmr-item-modulepost", func(el *colly.HTMLElement) {
		if item, ok := e.listingItem(ctx, el); ok {
			snap.Random = append(snap.Random, item)
		}
	})
	collector.OnHTML("#gmr-main-load article", func(el *colly.HTMLElement) {
		if item, ok := e.listingItem(ctx, el); ok {
			snap.Latest = append(snap.Latest, item)
		}
	})

	if err := collector.Visit(url); err != nil {
		return nil, fmt.Errorf("visit page %d: %w", page, err)
	}
	collector.Wait()

	if snap.Empty() {
		e.logger.Warn("no items found on page", zap.Int("page", page))
		return nil, nil
	}
	e.logger.Info("page scraped",
		zap.Int("page", page),
		zap.Int("latest", len(snap.Latest)),
		zap.Int("random", len(snap.Random)),
	)
	return snap, nil
}

func (e *Extractor) listingItem(ctx context.Context, el *colly.HTMLElement) (relay.Item, bool) {
	if ctx.Err() != nil {
		return relay.Item{}, false
	}
	link := el.ChildAttr("a[itemprop=url]", "href")
	if link == "" {
		link = el.ChildAttr("a", "href")
	}
	thumb := el.ChildAttr("img", "src")
	title := strings.TrimSpace(el.ChildAttr("img", "alt"))
	if link == "" && (title == "" || thumb == "") {
		return relay.Item{}, false
	}

	item := relay.Item{
		Title:    title,
		Link:     el.Request.AbsoluteURL(link),
		ThumbURL: el.Request.AbsoluteURL(thumbSizeSuffix.ReplaceAllString(thumb, "")),
	}
	e.fillDetails(&item)
	return item, true
}

// fillDetails visits the item's detail page for download links and runtime.
// Detail failures degrade to an item without details, they never fail the
// harvest.
func (e *Extractor) fillDetails(item *relay.Item) {
	if item.Link == "" {
		return
	}
	detail := e.baseCollector.Clone()
	detail.OnHTML("div#download a[href]", func(el *colly.HTMLElement) {
		label := strings.TrimSpace(el.Text)
		if label == "" {
			label = "Link"
		}
		item.DownloadLinks = append(item.DownloadLinks, relay.DetailLink{
			Label: label,
			URL:   el.Request.AbsoluteURL(el.Attr("href")),
		})
	})
	detail.OnHTML("span.runtime", func(el *colly.HTMLElement) {
		item.Duration = strings.TrimSpace(el.Text)
	})

	if err := detail.Visit(item.Link); err != nil {
		e.logger.Warn("detail page fetch failed",
			zap.String("url", item.Link),
			zap.Error(err),
		)
		return
	}
	detail.Wait()
}
