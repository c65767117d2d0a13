// Package relay defines core types shared across the republishing pipeline.
package relay

import (
	"fmt"
	"time"
)

// DetailLink is one labeled URL scraped from an item's detail page.
type DetailLink struct {
	Label string `bson:"quality" json:"quality"`
	URL   string `bson:"url" json:"url"`
}

// Item is one piece of harvested content eligible for publication.
type Item struct {
	Title         string       `bson:"title" json:"title"`
	Link          string       `bson:"link" json:"link"`
	ThumbURL      string       `bson:"thumb" json:"thumb"`
	DownloadLinks []DetailLink `bson:"download_links" json:"download_links"`
	Duration      string       `bson:"duration,omitempty" json:"duration,omitempty"`
}

// NaturalKey derives the deduplication identifier for the item. The link is
// used when present; otherwise a title+thumbnail composite so that items
// without a link never collapse onto each other by title alone.
func (i Item) NaturalKey() string {
	if i.Link != "" {
		return i.Link
	}
	return i.Title + "|" + i.ThumbURL
}

// Snapshot is the result of one harvest run. The source presents items as
// two sub-lists; Items concatenates them in discovery order (latest first).
type Snapshot struct {
	Page      int       `bson:"page" json:"page"`
	Latest    []Item    `bson:"latest_movies" json:"latest_movies"`
	Random    []Item    `bson:"random_movies" json:"random_movies"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// Items returns the snapshot's items as one ordered list.
func (s *Snapshot) Items() []Item {
	out := make([]Item, 0, len(s.Latest)+len(s.Random))
	out = append(out, s.Latest...)
	out = append(out, s.Random...)
	return out
}

// Empty reports whether the harvest found no items at all.
func (s *Snapshot) Empty() bool {
	return len(s.Latest) == 0 && len(s.Random) == 0
}

// LedgerEntry records that an item was published. Exactly one entry exists
// per natural key, enforced by the store's uniqueness constraint.
type LedgerEntry struct {
	Key         string    `bson:"posted_uid" json:"posted_uid"`
	Title       string    `bson:"title" json:"title"`
	Link        string    `bson:"link,omitempty" json:"link,omitempty"`
	PublishedAt time.Time `bson:"posted_at" json:"posted_at"`
}

// Message is one rendered post handed to the channel.
type Message struct {
	Caption string
	Image   []byte // nil means text-only
}

// PublishStatus represents the terminal state of one publish attempt.
type PublishStatus string

// Publish attempt outcomes.
const (
	PublishDelivered   PublishStatus = "delivered"
	PublishRateLimited PublishStatus = "rate_limited"
	PublishFailed      PublishStatus = "failed"
)

// PublishOutcome is returned by the publisher for every attempt.
type PublishOutcome struct {
	Status     PublishStatus
	RetryAfter time.Duration // set when rate limited
	Err        error         // set on failure
}

// ReleaseReport summarizes one release cycle for observability.
type ReleaseReport struct {
	Attempted   int    `json:"attempted"`
	Delivered   int    `json:"delivered"`
	Duplicates  int    `json:"duplicates"`
	Failed      int    `json:"failed"`
	RateLimited bool   `json:"rate_limited"`
	LastError   string `json:"last_error,omitempty"`
}

// RateLimitError signals channel backpressure and carries the wait the
// channel asked for.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited: retry after %s", e.RetryAfter)
}

// ScheduleAction identifies what a schedule entry triggers.
type ScheduleAction string

// Schedule actions fired by the scheduler.
const (
	ActionReleaseN   ScheduleAction = "release_n"
	ActionReleaseAll ScheduleAction = "release_all"
	ActionHarvest    ScheduleAction = "harvest"
)

// ScheduleEntry is one fixed time-of-day trigger. The trigger set is static
// for the process lifetime.
type ScheduleEntry struct {
	Hour   int
	Minute int
	Action ScheduleAction
	Count  int // items per cycle for ActionReleaseN
}
