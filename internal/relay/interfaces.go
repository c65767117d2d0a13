package relay

import (
	"context"
	"time"
)

// Ledger is the durable record of what has already been published.
type Ledger interface {
	IsPublished(ctx context.Context, key string) (bool, error)
	// RecordPublished inserts a ledger entry. A duplicate key is not an
	// error: it signals "already recorded" and returns nil.
	RecordPublished(ctx context.Context, item Item, at time.Time) error
}

// SnapshotStore persists harvest snapshots.
type SnapshotStore interface {
	Insert(ctx context.Context, snap Snapshot) error
	// Latest returns the most recent snapshot, or nil when none exists.
	Latest(ctx context.Context) (*Snapshot, error)
	// RemoveItem prunes the item from the most recent snapshot's item
	// lists, matching on the natural key, never on title alone.
	RemoveItem(ctx context.Context, item Item) error
}

// PageCursor tracks the next unscraped source page.
type PageCursor interface {
	LastPage(ctx context.Context) (int, error)
	SetLastPage(ctx context.Context, page int) error
}

// Extractor scrapes one source page. A nil snapshot with a nil error means
// the page had no content; the caller must not advance the page cursor.
type Extractor interface {
	Extract(ctx context.Context, page int) (*Snapshot, error)
}

// Channel delivers one rendered message downstream. Backpressure is
// reported as a *RateLimitError.
type Channel interface {
	Send(ctx context.Context, msg Message) error
}

// ImageFetcher retrieves a thumbnail payload.
type ImageFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
