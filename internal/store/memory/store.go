// Package memory provides in-memory store implementations for development
// and testing.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/reelcast/reelcast/internal/relay"
)

// Ledger implements relay.Ledger backed by a map. Duplicate inserts are
// treated as success, matching the document store's unique-index semantics.
type Ledger struct {
	mu      sync.RWMutex
	entries map[string]relay.LedgerEntry
}

// NewLedger constructs a Ledger.
func NewLedger() *Ledger {
	return &Ledger{entries: make(map[string]relay.LedgerEntry)}
}

// IsPublished reports whether an entry with the key exists.
func (l *Ledger) IsPublished(_ context.Context, key string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.entries[key]
	return ok, nil
}

// RecordPublished inserts an entry; a second insert with the same key is a
// no-op success.
func (l *Ledger) RecordPublished(_ context.Context, item relay.Item, at time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := item.NaturalKey()
	if _, ok := l.entries[key]; ok {
		return nil
	}
	l.entries[key] = relay.LedgerEntry{
		Key:         key,
		Title:       item.Title,
		Link:        item.Link,
		PublishedAt: at,
	}
	return nil
}

// Len returns the number of ledger entries.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// SnapshotStore implements relay.SnapshotStore backed by a slice.
type SnapshotStore struct {
	mu    sync.RWMutex
	snaps []relay.Snapshot
}

// NewSnapshotStore constructs a SnapshotStore.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{}
}

// Insert appends a snapshot.
func (s *SnapshotStore) Insert(_ context.Context, snap relay.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps = append(s.snaps, snap)
	return nil
}

// Latest returns a copy of the most recently inserted snapshot, or nil.
func (s *SnapshotStore) Latest(_ context.Context) (*relay.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.snaps) == 0 {
		return nil, nil
	}
	snap := s.snaps[len(s.snaps)-1]
	snap.Latest = append([]relay.Item(nil), snap.Latest...)
	snap.Random = append([]relay.Item(nil), snap.Random...)
	return &snap, nil
}

// RemoveItem prunes the item from the latest snapshot, matching by natural
// key.
func (s *SnapshotStore) RemoveItem(_ context.Context, item relay.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.snaps) == 0 {
		return nil
	}
	key := item.NaturalKey()
	snap := &s.snaps[len(s.snaps)-1]
	snap.Latest = removeByKey(snap.Latest, key)
	snap.Random = removeByKey(snap.Random, key)
	return nil
}

func removeByKey(items []relay.Item, key string) []relay.Item {
	out := items[:0]
	for _, it := range items {
		if it.NaturalKey() != key {
			out = append(out, it)
		}
	}
	return out
}

// PageCursor implements relay.PageCursor backed by an int.
type PageCursor struct {
	mu   sync.Mutex
	page int
}

// NewPageCursor constructs a PageCursor starting at zero.
func NewPageCursor() *PageCursor {
	return &PageCursor{}
}

// LastPage returns the last successfully harvested page.
func (p *PageCursor) LastPage(_ context.Context) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.page, nil
}

// SetLastPage advances the cursor.
func (p *PageCursor) SetLastPage(_ context.Context, page int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.page = page
	return nil
}
