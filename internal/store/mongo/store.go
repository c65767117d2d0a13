// Package mongo implements the ledger, snapshot store and page cursor on a
// MongoDB database.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/reelcast/reelcast/internal/relay"
)

const (
	snapshotCollection = "scraped_data"
	metaCollection     = "meta_data"

	snapshotTTL = 24 * time.Hour
	opTimeout   = 10 * time.Second
)

// Store implements relay.Ledger, relay.SnapshotStore and relay.PageCursor
// on two MongoDB collections: snapshots plus a shared metadata collection
// holding the ledger and the page cursor.
type Store struct {
	client    *mongo.Client
	snapshots *mongo.Collection
	meta      *mongo.Collection
	logger    *zap.Logger
}

// Config holds connection settings.
type Config struct {
	URI      string
	Database string
}

// New connects, pings and prepares indexes. A connection failure here is
// fatal: the service must not start serving without its store.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Store, error) {
	connectCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	db := client.Database(cfg.Database)
	s := &Store{
		client:    client,
		snapshots: db.Collection(snapshotCollection),
		meta:      db.Collection(metaCollection),
		logger:    logger,
	}
	if err := s.createIndexes(ctx); err != nil {
		return nil, fmt.Errorf("create indexes: %w", err)
	}
	return s, nil
}

func (s *Store) createIndexes(ctx context.Context) error {
	idxCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	// Uniqueness constraint backing the ledger's dedup invariant.
	_, err := s.meta.Indexes().CreateOne(idxCtx, mongo.IndexModel{
		Keys:    bson.D{{Key: "posted_uid", Value: 1}},
		Options: options.Index().SetUnique(true).SetSparse(true),
	})
	if err != nil {
		return fmt.Errorf("ledger key index: %w", err)
	}

	// Snapshots expire on their own; retention is not the pipeline's job.
	_, err = s.snapshots.Indexes().CreateOne(idxCtx, mongo.IndexModel{
		Keys:    bson.D{{Key: "created_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(int32(snapshotTTL.Seconds())),
	})
	if err != nil {
		return fmt.Errorf("snapshot ttl index: %w", err)
	}
	return nil
}

// Ping verifies the connection for readiness checks.
func (s *Store) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.client.Ping(pingCtx, nil); err != nil {
		return fmt.Errorf("ping mongo: %w", err)
	}
	return nil
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	closeCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if err := s.client.Disconnect(closeCtx); err != nil {
		return fmt.Errorf("disconnect mongo: %w", err)
	}
	return nil
}

// IsPublished reports whether a ledger entry with the key exists.
func (s *Store) IsPublished(ctx context.Context, key string) (bool, error) {
	findCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	err := s.meta.FindOne(findCtx, bson.M{"posted_uid": key}).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("find ledger entry: %w", err)
	}
	return true, nil
}

// RecordPublished inserts a ledger entry. The unique index rejecting the
// insert means the entry already exists, which is success, not an error.
func (s *Store) RecordPublished(ctx context.Context, item relay.Item, at time.Time) error {
	insertCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	entry := relay.LedgerEntry{
		Key:         item.NaturalKey(),
		Title:       item.Title,
		Link:        item.Link,
		PublishedAt: at,
	}
	_, err := s.meta.InsertOne(insertCtx, entry)
	if mongo.IsDuplicateKeyError(err) {
		s.logger.Debug("ledger entry already present", zap.String("key", entry.Key))
		return nil
	}
	if err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

// Insert stores a new harvest snapshot.
func (s *Store) Insert(ctx context.Context, snap relay.Snapshot) error {
	insertCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if _, err := s.snapshots.InsertOne(insertCtx, snap); err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// Latest returns the most recent snapshot by insertion order, or nil.
func (s *Store) Latest(ctx context.Context) (*relay.Snapshot, error) {
	findCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	opts := options.FindOne().SetSort(bson.D{{Key: "_id", Value: -1}})
	var snap relay.Snapshot
	err := s.snapshots.FindOne(findCtx, bson.M{}, opts).Decode(&snap)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find latest snapshot: %w", err)
	}
	return &snap, nil
}

// RemoveItem pulls the item from both sub-lists of the latest snapshot.
// Matching follows the natural key: link when present, title+thumb for
// items without a link, never title alone.
func (s *Store) RemoveItem(ctx context.Context, item relay.Item) error {
	var match bson.M
	if item.Link != "" {
		match = bson.M{"link": item.Link}
	} else {
		match = bson.M{
			"link":  bson.M{"$in": bson.A{nil, ""}},
			"title": item.Title,
			"thumb": item.ThumbURL,
		}
	}
	update := bson.M{"$pull": bson.M{
		"latest_movies": match,
		"random_movies": match,
	}}

	updateCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	opts := options.FindOneAndUpdate().SetSort(bson.D{{Key: "_id", Value: -1}})
	err := s.snapshots.FindOneAndUpdate(updateCtx, bson.M{}, update, opts).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("prune snapshot item: %w", err)
	}
	return nil
}

// LastPage returns the last successfully harvested page number, zero when
// no harvest has happened yet.
func (s *Store) LastPage(ctx context.Context) (int, error) {
	findCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var doc struct {
		Page int `bson:"page"`
	}
	err := s.meta.FindOne(findCtx, bson.M{"name": "last_page"}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("find page cursor: %w", err)
	}
	return doc.Page, nil
}

// SetLastPage advances the page cursor.
func (s *Store) SetLastPage(ctx context.Context, page int) error {
	updateCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	opts := options.Update().SetUpsert(true)
	update := bson.M{"$set": bson.M{"page": page, "updated_at": time.Now().UTC()}}
	if _, err := s.meta.UpdateOne(updateCtx, bson.M{"name": "last_page"}, update, opts); err != nil {
		return fmt.Errorf("update page cursor: %w", err)
	}
	return nil
}
