// Package mongo provides a MongoDB implementation of store.Store.
//
// Event UIDs are stored as the document _id. The sequence invariant is
// enforced with a filtered ReplaceOne: the replacement only matches when the
// stored document still carries the expected sequence, so a writer that lost
// the race matches zero documents and receives store.ErrConflict.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/rbaliyan/calendar/store"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// Compile-time check
var _ store.Store = (*Store)(nil)

// Store implements store.Store using MongoDB.
type Store struct {
	client     *mongo.Client
	db         *mongo.Database
	collection *mongo.Collection
	opts       *options
	connected  int32
	logger     *slog.Logger
}

// New creates a new MongoDB store with the provided client.
// Call Connect() to initialize the collection and indexes.
func New(client *mongo.Client, opts ...Option) *Store {
	o := newOptions(opts...)
	return &Store{
		client: client,
		opts:   o,
		logger: o.logger,
	}
}

// Connect initializes the database, collection, and indexes.
func (s *Store) Connect(ctx context.Context) error {
	if atomic.LoadInt32(&s.connected) == 1 {
		return store.ErrAlreadyConnected
	}

	if s.client == nil {
		return fmt.Errorf("mongo: client is required")
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	if err := s.client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("mongo ping: %w", err)
	}

	s.db = s.client.Database(s.opts.database)
	s.collection = s.db.Collection(s.opts.collection)

	if err := s.ensureIndexes(ctx); err != nil {
		return fmt.Errorf("ensure indexes: %w", err)
	}

	atomic.StoreInt32(&s.connected, 1)
	s.logger.Info("connected to MongoDB", "database", s.opts.database, "collection", s.opts.collection)
	return nil
}

// Close marks the store as disconnected.
// The caller is responsible for closing the MongoDB client.
func (s *Store) Close(ctx context.Context) error {
	atomic.StoreInt32(&s.connected, 0)
	return nil
}

// ensureIndexes creates required indexes.
func (s *Store) ensureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{bson.E{Key: "organizer.email", Value: 1}}},
		{Keys: bson.D{bson.E{Key: "method", Value: 1}}},
		{Keys: bson.D{bson.E{Key: "created_at", Value: 1}}},
	}

	if _, err := s.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("create indexes: %w", err)
	}
	return nil
}

// checkConnected returns error if not connected.
func (s *Store) checkConnected() error {
	if atomic.LoadInt32(&s.connected) == 0 {
		return store.ErrNotConnected
	}
	return nil
}

// Get retrieves an event by UID.
func (s *Store) Get(ctx context.Context, uid string) (*store.Event, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if uid == "" {
		return nil, store.ErrInvalidID
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	var ev store.Event
	err := s.collection.FindOne(ctx, bson.M{"_id": uid}).Decode(&ev)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	ev.CreatedAt = ev.CreatedAt.UTC()
	ev.UpdatedAt = ev.UpdatedAt.UTC()
	return &ev, nil
}

// Create inserts a new event record.
// The _id uniqueness constraint provides the duplicate guarantee.
func (s *Store) Create(ctx context.Context, ev *store.Event) error {
	if err := s.checkConnected(); err != nil {
		return err
	}
	if ev == nil || ev.UID == "" {
		return store.ErrInvalidID
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	if _, err := s.collection.InsertOne(ctx, ev); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return store.ErrDuplicateID
		}
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// Update atomically replaces the document if the stored sequence still matches.
func (s *Store) Update(ctx context.Context, ev *store.Event, expectedSequence int64) error {
	if err := s.checkConnected(); err != nil {
		return err
	}
	if ev == nil || ev.UID == "" {
		return store.ErrInvalidID
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	filter := bson.M{
		"_id":      ev.UID,
		"sequence": expectedSequence,
	}

	result, err := s.collection.ReplaceOne(ctx, filter, ev)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	if result.MatchedCount > 0 {
		return nil
	}

	// Zero matches: either the document is gone or its sequence moved on.
	count, err := s.collection.CountDocuments(ctx, bson.M{"_id": ev.UID})
	if err != nil {
		return fmt.Errorf("check existence: %w", err)
	}
	if count == 0 {
		return store.ErrNotFound
	}
	return store.ErrConflict
}

// Delete permanently removes an event record.
func (s *Store) Delete(ctx context.Context, uid string) error {
	if err := s.checkConnected(); err != nil {
		return err
	}
	if uid == "" {
		return store.ErrInvalidID
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	result, err := s.collection.DeleteOne(ctx, bson.M{"_id": uid})
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if result.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

// Scan returns all event records ordered by creation time then UID.
func (s *Store) Scan(ctx context.Context) ([]*store.Event, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	cursor, err := s.collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("scan events: %w", err)
	}
	defer cursor.Close(ctx)

	var events []*store.Event
	for cursor.Next(ctx) {
		var ev store.Event
		if err := cursor.Decode(&ev); err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		ev.CreatedAt = ev.CreatedAt.UTC()
		ev.UpdatedAt = ev.UpdatedAt.UTC()
		events = append(events, &ev)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("scan cursor: %w", err)
	}

	sortEvents(events)
	return events, nil
}

// sortEvents orders events by creation time then UID for deterministic listing.
func sortEvents(events []*store.Event) {
	for i := 0; i < len(events)-1; i++ {
		for j := i + 1; j < len(events); j++ {
			a, b := events[i], events[j]
			swap := false
			if a.CreatedAt.After(b.CreatedAt) {
				swap = true
			} else if a.CreatedAt.Equal(b.CreatedAt) && a.UID > b.UID {
				swap = true
			}
			if swap {
				events[i], events[j] = events[j], events[i]
			}
		}
	}
}
