// Package memory provides an in-memory Store implementation for testing.
// This store is not suitable for production use - data is not persisted.
package memory

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/rbaliyan/calendar/store"
)

// Store implements store.Store with in-memory storage.
// Thread-safe for concurrent use. Not suitable for production.
type Store struct {
	events    sync.Map // map[string]*store.Event
	keyLocks  sync.Map // map[string]*sync.Mutex (per-uid locks serializing Update and Delete)
	connected int32
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{}
}

// getKeyLock returns the mutex for a UID, creating one if needed.
// Uses LoadOrStore for atomic get-or-create.
func (s *Store) getKeyLock(uid string) *sync.Mutex {
	lock, _ := s.keyLocks.LoadOrStore(uid, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

// Connect marks the store as connected.
func (s *Store) Connect(_ context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.connected, 0, 1) {
		return store.ErrAlreadyConnected
	}
	return nil
}

// Close marks the store as disconnected.
func (s *Store) Close(_ context.Context) error {
	atomic.StoreInt32(&s.connected, 0)
	return nil
}

// Get retrieves an event by UID.
func (s *Store) Get(_ context.Context, uid string) (*store.Event, error) {
	if atomic.LoadInt32(&s.connected) == 0 {
		return nil, store.ErrNotConnected
	}
	if uid == "" {
		return nil, store.ErrInvalidID
	}

	v, ok := s.events.Load(uid)
	if !ok {
		return nil, store.ErrNotFound
	}
	return v.(*store.Event).Clone(), nil
}

// Create inserts a new event record.
func (s *Store) Create(_ context.Context, ev *store.Event) error {
	if atomic.LoadInt32(&s.connected) == 0 {
		return store.ErrNotConnected
	}
	if ev == nil || ev.UID == "" {
		return store.ErrInvalidID
	}

	// LoadOrStore gives the same atomicity as a unique-constraint insert.
	if _, loaded := s.events.LoadOrStore(ev.UID, ev.Clone()); loaded {
		return store.ErrDuplicateID
	}
	return nil
}

// Update atomically replaces the record if the stored sequence still matches.
// The per-uid lock stands in for the conditional UPDATE a real database runs.
func (s *Store) Update(_ context.Context, ev *store.Event, expectedSequence int64) error {
	if atomic.LoadInt32(&s.connected) == 0 {
		return store.ErrNotConnected
	}
	if ev == nil || ev.UID == "" {
		return store.ErrInvalidID
	}

	lock := s.getKeyLock(ev.UID)
	lock.Lock()
	defer lock.Unlock()

	v, ok := s.events.Load(ev.UID)
	if !ok {
		return store.ErrNotFound
	}
	if v.(*store.Event).Sequence != expectedSequence {
		return store.ErrConflict
	}

	s.events.Store(ev.UID, ev.Clone())
	return nil
}

// Delete permanently removes an event record. It takes the same per-uid
// lock as Update so a concurrent compare-and-set cannot load the record,
// lose the race to Delete, and then store it back.
func (s *Store) Delete(_ context.Context, uid string) error {
	if atomic.LoadInt32(&s.connected) == 0 {
		return store.ErrNotConnected
	}
	if uid == "" {
		return store.ErrInvalidID
	}

	lock := s.getKeyLock(uid)
	lock.Lock()
	defer lock.Unlock()

	if _, loaded := s.events.LoadAndDelete(uid); !loaded {
		return store.ErrNotFound
	}
	// The lock entry stays behind: removing it here would let a writer
	// blocked in getKeyLock end up holding a different mutex for this uid.
	return nil
}

// Scan returns all event records, ordered by creation time then UID for
// deterministic listing.
func (s *Store) Scan(_ context.Context) ([]*store.Event, error) {
	if atomic.LoadInt32(&s.connected) == 0 {
		return nil, store.ErrNotConnected
	}

	var all []*store.Event
	s.events.Range(func(_, v any) bool {
		all = append(all, v.(*store.Event).Clone())
		return true
	})

	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.Before(all[j].CreatedAt)
		}
		return all[i].UID < all[j].UID
	})

	return all, nil
}

// Compile-time check that Store implements store.Store.
var _ store.Store = (*Store)(nil)
