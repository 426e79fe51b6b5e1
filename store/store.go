// Package store provides interfaces and types for calendar event storage.
// Implementations are in store/mongo, store/memory, and store/postgres subpackages.
//
// # Architectural Principle: Compare-And-Set, No Distributed Locks
//
// Every event carries a Sequence number that increments by exactly one on each
// effective mutation. The store enforces this with an atomic compare-and-set:
// Update only commits when the stored record still carries the sequence the
// writer read. Two writers racing from the same base sequence cannot both
// commit - one observes ErrConflict and must re-read and retry.
//
// This single discipline is enough to serialize all mutations per event UID
// without external locking:
//
//	// WRONG: Distributed lock approach (DO NOT USE)
//	lock.Acquire("event:" + uid)
//	defer lock.Release()
//	ev := store.Get(uid)
//	mutate(ev)
//	store.Save(ev)
//
//	// CORRECT: Optimistic compare-and-set
//	ev, _ := store.Get(ctx, uid)
//	expected := ev.Sequence
//	mutate(ev)
//	ev.Sequence++
//	err := store.Update(ctx, ev, expected) // ErrConflict on lost race, retry
//
// Implementations back this with database-native atomicity: PostgreSQL
// UPDATE ... WHERE uid = $1 AND sequence = $2, MongoDB ReplaceOne with a
// sequence-filtered query, or a per-key mutex for the in-memory test store.
package store

import "context"

// Store is the storage interface for calendar events.
//
// All operations must be safe for concurrent use. Implementations must use
// database-level atomicity (conditional updates, unique constraints) rather
// than external locking mechanisms. See package documentation for details.
type Store interface {
	// Lifecycle
	Connect(ctx context.Context) error
	Close(ctx context.Context) error

	// Get retrieves an event by UID.
	// Returns ErrNotFound if the event doesn't exist.
	Get(ctx context.Context, uid string) (*Event, error)

	// Create inserts a new event record.
	// Returns ErrDuplicateID if an event with the same UID already exists.
	Create(ctx context.Context, ev *Event) error

	// Update atomically replaces the stored record for ev.UID, but only if the
	// stored sequence still equals expectedSequence.
	//
	// This operation MUST be atomic at the database level:
	//   - PostgreSQL: UPDATE ... WHERE uid = $1 AND sequence = $2
	//   - MongoDB: ReplaceOne with {_id: uid, sequence: expected} filter
	//
	// Returns:
	//   - nil: the record was replaced
	//   - ErrConflict: the record exists but its sequence moved on (lost race)
	//   - ErrNotFound: no record with this UID exists
	Update(ctx context.Context, ev *Event, expectedSequence int64) error

	// Delete permanently removes an event record.
	// Returns ErrNotFound if the event doesn't exist.
	Delete(ctx context.Context, uid string) error

	// Scan returns all event records. Listing visibility policy is applied by
	// the caller, not the store.
	Scan(ctx context.Context) ([]*Event, error)
}
