package store

import "errors"

// Sentinel errors for the store package.
var (
	// ErrNotFound is returned when an event cannot be found.
	ErrNotFound = errors.New("store: not found")

	// ErrConflict is returned when a compare-and-set update loses a race:
	// the stored sequence no longer matches the expected sequence.
	ErrConflict = errors.New("store: sequence conflict")

	// ErrDuplicateID is returned when creating an event whose UID already exists.
	ErrDuplicateID = errors.New("store: duplicate uid")

	// ErrInvalidID is returned when an empty or malformed UID is provided.
	ErrInvalidID = errors.New("store: invalid uid")

	// ErrNotConnected is returned when operations are attempted before Connect().
	ErrNotConnected = errors.New("store: not connected")

	// ErrAlreadyConnected is returned when Connect() is called twice.
	ErrAlreadyConnected = errors.New("store: already connected")
)

// Error checking helpers.

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

func IsNotConnected(err error) bool {
	return errors.Is(err, ErrNotConnected)
}
