// Package directory provides a user profile registry keyed by email address.
//
// Profiles carry the display name attached to a mailbox when it appears as an
// organizer or attendee. The registry is optional: callers that only work
// with raw addresses never need one.
package directory

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rbaliyan/calendar/store"
)

// Sentinel errors for profile operations.
var (
	// ErrNotFound indicates no profile is registered for the email.
	ErrNotFound = errors.New("directory: profile not found")
	// ErrInvalidEmail indicates an empty or malformed email address.
	ErrInvalidEmail = errors.New("directory: invalid email")
	// ErrDuplicate indicates a profile already exists for the email.
	ErrDuplicate = errors.New("directory: profile already registered")
)

// Profile is a registered user identity.
type Profile struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Mailbox converts the profile into a store mailbox.
func (p Profile) Mailbox() store.Mailbox {
	return store.Mailbox{Email: p.Email, Name: p.Name}
}

// Directory is an in-memory profile registry. Lookups are keyed by the
// lowercased email address. Safe for concurrent use.
type Directory struct {
	mu       sync.RWMutex
	profiles map[string]Profile
}

// New creates an empty directory.
func New() *Directory {
	return &Directory{profiles: make(map[string]Profile)}
}

// key normalizes an email for map lookup.
func key(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register adds a new profile. Registering an email that already has a
// profile returns ErrDuplicate; use Save to overwrite.
func (d *Directory) Register(_ context.Context, p Profile) error {
	k := key(p.Email)
	if k == "" {
		return ErrInvalidEmail
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.profiles[k]; ok {
		return ErrDuplicate
	}
	p.Email = k
	d.profiles[k] = p
	return nil
}

// Save creates or replaces the profile for its email.
func (d *Directory) Save(_ context.Context, p Profile) error {
	k := key(p.Email)
	if k == "" {
		return ErrInvalidEmail
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	p.Email = k
	d.profiles[k] = p
	return nil
}

// Lookup returns the profile registered for the email.
func (d *Directory) Lookup(_ context.Context, email string) (Profile, error) {
	k := key(email)
	if k == "" {
		return Profile{}, ErrInvalidEmail
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.profiles[k]
	if !ok {
		return Profile{}, ErrNotFound
	}
	return p, nil
}

// LookupBatch returns profiles for multiple emails. Unregistered emails have
// zero-value entries in the returned slice.
func (d *Directory) LookupBatch(_ context.Context, emails []string) []Profile {
	d.mu.RLock()
	defer d.mu.RUnlock()
	result := make([]Profile, len(emails))
	for i, email := range emails {
		result[i] = d.profiles[key(email)]
	}
	return result
}
