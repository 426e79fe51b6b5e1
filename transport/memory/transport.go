// Package memory provides an in-memory transport.Transport for tests and
// local development. Deliveries are recorded per recipient and can be made to
// fail selectively.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/rbaliyan/calendar/store"
	"github.com/rbaliyan/calendar/transport"
)

// Compile-time check
var _ transport.Transport = (*Transport)(nil)

// Transport records every delivered invite, keyed by recipient mailbox.
type Transport struct {
	mu        sync.Mutex
	delivered map[string][]transport.Invite
	failures  map[string]error
}

// New creates an empty recording transport.
func New() *Transport {
	return &Transport{
		delivered: make(map[string][]transport.Invite),
		failures:  make(map[string]error),
	}
}

// Fail makes future deliveries to the given email fail with err.
// Passing a nil err clears the failure.
func (t *Transport) Fail(email string, err error) {
	key := store.Mailbox{Email: email}.Key()
	t.mu.Lock()
	defer t.mu.Unlock()
	if err == nil {
		delete(t.failures, key)
		return
	}
	t.failures[key] = err
}

// Deliver records the invite for the recipient, or returns the configured
// failure for that recipient.
func (t *Transport) Deliver(ctx context.Context, to store.Mailbox, invite transport.Invite) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	key := to.Key()
	t.mu.Lock()
	defer t.mu.Unlock()

	if err, ok := t.failures[key]; ok {
		return fmt.Errorf("%w: %s: %w", transport.ErrDeliveryFailed, key, err)
	}
	t.delivered[key] = append(t.delivered[key], invite)
	return nil
}

// Delivered returns the invites delivered to the given email, in order.
func (t *Transport) Delivered(email string) []transport.Invite {
	key := store.Mailbox{Email: email}.Key()
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]transport.Invite, len(t.delivered[key]))
	copy(out, t.delivered[key])
	return out
}

// Count returns the total number of recorded deliveries.
func (t *Transport) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, invites := range t.delivered {
		n += len(invites)
	}
	return n
}

// Reset clears all recorded deliveries and failure configuration.
func (t *Transport) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.delivered = make(map[string][]transport.Invite)
	t.failures = make(map[string]error)
}
