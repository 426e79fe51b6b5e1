// Package transport defines the mail delivery boundary for invitation dispatch.
// Implementations are in transport/smtp (real delivery) and transport/memory
// (recording fake for tests).
package transport

import (
	"context"
	"errors"

	"github.com/rbaliyan/calendar/store"
)

// ErrDeliveryFailed is the sentinel wrapped by transport delivery errors.
var ErrDeliveryFailed = errors.New("transport: delivery failed")

// Invite is one rendered invitation addressed to a single recipient.
//
// The (UID, Sequence, recipient) triple is the protocol-level idempotency key:
// a retried send of the same sequence is recognizable as a duplicate by the
// recipient's calendaring client, even when the transport itself is not
// idempotent.
type Invite struct {
	// UID is the event identifier the invite belongs to.
	UID string
	// Sequence is the event revision this invite was rendered from.
	Sequence int64
	// Method is the calendaring method being dispatched (publish/request/cancel).
	Method store.Method
	// Summary is used as the message subject line.
	Summary string
	// Body is the rendered iCalendar payload.
	Body []byte
}

// Transport delivers invites to recipient mailboxes.
//
// Deliver is best-effort per recipient: no batching is assumed, and no retry
// is required of the transport. Implementations must be safe for concurrent
// use - the dispatcher fans out deliveries in parallel.
type Transport interface {
	Deliver(ctx context.Context, to store.Mailbox, invite Invite) error
}
