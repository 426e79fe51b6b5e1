package calendar

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/rbaliyan/calendar/store"
	"github.com/rbaliyan/calendar/transport"
)

// DispatchResult reports the outcome of one invitation fan-out.
// Partial failure is data, not an error: the caller inspects Failed to decide
// whether to retry. Retrying a send of the same sequence is safe because the
// (UID, Sequence, recipient) triple identifies the invite.
type DispatchResult struct {
	// UID is the event the invites were rendered from.
	UID string
	// Sequence is the event revision that was dispatched.
	Sequence int64
	// Attempted is the number of recipients the fan-out addressed.
	Attempted int
	// Delivered lists recipient emails whose delivery succeeded, in
	// attendee order.
	Delivered []string
	// Failed maps recipient emails to their delivery errors.
	Failed map[string]error
}

// AllDelivered returns true if every attempted delivery succeeded.
// An empty fan-out counts as fully delivered.
func (r *DispatchResult) AllDelivered() bool {
	return len(r.Failed) == 0
}

// FailedRecipients returns the emails that failed delivery.
func (r *DispatchResult) FailedRecipients() []string {
	failed := make([]string, 0, len(r.Failed))
	for email := range r.Failed {
		failed = append(failed, email)
	}
	return failed
}

// SendInvitation renders the event as an iCalendar invite and fans it out to
// every attendee. Cancelled events dispatch their cancellation notice; an
// event with no attendees is a successful no-op.
//
// Delivery is best-effort per recipient. A failed recipient never aborts the
// others, and the per-recipient outcomes land in the returned DispatchResult.
func (c *userCalendar) SendInvitation(ctx context.Context, uid string) (*DispatchResult, error) {
	if err := c.checkAccess(); err != nil {
		return nil, err
	}
	if c.service.opts.transport == nil {
		return nil, ErrTransportRequired
	}

	ev, err := c.service.store.Get(ctx, uid)
	if err != nil {
		return nil, mapStoreError(err)
	}
	if !c.visible(ev) {
		return nil, ErrUnauthorized
	}

	// OTel tracing
	ctx, endSpan := c.service.otel.startSpan(ctx, "calendar.dispatch",
		attribute.String("principal_id", c.principal.ID),
		attribute.String("uid", uid),
		attribute.Int("recipient_count", len(ev.Attendees)),
	)
	start := time.Now()
	var dispatchErr error
	result := &DispatchResult{
		UID:      ev.UID,
		Sequence: ev.Sequence,
		Failed:   make(map[string]error),
	}
	defer func() {
		endSpan(dispatchErr)
		c.service.otel.recordDispatch(ctx, time.Since(start), result.Attempted, len(result.Failed), dispatchErr)
	}()

	// Plugin BeforeDispatch hook
	if err := c.service.plugins.beforeDispatch(ctx, c.principal, ev); err != nil {
		dispatchErr = err
		return nil, err
	}

	if len(ev.Attendees) > 0 {
		body, err := renderInvite(ev, c.service.opts.prodID)
		if err != nil {
			dispatchErr = err
			return nil, err
		}
		c.deliverAll(ctx, ev, body, result)
	}

	c.service.logger.Debug("invitation dispatch complete",
		"uid", ev.UID,
		"sequence", ev.Sequence,
		"attempted", result.Attempted,
		"failed", len(result.Failed))

	if err := c.publishInvitationSent(ctx, result); err != nil {
		dispatchErr = err
		return result, err
	}

	// Plugin AfterDispatch hook
	if err := c.service.plugins.afterDispatch(ctx, c.principal, result); err != nil {
		dispatchErr = err
		return result, err
	}

	return result, nil
}

// deliverAll fans the rendered invite out to all attendees with bounded
// concurrency and a per-recipient timeout.
func (c *userCalendar) deliverAll(ctx context.Context, ev *store.Event, body []byte, result *DispatchResult) {
	invite := transport.Invite{
		UID:      ev.UID,
		Sequence: ev.Sequence,
		Method:   ev.Method,
		Summary:  ev.Summary,
		Body:     body,
	}

	type outcome struct {
		email string
		err   error
	}

	outcomes := make([]outcome, len(ev.Attendees))
	var wg sync.WaitGroup

	for i, a := range ev.Attendees {
		result.Attempted++

		// Semaphore acquisition failure means the context is gone; record
		// the remaining recipients as failed rather than silently dropping.
		if err := c.service.dispatchSem.Acquire(ctx, 1); err != nil {
			outcomes[i] = outcome{email: a.Mailbox.Key(), err: err}
			continue
		}

		wg.Add(1)
		go func(i int, to store.Mailbox) {
			defer wg.Done()
			defer c.service.dispatchSem.Release(1)

			deliveryCtx, cancel := context.WithTimeout(ctx, c.service.opts.deliveryTimeout)
			defer cancel()

			err := c.service.opts.transport.Deliver(deliveryCtx, to, invite)
			outcomes[i] = outcome{email: to.Key(), err: err}
		}(i, a.Mailbox)
	}

	wg.Wait()

	for _, o := range outcomes {
		if o.err != nil {
			result.Failed[o.email] = o.err
			continue
		}
		result.Delivered = append(result.Delivered, o.email)
	}
}

func (c *userCalendar) publishInvitationSent(ctx context.Context, result *DispatchResult) error {
	err := c.service.events.InvitationSent.Publish(ctx, InvitationSentEvent{
		UID:       result.UID,
		Sequence:  result.Sequence,
		Attempted: result.Attempted,
		Failed:    len(result.Failed),
		SentAt:    time.Now().UTC(),
	})
	return c.handlePublishError("InvitationSent", result.UID, err)
}
