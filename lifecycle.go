package calendar

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/rbaliyan/calendar/retry"
	"github.com/rbaliyan/calendar/store"
)

// userCalendar is the default implementation of Calendar.
type userCalendar struct {
	principal      Principal
	service        *service
	validPrincipal bool // set by Client() after validation
}

// Principal returns the principal this client acts as.
func (c *userCalendar) Principal() Principal {
	return c.principal
}

// isConnected checks if the service is connected.
func (c *userCalendar) isConnected() bool {
	return atomic.LoadInt32(&c.service.state) == stateConnected
}

// checkAccess verifies the client is ready for operations.
// Returns ErrNotConnected if service isn't connected,
// or ErrInvalidPrincipal if the principal failed validation.
func (c *userCalendar) checkAccess() error {
	if !c.isConnected() {
		return ErrNotConnected
	}
	if !c.validPrincipal {
		return ErrInvalidPrincipal
	}
	return nil
}

// authorize checks a capability against the configured policy.
func (c *userCalendar) authorize(capability Capability) error {
	if !c.service.opts.authorizer.Authorize(c.principal, capability) {
		return ErrUnauthorized
	}
	return nil
}

// Create creates a new event organized by this client's principal.
// The event starts with method publish, sequence 0, and no attendees.
func (c *userCalendar) Create(ctx context.Context, input EventInput) (*Event, error) {
	if err := c.checkAccess(); err != nil {
		return nil, err
	}
	if err := c.authorize(CapCreate); err != nil {
		return nil, err
	}

	// OTel tracing
	ctx, endSpan := c.service.otel.startSpan(ctx, "calendar.create",
		attribute.String("principal_id", c.principal.ID),
	)
	start := time.Now()
	var createErr error
	defer func() {
		endSpan(createErr)
		c.service.otel.recordCreate(ctx, time.Since(start), createErr)
	}()

	limits := c.service.opts.getLimits()
	if err := ValidateMailbox(c.principal.Mailbox); err != nil {
		createErr = err
		return nil, err
	}
	if err := ValidateSummary(input.Summary, limits); err != nil {
		createErr = err
		return nil, err
	}
	if err := ValidateDescription(input.Description, limits); err != nil {
		createErr = err
		return nil, err
	}
	if err := ValidateLocation(input.Location, limits); err != nil {
		createErr = err
		return nil, err
	}
	uid := input.UID
	if uid == "" {
		uid = uuid.NewString()
	}

	now := time.Now().UTC()
	ev := &store.Event{
		UID:         uid,
		Organizer:   c.principal.Mailbox,
		Summary:     input.Summary,
		Description: input.Description,
		Location:    input.Location,
		StartTime:   input.StartTime,
		EndTime:     input.EndTime,
		Method:      store.MethodPublish,
		Sequence:    0,
		Attendees:   []store.Attendee{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := c.service.store.Create(ctx, ev); err != nil {
		createErr = mapStoreError(err)
		return nil, createErr
	}

	if err := c.publishCreated(ctx, ev); err != nil {
		createErr = err
		return ev, err
	}

	return ev, nil
}

// Get retrieves an event by UID.
// Events outside the caller's visibility return ErrUnauthorized.
func (c *userCalendar) Get(ctx context.Context, uid string) (*Event, error) {
	if err := c.checkAccess(); err != nil {
		return nil, err
	}

	// OTel tracing
	ctx, endSpan := c.service.otel.startSpan(ctx, "calendar.get",
		attribute.String("principal_id", c.principal.ID),
		attribute.String("uid", uid),
	)
	start := time.Now()
	var getErr error
	defer func() {
		endSpan(getErr)
		c.service.otel.recordGet(ctx, time.Since(start), getErr)
	}()

	ev, err := c.service.store.Get(ctx, uid)
	if err != nil {
		getErr = mapStoreError(err)
		return nil, getErr
	}

	if !c.visible(ev) {
		getErr = ErrUnauthorized
		return nil, ErrUnauthorized
	}

	return ev, nil
}

// List returns events visible to this client's principal, ordered by
// creation time.
func (c *userCalendar) List(ctx context.Context) ([]*Event, error) {
	if err := c.checkAccess(); err != nil {
		return nil, err
	}

	// OTel tracing
	ctx, endSpan := c.service.otel.startSpan(ctx, "calendar.list",
		attribute.String("principal_id", c.principal.ID),
	)
	start := time.Now()
	var listErr error
	var resultCount int
	defer func() {
		endSpan(listErr)
		c.service.otel.recordList(ctx, time.Since(start), resultCount, listErr)
	}()

	all, err := c.service.store.Scan(ctx)
	if err != nil {
		listErr = mapStoreError(err)
		return nil, listErr
	}

	visible := make([]*Event, 0, len(all))
	for _, ev := range all {
		if c.visible(ev) {
			visible = append(visible, ev)
		}
	}
	resultCount = len(visible)

	return visible, nil
}

// visible applies the configured visibility policy. Deployments that want
// admins to see everything compose their role check into the predicate.
func (c *userCalendar) visible(ev *store.Event) bool {
	return c.service.opts.visibility(c.principal, ev)
}

// mutateFunc applies a change to the loaded event. It returns changed=false
// to signal a no-op, which commits nothing and bumps nothing.
type mutateFunc func(ev *store.Event) (changed bool, err error)

// mutate runs the load-modify-store cycle for one event under optimistic
// concurrency. A store.ErrConflict from Update means another writer committed
// between our read and write; the whole cycle is replayed against the fresh
// state, up to the configured retry budget.
//
// On success the sequence has been bumped exactly once iff fn reported a
// change.
func (c *userCalendar) mutate(ctx context.Context, uid, op string, fn mutateFunc) (*Event, bool, error) {
	if err := c.checkAccess(); err != nil {
		return nil, false, err
	}
	if uid == "" {
		return nil, false, ErrInvalidID
	}

	// OTel tracing
	ctx, endSpan := c.service.otel.startSpan(ctx, "calendar."+op,
		attribute.String("principal_id", c.principal.ID),
		attribute.String("uid", uid),
	)
	start := time.Now()
	var mutErr error
	defer func() {
		endSpan(mutErr)
		c.service.otel.recordMutate(ctx, time.Since(start), op, mutErr)
	}()

	cfg := retry.Config{
		MaxRetries: c.service.opts.conflictRetries,
		IsRetryable: func(err error) bool {
			return errors.Is(err, store.ErrConflict)
		},
	}

	var result *store.Event
	var changed bool
	err := retry.Do(ctx, cfg, func(ctx context.Context) error {
		ev, err := c.service.store.Get(ctx, uid)
		if err != nil {
			return err
		}

		expected := ev.Sequence
		ch, err := fn(ev)
		if err != nil {
			return err
		}
		if !ch {
			result, changed = ev, false
			return nil
		}

		ev.Sequence = expected + 1
		ev.UpdatedAt = time.Now().UTC()
		if err := c.service.store.Update(ctx, ev, expected); err != nil {
			return err
		}
		result, changed = ev, true
		return nil
	})
	if err != nil {
		mutErr = mapStoreError(err)
		return nil, false, mutErr
	}

	// Cancellation has its own event; everything else announces as an update.
	if changed && op != "cancel" {
		if err := c.publishUpdated(ctx, result, op); err != nil {
			mutErr = err
			return result, true, err
		}
	}

	return result, changed, nil
}

// UpdateDetails applies the non-nil fields of update to the event.
// An update that changes nothing leaves the sequence untouched.
func (c *userCalendar) UpdateDetails(ctx context.Context, uid string, update EventUpdate) (*Event, error) {
	if err := c.checkAccess(); err != nil {
		return nil, err
	}
	if err := c.authorize(CapUpdate); err != nil {
		return nil, err
	}

	limits := c.service.opts.getLimits()
	if update.Summary != nil {
		if err := ValidateSummary(*update.Summary, limits); err != nil {
			return nil, err
		}
	}
	if update.Description != nil {
		if err := ValidateDescription(*update.Description, limits); err != nil {
			return nil, err
		}
	}
	if update.Location != nil {
		if err := ValidateLocation(*update.Location, limits); err != nil {
			return nil, err
		}
	}

	ev, _, err := c.mutate(ctx, uid, "update", func(ev *store.Event) (bool, error) {
		if ev.IsTerminal() {
			return false, ErrEventTerminal
		}

		startTime, endTime := ev.StartTime, ev.EndTime
		if update.StartTime != nil {
			startTime = *update.StartTime
		}
		if update.EndTime != nil {
			endTime = *update.EndTime
		}

		changed := false
		if update.Summary != nil && ev.Summary != *update.Summary {
			ev.Summary = *update.Summary
			changed = true
		}
		if update.Description != nil && ev.Description != *update.Description {
			ev.Description = *update.Description
			changed = true
		}
		if update.Location != nil && ev.Location != *update.Location {
			ev.Location = *update.Location
			changed = true
		}
		if startTime != ev.StartTime {
			ev.StartTime = startTime
			changed = true
		}
		if endTime != ev.EndTime {
			ev.EndTime = endTime
			changed = true
		}
		return changed, nil
	})
	return ev, err
}

// AddAttendees adds attendees to the event, replacing existing entries with
// the same email. The first attendee ever added moves the event from publish
// to request within the same revision.
func (c *userCalendar) AddAttendees(ctx context.Context, uid string, attendees ...Attendee) (*Event, error) {
	if err := c.checkAccess(); err != nil {
		return nil, err
	}
	if err := c.authorize(CapUpdate); err != nil {
		return nil, err
	}

	limits := c.service.opts.getLimits()
	if err := ValidateAttendees(attendees, limits); err != nil {
		return nil, err
	}

	ev, _, err := c.mutate(ctx, uid, "add_attendees", func(ev *store.Event) (bool, error) {
		if ev.IsTerminal() {
			return false, ErrEventTerminal
		}

		merged, changed := mergeAttendees(ev.Attendees, attendees)
		if !changed {
			return false, nil
		}
		if len(merged) > limits.MaxAttendeeCount {
			return false, fmt.Errorf("%w: %d attendees exceeds max %d",
				ErrTooManyAttendees, len(merged), limits.MaxAttendeeCount)
		}

		ev.Attendees = merged
		// First attendee turns the announcement into an invitation.
		if ev.Method == store.MethodPublish && len(merged) > 0 {
			ev.Method = store.MethodRequest
		}
		return true, nil
	})
	return ev, err
}

// RemoveAttendees removes attendees by email. Unknown emails are ignored;
// removing the last attendee does not revert the method to publish.
func (c *userCalendar) RemoveAttendees(ctx context.Context, uid string, emails ...string) (*Event, error) {
	if err := c.checkAccess(); err != nil {
		return nil, err
	}
	if err := c.authorize(CapUpdate); err != nil {
		return nil, err
	}

	ev, _, err := c.mutate(ctx, uid, "remove_attendees", func(ev *store.Event) (bool, error) {
		if ev.IsTerminal() {
			return false, ErrEventTerminal
		}

		remaining, changed := removeAttendees(ev.Attendees, emails)
		if !changed {
			return false, nil
		}
		ev.Attendees = remaining
		return true, nil
	})
	return ev, err
}

// Cancel moves the event to its terminal cancelled state.
// Cancelling an already-cancelled event is a no-op: no bump, no error.
func (c *userCalendar) Cancel(ctx context.Context, uid string) (*Event, error) {
	if err := c.checkAccess(); err != nil {
		return nil, err
	}
	if err := c.authorize(CapCancel); err != nil {
		return nil, err
	}

	ev, changed, err := c.mutate(ctx, uid, "cancel", func(ev *store.Event) (bool, error) {
		if ev.IsTerminal() {
			return false, nil
		}
		ev.Method = store.MethodCancel
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		if err := c.publishCanceled(ctx, ev); err != nil {
			return ev, err
		}
	}

	return ev, nil
}

// Delete permanently removes the event. Only the organizer or an admin may
// delete; the UID is never reused.
func (c *userCalendar) Delete(ctx context.Context, uid string) error {
	if err := c.checkAccess(); err != nil {
		return err
	}

	// OTel tracing
	ctx, endSpan := c.service.otel.startSpan(ctx, "calendar.delete",
		attribute.String("principal_id", c.principal.ID),
		attribute.String("uid", uid),
	)
	start := time.Now()
	var delErr error
	defer func() {
		endSpan(delErr)
		c.service.otel.recordDelete(ctx, time.Since(start), delErr)
	}()

	ev, err := c.service.store.Get(ctx, uid)
	if err != nil {
		delErr = mapStoreError(err)
		return delErr
	}

	if !c.canDelete(ev) {
		delErr = ErrUnauthorized
		return ErrUnauthorized
	}

	if err := c.service.store.Delete(ctx, uid); err != nil {
		delErr = mapStoreError(err)
		return delErr
	}

	if err := c.publishDeleted(ctx, uid); err != nil {
		delErr = err
		return err
	}

	return nil
}

// canDelete implements the deletion policy: admins always, otherwise the
// organizer with delete capability.
func (c *userCalendar) canDelete(ev *store.Event) bool {
	if c.service.opts.authorizer.Authorize(c.principal, CapAdmin) {
		return true
	}
	if ev.Organizer.Key() != c.principal.Mailbox.Key() {
		return false
	}
	return c.service.opts.authorizer.Authorize(c.principal, CapDelete)
}

// Lifecycle event publication helpers. Failures are logged by default and
// only surface to callers when eventErrorsFatal is set.

func (c *userCalendar) publishCreated(ctx context.Context, ev *store.Event) error {
	err := c.service.events.EventCreated.Publish(ctx, EventCreatedEvent{
		UID:            ev.UID,
		OrganizerEmail: ev.Organizer.Key(),
		Summary:        ev.Summary,
		CreatedAt:      ev.CreatedAt,
	})
	return c.handlePublishError("EventCreated", ev.UID, err)
}

func (c *userCalendar) publishUpdated(ctx context.Context, ev *store.Event, op string) error {
	err := c.service.events.EventUpdated.Publish(ctx, EventUpdatedEvent{
		UID:       ev.UID,
		Sequence:  ev.Sequence,
		Operation: op,
		UpdatedAt: ev.UpdatedAt,
	})
	return c.handlePublishError("EventUpdated", ev.UID, err)
}

func (c *userCalendar) publishCanceled(ctx context.Context, ev *store.Event) error {
	err := c.service.events.EventCanceled.Publish(ctx, EventCanceledEvent{
		UID:        ev.UID,
		Sequence:   ev.Sequence,
		CanceledAt: ev.UpdatedAt,
	})
	return c.handlePublishError("EventCanceled", ev.UID, err)
}

func (c *userCalendar) publishDeleted(ctx context.Context, uid string) error {
	err := c.service.events.EventDeleted.Publish(ctx, EventDeletedEvent{
		UID:       uid,
		DeletedBy: c.principal.ID,
		DeletedAt: time.Now().UTC(),
	})
	return c.handlePublishError("EventDeleted", uid, err)
}

func (c *userCalendar) handlePublishError(name, uid string, err error) error {
	if err == nil {
		return nil
	}
	if c.service.opts.eventErrorsFatal {
		return &EventPublishError{Event: name, UID: uid, Err: err}
	}
	c.service.opts.safeEventPublishFailure(name, err)
	return nil
}
