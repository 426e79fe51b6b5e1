package calendar

import (
	"context"
	"fmt"
	"time"

	"github.com/rbaliyan/event/v3"
)

// Event names for calendar lifecycle events.
const (
	EventNameEventCreated   = "calendar.event.created"
	EventNameEventUpdated   = "calendar.event.updated"
	EventNameEventCanceled  = "calendar.event.canceled"
	EventNameEventDeleted   = "calendar.event.deleted"
	EventNameInvitationSent = "calendar.invitation.sent"
)

// EventCreatedEvent is published when a calendar event is created.
type EventCreatedEvent struct {
	UID            string    `json:"uid"`
	OrganizerEmail string    `json:"organizer_email"`
	Summary        string    `json:"summary"`
	CreatedAt      time.Time `json:"created_at"`
}

// EventUpdatedEvent is published after any effective mutation: detail
// changes, attendee set changes, anything that bumped the sequence.
type EventUpdatedEvent struct {
	UID       string    `json:"uid"`
	Sequence  int64     `json:"sequence"`
	Operation string    `json:"operation"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EventCanceledEvent is published when a calendar event is cancelled.
// It is published once: replaying Cancel on an already-cancelled event is a
// no-op and does not emit.
type EventCanceledEvent struct {
	UID        string    `json:"uid"`
	Sequence   int64     `json:"sequence"`
	CanceledAt time.Time `json:"canceled_at"`
}

// EventDeletedEvent is published when a calendar event is permanently deleted.
type EventDeletedEvent struct {
	UID       string    `json:"uid"`
	DeletedBy string    `json:"deleted_by"`
	DeletedAt time.Time `json:"deleted_at"`
}

// InvitationSentEvent is published after an invitation fan-out completes,
// including partially failed ones.
type InvitationSentEvent struct {
	UID       string    `json:"uid"`
	Sequence  int64     `json:"sequence"`
	Attempted int       `json:"attempted"`
	Failed    int       `json:"failed"`
	SentAt    time.Time `json:"sent_at"`
}

// ServiceEvents provides access to per-service event instances.
// Each service creates its own events bound to its own event bus,
// enabling independent event routing and parallel testing.
//
// Subscribe to events:
//
//	svc.Events().EventCreated.Subscribe(ctx, handler)
//	svc.Events().EventCanceled.Subscribe(ctx, handler)
//	svc.Events().InvitationSent.Subscribe(ctx, handler)
type ServiceEvents struct {
	// EventCreated is published when a calendar event is created.
	EventCreated event.Event[EventCreatedEvent]

	// EventUpdated is published after any effective mutation.
	EventUpdated event.Event[EventUpdatedEvent]

	// EventCanceled is published when a calendar event is cancelled.
	EventCanceled event.Event[EventCanceledEvent]

	// EventDeleted is published when a calendar event is permanently deleted.
	EventDeleted event.Event[EventDeletedEvent]

	// InvitationSent is published after an invitation fan-out completes.
	InvitationSent event.Event[InvitationSentEvent]
}

// newServiceEvents creates per-service event instances with a unique name prefix.
func newServiceEvents(namePrefix string) *ServiceEvents {
	return &ServiceEvents{
		EventCreated:   event.New[EventCreatedEvent](namePrefix + "." + EventNameEventCreated),
		EventUpdated:   event.New[EventUpdatedEvent](namePrefix + "." + EventNameEventUpdated),
		EventCanceled:  event.New[EventCanceledEvent](namePrefix + "." + EventNameEventCanceled),
		EventDeleted:   event.New[EventDeletedEvent](namePrefix + "." + EventNameEventDeleted),
		InvitationSent: event.New[InvitationSentEvent](namePrefix + "." + EventNameInvitationSent),
	}
}

// registerServiceEvents registers per-service events with the given bus.
func registerServiceEvents(ctx context.Context, bus *event.Bus, events *ServiceEvents) error {
	if err := event.Register(ctx, bus, events.EventCreated); err != nil {
		return fmt.Errorf("register EventCreated: %w", err)
	}
	if err := event.Register(ctx, bus, events.EventUpdated); err != nil {
		return fmt.Errorf("register EventUpdated: %w", err)
	}
	if err := event.Register(ctx, bus, events.EventCanceled); err != nil {
		return fmt.Errorf("register EventCanceled: %w", err)
	}
	if err := event.Register(ctx, bus, events.EventDeleted); err != nil {
		return fmt.Errorf("register EventDeleted: %w", err)
	}
	if err := event.Register(ctx, bus, events.InvitationSent); err != nil {
		return fmt.Errorf("register InvitationSent: %w", err)
	}
	return nil
}
