// Package calendar provides an iCalendar-style event management library for Go.
//
// It supports creating events, managing attendee lists, cancelling, and
// dispatching invitations over a pluggable mail transport. Every effective
// mutation bumps the event's sequence number exactly once, following the
// iCalendar SEQUENCE convention, so recipients can order revisions of the
// same event. All functionality is exposed via interfaces, with pluggable
// storage backends (MongoDB, PostgreSQL, in-memory).
//
// # Basic Usage
//
//	// Create in-memory store for testing
//	st := memory.New()
//
//	// Create calendar service
//	svc, err := calendar.NewService(
//	    calendar.WithStore(st),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Connect initializes indexes/schema
//	if err := svc.Connect(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer svc.Close(ctx)
//
//	// Get a calendar client for a principal
//	cal := svc.Client(calendar.Principal{
//	    ID:      "user123",
//	    Mailbox: store.Mailbox{Email: "alice@example.com", Name: "Alice"},
//	})
//
//	// Create an event
//	ev, err := cal.Create(ctx, calendar.EventInput{
//	    Summary:   "Planning",
//	    StartTime: start.UnixMilli(),
//	    EndTime:   end.UnixMilli(),
//	})
//
// # Calendar Operations
//
//   - Create: Create a new event (method starts as publish)
//   - Get/List: Retrieve events, filtered by the visibility policy
//   - UpdateDetails: Change summary, description, location, or times
//   - AddAttendees/RemoveAttendees: Manage the attendee set idempotently
//   - Cancel: Move the event to its terminal cancelled state
//   - Delete: Remove the event permanently (organizer or admin only)
//   - SendInvitation: Render and fan out iCalendar invites to attendees
//
// # Storage Backends
//
// The store package provides implementations for:
//   - MongoDB (store/mongo) - accepts *mongo.Client
//   - PostgreSQL (store/postgres) - accepts *sqlx.DB or *sql.DB
//   - In-memory (store/memory) - for testing
//
// # Events
//
// Calendar provides typed events for lifecycle notifications. Events use the
// github.com/rbaliyan/event/v3 library which supports multiple transports
// (Redis Streams, NATS, Kafka, in-memory channel).
//
// To enable events, pass WithRedisClient or WithEventTransport when creating
// the service:
//
//	svc, err := calendar.NewService(
//	    calendar.WithStore(st),
//	    calendar.WithRedisClient(redisClient),
//	)
//
// Events are automatically registered during Connect(). Access per-service
// events via the Events() method:
//
//	events := svc.Events()
//	events.EventCreated.Subscribe(ctx, handler)
//	events.EventCanceled.Subscribe(ctx, handler)
//	events.InvitationSent.Subscribe(ctx, handler)
package calendar
