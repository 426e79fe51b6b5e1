package calendar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/rbaliyan/event/v3"
	"github.com/rbaliyan/event/v3/transport/noop"
	eventredis "github.com/rbaliyan/event/v3/transport/redis"

	"github.com/rbaliyan/calendar/store"
	"golang.org/x/sync/semaphore"
)

// Type aliases for commonly used store types.
// These allow users to work with the calendar package without importing store directly.
type (
	Event    = store.Event
	Mailbox  = store.Mailbox
	Attendee = store.Attendee
	Method   = store.Method
	Role     = store.Role
)

// Re-exported method constants.
const (
	MethodPublish = store.MethodPublish
	MethodRequest = store.MethodRequest
	MethodCancel  = store.MethodCancel
)

// Re-exported attendee role constants.
const (
	RoleChair            = store.RoleChair
	RoleRequired         = store.RoleRequired
	RoleOptional         = store.RoleOptional
	RoleNotParticipating = store.RoleNotParticipating
)

// ServiceHealth provides health and state information about the service.
type ServiceHealth interface {
	// IsConnected returns true if the service is connected and ready.
	IsConnected() bool
}

// Service manages the calendar system (server-side).
// It handles connections to storage and creates calendar clients.
//
// Composed of:
//   - ServiceHealth: Health and state queries (IsConnected)
type Service interface {
	ServiceHealth

	// Connect establishes connections to storage backends.
	Connect(ctx context.Context) error
	// Close closes all connections.
	Close(ctx context.Context) error
	// Client returns a calendar client for the given principal.
	// The returned client shares the service's connections.
	Client(p Principal) Calendar
	// Events returns per-service event instances for subscribing and publishing.
	// Each service has its own events bound to its own event bus, enabling
	// independent event routing and parallel testing.
	//
	// The events are created and registered with the bus during Connect;
	// Events returns nil until the service has connected.
	Events() *ServiceEvents
}

// EventInput carries the caller-supplied fields for a new event.
// The organizer is always the calling principal's mailbox; a UID is generated
// when left empty.
type EventInput struct {
	UID         string
	Summary     string
	Description string
	Location    string
	StartTime   int64 // milliseconds since epoch
	EndTime     int64 // milliseconds since epoch
}

// EventUpdate carries optional detail changes. Nil fields are left untouched;
// a pointer to the zero value clears the field.
type EventUpdate struct {
	Summary     *string
	Description *string
	Location    *string
	StartTime   *int64 // milliseconds since epoch
	EndTime     *int64 // milliseconds since epoch
}

// EventReader provides event retrieval.
type EventReader interface {
	// Get retrieves an event by UID.
	Get(ctx context.Context, uid string) (*Event, error)
	// List returns events visible to this client's principal, ordered by
	// creation time.
	List(ctx context.Context) ([]*Event, error)
}

// EventWriter provides event mutation.
// Every effective mutation bumps the event's sequence by exactly one;
// no-op calls leave the sequence untouched.
type EventWriter interface {
	// Create creates a new event organized by this client's principal.
	Create(ctx context.Context, input EventInput) (*Event, error)
	// UpdateDetails applies the non-nil fields of update to the event.
	UpdateDetails(ctx context.Context, uid string, update EventUpdate) (*Event, error)
	// AddAttendees adds attendees to the event. Existing attendees are
	// replaced in place; the call is a no-op when nothing changes.
	AddAttendees(ctx context.Context, uid string, attendees ...Attendee) (*Event, error)
	// RemoveAttendees removes attendees by email. Unknown emails are ignored.
	RemoveAttendees(ctx context.Context, uid string, emails ...string) (*Event, error)
	// Cancel moves the event to its terminal cancelled state.
	// Cancelling an already-cancelled event is a no-op.
	Cancel(ctx context.Context, uid string) (*Event, error)
	// Delete permanently removes the event. Only the organizer or an admin
	// may delete.
	Delete(ctx context.Context, uid string) error
}

// InvitationSender provides invitation dispatch.
type InvitationSender interface {
	// SendInvitation renders the event as an iCalendar invite and fans it
	// out to every attendee. Per-recipient failures are reported in the
	// result, not as an error: dispatch never fails fast.
	SendInvitation(ctx context.Context, uid string) (*DispatchResult, error)
}

// Calendar provides event management functionality for a principal.
// This is the main interface for calendar operations.
//
// Composed of focused client interfaces:
//   - EventReader: Retrieval (Get, List)
//   - EventWriter: Mutations (Create, UpdateDetails, attendees, Cancel, Delete)
//   - InvitationSender: Invitation dispatch (SendInvitation)
type Calendar interface {
	// Principal returns the principal this client acts as.
	Principal() Principal
	EventReader
	EventWriter
	InvitationSender
}

// Connection states for the service.
const (
	stateDisconnected int32 = 0
	stateConnecting   int32 = 1
	stateConnected    int32 = 2
)

// service is the default implementation of Service.
type service struct {
	store       store.Store
	logger      *slog.Logger
	opts        *options
	state       int32 // stateDisconnected, stateConnecting, or stateConnected
	plugins     *pluginRegistry
	otel        *otelInstrumentation
	dispatchSem *semaphore.Weighted // Limits concurrent dispatches to prevent resource exhaustion
	eventBus    *event.Bus          // Event bus for publishing events
	events      *ServiceEvents      // Per-service event instances
}

// NewService creates a new calendar service.
// Call Connect() to establish connections to backends.
func NewService(opts ...Option) (Service, error) {
	o := newOptions(opts...)

	if o.store == nil {
		return nil, ErrStoreRequired
	}

	// Initialize plugin registry
	plugins := newPluginRegistry(o.logger)
	for _, p := range o.plugins {
		plugins.register(p)
	}

	// Initialize OTel instrumentation
	otelInstr, err := newOtelInstrumentation(o)
	if err != nil {
		return nil, fmt.Errorf("init otel: %w", err)
	}

	return &service{
		store:       o.store,
		logger:      o.logger,
		opts:        o,
		plugins:     plugins,
		otel:        otelInstr,
		dispatchSem: semaphore.NewWeighted(int64(o.maxConcurrentDeliveries)),
	}, nil
}

// Events returns per-service event instances for subscribing and publishing.
// It returns nil before Connect: the instances only exist once the service's
// event bus does.
func (s *service) Events() *ServiceEvents {
	return s.events
}

// IsConnected returns true if the service is connected and ready.
func (s *service) IsConnected() bool {
	return atomic.LoadInt32(&s.state) == stateConnected
}

// Connect establishes connections to storage backends.
func (s *service) Connect(ctx context.Context) error {
	// Use three-state to prevent Client() from seeing partial initialization
	// stateDisconnected -> stateConnecting -> stateConnected
	if !atomic.CompareAndSwapInt32(&s.state, stateDisconnected, stateConnecting) {
		return ErrAlreadyConnected
	}

	// Reset to disconnected on failure, set to connected on success
	success := false
	defer func() {
		if success {
			atomic.StoreInt32(&s.state, stateConnected)
		} else {
			atomic.StoreInt32(&s.state, stateDisconnected)
		}
	}()

	if err := s.store.Connect(ctx); err != nil {
		return fmt.Errorf("connect store: %w", err)
	}

	// Initialize event bus with appropriate transport
	if err := s.initEventBus(ctx); err != nil {
		s.store.Close(ctx)
		return fmt.Errorf("init event bus: %w", err)
	}

	// Initialize plugins
	if err := s.plugins.initAll(ctx); err != nil {
		s.eventBus.Close(ctx)
		s.store.Close(ctx)
		return fmt.Errorf("init plugins: %w", err)
	}

	success = true
	s.logger.Info("calendar service connected")
	return nil
}

// busCounter generates unique suffixes for event bus names.
var busCounter int64

// initEventBus initializes the event bus for this service.
// Each service creates its own bus with its own per-service events.
func (s *service) initEventBus(ctx context.Context) error {
	serviceName := s.opts.serviceName
	if serviceName == "" {
		serviceName = "calendar"
	}
	// Each bus needs a unique name, so append a counter suffix
	busName := fmt.Sprintf("%s-%d", serviceName, atomic.AddInt64(&busCounter, 1))

	var bus *event.Bus
	var err error

	switch {
	case s.opts.eventTransport != nil:
		s.logger.Info("initializing event bus with custom transport")
		bus, err = event.NewBus(busName, event.WithTransport(s.opts.eventTransport))
	case s.opts.redisClient != nil:
		s.logger.Info("initializing event bus with Redis transport")
		t, transportErr := eventredis.New(s.opts.redisClient)
		if transportErr != nil {
			return fmt.Errorf("create redis transport: %w", transportErr)
		}
		bus, err = event.NewBus(busName, event.WithTransport(t))
	default:
		s.logger.Debug("initializing event bus with noop transport")
		bus, err = event.NewBus(busName, event.WithTransport(noop.New()))
	}

	if err != nil {
		return fmt.Errorf("create event bus: %w", err)
	}
	s.eventBus = bus

	// Create and register per-service events (unique per service instance).
	s.events = newServiceEvents(busName)
	if err := registerServiceEvents(ctx, bus, s.events); err != nil {
		bus.Close(ctx)
		return fmt.Errorf("register service events: %w", err)
	}

	return nil
}

// Close closes connections to storage backends.
func (s *service) Close(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.state, stateConnected, stateDisconnected) {
		return nil
	}

	var errs []error

	// Wait for in-flight dispatch operations to complete (graceful shutdown).
	// After setting state to disconnected, no new dispatches can start because
	// checkAccess fails. Acquiring all semaphore slots waits for existing
	// operations to finish.
	s.logger.Info("waiting for in-flight operations to complete...", "timeout", s.opts.shutdownTimeout)
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, s.opts.shutdownTimeout)
	defer shutdownCancel()
	if err := s.dispatchSem.Acquire(shutdownCtx, int64(s.opts.maxConcurrentDeliveries)); err != nil {
		s.logger.Warn("timeout waiting for in-flight operations, proceeding with shutdown",
			"error", err)
		errs = append(errs, fmt.Errorf("graceful shutdown timeout: %w", err))
	} else {
		s.dispatchSem.Release(int64(s.opts.maxConcurrentDeliveries))
		s.logger.Info("all in-flight operations completed")
	}

	// Close plugins first (reverse order of init)
	if err := s.plugins.closeAll(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close plugins: %w", err))
	}

	// Close event bus only if using a real transport.
	// For noop transport, the bus doesn't hold resources.
	if s.eventBus != nil && (s.opts.eventTransport != nil || s.opts.redisClient != nil) {
		if err := s.eventBus.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close event bus: %w", err))
		}
	}

	if err := s.store.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}

	return errors.Join(errs...)
}

// Client returns a calendar client for the given principal.
func (s *service) Client(p Principal) Calendar {
	return &userCalendar{
		principal:      p,
		service:        s,
		validPrincipal: p.valid(),
	}
}
