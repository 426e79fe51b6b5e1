package calendar

import (
	"log/slog"
	"time"

	eventtransport "github.com/rbaliyan/event/v3/transport"

	"github.com/rbaliyan/calendar/store"
	"github.com/rbaliyan/calendar/transport"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Default configuration values.
const (
	DefaultShutdownTimeout = 30 * time.Second // default graceful shutdown timeout
	MinShutdownTimeout     = 1 * time.Second  // minimum shutdown timeout

	// Default event limits
	DefaultMaxSummaryLength   = 998             // RFC 5322 max line length
	DefaultMaxDescriptionSize = 1 * 1024 * 1024 // 1 MB
	DefaultMaxLocationLength  = 1024
	DefaultMaxAttendeeCount   = 200 // max attendees per event

	// Concurrency limits
	DefaultMaxConcurrentDeliveries = 10 // max parallel deliveries per dispatch

	// Dispatch
	DefaultDeliveryTimeout = 30 * time.Second // per-recipient delivery timeout

	// Revision conflict handling
	DefaultConflictRetries = 3 // internal retries before surfacing ErrConflict
)

// VisibilityFunc decides whether a principal may see an event in listings.
type VisibilityFunc func(p Principal, ev *store.Event) bool

// defaultVisibility lets a principal see events it organizes or attends.
func defaultVisibility(p Principal, ev *store.Event) bool {
	key := p.Mailbox.Key()
	if ev.Organizer.Key() == key {
		return true
	}
	_, ok := ev.Attendee(key)
	return ok
}

// options holds calendar configuration.
type options struct {
	store     store.Store
	transport transport.Transport
	logger    *slog.Logger

	plugins []Plugin

	authorizer Authorizer
	visibility VisibilityFunc

	// Event limits
	maxSummaryLength   int
	maxDescriptionSize int
	maxLocationLength  int
	maxAttendeeCount   int

	// Revision conflict handling
	conflictRetries int

	// Dispatch
	maxConcurrentDeliveries int
	deliveryTimeout         time.Duration

	// iCalendar product identifier for rendered invites
	prodID string

	// Shutdown
	shutdownTimeout time.Duration

	// OpenTelemetry
	tracingEnabled bool
	metricsEnabled bool
	serviceName    string
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider

	// Event handling
	eventErrorsFatal      bool                     // If true, event publishing failures cause operation to fail
	eventTransport        eventtransport.Transport // Event transport (optional, uses noop if nil)
	redisClient           redis.UniversalClient    // Redis client for event transport (optional, uses noop if nil)
	onEventPublishFailure EventPublishFailureFunc  // Callback for event publish failures (always set)
}

// EventPublishFailureFunc is called when a lifecycle event fails to publish.
// The eventName is the name of the event (e.g., "EventCreated"), and err is
// the publish error.
type EventPublishFailureFunc func(eventName string, err error)

// safeEventPublishFailure calls the event failure callback with panic recovery.
// If the callback panics, the panic is logged and suppressed to prevent
// cascading failures.
func (o *options) safeEventPublishFailure(eventName string, err error) {
	if o.onEventPublishFailure == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("panic in event publish failure handler",
				"event", eventName,
				"original_error", err,
				"panic", r,
			)
		}
	}()
	o.onEventPublishFailure(eventName, err)
}

// newOptions creates options with defaults and applies provided options.
func newOptions(opts ...Option) *options {
	o := &options{
		logger:     slog.Default(),
		authorizer: AllowAll(),
		visibility: defaultVisibility,
		// Event limits defaults
		maxSummaryLength:   DefaultMaxSummaryLength,
		maxDescriptionSize: DefaultMaxDescriptionSize,
		maxLocationLength:  DefaultMaxLocationLength,
		maxAttendeeCount:   DefaultMaxAttendeeCount,
		// Conflict handling defaults
		conflictRetries: DefaultConflictRetries,
		// Dispatch defaults
		maxConcurrentDeliveries: DefaultMaxConcurrentDeliveries,
		deliveryTimeout:         DefaultDeliveryTimeout,
		prodID:                  DefaultProdID,
		// Shutdown defaults
		shutdownTimeout: DefaultShutdownTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}

	// Ensure event failure callback is always set
	if o.onEventPublishFailure == nil {
		o.onEventPublishFailure = func(eventName string, err error) {
			o.logger.Error("failed to publish event", "event", eventName, "error", err)
		}
	}

	return o
}

// Option configures a calendar service.
type Option func(*options)

// --- Core Options ---

// WithStore sets the storage backend (required).
func WithStore(s store.Store) Option {
	return func(o *options) {
		if s != nil {
			o.store = s
		}
	}
}

// WithTransport sets the mail transport used for invitation dispatch.
// Without a transport, SendInvitation returns ErrTransportRequired.
func WithTransport(t transport.Transport) Option {
	return func(o *options) {
		if t != nil {
			o.transport = t
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// --- Access Options ---

// WithAuthorizer sets the authorization policy for calendar operations.
// Default is AllowAll.
func WithAuthorizer(a Authorizer) Option {
	return func(o *options) {
		if a != nil {
			o.authorizer = a
		}
	}
}

// WithVisibility sets the listing visibility predicate.
// Default visibility shows a principal the events it organizes or attends.
func WithVisibility(fn VisibilityFunc) Option {
	return func(o *options) {
		if fn != nil {
			o.visibility = fn
		}
	}
}

// --- Plugin/Extension Options ---

// WithPlugin registers a plugin with the calendar service.
// Plugins can hook into invitation dispatch.
// Multiple plugins can be registered by calling this option multiple times.
func WithPlugin(p Plugin) Option {
	return func(o *options) {
		if p != nil {
			o.plugins = append(o.plugins, p)
		}
	}
}

// WithPlugins registers multiple plugins at once.
func WithPlugins(plugins ...Plugin) Option {
	return func(o *options) {
		for _, p := range plugins {
			if p != nil {
				o.plugins = append(o.plugins, p)
			}
		}
	}
}

// --- OTel Options ---

// WithTracing enables or disables OpenTelemetry tracing.
// When enabled, spans are created for all calendar operations.
// Default is disabled.
func WithTracing(enabled bool) Option {
	return func(o *options) {
		o.tracingEnabled = enabled
	}
}

// WithMetrics enables or disables OpenTelemetry metrics.
// When enabled, metrics are collected for all calendar operations.
// Default is disabled.
func WithMetrics(enabled bool) Option {
	return func(o *options) {
		o.metricsEnabled = enabled
	}
}

// WithOTel enables both OpenTelemetry tracing and metrics.
// This is a convenience function equivalent to calling
// WithTracing(true) and WithMetrics(true).
func WithOTel(enabled bool) Option {
	return func(o *options) {
		o.tracingEnabled = enabled
		o.metricsEnabled = enabled
	}
}

// WithServiceName sets the service name for OpenTelemetry telemetry.
// Default is "calendar".
func WithServiceName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.serviceName = name
		}
	}
}

// WithTracerProvider sets a custom OpenTelemetry tracer provider.
// Default uses the global tracer provider from otel.GetTracerProvider().
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		if tp != nil {
			o.tracerProvider = tp
		}
	}
}

// WithMeterProvider sets a custom OpenTelemetry meter provider.
// Default uses the global meter provider from otel.GetMeterProvider().
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) {
		if mp != nil {
			o.meterProvider = mp
		}
	}
}

// --- Event Limit Options ---

// WithMaxSummaryLength sets the maximum summary length in bytes.
// Default is 998 (RFC 5322 max line length).
func WithMaxSummaryLength(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxSummaryLength = n
		}
	}
}

// WithMaxDescriptionSize sets the maximum description size in bytes.
// Default is 1 MB.
func WithMaxDescriptionSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxDescriptionSize = n
		}
	}
}

// WithMaxLocationLength sets the maximum location length in bytes.
// Default is 1024.
func WithMaxLocationLength(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxLocationLength = n
		}
	}
}

// WithMaxAttendees sets the maximum number of attendees per event.
// Default is 200.
func WithMaxAttendees(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxAttendeeCount = n
		}
	}
}

// --- Conflict Options ---

// WithConflictRetries sets how many times a mutation is internally replayed
// after losing a revision race before ErrConflict is surfaced.
// Default is 3. Zero disables retries.
func WithConflictRetries(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.conflictRetries = n
		}
	}
}

// --- Dispatch Options ---

// WithMaxConcurrentDeliveries sets the maximum number of parallel deliveries
// during one SendInvitation fan-out.
// Default is 10.
func WithMaxConcurrentDeliveries(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxConcurrentDeliveries = n
		}
	}
}

// WithDeliveryTimeout sets the per-recipient delivery timeout.
// Default is 30 seconds.
func WithDeliveryTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.deliveryTimeout = d
		}
	}
}

// WithProdID sets the PRODID property stamped into rendered invites.
func WithProdID(id string) Option {
	return func(o *options) {
		if id != "" {
			o.prodID = id
		}
	}
}

// WithShutdownTimeout sets the maximum time to wait for in-flight operations
// during graceful shutdown. When Close() is called, the service waits up to
// this duration for ongoing dispatch operations to complete.
// Default is 30 seconds. Minimum is 1 second.
func WithShutdownTimeout(d time.Duration) Option {
	return func(o *options) {
		if d >= MinShutdownTimeout {
			o.shutdownTimeout = d
		}
	}
}

// --- Event Options ---

// WithEventErrorsFatal configures whether event publishing failures should
// cause the operation to fail. By default, event failures are logged but
// the operation succeeds (the mutation is still committed).
//
// Set to true if your application requires guaranteed event delivery,
// for example when events drive critical downstream processes.
// Set to false (default) for fire-and-forget event publishing.
func WithEventErrorsFatal(fatal bool) Option {
	return func(o *options) {
		o.eventErrorsFatal = fatal
	}
}

// WithEventTransport sets the event transport for publishing and subscribing.
// When provided, events are published via the given transport for reliable
// delivery. If not provided, a noop transport is used (events are silently
// dropped).
func WithEventTransport(t eventtransport.Transport) Option {
	return func(o *options) {
		if t != nil {
			o.eventTransport = t
		}
	}
}

// WithRedisClient sets a Redis client for the event transport.
// When provided, events are published to Redis Streams for reliable delivery.
// If not provided, a noop transport is used (events are silently dropped).
//
// Compatible with *redis.Client, *redis.ClusterClient, and redis.UniversalClient.
func WithRedisClient(client redis.UniversalClient) Option {
	return func(o *options) {
		if client != nil {
			o.redisClient = client
		}
	}
}

// WithEventPublishFailureHandler sets a callback for event publishing failures.
// This callback is invoked whenever an event fails to publish (and
// eventErrorsFatal is false). Use this for custom logging, metrics, or
// alerting on event failures.
//
// By default, failures are logged using the configured logger.
func WithEventPublishFailureHandler(fn EventPublishFailureFunc) Option {
	return func(o *options) {
		if fn != nil {
			o.onEventPublishFailure = fn
		}
	}
}

// getLimits returns the configured event limits.
func (o *options) getLimits() EventLimits {
	return EventLimits{
		MaxSummaryLength:   o.maxSummaryLength,
		MaxDescriptionSize: o.maxDescriptionSize,
		MaxLocationLength:  o.maxLocationLength,
		MaxAttendeeCount:   o.maxAttendeeCount,
	}
}
