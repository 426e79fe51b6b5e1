package calendar

import (
	"errors"
	"fmt"

	"github.com/rbaliyan/calendar/store"
)

// Sentinel errors for the calendar package.
// Use errors.Is() to check for these errors.
//
// Errors that have a store-level counterpart wrap it, so errors.Is against
// the calendar sentinel also matches an error chain built from the store
// sentinel.
var (
	// ErrNotFound is returned when an event cannot be found.
	// Wraps store.ErrNotFound for consistent error checking.
	ErrNotFound = fmt.Errorf("calendar: %w", store.ErrNotFound)

	// ErrUnauthorized is returned when the caller lacks permission for an operation.
	ErrUnauthorized = errors.New("calendar: unauthorized")

	// ErrConflict is returned when a mutation lost its revision race even
	// after internal retries. Wraps store.ErrConflict.
	ErrConflict = fmt.Errorf("calendar: %w", store.ErrConflict)

	// ErrEventTerminal is returned when a content mutation targets a
	// cancelled event.
	ErrEventTerminal = errors.New("calendar: event is cancelled")

	// ErrStoreRequired is returned when no store is configured.
	ErrStoreRequired = errors.New("calendar: store is required")

	// ErrTransportRequired is returned when dispatch is attempted without a
	// configured transport.
	ErrTransportRequired = errors.New("calendar: transport is required")

	// ErrNotConnected is returned when operations are attempted before Connect().
	// Wraps store.ErrNotConnected for consistent error checking.
	ErrNotConnected = fmt.Errorf("calendar: %w", store.ErrNotConnected)

	// ErrAlreadyConnected is returned when Connect() is called twice.
	// Wraps store.ErrAlreadyConnected for consistent error checking.
	ErrAlreadyConnected = fmt.Errorf("calendar: %w", store.ErrAlreadyConnected)

	// ErrInvalidID is returned when an invalid event UID is provided.
	// Wraps store.ErrInvalidID for consistent error checking.
	ErrInvalidID = fmt.Errorf("calendar: %w", store.ErrInvalidID)

	// ErrDuplicateID is returned when creating an event whose UID already exists.
	// Wraps store.ErrDuplicateID for consistent error checking.
	ErrDuplicateID = fmt.Errorf("calendar: %w", store.ErrDuplicateID)

	// ErrInvalidEvent is returned for event validation failures.
	ErrInvalidEvent = errors.New("calendar: invalid event")

	// ErrInvalidEmail is returned when a mailbox email is empty or malformed.
	ErrInvalidEmail = errors.New("calendar: invalid email")

	// ErrInvalidRole is returned when an attendee role is not recognized.
	ErrInvalidRole = errors.New("calendar: invalid attendee role")

	// ErrSummaryTooLong is returned when the summary exceeds the maximum length.
	ErrSummaryTooLong = errors.New("calendar: summary too long")

	// ErrDescriptionTooLarge is returned when the description exceeds the maximum size.
	ErrDescriptionTooLarge = errors.New("calendar: description too large")

	// ErrLocationTooLong is returned when the location exceeds the maximum length.
	ErrLocationTooLong = errors.New("calendar: location too long")

	// ErrTooManyAttendees is returned when attendee count exceeds the limit.
	ErrTooManyAttendees = errors.New("calendar: too many attendees")

	// ErrInvalidContent is returned when a text field contains invalid characters.
	ErrInvalidContent = errors.New("calendar: invalid content")

	// ErrInvalidPrincipal is returned when a client principal is unusable.
	ErrInvalidPrincipal = errors.New("calendar: invalid principal")
)

// mapStoreError converts store-level sentinels into calendar-level sentinels.
// Wrapping alone runs the wrong direction for errors.Is, so the translation
// has to be explicit at the boundary.
func mapStoreError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, store.ErrConflict):
		return ErrConflict
	case errors.Is(err, store.ErrDuplicateID):
		return ErrDuplicateID
	case errors.Is(err, store.ErrInvalidID):
		return ErrInvalidID
	case errors.Is(err, store.ErrNotConnected):
		return ErrNotConnected
	default:
		return err
	}
}

// ValidationError provides details about a validation failure.
type ValidationError struct {
	Field   string // The field that failed validation
	Message string // Human-readable error message
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("calendar: validation failed for %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidEvent
}

// EventPublishError is returned when lifecycle event publishing fails but the
// operation itself succeeded. Check the UID field to identify which event
// record the notification was for.
type EventPublishError struct {
	Event string // The event name (e.g., "EventCreated")
	UID   string // The calendar event UID
	Err   error  // The underlying publish error
}

func (e *EventPublishError) Error() string {
	return fmt.Sprintf("calendar: event %s publish failed for %s: %v", e.Event, e.UID, e.Err)
}

func (e *EventPublishError) Unwrap() error {
	return e.Err
}

// IsEventPublishError checks if the error is an event publish error and returns details.
// This is useful when eventErrorsFatal=true but you still need to know the
// underlying operation succeeded.
func IsEventPublishError(err error) (*EventPublishError, bool) {
	var epe *EventPublishError
	if errors.As(err, &epe) {
		return epe, true
	}
	return nil, false
}
