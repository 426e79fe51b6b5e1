package calendar

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rbaliyan/calendar/store"
)

// EventLimits holds all event validation limits.
// Used to pass limits to validation functions.
type EventLimits struct {
	MaxSummaryLength   int
	MaxDescriptionSize int
	MaxLocationLength  int
	MaxAttendeeCount   int
}

// DefaultLimits returns the default event limits.
func DefaultLimits() EventLimits {
	return EventLimits{
		MaxSummaryLength:   DefaultMaxSummaryLength,
		MaxDescriptionSize: DefaultMaxDescriptionSize,
		MaxLocationLength:  DefaultMaxLocationLength,
		MaxAttendeeCount:   DefaultMaxAttendeeCount,
	}
}

// ValidateEmail validates an email address.
func ValidateEmail(email string) error {
	trimmed := strings.TrimSpace(email)
	if trimmed == "" {
		return fmt.Errorf("%w: empty address", ErrInvalidEmail)
	}
	if _, err := mail.ParseAddress(trimmed); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidEmail, trimmed)
	}
	return nil
}

// ValidateMailbox validates a mailbox's email and display name.
func ValidateMailbox(m store.Mailbox) error {
	if err := ValidateEmail(m.Email); err != nil {
		return err
	}
	return validateText("name", m.Name)
}

// ValidateSummary validates an event summary against configurable limits.
func ValidateSummary(summary string, limits EventLimits) error {
	if len(summary) > limits.MaxSummaryLength {
		return fmt.Errorf("%w: summary length %d exceeds max %d", ErrSummaryTooLong, len(summary), limits.MaxSummaryLength)
	}
	return validateText("summary", summary)
}

// ValidateDescription validates an event description against configurable limits.
func ValidateDescription(description string, limits EventLimits) error {
	if len(description) > limits.MaxDescriptionSize {
		return fmt.Errorf("%w: description size %d exceeds max %d bytes", ErrDescriptionTooLarge, len(description), limits.MaxDescriptionSize)
	}
	if !utf8.ValidString(description) {
		return fmt.Errorf("%w: description contains invalid UTF-8", ErrInvalidContent)
	}
	return nil
}

// ValidateLocation validates an event location against configurable limits.
func ValidateLocation(location string, limits EventLimits) error {
	if len(location) > limits.MaxLocationLength {
		return fmt.Errorf("%w: location length %d exceeds max %d", ErrLocationTooLong, len(location), limits.MaxLocationLength)
	}
	return validateText("location", location)
}

// ValidateAttendees validates an attendee list against configurable limits.
// The count check applies to the list as given; deduplication happens later.
func ValidateAttendees(attendees []store.Attendee, limits EventLimits) error {
	if len(attendees) > limits.MaxAttendeeCount {
		return fmt.Errorf("%w: %d attendees exceeds max %d", ErrTooManyAttendees, len(attendees), limits.MaxAttendeeCount)
	}
	for _, a := range attendees {
		if err := ValidateMailbox(a.Mailbox); err != nil {
			return err
		}
		if !store.IsValidRole(a.Role) {
			return fmt.Errorf("%w: %q for %s", ErrInvalidRole, a.Role, a.Mailbox.Key())
		}
	}
	return nil
}

// validateText rejects invalid UTF-8 and control characters in single-line
// text fields. Tabs and newlines are allowed in descriptions only.
func validateText(field, s string) error {
	if !utf8.ValidString(s) {
		return fmt.Errorf("%w: %s contains invalid UTF-8", ErrInvalidContent, field)
	}
	for _, r := range s {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: %s contains control character U+%04X", ErrInvalidContent, field, r)
		}
	}
	return nil
}
