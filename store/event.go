package store

import (
	"strings"
	"time"
)

// Method is the calendaring intent tag of an event.
type Method string

// Method constants.
//
// An event starts as an announcement (publish), becomes an invitation the
// moment it gains its first attendee (request), and is voided by cancellation
// (cancel). Cancel is terminal: no content mutation is permitted afterwards.
const (
	MethodPublish Method = "publish"
	MethodRequest Method = "request"
	MethodCancel  Method = "cancel"
)

// Role is an attendee's participation role in one specific event.
type Role string

// Role constants, mirroring the iCalendar participation roles.
const (
	RoleChair            Role = "chair"
	RoleRequired         Role = "required"
	RoleOptional         Role = "optional"
	RoleNotParticipating Role = "notParticipating"
)

// validRoles is the set of accepted attendee roles.
var validRoles = map[Role]bool{
	RoleChair:            true,
	RoleRequired:         true,
	RoleOptional:         true,
	RoleNotParticipating: true,
}

// IsValidRole returns true if r is a known attendee role.
func IsValidRole(r Role) bool {
	return validRoles[r]
}

// Mailbox identifies an attendee or organizer by email address.
// Two mailboxes denote the same person iff their emails compare equal
// case-insensitively. Mailbox values are immutable once constructed;
// replace rather than mutate.
type Mailbox struct {
	Email string `json:"email" db:"email" bson:"email"`
	Name  string `json:"name,omitempty" db:"name" bson:"name,omitempty"`
}

// Key returns the canonical identity key for this mailbox (lowercased email).
func (m Mailbox) Key() string {
	return strings.ToLower(strings.TrimSpace(m.Email))
}

// Attendee is a mailbox plus its role in one specific event.
// Attendee identity for set membership is the mailbox key; the role can only
// change by removing and re-adding the attendee.
type Attendee struct {
	Mailbox Mailbox `json:"mailbox" bson:"mailbox"`
	Role    Role    `json:"role" bson:"role"`
}

// Event is the persisted calendar event record, the aggregate root.
//
// UID is opaque, globally unique and never reused, even after deletion.
// Sequence is a monotonic per-event revision counter: any two snapshots of
// the same UID are totally ordered by it, and a consumer holding an older
// sequence must treat a newer one as authoritative.
type Event struct {
	UID         string     `json:"uid" bson:"_id"`
	Organizer   Mailbox    `json:"organizer" bson:"organizer"`
	Summary     string     `json:"summary" bson:"summary"`
	Description string     `json:"description" bson:"description"`
	Location    string     `json:"location" bson:"location"`
	StartTime   int64      `json:"start_time" bson:"start_time"` // milliseconds since epoch
	EndTime     int64      `json:"end_time" bson:"end_time"`     // milliseconds since epoch
	Method      Method     `json:"method" bson:"method"`
	Sequence    int64      `json:"sequence" bson:"sequence"`
	Attendees   []Attendee `json:"attendees" bson:"attendees"`
	CreatedAt   time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" bson:"updated_at"`
}

// IsTerminal returns true once the event has been cancelled.
// Terminal events reject all further content mutation; only deletion
// and invitation dispatch (to deliver the cancellation) remain valid.
func (e *Event) IsTerminal() bool {
	return e.Method == MethodCancel
}

// Attendee returns the attendee with the given mailbox key, if present.
func (e *Event) Attendee(key string) (Attendee, bool) {
	for _, a := range e.Attendees {
		if a.Mailbox.Key() == key {
			return a, true
		}
	}
	return Attendee{}, false
}

// Clone returns a deep copy of the event.
// Stores hand out clones so callers can never mutate stored state in place.
func (e *Event) Clone() *Event {
	c := *e
	if e.Attendees != nil {
		c.Attendees = make([]Attendee, len(e.Attendees))
		copy(c.Attendees, e.Attendees)
	}
	return &c
}
