package calendar

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"github.com/emersion/go-ical"

	"github.com/rbaliyan/calendar/store"
)

// DefaultProdID is the PRODID stamped into rendered invites.
const DefaultProdID = "-//rbaliyan//calendar//EN"

// icalMethods maps internal methods to their iCalendar METHOD values.
var icalMethods = map[store.Method]string{
	store.MethodPublish: "PUBLISH",
	store.MethodRequest: "REQUEST",
	store.MethodCancel:  "CANCEL",
}

// icalRoles maps attendee roles to their iCalendar ROLE parameter values.
var icalRoles = map[store.Role]string{
	store.RoleChair:            "CHAIR",
	store.RoleRequired:         "REQ-PARTICIPANT",
	store.RoleOptional:         "OPT-PARTICIPANT",
	store.RoleNotParticipating: "NON-PARTICIPANT",
}

// renderInvite serializes the event as an iCalendar object suitable for a
// text/calendar mail part.
func renderInvite(ev *store.Event, prodID string) ([]byte, error) {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, prodID)
	cal.Props.SetText(ical.PropMethod, icalMethods[ev.Method])

	cal.Children = append(cal.Children, renderEvent(ev))

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, fmt.Errorf("encode invite: %w", err)
	}
	return buf.Bytes(), nil
}

// renderEvent converts the event record to an ical.Component (VEVENT).
func renderEvent(ev *store.Event) *ical.Component {
	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, ev.UID)
	ve.Props.SetText(ical.PropSummary, ev.Summary)
	ve.Props.SetText(ical.PropSequence, strconv.FormatInt(ev.Sequence, 10))
	ve.Props.SetDateTime(ical.PropDateTimeStamp, time.Now().UTC())
	ve.Props.SetDateTime(ical.PropDateTimeStart, time.UnixMilli(ev.StartTime).UTC())
	if ev.EndTime != 0 {
		ve.Props.SetDateTime(ical.PropDateTimeEnd, time.UnixMilli(ev.EndTime).UTC())
	}

	if ev.Description != "" {
		ve.Props.SetText(ical.PropDescription, ev.Description)
	}
	if ev.Location != "" {
		ve.Props.SetText(ical.PropLocation, ev.Location)
	}
	if ev.Method == store.MethodCancel {
		ve.Props.SetText(ical.PropStatus, "CANCELLED")
	}

	if ev.Organizer.Email != "" {
		p := ical.NewProp(ical.PropOrganizer)
		p.SetText("mailto:" + ev.Organizer.Key())
		if ev.Organizer.Name != "" {
			p.Params.Set(ical.ParamCommonName, ev.Organizer.Name)
		}
		ve.Props.Add(p)
	}

	for _, a := range ev.Attendees {
		p := ical.NewProp(ical.PropAttendee)
		p.SetText("mailto:" + a.Mailbox.Key())
		if a.Mailbox.Name != "" {
			p.Params.Set(ical.ParamCommonName, a.Mailbox.Name)
		}
		if role, ok := icalRoles[a.Role]; ok {
			p.Params.Set(ical.ParamRole, role)
		}
		ve.Props.Add(p)
	}

	return ve
}
