package calendar

import "github.com/rbaliyan/calendar/store"

// Attendee set operations. The attendee list behaves as a set keyed by the
// lowercased email; list order is insertion order, which keeps rendered
// invites stable across revisions.

// dedupeAttendees collapses duplicate mailbox keys within one call.
// The last occurrence wins, so a caller that passes the same email twice with
// different roles gets the later role.
func dedupeAttendees(attendees []store.Attendee) []store.Attendee {
	byKey := make(map[string]store.Attendee, len(attendees))
	order := make([]string, 0, len(attendees))
	for _, a := range attendees {
		key := a.Mailbox.Key()
		if _, seen := byKey[key]; !seen {
			order = append(order, key)
		}
		byKey[key] = a
	}

	out := make([]store.Attendee, 0, len(order))
	for _, key := range order {
		out = append(out, byKey[key])
	}
	return out
}

// mergeAttendees applies incoming attendees to the existing set.
// Existing entries are replaced in place; new entries append in input order.
// Returns the merged list and whether anything actually changed.
func mergeAttendees(existing, incoming []store.Attendee) ([]store.Attendee, bool) {
	merged := make([]store.Attendee, len(existing))
	copy(merged, existing)

	index := make(map[string]int, len(merged))
	for i, a := range merged {
		index[a.Mailbox.Key()] = i
	}

	changed := false
	for _, a := range dedupeAttendees(incoming) {
		key := a.Mailbox.Key()
		if i, ok := index[key]; ok {
			if merged[i] != a {
				merged[i] = a
				changed = true
			}
			continue
		}
		index[key] = len(merged)
		merged = append(merged, a)
		changed = true
	}

	return merged, changed
}

// removeAttendees drops the given emails from the set, preserving order.
// Unknown emails are ignored. Returns the remaining list and whether anything
// was removed.
func removeAttendees(existing []store.Attendee, emails []string) ([]store.Attendee, bool) {
	drop := make(map[string]bool, len(emails))
	for _, email := range emails {
		drop[store.Mailbox{Email: email}.Key()] = true
	}

	remaining := make([]store.Attendee, 0, len(existing))
	changed := false
	for _, a := range existing {
		if drop[a.Mailbox.Key()] {
			changed = true
			continue
		}
		remaining = append(remaining, a)
	}

	return remaining, changed
}
