package calendar

import (
	"errors"
	"strings"
	"testing"

	"github.com/rbaliyan/calendar/store"
)

func TestValidateEmail(t *testing.T) {
	cases := []struct {
		name    string
		email   string
		wantErr error
	}{
		{"valid", "alice@example.com", nil},
		{"valid with name part", "Alice <alice@example.com>", nil},
		{"empty", "", ErrInvalidEmail},
		{"whitespace only", "   ", ErrInvalidEmail},
		{"missing domain", "alice@", ErrInvalidEmail},
		{"missing local part", "@example.com", ErrInvalidEmail},
		{"no at sign", "alice.example.com", ErrInvalidEmail},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateEmail(tc.email)
			if tc.wantErr == nil {
				if err != nil {
					t.Errorf("expected valid, got %v", err)
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestValidateMailbox(t *testing.T) {
	if err := ValidateMailbox(store.Mailbox{Name: "Alice", Email: "alice@example.com"}); err != nil {
		t.Errorf("expected valid mailbox, got %v", err)
	}
	if err := ValidateMailbox(store.Mailbox{Email: "not-an-email"}); !errors.Is(err, ErrInvalidEmail) {
		t.Errorf("expected ErrInvalidEmail, got %v", err)
	}
	if err := ValidateMailbox(store.Mailbox{Name: "bad\x00name", Email: "alice@example.com"}); !errors.Is(err, ErrInvalidContent) {
		t.Errorf("expected ErrInvalidContent for control character, got %v", err)
	}
}

func TestValidateSummary(t *testing.T) {
	limits := DefaultLimits()

	if err := ValidateSummary("Team standup", limits); err != nil {
		t.Errorf("expected valid, got %v", err)
	}
	if err := ValidateSummary("", limits); err != nil {
		t.Errorf("empty summary should be valid, got %v", err)
	}

	long := strings.Repeat("x", limits.MaxSummaryLength+1)
	if err := ValidateSummary(long, limits); !errors.Is(err, ErrSummaryTooLong) {
		t.Errorf("expected ErrSummaryTooLong, got %v", err)
	}

	if err := ValidateSummary("line\nbreak", limits); !errors.Is(err, ErrInvalidContent) {
		t.Errorf("expected ErrInvalidContent for newline, got %v", err)
	}
	if err := ValidateSummary(string([]byte{0xff, 0xfe}), limits); !errors.Is(err, ErrInvalidContent) {
		t.Errorf("expected ErrInvalidContent for invalid UTF-8, got %v", err)
	}
}

func TestValidateDescription(t *testing.T) {
	limits := EventLimits{MaxDescriptionSize: 32}

	if err := ValidateDescription("agenda:\n- item one\n- item two", limits); err != nil {
		t.Errorf("newlines are allowed in descriptions, got %v", err)
	}
	if err := ValidateDescription(strings.Repeat("x", 33), limits); !errors.Is(err, ErrDescriptionTooLarge) {
		t.Errorf("expected ErrDescriptionTooLarge, got %v", err)
	}
	if err := ValidateDescription(string([]byte{0xff}), limits); !errors.Is(err, ErrInvalidContent) {
		t.Errorf("expected ErrInvalidContent, got %v", err)
	}
}

func TestValidateLocation(t *testing.T) {
	limits := EventLimits{MaxLocationLength: 16}

	if err := ValidateLocation("Room 4B", limits); err != nil {
		t.Errorf("expected valid, got %v", err)
	}
	if err := ValidateLocation(strings.Repeat("x", 17), limits); !errors.Is(err, ErrLocationTooLong) {
		t.Errorf("expected ErrLocationTooLong, got %v", err)
	}
}

func TestValidateAttendees(t *testing.T) {
	limits := EventLimits{MaxAttendeeCount: 2}

	t.Run("valid list", func(t *testing.T) {
		err := ValidateAttendees([]store.Attendee{
			att("a@example.com", store.RoleRequired),
			att("b@example.com", store.RoleChair),
		}, limits)
		if err != nil {
			t.Errorf("expected valid, got %v", err)
		}
	})

	t.Run("too many", func(t *testing.T) {
		err := ValidateAttendees([]store.Attendee{
			att("a@example.com", store.RoleRequired),
			att("b@example.com", store.RoleRequired),
			att("c@example.com", store.RoleRequired),
		}, limits)
		if !errors.Is(err, ErrTooManyAttendees) {
			t.Errorf("expected ErrTooManyAttendees, got %v", err)
		}
	})

	t.Run("bad email", func(t *testing.T) {
		err := ValidateAttendees([]store.Attendee{att("nope", store.RoleRequired)}, limits)
		if !errors.Is(err, ErrInvalidEmail) {
			t.Errorf("expected ErrInvalidEmail, got %v", err)
		}
	})

	t.Run("bad role", func(t *testing.T) {
		err := ValidateAttendees([]store.Attendee{att("a@example.com", store.Role("vip"))}, limits)
		if !errors.Is(err, ErrInvalidRole) {
			t.Errorf("expected ErrInvalidRole, got %v", err)
		}
	})
}
