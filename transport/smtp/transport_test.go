package smtp

import (
	"strings"
	"testing"

	"github.com/rbaliyan/calendar/store"
	"github.com/rbaliyan/calendar/transport"
)

func TestBuildMessage(t *testing.T) {
	tr := New("relay.example.com:587", store.Mailbox{Name: "Calendar Bot", Email: "noreply@example.com"})
	invite := transport.Invite{
		UID:      "ev1",
		Sequence: 2,
		Method:   store.MethodRequest,
		Summary:  "Quarterly review",
		Body:     []byte("BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n"),
	}

	msg := string(tr.buildMessage(store.Mailbox{Name: "Bob", Email: "bob@example.com"}, invite))

	for _, want := range []string{
		"From: Calendar Bot <noreply@example.com>\r\n",
		"To: Bob <bob@example.com>\r\n",
		"Subject: Quarterly review\r\n",
		"MIME-Version: 1.0\r\n",
		"Content-Type: text/calendar; method=REQUEST; charset=utf-8\r\n",
		"\r\nBEGIN:VCALENDAR",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}

	// Headers end before the body starts.
	if !strings.Contains(msg, "\r\n\r\n") {
		t.Error("missing header/body separator")
	}
}

func TestFormatAddress(t *testing.T) {
	if got := formatAddress(store.Mailbox{Email: "a@example.com"}); got != "a@example.com" {
		t.Errorf("bare address: got %q", got)
	}
	if got := formatAddress(store.Mailbox{Name: "Alice", Email: "a@example.com"}); got != "Alice <a@example.com>" {
		t.Errorf("named address: got %q", got)
	}
}
