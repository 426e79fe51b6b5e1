package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/rbaliyan/calendar/store"
	"github.com/rbaliyan/calendar/transport"
)

func TestDeliver(t *testing.T) {
	ctx := context.Background()
	invite := transport.Invite{UID: "ev1", Sequence: 1, Method: store.MethodRequest}

	t.Run("records per recipient", func(t *testing.T) {
		tr := New()
		if err := tr.Deliver(ctx, store.Mailbox{Email: "Bob@Example.com"}, invite); err != nil {
			t.Fatalf("deliver: %v", err)
		}

		got := tr.Delivered("bob@example.com")
		if len(got) != 1 || got[0].UID != "ev1" {
			t.Errorf("unexpected record: %v", got)
		}
		if tr.Count() != 1 {
			t.Errorf("expected count 1, got %d", tr.Count())
		}
	})

	t.Run("configured failure", func(t *testing.T) {
		tr := New()
		cause := errors.New("mailbox full")
		tr.Fail("bob@example.com", cause)

		err := tr.Deliver(ctx, store.Mailbox{Email: "bob@example.com"}, invite)
		if !errors.Is(err, transport.ErrDeliveryFailed) {
			t.Errorf("expected ErrDeliveryFailed, got %v", err)
		}
		if !errors.Is(err, cause) {
			t.Errorf("expected cause in chain, got %v", err)
		}
		if tr.Count() != 0 {
			t.Error("failed delivery must not be recorded")
		}

		// Clearing the failure restores delivery.
		tr.Fail("bob@example.com", nil)
		if err := tr.Deliver(ctx, store.Mailbox{Email: "bob@example.com"}, invite); err != nil {
			t.Errorf("deliver after clear: %v", err)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		tr := New()
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		if err := tr.Deliver(cctx, store.Mailbox{Email: "bob@example.com"}, invite); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})

	t.Run("reset clears everything", func(t *testing.T) {
		tr := New()
		tr.Fail("bob@example.com", errors.New("down"))
		if err := tr.Deliver(ctx, store.Mailbox{Email: "carol@example.com"}, invite); err != nil {
			t.Fatalf("deliver: %v", err)
		}

		tr.Reset()
		if tr.Count() != 0 {
			t.Error("expected empty record after reset")
		}
		if err := tr.Deliver(ctx, store.Mailbox{Email: "bob@example.com"}, invite); err != nil {
			t.Errorf("failure config should be cleared, got %v", err)
		}
	})
}
