package calendar

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rbaliyan/calendar/store"
	"github.com/rbaliyan/calendar/store/memory"
	"github.com/rbaliyan/calendar/transport"
)

func TestSendInvitation(t *testing.T) {
	ctx := context.Background()

	bob := Attendee{Mailbox: Mailbox{Email: "bob@example.com"}, Role: RoleRequired}
	carol := Attendee{Mailbox: Mailbox{Email: "carol@example.com"}, Role: RoleOptional}

	t.Run("delivers to every attendee", func(t *testing.T) {
		svc, tr := setupTestService(t)
		defer svc.Close(ctx)
		cal := svc.Client(principal("alice", "alice@example.com"))

		ev := mustCreate(t, cal, testInput())
		if _, err := cal.AddAttendees(ctx, ev.UID, bob, carol); err != nil {
			t.Fatalf("add: %v", err)
		}

		result, err := cal.SendInvitation(ctx, ev.UID)
		if err != nil {
			t.Fatalf("send: %v", err)
		}
		if result.Attempted != 2 {
			t.Errorf("expected 2 attempted, got %d", result.Attempted)
		}
		if !result.AllDelivered() {
			t.Errorf("expected full delivery, failed: %v", result.Failed)
		}
		if len(result.Delivered) != 2 {
			t.Errorf("expected 2 delivered, got %v", result.Delivered)
		}

		invites := tr.Delivered("bob@example.com")
		if len(invites) != 1 {
			t.Fatalf("expected 1 invite for bob, got %d", len(invites))
		}
		if invites[0].UID != ev.UID {
			t.Errorf("invite UID mismatch: %q", invites[0].UID)
		}
	})

	t.Run("partial failure is data not error", func(t *testing.T) {
		svc, tr := setupTestService(t)
		defer svc.Close(ctx)
		cal := svc.Client(principal("alice", "alice@example.com"))

		ev := mustCreate(t, cal, testInput())
		if _, err := cal.AddAttendees(ctx, ev.UID, bob, carol); err != nil {
			t.Fatalf("add: %v", err)
		}

		tr.Fail("carol@example.com", errors.New("mailbox full"))

		result, err := cal.SendInvitation(ctx, ev.UID)
		if err != nil {
			t.Fatalf("partial failure must not surface as error: %v", err)
		}
		if result.Attempted != 2 {
			t.Errorf("expected 2 attempted, got %d", result.Attempted)
		}
		if len(result.Failed) != 1 {
			t.Fatalf("expected 1 failure, got %v", result.Failed)
		}
		if _, ok := result.Failed["carol@example.com"]; !ok {
			t.Errorf("expected carol in failures, got %v", result.FailedRecipients())
		}
		if len(result.Delivered) != 1 || result.Delivered[0] != "bob@example.com" {
			t.Errorf("expected bob delivered, got %v", result.Delivered)
		}
	})

	t.Run("no attendees is a successful no-op", func(t *testing.T) {
		svc, tr := setupTestService(t)
		defer svc.Close(ctx)
		cal := svc.Client(principal("alice", "alice@example.com"))

		ev := mustCreate(t, cal, testInput())

		result, err := cal.SendInvitation(ctx, ev.UID)
		if err != nil {
			t.Fatalf("send: %v", err)
		}
		if result.Attempted != 0 || !result.AllDelivered() {
			t.Errorf("expected empty successful result, got %+v", result)
		}
		if tr.Count() != 0 {
			t.Errorf("expected no deliveries, got %d", tr.Count())
		}
	})

	t.Run("cancelled event dispatches the cancellation", func(t *testing.T) {
		svc, tr := setupTestService(t)
		defer svc.Close(ctx)
		cal := svc.Client(principal("alice", "alice@example.com"))

		ev := mustCreate(t, cal, testInput())
		if _, err := cal.AddAttendees(ctx, ev.UID, bob); err != nil {
			t.Fatalf("add: %v", err)
		}
		cancelled, err := cal.Cancel(ctx, ev.UID)
		if err != nil {
			t.Fatalf("cancel: %v", err)
		}

		result, err := cal.SendInvitation(ctx, ev.UID)
		if err != nil {
			t.Fatalf("send: %v", err)
		}
		if result.Sequence != cancelled.Sequence {
			t.Errorf("expected dispatch of sequence %d, got %d", cancelled.Sequence, result.Sequence)
		}

		invites := tr.Delivered("bob@example.com")
		if len(invites) != 1 {
			t.Fatalf("expected 1 invite, got %d", len(invites))
		}
		if invites[0].Method != store.MethodCancel {
			t.Errorf("expected cancel method, got %q", invites[0].Method)
		}
		if !strings.Contains(string(invites[0].Body), "METHOD:CANCEL") {
			t.Error("invite body missing METHOD:CANCEL")
		}
	})

	t.Run("invite carries the event sequence", func(t *testing.T) {
		svc, tr := setupTestService(t)
		defer svc.Close(ctx)
		cal := svc.Client(principal("alice", "alice@example.com"))

		ev := mustCreate(t, cal, testInput())
		if _, err := cal.AddAttendees(ctx, ev.UID, bob); err != nil {
			t.Fatalf("add: %v", err)
		}
		updated, err := cal.UpdateDetails(ctx, ev.UID, EventUpdate{Summary: strPtr("v2")})
		if err != nil {
			t.Fatalf("update: %v", err)
		}

		if _, err := cal.SendInvitation(ctx, ev.UID); err != nil {
			t.Fatalf("send: %v", err)
		}

		invites := tr.Delivered("bob@example.com")
		if len(invites) != 1 {
			t.Fatalf("expected 1 invite, got %d", len(invites))
		}
		if invites[0].Sequence != updated.Sequence {
			t.Errorf("expected sequence %d in invite, got %d", updated.Sequence, invites[0].Sequence)
		}
	})

	t.Run("missing transport is rejected", func(t *testing.T) {
		svc, err := NewService(WithStore(memory.New()))
		if err != nil {
			t.Fatalf("create service: %v", err)
		}
		if err := svc.Connect(ctx); err != nil {
			t.Fatalf("connect: %v", err)
		}
		defer svc.Close(ctx)

		cal := svc.Client(principal("alice", "alice@example.com"))
		ev := mustCreate(t, cal, testInput())

		_, err = cal.SendInvitation(ctx, ev.UID)
		if !errors.Is(err, ErrTransportRequired) {
			t.Errorf("expected ErrTransportRequired, got %v", err)
		}
	})

	t.Run("unknown event returns not found", func(t *testing.T) {
		svc, _ := setupTestService(t)
		defer svc.Close(ctx)
		cal := svc.Client(principal("alice", "alice@example.com"))

		_, err := cal.SendInvitation(ctx, "missing")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("transport failures wrap the delivery sentinel", func(t *testing.T) {
		svc, tr := setupTestService(t)
		defer svc.Close(ctx)
		cal := svc.Client(principal("alice", "alice@example.com"))

		ev := mustCreate(t, cal, testInput())
		if _, err := cal.AddAttendees(ctx, ev.UID, bob); err != nil {
			t.Fatalf("add: %v", err)
		}
		tr.Fail("bob@example.com", errors.New("relay down"))

		result, err := cal.SendInvitation(ctx, ev.UID)
		if err != nil {
			t.Fatalf("send: %v", err)
		}
		if !errors.Is(result.Failed["bob@example.com"], transport.ErrDeliveryFailed) {
			t.Errorf("expected ErrDeliveryFailed, got %v", result.Failed["bob@example.com"])
		}
	})
}
