package calendar

import (
	"errors"
	"log/slog"
	"testing"
	"time"
)

func TestOptionDefaults(t *testing.T) {
	o := newOptions()

	if o.logger == nil {
		t.Error("expected default logger")
	}
	if o.authorizer == nil {
		t.Error("expected default authorizer")
	}
	if o.visibility == nil {
		t.Error("expected default visibility predicate")
	}
	if o.maxSummaryLength != DefaultMaxSummaryLength {
		t.Errorf("expected default summary length %d, got %d", DefaultMaxSummaryLength, o.maxSummaryLength)
	}
	if o.maxDescriptionSize != DefaultMaxDescriptionSize {
		t.Errorf("expected default description size %d, got %d", DefaultMaxDescriptionSize, o.maxDescriptionSize)
	}
	if o.maxAttendeeCount != DefaultMaxAttendeeCount {
		t.Errorf("expected default attendee count %d, got %d", DefaultMaxAttendeeCount, o.maxAttendeeCount)
	}
	if o.conflictRetries != DefaultConflictRetries {
		t.Errorf("expected default conflict retries %d, got %d", DefaultConflictRetries, o.conflictRetries)
	}
	if o.maxConcurrentDeliveries != DefaultMaxConcurrentDeliveries {
		t.Errorf("expected default concurrent deliveries %d, got %d", DefaultMaxConcurrentDeliveries, o.maxConcurrentDeliveries)
	}
	if o.deliveryTimeout != DefaultDeliveryTimeout {
		t.Errorf("expected default delivery timeout %v, got %v", DefaultDeliveryTimeout, o.deliveryTimeout)
	}
	if o.shutdownTimeout != DefaultShutdownTimeout {
		t.Errorf("expected default shutdown timeout %v, got %v", DefaultShutdownTimeout, o.shutdownTimeout)
	}
	if o.prodID != DefaultProdID {
		t.Errorf("expected default prodID %q, got %q", DefaultProdID, o.prodID)
	}
	if o.eventErrorsFatal {
		t.Error("event errors should not be fatal by default")
	}
	if o.onEventPublishFailure == nil {
		t.Error("expected default publish failure handler")
	}
	if o.tracingEnabled || o.metricsEnabled {
		t.Error("telemetry should be disabled by default")
	}
}

func TestOptionOverrides(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	o := newOptions(
		WithLogger(logger),
		WithMaxSummaryLength(64),
		WithMaxDescriptionSize(2048),
		WithMaxLocationLength(128),
		WithMaxAttendees(5),
		WithConflictRetries(0),
		WithMaxConcurrentDeliveries(2),
		WithDeliveryTimeout(5*time.Second),
		WithProdID("-//test//EN"),
		WithShutdownTimeout(2*time.Second),
		WithEventErrorsFatal(true),
		WithOTel(true),
		WithServiceName("calendar-test"),
	)

	if o.logger != logger {
		t.Error("logger not applied")
	}
	limits := o.getLimits()
	if limits.MaxSummaryLength != 64 || limits.MaxDescriptionSize != 2048 ||
		limits.MaxLocationLength != 128 || limits.MaxAttendeeCount != 5 {
		t.Errorf("limits not applied: %+v", limits)
	}
	if o.conflictRetries != 0 {
		t.Errorf("expected zero conflict retries, got %d", o.conflictRetries)
	}
	if o.maxConcurrentDeliveries != 2 {
		t.Errorf("expected 2 concurrent deliveries, got %d", o.maxConcurrentDeliveries)
	}
	if o.deliveryTimeout != 5*time.Second {
		t.Errorf("delivery timeout not applied: %v", o.deliveryTimeout)
	}
	if o.prodID != "-//test//EN" {
		t.Errorf("prodID not applied: %q", o.prodID)
	}
	if o.shutdownTimeout != 2*time.Second {
		t.Errorf("shutdown timeout not applied: %v", o.shutdownTimeout)
	}
	if !o.eventErrorsFatal {
		t.Error("eventErrorsFatal not applied")
	}
	if !o.tracingEnabled || !o.metricsEnabled {
		t.Error("WithOTel should enable both tracing and metrics")
	}
	if o.serviceName != "calendar-test" {
		t.Errorf("service name not applied: %q", o.serviceName)
	}
}

func TestOptionGuards(t *testing.T) {
	t.Run("nil and invalid values keep defaults", func(t *testing.T) {
		o := newOptions(
			WithStore(nil),
			WithTransport(nil),
			WithLogger(nil),
			WithAuthorizer(nil),
			WithVisibility(nil),
			WithMaxSummaryLength(-1),
			WithMaxAttendees(0),
			WithConflictRetries(-1),
			WithDeliveryTimeout(0),
			WithShutdownTimeout(10*time.Millisecond),
			WithProdID(""),
		)
		if o.store != nil || o.transport != nil {
			t.Error("nil store/transport should stay unset")
		}
		if o.logger == nil || o.authorizer == nil || o.visibility == nil {
			t.Error("nil options must not clear defaults")
		}
		if o.maxSummaryLength != DefaultMaxSummaryLength {
			t.Error("negative summary length should keep default")
		}
		if o.maxAttendeeCount != DefaultMaxAttendeeCount {
			t.Error("zero attendee count should keep default")
		}
		if o.conflictRetries != DefaultConflictRetries {
			t.Error("negative conflict retries should keep default")
		}
		if o.deliveryTimeout != DefaultDeliveryTimeout {
			t.Error("zero delivery timeout should keep default")
		}
		if o.shutdownTimeout != DefaultShutdownTimeout {
			t.Error("sub-minimum shutdown timeout should keep default")
		}
		if o.prodID != DefaultProdID {
			t.Error("empty prodID should keep default")
		}
	})
}

func TestSafeEventPublishFailure(t *testing.T) {
	t.Run("panicking handler is contained", func(t *testing.T) {
		o := newOptions(
			WithLogger(slog.New(slog.DiscardHandler)),
			WithEventPublishFailureHandler(func(string, error) {
				panic("handler bug")
			}),
		)
		// Must not propagate the panic.
		o.safeEventPublishFailure("EventCreated", errors.New("bus down"))
	})

	t.Run("handler receives the failure", func(t *testing.T) {
		var gotName string
		var gotErr error
		o := newOptions(WithEventPublishFailureHandler(func(name string, err error) {
			gotName, gotErr = name, err
		}))
		cause := errors.New("bus down")
		o.safeEventPublishFailure("EventCanceled", cause)
		if gotName != "EventCanceled" || !errors.Is(gotErr, cause) {
			t.Errorf("handler got (%q, %v)", gotName, gotErr)
		}
	})
}
