package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errTransient = errors.New("transient failure")

func retryAll(cfg Config) Config {
	cfg.IsRetryable = func(error) bool { return true }
	cfg.InitialBackoff = time.Microsecond
	cfg.MaxBackoff = time.Millisecond
	return cfg
}

func TestDo(t *testing.T) {
	ctx := context.Background()

	t.Run("immediate success", func(t *testing.T) {
		calls := 0
		err := Do(ctx, retryAll(Config{MaxRetries: 3}), func(ctx context.Context) error {
			calls++
			return nil
		})
		if err != nil {
			t.Fatalf("expected success, got %v", err)
		}
		if calls != 1 {
			t.Errorf("expected 1 call, got %d", calls)
		}
	})

	t.Run("succeeds after retries", func(t *testing.T) {
		calls := 0
		err := Do(ctx, retryAll(Config{MaxRetries: 3}), func(ctx context.Context) error {
			calls++
			if calls < 3 {
				return errTransient
			}
			return nil
		})
		if err != nil {
			t.Fatalf("expected success, got %v", err)
		}
		if calls != 3 {
			t.Errorf("expected 3 calls, got %d", calls)
		}
	})

	t.Run("exhausts attempts", func(t *testing.T) {
		calls := 0
		err := Do(ctx, retryAll(Config{MaxRetries: 2}), func(ctx context.Context) error {
			calls++
			return errTransient
		})
		if !errors.Is(err, ErrExhausted) {
			t.Errorf("expected ErrExhausted, got %v", err)
		}
		if !errors.Is(err, errTransient) {
			t.Errorf("expected cause to match, got %v", err)
		}
		if calls != 3 {
			t.Errorf("expected 3 calls (1 + 2 retries), got %d", calls)
		}
	})

	t.Run("terminal errors are not replayed", func(t *testing.T) {
		terminal := errors.New("bad input")
		calls := 0
		cfg := Config{
			MaxRetries:     5,
			InitialBackoff: time.Microsecond,
			IsRetryable:    func(err error) bool { return errors.Is(err, errTransient) },
		}
		err := Do(ctx, cfg, func(ctx context.Context) error {
			calls++
			return terminal
		})
		if !errors.Is(err, ErrNotRetryable) {
			t.Errorf("expected ErrNotRetryable, got %v", err)
		}
		if !errors.Is(err, terminal) {
			t.Errorf("expected cause to match, got %v", err)
		}
		if calls != 1 {
			t.Errorf("expected 1 call, got %d", calls)
		}
	})

	t.Run("zero retries runs once", func(t *testing.T) {
		calls := 0
		err := Do(ctx, retryAll(Config{MaxRetries: 0}), func(ctx context.Context) error {
			calls++
			return errTransient
		})
		if !errors.Is(err, ErrExhausted) {
			t.Errorf("expected ErrExhausted, got %v", err)
		}
		if calls != 1 {
			t.Errorf("expected 1 call, got %d", calls)
		}
	})

	t.Run("zero config retries nothing", func(t *testing.T) {
		calls := 0
		err := Do(ctx, Config{}, func(ctx context.Context) error {
			calls++
			return errTransient
		})
		if !errors.Is(err, ErrNotRetryable) {
			t.Errorf("zero config should treat errors as terminal, got %v", err)
		}
		if calls != 1 {
			t.Errorf("expected 1 call, got %d", calls)
		}
	})

	t.Run("context cancellation stops the loop", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		calls := 0
		err := Do(cctx, retryAll(Config{MaxRetries: 100}), func(ctx context.Context) error {
			calls++
			cancel()
			return errTransient
		})
		if !errors.Is(err, ErrContextCanceled) {
			t.Errorf("expected ErrContextCanceled, got %v", err)
		}
		if calls != 1 {
			t.Errorf("expected 1 call, got %d", calls)
		}
	})

	t.Run("already-cancelled context never calls fn", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		calls := 0
		err := Do(cctx, retryAll(Config{MaxRetries: 3}), func(ctx context.Context) error {
			calls++
			return nil
		})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if calls != 0 {
			t.Errorf("expected 0 calls, got %d", calls)
		}
	})
}

func TestDoWithResult(t *testing.T) {
	ctx := context.Background()

	t.Run("returns the value", func(t *testing.T) {
		calls := 0
		got, err := DoWithResult(ctx, retryAll(Config{MaxRetries: 3}), func(ctx context.Context) (int, error) {
			calls++
			if calls < 2 {
				return 0, errTransient
			}
			return 42, nil
		})
		if err != nil {
			t.Fatalf("expected success, got %v", err)
		}
		if got != 42 {
			t.Errorf("expected 42, got %d", got)
		}
	})

	t.Run("zero value on failure", func(t *testing.T) {
		got, err := DoWithResult(ctx, retryAll(Config{MaxRetries: 1}), func(ctx context.Context) (string, error) {
			return "", errTransient
		})
		if !errors.Is(err, ErrExhausted) {
			t.Errorf("expected ErrExhausted, got %v", err)
		}
		if got != "" {
			t.Errorf("expected zero value, got %q", got)
		}
	})
}

func TestError(t *testing.T) {
	cause := errors.New("root cause")
	err := error(&Error{Cause: cause, Attempts: 4, Err: ErrExhausted})

	if !errors.Is(err, ErrExhausted) {
		t.Error("should match the loop outcome")
	}
	if !errors.Is(err, cause) {
		t.Error("should match the underlying cause")
	}
	if errors.Is(err, ErrNotRetryable) {
		t.Error("should not match unrelated sentinels")
	}

	var re *Error
	if !errors.As(err, &re) {
		t.Fatal("errors.As should find *Error")
	}
	if re.Attempts != 4 {
		t.Errorf("expected 4 attempts, got %d", re.Attempts)
	}
}

func TestBackoff(t *testing.T) {
	cfg := Config{
		InitialBackoff: 10 * time.Millisecond,
		MaxBackoff:     40 * time.Millisecond,
		Multiplier:     2.0,
	}.withDefaults()
	cfg.Jitter = 0

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 10 * time.Millisecond},
		{1, 20 * time.Millisecond},
		{2, 40 * time.Millisecond},
		{3, 40 * time.Millisecond}, // capped
	}
	for _, tc := range cases {
		if got := backoff(cfg, tc.attempt); got != tc.want {
			t.Errorf("backoff(attempt=%d) = %v, want %v", tc.attempt, got, tc.want)
		}
	}

	t.Run("jitter stays within bounds", func(t *testing.T) {
		cfg.Jitter = 0.5
		for i := 0; i < 100; i++ {
			got := backoff(cfg, 0)
			if got < 5*time.Millisecond || got > 15*time.Millisecond {
				t.Fatalf("jittered backoff %v outside [5ms, 15ms]", got)
			}
		}
	})
}
