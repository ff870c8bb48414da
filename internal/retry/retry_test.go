package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errTransient = errors.New("transient")

func TestSucceedsFirstAttempt(t *testing.T) {
	e := New(Policy{MaxAttempts: 3, InitialBackoff: time.Millisecond}, nil)

	calls := 0
	err := e.Do(context.Background(), "op", func(ctx context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestRetriesUpToMaxAttempts(t *testing.T) {
	calls := 0
	retries := 0
	e := New(Policy{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
		OnRetry:        func(int, error) { retries++ },
	}, nil)

	err := e.Do(context.Background(), "op", func(ctx context.Context) error {
		calls++
		return errTransient
	})
	if !errors.Is(err, errTransient) {
		t.Fatalf("expected last error returned, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
	if retries != 2 {
		t.Errorf("expected 2 retry callbacks, got %d", retries)
	}
}

func TestNonRetryableFailsFast(t *testing.T) {
	errPermanent := errors.New("permanent")
	e := New(Policy{
		MaxAttempts:    5,
		InitialBackoff: time.Millisecond,
		Retryable:      func(err error) bool { return !errors.Is(err, errPermanent) },
	}, nil)

	calls := 0
	err := e.Do(context.Background(), "op", func(ctx context.Context) error {
		calls++
		return errPermanent
	})
	if !errors.Is(err, errPermanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 attempt for non-retryable error, got %d", calls)
	}
}

func TestBackoffSleepsBetweenAttempts(t *testing.T) {
	const base = 20 * time.Millisecond
	e := New(Policy{MaxAttempts: 3, InitialBackoff: base, MaxBackoff: time.Second}, nil)

	start := time.Now()
	_ = e.Do(context.Background(), "op", func(ctx context.Context) error {
		return errTransient
	})
	// Two sleeps: base and 2*base.
	if elapsed := time.Since(start); elapsed < 3*base {
		t.Errorf("expected at least %s of backoff, got %s", 3*base, elapsed)
	}
}

func TestBackoffIsCapped(t *testing.T) {
	e := New(Policy{MaxAttempts: 10, InitialBackoff: time.Second, MaxBackoff: 4 * time.Second}, nil)

	if got := e.backoff(0); got != time.Second {
		t.Errorf("attempt 0: expected 1s, got %s", got)
	}
	if got := e.backoff(2); got != 4*time.Second {
		t.Errorf("attempt 2: expected cap 4s, got %s", got)
	}
	if got := e.backoff(40); got != 4*time.Second {
		t.Errorf("attempt 40: expected cap 4s, got %s", got)
	}
}

func TestContextCancellationAbortsWait(t *testing.T) {
	e := New(Policy{MaxAttempts: 5, InitialBackoff: time.Minute}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- e.Do(ctx, "op", func(ctx context.Context) error {
			return errTransient
		})
	}()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Do did not return after cancellation")
	}
}
