package breaker

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errRemote = errors.New("remote unavailable")

// newTestBreaker returns a breaker with an adjustable clock.
func newTestBreaker(cfg Config) (*Breaker, *time.Time) {
	b := New("test", cfg, nil)
	now := time.Now()
	b.now = func() time.Time { return now }
	return b, &now
}

func fail(ctx context.Context) error { return errRemote }
func ok(ctx context.Context) error   { return nil }

func TestOpensAfterFailureThreshold(t *testing.T) {
	b, _ := newTestBreaker(Config{FailureThreshold: 3, MinimumRequests: 3})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := b.Execute(ctx, fail); !errors.Is(err, errRemote) {
			t.Fatalf("attempt %d: expected operation error, got %v", i, err)
		}
	}
	if got := b.Stats().State; got != StateOpen {
		t.Fatalf("expected open after 3 failures, got %s", got)
	}

	// Open circuit rejects without invoking the operation.
	invoked := false
	err := b.Execute(ctx, func(ctx context.Context) error {
		invoked = true
		return nil
	})
	var openErr *OpenError
	if !errors.As(err, &openErr) {
		t.Fatalf("expected *OpenError, got %v", err)
	}
	if invoked {
		t.Error("operation must not run while the circuit is open")
	}
	if openErr.NextAttempt.IsZero() {
		t.Error("expected NextAttempt to be set")
	}
}

func TestStaysClosedBelowMinimumRequests(t *testing.T) {
	b, _ := newTestBreaker(Config{FailureThreshold: 2, MinimumRequests: 10})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_ = b.Execute(ctx, fail)
	}
	if got := b.Stats().State; got != StateClosed {
		t.Errorf("expected closed below minimum request volume, got %s", got)
	}
}

func TestHalfOpenProbeClosesOnSuccess(t *testing.T) {
	b, now := newTestBreaker(Config{
		FailureThreshold: 2,
		MinimumRequests:  2,
		RecoveryTimeout:  10 * time.Second,
		SuccessThreshold: 0.6,
	})
	ctx := context.Background()

	_ = b.Execute(ctx, fail)
	_ = b.Execute(ctx, fail)
	if got := b.Stats().State; got != StateOpen {
		t.Fatalf("expected open, got %s", got)
	}

	// Before the recovery timeout the probe is rejected.
	var openErr *OpenError
	if err := b.Execute(ctx, ok); !errors.As(err, &openErr) {
		t.Fatalf("expected rejection before recovery timeout, got %v", err)
	}

	*now = now.Add(11 * time.Second)
	if err := b.Execute(ctx, ok); err != nil {
		t.Fatalf("expected probe to pass, got %v", err)
	}
	if got := b.Stats().State; got != StateClosed {
		t.Errorf("expected closed after successful probe, got %s", got)
	}
}

func TestHalfOpenProbeReopensOnFailure(t *testing.T) {
	b, now := newTestBreaker(Config{
		FailureThreshold: 2,
		MinimumRequests:  2,
		RecoveryTimeout:  10 * time.Second,
	})
	ctx := context.Background()

	_ = b.Execute(ctx, fail)
	_ = b.Execute(ctx, fail)
	*now = now.Add(11 * time.Second)

	if err := b.Execute(ctx, fail); !errors.Is(err, errRemote) {
		t.Fatalf("expected probe to run and fail, got %v", err)
	}
	stats := b.Stats()
	if stats.State != StateOpen {
		t.Errorf("expected re-open after failed probe, got %s", stats.State)
	}
	if stats.OpenCount != 2 {
		t.Errorf("expected open count 2, got %d", stats.OpenCount)
	}
}

func TestSingleProbeGate(t *testing.T) {
	b, now := newTestBreaker(Config{
		FailureThreshold: 1,
		MinimumRequests:  1,
		RecoveryTimeout:  10 * time.Second,
	})
	ctx := context.Background()

	_ = b.Execute(ctx, fail)
	*now = now.Add(11 * time.Second)

	// First caller enters half-open; a concurrent second caller is
	// rejected while the probe is in flight.
	probeRunning := make(chan struct{})
	probeRelease := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- b.Execute(ctx, func(ctx context.Context) error {
			close(probeRunning)
			<-probeRelease
			return nil
		})
	}()

	<-probeRunning
	var openErr *OpenError
	if err := b.Execute(ctx, ok); !errors.As(err, &openErr) {
		t.Errorf("expected concurrent caller rejected during probe, got %v", err)
	}
	close(probeRelease)
	if err := <-done; err != nil {
		t.Errorf("expected probe success, got %v", err)
	}
}

func TestMonitoringPeriodResetsStaleCounters(t *testing.T) {
	b, now := newTestBreaker(Config{
		FailureThreshold: 3,
		MinimumRequests:  3,
		MonitoringPeriod: time.Minute,
	})
	ctx := context.Background()

	_ = b.Execute(ctx, fail)
	_ = b.Execute(ctx, fail)

	// A quiet period expires the window; the next failures start fresh.
	*now = now.Add(2 * time.Minute)
	_ = b.Execute(ctx, fail)

	stats := b.Stats()
	if stats.State != StateClosed {
		t.Errorf("expected closed, got %s", stats.State)
	}
	if stats.Failures != 1 {
		t.Errorf("expected stale failures dropped, got %d", stats.Failures)
	}
}

func TestManualReset(t *testing.T) {
	b, _ := newTestBreaker(Config{FailureThreshold: 1, MinimumRequests: 1})
	ctx := context.Background()

	_ = b.Execute(ctx, fail)
	if b.IsAvailable() {
		t.Fatal("expected unavailable while open")
	}

	b.ManualReset()
	if !b.IsAvailable() {
		t.Error("expected available after manual reset")
	}
	if got := b.Stats().State; got != StateClosed {
		t.Errorf("expected closed after manual reset, got %s", got)
	}
}
