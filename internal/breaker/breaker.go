// Package breaker implements a circuit breaker gating calls to the remote
// platform. One breaker guards each operation class so an outage in one
// endpoint does not block unrelated work.
package breaker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// State is the breaker's position in the CLOSED -> OPEN -> HALF_OPEN cycle.
type State int

const (
	// StateClosed passes calls through and counts failures.
	StateClosed State = iota
	// StateOpen rejects calls immediately until the recovery timeout elapses.
	StateOpen
	// StateHalfOpen allows a single probing call to test recovery.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

// OpenError is returned without invoking the operation when the breaker is
// open. NextAttempt tells the caller when a probe will be allowed.
type OpenError struct {
	Name        string
	NextAttempt time.Time
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("circuit %q open until %s", e.Name, e.NextAttempt.Format(time.RFC3339))
}

// Config tunes breaker behavior.
type Config struct {
	FailureThreshold int           // Failures within the window that open the circuit
	RecoveryTimeout  time.Duration // How long to stay open before probing
	MonitoringPeriod time.Duration // Idle time after which stale counters reset
	MinimumRequests  int           // Requests required before the circuit may open
	SuccessThreshold float64       // Success fraction that closes a half-open circuit
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		RecoveryTimeout:  30 * time.Second,
		MonitoringPeriod: 60 * time.Second,
		MinimumRequests:  3,
		SuccessThreshold: 0.6,
	}
}

// Stats is a read-only view of the breaker's counters.
type Stats struct {
	State       State
	Requests    int
	Failures    int
	Successes   int
	NextAttempt time.Time
	OpenCount   int64
}

// Breaker gates calls to one operation class.
type Breaker struct {
	// mu is held for counter updates only, never across the call.
	mu   sync.Mutex
	name string
	cfg  Config

	state            State
	requests         int
	failures         int
	successes        int
	lastActivity     time.Time
	nextAttempt      time.Time
	halfOpenInFlight bool
	openCount        int64

	logger *zap.Logger
	now    func() time.Time
}

// New creates a breaker for the named operation class.
func New(name string, cfg Config, logger *zap.Logger) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.RecoveryTimeout <= 0 {
		cfg.RecoveryTimeout = 30 * time.Second
	}
	if cfg.MonitoringPeriod <= 0 {
		cfg.MonitoringPeriod = 60 * time.Second
	}
	if cfg.MinimumRequests <= 0 {
		cfg.MinimumRequests = 1
	}
	if cfg.SuccessThreshold <= 0 || cfg.SuccessThreshold > 1 {
		cfg.SuccessThreshold = 0.6
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Breaker{
		name:   name,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// Execute runs op under the breaker. When the circuit is open and the
// recovery timeout has not elapsed, op is never invoked and an *OpenError
// is returned. When the timeout has elapsed, exactly one caller is allowed
// through as a half-open probe; concurrent callers keep failing fast until
// the probe resolves.
func (b *Breaker) Execute(ctx context.Context, op func(context.Context) error) error {
	if err := b.admit(); err != nil {
		return err
	}

	err := op(ctx)

	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastActivity = b.now()
	b.requests++
	if b.state == StateHalfOpen {
		b.halfOpenInFlight = false
	}

	if err != nil {
		b.failures++
		b.onFailureLocked()
		return err
	}

	b.successes++
	if b.state == StateHalfOpen &&
		float64(b.successes)/float64(b.requests) >= b.cfg.SuccessThreshold {
		b.logger.Info("circuit closed after successful probe", zap.String("breaker", b.name))
		b.resetLocked(StateClosed)
	}
	return nil
}

// admit decides whether the call may proceed, handling the open -> half-open
// transition.
func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	b.expireWindowLocked(now)

	switch b.state {
	case StateOpen:
		if now.Before(b.nextAttempt) {
			return &OpenError{Name: b.name, NextAttempt: b.nextAttempt}
		}
		b.logger.Info("circuit half-open, allowing probe", zap.String("breaker", b.name))
		b.resetLocked(StateHalfOpen)
		b.halfOpenInFlight = true
	case StateHalfOpen:
		if b.halfOpenInFlight {
			return &OpenError{Name: b.name, NextAttempt: b.nextAttempt}
		}
		b.halfOpenInFlight = true
	}
	return nil
}

func (b *Breaker) onFailureLocked() {
	switch b.state {
	case StateHalfOpen:
		// Any failure during the probe re-opens immediately.
		b.openLocked()
	case StateClosed:
		if b.requests >= b.cfg.MinimumRequests && b.failures >= b.cfg.FailureThreshold {
			b.openLocked()
		}
	}
}

func (b *Breaker) openLocked() {
	b.state = StateOpen
	b.nextAttempt = b.now().Add(b.cfg.RecoveryTimeout)
	b.openCount++
	b.logger.Warn("circuit opened",
		zap.String("breaker", b.name),
		zap.Int("failures", b.failures),
		zap.Int("requests", b.requests),
		zap.Time("next_attempt", b.nextAttempt))
}

// expireWindowLocked drops counters that are older than the monitoring
// period so stale failures do not bias future decisions.
func (b *Breaker) expireWindowLocked(now time.Time) {
	if b.state != StateClosed || b.lastActivity.IsZero() {
		return
	}
	if now.Sub(b.lastActivity) > b.cfg.MonitoringPeriod {
		b.requests = 0
		b.failures = 0
		b.successes = 0
	}
}

func (b *Breaker) resetLocked(to State) {
	b.state = to
	b.requests = 0
	b.failures = 0
	b.successes = 0
	b.halfOpenInFlight = false
}

// Stats returns the current counters.
func (b *Breaker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		State:       b.state,
		Requests:    b.requests,
		Failures:    b.failures,
		Successes:   b.successes,
		NextAttempt: b.nextAttempt,
		OpenCount:   b.openCount,
	}
}

// ManualReset forces the breaker closed and zeroes all counters.
func (b *Breaker) ManualReset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetLocked(StateClosed)
	b.nextAttempt = time.Time{}
}

// IsAvailable reports whether a call would be admitted right now.
func (b *Breaker) IsAvailable() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != StateOpen {
		return true
	}
	return !b.now().Before(b.nextAttempt)
}
