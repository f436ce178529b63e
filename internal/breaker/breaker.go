// Package breaker implements a per-backend circuit breaker. One Breaker
// instance guards one backend; breakers for different backends are fully
// independent, so one backend's outage never blocks another.
package breaker

import (
	"context"
	"sync"
	"time"

	"github.com/pulseplan/pulse-insights/internal/config"
	"github.com/pulseplan/pulse-insights/internal/pkg/errors"
	"github.com/pulseplan/pulse-insights/internal/pkg/logger"
)

// State is the breaker state.
type State string

const (
	// StateClosed is normal operation; calls pass through.
	StateClosed State = "CLOSED"

	// StateOpen rejects all calls until the timeout elapses.
	StateOpen State = "OPEN"

	// StateHalfOpen allows a bounded number of probe calls.
	StateHalfOpen State = "HALF_OPEN"
)

// Snapshot is a point-in-time view of breaker state for observability.
type Snapshot struct {
	Backend            string    `json:"backend"`
	State              State     `json:"state"`
	FailureCount       int       `json:"failure_count"`
	SuccessCount       int       `json:"success_count"`
	LastFailureAt      time.Time `json:"last_failure_at"`
	LastSuccessAt      time.Time `json:"last_success_at"`
	HalfOpenProbesUsed int       `json:"half_open_probes_used"`
	Attempts           uint64    `json:"attempts"`
}

// StateChangeFunc is notified on every state transition.
type StateChangeFunc func(backend string, from, to State)

// Breaker guards calls to a single backend.
type Breaker struct {
	backend string
	cfg     config.BreakerConfig
	log     *logger.Logger

	mu             sync.Mutex
	state          State
	failureCount   int
	successCount   int
	lastFailureAt  time.Time
	lastSuccessAt  time.Time
	halfOpenProbes int
	attempts       uint64

	onStateChange StateChangeFunc
	now           func() time.Time
}

// New creates a breaker for the named backend, starting CLOSED.
func New(backend string, cfg config.BreakerConfig, log *logger.Logger) *Breaker {
	return &Breaker{
		backend: backend,
		cfg:     cfg,
		log:     log.WithBackend(backend),
		state:   StateClosed,
		now:     time.Now,
	}
}

// OnStateChange registers a callback invoked on every state transition.
// Must be called before the breaker starts guarding calls.
func (b *Breaker) OnStateChange(fn StateChangeFunc) {
	b.onStateChange = fn
}

// Allowed reports whether a call would currently be admitted. It is pure:
// no state is mutated, so callers can skip a doomed call without paying
// its timeout.
func (b *Breaker) Allowed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		return b.now().Sub(b.lastFailureAt) > b.timeout()
	case StateHalfOpen:
		return b.halfOpenProbes < b.cfg.HalfOpenMaxAttempts
	}
	return false
}

// Execute runs fn under the breaker. An OPEN breaker rejects immediately
// with a CIRCUIT_OPEN error carrying the remaining wait; the first call
// after the timeout elapses transitions to HALF_OPEN and probes.
func (b *Breaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := b.beforeCall(); err != nil {
		return err
	}

	err := fn(ctx)
	if errors.IsCostLimited(err) {
		// A budget denial happens before the backend is reached and
		// carries no signal about its health; it must not move the
		// failure accounting for every other user.
		b.afterNeutral()
		return err
	}
	b.afterCall(err == nil)
	return err
}

// Snapshot returns the current breaker state.
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	return Snapshot{
		Backend:            b.backend,
		State:              b.state,
		FailureCount:       b.failureCount,
		SuccessCount:       b.successCount,
		LastFailureAt:      b.lastFailureAt,
		LastSuccessAt:      b.lastSuccessAt,
		HalfOpenProbesUsed: b.halfOpenProbes,
		Attempts:           b.attempts,
	}
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) beforeCall() error {
	b.mu.Lock()

	b.attempts++
	entryState := b.state

	switch b.state {
	case StateOpen:
		elapsed := b.now().Sub(b.lastFailureAt)
		if elapsed <= b.timeout() {
			retryAfter := (b.timeout() - elapsed).Milliseconds()
			b.mu.Unlock()
			b.log.Debug("Call rejected", "state", entryState, "retry_after_ms", retryAfter)
			return errors.CircuitOpenError(b.backend, retryAfter)
		}
		b.transition(StateHalfOpen)
		b.halfOpenProbes = 0
		fallthrough

	case StateHalfOpen:
		if b.halfOpenProbes >= b.cfg.HalfOpenMaxAttempts {
			b.mu.Unlock()
			b.log.Debug("Probe rejected", "state", StateHalfOpen, "probes_used", b.cfg.HalfOpenMaxAttempts)
			return errors.CircuitOpenError(b.backend, b.timeout().Milliseconds())
		}
		b.halfOpenProbes++
	}

	attempt := b.attempts
	state := b.state
	b.mu.Unlock()

	b.log.Debug("Call admitted", "state", state, "attempt", attempt)
	return nil
}

// afterNeutral unwinds a call that says nothing about backend health.
// A half-open probe slot consumed by such a call is given back.
func (b *Breaker) afterNeutral() {
	b.mu.Lock()
	if b.state == StateHalfOpen && b.halfOpenProbes > 0 {
		b.halfOpenProbes--
	}
	b.mu.Unlock()

	b.log.Debug("Call completed", "outcome", "neutral")
}

func (b *Breaker) afterCall(success bool) {
	b.mu.Lock()
	entryState := b.state

	if success {
		b.successCount++
		b.lastSuccessAt = b.now()

		switch b.state {
		case StateHalfOpen:
			b.transition(StateClosed)
			b.failureCount = 0
			b.halfOpenProbes = 0
		case StateClosed:
			if b.failureCount > 0 {
				b.failureCount--
			}
		}
	} else {
		b.failureCount++
		b.lastFailureAt = b.now()

		switch b.state {
		case StateHalfOpen:
			b.transition(StateOpen)
		case StateClosed:
			if b.failureCount >= b.cfg.FailureThreshold {
				b.transition(StateOpen)
			}
		}
	}

	exitState := b.state
	b.mu.Unlock()

	b.log.Debug("Call completed",
		"success", success,
		"entry_state", entryState,
		"exit_state", exitState,
	)
}

// transition changes state and notifies the callback. Caller holds the lock.
func (b *Breaker) transition(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to

	b.log.Info("Breaker state changed", "from", from, "to", to, "failure_count", b.failureCount)

	if b.onStateChange != nil {
		go b.onStateChange(b.backend, from, to)
	}
}

func (b *Breaker) timeout() time.Duration {
	return time.Duration(b.cfg.TimeoutMs) * time.Millisecond
}
