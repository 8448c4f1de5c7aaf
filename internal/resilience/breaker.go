package resilience

import (
	"sync"
	"time"
)

// BreakerState is the circuit breaker state.
type BreakerState string

const (
	StateClosed   BreakerState = "closed"
	StateOpen     BreakerState = "open"
	StateHalfOpen BreakerState = "half_open"
)

// Breaker is a three-state circuit breaker.
//
// CLOSED: calls pass through, consecutive failures counted. After
// failureThreshold consecutive failures the breaker opens. OPEN: calls are
// rejected without touching the network until recoveryTimeout elapses, then
// the breaker half-opens. HALF_OPEN: at most halfOpenProbes probe calls are
// admitted; a probe success closes the breaker, a probe failure reopens it
// and resets the recovery timer.
type Breaker struct {
	mu sync.Mutex

	failureThreshold int
	recoveryTimeout  time.Duration
	halfOpenProbes   int

	state    BreakerState
	failures int
	openedAt time.Time
	probes   int // probes admitted since entering half-open
}

// NewBreaker creates a closed breaker.
func NewBreaker(failureThreshold int, recoveryTimeout time.Duration, halfOpenProbes int) *Breaker {
	if halfOpenProbes < 1 {
		halfOpenProbes = 1
	}
	return &Breaker{
		failureThreshold: failureThreshold,
		recoveryTimeout:  recoveryTimeout,
		halfOpenProbes:   halfOpenProbes,
		state:            StateClosed,
	}
}

// Allow reports whether a call may proceed. It returns ErrCircuitOpen while
// the breaker is open or half-open probe capacity is exhausted.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil
	case StateOpen:
		if time.Since(b.openedAt) < b.recoveryTimeout {
			return ErrCircuitOpen
		}
		b.state = StateHalfOpen
		b.probes = 0
		fallthrough
	case StateHalfOpen:
		if b.probes >= b.halfOpenProbes {
			return ErrCircuitOpen
		}
		b.probes++
		return nil
	}
	return nil
}

// RecordSuccess notes a successful call.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	if b.state == StateHalfOpen {
		b.state = StateClosed
	}
}

// RecordFailure notes a failed call (upstream error or timeout).
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateHalfOpen:
		// Probe failed: reopen and restart the recovery timer.
		b.state = StateOpen
		b.openedAt = time.Now()
		b.failures = 0
	case StateClosed:
		b.failures++
		if b.failures >= b.failureThreshold {
			b.state = StateOpen
			b.openedAt = time.Now()
			b.failures = 0
		}
	}
}

// State returns the current breaker state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen && time.Since(b.openedAt) >= b.recoveryTimeout {
		return StateHalfOpen
	}
	return b.state
}
