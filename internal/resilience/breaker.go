package resilience

import (
	"sync"
	"time"
)

// BreakerState is the three-state circuit guard for one provider.
type BreakerState string

const (
	StateClosed   BreakerState = "closed"
	StateOpen     BreakerState = "open"
	StateHalfOpen BreakerState = "half_open"
)

const (
	// breakerFailureThreshold consecutive failures open the circuit.
	breakerFailureThreshold = 5
	// breakerCooldown is how long an open circuit waits before probing.
	breakerCooldown = 60 * time.Second
)

// BreakerSnapshot is a read-only copy of breaker state for diagnostics.
type BreakerSnapshot struct {
	State               BreakerState `json:"state"`
	ConsecutiveFailures int          `json:"consecutive_failures"`
	LastFailure         time.Time    `json:"last_failure,omitzero"`
	NextRetry           time.Time    `json:"next_retry,omitzero"`
}

// Breaker is the sole mutator of a provider's availability. open→half-open
// happens only when the retry deadline has elapsed, and half-open→closed only
// on the first success after the probe.
type Breaker struct {
	mu        sync.Mutex
	state     BreakerState
	failures  int
	lastFail  time.Time
	nextRetry time.Time
	now       func() time.Time
}

// NewBreaker starts closed.
func NewBreaker() *Breaker {
	return &Breaker{state: StateClosed, now: time.Now}
}

// Allow reports whether a call may proceed. An open breaker whose deadline
// has passed flips to half-open and admits exactly this probe call.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed, StateHalfOpen:
		return true
	case StateOpen:
		if b.now().Before(b.nextRetry) {
			return false
		}
		b.state = StateHalfOpen
		return true
	}
	return false
}

// RecordSuccess resets the breaker. Returns true when the call closed a
// previously open circuit, so callers can log or alert the recovery.
func (b *Breaker) RecordSuccess() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	recovered := b.state != StateClosed
	b.state = StateClosed
	b.failures = 0
	return recovered
}

// RecordFailure counts a failed call. Returns true when this failure opened
// the circuit (including a failed half-open probe).
func (b *Breaker) RecordFailure() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	b.failures++
	b.lastFail = now

	if b.state == StateHalfOpen {
		b.state = StateOpen
		b.nextRetry = now.Add(breakerCooldown)
		return true
	}
	if b.state == StateClosed && b.failures >= breakerFailureThreshold {
		b.state = StateOpen
		b.nextRetry = now.Add(breakerCooldown)
		return true
	}
	return false
}

// State returns the current state, applying the open→half-open transition if
// the deadline has elapsed so readers never see a stale open.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen && !b.now().Before(b.nextRetry) {
		b.state = StateHalfOpen
	}
	return b.state
}

// Snapshot returns a copy of the breaker internals for health reporting.
func (b *Breaker) Snapshot() BreakerSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BreakerSnapshot{
		State:               b.state,
		ConsecutiveFailures: b.failures,
		LastFailure:         b.lastFail,
		NextRetry:           b.nextRetry,
	}
}
