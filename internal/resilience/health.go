package resilience

import (
	"sync"
	"time"

	"venuehub/internal/provider"
)

// healthWindow bounds how many recent outcomes feed the rolling error rate.
const healthWindow = 50

// HealthTracker keeps the rolling health picture for one provider: error
// rate over the last N calls, average response time, consecutive failures,
// and last success/failure timestamps.
type HealthTracker struct {
	mu          sync.Mutex
	providerID  string
	outcomes    []bool // ring of recent results, true = success
	next        int
	filled      bool
	totalTime   time.Duration
	timedCalls  int
	consecutive int
	lastSuccess time.Time
	lastFailure time.Time
}

// NewHealthTracker starts with no history; a provider with no calls yet
// reports healthy.
func NewHealthTracker(providerID string) *HealthTracker {
	return &HealthTracker{
		providerID: providerID,
		outcomes:   make([]bool, healthWindow),
	}
}

// RecordSuccess notes a successful call and its duration.
func (h *HealthTracker) RecordSuccess(elapsed time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.push(true)
	h.totalTime += elapsed
	h.timedCalls++
	h.consecutive = 0
	h.lastSuccess = time.Now()
}

// RecordFailure notes a failed call.
func (h *HealthTracker) RecordFailure(elapsed time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.push(false)
	h.totalTime += elapsed
	h.timedCalls++
	h.consecutive++
	h.lastFailure = time.Now()
}

func (h *HealthTracker) push(ok bool) {
	h.outcomes[h.next] = ok
	h.next++
	if h.next == len(h.outcomes) {
		h.next = 0
		h.filled = true
	}
}

// Status returns the current snapshot. Healthy means the rolling error rate
// is under 50% and fewer than the breaker threshold of consecutive failures.
func (h *HealthTracker) Status() provider.HealthStatus {
	h.mu.Lock()
	defer h.mu.Unlock()

	count := h.next
	if h.filled {
		count = len(h.outcomes)
	}
	var failures int
	for i := 0; i < count; i++ {
		if !h.outcomes[i] {
			failures++
		}
	}

	var errorRate float64
	if count > 0 {
		errorRate = float64(failures) / float64(count)
	}
	var avgMs float64
	if h.timedCalls > 0 {
		avgMs = float64(h.totalTime.Milliseconds()) / float64(h.timedCalls)
	}

	status := provider.HealthStatus{
		ProviderID:          h.providerID,
		Healthy:             errorRate < 0.5 && h.consecutive < breakerFailureThreshold,
		ErrorRate:           errorRate,
		AvgResponseTime:     avgMs,
		ConsecutiveFailures: h.consecutive,
	}
	if !h.lastSuccess.IsZero() {
		t := h.lastSuccess
		status.LastSuccess = &t
	}
	if !h.lastFailure.IsZero() {
		t := h.lastFailure
		status.LastFailure = &t
	}
	return status
}
