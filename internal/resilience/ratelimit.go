package resilience

import (
	"sync"
	"time"

	"venuehub/internal/registry"
)

// window sizes for the sliding-window limiter. Day is the longest window, so
// call history older than that can be discarded.
const (
	windowMinute = time.Minute
	windowHour   = time.Hour
	windowDay    = 24 * time.Hour
)

// SlidingLimiter enforces per-minute, per-hour, and per-day caps for one
// provider. Rejection is purely local: a call that would exceed any window is
// refused before any network activity.
type SlidingLimiter struct {
	mu     sync.Mutex
	limits registry.RateLimits
	calls  []time.Time
	now    func() time.Time
}

// NewSlidingLimiter builds a limiter for the given caps.
func NewSlidingLimiter(limits registry.RateLimits) *SlidingLimiter {
	return &SlidingLimiter{limits: limits, now: time.Now}
}

// Allow records and permits the call if no window would be exceeded. The
// check and the record are one atomic step so concurrent callers cannot
// both squeeze through the last slot.
func (l *SlidingLimiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.prune(now)

	var minute, hour int
	for _, t := range l.calls {
		age := now.Sub(t)
		if age < windowMinute {
			minute++
		}
		if age < windowHour {
			hour++
		}
	}
	if minute >= l.limits.PerMinute || hour >= l.limits.PerHour || len(l.calls) >= l.limits.PerDay {
		return false
	}

	l.calls = append(l.calls, now)
	return true
}

// Remaining reports how many calls are left in the tightest window, for
// health diagnostics.
func (l *SlidingLimiter) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.prune(now)

	var minute, hour int
	for _, t := range l.calls {
		age := now.Sub(t)
		if age < windowMinute {
			minute++
		}
		if age < windowHour {
			hour++
		}
	}
	rem := l.limits.PerMinute - minute
	if hr := l.limits.PerHour - hour; hr < rem {
		rem = hr
	}
	if day := l.limits.PerDay - len(l.calls); day < rem {
		rem = day
	}
	if rem < 0 {
		rem = 0
	}
	return rem
}

func (l *SlidingLimiter) prune(now time.Time) {
	cutoff := now.Add(-windowDay)
	i := 0
	for i < len(l.calls) && l.calls[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		l.calls = append(l.calls[:0], l.calls[i:]...)
	}
}
