// Package ratelimit bounds how many extraction attempts a client identity
// may issue inside a sliding time window.
package ratelimit

import (
	"sync"
	"time"
)

// Result of an admission check. RetryAfter is meaningful only when Allowed
// is false: it is the time until the oldest retained request leaves the
// window and a slot frees up.
type Result struct {
	Allowed    bool
	RetryAfter time.Duration
}

// Limiter keeps one timestamp window per identity. Admission is a
// read-modify-write of that window, so the whole check runs under the
// limiter mutex: two simultaneous requests from one identity must not both
// slip past the limit on stale counts.
type Limiter struct {
	max    int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	windows map[string][]time.Time
}

func NewLimiter(max int, window time.Duration) *Limiter {
	return &Limiter{
		max:     max,
		window:  window,
		now:     time.Now,
		windows: make(map[string][]time.Time),
	}
}

// SetClock overrides the time source. Tests only.
func (l *Limiter) SetClock(now func() time.Time) {
	l.now = now
}

// Admit purges expired timestamps for the identity, then either records the
// attempt or rejects it with the time until a slot opens.
func (l *Limiter) Admit(identity string) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	kept := l.windows[identity][:0]
	for _, ts := range l.windows[identity] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= l.max {
		retry := l.window - now.Sub(kept[0])
		if retry < time.Second {
			retry = time.Second
		}
		l.windows[identity] = kept
		return Result{Allowed: false, RetryAfter: retry}
	}

	l.windows[identity] = append(kept, now)
	return Result{Allowed: true}
}
