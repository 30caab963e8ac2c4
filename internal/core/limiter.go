package core

import (
	"sync"
	"time"
)

// operationLimiter enforces a sliding one-minute ceiling on operation
// count. The window resets once a full minute has elapsed since it
// opened; inside the window each successful Allow consumes one slot.
type operationLimiter struct {
	mu          sync.Mutex
	max         int
	window      time.Duration
	count       int
	windowStart time.Time

	// now is injectable for tests.
	now func() time.Time
}

func newOperationLimiter(maxPerMinute int, now func() time.Time) *operationLimiter {
	if now == nil {
		now = time.Now
	}
	return &operationLimiter{
		max:         maxPerMinute,
		window:      time.Minute,
		now:         now,
		windowStart: now(),
	}
}

// Allow reports whether one more operation fits in the current window and
// counts it if so.
func (l *operationLimiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.windowStart) > l.window {
		l.count = 0
		l.windowStart = now
	}
	if l.count >= l.max {
		return false
	}
	l.count++
	return true
}

// Count returns the number of operations counted in the current window.
func (l *operationLimiter) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}
