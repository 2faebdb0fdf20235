package service

import (
	"sync"
	"time"
)

// ActivityTracker remembers the last time a client asked for state and
// wakes the lifecycle loop when a client shows up.
type ActivityTracker struct {
	mu   sync.Mutex
	last time.Time
	wake chan struct{}
	now  func() time.Time
}

func NewActivityTracker() *ActivityTracker {
	return &ActivityTracker{
		wake: make(chan struct{}, 1),
		now:  time.Now,
	}
}

// Touch records activity now. It never blocks.
func (a *ActivityTracker) Touch() {
	a.mu.Lock()
	a.last = a.now()
	a.mu.Unlock()
	select {
	case a.wake <- struct{}{}:
	default:
	}
}

// Last returns the last recorded activity, zero if none.
func (a *ActivityTracker) Last() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.last
}

// Wake delivers at most one pending signal per burst of Touch calls.
func (a *ActivityTracker) Wake() <-chan struct{} {
	return a.wake
}

// isIdle reports whether no activity happened within timeout of now.
// A non-positive timeout disables idling.
func isIdle(now, last time.Time, timeout time.Duration) bool {
	if timeout <= 0 {
		return false
	}
	if last.IsZero() {
		return true
	}
	return now.Sub(last) > timeout
}
