package service

import "time"

const (
	defaultInitialBackoff = 2 * time.Second
	defaultMaxBackoff     = 30 * time.Second
)

// Backoff yields doubling waits between initial and max.
type Backoff struct {
	initial time.Duration
	max     time.Duration
	cur     time.Duration
}

func NewBackoff(initial, max time.Duration) *Backoff {
	if initial <= 0 {
		initial = defaultInitialBackoff
	}
	if max < initial {
		max = initial
	}
	return &Backoff{initial: initial, max: max, cur: initial}
}

// Next returns the wait for the current failure and doubles the following one.
func (b *Backoff) Next() time.Duration {
	d := b.cur
	b.cur *= 2
	if b.cur > b.max {
		b.cur = b.max
	}
	return d
}

// Reset restarts the sequence at the initial wait.
func (b *Backoff) Reset() {
	b.cur = b.initial
}
