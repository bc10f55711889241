package backoff

import (
	"context"
	"sync"
	"time"
)

// LinearBackoff drives a probe loop: a long baseline interval while things
// work, a short retry after the first failure, then a linearly growing
// interval while failures persist.
type LinearBackoff struct {
	Baseline time.Duration
	Retry    time.Duration
	Step     time.Duration
	Max      time.Duration

	mu       sync.Mutex
	current  time.Duration
	failing  bool
	failures int
}

// NewLinearBackoff creates a backoff starting at baseline. max <= 0 caps
// at baseline.
func NewLinearBackoff(baseline, retry, step, max time.Duration) *LinearBackoff {
	if max <= 0 {
		max = baseline
	}
	return &LinearBackoff{
		Baseline: baseline,
		Retry:    retry,
		Step:     step,
		Max:      max,
		current:  baseline,
	}
}

// DefaultBackoff returns 5m baseline, 10s first retry, +10s per failure.
func DefaultBackoff() *LinearBackoff {
	return NewLinearBackoff(5*time.Minute, 10*time.Second, 10*time.Second, 5*time.Minute)
}

// Success resets to the baseline and returns it.
func (b *LinearBackoff) Success() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.current = b.Baseline
	b.failing = false
	b.failures = 0
	return b.current
}

// Failure records a failure and returns the next delay and whether the
// failure should be alerted. The first failure after a success is retried
// quietly; every later consecutive failure alerts and grows the delay.
func (b *LinearBackoff) Failure() (next time.Duration, alert bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	if !b.failing {
		b.failing = true
		b.current = b.Retry
		return b.current, false
	}

	b.current += b.Step
	if b.current > b.Max {
		b.current = b.Max
	}
	return b.current, true
}

// Failures returns the number of consecutive failures.
func (b *LinearBackoff) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the real Sleeper.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
