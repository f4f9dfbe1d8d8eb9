// Package guard coordinates refreshes: a Task runs at most one call at a
// time and enforces a minimum interval between starts, and a Debouncer
// collapses bursts of triggers into one trailing call.
package guard

import (
	"context"
	gosync "sync"
	"time"

	"golang.org/x/time/rate"
)

// Option configures a Task.
type Option func(*Task)

// WithClock replaces time.Now as the source of the current time.
func WithClock(now func() time.Time) Option {
	return func(t *Task) {
		if now != nil {
			t.now = now
		}
	}
}

// Task is a rate-limited, single-flight unit of work.
type Task struct {
	mu       gosync.Mutex
	inFlight bool
	limiter  *rate.Limiter
	now      func() time.Time
	interval time.Duration
}

// NewTask creates a Task whose starts are at least minInterval apart. A
// zero interval disables the interval check.
func NewTask(minInterval time.Duration, opts ...Option) *Task {
	limit := rate.Inf
	if minInterval > 0 {
		limit = rate.Every(minInterval)
	}
	t := &Task{
		limiter:  rate.NewLimiter(limit, 1),
		now:      time.Now,
		interval: minInterval,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Interval returns the minimum interval between starts.
func (t *Task) Interval() time.Duration {
	return t.interval
}

// InFlight reports whether a call is currently running.
func (t *Task) InFlight() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inFlight
}

// Run calls fn unless a call is already in flight or the previous start was
// less than the minimum interval ago. Discarded requests are not queued.
// ran reports whether fn was called; err is fn's result.
func (t *Task) Run(ctx context.Context, fn func(context.Context) error) (ran bool, err error) {
	return t.run(ctx, fn, false)
}

// RunForced is Run without the interval check. It still refuses to start
// while another call is in flight, and it does not count as a start for
// later Run calls.
func (t *Task) RunForced(ctx context.Context, fn func(context.Context) error) (ran bool, err error) {
	return t.run(ctx, fn, true)
}

func (t *Task) run(ctx context.Context, fn func(context.Context) error, forced bool) (bool, error) {
	t.mu.Lock()
	if t.inFlight {
		t.mu.Unlock()
		return false, nil
	}
	if !forced && !t.limiter.AllowN(t.now(), 1) {
		t.mu.Unlock()
		return false, nil
	}
	t.inFlight = true
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		t.inFlight = false
		t.mu.Unlock()
	}()

	return true, fn(ctx)
}
