// Package timing provides the clock and randomised pauses the crawler uses
// for every wait, so sessions can run against a simulated clock in tests.
package timing

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

// Clock is the source of time for all waits in a crawl session.
type Clock interface {
	Now() time.Time
	// Sleep suspends the caller for d or until ctx is done.
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

// Real returns a Clock backed by the wall clock.
func Real() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Range is a half-open duration interval [Min, Max).
type Range struct {
	Min time.Duration
	Max time.Duration
}

// Jitter draws uniformly distributed durations. It is safe for concurrent use.
type Jitter struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewJitter creates a Jitter. A zero seed picks a random one.
func NewJitter(seed uint64) *Jitter {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &Jitter{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Draw returns a duration in [r.Min, r.Max). A degenerate range returns r.Min.
func (j *Jitter) Draw(r Range) time.Duration {
	span := r.Max - r.Min
	if span <= 0 {
		return r.Min
	}
	j.mu.Lock()
	n := j.rng.Int64N(int64(span))
	j.mu.Unlock()
	return r.Min + time.Duration(n)
}

// Pause sleeps on clock for a duration drawn from r and returns it.
func Pause(ctx context.Context, clock Clock, j *Jitter, r Range) (time.Duration, error) {
	d := j.Draw(r)
	return d, clock.Sleep(ctx, d)
}

// WithTimeout is context.WithTimeout that leaves ctx unbounded when d is not
// positive.
func WithTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
