// Package clock provides the sleepers used for fixed throttling between
// remote calls. Production code uses Real; tests use Instant or Recorder so
// no test waits on the wall clock.
package clock

import (
	"context"
	"sync"
	"time"
)

type RealSleeper struct{}

// Real returns a Sleeper backed by a timer. Sleep returns ctx.Err() if ctx
// ends first.
func Real() RealSleeper { return RealSleeper{} }

func (RealSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type InstantSleeper struct{}

// Instant returns a Sleeper that never waits.
func Instant() InstantSleeper { return InstantSleeper{} }

func (InstantSleeper) Sleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

// Recorder never waits but remembers every requested duration.
type Recorder struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (r *Recorder) Sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.sleeps = append(r.sleeps, d)
	r.mu.Unlock()
	return ctx.Err()
}

// Sleeps returns a copy of the recorded durations.
func (r *Recorder) Sleeps() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.sleeps...)
}
