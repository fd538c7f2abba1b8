// Package tick drives the control loop at a fixed period.
//
// Two deployments are provided: Loop, a cooperative task that sleeps for
// the period between steps, and Interrupt, a periodic timer callback that
// runs outside any goroutine the caller owns. Both call step from exactly
// one execution context at a time and never overlap two steps.
package tick

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// DefaultPeriod is the nominal tick period.
const DefaultPeriod = 10 * time.Millisecond

// Mode names a tick source.
const (
	ModeLoop  = "loop"
	ModeTimer = "timer"
)

// Source calls step periodically until ctx is cancelled.
type Source interface {
	Run(ctx context.Context, step func()) error
}

// New returns the source for a configured mode.
func New(mode string, period time.Duration) (Source, error) {
	if period <= 0 {
		return nil, fmt.Errorf("tick period must be positive, got %v", period)
	}
	switch mode {
	case ModeLoop, "":
		return Loop{Period: period}, nil
	case ModeTimer:
		return Interrupt{Period: period}, nil
	}
	return nil, fmt.Errorf("unknown tick mode %q", mode)
}

// Loop is a cooperative source: it sleeps for Period after each step.
type Loop struct {
	Period time.Duration
}

// Run blocks until ctx is cancelled.
func (l Loop) Run(ctx context.Context, step func()) error {
	t := time.NewTimer(l.Period)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			step()
			t.Reset(l.Period)
		}
	}
}

// Interrupt is a periodic callback source. Steps run on the runtime timer
// goroutine, scheduled against absolute deadlines; a late step skips the
// missed periods instead of bursting.
type Interrupt struct {
	Period time.Duration
}

// Run arms the periodic callback and blocks until ctx is cancelled. It
// returns only after any in-flight step has completed.
func (s Interrupt) Run(ctx context.Context, step func()) error {
	var (
		mu      sync.Mutex
		stopped bool
		t       *time.Timer
		next    = time.Now().Add(s.Period)
	)

	var fire func()
	fire = func() {
		mu.Lock()
		defer mu.Unlock()
		if stopped {
			return
		}
		step()

		now := time.Now()
		next = next.Add(s.Period)
		if next.Before(now) {
			next = now.Add(s.Period)
		}
		t.Reset(next.Sub(now))
	}

	mu.Lock()
	t = time.AfterFunc(s.Period, fire)
	mu.Unlock()

	<-ctx.Done()

	mu.Lock()
	stopped = true
	t.Stop()
	mu.Unlock()
	return nil
}

// Chan steps once per value received. Used with time.Ticker channels and
// in tests.
type Chan <-chan time.Time

// Run blocks until ctx is cancelled or the channel is closed.
func (c Chan) Run(ctx context.Context, step func()) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-c:
			if !ok {
				return nil
			}
			step()
		}
	}
}
