// Package notify hands door status events from the tick routine to the
// external reporters through a bounded, non-blocking channel.
package notify

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sweeney/garage-opener/internal/door"
)

// Event is a door status event stamped with the time it was emitted.
type Event struct {
	At time.Time
	door.StatusEvent
}

// Sink receives delivered events. Calls are made from a single goroutine.
type Sink interface {
	// OnStatus is called once per confirmed state change.
	OnStatus(ev Event)
	// OnAlert is called for MotorTimeout and DoorHeldOpen events.
	OnAlert(ev Event)
}

// DefaultBuffer is the default channel capacity.
const DefaultBuffer = 16

// Publisher implements door.Emitter. Emit never blocks: when the channel is
// full the event is dropped and counted.
type Publisher struct {
	ch    chan Event
	now   func() time.Time
	sinks []Sink

	dropped   atomic.Uint64
	delivered atomic.Uint64

	// last state handed to OnStatus; touched only by the delivering goroutine
	lastStatus door.State
}

// NewPublisher creates a publisher with the given channel capacity.
func NewPublisher(size int, now func() time.Time, sinks ...Sink) *Publisher {
	if size <= 0 {
		size = DefaultBuffer
	}
	if now == nil {
		now = time.Now
	}
	return &Publisher{
		ch:         make(chan Event, size),
		now:        now,
		sinks:      sinks,
		lastStatus: door.Idle,
	}
}

// Emit queues ev for delivery. It returns false if the queue was full.
func (p *Publisher) Emit(ev door.StatusEvent) bool {
	select {
	case p.ch <- Event{At: p.now(), StatusEvent: ev}:
		return true
	default:
		p.dropped.Add(1)
		return false
	}
}

// Run delivers events until ctx is cancelled, then flushes what is queued.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			p.Flush()
			return nil
		case ev := <-p.ch:
			p.deliver(ev)
		}
	}
}

// Flush delivers all queued events without waiting and returns how many
// were taken off the queue. It must not run concurrently with Run.
func (p *Publisher) Flush() int {
	n := 0
	for {
		select {
		case ev := <-p.ch:
			p.deliver(ev)
			n++
		default:
			return n
		}
	}
}

func (p *Publisher) deliver(ev Event) {
	switch ev.Kind {
	case door.StateChanged:
		// A dropped intermediate state can make the next change repeat the
		// last delivered value.
		if ev.State == p.lastStatus {
			return
		}
		p.lastStatus = ev.State
		for _, s := range p.sinks {
			s.OnStatus(ev)
		}
	case door.MotorTimeout, door.DoorHeldOpen:
		for _, s := range p.sinks {
			s.OnAlert(ev)
		}
	default:
		return
	}
	p.delivered.Add(1)
}

// Dropped returns the number of events discarded because the queue was full.
func (p *Publisher) Dropped() uint64 {
	return p.dropped.Load()
}

// Delivered returns the number of events handed to the sinks.
func (p *Publisher) Delivered() uint64 {
	return p.delivered.Load()
}

// Pending returns the number of queued events.
func (p *Publisher) Pending() int {
	return len(p.ch)
}
