package mqtt

import (
	"sync"

	"github.com/sweeney/garage-opener/internal/notify"
)

// FakePublisher records published events for test assertions.
// Methods may be called from several goroutines; read the fields only after
// the publishing goroutines have finished.
type FakePublisher struct {
	mu sync.Mutex

	// Events contains all door events that were published.
	Events []notify.Event

	// Payloads contains the JSON payloads that were published.
	Payloads [][]byte

	// SystemEvents contains all system events that were published.
	SystemEvents []SystemEvent

	// SystemPayloads contains the JSON payloads for system events.
	SystemPayloads [][]byte

	// PublishError, if set, will be returned by Publish.
	PublishError error

	// PublishSystemError, if set, will be returned by PublishSystem.
	PublishSystemError error

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// Publish records the door event.
func (f *FakePublisher) Publish(event notify.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.PublishError != nil {
		return f.PublishError
	}

	payload, err := FormatPayload(event)
	if err != nil {
		return err
	}
	f.Events = append(f.Events, event)
	f.Payloads = append(f.Payloads, payload)

	return nil
}

// PublishSystem records the system event.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.SystemEvents = append(f.SystemEvents, event)
	f.SystemPayloads = append(f.SystemPayloads, payload)

	return nil
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Closed = true
	return nil
}

// IsConnected reports whether the fake publisher is "connected".
func (f *FakePublisher) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.Connected
}

// Alerts returns the recorded alert events.
func (f *FakePublisher) Alerts() []notify.Event {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []notify.Event
	for _, ev := range f.Events {
		if ev.IsAlert() {
			out = append(out, ev)
		}
	}
	return out
}

// States returns the recorded state names in publish order.
func (f *FakePublisher) States() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []string
	for _, ev := range f.Events {
		if !ev.IsAlert() {
			out = append(out, ev.State.String())
		}
	}
	return out
}

// SystemEventNames returns the recorded system event names in order.
func (f *FakePublisher) SystemEventNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]string, 0, len(f.SystemEvents))
	for _, ev := range f.SystemEvents {
		out = append(out, ev.Event)
	}
	return out
}

// Reset clears recorded events.
func (f *FakePublisher) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Events = nil
	f.Payloads = nil
	f.SystemEvents = nil
	f.SystemPayloads = nil
	f.Closed = false
	f.PublishError = nil
	f.PublishSystemError = nil
	f.Connected = false
}
