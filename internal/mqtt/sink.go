package mqtt

import (
	"log"

	"github.com/sweeney/garage-opener/internal/notify"
)

// Sink adapts a Publisher to notify.Sink. Publish failures are logged and
// otherwise ignored.
type Sink struct {
	Publisher Publisher
}

// OnStatus publishes a state change.
func (s Sink) OnStatus(ev notify.Event) {
	if err := s.Publisher.Publish(ev); err != nil {
		log.Printf("mqtt: publish state %s: %v", ev.State, err)
	}
}

// OnAlert publishes an alert.
func (s Sink) OnAlert(ev notify.Event) {
	if err := s.Publisher.Publish(ev); err != nil {
		log.Printf("mqtt: publish alert %s: %v", ev.Kind, err)
	}
}
