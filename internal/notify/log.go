package notify

import "log"

// LogSink writes every delivered event to the standard logger.
type LogSink struct{}

// OnStatus logs a state change.
func (LogSink) OnStatus(ev Event) {
	log.Printf("status: %s -> %s (tick %d)", ev.Previous, ev.State, ev.Tick)
}

// OnAlert logs an alert.
func (LogSink) OnAlert(ev Event) {
	log.Printf("alert: %s: %s (state %s)", ev.Kind, ev.Message(), ev.State)
}

// Multi fans events out to several sinks in order.
type Multi []Sink

// OnStatus forwards to every sink.
func (m Multi) OnStatus(ev Event) {
	for _, s := range m {
		s.OnStatus(ev)
	}
}

// OnAlert forwards to every sink.
func (m Multi) OnAlert(ev Event) {
	for _, s := range m {
		s.OnAlert(ev)
	}
}
